package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"
)

// Document is a stored record.
type Document struct {
	// Path is the full document path, e.g. "groups/g1/expenses/e1".
	Path string

	// Fields is the JSON object body. Numbers are json.Number values.
	Fields map[string]any

	CreateTime time.Time
	UpdateTime time.Time
}

// ID returns the last segment of the document path.
func (d *Document) ID() string {
	return path.Base(d.Path)
}

// DataTo decodes the document body into v.
func (d *Document) DataTo(v any) error {
	raw, err := json.Marshal(d.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", d.Path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", d.Path, err)
	}
	return nil
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.Fields = cloneMap(d.Fields)
	return &c
}

// FieldsOf converts a struct (or map) into a document body.
func FieldsOf(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fields: %w", err)
	}
	return DecodeFields(raw)
}

// DecodeFields parses a JSON object body, keeping numbers as json.Number.
func DecodeFields(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	fields := map[string]any{}
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("failed to decode fields: %w", err)
	}
	return fields, nil
}

// Collection returns the collection part of a document path.
func Collection(docPath string) string {
	return path.Dir(docPath)
}

// ValidatePath checks that p names a document: an even, non-zero number of
// non-empty segments.
func ValidatePath(p string) error {
	segs := strings.Split(p, "/")
	if len(segs) == 0 || len(segs)%2 != 0 {
		return fmt.Errorf("invalid document path %q", p)
	}
	for _, s := range segs {
		if s == "" || s == "." || s == ".." {
			return fmt.Errorf("invalid document path %q", p)
		}
	}
	return nil
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = cloneMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}

// getField reads a dotted field path such as "achievementProgress.expensesCount".
func getField(fields map[string]any, name string) (any, bool) {
	parts := strings.Split(name, ".")
	cur := fields
	for i, p := range parts {
		v, ok := cur[p]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		next, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

// setField writes a dotted field path, creating intermediate objects.
func setField(fields map[string]any, name string, value any) {
	parts := strings.Split(name, ".")
	cur := fields
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}
