package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// WriteKind selects how a Write changes its document.
type WriteKind int

const (
	// WriteCreate stores a new document and fails if one exists.
	WriteCreate WriteKind = iota + 1
	// WriteSet replaces the document, creating it if needed.
	WriteSet
	// WriteMerge upserts: listed fields are overwritten, others kept.
	WriteMerge
	// WriteUpdate merges fields and adds deltas to numeric fields of an
	// existing document. A missing document is left missing.
	WriteUpdate
	// WriteEnsure creates the document only if it does not exist.
	WriteEnsure
	// WriteDelete removes the document. Deleting a missing document is a no-op.
	WriteDelete
)

func (k WriteKind) String() string {
	switch k {
	case WriteCreate:
		return "create"
	case WriteSet:
		return "set"
	case WriteMerge:
		return "merge"
	case WriteUpdate:
		return "update"
	case WriteEnsure:
		return "ensure"
	case WriteDelete:
		return "delete"
	default:
		return fmt.Sprintf("WriteKind(%d)", int(k))
	}
}

// Write is one document mutation within a Commit.
type Write struct {
	Kind WriteKind
	Path string

	// Data is the full body for Create, Set and Ensure: a struct or a map.
	Data any

	// Fields are merged by Merge and Update. Keys may be dotted paths.
	Fields map[string]any

	// Deltas are added to numeric fields by Update. Keys may be dotted paths.
	Deltas map[string]decimal.Decimal
}

func Create(path string, data any) Write {
	return Write{Kind: WriteCreate, Path: path, Data: data}
}

func Set(path string, data any) Write {
	return Write{Kind: WriteSet, Path: path, Data: data}
}

func Merge(path string, fields map[string]any) Write {
	return Write{Kind: WriteMerge, Path: path, Fields: fields}
}

func Update(path string, deltas map[string]decimal.Decimal, fields map[string]any) Write {
	return Write{Kind: WriteUpdate, Path: path, Deltas: deltas, Fields: fields}
}

func Ensure(path string, data any) Write {
	return Write{Kind: WriteEnsure, Path: path, Data: data}
}

func Delete(path string) Write {
	return Write{Kind: WriteDelete, Path: path}
}

// Apply computes the state of a document after w, given its current state
// (nil when absent). It returns nil for an absent result. current is not
// modified.
func Apply(current *Document, w Write, now time.Time) (*Document, error) {
	switch w.Kind {
	case WriteCreate:
		if current != nil {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, w.Path)
		}
		return newDocument(w.Path, w.Data, nil, now)

	case WriteSet:
		return newDocument(w.Path, w.Data, current, now)

	case WriteEnsure:
		if current != nil {
			return current.Clone(), nil
		}
		return newDocument(w.Path, w.Data, nil, now)

	case WriteMerge:
		next := current.Clone()
		if next == nil {
			next = &Document{Path: w.Path, Fields: map[string]any{}, CreateTime: now}
		}
		for k, v := range w.Fields {
			setField(next.Fields, k, v)
		}
		return finish(next, now)

	case WriteUpdate:
		if current == nil {
			return nil, nil
		}
		next := current.Clone()
		for k, v := range w.Fields {
			setField(next.Fields, k, v)
		}
		for k, delta := range w.Deltas {
			old, _ := getField(next.Fields, k)
			base, err := toDecimal(old)
			if err != nil {
				return nil, fmt.Errorf("field %s of %s: %w", k, w.Path, err)
			}
			setField(next.Fields, k, json.Number(base.Add(delta).String()))
		}
		return finish(next, now)

	case WriteDelete:
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown write kind %v for %s", w.Kind, w.Path)
	}
}

func newDocument(path string, data any, current *Document, now time.Time) (*Document, error) {
	fields, err := FieldsOf(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	created := now
	if current != nil {
		created = current.CreateTime
	}
	return &Document{Path: path, Fields: fields, CreateTime: created, UpdateTime: now}, nil
}

// finish normalizes the body through JSON so that times, decimals and plain
// Go numbers are stored the same way as values read back from the store.
func finish(doc *Document, now time.Time) (*Document, error) {
	fields, err := FieldsOf(doc.Fields)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", doc.Path, err)
	}
	doc.Fields = fields
	doc.UpdateTime = now
	return doc, nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, nil
	case json.Number:
		return decimal.NewFromString(n.String())
	case string:
		return decimal.NewFromString(n)
	case float64:
		return decimal.NewFromFloat(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case decimal.Decimal:
		return n, nil
	default:
		return decimal.Zero, fmt.Errorf("cannot add to non-numeric value %T", v)
	}
}
