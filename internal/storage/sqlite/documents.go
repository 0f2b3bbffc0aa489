package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/mmynk/tally/internal/storage"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Get retrieves a document by path.
func (s *SQLiteStore) Get(ctx context.Context, path string) (*storage.Document, error) {
	if err := storage.ValidatePath(path); err != nil {
		return nil, err
	}
	return getDocument(ctx, s.db, path)
}

// List retrieves the documents directly inside a collection, ordered by id.
func (s *SQLiteStore) List(ctx context.Context, collection string) ([]*storage.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT path, data, create_time, update_time FROM documents WHERE collection = ? ORDER BY doc_id",
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []*storage.Document
	for rows.Next() {
		var (
			path, data       string
			created, updated int64
		)
		if err := rows.Scan(&path, &data, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc, err := decodeDocument(path, data, created, updated)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", collection, err)
	}

	return docs, nil
}

// Commit applies the writes in one transaction and notifies listeners of
// every document whose contents changed.
func (s *SQLiteStore) Commit(ctx context.Context, writes ...storage.Write) error {
	if len(writes) == 0 {
		return nil
	}
	for _, w := range writes {
		if err := storage.ValidatePath(w.Path); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Later writes in the batch see the results of earlier ones.
	before := make(map[string]*storage.Document)
	staged := make(map[string]*storage.Document)
	var order []string
	for _, w := range writes {
		cur, seen := staged[w.Path]
		if !seen {
			cur, err = getDocument(ctx, tx, w.Path)
			if errors.Is(err, storage.ErrNotFound) {
				cur = nil
			} else if err != nil {
				return err
			}
			before[w.Path] = cur
			order = append(order, w.Path)
		}

		next, err := storage.Apply(cur, w, now)
		if err != nil {
			return err
		}
		staged[w.Path] = next
	}

	var changes []storage.Change
	for _, path := range order {
		b, a := before[path], staged[path]
		if unchanged(b, a) {
			continue
		}
		if err := putDocument(ctx, tx, path, a); err != nil {
			return err
		}
		changes = append(changes, storage.Change{Path: path, Before: b, After: a})
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	for _, c := range changes {
		for _, l := range s.listeners {
			l(storage.Change{Path: c.Path, Before: c.Before.Clone(), After: c.After.Clone()})
		}
	}

	return nil
}

func getDocument(ctx context.Context, q querier, path string) (*storage.Document, error) {
	var (
		data             string
		created, updated int64
	)
	err := q.QueryRowContext(ctx,
		"SELECT data, create_time, update_time FROM documents WHERE path = ?",
		path,
	).Scan(&data, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", path, err)
	}
	return decodeDocument(path, data, created, updated)
}

func putDocument(ctx context.Context, q querier, path string, doc *storage.Document) error {
	if doc == nil {
		if _, err := q.ExecContext(ctx, "DELETE FROM documents WHERE path = ?", path); err != nil {
			return fmt.Errorf("failed to delete %s: %w", path, err)
		}
		return nil
	}

	data, err := json.Marshal(doc.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO documents (path, collection, doc_id, data, create_time, update_time)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET data = excluded.data, update_time = excluded.update_time`,
		path, storage.Collection(path), doc.ID(), string(data),
		doc.CreateTime.UnixNano(), doc.UpdateTime.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func decodeDocument(path, data string, created, updated int64) (*storage.Document, error) {
	fields, err := storage.DecodeFields([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &storage.Document{
		Path:       path,
		Fields:     fields,
		CreateTime: time.Unix(0, created),
		UpdateTime: time.Unix(0, updated),
	}, nil
}

func unchanged(before, after *storage.Document) bool {
	if before == nil || after == nil {
		return before == after
	}
	return reflect.DeepEqual(before.Fields, after.Fields)
}
