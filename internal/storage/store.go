// Package storage provides abstractions for the reactive document store.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmynk/tally/internal/models"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrAlreadyExists = errors.New("document already exists")
)

// Store defines the document operations the handlers rely on.
// This abstraction allows swapping storage backends (SQLite, a hosted
// document database, etc.) without changing the aggregate rules.
type Store interface {
	// Get retrieves the document at path.
	// Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, path string) (*Document, error)

	// List returns the documents directly inside a collection, ordered by id.
	List(ctx context.Context, collection string) ([]*Document, error)

	// Commit applies all writes atomically, in order.
	// Either every write takes effect or none does.
	Commit(ctx context.Context, writes ...Write) error

	// Close releases any resources held by the store.
	Close() error
}

// Change describes one committed document mutation. Before is nil for a
// creation, After is nil for a deletion.
type Change struct {
	Path   string
	Before *Document
	After  *Document
}

// Listener receives changes after they are committed.
// Listeners must not block; they are called while the store serializes writes.
type Listener func(Change)

// Lookup loads the document at path into a T. A missing document yields an
// empty Option rather than an error.
func Lookup[T any](ctx context.Context, s Store, path string) (models.Option[T], error) {
	doc, err := s.Get(ctx, path)
	if errors.Is(err, ErrNotFound) {
		return models.None[T](), nil
	}
	if err != nil {
		return models.None[T](), err
	}
	var v T
	if err := doc.DataTo(&v); err != nil {
		return models.None[T](), err
	}
	return models.Some(v), nil
}

// ListAs loads every document in a collection into a T, calling setID with
// each document id so callers can fill the json:"-" id field.
func ListAs[T any](ctx context.Context, s Store, collection string, setID func(*T, string)) ([]T, error) {
	docs, err := s.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := doc.DataTo(&v); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", doc.Path, err)
		}
		if setID != nil {
			setID(&v, doc.ID())
		}
		out = append(out, v)
	}
	return out, nil
}
