package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/syntrixbase/userindex/pkg/model"
)

// Writer propagates record state into the index.
type Writer struct {
	backend Backend
	schema  *SchemaManager
}

func NewWriter(backend Backend, schema *SchemaManager) *Writer {
	return &Writer{backend: backend, schema: schema}
}

// Upsert replaces the index document for u. Logically deleted records are
// written with the deleted flag set, never removed.
func (w *Writer) Upsert(ctx context.Context, u *model.User) error {
	if u == nil || u.ID == "" {
		return fmt.Errorf("%w: record without id", model.ErrSyncFailure)
	}
	if err := w.schema.EnsureIndex(ctx); err != nil {
		return err
	}
	if err := w.backend.Index(ctx, u.ID, Project(u)); err != nil {
		w.checkMissing(err)
		return fmt.Errorf("%w: upsert %s: %w", model.ErrSyncFailure, u.ID, err)
	}
	return nil
}

// Remove deletes the index document for id. It is only used for records
// that were permanently removed from the primary store.
func (w *Writer) Remove(ctx context.Context, id string) error {
	if err := w.schema.EnsureIndex(ctx); err != nil {
		return err
	}
	if err := w.backend.Delete(ctx, id); err != nil {
		w.checkMissing(err)
		return fmt.Errorf("%w: remove %s: %w", model.ErrSyncFailure, id, err)
	}
	return nil
}

func (w *Writer) checkMissing(err error) {
	if errors.Is(err, ErrIndexNotFound) {
		w.schema.Invalidate()
	}
}

// Searcher runs queries against the index.
type Searcher struct {
	backend Backend
	schema  *SchemaManager
}

func NewSearcher(backend Backend, schema *SchemaManager) *Searcher {
	return &Searcher{backend: backend, schema: schema}
}

// Search fails with model.ErrIndexUnavailable when the index cannot be
// prepared or queried, and model.ErrCanceled on cancellation.
func (s *Searcher) Search(ctx context.Context, q Query) (*SearchResult, error) {
	if err := s.schema.EnsureIndex(ctx); err != nil {
		return nil, err
	}
	res, err := s.backend.Search(ctx, q)
	if err != nil {
		if model.IsCanceled(err) {
			return nil, model.ErrCanceled
		}
		if errors.Is(err, ErrIndexNotFound) {
			s.schema.Invalidate()
		}
		return nil, fmt.Errorf("%w: search: %w", model.ErrIndexUnavailable, err)
	}
	return res, nil
}

// Count returns the number of indexed documents, deleted ones included.
func (s *Searcher) Count(ctx context.Context) (uint64, error) {
	if err := s.schema.EnsureIndex(ctx); err != nil {
		return 0, err
	}
	n, err := s.backend.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: count: %w", model.ErrIndexUnavailable, err)
	}
	return n, nil
}
