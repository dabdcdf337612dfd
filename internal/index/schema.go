package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/syntrixbase/userindex/pkg/model"
)

// SchemaManager makes sure the index exists with the fixed mapping before
// any read or write touches it. Once confirmed, later calls return
// immediately until Invalidate is called.
type SchemaManager struct {
	backend Backend
	mapping Mapping
	logger  *slog.Logger

	mu        sync.Mutex
	confirmed atomic.Bool
}

func NewSchemaManager(backend Backend, mapping Mapping, logger *slog.Logger) *SchemaManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SchemaManager{
		backend: backend,
		mapping: mapping,
		logger:  logger.With("component", "index-schema"),
	}
}

// EnsureIndex creates the index if it is absent. Concurrent callers block
// on one check; failures wrap model.ErrIndexUnavailable.
func (m *SchemaManager) EnsureIndex(ctx context.Context) error {
	if m.confirmed.Load() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.confirmed.Load() {
		return nil
	}

	exists, err := m.backend.Exists(ctx)
	if err != nil {
		return fmt.Errorf("%w: check index: %w", model.ErrIndexUnavailable, err)
	}
	if !exists {
		if err := m.backend.Create(ctx, m.mapping); err != nil {
			return fmt.Errorf("%w: create index: %w", model.ErrIndexUnavailable, err)
		}
		m.logger.Info("Index ready", "fields", len(m.mapping.Fields))
	}

	m.confirmed.Store(true)
	return nil
}

// Invalidate forgets the confirmation so the next EnsureIndex re-checks.
// Writers call it when the backend reports the index missing.
func (m *SchemaManager) Invalidate() {
	m.confirmed.Store(false)
}
