// Package indexer rebuilds the users index from the primary store.
//
// A bulk sync streams every record, logically deleted ones included, and
// upserts each one into the index with bounded concurrency. Per-record
// failures are counted and logged; only a scan failure or cancellation
// fails the run. Running it again converges to the same index state.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/syntrixbase/userindex/internal/indexer/config"
	"github.com/syntrixbase/userindex/internal/metrics"
	"github.com/syntrixbase/userindex/internal/storage"
	"github.com/syntrixbase/userindex/pkg/model"
)

// Scanner streams records from the primary store.
type Scanner interface {
	Scan(ctx context.Context, filter storage.Filter, batchSize int, fn func(*model.User) error) error
}

// Upserter writes one record into the index.
type Upserter interface {
	Upsert(ctx context.Context, u *model.User) error
}

// Report summarizes one bulk sync run.
type Report struct {
	ID         string    `json:"id"`
	Scanned    int64     `json:"scanned"`
	Indexed    int64     `json:"indexed"`
	Failed     int64     `json:"failed"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	// Error is set when the run itself failed.
	Error string `json:"error,omitempty"`
}

// Duration is the wall time of the run.
func (r Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// BulkSync runs full synchronizations. At most one run is active at a time.
type BulkSync struct {
	cfg    config.Config
	store  Scanner
	writer Upserter
	logger *slog.Logger

	running atomic.Bool

	mu   sync.RWMutex
	last *Report
}

func NewBulkSync(cfg config.Config, store Scanner, writer Upserter, logger *slog.Logger) *BulkSync {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = config.DefaultConfig().Concurrency
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = config.DefaultConfig().BatchSize
	}
	return &BulkSync{
		cfg:    cfg,
		store:  store,
		writer: writer,
		logger: logger.With("component", "bulk-sync"),
	}
}

// Run performs one full synchronization. It returns model.ErrSyncInProgress
// when another run is active and model.ErrCanceled when ctx ends first.
func (s *BulkSync) Run(ctx context.Context) (Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		return Report{}, model.ErrSyncInProgress
	}
	defer s.running.Store(false)

	report := Report{ID: uuid.NewString(), StartedAt: time.Now().UTC()}
	logger := s.logger.With("run_id", report.ID)
	logger.Info("Bulk sync started", "concurrency", s.cfg.Concurrency)

	var scanned, indexed, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	scanErr := s.store.Scan(gctx, storage.Filter{}, s.cfg.BatchSize, func(u *model.User) error {
		if err := gctx.Err(); err != nil {
			return err
		}
		scanned.Add(1)
		g.Go(func() error {
			err := s.writer.Upsert(gctx, u)
			metrics.SyncOperationsTotal.WithLabelValues(metrics.SourceBulk, "upsert", metrics.Result(err)).Inc()
			if err == nil {
				indexed.Add(1)
				return nil
			}
			if model.IsCanceled(err) {
				return err
			}
			failed.Add(1)
			logger.Warn("Failed to index record", "id", u.ID, "error", err)
			return nil
		})
		return nil
	})
	waitErr := g.Wait()

	report.Scanned = scanned.Load()
	report.Indexed = indexed.Load()
	report.Failed = failed.Load()
	report.FinishedAt = time.Now().UTC()
	metrics.BulkSyncDuration.Observe(report.Duration().Seconds())

	err := s.runError(ctx, scanErr, waitErr)
	if err != nil {
		report.Error = err.Error()
		logger.Error("Bulk sync failed", "error", err, "scanned", report.Scanned, "indexed", report.Indexed)
	} else {
		logger.Info("Bulk sync finished",
			"scanned", report.Scanned,
			"indexed", report.Indexed,
			"failed", report.Failed,
			"duration_ms", report.Duration().Milliseconds(),
		)
	}

	s.mu.Lock()
	s.last = &report
	s.mu.Unlock()

	return report, err
}

func (s *BulkSync) runError(ctx context.Context, scanErr, waitErr error) error {
	if ctx.Err() != nil || model.IsCanceled(waitErr) {
		return model.ErrCanceled
	}
	if scanErr != nil {
		if model.IsCanceled(scanErr) {
			return model.ErrCanceled
		}
		return fmt.Errorf("scan primary store: %w", scanErr)
	}
	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		return waitErr
	}
	return nil
}

// Running reports whether a run is in progress.
func (s *BulkSync) Running() bool {
	return s.running.Load()
}

// LastReport returns the report of the most recent finished run.
func (s *BulkSync) LastReport() (Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Report{}, false
	}
	return *s.last, true
}
