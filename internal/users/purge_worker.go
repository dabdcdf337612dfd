package users

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/syntrixbase/userindex/internal/storage"
	"github.com/syntrixbase/userindex/internal/users/config"
	"github.com/syntrixbase/userindex/pkg/model"
)

const maxBatchesPerCycle = 10

// Finder lists soft-deleted records due for purging.
type Finder interface {
	FindMany(ctx context.Context, filter storage.Filter, opts storage.FindOptions) ([]*model.User, error)
}

// Purger permanently removes one record.
type Purger interface {
	Purge(ctx context.Context, id string) error
}

// PurgeWorker hard-deletes users that stayed soft-deleted longer than the
// retention period.
type PurgeWorker struct {
	finder Finder
	purger Purger
	cfg    config.PurgeConfig
	now    func() time.Time
	logger *slog.Logger

	mu          sync.RWMutex
	running     bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	lastRunTime time.Time
}

func NewPurgeWorker(finder Finder, purger Purger, cfg config.PurgeConfig, logger *slog.Logger) *PurgeWorker {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := config.DefaultConfig().Purge
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaults.Retention
	}
	return &PurgeWorker{
		finder: finder,
		purger: purger,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With("component", "purge-worker"),
	}
}

func (w *PurgeWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.runLoop(workerCtx)

	w.logger.Info("purge worker started", "interval", w.cfg.Interval, "retention", w.cfg.Retention)
	return nil
}

func (w *PurgeWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.cancel()
	w.running = false
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("purge worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *PurgeWorker) runLoop(ctx context.Context) {
	defer w.wg.Done()

	w.RunOnce(ctx)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce purges up to a bounded number of batches and returns how many
// records were removed.
func (w *PurgeWorker) RunOnce(ctx context.Context) int {
	w.mu.Lock()
	w.lastRunTime = w.now()
	cutoff := w.lastRunTime.Add(-w.cfg.Retention)
	w.mu.Unlock()

	filter := storage.Deleted(true)
	filter.UpdatedBefore = cutoff

	purged := 0
	for batch := 0; batch < maxBatchesPerCycle; batch++ {
		if ctx.Err() != nil {
			return purged
		}
		due, err := w.finder.FindMany(ctx, filter, storage.FindOptions{
			SortField: "updatedAt",
			Limit:     int64(w.cfg.BatchSize),
		})
		if err != nil {
			w.logger.Error("failed to list users due for purge", "error", err)
			return purged
		}

		removed := 0
		for _, u := range due {
			err := w.purger.Purge(ctx, u.ID)
			if err != nil && !errors.Is(err, model.ErrNotFound) {
				w.logger.Error("failed to purge user", "id", u.ID, "error", err)
				continue
			}
			removed++
		}
		purged += removed

		if len(due) < w.cfg.BatchSize || removed == 0 {
			break
		}
	}

	if purged > 0 {
		w.logger.Info("purged soft-deleted users", "count", purged)
	}
	return purged
}

func (w *PurgeWorker) LastRunTime() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastRunTime
}

func (w *PurgeWorker) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}
