// Package puller keeps the index current from the primary store's change feed.
package puller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/syntrixbase/userindex/internal/metrics"
	"github.com/syntrixbase/userindex/internal/puller/config"
	"github.com/syntrixbase/userindex/internal/storage"
	"github.com/syntrixbase/userindex/pkg/model"
)

// State is the lifecycle state of a Capture.
type State int

const (
	StateUninitialized State = iota
	StateSubscribed
	StateDegraded
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateSubscribed:
		return "subscribed"
	case StateDegraded:
		return "degraded"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var allStates = []State{StateUninitialized, StateSubscribed, StateDegraded, StateClosed}

// Mode is decided once at Start and fixed for the process lifetime.
type Mode int

const (
	LiveSyncUnsupported Mode = iota
	LiveSyncEnabled
)

func (m Mode) String() string {
	if m == LiveSyncEnabled {
		return "live"
	}
	return "unsupported"
}

// Feed is the part of the primary store change capture depends on.
type Feed interface {
	Watch(ctx context.Context) (<-chan storage.ChangeEvent, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// Upserter writes one record into the index.
type Upserter interface {
	Upsert(ctx context.Context, u *model.User) error
}

// Capture subscribes to the change feed and upserts every inserted,
// updated or replaced record. A single consumer handles events in order.
// Failures are logged and the subscription continues; when the feed ends
// the capture closes and does not reconnect.
type Capture struct {
	cfg    config.Config
	feed   Feed
	writer Upserter
	logger *slog.Logger

	mu     sync.Mutex
	state  State
	mode   Mode
	cancel context.CancelFunc
	done   chan struct{}
}

func NewCapture(cfg config.Config, feed Feed, writer Upserter, logger *slog.Logger) *Capture {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.EventTimeout <= 0 {
		cfg.EventTimeout = config.DefaultConfig().EventTimeout
	}
	c := &Capture{
		cfg:    cfg,
		feed:   feed,
		writer: writer,
		logger: logger.With("component", "puller"),
	}
	c.publishState(StateUninitialized)
	return c
}

// Start probes the change feed and begins consuming it. A store without a
// feed degrades the capture instead of failing; the only error is a second
// call to Start.
func (c *Capture) Start(ctx context.Context) (Mode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateUninitialized {
		return c.mode, fmt.Errorf("capture already started (state %s)", c.state)
	}

	if !c.cfg.Enabled {
		c.logger.Warn("Change capture disabled by configuration, index updates rely on bulk sync")
		c.degradeLocked()
		return c.mode, nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	events, err := c.feed.Watch(runCtx)
	if err != nil {
		cancel()
		if errors.Is(err, model.ErrFeedUnsupported) {
			c.logger.Warn("Change feed unsupported, live sync disabled", "error", err)
		} else {
			c.logger.Warn("Failed to open change feed, live sync disabled", "error", err)
		}
		c.degradeLocked()
		return c.mode, nil
	}

	c.mode = LiveSyncEnabled
	c.cancel = cancel
	c.done = make(chan struct{})
	c.setStateLocked(StateSubscribed)
	c.logger.Info("Change capture subscribed")

	go c.consume(runCtx, events, c.done)
	return c.mode, nil
}

func (c *Capture) degradeLocked() {
	c.mode = LiveSyncUnsupported
	c.setStateLocked(StateDegraded)
}

func (c *Capture) consume(ctx context.Context, events <-chan storage.ChangeEvent, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				if ctx.Err() == nil {
					c.logger.Warn("Change feed ended, live sync stopped")
				}
				c.mu.Lock()
				c.setStateLocked(StateClosed)
				c.mu.Unlock()
				return
			}
			c.handle(ctx, evt)
		}
	}
}

func (c *Capture) handle(ctx context.Context, evt storage.ChangeEvent) {
	switch evt.Operation {
	case storage.OpInsert, storage.OpUpdate, storage.OpReplace:
	case storage.OpDelete:
		// Logical deletes arrive as updates; hard deletes are removed by the purge path.
		c.logger.Debug("Ignoring delete event", "id", evt.DocumentKey)
		return
	default:
		c.logger.Debug("Ignoring change event", "op", evt.Operation, "id", evt.DocumentKey)
		return
	}

	if evt.DocumentKey == "" {
		c.logger.Warn("Change event without document key", "op", evt.Operation)
		return
	}

	ectx, cancel := context.WithTimeout(ctx, c.cfg.EventTimeout)
	defer cancel()

	u, err := c.feed.FindByID(ectx, evt.DocumentKey)
	if errors.Is(err, model.ErrNotFound) {
		c.logger.Debug("Changed record no longer exists", "id", evt.DocumentKey)
		return
	}
	if err != nil {
		metrics.SyncOperationsTotal.WithLabelValues(metrics.SourceCapture, string(evt.Operation), "error").Inc()
		c.logger.Warn("Failed to read changed record", "id", evt.DocumentKey, "error", err)
		return
	}

	err = c.writer.Upsert(ectx, u)
	metrics.SyncOperationsTotal.WithLabelValues(metrics.SourceCapture, string(evt.Operation), metrics.Result(err)).Inc()
	if err != nil {
		c.logger.Warn("Failed to index changed record", "id", evt.DocumentKey, "op", evt.Operation, "error", err)
	}
}

// Stop cancels the subscription and waits for the consumer to exit or ctx to end.
func (c *Capture) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	c.setStateLocked(StateClosed)
	c.mu.Unlock()
	c.logger.Info("Change capture stopped")
	return nil
}

// Wait blocks until the consumer exits. It returns immediately when the
// capture never subscribed.
func (c *Capture) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (c *Capture) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Capture) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Capture) setStateLocked(s State) {
	c.state = s
	c.publishState(s)
}

func (c *Capture) publishState(s State) {
	for _, st := range allStates {
		v := 0.0
		if st == s {
			v = 1
		}
		metrics.CaptureState.WithLabelValues(st.String()).Set(v)
	}
}
