// Package nats triggers bulk syncs from messages on a NATS subject.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/syntrixbase/userindex/internal/indexer"
	"github.com/syntrixbase/userindex/internal/pubsub/config"
	"github.com/syntrixbase/userindex/pkg/model"
)

// natsConnectFunc allows test injection
var natsConnectFunc = nats.Connect

// Syncer runs one bulk sync.
type Syncer interface {
	Run(ctx context.Context) (indexer.Report, error)
}

// ResyncReply is sent back when the trigger message has a reply subject.
type ResyncReply struct {
	Accepted bool            `json:"accepted"`
	Report   *indexer.Report `json:"report,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// ResyncListener runs a bulk sync in the background for every message on
// the resync subject. Requests that arrive while a sync runs are dropped.
type ResyncListener struct {
	cfg    config.Config
	syncer Syncer
	logger *slog.Logger

	mu      sync.Mutex
	nc      *nats.Conn
	sub     *nats.Subscription
	publish func(subject string, data []byte) error
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewResyncListener(cfg config.Config, syncer Syncer, logger *slog.Logger) *ResyncListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResyncListener{
		cfg:    cfg,
		syncer: syncer,
		logger: logger.With("component", "resync-listener"),
	}
}

// Start connects and subscribes. ctx bounds the lifetime of triggered syncs.
func (l *ResyncListener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.nc != nil {
		return errors.New("resync listener already started")
	}

	nc, err := natsConnectFunc(l.cfg.URL,
		nats.Name("userindex"),
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true),
	)
	if err != nil {
		return fmt.Errorf("connect nats %s: %w", l.cfg.URL, err)
	}

	l.ctx, l.cancel = context.WithCancel(ctx)
	l.publish = nc.Publish

	sub, err := nc.Subscribe(l.cfg.ResyncSubject, l.handle)
	if err != nil {
		l.cancel()
		nc.Close()
		return fmt.Errorf("subscribe %s: %w", l.cfg.ResyncSubject, err)
	}

	l.nc, l.sub = nc, sub
	l.logger.Info("Listening for resync requests", "subject", l.cfg.ResyncSubject)
	return nil
}

func (l *ResyncListener) handle(msg *nats.Msg) {
	// Add happens under mu so it cannot race the Wait in Stop, which
	// cancels ctx under the same lock first.
	l.mu.Lock()
	ctx := l.ctx
	if ctx == nil || ctx.Err() != nil {
		l.mu.Unlock()
		return
	}
	l.wg.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.wg.Done()
		l.logger.Info("Resync requested", "subject", msg.Subject)

		report, err := l.syncer.Run(ctx)
		reply := ResyncReply{Accepted: true}
		switch {
		case errors.Is(err, model.ErrSyncInProgress):
			l.logger.Info("Resync skipped, bulk sync already running")
			reply = ResyncReply{Error: err.Error()}
		case err != nil:
			l.logger.Warn("Resync failed", "error", err)
			reply.Report, reply.Error = &report, err.Error()
		default:
			reply.Report = &report
		}
		l.respond(msg.Reply, reply)
	}()
}

func (l *ResyncListener) respond(subject string, reply ResyncReply) {
	if subject == "" {
		return
	}
	data, err := json.Marshal(reply)
	if err != nil {
		l.logger.Warn("Failed to encode resync reply", "error", err)
		return
	}

	l.mu.Lock()
	publish := l.publish
	l.mu.Unlock()
	if publish == nil {
		return
	}
	if err := publish(subject, data); err != nil {
		l.logger.Warn("Failed to send resync reply", "subject", subject, "error", err)
	}
}

// Stop unsubscribes, cancels running syncs and closes the connection.
func (l *ResyncListener) Stop(ctx context.Context) error {
	l.mu.Lock()
	sub, nc := l.sub, l.nc
	if l.cancel != nil {
		l.cancel()
	}
	l.mu.Unlock()

	if sub != nil {
		if err := sub.Unsubscribe(); err != nil {
			l.logger.Warn("Failed to unsubscribe", "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	if nc != nil {
		nc.Close()
	}
	return err
}
