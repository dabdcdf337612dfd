// Package services wires the components into one process and owns their
// lifecycle.
package services

import (
	"context"
	"log/slog"
	"sync"

	"github.com/syntrixbase/userindex/internal/config"
	"github.com/syntrixbase/userindex/internal/enrich"
	"github.com/syntrixbase/userindex/internal/index"
	"github.com/syntrixbase/userindex/internal/index/bleve"
	"github.com/syntrixbase/userindex/internal/indexer"
	pubsub "github.com/syntrixbase/userindex/internal/pubsub/nats"
	"github.com/syntrixbase/userindex/internal/puller"
	"github.com/syntrixbase/userindex/internal/query"
	"github.com/syntrixbase/userindex/internal/server"
	"github.com/syntrixbase/userindex/internal/storage"
	storageconfig "github.com/syntrixbase/userindex/internal/storage/config"
	"github.com/syntrixbase/userindex/internal/storage/memory"
	mongostore "github.com/syntrixbase/userindex/internal/storage/mongo"
	"github.com/syntrixbase/userindex/internal/users"
)

type Options struct {
	// RunHTTP starts the HTTP server.
	RunHTTP bool
	// RunBackground starts change capture, the purge worker and the NATS
	// listener.
	RunBackground bool
	// StartupSync runs one bulk sync before anything else starts.
	StartupSync bool
}

// ServeOptions runs everything.
func ServeOptions() Options {
	return Options{RunHTTP: true, RunBackground: true, StartupSync: true}
}

// storeFactory allows test injection
var storeFactory = func(ctx context.Context, cfg storageconfig.Config, logger *slog.Logger) (storage.UserStore, error) {
	if cfg.Backend == storageconfig.BackendMemory {
		return memory.New(), nil
	}
	client, err := mongostore.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	return mongostore.NewUserStore(client, coll, cfg.OperationTimeout, logger), nil
}

type Manager struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger

	store    storage.UserStore
	backend  *bleve.Backend
	writer   *index.Writer
	searcher *index.Searcher
	resolver *enrich.Resolver
	tokens   *enrich.TokenSigner

	bulkSync *indexer.BulkSync
	capture  *puller.Capture
	engine   *query.Engine
	users    *users.Service
	purger   *users.PurgeWorker
	resync   *pubsub.ResyncListener
	server   server.Service

	serverErr chan error
	wg        sync.WaitGroup
}

func NewManager(cfg *config.Config, opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:       cfg,
		opts:      opts,
		logger:    logger,
		serverErr: make(chan error, 1),
	}
}

// BulkSync is available after Init.
func (m *Manager) BulkSync() *indexer.BulkSync {
	return m.bulkSync
}

// Engine is available after Init.
func (m *Manager) Engine() *query.Engine {
	return m.engine
}

// Capture is available after Init.
func (m *Manager) Capture() *puller.Capture {
	return m.capture
}

// Users is available after Init.
func (m *Manager) Users() *users.Service {
	return m.users
}

// Addr is the bound HTTP address, or "" when no server runs.
func (m *Manager) Addr() string {
	if m.server == nil {
		return ""
	}
	return m.server.Addr()
}

// ServerErrors reports a fatal HTTP server error.
func (m *Manager) ServerErrors() <-chan error {
	return m.serverErr
}

func (m *Manager) indexPath() string {
	if m.cfg.Index.InMemory {
		return ""
	}
	return m.cfg.Index.Path
}
