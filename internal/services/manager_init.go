package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/syntrixbase/userindex/internal/enrich"
	"github.com/syntrixbase/userindex/internal/gateway/rest"
	"github.com/syntrixbase/userindex/internal/index"
	"github.com/syntrixbase/userindex/internal/index/bleve"
	"github.com/syntrixbase/userindex/internal/indexer"
	"github.com/syntrixbase/userindex/internal/metrics"
	pubsub "github.com/syntrixbase/userindex/internal/pubsub/nats"
	"github.com/syntrixbase/userindex/internal/puller"
	"github.com/syntrixbase/userindex/internal/query"
	"github.com/syntrixbase/userindex/internal/server"
	"github.com/syntrixbase/userindex/internal/users"
)

// Init builds every component. Nothing runs until Start.
func (m *Manager) Init(ctx context.Context) error {
	if m.cfg.Metrics.Enabled {
		metrics.Register()
	}

	if err := m.initStorage(ctx); err != nil {
		return err
	}
	if err := m.initIndex(ctx); err != nil {
		return err
	}

	m.bulkSync = indexer.NewBulkSync(m.cfg.Indexer, m.store, m.writer, m.logger)
	m.capture = puller.NewCapture(m.cfg.Puller, m.store, m.writer, m.logger)
	m.engine = query.NewEngine(m.cfg.Query, m.searcher, m.resolver, m.logger)

	m.users = users.NewService(m.cfg.Users, m.store, m.writer, m.logger)
	if m.cfg.Users.Purge.Enabled {
		m.purger = users.NewPurgeWorker(m.store, m.users, m.cfg.Users.Purge, m.logger)
	}

	if m.cfg.NATS.Enabled() {
		m.resync = pubsub.NewResyncListener(m.cfg.NATS, m.bulkSync, m.logger)
	}

	if m.opts.RunHTTP {
		m.initServer()
	}
	return nil
}

func (m *Manager) initStorage(ctx context.Context) error {
	store, err := storeFactory(ctx, m.cfg.Storage, m.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize primary store: %w", err)
	}
	m.store = store

	// The lookup indexes only speed up reads, so a failure is not fatal.
	if err := store.EnsureIndexes(ctx); err != nil {
		m.logger.Warn("Failed to ensure primary store indexes", "error", err)
	}
	m.logger.Info("Connected to primary store", "backend", m.cfg.Storage.Backend)
	return nil
}

func (m *Manager) initIndex(ctx context.Context) error {
	m.backend = bleve.New(m.indexPath(), m.logger)
	schema := index.NewSchemaManager(m.backend, index.UserMapping(), m.logger)
	m.writer = index.NewWriter(m.backend, schema)
	m.searcher = index.NewSearcher(m.backend, schema)

	// An index that cannot be created now is retried on first use.
	if err := schema.EnsureIndex(ctx); err != nil {
		m.logger.Warn("Search index not ready", "name", m.cfg.Index.Name, "error", err)
	}

	resolver, tokens, err := enrich.NewFromConfig(ctx, m.cfg.Enrich, m.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize picture signer: %w", err)
	}
	m.resolver = resolver
	m.tokens = tokens
	return nil
}

func (m *Manager) initServer() {
	m.server = server.New(m.cfg.Server, m.logger, server.WithRequestObserver(metrics.HTTPObserver{}))

	h := rest.NewHandler(m.engine, m.users, m.logger)
	h.SetLimits(m.cfg.Server.RequestTimeout, m.cfg.Server.MaxBodySize)
	h.SetIndexAdmin(m.bulkSync, m.capture)
	if m.tokens != nil {
		h.SetFileServer(m.tokens, m.cfg.Enrich.Token.Dir)
	}
	h.RegisterRoutes(routes{m.server})

	if m.cfg.Metrics.Enabled {
		m.server.RegisterHTTPHandler("GET "+m.cfg.Metrics.Path, metrics.Handler())
	}
}

// routes adapts server.Service to rest.Router.
type routes struct {
	srv server.Service
}

func (r routes) HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	r.srv.RegisterHTTPHandler(pattern, http.HandlerFunc(handler))
}
