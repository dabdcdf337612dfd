// Package enrich turns stored picture references into short-lived signed URLs.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/syntrixbase/userindex/internal/enrich/config"
	"github.com/syntrixbase/userindex/internal/metrics"
	"github.com/syntrixbase/userindex/pkg/model"
)

// Signer produces a time-limited URL for a stored object key.
type Signer interface {
	Sign(ctx context.Context, key string) (string, error)
}

// URLCache keeps signed URLs for less than their validity.
type URLCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, url string)
	Close()
}

// Resolver resolves picture references. It never fails: any problem yields
// a nil URL and a warning.
type Resolver struct {
	signer  Signer
	cache   URLCache
	timeout time.Duration
	logger  *slog.Logger
}

// NewResolver creates a resolver. A nil signer disables resolution and a
// nil cache disables caching.
func NewResolver(signer Signer, cache URLCache, timeout time.Duration, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if cache == nil {
		cache = noCache{}
	}
	if timeout <= 0 {
		timeout = config.DefaultConfig().Timeout
	}
	return &Resolver{
		signer:  signer,
		cache:   cache,
		timeout: timeout,
		logger:  logger.With("component", "enrich"),
	}
}

// Resolve returns a signed URL for ref, or nil when ref is empty or cannot
// be signed.
func (r *Resolver) Resolve(ctx context.Context, ref string) *string {
	if ref == "" || r.signer == nil {
		metrics.EnrichmentTotal.WithLabelValues("empty").Inc()
		return nil
	}

	if url, ok := r.cache.Get(ctx, ref); ok {
		metrics.EnrichmentTotal.WithLabelValues("ok").Inc()
		return &url
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	url, err := r.signer.Sign(ctx, ref)
	if err != nil {
		metrics.EnrichmentTotal.WithLabelValues("error").Inc()
		r.logger.Warn("Failed to sign picture reference", "ref", ref,
			"error", fmt.Errorf("%w: %w", model.ErrEnrichmentFailure, err))
		return nil
	}

	metrics.EnrichmentTotal.WithLabelValues("ok").Inc()
	r.cache.Set(ctx, ref, url)
	return &url
}

// Close releases the cache connection.
func (r *Resolver) Close() {
	r.cache.Close()
}
