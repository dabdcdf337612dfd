package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/rueidis"

	"github.com/syntrixbase/userindex/internal/enrich/config"
	"github.com/syntrixbase/userindex/internal/metrics"
)

// ValkeyCache shares signed URLs between service instances through a
// Valkey (or Redis) server. Errors degrade to cache misses.
type ValkeyCache struct {
	client rueidis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

func NewValkeyCache(cfg config.ValkeyConfig, ttl time.Duration, logger *slog.Logger) (*ValkeyCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{cfg.Addr},
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}
	return &ValkeyCache{
		client: client,
		prefix: cfg.KeyPrefix,
		ttl:    ttl,
		logger: logger.With("component", "url-cache"),
	}, nil
}

func (c *ValkeyCache) Get(ctx context.Context, key string) (string, bool) {
	cmd := c.client.B().Get().Key(c.prefix + key).Build()
	url, err := c.client.Do(ctx, cmd).ToString()
	if err != nil {
		if !rueidis.IsRedisNil(err) {
			c.logger.Debug("Cache read failed", "key", key, "error", err)
		}
		metrics.URLCacheTotal.WithLabelValues(config.CacheValkey, "miss").Inc()
		return "", false
	}
	metrics.URLCacheTotal.WithLabelValues(config.CacheValkey, "hit").Inc()
	return url, true
}

func (c *ValkeyCache) Set(ctx context.Context, key, url string) {
	cmd := c.client.B().Set().Key(c.prefix + key).Value(url).Ex(c.ttl).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		c.logger.Debug("Cache write failed", "key", key, "error", err)
	}
}

func (c *ValkeyCache) Close() {
	c.client.Close()
}
