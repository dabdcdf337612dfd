package enrich

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/syntrixbase/userindex/internal/enrich/config"
	"github.com/syntrixbase/userindex/internal/metrics"
)

type noCache struct{}

func (noCache) Get(context.Context, string) (string, bool) { return "", false }
func (noCache) Set(context.Context, string, string)        {}
func (noCache) Close()                                     {}

// MemoryCache is an in-process LRU with per-entry expiry.
type MemoryCache struct {
	lru *expirable.LRU[string, string]
}

func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{lru: expirable.NewLRU[string, string](size, nil, ttl)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool) {
	url, ok := c.lru.Get(key)
	metrics.URLCacheTotal.WithLabelValues(config.CacheMemory, hitLabel(ok)).Inc()
	return url, ok
}

func (c *MemoryCache) Set(_ context.Context, key, url string) {
	c.lru.Add(key, url)
}

func (c *MemoryCache) Close() {
	c.lru.Purge()
}

func hitLabel(ok bool) string {
	if ok {
		return "hit"
	}
	return "miss"
}
