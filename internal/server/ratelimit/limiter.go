// Package ratelimit provides per-client request rate limiting.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// Limiter decides whether a request keyed by client should proceed.
type Limiter interface {
	Allow(key string) bool
}

// Config holds the configuration for rate limiting.
type Config struct {
	// Requests is the number of requests allowed per Window. It is also the burst size.
	Requests int
	Window   time.Duration
	// MaxClients bounds the number of tracked keys; the least recently seen key is evicted.
	MaxClients int
}

type tokenLimiter struct {
	mu      sync.Mutex
	clients *lru.Cache[string, *rate.Limiter]
	limit   rate.Limit
	burst   int
}

// NewLimiter returns a token bucket limiter per key.
func NewLimiter(cfg Config) Limiter {
	size := cfg.MaxClients
	if size <= 0 {
		size = 10000
	}
	// lru.New only fails for a non-positive size
	clients, _ := lru.New[string, *rate.Limiter](size)
	return &tokenLimiter{
		clients: clients,
		limit:   rate.Limit(float64(cfg.Requests) / cfg.Window.Seconds()),
		burst:   cfg.Requests,
	}
}

func (l *tokenLimiter) Allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.clients.Get(key)
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.clients.Add(key, lim)
	}
	l.mu.Unlock()
	return lim.Allow()
}

// GetClientIP extracts the client IP address from the request.
// It checks X-Forwarded-For header first (for proxied requests),
// then X-Real-IP, and finally falls back to RemoteAddr.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
