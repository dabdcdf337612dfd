package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/syntrixbase/userindex/internal/server/ratelimit"
)

const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestID returns the id assigned to the request, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// errorBody matches the envelope the REST handlers write.
type errorBody struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Error   string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorBody{Code: code, Error: message}); err != nil {
		slog.Warn("Failed to encode error response", "error", err)
	}
}

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// wrapMiddleware builds the chain around h. The first entry runs outermost,
// so a panic anywhere below is still answered and logged with its id.
func (s *serverImpl) wrapMiddleware(h http.Handler) http.Handler {
	chain := []Middleware{s.recoverPanics, assignRequestID, s.accessLog, securityHeaders}
	if s.rateLimiter != nil {
		chain = append(chain, s.limitRate)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h
}

func (s *serverImpl) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			s.logger.Error("Panic recovered",
				"request_id", RequestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"error", rec,
				"stack", string(debug.Stack()),
			)
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}

func assignRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func (s *serverImpl) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(started)

		if s.observer != nil {
			s.observer.ObserveRequest(r.Method, r.Pattern, rec.status, elapsed.Seconds())
		}
		s.logger.Log(r.Context(), accessLevel(r.Context(), rec.status), "HTTP Request",
			"request_id", RequestID(r.Context()),
			"method", r.Method,
			"pattern", r.Pattern,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", elapsed.Milliseconds(),
			"ip", ratelimit.GetClientIP(r),
		)
	})
}

// accessLevel logs server faults at error. Client cancellations (499 or a
// canceled request context) only warn.
func accessLevel(ctx context.Context, status int) slog.Level {
	switch {
	case status == 499:
		return slog.LevelWarn
	case status >= 500 && ctx.Err() != nil:
		return slog.LevelWarn
	case status >= 500:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

func (s *serverImpl) limitRate(next http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(s.cfg.RateLimit.Window.Seconds()))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.rateLimiter.Allow(ratelimit.GetClientIP(r)) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Retry-After", retryAfter)
		writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}
