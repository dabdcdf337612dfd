// Package rest exposes user queries, the user write path and index
// administration over HTTP.
package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/schema"

	"github.com/syntrixbase/userindex/internal/indexer"
	"github.com/syntrixbase/userindex/internal/puller"
	"github.com/syntrixbase/userindex/internal/query"
	"github.com/syntrixbase/userindex/internal/users"
	"github.com/syntrixbase/userindex/pkg/model"
)

// QueryService answers browse and search requests.
type QueryService interface {
	Search(ctx context.Context, req query.Request) (*model.UserPage, error)
}

// UserService is the primary store write path.
type UserService interface {
	Create(ctx context.Context, in users.CreateInput) (*users.CreateResult, error)
	SoftDelete(ctx context.Context, id string) error
}

// Syncer runs and reports bulk syncs.
type Syncer interface {
	Run(ctx context.Context) (indexer.Report, error)
	Running() bool
	LastReport() (indexer.Report, bool)
}

// CaptureStatus reports the change capture component.
type CaptureStatus interface {
	Mode() puller.Mode
	State() puller.State
}

// FileVerifier checks the token on a picture link.
type FileVerifier interface {
	Verify(token, key string) error
}

type Handler struct {
	engine QueryService
	users  UserService
	logger *slog.Logger

	syncer  Syncer
	capture CaptureStatus

	files    FileVerifier
	filesDir string

	requestTimeout time.Duration
	maxBody        int64
}

func NewHandler(engine QueryService, users UserService, logger *slog.Logger) *Handler {
	if engine == nil {
		panic("query service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine: engine,
		users:  users,
		logger: logger.With("component", "rest"),

		requestTimeout: DefaultRequestTimeout,
		maxBody:        DefaultMaxBodySize,
	}
}

// SetLimits overrides the API request timeout and body size cap. Zero
// values keep the defaults.
func (h *Handler) SetLimits(requestTimeout time.Duration, maxBody int64) {
	if requestTimeout > 0 {
		h.requestTimeout = requestTimeout
	}
	if maxBody > 0 {
		h.maxBody = maxBody
	}
}

// SetIndexAdmin enables the admin endpoints.
func (h *Handler) SetIndexAdmin(syncer Syncer, capture CaptureStatus) {
	h.syncer = syncer
	h.capture = capture
}

// SetFileServer serves pictures from dir behind verified links.
func (h *Handler) SetFileServer(verifier FileVerifier, dir string) {
	h.files = verifier
	h.filesDir = dir
}

// Default body size limits
const (
	DefaultMaxBodySize = 1 << 20 // 1MB
)

// Default request timeouts
const (
	DefaultRequestTimeout = 30 * time.Second
	LongRequestTimeout    = 10 * time.Minute // bulk sync
)

// Error codes
const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeUnavailable      = "UNAVAILABLE"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// StatusClientClosedRequest is written when the client went away.
const StatusClientClosedRequest = 499

// queryDecoder is safe for concurrent use.
var queryDecoder = newQueryDecoder()

func newQueryDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

// Router is satisfied by *http.ServeMux.
type Router interface {
	HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request))
}

func (h *Handler) RegisterRoutes(mux Router) {
	// Queries
	mux.HandleFunc("GET /api/v1/users", withTimeout(h.handleListUsers, h.requestTimeout))
	mux.HandleFunc("GET /api/v1/users/search", withTimeout(h.handleSearchUsers, h.requestTimeout))

	// Write path
	if h.users != nil {
		mux.HandleFunc("POST /api/v1/users", withTimeout(maxBodySize(h.handleCreateUser, h.maxBody), h.requestTimeout))
		mux.HandleFunc("DELETE /api/v1/users/{id}", withTimeout(h.handleDeleteUser, h.requestTimeout))
	}

	// Index administration
	mux.HandleFunc("POST /admin/v1/index/sync", withTimeout(h.handleIndexSync, LongRequestTimeout))
	mux.HandleFunc("GET /admin/v1/index/status", withTimeout(h.handleIndexStatus, h.requestTimeout))

	// Signed picture links, not bounded by the request timeout
	mux.HandleFunc("GET /files/{key...}", h.handleFile)

	mux.HandleFunc("GET /health", withTimeout(h.handleHealth, 5*time.Second))
}

// writeError writes a structured JSON error response
func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Error: message})
}

// writeInternalError writes a 500, or 499 when the error comes from client
// cancellation.
func (h *Handler) writeInternalError(w http.ResponseWriter, err error, message string) {
	if model.IsCanceled(err) {
		w.WriteHeader(StatusClientClosedRequest)
		return
	}
	h.logger.Error(message, "error", err)
	writeError(w, http.StatusInternalServerError, ErrCodeInternalError, message)
}

// writeJSON writes a JSON response with proper error handling
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Failed to encode JSON response", "error", err)
	}
}

// maxBodySize wraps a handler with request body size limiting
func maxBodySize(next http.HandlerFunc, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		next(w, r)
	}
}

// withTimeout wraps a handler with a context timeout
func withTimeout(next http.HandlerFunc, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		next(w, r.WithContext(ctx))
	}
}
