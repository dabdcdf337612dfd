package rest

import "github.com/syntrixbase/userindex/internal/indexer"

// ErrorResponse is the body of every failed request. Error is a message, or
// a field to message map for validation failures.
type ErrorResponse struct {
	Success bool        `json:"success"`
	Code    string      `json:"code"`
	Error   interface{} `json:"error"`
}

// UserListResponse is returned by browse and search.
type UserListResponse struct {
	Success bool        `json:"success"`
	Users   interface{} `json:"users"`
	Total   int64       `json:"total"`
}

// CreateUserResponse is returned when a user is created or restored.
type CreateUserResponse struct {
	Success bool     `json:"success"`
	User    UserView `json:"user"`
	Message string   `json:"message,omitempty"`
}

// UserView is a written user without its credential.
type UserView struct {
	ID        string `json:"id"`
	FullName  string `json:"fullName"`
	Email     string `json:"email"`
	Pic       string `json:"pic,omitempty"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

// SyncResponse is returned by an on-demand bulk sync.
type SyncResponse struct {
	Success bool           `json:"success"`
	Report  indexer.Report `json:"report"`
	Error   string         `json:"error,omitempty"`
}

type CaptureView struct {
	Mode  string `json:"mode"`
	State string `json:"state"`
}

type BulkSyncView struct {
	Running bool            `json:"running"`
	Last    *indexer.Report `json:"last"`
}

// IndexStatusResponse describes both sync paths.
type IndexStatusResponse struct {
	Capture  *CaptureView `json:"capture"`
	BulkSync BulkSyncView `json:"bulkSync"`
}

// HealthResponse is served by /health. A degraded change capture is
// reported but does not make the process unhealthy.
type HealthResponse struct {
	Status          string `json:"status"`
	LiveSync        *bool  `json:"liveSync,omitempty"`
	BulkSyncRunning *bool  `json:"bulkSyncRunning,omitempty"`
}
