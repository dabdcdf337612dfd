package model

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a user record does not exist in the primary store
	ErrNotFound = errors.New("user not found")
	// ErrExists is returned when an active user with the same email already exists
	ErrExists = errors.New("user already exists")
	// ErrInvalidQuery is returned when a query request is malformed
	ErrInvalidQuery = errors.New("invalid query")
	// ErrCanceled is returned when the operation is canceled by the client
	ErrCanceled = errors.New("operation canceled")

	// ErrIndexUnavailable is returned when the search index cannot be checked, created or written.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrSyncFailure marks a single record that could not be propagated to the index.
	ErrSyncFailure = errors.New("sync failure")
	// ErrFeedUnsupported is returned when the primary store cannot provide a change feed.
	ErrFeedUnsupported = errors.New("change feed unsupported")
	// ErrEnrichmentFailure is returned by signers when a picture reference cannot be resolved.
	ErrEnrichmentFailure = errors.New("enrichment failure")
	// ErrSyncInProgress is returned when a bulk sync is requested while one is already running.
	ErrSyncInProgress = errors.New("bulk sync already in progress")
)

// WrapError wraps storage errors to model errors.
// It converts context.Canceled and context.DeadlineExceeded to ErrCanceled.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	if IsCanceled(err) {
		return ErrCanceled
	}
	return err
}

// IsCanceled returns true if the error is due to context cancellation or deadline exceeded.
// Driver errors that only carry the context error in their message are matched too.
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, ErrCanceled) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "context canceled") || strings.Contains(errStr, "context deadline exceeded")
}
