// Package storage defines the primary store boundary for user records.
package storage

import (
	"context"
	"time"

	"github.com/syntrixbase/userindex/pkg/model"
)

// Operation is the kind of mutation reported by the change feed.
type Operation string

const (
	OpInsert  Operation = "insert"
	OpUpdate  Operation = "update"
	OpReplace Operation = "replace"
	OpDelete  Operation = "delete"
)

// ChangeEvent is one mutation notification. FullDocument is informational:
// index writes always re-read the record by DocumentKey.
type ChangeEvent struct {
	Operation    Operation
	DocumentKey  string
	FullDocument *model.User
}

// Filter restricts which records a read returns. Zero value matches everything.
type Filter struct {
	// Deleted matches the logical-deletion flag when non-nil.
	Deleted *bool
	// UpdatedBefore matches records last updated strictly before the time when non-zero.
	UpdatedBefore time.Time
}

// FindOptions controls ordering and paging of FindMany.
type FindOptions struct {
	// SortField is a record field name such as "updatedAt". Empty keeps natural order.
	SortField  string
	Descending bool
	Skip       int64
	// Limit of 0 means no limit.
	Limit int64
}

// Deleted returns a filter on the logical-deletion flag.
func Deleted(v bool) Filter {
	return Filter{Deleted: &v}
}

// UserStore is the authoritative store of user records.
type UserStore interface {
	// FindByID returns model.ErrNotFound when no record has the id.
	FindByID(ctx context.Context, id string) (*model.User, error)
	// FindByEmail matches deleted and active records alike.
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindMany(ctx context.Context, filter Filter, opts FindOptions) ([]*model.User, error)
	// Scan streams every matching record through fn in cursor batches.
	// It stops at the first error returned by fn.
	Scan(ctx context.Context, filter Filter, batchSize int, fn func(*model.User) error) error
	Count(ctx context.Context, filter Filter) (int64, error)

	// Create inserts a new record, assigning its ID and timestamps.
	Create(ctx context.Context, user *model.User) error
	// Replace overwrites the mutable fields of an existing record and bumps UpdatedAt.
	Replace(ctx context.Context, user *model.User) error
	// SetDeleted flips the logical-deletion flag and returns the updated record.
	SetDeleted(ctx context.Context, id string, deleted bool) (*model.User, error)
	// Delete removes the record permanently.
	Delete(ctx context.Context, id string) error

	// Watch opens the live change feed. It fails with an error wrapping
	// model.ErrFeedUnsupported when the deployment cannot provide one.
	// The channel is closed when the feed ends or ctx is canceled.
	Watch(ctx context.Context) (<-chan ChangeEvent, error)

	EnsureIndexes(ctx context.Context) error
	Close(ctx context.Context) error
}
