// Package index maintains the search-optimized projection of user records.
package index

import (
	"context"
	"errors"
	"time"

	"github.com/syntrixbase/userindex/pkg/model"
)

// Field names of an index document.
const (
	FieldFullName      = "fullName"
	FieldFullNameLower = "fullNameLower"
	FieldEmail         = "email"
	FieldEmailLower    = "emailLower"
	FieldPic           = "pic"
	FieldDeleted       = "delete"
	FieldCreatedAt     = "createdAt"
	FieldUpdatedAt     = "updatedAt"

	// Exact timestamps. The datetime fields above sort and filter but come
	// back from the index at second precision.
	FieldCreatedAtExact = "createdAtExact"
	FieldUpdatedAtExact = "updatedAtExact"
)

var (
	// ErrIndexNotFound is returned by a Backend when the index has not been created.
	ErrIndexNotFound = errors.New("index does not exist")
	// ErrIndexClosed is returned by a Backend after Close.
	ErrIndexClosed = errors.New("index is closed")
)

// Document is the indexed projection of a user. The record id is the
// document id and is not repeated here.
type Document struct {
	FullName  string
	Email     string
	Pic       string
	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Project builds the index document for a record. Transient and secret
// fields (password, resolved URLs) never reach the index.
func Project(u *model.User) *Document {
	return &Document{
		FullName:  u.FullName,
		Email:     u.Email,
		Pic:       u.Pic,
		Deleted:   u.Deleted,
		CreatedAt: u.CreatedAt.UTC(),
		UpdatedAt: u.UpdatedAt.UTC(),
	}
}

// FieldType is the engine-neutral type of a mapped field.
type FieldType int

const (
	// FieldText is analyzed full text.
	FieldText FieldType = iota
	// FieldKeyword is indexed as a single exact term.
	FieldKeyword
	FieldBoolean
	FieldDateTime
	// FieldStored is kept verbatim and never indexed.
	FieldStored
)

type FieldMapping struct {
	Name  string
	Type  FieldType
	Store bool
}

// Mapping is the fixed schema of the index.
type Mapping struct {
	Fields []FieldMapping
}

// UserMapping is the mapping of the users index. Lower-cased shadow fields
// back case-insensitive substring matching and are not stored.
func UserMapping() Mapping {
	return Mapping{Fields: []FieldMapping{
		{Name: FieldFullName, Type: FieldText, Store: true},
		{Name: FieldFullNameLower, Type: FieldKeyword},
		{Name: FieldEmail, Type: FieldKeyword, Store: true},
		{Name: FieldEmailLower, Type: FieldKeyword},
		{Name: FieldPic, Type: FieldKeyword, Store: true},
		{Name: FieldDeleted, Type: FieldBoolean, Store: true},
		{Name: FieldCreatedAt, Type: FieldDateTime, Store: true},
		{Name: FieldUpdatedAt, Type: FieldDateTime, Store: true},
		{Name: FieldCreatedAtExact, Type: FieldStored, Store: true},
		{Name: FieldUpdatedAtExact, Type: FieldStored, Store: true},
	}}
}

// Query selects documents. The zero value matches every document.
type Query struct {
	// Deleted filters on the logical-deletion flag when non-nil.
	Deleted *bool
	// Contains is a lower-cased substring that must occur in at least one
	// of ContainsFields. Empty disables the predicate.
	Contains       string
	ContainsFields []string
	// SortBy lists field names, "-" prefixed for descending order.
	SortBy []string
	From   int
	Size   int
}

type Hit struct {
	ID  string
	Doc Document
}

type SearchResult struct {
	Hits  []Hit
	Total int64
}

// Backend is the index storage engine.
type Backend interface {
	// Exists reports whether the index is present and usable.
	Exists(ctx context.Context) (bool, error)
	// Create creates the index with the mapping, or opens it if another
	// creator got there first.
	Create(ctx context.Context, m Mapping) error
	// Index replaces the whole document stored under id. The write is
	// visible to searches once Index returns.
	Index(ctx context.Context, id string, doc *Document) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, q Query) (*SearchResult, error)
	Count(ctx context.Context) (uint64, error)
	Close() error
}
