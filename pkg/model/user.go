package model

import "time"

// User is the authoritative user record held by the primary store.
type User struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	FullName  string    `bson:"fullName" json:"fullName"`
	Email     string    `bson:"email" json:"email"`
	Password  string    `bson:"password" json:"-"`
	Pic       string    `bson:"pic,omitempty" json:"pic,omitempty"`
	Deleted   bool      `bson:"delete" json:"delete"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// UserEntry is a single query result. SignedPicURL is nil when the user has
// no picture or the picture reference could not be resolved.
type UserEntry struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	SignedPicURL *string   `json:"signedPicUrl"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Score        int       `json:"score,omitempty"`
}

// UserPage is one page of query results. Total counts every match, not just
// the entries on this page.
type UserPage struct {
	Users []UserEntry `json:"users"`
	Total int64       `json:"total"`
}

// EmptyPage returns a page with no entries and a zero total.
func EmptyPage() *UserPage {
	return &UserPage{Users: []UserEntry{}}
}
