package mongo

import (
	"fmt"
	"time"

	"github.com/syntrixbase/userindex/internal/storage"
	"github.com/syntrixbase/userindex/pkg/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// userDoc is the persisted shape of a user. Field names match the existing
// collection; _id is usually an ObjectID but string ids are tolerated.
type userDoc struct {
	ID        any       `bson:"_id,omitempty"`
	FullName  string    `bson:"fullName"`
	Email     string    `bson:"email"`
	Password  string    `bson:"password"`
	Pic       string    `bson:"pic,omitempty"`
	Deleted   bool      `bson:"delete"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func (d *userDoc) toModel() *model.User {
	return &model.User{
		ID:        idString(d.ID),
		FullName:  d.FullName,
		Email:     d.Email,
		Password:  d.Password,
		Pic:       d.Pic,
		Deleted:   d.Deleted,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

func fromModel(u *model.User) *userDoc {
	d := &userDoc{
		FullName:  u.FullName,
		Email:     u.Email,
		Password:  u.Password,
		Pic:       u.Pic,
		Deleted:   u.Deleted,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if u.ID != "" {
		d.ID = idValue(u.ID)
	}
	return d
}

// idValue converts a record id to the value stored in _id.
func idValue(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

func idString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}

func filterDoc(f storage.Filter) bson.D {
	doc := bson.D{}
	if f.Deleted != nil {
		if *f.Deleted {
			doc = append(doc, bson.E{Key: "delete", Value: true})
		} else {
			// records created before the flag existed have no "delete" field
			doc = append(doc, bson.E{Key: "delete", Value: bson.D{{Key: "$ne", Value: true}}})
		}
	}
	if !f.UpdatedBefore.IsZero() {
		doc = append(doc, bson.E{Key: "updatedAt", Value: bson.D{{Key: "$lt", Value: f.UpdatedBefore}}})
	}
	return doc
}

func sortDoc(opts storage.FindOptions) bson.D {
	if opts.SortField == "" {
		return nil
	}
	dir := 1
	if opts.Descending {
		dir = -1
	}
	return bson.D{{Key: opts.SortField, Value: dir}, {Key: "_id", Value: dir}}
}
