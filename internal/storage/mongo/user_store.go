package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/syntrixbase/userindex/internal/storage"
	"github.com/syntrixbase/userindex/pkg/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type userStore struct {
	client    *mongo.Client
	coll      *mongo.Collection
	opTimeout time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewUserStore returns a storage.UserStore over the given collection. client
// may be nil when the caller owns the connection lifecycle.
func NewUserStore(client *mongo.Client, coll *mongo.Collection, opTimeout time.Duration, logger *slog.Logger) storage.UserStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &userStore{
		client:    client,
		coll:      coll,
		opTimeout: opTimeout,
		logger:    logger.With("component", "user-store"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// withTimeout bounds a single store call.
func (s *userStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func (s *userStore) findOne(ctx context.Context, filter bson.D) (*model.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc userDoc
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		return nil, model.WrapError(err)
	}
	return doc.toModel(), nil
}

func (s *userStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	return s.findOne(ctx, bson.D{{Key: "_id", Value: idValue(id)}})
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

func (s *userStore) FindMany(ctx context.Context, filter storage.Filter, opts storage.FindOptions) ([]*model.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	findOpts := options.Find().SetSkip(opts.Skip)
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}
	if sort := sortDoc(opts); sort != nil {
		findOpts.SetSort(sort)
	}

	cursor, err := s.coll.Find(ctx, filterDoc(filter), findOpts)
	if err != nil {
		return nil, model.WrapError(err)
	}
	defer cursor.Close(ctx)

	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, model.WrapError(err)
	}
	users := make([]*model.User, len(docs))
	for i := range docs {
		users[i] = docs[i].toModel()
	}
	return users, nil
}

// Scan is bounded by ctx only: a full collection walk may outlive opTimeout.
func (s *userStore) Scan(ctx context.Context, filter storage.Filter, batchSize int, fn func(*model.User) error) error {
	findOpts := options.Find()
	if batchSize > 0 {
		findOpts.SetBatchSize(int32(batchSize))
	}

	cursor, err := s.coll.Find(ctx, filterDoc(filter), findOpts)
	if err != nil {
		return model.WrapError(err)
	}
	defer cursor.Close(context.Background())

	for cursor.Next(ctx) {
		var doc userDoc
		if err := cursor.Decode(&doc); err != nil {
			s.logger.Warn("Skipping undecodable user record", "error", err)
			continue
		}
		if err := fn(doc.toModel()); err != nil {
			return err
		}
	}
	return model.WrapError(cursor.Err())
}

func (s *userStore) Count(ctx context.Context, filter storage.Filter) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := s.coll.CountDocuments(ctx, filterDoc(filter))
	return n, model.WrapError(err)
}

func (s *userStore) Create(ctx context.Context, user *model.User) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.now()
	if user.ID == "" {
		user.ID = primitive.NewObjectID().Hex()
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := s.coll.InsertOne(ctx, fromModel(user)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.ErrExists
		}
		return model.WrapError(err)
	}
	return nil
}

func (s *userStore) Replace(ctx context.Context, user *model.User) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user.UpdatedAt = s.now()
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "fullName", Value: user.FullName},
		{Key: "email", Value: user.Email},
		{Key: "password", Value: user.Password},
		{Key: "pic", Value: user.Pic},
		{Key: "delete", Value: user.Deleted},
		{Key: "updatedAt", Value: user.UpdatedAt},
	}}}

	res, err := s.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: idValue(user.ID)}}, update)
	if err != nil {
		return model.WrapError(err)
	}
	if res.MatchedCount == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *userStore) SetDeleted(ctx context.Context, id string, deleted bool) (*model.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "delete", Value: deleted},
		{Key: "updatedAt", Value: s.now()},
	}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc userDoc
	err := s.coll.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: idValue(id)}}, update, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		return nil, model.WrapError(err)
	}
	return doc.toModel(), nil
}

func (s *userStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: idValue(id)}})
	if err != nil {
		return model.WrapError(err)
	}
	if res.DeletedCount == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *userStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}},
		{Keys: bson.D{{Key: "delete", Value: 1}, {Key: "updatedAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("ensure user indexes: %w", err)
	}
	return nil
}

func (s *userStore) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}
