package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/syntrixbase/userindex/internal/storage"
	"github.com/syntrixbase/userindex/pkg/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Server error codes returned when change streams are not available,
// e.g. on a standalone mongod.
const (
	codeIllegalOperation          = 20
	codeChangeStreamNotSupported  = 40573
	codeChangeStreamsOnlyReplicas = 40324
)

type changeEvent struct {
	OperationType string   `bson:"operationType"`
	FullDocument  *userDoc `bson:"fullDocument"`
	DocumentKey   struct {
		ID any `bson:"_id"`
	} `bson:"documentKey"`
}

func (s *userStore) Watch(ctx context.Context) (<-chan storage.ChangeEvent, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "operationType", Value: bson.D{{Key: "$in", Value: bson.A{"insert", "update", "replace", "delete"}}}},
		}}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	stream, err := s.coll.Watch(ctx, pipeline, opts)
	if err != nil {
		if isFeedUnsupported(err) {
			return nil, fmt.Errorf("%w: %v", model.ErrFeedUnsupported, err)
		}
		return nil, model.WrapError(err)
	}

	out := make(chan storage.ChangeEvent)
	go func() {
		defer close(out)
		defer stream.Close(context.Background())

		for stream.Next(ctx) {
			var raw changeEvent
			if err := stream.Decode(&raw); err != nil {
				s.logger.Warn("Failed to decode change event", "error", err)
				continue
			}
			evt := storage.ChangeEvent{
				Operation:   storage.Operation(raw.OperationType),
				DocumentKey: idString(raw.DocumentKey.ID),
			}
			if raw.FullDocument != nil {
				evt.FullDocument = raw.FullDocument.toModel()
			}

			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
		if err := stream.Err(); err != nil && !model.IsCanceled(err) {
			s.logger.Warn("Change stream ended with error", "error", err)
		}
	}()

	return out, nil
}

func isFeedUnsupported(err error) bool {
	var se mongo.ServerError
	if !errors.As(err, &se) {
		return false
	}
	return se.HasErrorCode(codeChangeStreamNotSupported) ||
		se.HasErrorCode(codeChangeStreamsOnlyReplicas) ||
		se.HasErrorCode(codeIllegalOperation)
}
