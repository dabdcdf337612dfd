// Package users implements the write path for user records. Every write
// goes to the primary store first and is then propagated to the index.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/syntrixbase/userindex/internal/metrics"
	"github.com/syntrixbase/userindex/internal/users/config"
	"github.com/syntrixbase/userindex/pkg/model"
)

// Store is the part of the primary store the write path uses.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	Replace(ctx context.Context, user *model.User) error
	SetDeleted(ctx context.Context, id string, deleted bool) (*model.User, error)
	Delete(ctx context.Context, id string) error
}

// IndexWriter propagates records into the index.
type IndexWriter interface {
	Upsert(ctx context.Context, u *model.User) error
	Remove(ctx context.Context, id string) error
}

type Service struct {
	cfg    config.Config
	store  Store
	index  IndexWriter
	logger *slog.Logger
}

func NewService(cfg config.Config, store Store, index IndexWriter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		cfg:    cfg,
		store:  store,
		index:  index,
		logger: logger.With("component", "users"),
	}
}

// CreateResult reports whether Create restored a soft-deleted record.
type CreateResult struct {
	User     *model.User
	Restored bool
}

// Create adds a user. An active user with the same email yields
// model.ErrExists; a soft-deleted one is restored with the new values.
func (s *Service) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	email := strings.TrimSpace(in.Email)

	existing, err := s.store.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if existing != nil && !existing.Deleted {
		return nil, model.ErrExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	res := &CreateResult{}
	if existing != nil {
		existing.FullName = strings.TrimSpace(in.FullName)
		existing.Password = string(hash)
		existing.Pic = in.Pic
		existing.Deleted = false
		if err := s.store.Replace(ctx, existing); err != nil {
			return nil, fmt.Errorf("restore user: %w", err)
		}
		s.logger.Info("Restored soft-deleted user", "id", existing.ID)
		res.User, res.Restored = existing, true
	} else {
		u := &model.User{
			FullName: strings.TrimSpace(in.FullName),
			Email:    email,
			Password: string(hash),
			Pic:      in.Pic,
		}
		if err := s.store.Create(ctx, u); err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		res.User = u
	}

	s.propagate(ctx, res.User)
	return res, nil
}

// SoftDelete marks the user deleted. The index keeps the document with its
// deleted flag set so queries stop returning it.
func (s *Service) SoftDelete(ctx context.Context, id string) error {
	u, err := s.store.SetDeleted(ctx, id, true)
	if err != nil {
		return err
	}
	s.propagate(ctx, u)
	return nil
}

// Purge removes a user permanently from the store and the index.
func (s *Service) Purge(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	err := s.index.Remove(ctx, id)
	metrics.SyncOperationsTotal.WithLabelValues(metrics.SourcePurge, "remove", metrics.Result(err)).Inc()
	if err != nil {
		s.logger.Warn("Failed to remove purged user from index", "id", id, "error", err)
	}
	return nil
}

// propagate upserts u right away. A failure is only logged: change
// capture or the next bulk sync converges the index.
func (s *Service) propagate(ctx context.Context, u *model.User) {
	err := s.index.Upsert(ctx, u)
	metrics.SyncOperationsTotal.WithLabelValues(metrics.SourceWrite, "upsert", metrics.Result(err)).Inc()
	if err != nil {
		s.logger.Warn("Failed to index written user", "id", u.ID, "error", err)
	}
}
