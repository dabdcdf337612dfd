// Package memory is an in-process storage.UserStore with a change feed.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/syntrixbase/userindex/internal/storage"
	"github.com/syntrixbase/userindex/pkg/model"
)

const feedBuffer = 1024

// Option customizes a Store.
type Option func(*Store)

// WithoutChangeFeed makes Watch fail like a standalone MongoDB server.
func WithoutChangeFeed() Option {
	return func(s *Store) { s.noFeed = true }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

type Store struct {
	mu     sync.RWMutex
	users  map[string]*model.User
	now    func() time.Time
	noFeed bool

	subMu  sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

var _ storage.UserStore = (*Store)(nil)

func New(opts ...Option) *Store {
	s := &Store{
		users: make(map[string]*model.User),
		now:   func() time.Time { return time.Now().UTC() },
		subs:  make(map[*subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func clone(u *model.User) *model.User {
	c := *u
	return &c
}

func (s *Store) FindByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return clone(u), nil
}

func (s *Store) FindByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return clone(u), nil
		}
	}
	return nil, model.ErrNotFound
}

func matches(u *model.User, f storage.Filter) bool {
	if f.Deleted != nil && u.Deleted != *f.Deleted {
		return false
	}
	if !f.UpdatedBefore.IsZero() && !u.UpdatedAt.Before(f.UpdatedBefore) {
		return false
	}
	return true
}

// selectUsers returns matching copies ordered by id.
func (s *Store) selectUsers(f storage.Filter) []*model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		if matches(u, f) {
			out = append(out, clone(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) FindMany(ctx context.Context, filter storage.Filter, opts storage.FindOptions) ([]*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.WrapError(err)
	}
	out := s.selectUsers(filter)

	if opts.SortField != "" {
		less, err := lessBy(opts.SortField)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(out, func(i, j int) bool {
			if opts.Descending {
				return less(out[j], out[i])
			}
			return less(out[i], out[j])
		})
	}

	if opts.Skip > 0 {
		if opts.Skip >= int64(len(out)) {
			return []*model.User{}, nil
		}
		out = out[opts.Skip:]
	}
	if opts.Limit > 0 && opts.Limit < int64(len(out)) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func lessBy(field string) (func(a, b *model.User) bool, error) {
	switch field {
	case "updatedAt":
		return func(a, b *model.User) bool { return a.UpdatedAt.Before(b.UpdatedAt) }, nil
	case "createdAt":
		return func(a, b *model.User) bool { return a.CreatedAt.Before(b.CreatedAt) }, nil
	case "fullName":
		return func(a, b *model.User) bool { return a.FullName < b.FullName }, nil
	case "email":
		return func(a, b *model.User) bool { return a.Email < b.Email }, nil
	default:
		return nil, fmt.Errorf("%w: unsupported sort field %q", model.ErrInvalidQuery, field)
	}
}

func (s *Store) Scan(ctx context.Context, filter storage.Filter, _ int, fn func(*model.User) error) error {
	for _, u := range s.selectUsers(filter) {
		if err := ctx.Err(); err != nil {
			return model.WrapError(err)
		}
		if err := fn(u); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Count(_ context.Context, filter storage.Filter) (int64, error) {
	return int64(len(s.selectUsers(filter))), nil
}

func (s *Store) Create(_ context.Context, user *model.User) error {
	s.mu.Lock()
	if user.ID == "" {
		user.ID = primitive.NewObjectID().Hex()
	}
	if _, ok := s.users[user.ID]; ok {
		s.mu.Unlock()
		return model.ErrExists
	}
	now := s.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = clone(user)
	s.mu.Unlock()

	s.publish(storage.ChangeEvent{Operation: storage.OpInsert, DocumentKey: user.ID, FullDocument: clone(user)})
	return nil
}

func (s *Store) Replace(_ context.Context, user *model.User) error {
	s.mu.Lock()
	cur, ok := s.users[user.ID]
	if !ok {
		s.mu.Unlock()
		return model.ErrNotFound
	}
	user.CreatedAt = cur.CreatedAt
	user.UpdatedAt = s.now()
	s.users[user.ID] = clone(user)
	s.mu.Unlock()

	s.publish(storage.ChangeEvent{Operation: storage.OpUpdate, DocumentKey: user.ID, FullDocument: clone(user)})
	return nil
}

func (s *Store) SetDeleted(_ context.Context, id string, deleted bool) (*model.User, error) {
	s.mu.Lock()
	cur, ok := s.users[id]
	if !ok {
		s.mu.Unlock()
		return nil, model.ErrNotFound
	}
	cur.Deleted = deleted
	cur.UpdatedAt = s.now()
	out := clone(cur)
	s.mu.Unlock()

	s.publish(storage.ChangeEvent{Operation: storage.OpUpdate, DocumentKey: id, FullDocument: clone(out)})
	return out, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.users[id]; !ok {
		s.mu.Unlock()
		return model.ErrNotFound
	}
	delete(s.users, id)
	s.mu.Unlock()

	s.publish(storage.ChangeEvent{Operation: storage.OpDelete, DocumentKey: id})
	return nil
}

// Watch delivers every mutation made after the call. Slow consumers block
// writers once their buffer is full.
func (s *Store) Watch(ctx context.Context) (<-chan storage.ChangeEvent, error) {
	if s.noFeed {
		return nil, fmt.Errorf("%w: memory store started without change feed", model.ErrFeedUnsupported)
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("watch: %w", errStoreClosed)
	}

	sub := &subscriber{ch: make(chan storage.ChangeEvent, feedBuffer), done: make(chan struct{})}
	s.subs[sub] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
		case <-sub.done:
		}
		s.subMu.Lock()
		delete(s.subs, sub)
		s.subMu.Unlock()
		sub.close()
	}()
	return sub.ch, nil
}

func (s *Store) publish(evt storage.ChangeEvent) {
	s.subMu.Lock()
	subs := make([]*subscriber, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.subMu.Unlock()

	for _, sub := range subs {
		sub.send(evt)
	}
}

func (s *Store) EnsureIndexes(context.Context) error { return nil }

// Close ends every open change feed.
func (s *Store) Close(context.Context) error {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for sub := range s.subs {
		sub.stop()
	}
	return nil
}

var errStoreClosed = errors.New("memory store closed")

type subscriber struct {
	mu     sync.Mutex
	ch     chan storage.ChangeEvent
	done   chan struct{}
	once   sync.Once
	closed bool
}

func (s *subscriber) send(evt storage.ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- evt:
	case <-s.done:
	}
}

// stop signals the watcher goroutine, which closes the channel.
func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *subscriber) close() {
	s.stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
