package indexer

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/syntrixbase/userindex/internal/storage"
	"github.com/syntrixbase/userindex/pkg/model"
)

type MockUpserter struct {
	mock.Mock
}

func (m *MockUpserter) Upsert(ctx context.Context, u *model.User) error {
	return m.Called(ctx, u).Error(0)
}

// sliceScanner serves records from memory and records the filter it saw.
type sliceScanner struct {
	users   []*model.User
	err     error
	filters []storage.Filter
}

func (s *sliceScanner) Scan(ctx context.Context, filter storage.Filter, _ int, fn func(*model.User) error) error {
	s.filters = append(s.filters, filter)
	for _, u := range s.users {
		if err := fn(u); err != nil {
			return err
		}
	}
	return s.err
}
