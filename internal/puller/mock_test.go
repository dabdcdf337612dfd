package puller

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/syntrixbase/userindex/internal/storage"
	"github.com/syntrixbase/userindex/pkg/model"
)

type MockFeed struct {
	mock.Mock
}

func (m *MockFeed) Watch(ctx context.Context) (<-chan storage.ChangeEvent, error) {
	args := m.Called(ctx)
	ch, _ := args.Get(0).(chan storage.ChangeEvent)
	if ch == nil {
		return nil, args.Error(1)
	}
	return ch, args.Error(1)
}

func (m *MockFeed) FindByID(ctx context.Context, id string) (*model.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

type MockUpserter struct {
	mock.Mock
}

func (m *MockUpserter) Upsert(ctx context.Context, u *model.User) error {
	return m.Called(ctx, u).Error(0)
}
