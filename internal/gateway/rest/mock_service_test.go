package rest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/syntrixbase/userindex/internal/indexer"
	"github.com/syntrixbase/userindex/internal/puller"
	"github.com/syntrixbase/userindex/internal/query"
	"github.com/syntrixbase/userindex/internal/users"
	"github.com/syntrixbase/userindex/pkg/model"
)

type MockQueryService struct {
	mock.Mock
}

func (m *MockQueryService) Search(ctx context.Context, req query.Request) (*model.UserPage, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserPage), args.Error(1)
}

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Create(ctx context.Context, in users.CreateInput) (*users.CreateResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.CreateResult), args.Error(1)
}

func (m *MockUserService) SoftDelete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockSyncer struct {
	mock.Mock
}

func (m *MockSyncer) Run(ctx context.Context) (indexer.Report, error) {
	args := m.Called(ctx)
	return args.Get(0).(indexer.Report), args.Error(1)
}

func (m *MockSyncer) Running() bool {
	return m.Called().Bool(0)
}

func (m *MockSyncer) LastReport() (indexer.Report, bool) {
	args := m.Called()
	return args.Get(0).(indexer.Report), args.Bool(1)
}

type staticCapture struct {
	mode  puller.Mode
	state puller.State
}

func (c staticCapture) Mode() puller.Mode   { return c.mode }
func (c staticCapture) State() puller.State { return c.state }
