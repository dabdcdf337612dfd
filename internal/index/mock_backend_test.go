package index

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Exists(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockBackend) Create(ctx context.Context, mp Mapping) error {
	return m.Called(ctx, mp).Error(0)
}

func (m *MockBackend) Index(ctx context.Context, id string, doc *Document) error {
	return m.Called(ctx, id, doc).Error(0)
}

func (m *MockBackend) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockBackend) Search(ctx context.Context, q Query) (*SearchResult, error) {
	args := m.Called(ctx, q)
	res, _ := args.Get(0).(*SearchResult)
	return res, args.Error(1)
}

func (m *MockBackend) Count(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockBackend) Close() error {
	return m.Called().Error(0)
}
