package users

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/syntrixbase/userindex/pkg/model"
)

type MockIndexWriter struct {
	mock.Mock
}

func (m *MockIndexWriter) Upsert(ctx context.Context, u *model.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *MockIndexWriter) Remove(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
