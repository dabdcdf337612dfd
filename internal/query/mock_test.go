package query

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/syntrixbase/userindex/internal/index"
)

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, q index.Query) (*index.SearchResult, error) {
	args := m.Called(ctx, q)
	res, _ := args.Get(0).(*index.SearchResult)
	return res, args.Error(1)
}

// mapResolver signs references found in urls and fails the rest.
type mapResolver struct {
	mu    sync.Mutex
	urls  map[string]string
	calls []string
}

func (r *mapResolver) Resolve(_ context.Context, ref string) *string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, ref)
	if u, ok := r.urls[ref]; ok {
		return &u
	}
	return nil
}
