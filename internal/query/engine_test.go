package query

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/syntrixbase/userindex/internal/index"
	"github.com/syntrixbase/userindex/internal/index/bleve"
	"github.com/syntrixbase/userindex/internal/query/config"
	"github.com/syntrixbase/userindex/pkg/model"
)

var base = time.Date(2026, 2, 1, 0, 0, 0, 123_000_000, time.UTC)

type fixture struct {
	engine   *Engine
	writer   *index.Writer
	resolver *mapResolver
}

func newFixture(t *testing.T, users ...*model.User) *fixture {
	t.Helper()
	backend := bleve.New("", nil)
	t.Cleanup(func() { _ = backend.Close() })

	schema := index.NewSchemaManager(backend, index.UserMapping(), nil)
	w := index.NewWriter(backend, schema)
	for _, u := range users {
		require.NoError(t, w.Upsert(context.Background(), u))
	}

	r := &mapResolver{urls: map[string]string{}}
	return &fixture{
		engine:   NewEngine(config.DefaultConfig(), index.NewSearcher(backend, schema), r, nil),
		writer:   w,
		resolver: r,
	}
}

func user(id, name, email string, minutes int) *model.User {
	return &model.User{
		ID:        id,
		FullName:  name,
		Email:     email,
		CreatedAt: base,
		UpdatedAt: base.Add(time.Duration(minutes) * time.Minute),
	}
}

func ids(page *model.UserPage) []string {
	out := make([]string, 0, len(page.Users))
	for _, u := range page.Users {
		out = append(out, u.ID)
	}
	return out
}

func TestEngine_BrowseExcludesDeletedAndSortsByRecency(t *testing.T) {
	deleted := user("d", "Dora", "dora@x.io", 50)
	deleted.Deleted = true
	f := newFixture(t,
		user("a", "Ann", "ann@x.io", 1),
		user("b", "Ben", "ben@x.io", 3),
		user("c", "Cid", "cid@x.io", 2),
		deleted,
	)

	page, err := f.engine.Search(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, []string{"b", "c", "a"}, ids(page))
	for _, u := range page.Users {
		assert.Zero(t, u.Score)
	}

	page, err = f.engine.Search(context.Background(), Request{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, []string{"a"}, ids(page))
}

func TestEngine_WhitespaceQueryBrowses(t *testing.T) {
	f := newFixture(t, user("a", "Ann", "ann@x.io", 1))
	page, err := f.engine.Search(context.Background(), Request{Query: "   "})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(page))
}

func TestEngine_SearchRanksMatches(t *testing.T) {
	gone := user("gone", "Ana", "ana@gone.io", 99)
	gone.Deleted = true
	f := newFixture(t,
		user("exact", "Ana", "x1@y.io", 1),
		user("prefix", "Anamaria Anais", "x2@y.io", 2),
		user("inner", "Mariana", "x3@y.io", 3),
		user("other", "Bob", "bob@y.io", 4),
		gone,
	)

	page, err := f.engine.Search(context.Background(), Request{Query: "  ANA "})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	require.Equal(t, []string{"exact", "prefix", "inner"}, ids(page))
	assert.Equal(t, 170, page.Users[0].Score)
	assert.Equal(t, 75, page.Users[1].Score)
	assert.Equal(t, 20, page.Users[2].Score)
	assert.Equal(t, "Ana", page.Users[0].Name)
	assert.Equal(t, "x1@y.io", page.Users[0].Email)
}

func TestEngine_SearchMatchesEmail(t *testing.T) {
	f := newFixture(t,
		user("a", "Zed", "ana@y.io", 1),
		user("b", "Yan", "y@ana.io", 2),
	)

	page, err := f.engine.Search(context.Background(), Request{Query: "ana"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(page))
	assert.Equal(t, 55, page.Users[0].Score)
	assert.Equal(t, 15, page.Users[1].Score)
}

func TestEngine_SearchTieBreaksByRecency(t *testing.T) {
	f := newFixture(t,
		user("old", "Mariana", "o@y.io", 1),
		user("new", "Juliana", "n@y.io", 5),
	)

	page, err := f.engine.Search(context.Background(), Request{Query: "ana"})
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "old"}, ids(page))
}

func TestEngine_EntriesKeepExactTimestamps(t *testing.T) {
	u := user("a", "Ana", "ana@x.io", 0)
	u.CreatedAt = time.Date(2026, 2, 1, 0, 0, 59, 999_000_000, time.UTC)
	u.UpdatedAt = time.Date(2026, 2, 1, 0, 1, 0, 123456789, time.UTC)
	f := newFixture(t, u)

	for _, q := range []string{"", "ana"} {
		page, err := f.engine.Search(context.Background(), Request{Query: q})
		require.NoError(t, err)
		require.Len(t, page.Users, 1, "query %q", q)
		assert.Equal(t, u.CreatedAt, page.Users[0].CreatedAt, "query %q", q)
		assert.Equal(t, u.UpdatedAt, page.Users[0].UpdatedAt, "query %q", q)
	}
}

func TestEngine_SearchTieBreaksWithinOneSecond(t *testing.T) {
	older := user("older", "Mariana", "o@y.io", 0)
	newer := user("newer", "Juliana", "n@y.io", 0)
	newer.UpdatedAt = older.UpdatedAt.Add(250 * time.Millisecond)
	f := newFixture(t, newer, older)

	page, err := f.engine.Search(context.Background(), Request{Query: "ana"})
	require.NoError(t, err)
	assert.Equal(t, []string{"newer", "older"}, ids(page))
	assert.True(t, page.Users[0].UpdatedAt.After(page.Users[1].UpdatedAt))
}

func TestEngine_SearchPaginatesScoredList(t *testing.T) {
	var users []*model.User
	for i := 0; i < 5; i++ {
		users = append(users, user(fmt.Sprintf("u%d", i), "Mariana", fmt.Sprintf("m%d@y.io", i), i))
	}
	f := newFixture(t, users...)

	page, err := f.engine.Search(context.Background(), Request{Query: "ana", Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, []string{"u2", "u1"}, ids(page))

	page, err = f.engine.Search(context.Background(), Request{Query: "ana", Page: 9, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Empty(t, page.Users)
	assert.NotNil(t, page.Users)
}

func TestEngine_SearchNoMatches(t *testing.T) {
	f := newFixture(t, user("a", "Ann", "ann@x.io", 1))
	page, err := f.engine.Search(context.Background(), Request{Query: "zzz"})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Empty(t, page.Users)
}

func TestEngine_SoftDeleteHidesUser(t *testing.T) {
	u := user("a", "Ann", "ann@x.io", 1)
	f := newFixture(t, u)

	u.Deleted = true
	require.NoError(t, f.writer.Upsert(context.Background(), u))

	for _, q := range []string{"", "ann"} {
		page, err := f.engine.Search(context.Background(), Request{Query: q})
		require.NoError(t, err)
		assert.Empty(t, page.Users, "query %q", q)
		assert.Zero(t, page.Total)
	}
}

func TestEngine_Enrichment(t *testing.T) {
	withPic := user("p", "Pia", "pia@x.io", 3)
	withPic.Pic = "avatars/p.png"
	broken := user("b", "Bo", "bo@x.io", 2)
	broken.Pic = "avatars/missing.png"
	nopic := user("n", "Ned", "ned@x.io", 1)

	f := newFixture(t, withPic, broken, nopic)
	f.resolver.urls["avatars/p.png"] = "https://cdn.example/p.png?sig=1"

	page, err := f.engine.Search(context.Background(), Request{})
	require.NoError(t, err)
	require.Len(t, page.Users, 3)

	require.NotNil(t, page.Users[0].SignedPicURL)
	assert.Equal(t, "https://cdn.example/p.png?sig=1", *page.Users[0].SignedPicURL)
	assert.Nil(t, page.Users[1].SignedPicURL)
	assert.Nil(t, page.Users[2].SignedPicURL)
	assert.ElementsMatch(t, []string{"avatars/p.png", "avatars/missing.png"}, f.resolver.calls)
}

func TestEngine_PaginationClamping(t *testing.T) {
	tests := []struct {
		name      string
		req       Request
		wantFrom  int
		wantLimit int
	}{
		{"defaults", Request{}, 0, 10},
		{"negative page", Request{Page: -3, Limit: 5}, 0, 5},
		{"zero limit", Request{Page: 2, Limit: 0}, 10, 10},
		{"limit capped", Request{Page: 2, Limit: 1000}, 100, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := new(MockSearcher)
			s.On("Search", mock.Anything, mock.MatchedBy(func(q index.Query) bool {
				return q.From == tt.wantFrom && q.Size == tt.wantLimit && q.Deleted != nil && !*q.Deleted
			})).Return(&index.SearchResult{}, nil).Once()

			e := NewEngine(config.DefaultConfig(), s, &mapResolver{}, nil)
			_, err := e.Search(context.Background(), tt.req)
			require.NoError(t, err)
			s.AssertExpectations(t)
		})
	}
}

func TestEngine_SearchUsesCandidateCap(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.CandidateCap = 42

	s := new(MockSearcher)
	s.On("Search", mock.Anything, mock.MatchedBy(func(q index.Query) bool {
		return q.Size == 42 && q.From == 0 && q.Contains == "ana" && len(q.ContainsFields) == 2
	})).Return(&index.SearchResult{}, nil).Once()

	e := NewEngine(cfg, s, &mapResolver{}, nil)
	_, err := e.Search(context.Background(), Request{Query: "Ana"})
	require.NoError(t, err)
	s.AssertExpectations(t)
}

func TestEngine_IndexFailureReturnsEmptyPage(t *testing.T) {
	s := new(MockSearcher)
	s.On("Search", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("%w: disk", model.ErrIndexUnavailable))

	e := NewEngine(config.DefaultConfig(), s, &mapResolver{}, nil)
	for _, q := range []string{"", "ana"} {
		page, err := e.Search(context.Background(), Request{Query: q})
		require.NoError(t, err)
		assert.Equal(t, model.EmptyPage(), page)
	}
}

func TestEngine_CancellationPropagates(t *testing.T) {
	s := new(MockSearcher)
	s.On("Search", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("search: %w", context.Canceled))

	e := NewEngine(config.DefaultConfig(), s, &mapResolver{}, nil)
	_, err := e.Search(context.Background(), Request{Query: "ana"})
	assert.ErrorIs(t, err, model.ErrCanceled)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok := new(MockSearcher)
	ok.On("Search", mock.Anything, mock.Anything).Return(&index.SearchResult{}, nil)
	e = NewEngine(config.DefaultConfig(), ok, &mapResolver{}, nil)
	_, err = e.Search(ctx, Request{})
	assert.ErrorIs(t, err, model.ErrCanceled)
}
