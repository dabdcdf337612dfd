package bleve

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntrixbase/userindex/internal/index"
)

func newMemBackend(t *testing.T) *Backend {
	t.Helper()
	b := New("", nil)
	require.NoError(t, b.Create(context.Background(), index.UserMapping()))
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func doc(name, email string, deleted bool, updated time.Time) *index.Document {
	return &index.Document{
		FullName:  name,
		Email:     email,
		Pic:       "avatars/" + name + ".png",
		Deleted:   deleted,
		CreatedAt: updated.Add(-time.Hour),
		UpdatedAt: updated,
	}
}

func boolPtr(v bool) *bool { return &v }

func TestBackend_MissingUntilCreated(t *testing.T) {
	ctx := context.Background()
	b := New("", nil)
	defer b.Close()

	ok, err := b.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	err = b.Index(ctx, "u1", doc("Ana", "ana@x.io", false, time.Now()))
	assert.ErrorIs(t, err, index.ErrIndexNotFound)

	require.NoError(t, b.Create(ctx, index.UserMapping()))
	ok, err = b.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// second create is a no-op
	assert.NoError(t, b.Create(ctx, index.UserMapping()))
}

func TestBackend_IndexAndSearchRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
	}{
		{"whole seconds", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		{"milliseconds", time.Date(2026, 3, 1, 12, 0, 0, 457_000_000, time.UTC)},
		{"nanoseconds", time.Date(2026, 2, 1, 0, 1, 0, 123456789, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			b := newMemBackend(t)
			in := doc("Ana Lopez", "ana@x.io", false, tt.at)
			in.CreatedAt = tt.at.Add(-time.Hour - 3*time.Millisecond)

			require.NoError(t, b.Index(ctx, "u1", in))

			res, err := b.Search(ctx, index.Query{Size: 10})
			require.NoError(t, err)
			require.Len(t, res.Hits, 1)
			assert.Equal(t, int64(1), res.Total)

			hit := res.Hits[0]
			assert.Equal(t, "u1", hit.ID)
			assert.Equal(t, *in, hit.Doc)
		})
	}
}

func TestBackend_ExactTimestampsFallBackToDateTime(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d := fromFields(map[string]any{
		index.FieldFullName:  "Ana",
		index.FieldCreatedAt: at.Format(time.RFC3339),
		index.FieldUpdatedAt: at.Format(time.RFC3339),
	})
	assert.Equal(t, at, d.CreatedAt)
	assert.Equal(t, at, d.UpdatedAt)
}

func TestBackend_SortsBySubSecondUpdates(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, b.Index(ctx, "first", doc("Ana", "a@x.io", false, at.Add(100*time.Millisecond))))
	require.NoError(t, b.Index(ctx, "second", doc("Ana", "b@x.io", false, at.Add(200*time.Millisecond))))

	res, err := b.Search(ctx, index.Query{SortBy: []string{"-" + index.FieldUpdatedAt}, Size: 10})
	require.NoError(t, err)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, "second", res.Hits[0].ID)
	assert.True(t, res.Hits[0].Doc.UpdatedAt.After(res.Hits[1].Doc.UpdatedAt))
}

func TestBackend_IndexReplacesDocument(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend(t)
	now := time.Now().UTC()

	require.NoError(t, b.Index(ctx, "u1", doc("Ana", "ana@x.io", false, now)))
	require.NoError(t, b.Index(ctx, "u1", doc("Bea", "bea@x.io", true, now)))

	n, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	res, err := b.Search(ctx, index.Query{Size: 10})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "Bea", res.Hits[0].Doc.FullName)
	assert.True(t, res.Hits[0].Doc.Deleted)
}

func TestBackend_DeletedFilter(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend(t)
	now := time.Now().UTC()

	require.NoError(t, b.Index(ctx, "live", doc("Ana", "ana@x.io", false, now)))
	require.NoError(t, b.Index(ctx, "gone", doc("Ana Gone", "gone@x.io", true, now)))

	res, err := b.Search(ctx, index.Query{Deleted: boolPtr(false), Size: 10})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "live", res.Hits[0].ID)

	res, err = b.Search(ctx, index.Query{Deleted: boolPtr(true), Size: 10})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "gone", res.Hits[0].ID)
}

func TestBackend_ContainsIsCaseInsensitiveSubstring(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend(t)
	now := time.Now().UTC()

	require.NoError(t, b.Index(ctx, "u1", doc("Mariana", "m@x.io", false, now)))
	require.NoError(t, b.Index(ctx, "u2", doc("Bob", "BOB.ANA@x.io", false, now)))
	require.NoError(t, b.Index(ctx, "u3", doc("Carl", "carl@x.io", false, now)))

	q := index.Query{
		Contains:       "ANA",
		ContainsFields: []string{index.FieldFullNameLower, index.FieldEmailLower},
		SortBy:         []string{"_id"},
		Size:           10,
	}
	res, err := b.Search(ctx, q)
	require.NoError(t, err)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, "u1", res.Hits[0].ID)
	assert.Equal(t, "u2", res.Hits[1].ID)
}

func TestBackend_ContainsEscapesMetacharacters(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend(t)
	now := time.Now().UTC()

	require.NoError(t, b.Index(ctx, "dot", doc("a.b", "dot@x.io", false, now)))
	require.NoError(t, b.Index(ctx, "nodot", doc("axb", "nodot@x.io", false, now)))

	res, err := b.Search(ctx, index.Query{
		Contains:       "a.b",
		ContainsFields: []string{index.FieldFullNameLower},
		Size:           10,
	})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "dot", res.Hits[0].ID)
}

func TestBackend_SortAndPaginate(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, b.Index(ctx, id, doc(id, id+"@x.io", false, base.Add(time.Duration(i)*time.Minute))))
	}

	res, err := b.Search(ctx, index.Query{SortBy: []string{"-updatedAt", "_id"}, From: 1, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Total)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, "c", res.Hits[0].ID)
	assert.Equal(t, "b", res.Hits[1].ID)
}

func TestBackend_Delete(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend(t)

	require.NoError(t, b.Index(ctx, "u1", doc("Ana", "ana@x.io", false, time.Now())))
	require.NoError(t, b.Delete(ctx, "u1"))

	n, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBackend_Closed(t *testing.T) {
	ctx := context.Background()
	b := New("", nil)
	require.NoError(t, b.Create(ctx, index.UserMapping()))
	require.NoError(t, b.Close())
	assert.NoError(t, b.Close())

	_, err := b.Search(ctx, index.Query{})
	assert.ErrorIs(t, err, index.ErrIndexClosed)
	_, err = b.Exists(ctx)
	assert.ErrorIs(t, err, index.ErrIndexClosed)
}

func TestBackend_PersistsOnDisk(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "users.bleve")

	b := New(path, nil)
	ok, err := b.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, b.Create(ctx, index.UserMapping()))
	require.NoError(t, b.Index(ctx, "u1", doc("Ana", "ana@x.io", false, time.Now())))
	require.NoError(t, b.Close())

	reopened := New(path, nil)
	defer reopened.Close()
	ok, err = reopened.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestParseTime(t *testing.T) {
	ts := time.Date(2026, 5, 6, 7, 8, 9, 10, time.UTC)
	assert.True(t, ts.Equal(parseTime(ts.Format(time.RFC3339Nano))))
	assert.True(t, ts.Truncate(time.Second).Equal(parseTime(ts.Format(time.RFC3339))))
	assert.True(t, ts.Equal(parseTime(ts)))
	assert.True(t, parseTime("garbage").IsZero())
	assert.True(t, parseTime(nil).IsZero())
}
