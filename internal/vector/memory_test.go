package vector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_QueryRanksAndScopes(t *testing.T) {
	idx := NewMemory(2)
	ctx := context.Background()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, idx.Upsert(ctx, []Entry{
		{ID: "near", UserID: "u1", Title: "near", Vector: []float32{1, 0.1}, CreatedAt: created},
		{ID: "far", UserID: "u1", Title: "far", Vector: []float32{0, 1}},
		{ID: "other", UserID: "u2", Title: "other", Vector: []float32{1, 0}},
	}))

	got, err := idx.Query(ctx, []float32{1, 0}, "u1", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "near", got[0].ID)
	assert.Equal(t, "far", got[1].ID)
	assert.Greater(t, got[0].Score, got[1].Score)
	assert.Equal(t, "2026-01-02T03:04:05Z", got[0].CreatedAt)

	top, err := idx.Query(ctx, []float32{1, 0}, "u1", 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "near", top[0].ID)
}

func TestMemory_UpsertReplacesAndDelete(t *testing.T) {
	idx := NewMemory(2)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []Entry{{ID: "a", UserID: "u1", Title: "v1", Vector: []float32{1, 0}}}))
	require.NoError(t, idx.Upsert(ctx, []Entry{{ID: "a", UserID: "u1", Title: "v2", Vector: []float32{1, 0}}}))
	assert.Equal(t, 1, idx.Len())

	got, err := idx.Query(ctx, []float32{1, 0}, "u1", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "v2", got[0].Title)

	require.NoError(t, idx.Delete(ctx, []string{"a", "unknown"}))
	assert.False(t, idx.Has("a"))
}

func TestMemory_RejectsDimMismatch(t *testing.T) {
	idx := NewMemory(3)
	err := idx.Upsert(context.Background(), []Entry{{ID: "a", Vector: []float32{1}}})
	assert.Error(t, err)
	assert.Zero(t, idx.Len())
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{2, 0}, []float32{5, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, cosine([]float32{0, 0}, []float32{1, 1}))
}
