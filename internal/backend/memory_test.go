package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copydesk/copydesk/internal/adapter"
)

func TestMemoryCreateAssignsOpaqueID(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	id1, err := m.Create(ctx, map[string]any{"title": "one"})
	require.NoError(t, err)
	id2, err := m.Create(ctx, map[string]any{"title": "two"})
	require.NoError(t, err)

	assert.NotEmpty(t, id1)
	assert.NotEqual(t, id1, id2)
}

func TestMemoryListPreservesInsertionOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for _, title := range []string{"a", "b", "c"} {
		_, err := m.Create(ctx, map[string]any{"title": title})
		require.NoError(t, err)
	}

	records, err := m.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "a", records[0]["title"])
	assert.Equal(t, "c", records[2]["title"])
}

func TestMemoryFetchAbsent(t *testing.T) {
	m := NewMemory()
	rec, err := m.FetchOne(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestMemoryUpdateAndDelete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	id, err := m.Create(ctx, map[string]any{"title": "old", "content": "kept"})
	require.NoError(t, err)

	require.NoError(t, m.Update(ctx, id, map[string]any{"title": "new"}))
	rec, err := m.FetchOne(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "new", rec["title"])
	assert.Equal(t, "kept", rec["content"])

	assert.ErrorIs(t, m.Update(ctx, "missing", map[string]any{"x": 1}), adapter.ErrNotExist)

	require.NoError(t, m.Delete(ctx, id))
	assert.ErrorIs(t, m.Delete(ctx, id), adapter.ErrNotExist)
}

func TestMemoryRecordsAreIsolated(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	id, err := m.Create(ctx, map[string]any{"title": "original"})
	require.NoError(t, err)

	rec, err := m.FetchOne(ctx, id)
	require.NoError(t, err)
	rec["title"] = "mutated by caller"

	again, err := m.FetchOne(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "original", again["title"])
}
