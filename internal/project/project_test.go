package project

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"mira/internal/storage"
)

func openTestPool(t *testing.T) *storage.Pool {
	t.Helper()
	pool, err := storage.Open(context.Background(), "main", filepath.Join(t.TempDir(), "main.db"), 0)
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(pool, "main"))
	t.Cleanup(func() { pool.Close() })
	return pool
}

func TestGetOrCreate_SamePathReturnsSameRowWithoutReinserting(t *testing.T) {
	t.Parallel()
	store := NewStore(openTestPool(t))
	ctx := context.Background()

	first, err := store.GetOrCreate(ctx, "/repo", "demo", "general")
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	second, err := store.GetOrCreate(ctx, "/repo", "ignored on existing row", "ignored")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "demo", second.Name) // name from the original insert survives
}

func TestActive_UnsetThenSetReflectsLatest(t *testing.T) {
	t.Parallel()
	store := NewStore(openTestPool(t))
	ctx := context.Background()

	_, ok := store.Active()
	require.False(t, ok)

	p, err := store.GetOrCreate(ctx, "/repo", "demo", "general")
	require.NoError(t, err)
	store.SetActive(p)

	got, ok := store.Active()
	require.True(t, ok)
	require.Equal(t, p.ID, got.ID)
}
