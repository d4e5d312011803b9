package correction

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"mira/internal/domain"
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

func TestRecord_RequiresBothFieldsAndDefaultsScopeToProject(t *testing.T) {
	t.Parallel()
	store := NewStore(openTestPool(t), nil)
	ctx := context.Background()

	_, err := store.Record(ctx, "p1", "", "used the wrong retry policy", "")
	require.Error(t, err)
	require.True(t, domain.IsKind(err, domain.KindInvalidInput))

	c, err := store.Record(ctx, "p1", "", "used the wrong retry policy", "use exponential backoff instead")
	require.NoError(t, err)
	require.Equal(t, domain.ScopeProject, c.Scope)
}

func TestList_OrdersMostRecentFirst(t *testing.T) {
	t.Parallel()
	store := NewStore(openTestPool(t), nil)
	ctx := context.Background()

	_, err := store.Record(ctx, "p1", domain.ScopeProject, "wrong1", "right1")
	require.NoError(t, err)
	_, err = store.Record(ctx, "p1", domain.ScopeProject, "wrong2", "right2")
	require.NoError(t, err)

	list, err := store.List(ctx, "p1", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "wrong2", list[0].WhatWasWrong)
}

func TestValidate_FallsBackToRecencyWithoutEmbedder(t *testing.T) {
	t.Parallel()
	store := NewStore(openTestPool(t), nil)
	ctx := context.Background()

	_, err := store.Record(ctx, "p1", domain.ScopeProject, "wrong1", "right1")
	require.NoError(t, err)

	results, err := store.Validate(ctx, "p1", "about to do the wrong thing again", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
}
