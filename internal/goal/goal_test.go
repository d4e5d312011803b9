package goal

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

func TestCreate_RequiresTitle(t *testing.T) {
	t.Parallel()
	store := NewStore(openTestPool(t))
	_, err := store.Create(context.Background(), "p1", "", "high")
	require.Error(t, err)
	require.True(t, domain.IsKind(err, domain.KindInvalidInput))
}

func TestAddMilestone_AndCompleteReflectsInGet(t *testing.T) {
	t.Parallel()
	store := NewStore(openTestPool(t))
	ctx := context.Background()

	g, err := store.Create(ctx, "p1", "ship v2", "")
	require.NoError(t, err)
	require.Empty(t, g.Milestones)

	m, err := store.AddMilestone(ctx, g.ID, "write design doc")
	require.NoError(t, err)
	require.False(t, m.Completed)

	require.NoError(t, store.CompleteMilestone(ctx, m.ID))

	got, err := store.Get(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, got.Milestones, 1)
	require.True(t, got.Milestones[0].Completed)
}

func TestList_FiltersByProjectAndStatus(t *testing.T) {
	t.Parallel()
	store := NewStore(openTestPool(t))
	ctx := context.Background()

	a, err := store.Create(ctx, "p1", "a", "")
	require.NoError(t, err)
	_, err = store.Update(ctx, a.ID, "done", "", -1)
	require.NoError(t, err)
	_, err = store.Create(ctx, "p1", "b", "")
	require.NoError(t, err)
	_, err = store.Create(ctx, "p2", "c", "")
	require.NoError(t, err)

	open, err := store.List(ctx, "p1", "open")
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, "b", open[0].Title)

	all, err := store.List(ctx, "p1", "")
	require.NoError(t, err)
	require.Len(t, all, 2)
}
