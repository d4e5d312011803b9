package task

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

func TestCreate_RequiresTitleAndDefaultsPriority(t *testing.T) {
	t.Parallel()
	store := NewStore(openTestPool(t))
	ctx := context.Background()

	_, err := store.Create(ctx, CreateInput{ProjectID: "p1", Title: ""})
	require.Error(t, err)
	require.True(t, domain.IsKind(err, domain.KindInvalidInput))

	task, err := store.Create(ctx, CreateInput{ProjectID: "p1", Title: "ship it"})
	require.NoError(t, err)
	require.Equal(t, "medium", task.Priority)
	require.Equal(t, "open", task.Status)
}

func TestUpdate_OnlyTouchesProvidedFields(t *testing.T) {
	t.Parallel()
	store := NewStore(openTestPool(t))
	ctx := context.Background()

	created, err := store.Create(ctx, CreateInput{ProjectID: "p1", Title: "ship it", Priority: "low"})
	require.NoError(t, err)

	updated, err := store.Update(ctx, created.ID, "done", "", -1)
	require.NoError(t, err)
	require.Equal(t, "done", updated.Status)
	require.Equal(t, "low", updated.Priority) // untouched

	again, err := store.Update(ctx, created.ID, "", "", 0.5)
	require.NoError(t, err)
	require.Equal(t, "done", again.Status) // untouched
	require.InDelta(t, 0.5, again.Progress, 1e-9)
}

func TestList_FiltersByProjectAndStatus(t *testing.T) {
	t.Parallel()
	store := NewStore(openTestPool(t))
	ctx := context.Background()

	a, err := store.Create(ctx, CreateInput{ProjectID: "p1", Title: "a"})
	require.NoError(t, err)
	_, err = store.Update(ctx, a.ID, "done", "", -1)
	require.NoError(t, err)
	_, err = store.Create(ctx, CreateInput{ProjectID: "p1", Title: "b"})
	require.NoError(t, err)
	_, err = store.Create(ctx, CreateInput{ProjectID: "p2", Title: "c"})
	require.NoError(t, err)

	open, err := store.List(ctx, "p1", "open", 10)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, "b", open[0].Title)

	all, err := store.List(ctx, "p1", "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
}
