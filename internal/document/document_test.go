package document

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

func TestIngest_RequiresTitleAndContent(t *testing.T) {
	t.Parallel()
	store := NewStore(openTestPool(t), nil)
	_, err := store.Ingest(context.Background(), "p1", "", "body")
	require.Error(t, err)
	require.True(t, domain.IsKind(err, domain.KindInvalidInput))
}

func TestIngestGetListDelete_RoundTripWithoutEmbedder(t *testing.T) {
	t.Parallel()
	store := NewStore(openTestPool(t), nil)
	ctx := context.Background()

	d, err := store.Ingest(ctx, "p1", "runbook", "how to restart the worker")
	require.NoError(t, err)
	require.NotZero(t, d.ID)

	got, err := store.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, "runbook", got.Title)

	list, err := store.List(ctx, "p1", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, store.Delete(ctx, d.ID))
	list, err = store.List(ctx, "p1", 0)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestSearch_FallsBackToKeywordMatchWithoutEmbedder(t *testing.T) {
	t.Parallel()
	store := NewStore(openTestPool(t), nil)
	ctx := context.Background()

	_, err := store.Ingest(ctx, "p1", "deploy steps", "run the rollout script carefully")
	require.NoError(t, err)
	_, err = store.Ingest(ctx, "p1", "unrelated", "lunch menu for friday")
	require.NoError(t, err)

	hits, err := store.Search(ctx, "p1", "rollout", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "deploy steps", hits[0].Title)
}
