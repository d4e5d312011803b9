package build

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

func TestRecordError_DedupesByHashIgnoringLineNumber(t *testing.T) {
	t.Parallel()
	store := NewStore(openTestPool(t))
	ctx := context.Background()

	first, err := store.RecordError(ctx, ErrorInput{
		ProjectID: "p1", Category: "compile", File: "a.go", Line: 10, Message: "undefined: Foo",
	})
	require.NoError(t, err)
	require.Equal(t, 1, first.Occurrences)

	// Same project/category/file/message but a different line number must
	// still dedupe to the same row: line is deliberately excluded from hash.
	second, err := store.RecordError(ctx, ErrorInput{
		ProjectID: "p1", Category: "compile", File: "a.go", Line: 42, Message: "undefined: Foo",
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 2, second.Occurrences)
	require.Equal(t, first.Hash, second.Hash)
}

func TestRecordError_RepeatAfterResolveClearsResolvedBy(t *testing.T) {
	t.Parallel()
	store := NewStore(openTestPool(t))
	ctx := context.Background()

	e, err := store.RecordError(ctx, ErrorInput{ProjectID: "p1", Category: "compile", File: "a.go", Message: "boom"})
	require.NoError(t, err)
	require.NoError(t, store.Resolve(ctx, e.ID, "commit-abc"))

	got, err := store.Get(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, "commit-abc", got.ResolvedBy)

	again, err := store.RecordError(ctx, ErrorInput{ProjectID: "p1", Category: "compile", File: "a.go", Message: "boom"})
	require.NoError(t, err)
	require.Empty(t, again.ResolvedBy)
	require.Equal(t, 2, again.Occurrences)

	unresolved, err := store.ListUnresolved(ctx, "p1", 10)
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
}

func TestRecordError_DifferentProjectsNeverCollide(t *testing.T) {
	t.Parallel()
	store := NewStore(openTestPool(t))
	ctx := context.Background()

	a, err := store.RecordError(ctx, ErrorInput{ProjectID: "p1", Category: "compile", File: "a.go", Message: "boom"})
	require.NoError(t, err)
	b, err := store.RecordError(ctx, ErrorInput{ProjectID: "p2", Category: "compile", File: "a.go", Message: "boom"})
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)
	require.Equal(t, 1, b.Occurrences)
}
