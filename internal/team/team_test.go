package team

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

func TestCreate_RequiresName(t *testing.T) {
	t.Parallel()
	store := NewStore(openTestPool(t))
	_, err := store.Create(context.Background(), "")
	require.Error(t, err)
	require.True(t, domain.IsKind(err, domain.KindInvalidInput))
}

func TestAddRemoveMember_ReflectedInGetAndMembersOf(t *testing.T) {
	t.Parallel()
	store := NewStore(openTestPool(t))
	ctx := context.Background()

	tm, err := store.Create(ctx, "platform")
	require.NoError(t, err)

	require.NoError(t, store.AddMember(ctx, tm.ID, "alice"))
	// Adding the same member twice must not duplicate (INSERT OR IGNORE).
	require.NoError(t, store.AddMember(ctx, tm.ID, "alice"))

	got, err := store.Get(ctx, tm.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"alice"}, got.Members)

	teams, err := store.MembersOf(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, []string{tm.ID}, teams)

	require.NoError(t, store.RemoveMember(ctx, tm.ID, "alice"))
	got, err = store.Get(ctx, tm.ID)
	require.NoError(t, err)
	require.Empty(t, got.Members)
}
