package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mira/internal/project"
	"mira/internal/storage"
)

func openTestPools(t *testing.T) (main, code *storage.Pool) {
	t.Helper()
	main, err := storage.Open(context.Background(), "main", filepath.Join(t.TempDir(), "main.db"), 0)
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(main, "main"))
	t.Cleanup(func() { main.Close() })

	code, err = storage.Open(context.Background(), "code", filepath.Join(t.TempDir(), "code.db"), 0)
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(code, "code"))
	t.Cleanup(func() { code.Close() })
	return main, code
}

type fakeGitLog struct {
	t   time.Time
	ok  bool
	err error
}

func (f fakeGitLog) LatestCommitTime(ctx context.Context, repoPath string) (time.Time, bool, error) {
	return f.t, f.ok, f.err
}

func TestStart_FirstSessionFlagAndUpsertByID(t *testing.T) {
	t.Parallel()
	mainPool, codePool := openTestPools(t)
	projStore := project.NewStore(mainPool)
	proj, err := projStore.GetOrCreate(context.Background(), "/repo", "demo", "general")
	require.NoError(t, err)

	store := NewStore(mainPool, codePool, nil, false)
	ctx := context.Background()

	first, err := store.Start(ctx, proj.ID, "", "cli")
	require.NoError(t, err)
	require.True(t, first.FirstSession)
	require.Equal(t, ModeLocal, first.Mode)
	require.NotEmpty(t, first.Session.ID)

	// Resuming the same session id updates, not re-inserts.
	again, err := store.Start(ctx, proj.ID, first.Session.ID, "cli")
	require.NoError(t, err)
	require.Equal(t, first.Session.ID, again.Session.ID)

	// A brand new session under the same project is no longer "first".
	second, err := store.Start(ctx, proj.ID, "", "cli")
	require.NoError(t, err)
	require.False(t, second.FirstSession)
	require.Len(t, second.RecentSessions, 1)
	require.Equal(t, first.Session.ID, second.RecentSessions[0].ID)
}

func TestStart_SemanticModeWhenEmbedderConfigured(t *testing.T) {
	t.Parallel()
	mainPool, codePool := openTestPools(t)
	projStore := project.NewStore(mainPool)
	proj, err := projStore.GetOrCreate(context.Background(), "/repo2", "demo2", "general")
	require.NoError(t, err)

	store := NewStore(mainPool, codePool, nil, true)
	res, err := store.Start(context.Background(), proj.ID, "", "cli")
	require.NoError(t, err)
	require.Equal(t, ModeSemantic, res.Mode)
}

func TestCheckStaleIndex_TrueWhenCommitNewerThanIndex(t *testing.T) {
	t.Parallel()
	mainPool, codePool := openTestPools(t)
	projStore := project.NewStore(mainPool)
	proj, err := projStore.GetOrCreate(context.Background(), "/repo3", "demo3", "general")
	require.NoError(t, err)

	indexedAt := time.Now().UTC().Add(-1 * time.Hour)
	_, err = codePool.DB().Exec(
		`INSERT INTO symbols (project_id, name, kind, file, line, indexed_at) VALUES (?, ?, ?, ?, ?, ?)`,
		proj.ID, "Foo", "func", "foo.go", 1, indexedAt)
	require.NoError(t, err)

	store := NewStore(mainPool, codePool, fakeGitLog{t: time.Now().UTC(), ok: true}, false)
	require.True(t, store.checkStaleIndex(context.Background(), proj.ID))
}

func TestCheckStaleIndex_FalseWhenNoCommitInfo(t *testing.T) {
	t.Parallel()
	mainPool, codePool := openTestPools(t)
	projStore := project.NewStore(mainPool)
	proj, err := projStore.GetOrCreate(context.Background(), "/repo4", "demo4", "general")
	require.NoError(t, err)

	store := NewStore(mainPool, codePool, fakeGitLog{ok: false}, false)
	require.False(t, store.checkStaleIndex(context.Background(), proj.ID))
}
