package memory

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
	path := filepath.Join(t.TempDir(), "main.db")
	pool, err := storage.Open(context.Background(), "main", path, 0)
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(pool, "main"))
	t.Cleanup(func() { pool.Close() })
	return pool
}

// S1/S2/S3: a fact remembered with key="style" starts as candidate at
// confidence 0.5, stays candidate across a same-session resave, and is
// promoted to confirmed with +0.2 confidence only once 3 distinct sessions
// have touched it (invariant 2).
func TestRemember_PromotionAfterThreeDistinctSessions(t *testing.T) {
	t.Parallel()
	pool := openTestPool(t)
	store := NewStore(pool, nil)
	ctx := context.Background()
	caller := domain.Identity{ProjectID: "proj-1"}

	id1, err := store.Remember(ctx, RememberInput{
		Content: "use tabs", Key: "style", Scope: domain.ScopeProject,
		SessionID: "s1", Caller: caller,
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, id1)

	facts, err := store.List(ctx, caller, 10, 0, "", "")
	require.NoError(t, err)
	require.Len(t, facts, 1)
	require.Equal(t, domain.StatusCandidate, facts[0].Status)
	require.InDelta(t, 0.5, facts[0].Confidence, 1e-9)

	// S2: same session id resaves — session_count must not bump.
	id2, err := store.Remember(ctx, RememberInput{
		Content: "use tabs", Key: "style", Scope: domain.ScopeProject,
		SessionID: "s1", Caller: caller,
	})
	require.NoError(t, err)
	require.Equal(t, id1, id2)
	facts, err = store.List(ctx, caller, 10, 0, "", "")
	require.NoError(t, err)
	require.Equal(t, 1, facts[0].SessionCount)
	require.Equal(t, domain.StatusCandidate, facts[0].Status)

	// Two more distinct sessions: session_count reaches 3, promoting to
	// confirmed with a +0.2 bump, capped at 1.0.
	_, err = store.Remember(ctx, RememberInput{
		Content: "use tabs", Key: "style", Scope: domain.ScopeProject,
		SessionID: "s2", Caller: caller,
	})
	require.NoError(t, err)
	_, err = store.Remember(ctx, RememberInput{
		Content: "use tabs", Key: "style", Scope: domain.ScopeProject,
		SessionID: "s3", Caller: caller,
	})
	require.NoError(t, err)

	facts, err = store.List(ctx, caller, 10, 0, "", "")
	require.NoError(t, err)
	require.Equal(t, domain.StatusConfirmed, facts[0].Status)
	require.Equal(t, 3, facts[0].SessionCount)
	require.InDelta(t, 0.7, facts[0].Confidence, 1e-9)
}

// S4 + invariant 1: a personal-scoped fact owned by alice is invisible to
// bob, and forgetting it as bob fails.
func TestScopeIsolation_PersonalFactNotVisibleToOtherUser(t *testing.T) {
	t.Parallel()
	pool := openTestPool(t)
	store := NewStore(pool, nil)
	ctx := context.Background()

	alice := domain.Identity{ProjectID: "proj-1", UserID: "alice"}
	bob := domain.Identity{ProjectID: "proj-1", UserID: "bob"}

	id, err := store.Remember(ctx, RememberInput{
		Content: "alice's private note", Scope: domain.ScopePersonal, Caller: alice,
	})
	require.NoError(t, err)

	aliceList, err := store.List(ctx, alice, 10, 0, "", "")
	require.NoError(t, err)
	require.Len(t, aliceList, 1)

	bobList, err := store.List(ctx, bob, 10, 0, "", "")
	require.NoError(t, err)
	require.Empty(t, bobList)

	err = store.Forget(ctx, id, bob)
	require.Error(t, err)
	require.True(t, domain.IsKind(err, domain.KindInvalidInput))
}

// A project mismatch blocks visibility even when scope is project (nulls
// degrade to project, but a foreign project id does not).
func TestScopeIsolation_ProjectMismatchBlocks(t *testing.T) {
	t.Parallel()
	pool := openTestPool(t)
	store := NewStore(pool, nil)
	ctx := context.Background()

	ownerCaller := domain.Identity{ProjectID: "proj-1"}
	otherCaller := domain.Identity{ProjectID: "proj-2"}

	_, err := store.Remember(ctx, RememberInput{
		Content: "scoped to proj-1", Scope: domain.ScopeProject, Caller: ownerCaller,
	})
	require.NoError(t, err)

	out, err := store.List(ctx, otherCaller, 10, 0, "", "")
	require.NoError(t, err)
	require.Empty(t, out)
}
