package insights

import (
	"context"
	"path/filepath"
	"testing"
	"time"

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

func TestDecayChronic_ExactValuesAtFixedAges(t *testing.T) {
	t.Parallel()
	require.InDelta(t, 1.0, decayChronic(0), 1e-9)
	require.InDelta(t, 1.5, decayChronic(7), 1e-9)
	require.InDelta(t, 2.0, decayChronic(14), 1e-9)
	require.InDelta(t, 2.0, decayChronic(29), 1e-9)
}

func TestDecayAcute_ExactValuesAtFixedAges(t *testing.T) {
	t.Parallel()
	require.InDelta(t, 1.0, decayAcute(0), 1e-9)
	require.InDelta(t, 0.5, decayAcute(7), 1e-9)
	require.InDelta(t, 0.3, decayAcute(13), 1e-9)
}

func TestComputeHealthTrend_Preconditions(t *testing.T) {
	t.Parallel()

	// prev == 0 and cur > 0 is a "baseline" trend, not a percentage delta.
	trend := computeHealthTrend(0, 5)
	require.True(t, trend.Emit)
	require.Equal(t, "baseline", trend.Trend)

	// prev == 0 and cur == 0 emits nothing.
	require.False(t, computeHealthTrend(0, 0).Emit)

	// Delta under 10% of prev emits nothing.
	require.False(t, computeHealthTrend(10, 10.5).Emit)

	// Delta of exactly 10% emits at confidence 0.7.
	tenPct := computeHealthTrend(10, 11)
	require.True(t, tenPct.Emit)
	require.InDelta(t, 0.7, tenPct.Confidence, 1e-9)
	require.Equal(t, "degraded", tenPct.Trend)

	// Delta over 25% emits at confidence 0.85.
	big := computeHealthTrend(10, 13)
	require.True(t, big.Emit)
	require.InDelta(t, 0.85, big.Confidence, 1e-9)

	// A decreasing average is an "improved" trend.
	improved := computeHealthTrend(10, 7)
	require.True(t, improved.Emit)
	require.Equal(t, "improved", improved.Trend)
}

func TestAutoDismissAcute_DismissesOldAcuteButNeverChronic(t *testing.T) {
	t.Parallel()
	pool := openTestPool(t)
	store := NewStore(pool)
	ctx := context.Background()

	old := time.Now().Add(-20 * 24 * time.Hour)
	fresh := time.Now().Add(-1 * time.Hour)

	mustInsertPattern(t, pool, "p1", "insight_untested", 0.9, old)         // acute, old: should dismiss
	mustInsertPattern(t, pool, "p1", "insight_untested", 0.9, fresh)       // acute, fresh: should stay
	mustInsertPattern(t, pool, "p1", "insight_stale_goal", 0.9, old)       // chronic, old: must never auto-dismiss

	_, err := store.Query(ctx, Filter{ProjectID: "p1"})
	require.NoError(t, err)

	rows, err := pool.DB().QueryContext(ctx, `SELECT kind, dismissed FROM behavior_patterns WHERE project_id = ? ORDER BY id`, "p1")
	require.NoError(t, err)
	defer rows.Close()

	var got []struct {
		kind      string
		dismissed int
	}
	for rows.Next() {
		var k string
		var d int
		require.NoError(t, rows.Scan(&k, &d))
		got = append(got, struct {
			kind      string
			dismissed int
		}{k, d})
	}
	require.Len(t, got, 3)
	require.Equal(t, 1, got[0].dismissed)
	require.Equal(t, 0, got[1].dismissed)
	require.Equal(t, 0, got[2].dismissed)
}

func mustInsertPattern(t *testing.T, pool *storage.Pool, projectID, kind string, confidence float64, ts time.Time) {
	t.Helper()
	_, err := pool.DB().Exec(
		`INSERT INTO behavior_patterns (project_id, kind, confidence, summary, timestamp) VALUES (?, ?, ?, ?, ?)`,
		projectID, kind, confidence, "test", ts)
	require.NoError(t, err)
}

func TestAttentionRequired_SplitsAtThresholdPreservingDisplayOrder(t *testing.T) {
	t.Parallel()
	all := []Insight{
		{Source: CategoryHealthTrend, PriorityScore: 0.9},
		{Source: CategoryPondering, PriorityScore: 0.9},
		{Source: CategoryDocGap, PriorityScore: 0.5},
		{Source: CategoryPondering, PriorityScore: 0.1},
	}
	attention, rest := AttentionRequired(all)
	require.Len(t, attention, 2)
	require.Equal(t, CategoryPondering, attention[0].Source)
	require.Equal(t, CategoryHealthTrend, attention[1].Source)
	require.Len(t, rest, 2)
}
