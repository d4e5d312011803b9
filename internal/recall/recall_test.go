package recall

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"mira/internal/domain"
	"mira/internal/memory"
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

func TestRecall_FuzzyTierResultsAreMonotonicallyNonIncreasing(t *testing.T) {
	t.Parallel()
	pool := openTestPool(t)
	store := memory.NewStore(pool, nil)
	caller := domain.Identity{ProjectID: "p1"}

	for _, c := range []string{
		"the payment gateway retries failed charges automatically",
		"payment gateway logs are shipped to a bucket",
		"unrelated note about lunch plans",
	} {
		_, err := store.Remember(context.Background(), memory.RememberInput{
			Content: c, Scope: domain.ScopeProject, Caller: caller,
		})
		require.NoError(t, err)
	}

	engine := NewEngine(pool, nil, store)
	out, err := engine.Recall(context.Background(), Request{Query: "payment gateway retries", Caller: caller})
	require.NoError(t, err)
	require.Equal(t, "fuzzy", out.Stage)
	require.NotEmpty(t, out.Results)
	for i := 1; i < len(out.Results); i++ {
		require.LessOrEqual(t, out.Results[i].Score, out.Results[i-1].Score)
	}
}

func TestRecall_KeywordFallbackOnlyUsedWhenFuzzyEmpty(t *testing.T) {
	t.Parallel()
	pool := openTestPool(t)
	store := memory.NewStore(pool, nil)
	caller := domain.Identity{ProjectID: "p1"}

	_, err := store.Remember(context.Background(), memory.RememberInput{
		Content: "zzz completely unrelated content that shares no tokens", Scope: domain.ScopeProject, Caller: caller,
	})
	require.NoError(t, err)

	engine := NewEngine(pool, nil, store)
	// A query with no fuzzy-matchable overlap still must fall through to
	// keyword search rather than returning empty.
	out, err := engine.Recall(context.Background(), Request{Query: "xx", Caller: caller})
	require.NoError(t, err)
	require.Contains(t, []string{"fuzzy", "keyword fallback"}, out.Stage)
}

func TestRecall_QueryBelowTwoCharsRejected(t *testing.T) {
	t.Parallel()
	pool := openTestPool(t)
	store := memory.NewStore(pool, nil)
	engine := NewEngine(pool, nil, store)

	_, err := engine.Recall(context.Background(), Request{Query: "a", Caller: domain.Identity{ProjectID: "p1"}})
	require.Error(t, err)
	require.True(t, domain.IsKind(err, domain.KindInvalidInput))
}

func TestBoostScore_EntityMatchesCapAtRawTimes127(t *testing.T) {
	t.Parallel()
	pool := openTestPool(t)
	store := memory.NewStore(pool, nil)
	caller := domain.Identity{ProjectID: "p1"}

	id, err := store.Remember(context.Background(), memory.RememberInput{
		Content: "PaymentGateway BillingQueue OrderWorker all talk over the same bus",
		Scope:   domain.ScopeProject, Caller: caller,
	})
	require.NoError(t, err)

	facts, err := store.List(context.Background(), caller, 10, 0, "", "")
	require.NoError(t, err)
	var fact domain.MemoryFact
	for _, f := range facts {
		if f.ID == id {
			fact = f
		}
	}
	require.Equal(t, id, fact.ID)

	entities := []string{"PaymentGateway", "BillingQueue", "OrderWorker"}
	boosted, err := storage.Interact(context.Background(), pool, func(conn *sql.Conn) (float64, error) {
		return boostScore(context.Background(), conn, 0.80, fact, entities, ""), nil
	})
	require.NoError(t, err)
	require.LessOrEqual(t, boosted, 0.80*entityBoostCap+1e-9)
	require.Greater(t, boosted, 0.80)
}

func TestEscapeLike_EscapesWildcardsAndBackslash(t *testing.T) {
	t.Parallel()
	require.Equal(t, `50\%`, escapeLike("50%"))
	require.Equal(t, `a\_b`, escapeLike("a_b"))
	require.Equal(t, `c\\d`, escapeLike(`c\d`))
}

func TestRecall_KeywordSearchEscapesLikeWildcardsInQuery(t *testing.T) {
	t.Parallel()
	pool := openTestPool(t)
	store := memory.NewStore(pool, nil)
	caller := domain.Identity{ProjectID: "p1"}

	_, err := store.Remember(context.Background(), memory.RememberInput{
		Content: "100% coverage is not the goal here", Scope: domain.ScopeProject, Caller: caller,
	})
	require.NoError(t, err)
	_, err = store.Remember(context.Background(), memory.RememberInput{
		Content: "completely unrelated fact with zzzqqq tokens", Scope: domain.ScopeProject, Caller: caller,
	})
	require.NoError(t, err)

	engine := NewEngine(pool, nil, store)
	// A literal "%" in the query must not act as a SQL wildcard matching
	// every row; only the fact actually containing "100%" should surface
	// when forced into the keyword tier by a non-fuzzy-matchable query.
	out, err := engine.keywordSearch(context.Background(), "100%", Request{Caller: caller}, 10)
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	require.Contains(t, out.Results[0].Fact.Content, "100%")
}
