package carousel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTick_BuildFailureEntersPanicAndCyclesPanicSet(t *testing.T) {
	t.Parallel()
	c := New(DefaultConfig())

	d, _ := c.TickWithContext([]Trigger{{Kind: "build_failure"}}, "")
	require.Equal(t, ModePanic, d.Mode)
	require.Equal(t, CategoryErrors, d.Category)
	require.Equal(t, ModePanic, c.Mode())

	// Subsequent ticks with no trigger cycle through panicSet only.
	for i := 0; i < 4; i++ {
		d, _ := c.TickWithContext(nil, "")
		require.Contains(t, []Category{CategoryErrors, CategoryCode}, d.Category)
	}
}

func TestTick_ErrorResolvedExitsPanicBackToCruising(t *testing.T) {
	t.Parallel()
	c := New(DefaultConfig())
	c.TickWithContext([]Trigger{{Kind: "build_failure"}}, "")
	require.Equal(t, ModePanic, c.Mode())

	d, _ := c.TickWithContext([]Trigger{{Kind: "error_resolved"}}, "")
	require.Equal(t, ModeCruising, c.Mode())
	require.Equal(t, ModeCruising, d.Mode)
}

func TestTick_SemanticMatchPinsFocusUntilExited(t *testing.T) {
	t.Parallel()
	c := New(DefaultConfig())

	d, _ := c.TickWithContext([]Trigger{
		{Kind: "semantic_match", Category: CategoryGoals, Confidence: 0.9},
	}, "")
	require.Equal(t, ModeFocus, d.Mode)
	require.Equal(t, CategoryGoals, d.Category)

	// Focus holds on subsequent ticks regardless of rotation interval.
	for i := 0; i < 6; i++ {
		d, _ := c.TickWithContext(nil, "")
		require.Equal(t, CategoryGoals, d.Category)
		require.Equal(t, "pinned", d.Reason)
	}
}

func TestTick_StarvationRescueFiresBeforeTightBudgetExpires(t *testing.T) {
	t.Parallel()
	c := New(DefaultConfig())

	seen := map[Category]bool{}
	var sawRescue bool
	for i := 0; i < 40; i++ {
		d, _ := c.TickWithContext(nil, "")
		seen[d.Category] = true
		if d.StarvationRescue {
			sawRescue = true
		}
	}
	require.True(t, sawRescue, "expected at least one starvation rescue over 40 ticks")
	require.True(t, seen[CategoryErrors], "errors category should never starve past its tight budget")
}

func TestPinAnchor_ExpiresAfterTTLTicks(t *testing.T) {
	t.Parallel()
	c := New(DefaultConfig())
	c.PinAnchor("remember this", 2)
	require.Equal(t, []string{"remember this"}, c.Anchors())

	c.TickWithContext(nil, "")
	require.Equal(t, []string{"remember this"}, c.Anchors())

	c.TickWithContext(nil, "")
	require.Empty(t, c.Anchors())
}

func TestUnpin_RemovesMatchingAnchorOnly(t *testing.T) {
	t.Parallel()
	c := New(DefaultConfig())
	c.PinAnchor("keep", 5)
	c.PinAnchor("drop", 5)

	require.True(t, c.Unpin("drop"))
	require.Equal(t, []string{"keep"}, c.Anchors())
	require.False(t, c.Unpin("drop"))
}

func TestKeywordTrigger_SelectsCategoryFromQuery(t *testing.T) {
	t.Parallel()
	c := New(DefaultConfig())
	d, _ := c.TickWithContext(nil, "what's our current goal and milestone?")
	require.Equal(t, CategoryGoals, d.Category)
}

func TestDecisionLog_CapsAtFiftyMostRecent(t *testing.T) {
	t.Parallel()
	c := New(DefaultConfig())
	for i := 0; i < 80; i++ {
		c.TickWithContext(nil, "")
	}
	require.LessOrEqual(t, len(c.DecisionLog()), decisionLogCap)
}
