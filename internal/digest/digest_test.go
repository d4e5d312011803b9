package digest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtract_DecisionTaskIssueKeywordBanksHitAndMiss(t *testing.T) {
	t.Parallel()
	msgs := []TranscriptMessage{
		{Role: "user", Content: "can you look into the login flow?"},
		{Role: "assistant", Content: "We decided to use cookie-based sessions for this.\n\nThis paragraph has no bank keywords at all and should be ignored entirely."},
		{Role: "assistant", Content: "TODO: need to add a rate limiter before shipping."},
		{Role: "assistant", Content: "The build is failing with a null pointer error in auth.go."},
	}

	got := Extract(msgs)
	require.Len(t, got.Decisions, 1)
	require.Contains(t, got.Decisions[0], "cookie-based sessions")
	require.Len(t, got.Tasks, 1)
	require.Contains(t, got.Tasks[0], "rate limiter")
	require.Len(t, got.Issues, 1)
	require.Contains(t, got.Issues[0], "failing")
}

func TestExtract_IssueKeywordOnlyMatchedWithinPrefix(t *testing.T) {
	t.Parallel()
	// "error" appears far past the 80-char prefix window scanned for issues,
	// so this paragraph must NOT be classified as an issue.
	padding := ""
	for len(padding) < 90 {
		padding += "x"
	}
	msgs := []TranscriptMessage{
		{Role: "assistant", Content: padding + " this eventually mentions error but too late to count"},
	}
	got := Extract(msgs)
	require.Empty(t, got.Issues)
}

func TestExtract_UserIntentSkipsContinuationPromptsAndPicksFirstRealOne(t *testing.T) {
	t.Parallel()
	msgs := []TranscriptMessage{
		{Role: "user", Content: "ok"},
		{Role: "assistant", Content: "sure, doing that now"},
		{Role: "user", Content: "  please refactor the parser to stream tokens  "},
		{Role: "user", Content: "continue"},
	}
	got := Extract(msgs)
	require.Equal(t, "please refactor the parser to stream tokens", got.UserIntent)
}

func TestExtract_FileRefsDedupedAndCappedAtTen(t *testing.T) {
	t.Parallel()
	content := ""
	for i := 0; i < 15; i++ {
		content += " file" + string(rune('a'+i)) + ".go"
	}
	msgs := []TranscriptMessage{{Role: "assistant", Content: content + " file0.go file0.go"}}
	got := Extract(msgs)
	require.Len(t, got.FilesReferenced, MaxFileRefs)
}

func TestMerge_UserIntentKeepsEarliestNonEmpty(t *testing.T) {
	t.Parallel()
	a := CompactionContext{UserIntent: "first intent"}
	b := CompactionContext{UserIntent: "second intent"}

	merged := Merge(a, b)
	require.Equal(t, "first intent", merged.UserIntent)

	// Only fills a previously-null slot.
	merged2 := Merge(CompactionContext{}, b)
	require.Equal(t, "second intent", merged2.UserIntent)
}

func TestMerge_DecisionsDedupeKeepingLastPositionAndCap(t *testing.T) {
	t.Parallel()
	a := CompactionContext{Decisions: []string{"d1", "d2", "d3"}}
	b := CompactionContext{Decisions: []string{"d2", "d4", "d5", "d6"}}

	merged := Merge(a, b)
	require.LessOrEqual(t, len(merged.Decisions), MaxItemsPerCategory)
	// d2 reappears in b, so its position should be from b, not duplicated.
	count := 0
	for _, d := range merged.Decisions {
		if d == "d2" {
			count++
		}
	}
	require.Equal(t, 1, count)
}
