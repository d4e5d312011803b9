package oracle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGather_OnlyEnabledSourcesRunAndFailingSourceDegradesToEmpty(t *testing.T) {
	t.Parallel()
	o := New()
	o.Register("code_context", func(ctx context.Context, req Request) (SourceResult, error) {
		return SourceResult{Content: "some code context"}, nil
	})
	o.Register("build_errors", func(ctx context.Context, req Request) (SourceResult, error) {
		return SourceResult{}, errors.New("gatherer exploded")
	})
	o.Register("expertise", func(ctx context.Context, req Request) (SourceResult, error) {
		return SourceResult{Content: "unused, disabled by config"}, nil
	})

	cfg := Config{Sources: map[string]bool{"code_context": true, "build_errors": true}}
	got := o.Gather(context.Background(), Request{Config: cfg})

	require.Len(t, got.Sources, 2)
	require.Contains(t, got.SourcesUsed, "code_context")
	require.NotContains(t, got.SourcesUsed, "build_errors") // the failing source contributes no content
	require.NotContains(t, got.SourcesUsed, "expertise")    // disabled by config, never run
	require.Greater(t, got.EstimatedTokens, 0)
}

func TestConfigFor_PresetsMatchFixedSourceSetsAndBudgets(t *testing.T) {
	t.Parallel()

	minimal := ConfigFor(PresetMinimal)
	require.Equal(t, 4000, minimal.TokenBudget)
	require.True(t, minimal.Sources["code_context"])
	require.False(t, minimal.Sources["expertise"])

	full := ConfigFor(PresetFull)
	require.Equal(t, 16000, full.TokenBudget)
	for _, s := range allSources {
		require.True(t, full.Sources[s])
	}

	forError := ConfigFor(PresetForError)
	require.Equal(t, 4000, forError.TokenBudget)
	require.True(t, forError.Sources["build_errors"])
	require.False(t, forError.Sources["expertise"])
}

func TestFormatForPrompt_SkipsEmptyContentBlocks(t *testing.T) {
	t.Parallel()
	g := GatheredContext{Sources: []SourceResult{
		{Name: "a", Content: "hello"},
		{Name: "b", Content: ""},
		{Name: "c", Content: "world"},
	}}
	out := g.FormatForPrompt()
	require.Equal(t, "hello\n\nworld\n\n", out)
}
