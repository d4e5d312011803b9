package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("MIRA_PROJECT_PATH", "")
	t.Setenv("CHAIN_RESET_TOKEN_THRESHOLD", "")
	t.Setenv("CHAIN_RESET_MIN_CACHE_PCT", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.Equal(t, 10, cfg.Context.ContextRecentMessages)
	require.Equal(t, 8, cfg.Context.ContextSemanticMatches)
	require.Equal(t, 5, cfg.Orchestrator.ToolMaxIterations)
}

func TestLoad_YAMLOverridesDefaultsAndEnvOverridesCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mira.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
context:
  use_rolling_summaries_in_context: false
  context_recent_messages: 25
orchestrator:
  tool_max_iterations: 3
`), 0o644))

	t.Setenv("ANTHROPIC_API_KEY", "sk-test-123")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("MIRA_PROJECT_PATH", "/repo")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.False(t, cfg.Context.UseRollingSummariesInContext)
	require.Equal(t, 25, cfg.Context.ContextRecentMessages)
	require.Equal(t, 3, cfg.Orchestrator.ToolMaxIterations)
	require.Equal(t, "sk-test-123", cfg.ApiKeys.Anthropic)
	require.Equal(t, "/repo", cfg.MiraProjectPath)
}

func TestLoad_EnvOverridesChainResetThresholds(t *testing.T) {
	t.Setenv("CHAIN_RESET_TOKEN_THRESHOLD", "4096")
	t.Setenv("CHAIN_RESET_MIN_CACHE_PCT", "0.5")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, 4096, cfg.Orchestrator.ChainResetTokenThreshold)
	require.InDelta(t, 0.5, cfg.Orchestrator.ChainResetMinCachePct, 1e-9)
}
