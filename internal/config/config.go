// Package config loads Mira's runtime configuration: feature flags and
// thresholds from a YAML file, provider credentials and path overrides from
// the environment, mirroring the teacher's config.Config/LoadConfig split
// between structured YAML settings and env-sourced secrets.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"mira/internal/obslog"
)

// ApiKeys bundles provider credentials loaded once at startup (spec §6).
type ApiKeys struct {
	Anthropic string `yaml:"anthropic_key,omitempty"`
	OpenAI    string `yaml:"openai_key,omitempty"`
}

// ContextConfig controls prompt-assembly feature flags (spec §7).
type ContextConfig struct {
	UseRollingSummariesInContext bool `yaml:"use_rolling_summaries_in_context"`
	ContextRecentMessages        int  `yaml:"context_recent_messages"`
	ContextSemanticMatches       int  `yaml:"context_semantic_matches"`
}

// OrchestratorConfig controls the tool-call loop's iteration and context
// reset thresholds (spec §7).
type OrchestratorConfig struct {
	ToolMaxIterations        int     `yaml:"tool_max_iterations"`
	ChainResetTokenThreshold int     `yaml:"chain_reset_token_threshold"`
	ChainResetMinCachePct    float64 `yaml:"chain_reset_min_cache_pct"`
}

// Config is Mira's full runtime configuration.
type Config struct {
	MainDBPath string `yaml:"main_db_path"`
	CodeDBPath string `yaml:"code_db_path"`
	LogLevel   string `yaml:"log_level"`
	LogPath    string `yaml:"log_path,omitempty"`

	Context      ContextConfig      `yaml:"context"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`

	// ApiKeys is never populated from YAML; it is always sourced from the
	// environment so credentials never land in a config file on disk.
	ApiKeys ApiKeys `yaml:"-"`

	// MiraProjectPath is the MIRA_PROJECT_PATH fallback used for project
	// auto-init when no hook file names the active project (spec §6).
	MiraProjectPath string `yaml:"-"`
}

func defaults() Config {
	return Config{
		MainDBPath: "mira_main.db",
		CodeDBPath: "mira_code.db",
		LogLevel:   "info",
		Context: ContextConfig{
			UseRollingSummariesInContext: true,
			ContextRecentMessages:        10,
			ContextSemanticMatches:       8,
		},
		Orchestrator: OrchestratorConfig{
			ToolMaxIterations:        5,
			ChainResetTokenThreshold: 0,
			ChainResetMinCachePct:    0,
		},
	}
}

// Load reads filename (if it exists) over a set of defaults, then applies
// .env and process environment overrides for credentials and path
// fallbacks. A missing filename is not an error: Mira runs on defaults plus
// whatever the environment supplies, the same tolerant posture the
// teacher's cmd entrypoints take toward an absent .env.
func Load(filename string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshaling config: %w", err)
		}
	}

	cfg.ApiKeys.Anthropic = os.Getenv("ANTHROPIC_API_KEY")
	cfg.ApiKeys.OpenAI = os.Getenv("OPENAI_API_KEY")
	cfg.MiraProjectPath = os.Getenv("MIRA_PROJECT_PATH")

	if v := os.Getenv("MIRA_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CHAIN_RESET_TOKEN_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Orchestrator.ChainResetTokenThreshold = n
		}
	}
	if v := os.Getenv("CHAIN_RESET_MIN_CACHE_PCT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Orchestrator.ChainResetMinCachePct = f
		}
	}

	if cfg.Context.ContextRecentMessages <= 0 {
		cfg.Context.ContextRecentMessages = 10
		obslog.FromContext(nil).Warn().Msg("context_recent_messages_unset_using_default")
	}
	if cfg.Context.ContextSemanticMatches <= 0 {
		cfg.Context.ContextSemanticMatches = 8
		obslog.FromContext(nil).Warn().Msg("context_semantic_matches_unset_using_default")
	}
	if cfg.Orchestrator.ToolMaxIterations <= 0 {
		cfg.Orchestrator.ToolMaxIterations = 5
	}

	return &cfg, nil
}
