package llm

import (
	"os"
	"strconv"
	"strings"
)

// knownContextWindows records token-window sizes for models the orchestrator
// is commonly pointed at, adapted from the teacher's own table so phase-based
// budget decisions (spec §4.6) have real numbers without a network call.
var knownContextWindows = map[string]int{
	"claude-opus-4":     200_000,
	"claude-sonnet-4":   200_000,
	"claude-3-5-sonnet": 200_000,
	"claude-3-5-haiku":  200_000,
	"gpt-4o":            128_000,
	"gpt-4o-mini":       128_000,
	"gpt-4.1":           1_000_000,
	"o3":                200_000,
	"o4-mini":           200_000,
}

// ContextSize returns the known context window for model, honoring an
// env-var override MODEL_<NAME>_CONTEXT_TOKENS (name upper-cased, non-alnum
// replaced with '_') before falling back to the static table.
func ContextSize(model string) (tokens int, known bool) {
	envKey := "MODEL_" + sanitizeEnvKey(model) + "_CONTEXT_TOKENS"
	if v := os.Getenv(envKey); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n, true
		}
	}
	if n, ok := knownContextWindows[model]; ok {
		return n, true
	}
	return 0, false
}

func sanitizeEnvKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// EstimateTokens applies the spec's deliberate constant-factor estimate
// (len(text)/4) used throughout the Oracle and prompt assembler instead of a
// real tokenizer call.
func EstimateTokens(text string) int {
	return len(text) / 4
}
