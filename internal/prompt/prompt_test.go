package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidateCodeFix_RejectsMarkdownFence(t *testing.T) {
	t.Parallel()
	err := ValidateCodeFix("package a\n", "```go\npackage a\n```")
	require.Error(t, err)
}

func TestValidateCodeFix_RejectsOmissionPlaceholders(t *testing.T) {
	t.Parallel()
	original := strings.Repeat("line\n", 20)
	err := ValidateCodeFix(original, "func x() {}\n// rest unchanged\n")
	require.Error(t, err)
}

func TestValidateCodeFix_RejectsSuspiciouslyShortRewrite(t *testing.T) {
	t.Parallel()
	original := strings.Repeat("line\n", 20)
	err := ValidateCodeFix(original, "just a few\nlines\n")
	require.Error(t, err)
}

func TestValidateCodeFix_AcceptsComparableLengthRewrite(t *testing.T) {
	t.Parallel()
	original := strings.Repeat("line\n", 20)
	rewritten := strings.Repeat("line\n", 19)
	require.NoError(t, ValidateCodeFix(original, rewritten))
}

func TestRelativeAge_BucketsByDuration(t *testing.T) {
	t.Parallel()
	require.Equal(t, "just now", relativeAge(30*time.Second))
	require.Equal(t, "5m ago", relativeAge(5*time.Minute))
	require.Equal(t, "2h ago", relativeAge(2*time.Hour))
	require.Equal(t, "3d ago", relativeAge(3*24*time.Hour))
}

func TestBuildSystemPrompt_IncludesPersonaAndTools(t *testing.T) {
	t.Parallel()
	in := Input{
		Persona: "You are Mira.",
		Env:     Env{OS: "linux"},
		Tools:   []ToolInfo{{Name: "memory", Description: "remembers things"}},
	}
	out := BuildSystemPrompt(in)
	require.Contains(t, out, "You are Mira.")
	require.Contains(t, out, "memory")
}
