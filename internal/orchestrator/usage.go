package orchestrator

import (
	"context"
	"sync"

	"mira/internal/obslog"
)

// UsageTracker accumulates token usage across an entire session (not just
// one turn) and warns once cumulative input tokens cross a configured
// threshold (spec §4.6's "session-wide tracker").
type UsageTracker struct {
	mu        sync.Mutex
	threshold int
	total     int
	warned    bool
}

func NewUsageTracker(threshold int) *UsageTracker {
	return &UsageTracker{threshold: threshold}
}

// Add records additional input-token usage and logs a one-time warning once
// the session crosses the threshold.
func (t *UsageTracker) Add(ctx context.Context, inputTokens int) {
	if t == nil || t.threshold <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total += inputTokens
	if !t.warned && t.total >= t.threshold {
		t.warned = true
		obslog.FromContext(ctx).Warn().Int("session_input_tokens", t.total).Int("threshold", t.threshold).Msg("usage_threshold_exceeded")
	}
}

func (t *UsageTracker) Total() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}
