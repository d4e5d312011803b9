package llm

import "context"

// CompactionItem is one message handed to a CompactionProvider for
// summarization (spec §4.7's "summarize these messages").
type CompactionItem struct {
	Role    string
	Content string
}

// CompactionProvider is the narrow interface internal/digest depends on: it
// asks for a bounded summary of a slice of transcript items and gets back
// opaque summary text, grounded in the teacher's CompactionProvider shape
// (internal/llm/compaction.go) but trimmed to what digest actually needs.
type CompactionProvider interface {
	Summarize(ctx context.Context, items []CompactionItem, instruction string) (string, error)
}
