// Package digest implements context compaction (spec §4.7): batch
// summarization when a message window overflows, level-2
// meta-summarization of accumulated summaries, and a deterministic (no LLM)
// compaction-context extractor used to seed those summaries with the facts
// worth keeping. Grounded in the teacher's internal/llm.CompactionProvider
// shape for the LLM-driven half and in general paragraph-splitting /
// keyword-bank extraction technique for the deterministic half.
package digest

import (
	"context"
	"regexp"
	"strings"

	"mira/internal/llm"
)

const (
	MaxItemsPerCategory = 5
	MinContentLen       = 10
	MaxContentLen       = 800
	MinFilePathLen      = 5
	MaxFileRefs         = 10
	MaxTranscriptBytes  = 50 * 1024 * 1024
)

var decisionKeywords = []string{"decided", "decision", "we'll go with", "agreed", "chose to", "going with"}
var taskKeywords = []string{"todo", "task", "next step", "need to", "will implement", "will add"}
var issueKeywords = []string{"error", "bug", "broken", "fails", "failing", "issue", "problem"}

var continuationPrompts = map[string]bool{
	"continue": true, "ok": true, "okay": true, "lgtm": true, "go ahead": true,
	"yes": true, "sure": true, "sounds good": true, "proceed": true,
}

var filePathPattern = regexp.MustCompile(`[\w./\-]+\.[A-Za-z]{1,8}\b`)

// CompactionContext is the deterministic extraction result (spec §4.7).
// Fields default to their zero value so forward-compatible (de)serializers
// can omit absent ones.
type CompactionContext struct {
	Decisions       []string `json:"decisions,omitempty"`
	Tasks           []string `json:"tasks,omitempty"`
	Issues          []string `json:"issues,omitempty"`
	UserIntent      string   `json:"user_intent,omitempty"`
	FilesReferenced []string `json:"files_referenced,omitempty"`
}

// TranscriptMessage is the minimal shape the extractor needs.
type TranscriptMessage struct {
	Role    string
	Content string
}

// Extract scans messages deterministically and builds a CompactionContext
// (spec §4.7). Messages beyond MaxTranscriptBytes total content are ignored
// from the tail backward (oldest content dropped first, since recency bias
// already drives reverse iteration below).
func Extract(messages []TranscriptMessage) CompactionContext {
	messages = capToTranscriptBytes(messages)

	var decisions, tasks, issues []string
	seenDecisions, seenTasks, seenIssues := map[string]bool{}, map[string]bool{}, map[string]bool{}

	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Role != "assistant" {
			continue
		}
		for _, para := range splitParagraphs(m.Content) {
			if len(para) < MinContentLen {
				continue
			}
			lower := strings.ToLower(para)
			truncated := truncate(para, MaxContentLen)

			if len(decisions) < MaxItemsPerCategory && matchesAny(lower, decisionKeywords) && !seenDecisions[truncated] {
				seenDecisions[truncated] = true
				decisions = append(decisions, truncated)
			}
			if len(tasks) < MaxItemsPerCategory && matchesAny(lower, taskKeywords) && !seenTasks[truncated] {
				seenTasks[truncated] = true
				tasks = append(tasks, truncated)
			}
			prefix := lower
			if len(prefix) > 80 {
				prefix = prefix[:80]
			}
			if len(issues) < MaxItemsPerCategory && matchesAny(prefix, issueKeywords) && !seenIssues[truncated] {
				seenIssues[truncated] = true
				issues = append(issues, truncated)
			}
		}
	}

	reverseStrings(decisions)
	reverseStrings(tasks)
	reverseStrings(issues)

	return CompactionContext{
		Decisions:       decisions,
		Tasks:           tasks,
		Issues:          issues,
		UserIntent:      firstUserIntent(messages),
		FilesReferenced: extractFileRefs(messages),
	}
}

func matchesAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func splitParagraphs(content string) []string {
	raw := strings.Split(content, "\n\n")
	var out []string
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func reverseStrings(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func firstUserIntent(messages []TranscriptMessage) string {
	for _, m := range messages {
		if m.Role != "user" {
			continue
		}
		trimmed := strings.TrimSpace(m.Content)
		if trimmed == "" {
			continue
		}
		if continuationPrompts[strings.ToLower(trimmed)] {
			continue
		}
		return truncate(trimmed, MaxContentLen)
	}
	return ""
}

func extractFileRefs(messages []TranscriptMessage) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range messages {
		if m.Role != "assistant" {
			continue
		}
		for _, match := range filePathPattern.FindAllString(m.Content, -1) {
			if len(match) < MinFilePathLen || strings.HasPrefix(match, "//") || seen[match] {
				continue
			}
			seen[match] = true
			out = append(out, match)
			if len(out) >= MaxFileRefs {
				return out
			}
		}
	}
	return out
}

func capToTranscriptBytes(messages []TranscriptMessage) []TranscriptMessage {
	total := 0
	for _, m := range messages {
		total += len(m.Content)
	}
	if total <= MaxTranscriptBytes {
		return messages
	}
	var kept []TranscriptMessage
	budget := MaxTranscriptBytes
	for i := len(messages) - 1; i >= 0 && budget > 0; i-- {
		kept = append([]TranscriptMessage{messages[i]}, kept...)
		budget -= len(messages[i].Content)
	}
	return kept
}

// Merge combines two CompactionContexts: later occurrences of the same item
// win the position, user_intent keeps the earliest non-empty value, and
// files_referenced stays capped (spec §4.7).
func Merge(a, b CompactionContext) CompactionContext {
	return CompactionContext{
		Decisions:       mergeDedupLatestPosition(a.Decisions, b.Decisions, MaxItemsPerCategory),
		Tasks:           mergeDedupLatestPosition(a.Tasks, b.Tasks, MaxItemsPerCategory),
		Issues:          mergeDedupLatestPosition(a.Issues, b.Issues, MaxItemsPerCategory),
		UserIntent:      earliestNonEmpty(a.UserIntent, b.UserIntent),
		FilesReferenced: mergeDedupLatestPosition(a.FilesReferenced, b.FilesReferenced, MaxFileRefs),
	}
}

// mergeDedupLatestPosition concatenates a then b, keeping each distinct
// item's *last* occurrence position, then truncates to the last cap items.
func mergeDedupLatestPosition(a, b []string, limit int) []string {
	combined := append(append([]string{}, a...), b...)
	lastIdx := map[string]int{}
	for i, v := range combined {
		lastIdx[v] = i
	}
	var out []string
	seen := map[string]bool{}
	for i, v := range combined {
		if lastIdx[v] != i || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func earliestNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// BatchSummarize hands the messages exiting the window to an LLM compaction
// provider with a bounded instruction, returning the summary text to store
// in place of the originals (spec §4.7's batch summarization).
func BatchSummarize(ctx context.Context, provider llm.CompactionProvider, exiting []TranscriptMessage) (string, error) {
	items := make([]llm.CompactionItem, len(exiting))
	for i, m := range exiting {
		items[i] = llm.CompactionItem{Role: m.Role, Content: m.Content}
	}
	return provider.Summarize(ctx, items, "Summarize these messages concisely, preserving decisions, tasks, and open issues.")
}

// MetaSummarize runs level-2 summarization over already-produced summaries
// once enough of them accumulate (spec §4.7).
func MetaSummarize(ctx context.Context, provider llm.CompactionProvider, summaries []string) (string, error) {
	items := make([]llm.CompactionItem, len(summaries))
	for i, s := range summaries {
		items[i] = llm.CompactionItem{Role: "assistant", Content: s}
	}
	return provider.Summarize(ctx, items, "Summarize these summaries into one higher-level summary.")
}
