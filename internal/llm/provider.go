// Package llm defines the provider-agnostic contract the tool-loop
// orchestrator drives (spec §6), generalized from the teacher's
// internal/llm.Provider/StreamHandler pair.
package llm

import "context"

// Message is one turn in a chat history. Role is "system"/"user"/"assistant"/
// "tool". ToolCallID is set on tool-role messages replying to a call.
type Message struct {
	Role       string
	Content    string
	ToolCallID string
	ToolCalls  []ToolCall
}

// ToolCall is a provider-issued request to invoke a named tool with
// JSON-encoded arguments.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolSchema describes one callable tool to the provider.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema
}

// Usage accumulates token accounting across a turn (spec §4.6).
type Usage struct {
	Input     int
	Output    int
	Reasoning int
	Cached    int
}

// EventKind discriminates the provider-agnostic streaming enum (spec §6).
type EventKind int

const (
	EventTextDelta EventKind = iota
	EventReasoningDelta
	EventToolCallStart
	EventToolCallArgumentsDelta
	EventToolCallComplete
	EventDone
	EventError
)

// Event is one item of a Chat/ChatStream sequence. Only the fields relevant
// to Kind are populated; zero values elsewhere.
type Event struct {
	Kind EventKind

	// EventTextDelta / EventReasoningDelta
	Delta string

	// EventToolCallStart / EventToolCallArgumentsDelta / EventToolCallComplete
	ToolCallID   string
	ToolCallName string
	ArgsDelta    string
	Arguments    string

	// EventDone
	ResponseID string
	Usage      Usage
	FinalText  string

	// EventError
	Err error
}

// ChatRequest bundles one provider call (spec §6's chat(messages, tools?,
// previous_response_id?)).
type ChatRequest struct {
	Messages          []Message
	Tools             []ToolSchema
	PreviousResponseID string
	Model             string
	ReasoningEffort   string // "low" | "medium" | "high", phase-driven (spec §4.6)
}

// Provider is the abstract LLM boundary the orchestrator consumes; it never
// knows which concrete SDK backs it (spec §1, §6).
type Provider interface {
	// ChatStream issues req and invokes emit for every Event produced, in
	// order, until a Done or Error event terminates the sequence. emit is
	// called synchronously from the provider's read loop; it must not block
	// indefinitely.
	ChatStream(ctx context.Context, req ChatRequest, emit func(Event)) error
}

// StatefulProvider is implemented by providers that support server-side
// conversation continuation via a response id, letting the orchestrator send
// an empty message list plus PreviousResponseID instead of full history.
type StatefulProvider interface {
	Provider
	SupportsStateful() bool
}

// Embedder produces a vector embedding for text. Recall and memory degrade to
// fuzzy/keyword search when no Embedder is attached — absence is never an
// error (spec §4.3).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
