package orchestrator

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"mira/internal/llm"
)

// alwaysToolProvider never stops requesting a tool call, used to exercise
// the iteration bound and forced-synthesis pass.
type alwaysToolProvider struct {
	calls int
}

func (p *alwaysToolProvider) ChatStream(ctx context.Context, req llm.ChatRequest, emit func(llm.Event)) error {
	p.calls++
	if len(req.Tools) == 0 {
		// Forced synthesis: last call, no tools offered.
		emit(llm.Event{Kind: llm.EventTextDelta, Delta: "final answer"})
		emit(llm.Event{Kind: llm.EventDone, ResponseID: "r", FinalText: "final answer"})
		return nil
	}
	emit(llm.Event{Kind: llm.EventToolCallStart, ToolCallID: "1", ToolCallName: "noop"})
	emit(llm.Event{Kind: llm.EventToolCallComplete, ToolCallID: "1", Arguments: "{}"})
	emit(llm.Event{Kind: llm.EventDone, ResponseID: "r"})
	return nil
}

// oneShotProvider answers directly with no tool calls on its first call.
type oneShotProvider struct{}

func (oneShotProvider) ChatStream(ctx context.Context, req llm.ChatRequest, emit func(llm.Event)) error {
	emit(llm.Event{Kind: llm.EventTextDelta, Delta: "hi"})
	emit(llm.Event{Kind: llm.EventDone, ResponseID: "r1"})
	return nil
}

type stubDispatcher struct {
	dispatchCount int
}

func (d *stubDispatcher) Schemas() []llm.ToolSchema {
	return []llm.ToolSchema{{Name: "noop", Description: "does nothing"}}
}

func (d *stubDispatcher) Dispatch(ctx context.Context, name string, argsJSON []byte) ([]byte, string, error) {
	d.dispatchCount++
	return []byte(`{"ok":true}`), "", nil
}

func TestRun_TerminatesWithinMaxIterationsPlusOneAndFinalCallHasNoTools(t *testing.T) {
	t.Parallel()
	provider := &alwaysToolProvider{}
	dispatcher := &stubDispatcher{}
	engine := Engine{Provider: provider, Tools: dispatcher, MaxIterations: 3}

	text, _, err := engine.Run(context.Background(), TurnRequest{Messages: []llm.Message{{Role: "user", Content: "go"}}}, nil)
	require.NoError(t, err)
	require.Equal(t, "final answer", text)
	// 3 tool-selection iterations + 1 forced-synthesis pass.
	require.LessOrEqual(t, provider.calls, 4)
	require.Equal(t, 3, dispatcher.dispatchCount)
}

func TestRun_StopsImmediatelyWhenNoToolCallsRequested(t *testing.T) {
	t.Parallel()
	engine := Engine{Provider: oneShotProvider{}, Tools: &stubDispatcher{}, MaxIterations: 5}

	text, usage, err := engine.Run(context.Background(), TurnRequest{Messages: []llm.Message{{Role: "user", Content: "hi"}}}, nil)
	require.NoError(t, err)
	require.Equal(t, "hi", text)
	require.Equal(t, 0, usage.Input)
}

func TestRun_CancellationStopsBeforeNextDispatchRound(t *testing.T) {
	t.Parallel()
	provider := &alwaysToolProvider{}
	dispatcher := &stubDispatcher{}
	engine := Engine{Provider: provider, Tools: dispatcher, MaxIterations: 10}

	var cancel atomic.Bool
	cancel.Store(true)

	text, _, err := engine.Run(context.Background(), TurnRequest{
		Messages: []llm.Message{{Role: "user", Content: "go"}},
		Cancel:   &cancel,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, "", text)
	// Cancellation is observed right after the first tool-call round is
	// requested, before any tool is actually dispatched.
	require.Equal(t, 0, dispatcher.dispatchCount)
}
