// Package orchestrator runs the bounded agentic tool loop (spec §4.6):
// stream provider events, accumulate tool calls, dispatch them concurrently,
// and continue — stateful providers get an empty message list plus
// previous_response_id, non-stateful providers get the full history resent —
// until the provider stops requesting tools or the iteration bound forces a
// synthesis pass. Grounded on the teacher's internal/agent.Engine.runStreamLoop
// and dispatchTools, generalized from llm.Message accumulation to the
// provider-agnostic llm.Event stream this module's adapters emit.
package orchestrator

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"mira/internal/llm"
	"mira/internal/obslog"
)

const (
	defaultMaxIterations    = 5
	streamingSafetyValve    = 25
	phaseToolSelection      = "tool_selection"
	phaseSynthesisAfterTool = "synthesis_after_tools"
	phaseDirectResponse     = "direct_response"
	phaseForcedSynthesis    = "forced_synthesis"
)

// ToolDispatcher is the tool surface the orchestrator drives. Implemented by
// internal/tools.Registry; kept as a small local interface (rather than an
// import) so sub-gatherers and tools never need a back-reference to the
// orchestrator (spec §9's cyclic-reference note).
type ToolDispatcher interface {
	Schemas() []llm.ToolSchema
	// Dispatch executes one tool call, returning its JSON result and,
	// when the tool reports one, a unified diff to render alongside the text.
	Dispatch(ctx context.Context, name string, argsJSON []byte) (outputJSON []byte, diff string, err error)
}

// Engine drives one turn's tool loop against a single provider.
type Engine struct {
	Provider      llm.Provider
	Tools         ToolDispatcher
	MaxIterations int // 0 => defaultMaxIterations
	Tracker       *UsageTracker
}

// TurnRequest is one user turn's input.
type TurnRequest struct {
	Messages []llm.Message
	Model    string
	Cancel   *atomic.Bool // checked before/after every tool dispatch
	Stream   bool         // selects the streaming safety valve (25) over 5
}

// toolCallAcc accumulates one tool call's streamed arguments.
type toolCallAcc struct {
	id, name, args string
}

// Run executes the bounded loop and returns the final assistant text and the
// total usage. The provider response id is used only within the turn.
func (e *Engine) Run(ctx context.Context, req TurnRequest, emit func(llm.Event)) (string, llm.Usage, error) {
	ctx, span := obslog.StartSpan(ctx, "orchestrator.run")
	defer span()

	maxIter := e.resolveMaxIterations(req)
	messages := append([]llm.Message(nil), req.Messages...)
	var previousResponseID string
	var total llm.Usage
	var lastToolList []string
	iteration := 0

	stateful, isStateful := e.Provider.(llm.StatefulProvider)
	supportsStateful := isStateful && stateful.SupportsStateful()

	for {
		iteration++
		if iteration > maxIter {
			text, usage, err := e.finalPass(ctx, messages, previousResponseID, supportsStateful, emit)
			total = addUsage(total, usage)
			e.Tracker.Add(ctx, total.Input)
			return text, total, err
		}

		phase := choosePhase(iteration, lastToolList)
		chatReq := llm.ChatRequest{
			Tools:           e.Tools.Schemas(),
			Model:           req.Model,
			ReasoningEffort: effortForPhase(phase),
		}
		if supportsStateful && previousResponseID != "" {
			chatReq.PreviousResponseID = previousResponseID
			chatReq.Messages = nil
		} else {
			chatReq.Messages = messages
		}

		text, toolCalls, usage, responseID, err := e.streamOnce(ctx, chatReq, emit)
		if err != nil {
			return "", total, err
		}
		total = addUsage(total, usage)
		previousResponseID = responseID

		if text != "" {
			messages = append(messages, llm.Message{Role: "assistant", Content: text})
		}
		if len(toolCalls) == 0 {
			e.Tracker.Add(ctx, total.Input)
			return text, total, nil
		}

		lastToolList = toolNames(toolCalls)
		if req.Cancel != nil && req.Cancel.Load() {
			return text, total, nil
		}
		results := e.dispatchTools(ctx, toolCalls, req.Cancel)
		messages = append(messages, resultsToMessages(toolCalls, results)...)
		if req.Cancel != nil && req.Cancel.Load() {
			return text, total, nil
		}
	}
}

// resolveMaxIterations picks the effective bound: Engine.MaxIterations if
// set, otherwise the streaming safety valve (25) for streamed turns or the
// default (5) for non-streamed ones (spec §4.6).
func (e *Engine) resolveMaxIterations(req TurnRequest) int {
	if e.MaxIterations > 0 {
		return e.MaxIterations
	}
	if req.Stream {
		return streamingSafetyValve
	}
	return defaultMaxIterations
}

func choosePhase(iteration int, lastToolList []string) string {
	switch {
	case iteration == 1:
		return phaseToolSelection
	case len(lastToolList) > 0:
		return phaseSynthesisAfterTool
	default:
		return phaseDirectResponse
	}
}

func effortForPhase(phase string) string {
	switch phase {
	case phaseForcedSynthesis:
		return "high"
	case phaseToolSelection:
		return "medium"
	default:
		return "medium"
	}
}

func toolNames(calls []llm.ToolCall) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Name
	}
	return out
}

// streamOnce issues a single provider call, accumulating text and tool calls
// from the streamed events while forwarding every event to emit.
func (e *Engine) streamOnce(ctx context.Context, req llm.ChatRequest, emit func(llm.Event)) (string, []llm.ToolCall, llm.Usage, string, error) {
	var text string
	var usage llm.Usage
	var responseID string
	accs := map[string]*toolCallAcc{}
	var order []string

	err := e.Provider.ChatStream(ctx, req, func(ev llm.Event) {
		switch ev.Kind {
		case llm.EventTextDelta:
			text += ev.Delta
		case llm.EventToolCallStart:
			accs[ev.ToolCallID] = &toolCallAcc{id: ev.ToolCallID, name: ev.ToolCallName}
			order = append(order, ev.ToolCallID)
		case llm.EventToolCallArgumentsDelta:
			if acc, ok := accs[ev.ToolCallID]; ok {
				acc.args += ev.ArgsDelta
			}
		case llm.EventToolCallComplete:
			if acc, ok := accs[ev.ToolCallID]; ok && ev.Arguments != "" {
				acc.args = ev.Arguments
			}
		case llm.EventDone:
			usage = ev.Usage
			responseID = ev.ResponseID
			if ev.FinalText != "" {
				text = ev.FinalText
			}
		}
		if emit != nil {
			emit(ev)
		}
	})
	if err != nil {
		return "", nil, usage, "", err
	}

	calls := make([]llm.ToolCall, 0, len(order))
	for _, id := range order {
		acc := accs[id]
		calls = append(calls, llm.ToolCall{ID: acc.id, Name: acc.name, Arguments: acc.args})
	}
	return text, calls, usage, responseID, nil
}

type toolResult struct {
	output []byte
	diff   string
	err    error
}

// dispatchTools runs every tool call concurrently through a bounded buffer,
// checking the cancellation flag before and after each dispatch (spec §4.6).
func (e *Engine) dispatchTools(ctx context.Context, calls []llm.ToolCall, cancel *atomic.Bool) []toolResult {
	results := make([]toolResult, len(calls))
	var wg sync.WaitGroup
	sem := make(chan struct{}, len(calls))

	for i, tc := range calls {
		i, tc := i, tc
		if cancel != nil && cancel.Load() {
			results[i] = toolResult{err: errCanceled}
			continue
		}
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			out, diff, err := e.Tools.Dispatch(ctx, tc.Name, []byte(tc.Arguments))
			results[i] = toolResult{output: out, diff: diff, err: err}
			if cancel != nil && cancel.Load() {
				obslog.FromContext(ctx).Debug().Str("tool", tc.Name).Msg("cancellation_observed_after_dispatch")
			}
		}()
	}
	wg.Wait()
	return results
}

var errCanceled = &canceledError{}

type canceledError struct{}

func (*canceledError) Error() string { return "turn canceled" }

func resultsToMessages(calls []llm.ToolCall, results []toolResult) []llm.Message {
	out := make([]llm.Message, 0, len(calls))
	for i, tc := range calls {
		r := results[i]
		content := string(r.output)
		if r.err != nil {
			b, _ := json.Marshal(map[string]string{"error": r.err.Error()})
			content = string(b)
		}
		if r.diff != "" {
			content += "\n\n```diff\n" + r.diff + "\n```"
		}
		out = append(out, llm.Message{Role: "tool", Content: content, ToolCallID: tc.ID})
	}
	return out
}

// finalPass issues the forced-synthesis call with tools disabled once the
// iteration bound is exceeded (spec §4.6's safety valve).
func (e *Engine) finalPass(ctx context.Context, messages []llm.Message, previousResponseID string, supportsStateful bool, emit func(llm.Event)) (string, llm.Usage, error) {
	req := llm.ChatRequest{
		Messages:        messages,
		Tools:           nil,
		ReasoningEffort: effortForPhase(phaseForcedSynthesis),
	}
	if supportsStateful && previousResponseID != "" {
		req.PreviousResponseID = previousResponseID
		req.Messages = nil
	}
	text, _, usage, _, err := e.streamOnce(ctx, req, emit)
	return text, usage, err
}

func addUsage(a, b llm.Usage) llm.Usage {
	return llm.Usage{
		Input:     a.Input + b.Input,
		Output:    a.Output + b.Output,
		Reasoning: a.Reasoning + b.Reasoning,
		Cached:    a.Cached + b.Cached,
	}
}
