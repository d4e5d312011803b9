// Package anthropic adapts github.com/anthropics/anthropic-sdk-go's Messages
// API to llm.Provider, translating its SSE event union directly into the
// spec's Event enum (grounded on goadesign-goa-ai's
// features/model/anthropic/client.go + stream.go adapter, simplified: one
// Provider interface instead of a Client/Streamer pair, since the orchestrator
// only ever needs ChatStream).
package anthropic

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"mira/internal/llm"
)

// Client implements llm.Provider and llm.StatefulProvider on top of Claude's
// Messages API. Anthropic has no server-side conversation-continuation id, so
// SupportsStateful is always false and the orchestrator resends full history.
type Client struct {
	msg       sdk.MessageService
	model     string
	maxTokens int64
}

// New builds a Client from an API key and default model identifier.
func New(apiKey, model string, maxTokens int64) *Client {
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Client{msg: c.Messages, model: model, maxTokens: maxTokens}
}

func (c *Client) SupportsStateful() bool { return false }

// ChatStream issues a Messages.NewStreaming call and translates each SSE
// event into an llm.Event, matching the Event ordering the orchestrator
// expects: TextDelta/ReasoningDelta while content streams, ToolCallStart at
// block open, ToolCallArgumentsDelta per JSON fragment, ToolCallComplete at
// block close, and a final Done carrying usage once the message stops.
func (c *Client) ChatStream(ctx context.Context, req llm.ChatRequest, emit func(llm.Event)) error {
	model := req.Model
	if model == "" {
		model = c.model
	}
	params, err := c.buildParams(req, model)
	if err != nil {
		return err
	}

	stream := c.msg.NewStreaming(ctx, params)
	defer stream.Close()

	toolNames := map[int64]string{}
	toolIDs := map[int64]string{}
	var usage llm.Usage
	var responseID string

	for stream.Next() {
		event := stream.Current()
		switch ev := event.AsAny().(type) {
		case sdk.MessageStartEvent:
			responseID = ev.Message.ID
		case sdk.ContentBlockStartEvent:
			idx := ev.Index
			if tu, ok := ev.ContentBlock.AsAny().(sdk.ToolUseBlock); ok {
				toolNames[idx] = tu.Name
				toolIDs[idx] = tu.ID
				emit(llm.Event{Kind: llm.EventToolCallStart, ToolCallID: tu.ID, ToolCallName: tu.Name})
			}
		case sdk.ContentBlockDeltaEvent:
			idx := ev.Index
			switch d := ev.Delta.AsAny().(type) {
			case sdk.TextDelta:
				if d.Text != "" {
					emit(llm.Event{Kind: llm.EventTextDelta, Delta: d.Text})
				}
			case sdk.ThinkingDelta:
				if d.Thinking != "" {
					emit(llm.Event{Kind: llm.EventReasoningDelta, Delta: d.Thinking})
				}
			case sdk.InputJSONDelta:
				if d.PartialJSON != "" {
					emit(llm.Event{
						Kind:       llm.EventToolCallArgumentsDelta,
						ToolCallID: toolIDs[idx],
						ArgsDelta:  d.PartialJSON,
					})
				}
			}
		case sdk.ContentBlockStopEvent:
			idx := ev.Index
			if id, ok := toolIDs[idx]; ok {
				emit(llm.Event{Kind: llm.EventToolCallComplete, ToolCallID: id, ToolCallName: toolNames[idx]})
				delete(toolIDs, idx)
				delete(toolNames, idx)
			}
		case sdk.MessageDeltaEvent:
			usage.Input += int(ev.Usage.InputTokens)
			usage.Output += int(ev.Usage.OutputTokens)
			usage.Cached += int(ev.Usage.CacheReadInputTokens)
		}
	}
	if err := stream.Err(); err != nil {
		emit(llm.Event{Kind: llm.EventError, Err: err})
		return err
	}
	emit(llm.Event{Kind: llm.EventDone, ResponseID: responseID, Usage: usage})
	return nil
}

func (c *Client) buildParams(req llm.ChatRequest, model string) (sdk.MessageNewParams, error) {
	if len(req.Messages) == 0 {
		return sdk.MessageNewParams{}, errors.New("anthropic: at least one message required")
	}
	var system []sdk.TextBlockParam
	msgs := make([]sdk.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			if m.Content != "" {
				system = append(system, sdk.TextBlockParam{Text: m.Content})
			}
		case "user":
			msgs = append(msgs, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		case "assistant":
			msgs = append(msgs, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		case "tool":
			msgs = append(msgs, sdk.NewUserMessage(sdk.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		default:
			return sdk.MessageNewParams{}, fmt.Errorf("anthropic: unsupported role %q", m.Role)
		}
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: c.maxTokens,
		Messages:  msgs,
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(req.Tools) > 0 {
		tools := make([]sdk.ToolUnionParam, 0, len(req.Tools))
		for _, t := range req.Tools {
			schema := sdk.ToolInputSchemaParam{ExtraFields: t.Parameters}
			u := sdk.ToolUnionParamOfTool(schema, t.Name)
			if u.OfTool != nil {
				u.OfTool.Description = sdk.String(t.Description)
			}
			tools = append(tools, u)
		}
		params.Tools = tools
	}
	return params, nil
}
