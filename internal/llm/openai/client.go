// Package openai adapts github.com/openai/openai-go/v2's Responses API to
// llm.Provider, grounded on the teacher's internal/llm/openai/client.go
// chatStreamResponses path but trimmed to the spec's own Event enum and
// PreviousResponseID-based continuation (spec §4.6/§6).
package openai

import (
	"context"
	"strings"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	rs "github.com/openai/openai-go/v2/responses"

	"mira/internal/llm"
)

const defaultEmbeddingModel = "text-embedding-3-small"

// Client implements llm.Provider, llm.StatefulProvider, and llm.Embedder
// against the Responses and Embeddings APIs.
type Client struct {
	resp  rs.ResponseService
	emb   sdk.EmbeddingService
	model string
}

func New(apiKey, model string) *Client {
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return &Client{resp: c.Responses, emb: c.Embeddings, model: model}
}

// Embed satisfies llm.Embedder. Its absence from a provider's capability
// set is never an error to callers (see llm.Embedder's doc comment); this
// method itself can still fail, and callers degrade the same way.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.emb.New(ctx, sdk.EmbeddingNewParams{
		Model: defaultEmbeddingModel,
		Input: sdk.EmbeddingNewParamsInputUnion{OfString: sdk.String(text)},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}
	raw := resp.Data[0].Embedding
	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = float32(v)
	}
	return out, nil
}

func (c *Client) SupportsStateful() bool { return true }

func (c *Client) ChatStream(ctx context.Context, req llm.ChatRequest, emit func(llm.Event)) error {
	model := req.Model
	if model == "" {
		model = c.model
	}
	params := rs.ResponseNewParams{Model: rs.ResponsesModel(model)}

	if req.PreviousResponseID != "" {
		params.PreviousResponseID = sdk.String(req.PreviousResponseID)
	}

	var instructions []string
	items := make(rs.ResponseInputParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			if m.Content != "" {
				instructions = append(instructions, m.Content)
			}
		case "user":
			items = append(items, rs.ResponseInputItemParamOfMessage(m.Content, rs.EasyInputMessageRoleUser))
		case "assistant":
			items = append(items, rs.ResponseInputItemParamOfMessage(m.Content, rs.EasyInputMessageRoleAssistant))
		case "tool":
			items = append(items, rs.ResponseInputItemParamOfFunctionCallOutput(m.ToolCallID, m.Content))
		}
	}
	if len(items) > 0 {
		params.Input.OfInputItemList = items
	}
	if len(instructions) > 0 {
		params.Instructions = sdk.String(strings.Join(instructions, "\n\n"))
	}
	if len(req.Tools) > 0 {
		tools := make([]rs.ToolUnionParam, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, rs.ToolParamOfFunction(t.Name, t.Parameters, false))
		}
		params.Tools = tools
	}
	if req.ReasoningEffort != "" {
		params.Reasoning.Effort = sdk.ReasoningEffort(req.ReasoningEffort)
	}

	stream := c.resp.NewStreaming(ctx, params)
	defer stream.Close()

	type callAcc struct {
		id, name string
	}
	calls := map[int64]*callAcc{}
	var usage llm.Usage
	var responseID string

	for stream.Next() {
		switch ev := stream.Current().AsAny().(type) {
		case rs.ResponseTextDeltaEvent:
			if ev.Delta != "" {
				emit(llm.Event{Kind: llm.EventTextDelta, Delta: ev.Delta})
			}
		case rs.ResponseReasoningSummaryTextDeltaEvent:
			if ev.Delta != "" {
				emit(llm.Event{Kind: llm.EventReasoningDelta, Delta: ev.Delta})
			}
		case rs.ResponseOutputItemAddedEvent:
			if fn := ev.Item.AsFunctionCall(); fn.Name != "" || fn.CallID != "" {
				id := fn.CallID
				if id == "" {
					id = fn.ID
				}
				calls[ev.OutputIndex] = &callAcc{id: id, name: fn.Name}
				emit(llm.Event{Kind: llm.EventToolCallStart, ToolCallID: id, ToolCallName: fn.Name})
			}
		case rs.ResponseFunctionCallArgumentsDeltaEvent:
			if ca := calls[ev.OutputIndex]; ca != nil && ev.Delta != "" {
				emit(llm.Event{Kind: llm.EventToolCallArgumentsDelta, ToolCallID: ca.id, ArgsDelta: ev.Delta})
			}
		case rs.ResponseOutputItemDoneEvent:
			if ca := calls[ev.OutputIndex]; ca != nil {
				if fn := ev.Item.AsFunctionCall(); fn.Arguments != "" {
					emit(llm.Event{Kind: llm.EventToolCallComplete, ToolCallID: ca.id, ToolCallName: ca.name, Arguments: fn.Arguments})
				} else {
					emit(llm.Event{Kind: llm.EventToolCallComplete, ToolCallID: ca.id, ToolCallName: ca.name})
				}
				delete(calls, ev.OutputIndex)
			}
		case rs.ResponseCompletedEvent:
			responseID = ev.Response.ID
			usage.Input = int(ev.Response.Usage.InputTokens)
			usage.Output = int(ev.Response.Usage.OutputTokens)
			usage.Reasoning = int(ev.Response.Usage.OutputTokensDetails.ReasoningTokens)
			usage.Cached = int(ev.Response.Usage.InputTokensDetails.CachedTokens)
		}
	}
	if err := stream.Err(); err != nil {
		emit(llm.Event{Kind: llm.EventError, Err: err})
		return err
	}
	emit(llm.Event{Kind: llm.EventDone, ResponseID: responseID, Usage: usage})
	return nil
}
