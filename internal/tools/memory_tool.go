package tools

import (
	"context"
	"encoding/json"

	"mira/internal/domain"
	"mira/internal/memory"
	"mira/internal/recall"
)

// MemoryTool implements the memory tool: remember, recall, forget, archive,
// list, export, purge, entities (spec §6).
type MemoryTool struct {
	Store  *memory.Store
	Recall *recall.Engine
}

func (t *MemoryTool) Name() string { return "memory" }

func (t *MemoryTool) JSONSchema() map[string]any {
	return map[string]any{
		"description": "Remember, recall, and manage project/personal/team memory facts.",
		"parameters": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action":      map[string]any{"type": "string", "enum": []string{"remember", "recall", "forget", "archive", "list", "export", "purge", "entities"}},
				"content":     map[string]any{"type": "string"},
				"key":         map[string]any{"type": "string"},
				"fact_type":   map[string]any{"type": "string"},
				"category":    map[string]any{"type": "string"},
				"confidence":  map[string]any{"type": "number"},
				"scope":       map[string]any{"type": "string"},
				"query":       map[string]any{"type": "string"},
				"id":          map[string]any{"type": "integer"},
				"limit":       map[string]any{"type": "integer"},
				"offset":      map[string]any{"type": "integer"},
				"confirm":     map[string]any{"type": "boolean"},
			},
			"required": []string{"action"},
		},
	}
}

type memoryArgs struct {
	Action     string  `json:"action"`
	Content    string  `json:"content"`
	Key        string  `json:"key"`
	FactType   string  `json:"fact_type"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Scope      string  `json:"scope"`
	Query      string  `json:"query"`
	ID         int64   `json:"id"`
	Limit      int     `json:"limit"`
	Offset     int     `json:"offset"`
	Confirm    bool    `json:"confirm"`

	Caller    domain.Identity `json:"caller"`
	SessionID string          `json:"session_id"`
}

func (t *MemoryTool) Call(ctx context.Context, raw json.RawMessage) (any, string, error) {
	var a memoryArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, "", domain.Invalid("invalid memory tool arguments: " + err.Error())
	}

	switch a.Action {
	case "remember":
		id, err := t.Store.Remember(ctx, memory.RememberInput{
			Content: a.Content, Key: a.Key, FactType: a.FactType, Category: a.Category,
			Confidence: a.Confidence, Scope: domain.Scope(a.Scope), SessionID: a.SessionID, Caller: a.Caller,
		})
		if err != nil {
			return nil, "", err
		}
		return map[string]any{"id": id}, "", nil

	case "recall":
		outcome, err := t.Recall.Recall(ctx, recall.Request{
			Query: a.Query, Limit: a.Limit, Category: a.Category, FactType: a.FactType,
			Caller: a.Caller, SessionID: a.SessionID,
		})
		if err != nil {
			return nil, "", err
		}
		return outcome, "", nil

	case "forget":
		return nil, "", t.Store.Forget(ctx, a.ID, a.Caller)

	case "archive":
		return nil, "", t.Store.Archive(ctx, a.ID, a.Caller)

	case "list":
		facts, err := t.Store.List(ctx, a.Caller, a.Limit, a.Offset, a.Category, a.FactType)
		if err != nil {
			return nil, "", err
		}
		return facts, "", nil

	case "export":
		facts, err := t.Store.Export(ctx, a.Caller)
		if err != nil {
			return nil, "", err
		}
		return facts, "", nil

	case "purge":
		n, err := t.Store.Purge(ctx, a.Caller, a.Confirm)
		if err != nil {
			return nil, "", err
		}
		return map[string]any{"purged": n}, "", nil

	case "entities":
		entities, err := t.Store.ListEntities(ctx, a.Query, a.Limit)
		if err != nil {
			return nil, "", err
		}
		return entities, "", nil

	default:
		return nil, "", domain.Invalid("unknown memory action: " + a.Action)
	}
}
