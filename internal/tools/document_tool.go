package tools

import (
	"context"
	"encoding/json"

	"mira/internal/document"
	"mira/internal/domain"
)

// DocumentTool implements the document tool: list, search, get, ingest,
// delete (spec §6).
type DocumentTool struct {
	Store *document.Store
}

func (t *DocumentTool) Name() string { return "document" }

func (t *DocumentTool) JSONSchema() map[string]any {
	return map[string]any{
		"description": "List, search, ingest, and delete project documents.",
		"parameters": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action":     map[string]any{"type": "string", "enum": []string{"list", "search", "get", "ingest", "delete"}},
				"project_id": map[string]any{"type": "string"},
				"title":      map[string]any{"type": "string"},
				"content":    map[string]any{"type": "string"},
				"query":      map[string]any{"type": "string"},
				"id":         map[string]any{"type": "integer"},
				"limit":      map[string]any{"type": "integer"},
			},
			"required": []string{"action", "project_id"},
		},
	}
}

type documentArgs struct {
	Action    string `json:"action"`
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Query     string `json:"query"`
	ID        int64  `json:"id"`
	Limit     int    `json:"limit"`
}

func (t *DocumentTool) Call(ctx context.Context, raw json.RawMessage) (any, string, error) {
	var a documentArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, "", domain.Invalid("invalid document tool arguments: " + err.Error())
	}

	switch a.Action {
	case "list":
		out, err := t.Store.List(ctx, a.ProjectID, a.Limit)
		return out, "", err

	case "search":
		out, err := t.Store.Search(ctx, a.ProjectID, a.Query, a.Limit)
		return out, "", err

	case "get":
		out, err := t.Store.Get(ctx, a.ID)
		return out, "", err

	case "ingest":
		out, err := t.Store.Ingest(ctx, a.ProjectID, a.Title, a.Content)
		return out, "", err

	case "delete":
		err := t.Store.Delete(ctx, a.ID)
		return map[string]any{"deleted": a.ID}, "", err

	default:
		return nil, "", domain.Invalid("unknown document action: " + a.Action)
	}
}
