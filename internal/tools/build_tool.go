package tools

import (
	"context"
	"encoding/json"

	"mira/internal/build"
	"mira/internal/domain"
)

// BuildTool implements the build tool: record, record_error, get_errors,
// resolve (spec §6).
type BuildTool struct {
	Store *build.Store
}

func (t *BuildTool) Name() string { return "build" }

func (t *BuildTool) JSONSchema() map[string]any {
	return map[string]any{
		"description": "Record build/test outcomes and track hashed, deduplicated build errors.",
		"parameters": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action":      map[string]any{"type": "string", "enum": []string{"record", "record_error", "get_errors", "resolve"}},
				"project_id":  map[string]any{"type": "string"},
				"success":     map[string]any{"type": "boolean"},
				"category":    map[string]any{"type": "string"},
				"severity":    map[string]any{"type": "string"},
				"file":        map[string]any{"type": "string"},
				"line":        map[string]any{"type": "integer"},
				"message":     map[string]any{"type": "string"},
				"id":          map[string]any{"type": "integer"},
				"resolved_by": map[string]any{"type": "string"},
				"limit":       map[string]any{"type": "integer"},
			},
			"required": []string{"action", "project_id"},
		},
	}
}

type buildArgs struct {
	Action     string `json:"action"`
	ProjectID  string `json:"project_id"`
	Success    bool   `json:"success"`
	Category   string `json:"category"`
	Severity   string `json:"severity"`
	File       string `json:"file"`
	Line       int    `json:"line"`
	Message    string `json:"message"`
	ID         int64  `json:"id"`
	ResolvedBy string `json:"resolved_by"`
	Limit      int    `json:"limit"`
}

func (t *BuildTool) Call(ctx context.Context, raw json.RawMessage) (any, string, error) {
	var a buildArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, "", domain.Invalid("invalid build tool arguments: " + err.Error())
	}

	switch a.Action {
	case "record":
		err := t.Store.RecordRun(ctx, a.ProjectID, a.Success)
		return map[string]any{"recorded": true}, "", err

	case "record_error":
		out, err := t.Store.RecordError(ctx, build.ErrorInput{
			ProjectID: a.ProjectID, Category: a.Category, Severity: a.Severity,
			File: a.File, Line: a.Line, Message: a.Message,
		})
		return out, "", err

	case "get_errors":
		out, err := t.Store.ListUnresolved(ctx, a.ProjectID, a.Limit)
		return out, "", err

	case "resolve":
		err := t.Store.Resolve(ctx, a.ID, a.ResolvedBy)
		return map[string]any{"resolved": a.ID}, "", err

	default:
		return nil, "", domain.Invalid("unknown build action: " + a.Action)
	}
}
