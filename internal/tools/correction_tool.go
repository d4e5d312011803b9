package tools

import (
	"context"
	"encoding/json"

	"mira/internal/correction"
	"mira/internal/domain"
)

// CorrectionTool implements the correction tool: record, get, validate, list
// (spec §6).
type CorrectionTool struct {
	Store *correction.Store
}

func (t *CorrectionTool) Name() string { return "correction" }

func (t *CorrectionTool) JSONSchema() map[string]any {
	return map[string]any{
		"description": "Record what-was-wrong/what-is-right corrections and check proposed actions against them.",
		"parameters": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action":           map[string]any{"type": "string", "enum": []string{"record", "get", "validate", "list"}},
				"project_id":       map[string]any{"type": "string"},
				"what_was_wrong":   map[string]any{"type": "string"},
				"what_is_right":    map[string]any{"type": "string"},
				"scope":            map[string]any{"type": "string"},
				"id":               map[string]any{"type": "integer"},
				"proposed_action":  map[string]any{"type": "string"},
				"limit":            map[string]any{"type": "integer"},
			},
			"required": []string{"action", "project_id"},
		},
	}
}

type correctionArgs struct {
	Action         string `json:"action"`
	ProjectID      string `json:"project_id"`
	WhatWasWrong   string `json:"what_was_wrong"`
	WhatIsRight    string `json:"what_is_right"`
	Scope          string `json:"scope"`
	ID             int64  `json:"id"`
	ProposedAction string `json:"proposed_action"`
	Limit          int    `json:"limit"`
}

func (t *CorrectionTool) Call(ctx context.Context, raw json.RawMessage) (any, string, error) {
	var a correctionArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, "", domain.Invalid("invalid correction tool arguments: " + err.Error())
	}

	switch a.Action {
	case "record":
		out, err := t.Store.Record(ctx, a.ProjectID, domain.Scope(a.Scope), a.WhatWasWrong, a.WhatIsRight)
		return out, "", err

	case "get":
		out, err := t.Store.Get(ctx, a.ID)
		return out, "", err

	case "validate":
		out, err := t.Store.Validate(ctx, a.ProjectID, a.ProposedAction, a.Limit)
		return out, "", err

	case "list":
		out, err := t.Store.List(ctx, a.ProjectID, a.Limit)
		return out, "", err

	default:
		return nil, "", domain.Invalid("unknown correction action: " + a.Action)
	}
}
