package tools

import (
	"context"
	"encoding/json"

	"mira/internal/domain"
	"mira/internal/team"
)

// TeamTool implements the team tool: create, invite, remove, list, members
// (spec §6).
type TeamTool struct {
	Store *team.Store
}

func (t *TeamTool) Name() string { return "team" }

func (t *TeamTool) JSONSchema() map[string]any {
	return map[string]any{
		"description": "Create teams and manage membership for scope=team visibility.",
		"parameters": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action":  map[string]any{"type": "string", "enum": []string{"create", "invite", "remove", "list", "members"}},
				"name":    map[string]any{"type": "string"},
				"team_id": map[string]any{"type": "string"},
				"user_id": map[string]any{"type": "string"},
			},
			"required": []string{"action"},
		},
	}
}

type teamArgs struct {
	Action string `json:"action"`
	Name   string `json:"name"`
	TeamID string `json:"team_id"`
	UserID string `json:"user_id"`
}

func (t *TeamTool) Call(ctx context.Context, raw json.RawMessage) (any, string, error) {
	var a teamArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, "", domain.Invalid("invalid team tool arguments: " + err.Error())
	}

	switch a.Action {
	case "create":
		out, err := t.Store.Create(ctx, a.Name)
		return out, "", err

	case "invite":
		err := t.Store.AddMember(ctx, a.TeamID, a.UserID)
		return map[string]any{"invited": a.UserID}, "", err

	case "remove":
		err := t.Store.RemoveMember(ctx, a.TeamID, a.UserID)
		return map[string]any{"removed": a.UserID}, "", err

	case "list", "members":
		out, err := t.Store.Get(ctx, a.TeamID)
		return out, "", err

	default:
		return nil, "", domain.Invalid("unknown team action: " + a.Action)
	}
}
