package tools

import (
	"context"
	"encoding/json"

	"mira/internal/domain"
	"mira/internal/goal"
)

// GoalTool implements the goal tool: create, bulk_create, list, get, update,
// progress, delete, add_milestone, complete_milestone (spec §6).
type GoalTool struct {
	Store *goal.Store
}

func (t *GoalTool) Name() string { return "goal" }

func (t *GoalTool) JSONSchema() map[string]any {
	return map[string]any{
		"description": "Create and track goals, their progress, and their milestones.",
		"parameters": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action":       map[string]any{"type": "string", "enum": []string{"create", "bulk_create", "list", "get", "update", "progress", "delete", "add_milestone", "complete_milestone"}},
				"project_id":   map[string]any{"type": "string"},
				"titles":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"title":        map[string]any{"type": "string"},
				"priority":     map[string]any{"type": "string"},
				"id":           map[string]any{"type": "integer"},
				"status":       map[string]any{"type": "string"},
				"progress":     map[string]any{"type": "number"},
				"goal_id":      map[string]any{"type": "integer"},
				"milestone_id": map[string]any{"type": "integer"},
			},
			"required": []string{"action"},
		},
	}
}

type goalArgs struct {
	Action      string   `json:"action"`
	ProjectID   string   `json:"project_id"`
	Titles      []string `json:"titles"`
	Title       string   `json:"title"`
	Priority    string   `json:"priority"`
	ID          int64    `json:"id"`
	Status      string   `json:"status"`
	Progress    float64  `json:"progress"`
	GoalID      int64    `json:"goal_id"`
	MilestoneID int64    `json:"milestone_id"`
}

func (t *GoalTool) Call(ctx context.Context, raw json.RawMessage) (any, string, error) {
	var a goalArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, "", domain.Invalid("invalid goal tool arguments: " + err.Error())
	}
	if a.Progress == 0 && (a.Action == "update" || a.Action == "") {
		a.Progress = -1
	}

	switch a.Action {
	case "create":
		out, err := t.Store.Create(ctx, a.ProjectID, a.Title, a.Priority)
		return out, "", err

	case "bulk_create":
		out := make([]domain.Goal, 0, len(a.Titles))
		for _, title := range a.Titles {
			g, err := t.Store.Create(ctx, a.ProjectID, title, a.Priority)
			if err != nil {
				return nil, "", err
			}
			out = append(out, g)
		}
		return out, "", nil

	case "list":
		out, err := t.Store.List(ctx, a.ProjectID, a.Status)
		return out, "", err

	case "get":
		out, err := t.Store.Get(ctx, a.ID)
		return out, "", err

	case "update":
		out, err := t.Store.Update(ctx, a.ID, a.Status, a.Priority, a.Progress)
		return out, "", err

	case "progress":
		out, err := t.Store.Update(ctx, a.ID, "", "", a.Progress)
		return out, "", err

	case "delete":
		out, err := t.Store.Update(ctx, a.ID, "deleted", "", -1)
		return out, "", err

	case "add_milestone":
		out, err := t.Store.AddMilestone(ctx, a.GoalID, a.Title)
		return out, "", err

	case "complete_milestone":
		err := t.Store.CompleteMilestone(ctx, a.MilestoneID)
		return map[string]any{"completed": a.MilestoneID}, "", err

	default:
		return nil, "", domain.Invalid("unknown goal action: " + a.Action)
	}
}
