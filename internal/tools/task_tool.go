package tools

import (
	"context"
	"encoding/json"

	"mira/internal/domain"
	"mira/internal/task"
)

// TaskTool implements the task tool: create, bulk_create, list, get, update,
// complete, delete (spec §6).
type TaskTool struct {
	Store *task.Store
}

func (t *TaskTool) Name() string { return "task" }

func (t *TaskTool) JSONSchema() map[string]any {
	return map[string]any{
		"description": "Create and manage hierarchical work items.",
		"parameters": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action":     map[string]any{"type": "string", "enum": []string{"create", "bulk_create", "list", "get", "update", "complete", "delete"}},
				"project_id": map[string]any{"type": "string"},
				"titles":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"title":      map[string]any{"type": "string"},
				"priority":   map[string]any{"type": "string"},
				"parent_id":  map[string]any{"type": "integer"},
				"goal_id":    map[string]any{"type": "integer"},
				"id":         map[string]any{"type": "integer"},
				"status":     map[string]any{"type": "string"},
				"progress":   map[string]any{"type": "number"},
			},
			"required": []string{"action"},
		},
	}
}

type taskArgs struct {
	Action    string   `json:"action"`
	ProjectID string   `json:"project_id"`
	Titles    []string `json:"titles"`
	Title     string   `json:"title"`
	Priority  string   `json:"priority"`
	ParentID  int64    `json:"parent_id"`
	GoalID    int64    `json:"goal_id"`
	ID        int64    `json:"id"`
	Status    string   `json:"status"`
	Progress  float64  `json:"progress"`
}

func (t *TaskTool) Call(ctx context.Context, raw json.RawMessage) (any, string, error) {
	var a taskArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, "", domain.Invalid("invalid task tool arguments: " + err.Error())
	}
	if a.Progress == 0 && a.Action == "update" {
		a.Progress = -1
	}

	switch a.Action {
	case "create":
		created, err := t.Store.Create(ctx, task.CreateInput{ProjectID: a.ProjectID, Title: a.Title, Priority: a.Priority, ParentID: a.ParentID, GoalID: a.GoalID})
		return created, "", err

	case "bulk_create":
		out := make([]domain.Task, 0, len(a.Titles))
		for _, title := range a.Titles {
			created, err := t.Store.Create(ctx, task.CreateInput{ProjectID: a.ProjectID, Title: title, Priority: a.Priority, GoalID: a.GoalID})
			if err != nil {
				return nil, "", err
			}
			out = append(out, created)
		}
		return out, "", nil

	case "list":
		out, err := t.Store.List(ctx, a.ProjectID, a.Status, 0)
		return out, "", err

	case "get":
		out, err := t.Store.Get(ctx, a.ID)
		return out, "", err

	case "update":
		out, err := t.Store.Update(ctx, a.ID, a.Status, a.Priority, a.Progress)
		return out, "", err

	case "complete":
		out, err := t.Store.Update(ctx, a.ID, "done", "", 1.0)
		return out, "", err

	case "delete":
		_, err := t.Store.Update(ctx, a.ID, "deleted", "", -1)
		return map[string]any{"deleted": a.ID}, "", err

	default:
		return nil, "", domain.Invalid("unknown task action: " + a.Action)
	}
}
