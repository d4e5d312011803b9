package tools

import (
	"context"
	"database/sql"
	"encoding/json"

	"mira/internal/domain"
	"mira/internal/project"
	"mira/internal/session"
	"mira/internal/storage"
)

// ProjectTool implements the project tool: start (get-or-create + activate),
// set (activate an existing id), get, guidelines (spec §6).
type ProjectTool struct {
	Store    *project.Store
	Registry *session.Registry
	MainPool *storage.Pool
}

func (t *ProjectTool) Name() string { return "project" }

func (t *ProjectTool) JSONSchema() map[string]any {
	return map[string]any{
		"description": "Resolve and activate the project a session scopes its tools against.",
		"parameters": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action":       map[string]any{"type": "string", "enum": []string{"start", "set", "get", "guidelines"}},
				"path":         map[string]any{"type": "string"},
				"name":         map[string]any{"type": "string"},
				"project_type": map[string]any{"type": "string"},
				"project_id":   map[string]any{"type": "string"},
			},
			"required": []string{"action"},
		},
	}
}

type projectArgs struct {
	Action      string `json:"action"`
	Path        string `json:"path"`
	Name        string `json:"name"`
	ProjectType string `json:"project_type"`
	ProjectID   string `json:"project_id"`
}

func (t *ProjectTool) Call(ctx context.Context, raw json.RawMessage) (any, string, error) {
	var a projectArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, "", domain.Invalid("invalid project tool arguments: " + err.Error())
	}

	switch a.Action {
	case "start":
		p, err := t.Store.GetOrCreate(ctx, a.Path, a.Name, a.ProjectType)
		if err != nil {
			return nil, "", err
		}
		t.Store.SetActive(p)
		_, sessionID := t.Registry.Active()
		t.Registry.SetSession(p.ID, sessionID)
		return p, "", nil

	case "set":
		p, err := t.Store.Get(ctx, a.ProjectID)
		if err != nil {
			return nil, "", err
		}
		t.Store.SetActive(p)
		_, sessionID := t.Registry.Active()
		t.Registry.SetSession(p.ID, sessionID)
		return p, "", nil

	case "get":
		if active, ok := t.Store.Active(); ok && a.ProjectID == "" {
			return active, "", nil
		}
		p, err := t.Store.Get(ctx, a.ProjectID)
		return p, "", err

	case "guidelines":
		text, err := t.guidelines(ctx, a.ProjectID)
		if err != nil {
			return nil, "", err
		}
		return map[string]any{"guidelines": text}, "", nil

	default:
		return nil, "", domain.Invalid("unknown project action: " + a.Action)
	}
}

func (t *ProjectTool) guidelines(ctx context.Context, projectID string) (string, error) {
	return storage.Interact(ctx, t.MainPool, func(conn *sql.Conn) (string, error) {
		var text string
		err := conn.QueryRowContext(ctx, `SELECT content FROM documents WHERE project_id = ? AND title = 'guidelines'`, projectID).Scan(&text)
		if err == sql.ErrNoRows {
			return "", nil
		}
		return text, err
	})
}
