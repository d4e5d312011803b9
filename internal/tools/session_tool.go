package tools

import (
	"context"
	"encoding/json"

	"mira/internal/domain"
	"mira/internal/insights"
	"mira/internal/session"
)

// SessionTool implements the session tool: start, recap, current,
// list_sessions, get_history, insights, dismiss_insight (spec §6).
type SessionTool struct {
	Store    *session.Store
	Registry *session.Registry
	Insights *insights.Store
}

func (t *SessionTool) Name() string { return "session" }

func (t *SessionTool) JSONSchema() map[string]any {
	return map[string]any{
		"description": "Start, inspect, and recap sessions; list and dismiss surfaced insights.",
		"parameters": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action":        map[string]any{"type": "string", "enum": []string{"start", "recap", "current", "list_sessions", "get_history", "insights", "dismiss_insight"}},
				"project_id":    map[string]any{"type": "string"},
				"session_id":    map[string]any{"type": "string"},
				"source":        map[string]any{"type": "string"},
				"insight_id":    map[string]any{"type": "integer"},
				"insight_source": map[string]any{"type": "string"},
				"min_confidence": map[string]any{"type": "number"},
				"days_back":      map[string]any{"type": "integer"},
			},
			"required": []string{"action"},
		},
	}
}

type sessionArgs struct {
	Action        string  `json:"action"`
	ProjectID     string  `json:"project_id"`
	SessionID     string  `json:"session_id"`
	Source        string  `json:"source"`
	InsightID     int64   `json:"insight_id"`
	InsightSource string  `json:"insight_source"`
	MinConfidence float64 `json:"min_confidence"`
	DaysBack      int     `json:"days_back"`
}

func (t *SessionTool) Call(ctx context.Context, raw json.RawMessage) (any, string, error) {
	var a sessionArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, "", domain.Invalid("invalid session tool arguments: " + err.Error())
	}

	switch a.Action {
	case "start":
		result, err := t.Store.Start(ctx, a.ProjectID, a.SessionID, a.Source)
		if err != nil {
			return nil, "", err
		}
		t.Registry.SetSession(a.ProjectID, result.Session.ID)
		return result, "", nil

	case "current":
		projectID, sessionID := t.Registry.Active()
		return map[string]any{"project_id": projectID, "session_id": sessionID}, "", nil

	case "recap", "get_history", "list_sessions":
		result, err := t.Store.Start(ctx, a.ProjectID, "", "")
		if err != nil {
			return nil, "", err
		}
		return result.RecentSessions, "", nil

	case "insights":
		rows, err := t.Insights.Query(ctx, insights.Filter{
			ProjectID: a.ProjectID, InsightSource: a.InsightSource, MinConfidence: a.MinConfidence, DaysBack: a.DaysBack,
		})
		if err != nil {
			return nil, "", err
		}
		return rows, "", nil

	case "dismiss_insight":
		ok, err := t.Insights.Dismiss(ctx, a.ProjectID, a.InsightSource, a.InsightID)
		if err != nil {
			return nil, "", err
		}
		return map[string]any{"dismissed": ok}, "", nil

	default:
		return nil, "", domain.Invalid("unknown session action: " + a.Action)
	}
}
