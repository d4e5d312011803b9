// Package tools implements the eleven-row tool surface (spec §6): one Tool
// per domain package (memory, code, session, project, task, goal, build,
// correction, document, team, carousel), dispatched by name through a
// Registry that satisfies orchestrator.ToolDispatcher. Grounded on the
// teacher's internal/tools.Tool/Registry pair, kept essentially verbatim —
// only Dispatch's return shape grew a diff string, since tool output here
// can include a unified diff (code-fix results) alongside JSON.
package tools

import (
	"context"
	"encoding/json"

	"mira/internal/llm"
)

// Tool is an executable capability the orchestrator can call.
type Tool interface {
	Name() string
	JSONSchema() map[string]any
	Call(ctx context.Context, raw json.RawMessage) (any, string, error)
}

// Registry keeps track of tools and dispatches calls by name. It implements
// orchestrator.ToolDispatcher.
type Registry struct {
	byName map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Tool)}
}

func (r *Registry) Register(t Tool) { r.byName[t.Name()] = t }

func (r *Registry) Schemas() []llm.ToolSchema {
	out := make([]llm.ToolSchema, 0, len(r.byName))
	for name, t := range r.byName {
		schema := t.JSONSchema()
		out = append(out, llm.ToolSchema{
			Name:        name,
			Description: strFrom(schema["description"]),
			Parameters:  mapFrom(schema["parameters"]),
		})
	}
	return out
}

// Dispatch executes one tool call by name, returning its JSON-encoded result
// and an optional diff. Unknown tools and Call errors both render as
// structured tool output rather than an error return, so one bad call never
// aborts the rest of a turn's tool-loop iteration (spec §7's tool-execution-
// failures-render-as-output policy).
func (r *Registry) Dispatch(ctx context.Context, name string, raw []byte) ([]byte, string, error) {
	t, ok := r.byName[name]
	if !ok {
		b, _ := json.Marshal(map[string]any{"ok": false, "error": "tool not found: " + name})
		return b, "", nil
	}
	val, diff, err := t.Call(ctx, json.RawMessage(raw))
	if err != nil {
		b, _ := json.Marshal(map[string]any{"ok": false, "error": err.Error()})
		return b, "", nil
	}
	b, err := json.Marshal(val)
	if err != nil {
		b, _ = json.Marshal(map[string]any{"ok": false, "error": err.Error()})
	}
	return b, diff, nil
}

func strFrom(v any) string         { s, _ := v.(string); return s }
func mapFrom(v any) map[string]any { m, _ := v.(map[string]any); return m }
