package tools

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"mira/internal/domain"
	"mira/internal/storage"
)

// CodeTool implements the code tool: search, symbols, callers, callees,
// dependencies, patterns, tech_debt, diff, bundle (spec §6). Reads code.db
// directly, as SPEC_FULL.md's domain-stack wiring notes; diff/bundle lean on
// the same symbol rows the prompt assembler's code-intelligence block uses.
type CodeTool struct {
	CodePool *storage.Pool
	MainPool *storage.Pool
}

func (t *CodeTool) Name() string { return "code" }

func (t *CodeTool) JSONSchema() map[string]any {
	return map[string]any{
		"description": "Query the indexed code graph: symbols, call edges, imports, patterns, and debt signals.",
		"parameters": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action":     map[string]any{"type": "string", "enum": []string{"search", "symbols", "callers", "callees", "dependencies", "patterns", "tech_debt", "diff", "bundle"}},
				"project_id": map[string]any{"type": "string"},
				"file":       map[string]any{"type": "string"},
				"symbol":     map[string]any{"type": "string"},
				"query":      map[string]any{"type": "string"},
				"limit":      map[string]any{"type": "integer"},
			},
			"required": []string{"action", "project_id"},
		},
	}
}

type codeArgs struct {
	Action    string `json:"action"`
	ProjectID string `json:"project_id"`
	File      string `json:"file"`
	Symbol    string `json:"symbol"`
	Query     string `json:"query"`
	Limit     int    `json:"limit"`
}

type symbolRow struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	File      string `json:"file"`
	Line      int    `json:"line"`
	Signature string `json:"signature"`
	Doc       string `json:"doc"`
}

func (t *CodeTool) Call(ctx context.Context, raw json.RawMessage) (any, string, error) {
	var a codeArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, "", domain.Invalid("invalid code tool arguments: " + err.Error())
	}
	limit := a.Limit
	if limit <= 0 {
		limit = 20
	}

	switch a.Action {
	case "search":
		rows, err := t.querySymbols(ctx, `
			SELECT id, name, kind, file, line, signature, doc FROM symbols
			WHERE project_id = ? AND (name LIKE ? OR doc LIKE ?) LIMIT ?`,
			a.ProjectID, "%"+a.Query+"%", "%"+a.Query+"%", limit)
		return rows, "", err

	case "symbols":
		rows, err := t.querySymbols(ctx, `
			SELECT id, name, kind, file, line, signature, doc FROM symbols
			WHERE project_id = ? AND file = ? ORDER BY line LIMIT ?`, a.ProjectID, a.File, limit)
		return rows, "", err

	case "callers":
		rows, err := t.callEdges(ctx, a.ProjectID, a.Symbol, limit, true)
		return rows, "", err

	case "callees":
		rows, err := t.callEdges(ctx, a.ProjectID, a.Symbol, limit, false)
		return rows, "", err

	case "dependencies":
		return t.dependencies(ctx, a.ProjectID, a.File, limit)

	case "patterns":
		return t.patterns(ctx, a.ProjectID, limit)

	case "tech_debt":
		return t.techDebt(ctx, a.ProjectID, limit)

	case "diff", "bundle":
		rows, err := t.querySymbols(ctx, `
			SELECT id, name, kind, file, line, signature, doc FROM symbols
			WHERE project_id = ? AND file = ? ORDER BY line LIMIT ?`, a.ProjectID, a.File, limit)
		if err != nil {
			return nil, "", err
		}
		return map[string]any{"file": a.File, "symbols": rows}, "", nil

	default:
		return nil, "", domain.Invalid("unknown code action: " + a.Action)
	}
}

func (t *CodeTool) querySymbols(ctx context.Context, query string, args ...any) ([]symbolRow, error) {
	return storage.Interact(ctx, t.CodePool, func(conn *sql.Conn) ([]symbolRow, error) {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, domain.DbErr(err)
		}
		defer rows.Close()
		var out []symbolRow
		for rows.Next() {
			var s symbolRow
			if err := rows.Scan(&s.ID, &s.Name, &s.Kind, &s.File, &s.Line, &s.Signature, &s.Doc); err != nil {
				return nil, domain.DbErr(err)
			}
			out = append(out, s)
		}
		return out, rows.Err()
	})
}

type callEdgeRow struct {
	Caller string `json:"caller"`
	Callee string `json:"callee"`
}

func (t *CodeTool) callEdges(ctx context.Context, projectID, symbol string, limit int, callersOf bool) ([]callEdgeRow, error) {
	query := `
		SELECT caller.name, callee.name
		FROM call_edges e
		JOIN symbols caller ON caller.id = e.caller_id
		JOIN symbols callee ON callee.id = e.callee_id
		WHERE e.project_id = ? AND `
	if callersOf {
		query += `callee.name = ? LIMIT ?`
	} else {
		query += `caller.name = ? LIMIT ?`
	}
	return storage.Interact(ctx, t.CodePool, func(conn *sql.Conn) ([]callEdgeRow, error) {
		rows, err := conn.QueryContext(ctx, query, projectID, symbol, limit)
		if err != nil {
			return nil, domain.DbErr(err)
		}
		defer rows.Close()
		var out []callEdgeRow
		for rows.Next() {
			var c callEdgeRow
			if err := rows.Scan(&c.Caller, &c.Callee); err != nil {
				return nil, domain.DbErr(err)
			}
			out = append(out, c)
		}
		return out, rows.Err()
	})
}

func (t *CodeTool) dependencies(ctx context.Context, projectID, file string, limit int) ([]string, string, error) {
	paths, err := storage.Interact(ctx, t.CodePool, func(conn *sql.Conn) ([]string, error) {
		rows, err := conn.QueryContext(ctx, `SELECT DISTINCT path FROM imports WHERE project_id = ? AND file = ? LIMIT ?`, projectID, file, limit)
		if err != nil {
			return nil, domain.DbErr(err)
		}
		defer rows.Close()
		var out []string
		for rows.Next() {
			var p string
			if err := rows.Scan(&p); err != nil {
				return nil, domain.DbErr(err)
			}
			out = append(out, p)
		}
		return out, rows.Err()
	})
	return paths, "", err
}

type patternRow struct {
	Kind      string    `json:"kind"`
	Summary   string    `json:"summary"`
	Timestamp time.Time `json:"timestamp"`
}

func (t *CodeTool) patterns(ctx context.Context, projectID string, limit int) ([]patternRow, string, error) {
	rows, err := storage.Interact(ctx, t.MainPool, func(conn *sql.Conn) ([]patternRow, error) {
		rs, err := conn.QueryContext(ctx, `
			SELECT kind, summary, timestamp FROM behavior_patterns
			WHERE project_id = ? AND dismissed = 0 AND kind IN ('insight_workflow', 'insight_session')
			ORDER BY timestamp DESC LIMIT ?`, projectID, limit)
		if err != nil {
			return nil, domain.DbErr(err)
		}
		defer rs.Close()
		var out []patternRow
		for rs.Next() {
			var p patternRow
			if err := rs.Scan(&p.Kind, &p.Summary, &p.Timestamp); err != nil {
				return nil, domain.DbErr(err)
			}
			out = append(out, p)
		}
		return out, rs.Err()
	})
	return rows, "", err
}

type debtSnapshot struct {
	AvgDebt   float64   `json:"avg_debt"`
	Timestamp time.Time `json:"timestamp"`
}

func (t *CodeTool) techDebt(ctx context.Context, projectID string, limit int) ([]debtSnapshot, string, error) {
	rows, err := storage.Interact(ctx, t.MainPool, func(conn *sql.Conn) ([]debtSnapshot, error) {
		rs, err := conn.QueryContext(ctx, `
			SELECT avg_debt, timestamp FROM health_snapshots
			WHERE project_id = ? ORDER BY timestamp DESC LIMIT ?`, projectID, limit)
		if err != nil {
			return nil, domain.DbErr(err)
		}
		defer rs.Close()
		var out []debtSnapshot
		for rs.Next() {
			var d debtSnapshot
			if err := rs.Scan(&d.AvgDebt, &d.Timestamp); err != nil {
				return nil, domain.DbErr(err)
			}
			out = append(out, d)
		}
		return out, rs.Err()
	})
	return rows, "", err
}
