package memory

import (
	"context"
	"database/sql"
	"strings"
	"unicode"
)

// ExtractEntities implements the resolved entity-extraction heuristic (spec
// §9, SPEC_FULL.md §4.3): tokenize on whitespace/punctuation, then keep a
// token if it looks like an identifier worth boosting recall on —
// CamelCase/PascalCase, snake_case, a qualified path (contains "::", ".", or
// "->"), or a capitalized word longer than 3 runes.
func ExtractEntities(content string) []string {
	tokens := tokenize(content)
	seen := make(map[string]bool, len(tokens))
	var out []string
	for _, t := range tokens {
		if !looksLikeEntity(t) {
			continue
		}
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

func tokenize(content string) []string {
	return strings.FieldsFunc(content, func(r rune) bool {
		switch {
		case unicode.IsSpace(r):
			return true
		case r == ',' || r == ';' || r == '(' || r == ')' || r == '"' || r == '\'' || r == '!' || r == '?':
			return true
		default:
			return false
		}
	})
}

func looksLikeEntity(tok string) bool {
	tok = strings.Trim(tok, ".:")
	if tok == "" {
		return false
	}
	if strings.Contains(tok, "::") || strings.Contains(tok, "->") || strings.Contains(tok, ".") {
		return true
	}
	if strings.Contains(tok, "_") {
		return true
	}
	if isCamelOrPascalCase(tok) {
		return true
	}
	r := []rune(tok)
	if unicode.IsUpper(r[0]) && len(r) > 3 {
		return true
	}
	return false
}

func isCamelOrPascalCase(tok string) bool {
	hasUpper, hasLower := false, false
	for _, r := range tok {
		if unicode.IsUpper(r) {
			hasUpper = true
		}
		if unicode.IsLower(r) {
			hasLower = true
		}
	}
	return hasUpper && hasLower && !strings.Contains(tok, " ")
}

func linkEntities(ctx context.Context, tx *sql.Tx, factID int64, names []string) error {
	for _, name := range names {
		res, err := tx.ExecContext(ctx, `INSERT INTO memory_entities(name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name)
		if err != nil {
			return err
		}
		var entityID int64
		if id, err := res.LastInsertId(); err == nil && id != 0 {
			entityID = id
		} else {
			row := tx.QueryRowContext(ctx, `SELECT id FROM memory_entities WHERE name = ?`, name)
			if err := row.Scan(&entityID); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO memory_fact_entities(fact_id, entity_id) VALUES (?, ?)
			ON CONFLICT(fact_id, entity_id) DO NOTHING`, factID, entityID); err != nil {
			return err
		}
	}
	return nil
}

func deleteOrphanEntities(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM memory_entities
		WHERE id NOT IN (SELECT DISTINCT entity_id FROM memory_fact_entities)`)
	return err
}

// entitiesForFact returns the linked entity names for a fact, used by recall
// to compute the entity-match boost (spec §4.3).
func entitiesForFact(ctx context.Context, q queryer, factID int64) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT e.name FROM memory_entities e
		JOIN memory_fact_entities l ON l.entity_id = e.id
		WHERE l.fact_id = ?`, factID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}
