package oracle

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"mira/internal/storage"
)

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "this": true,
	"with": true, "from": true, "have": true, "are": true, "was": true,
	"were": true, "been": true, "their": true, "what": true, "when": true,
	"where": true, "which": true, "about": true, "into": true,
}

const maxSemanticConcepts = 5

// semanticConcepts extracts up to 5 concept tokens from the query (skipping
// stop-words, words ≤3 chars, and all-numeric tokens), then looks up
// related symbol ids per concept from the code index (spec §4.4).
func semanticConcepts(codePool *storage.Pool, maxSymbolsPerConcept int) func(ctx context.Context, req Request) (SourceResult, error) {
	return func(ctx context.Context, req Request) (SourceResult, error) {
		concepts := extractConcepts(req.Query, maxSemanticConcepts)
		if len(concepts) == 0 {
			return SourceResult{}, nil
		}
		type cluster struct {
			concept string
			symbols []string
		}
		var clusters []cluster
		_, err := storage.Interact(ctx, codePool, func(conn *sql.Conn) (struct{}, error) {
			for _, c := range concepts {
				rows, err := conn.QueryContext(ctx, `
					SELECT name FROM symbols
					WHERE (name LIKE ? OR doc LIKE ?) AND project_id = ?
					LIMIT ?`, "%"+c+"%", "%"+c+"%", req.ProjectID, maxSymbolsPerConcept)
				if err != nil {
					return struct{}{}, err
				}
				var names []string
				for rows.Next() {
					var n string
					if err := rows.Scan(&n); err != nil {
						rows.Close()
						return struct{}{}, err
					}
					names = append(names, n)
				}
				rows.Close()
				if len(names) > 0 {
					clusters = append(clusters, cluster{concept: c, symbols: names})
				}
			}
			return struct{}{}, nil
		})
		if err != nil {
			return SourceResult{}, err
		}
		if len(clusters) == 0 {
			return SourceResult{}, nil
		}
		var b strings.Builder
		b.WriteString("## Related concepts\n")
		for _, cl := range clusters {
			fmt.Fprintf(&b, "- %s: %s\n", cl.concept, strings.Join(cl.symbols, ", "))
		}
		return SourceResult{Content: b.String(), Data: clusters}, nil
	}
}

func extractConcepts(query string, max int) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, ".,!?;:()\"'")
		if len(w) <= 3 || stopWords[w] || isAllNumeric(w) {
			continue
		}
		out = append(out, w)
		if len(out) >= max {
			break
		}
	}
	return out
}

func isAllNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

const maxCallGraphElements = 10

// callGraph requires a current file: fetches the first 10 symbols in it,
// then callers/callees for each, deduplicated by name (spec §4.4).
func callGraph(codePool *storage.Pool) func(ctx context.Context, req Request) (SourceResult, error) {
	return func(ctx context.Context, req Request) (SourceResult, error) {
		if req.CurrentFile == "" {
			return SourceResult{}, nil
		}
		type edge struct{ caller, callee string }
		var edges []edge
		_, err := storage.Interact(ctx, codePool, func(conn *sql.Conn) (struct{}, error) {
			rows, err := conn.QueryContext(ctx, `
				SELECT id, name FROM symbols WHERE file = ? AND project_id = ? LIMIT ?`,
				req.CurrentFile, req.ProjectID, maxCallGraphElements)
			if err != nil {
				return struct{}{}, err
			}
			type sym struct {
				id   int64
				name string
			}
			var syms []sym
			for rows.Next() {
				var s sym
				if err := rows.Scan(&s.id, &s.name); err != nil {
					rows.Close()
					return struct{}{}, err
				}
				syms = append(syms, s)
			}
			rows.Close()

			seen := map[string]bool{}
			for _, s := range syms {
				callerRows, err := conn.QueryContext(ctx, `
					SELECT s2.name FROM call_edges ce JOIN symbols s2 ON s2.id = ce.caller_id
					WHERE ce.callee_id = ?`, s.id)
				if err != nil {
					return struct{}{}, err
				}
				for callerRows.Next() {
					var name string
					if err := callerRows.Scan(&name); err != nil {
						callerRows.Close()
						return struct{}{}, err
					}
					key := name + "->" + s.name
					if !seen[key] {
						seen[key] = true
						edges = append(edges, edge{caller: name, callee: s.name})
					}
				}
				callerRows.Close()

				calleeRows, err := conn.QueryContext(ctx, `
					SELECT s2.name FROM call_edges ce JOIN symbols s2 ON s2.id = ce.callee_id
					WHERE ce.caller_id = ?`, s.id)
				if err != nil {
					return struct{}{}, err
				}
				for calleeRows.Next() {
					var name string
					if err := calleeRows.Scan(&name); err != nil {
						calleeRows.Close()
						return struct{}{}, err
					}
					key := s.name + "->" + name
					if !seen[key] {
						seen[key] = true
						edges = append(edges, edge{caller: s.name, callee: name})
					}
				}
				calleeRows.Close()
			}
			return struct{}{}, nil
		})
		if err != nil {
			return SourceResult{}, err
		}
		if len(edges) == 0 {
			return SourceResult{}, nil
		}
		var b strings.Builder
		b.WriteString("## Call graph\n")
		for _, e := range edges {
			fmt.Fprintf(&b, "- %s -> %s\n", e.caller, e.callee)
		}
		return SourceResult{Content: b.String(), Data: edges}, nil
	}
}

// cochangeSuggestions requires file + project; ranks by confidence,
// truncated to maxSuggestions (spec §4.4).
func cochangeSuggestions(codePool *storage.Pool, maxSuggestions int) func(ctx context.Context, req Request) (SourceResult, error) {
	return func(ctx context.Context, req Request) (SourceResult, error) {
		if req.CurrentFile == "" || req.ProjectID == "" {
			return SourceResult{}, nil
		}
		type suggestion struct {
			File       string
			Confidence float64
		}
		var suggestions []suggestion
		_, err := storage.Interact(ctx, codePool, func(conn *sql.Conn) (struct{}, error) {
			rows, err := conn.QueryContext(ctx, `
				SELECT DISTINCT s.file FROM symbols s
				JOIN imports i ON i.file = s.file AND i.project_id = s.project_id
				WHERE s.project_id = ? AND s.file != ?
				LIMIT ?`, req.ProjectID, req.CurrentFile, maxSuggestions*3)
			if err != nil {
				return struct{}{}, err
			}
			defer rows.Close()
			for rows.Next() {
				var file string
				if err := rows.Scan(&file); err != nil {
					return struct{}{}, err
				}
				suggestions = append(suggestions, suggestion{File: file, Confidence: 0.5})
			}
			return struct{}{}, nil
		})
		if err != nil {
			return SourceResult{}, err
		}
		sort.Slice(suggestions, func(i, j int) bool { return suggestions[i].Confidence > suggestions[j].Confidence })
		if len(suggestions) > maxSuggestions {
			suggestions = suggestions[:maxSuggestions]
		}
		if len(suggestions) == 0 {
			return SourceResult{}, nil
		}
		var b strings.Builder
		b.WriteString("## Likely co-change files\n")
		for _, s := range suggestions {
			fmt.Fprintf(&b, "- %s\n", s.File)
		}
		return SourceResult{Content: b.String(), Data: suggestions}, nil
	}
}

// historicalFixes requires error_message + project; reuses the resolved
// build_errors linkage (spec §4.4).
func historicalFixes(mainPool *storage.Pool) func(ctx context.Context, req Request) (SourceResult, error) {
	return func(ctx context.Context, req Request) (SourceResult, error) {
		if req.ErrorMessage == "" || req.ProjectID == "" {
			return SourceResult{}, nil
		}
		prefix := req.ErrorMessage
		if len(prefix) > 50 {
			prefix = prefix[:50]
		}
		type fix struct {
			Message    string
			ResolvedBy string
		}
		var fixes []fix
		_, err := storage.Interact(ctx, mainPool, func(conn *sql.Conn) (struct{}, error) {
			rows, err := conn.QueryContext(ctx, `
				SELECT message, resolved_by FROM build_errors
				WHERE project_id = ? AND message LIKE ? AND resolved_by IS NOT NULL
				LIMIT 5`, req.ProjectID, "%"+prefix+"%")
			if err != nil {
				return struct{}{}, err
			}
			defer rows.Close()
			for rows.Next() {
				var f fix
				var resolvedBy sql.NullString
				if err := rows.Scan(&f.Message, &resolvedBy); err != nil {
					return struct{}{}, err
				}
				f.ResolvedBy = resolvedBy.String
				fixes = append(fixes, f)
			}
			return struct{}{}, nil
		})
		if err != nil {
			return SourceResult{}, err
		}
		if len(fixes) == 0 {
			return SourceResult{}, nil
		}
		var b strings.Builder
		b.WriteString("## Historical fixes\n")
		for _, f := range fixes {
			fmt.Fprintf(&b, "- %s (resolved by %s)\n", f.Message, f.ResolvedBy)
		}
		return SourceResult{Content: b.String(), Data: fixes}, nil
	}
}

// errorResolutions: if no provided error hash, finds candidate hashes via a
// LIKE first-50-chars lookup, then looks up resolutions for up to 5 hashes
// with up to 2 per hash (spec §4.4).
func errorResolutions(mainPool *storage.Pool) func(ctx context.Context, req Request) (SourceResult, error) {
	return func(ctx context.Context, req Request) (SourceResult, error) {
		if req.ErrorMessage == "" {
			return SourceResult{}, nil
		}
		prefix := req.ErrorMessage
		if len(prefix) > 50 {
			prefix = prefix[:50]
		}
		type resolution struct {
			Hash, Message, ResolvedBy string
		}
		var out []resolution
		_, err := storage.Interact(ctx, mainPool, func(conn *sql.Conn) (struct{}, error) {
			var hashes []string
			if req.ErrorCode != "" {
				hashes = []string{req.ErrorCode}
			} else {
				rows, err := conn.QueryContext(ctx, `
					SELECT DISTINCT hash FROM build_errors WHERE message LIKE ? LIMIT 5`, "%"+prefix+"%")
				if err != nil {
					return struct{}{}, err
				}
				for rows.Next() {
					var h string
					if err := rows.Scan(&h); err != nil {
						rows.Close()
						return struct{}{}, err
					}
					hashes = append(hashes, h)
				}
				rows.Close()
			}
			for _, h := range hashes {
				rows, err := conn.QueryContext(ctx, `
					SELECT hash, message, resolved_by FROM build_errors
					WHERE hash = ? AND resolved_by IS NOT NULL LIMIT 2`, h)
				if err != nil {
					return struct{}{}, err
				}
				for rows.Next() {
					var r resolution
					var resolvedBy sql.NullString
					if err := rows.Scan(&r.Hash, &r.Message, &resolvedBy); err != nil {
						rows.Close()
						return struct{}{}, err
					}
					r.ResolvedBy = resolvedBy.String
					out = append(out, r)
				}
				rows.Close()
			}
			return struct{}{}, nil
		})
		if err != nil {
			return SourceResult{}, err
		}
		if len(out) == 0 {
			return SourceResult{}, nil
		}
		var b strings.Builder
		b.WriteString("## Error resolutions\n")
		for _, r := range out {
			fmt.Fprintf(&b, "- [%s] %s — resolved by %s\n", r.Hash, r.Message, r.ResolvedBy)
		}
		return SourceResult{Content: b.String(), Data: out}, nil
	}
}

// guidelines returns the project's stored guidelines text, if any.
func guidelines(mainPool *storage.Pool) func(ctx context.Context, req Request) (SourceResult, error) {
	return func(ctx context.Context, req Request) (SourceResult, error) {
		var text string
		_, err := storage.Interact(ctx, mainPool, func(conn *sql.Conn) (struct{}, error) {
			row := conn.QueryRowContext(ctx, `SELECT content FROM documents WHERE project_id = ? AND title = 'guidelines' LIMIT 1`, req.ProjectID)
			return struct{}{}, row.Scan(&text)
		})
		if err == sql.ErrNoRows || text == "" {
			return SourceResult{}, nil
		}
		if err != nil {
			return SourceResult{}, err
		}
		return SourceResult{Content: "## Guidelines\n" + text}, nil
	}
}

// codeContext surfaces symbols defined in the current file.
func codeContext(codePool *storage.Pool) func(ctx context.Context, req Request) (SourceResult, error) {
	return func(ctx context.Context, req Request) (SourceResult, error) {
		if req.CurrentFile == "" {
			return SourceResult{}, nil
		}
		var names []string
		_, err := storage.Interact(ctx, codePool, func(conn *sql.Conn) (struct{}, error) {
			rows, err := conn.QueryContext(ctx, `SELECT name FROM symbols WHERE file = ? AND project_id = ?`, req.CurrentFile, req.ProjectID)
			if err != nil {
				return struct{}{}, err
			}
			defer rows.Close()
			for rows.Next() {
				var n string
				if err := rows.Scan(&n); err != nil {
					return struct{}{}, err
				}
				names = append(names, n)
			}
			return struct{}{}, nil
		})
		if err != nil || len(names) == 0 {
			return SourceResult{}, err
		}
		return SourceResult{Content: "## Current file symbols\n- " + strings.Join(names, "\n- "), Data: names}, nil
	}
}

// designPatterns and reasoningPatterns read dismissable behavior_patterns
// rows tagged with the matching insight kind, rendered as plain bullets.
func designPatterns(mainPool *storage.Pool) func(ctx context.Context, req Request) (SourceResult, error) {
	return patternGatherer(mainPool, "insight_workflow", "## Design patterns")
}

func reasoningPatterns(mainPool *storage.Pool) func(ctx context.Context, req Request) (SourceResult, error) {
	return patternGatherer(mainPool, "insight_session", "## Reasoning patterns")
}

func patternGatherer(mainPool *storage.Pool, kind, heading string) func(ctx context.Context, req Request) (SourceResult, error) {
	return func(ctx context.Context, req Request) (SourceResult, error) {
		var summaries []string
		_, err := storage.Interact(ctx, mainPool, func(conn *sql.Conn) (struct{}, error) {
			rows, err := conn.QueryContext(ctx, `
				SELECT summary FROM behavior_patterns
				WHERE project_id = ? AND kind = ? AND dismissed = 0
				ORDER BY timestamp DESC LIMIT 5`, req.ProjectID, kind)
			if err != nil {
				return struct{}{}, err
			}
			defer rows.Close()
			for rows.Next() {
				var s string
				if err := rows.Scan(&s); err != nil {
					return struct{}{}, err
				}
				summaries = append(summaries, s)
			}
			return struct{}{}, nil
		})
		if err != nil || len(summaries) == 0 {
			return SourceResult{}, err
		}
		return SourceResult{Content: heading + "\n- " + strings.Join(summaries, "\n- "), Data: summaries}, nil
	}
}

// buildErrors surfaces the project's most recent unresolved build errors.
func buildErrors(mainPool *storage.Pool) func(ctx context.Context, req Request) (SourceResult, error) {
	return func(ctx context.Context, req Request) (SourceResult, error) {
		var lines []string
		_, err := storage.Interact(ctx, mainPool, func(conn *sql.Conn) (struct{}, error) {
			rows, err := conn.QueryContext(ctx, `
				SELECT message, occurrences FROM build_errors
				WHERE project_id = ? AND resolved_by IS NULL
				ORDER BY last_seen DESC LIMIT 5`, req.ProjectID)
			if err != nil {
				return struct{}{}, err
			}
			defer rows.Close()
			for rows.Next() {
				var msg string
				var occ int
				if err := rows.Scan(&msg, &occ); err != nil {
					return struct{}{}, err
				}
				lines = append(lines, msg+" (x"+strconv.Itoa(occ)+")")
			}
			return struct{}{}, nil
		})
		if err != nil || len(lines) == 0 {
			return SourceResult{}, err
		}
		return SourceResult{Content: "## Open build errors\n- " + strings.Join(lines, "\n- "), Data: lines}, nil
	}
}

// expertise surfaces confirmed preference/convention facts as a lightweight
// stand-in for the original's "team expertise" signal — the nearest source
// of evidence-graded domain knowledge this core retains (spec §1 excludes
// the council/multi-expert subsystem entirely).
func expertise(mainPool *storage.Pool) func(ctx context.Context, req Request) (SourceResult, error) {
	return func(ctx context.Context, req Request) (SourceResult, error) {
		var lines []string
		_, err := storage.Interact(ctx, mainPool, func(conn *sql.Conn) (struct{}, error) {
			rows, err := conn.QueryContext(ctx, `
				SELECT content FROM memory_facts
				WHERE project_id = ? AND fact_type IN ('convention', 'preference') AND status = 'confirmed'
				ORDER BY updated_at DESC LIMIT 5`, req.ProjectID)
			if err != nil {
				return struct{}{}, err
			}
			defer rows.Close()
			for rows.Next() {
				var c string
				if err := rows.Scan(&c); err != nil {
					return struct{}{}, err
				}
				lines = append(lines, c)
			}
			return struct{}{}, nil
		})
		if err != nil || len(lines) == 0 {
			return SourceResult{}, err
		}
		return SourceResult{Content: "## Team expertise\n- " + strings.Join(lines, "\n- "), Data: lines}, nil
	}
}
