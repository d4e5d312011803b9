// Package recall implements the hybrid recall engine (spec §4.3): semantic
// (vector) search with two-tier thresholds, fuzzy fallback, keyword
// fallback, entity/branch boosting, and fire-and-forget access recording.
// Grounded on the original Rust recall.rs (STRONG_THRESHOLD=0.7,
// WEAK_THRESHOLD=0.85, entity-boost reordering) and on
// theRebelliousNerd-codenerd's pairing of sahilm/fuzzy with sqlite-vec for
// the fuzzy tier.
package recall

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"strings"

	"github.com/sahilm/fuzzy"

	"mira/internal/domain"
	"mira/internal/llm"
	"mira/internal/memory"
	"mira/internal/obslog"
	"mira/internal/storage"
)

const (
	strongThreshold = 0.70
	weakThreshold   = 0.85

	entityBoostPerMatch = 0.15
	entityBoostCap      = 1.27
	branchBoost         = 1.10

	expansionTokenFloor = 4
	expansionPreamble   = "relevant project context about"
)

// Result is one recall hit with its stage label and score.
type Result struct {
	Fact  domain.MemoryFact
	Score float64
}

// Outcome is what Recall returns: the ranked rows plus the stage label used
// in the human-readable message (spec §4.3).
type Outcome struct {
	Results []Result
	Stage   string // "semantic" | "fuzzy" | "keyword fallback"
}

// Engine runs the hybrid pipeline against the main pool, an optional
// embedder, and the memory store (for access recording and entity lookups).
type Engine struct {
	pool     *storage.Pool
	embedder llm.Embedder
	store    *memory.Store
}

func NewEngine(pool *storage.Pool, embedder llm.Embedder, store *memory.Store) *Engine {
	return &Engine{pool: pool, embedder: embedder, store: store}
}

// Request bundles recall's input (spec §4.3).
type Request struct {
	Query     string
	Limit     int
	Category  string
	FactType  string
	Caller    domain.Identity
	SessionID string
}

// Recall runs the pipeline: reject too-short queries, expand short ones,
// extract entities, try semantic → fuzzy → keyword in order, apply
// category/fact_type filters with over-fetch, then record access.
func (e *Engine) Recall(ctx context.Context, req Request) (Outcome, error) {
	if len(strings.TrimSpace(req.Query)) < 2 {
		return Outcome{}, domain.Invalid("recall query must be at least 2 characters")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	fetchLimit := limit
	filtered := req.Category != "" || req.FactType != ""
	if filtered {
		fetchLimit = limit * 3
	}

	entities := memory.ExtractEntities(req.Query)
	expanded := expandQuery(req.Query)

	outcome, err := e.semanticSearch(ctx, expanded, entities, req, fetchLimit)
	if err != nil {
		obslog.FromContext(ctx).Warn().Err(err).Msg("semantic_recall_failed")
	}
	if len(outcome.Results) == 0 {
		outcome, err = e.fuzzySearch(ctx, req.Query, entities, req, fetchLimit)
		if err != nil {
			obslog.FromContext(ctx).Warn().Err(err).Msg("fuzzy_recall_failed")
		}
	}
	if len(outcome.Results) == 0 {
		outcome, err = e.keywordSearch(ctx, req.Query, req, fetchLimit)
		if err != nil {
			return Outcome{}, domain.DbErr(err)
		}
	}

	outcome.Results = applyFilters(outcome.Results, req.Category, req.FactType, limit)

	for _, r := range outcome.Results {
		go e.store.RecordAccess(context.WithoutCancel(ctx), r.Fact.ID, req.SessionID)
	}
	return outcome, nil
}

// expandQuery implements the resolved Open Question: queries under
// expansionTokenFloor whitespace-separated tokens get a fixed preamble
// prepended before embedding. The original query text still drives entity
// extraction, fuzzy, and keyword stages.
func expandQuery(query string) string {
	if len(strings.Fields(query)) < expansionTokenFloor {
		return expansionPreamble + " " + query
	}
	return query
}

func (e *Engine) semanticSearch(ctx context.Context, expandedQuery string, entities []string, req Request, limit int) (Outcome, error) {
	if e.embedder == nil {
		return Outcome{}, nil
	}
	vec, err := e.embedder.Embed(ctx, expandedQuery)
	if err != nil {
		return Outcome{}, err
	}
	blob := encodeVector(vec)

	return storage.Interact(ctx, e.pool, func(conn *sql.Conn) (Outcome, error) {
		rows, err := conn.QueryContext(ctx, `
			SELECT f.id, f.content, f.key, f.fact_type, f.category, f.confidence, f.status,
				f.suspicious, f.scope, f.project_id, f.user_id, f.team_id, f.session_count,
				f.first_session_id, f.last_session_id, f.branch, f.created_at, f.updated_at,
				vec_distance_cosine(v.embedding, ?) AS distance
			FROM memory_fact_vectors v
			JOIN memory_facts f ON f.id = v.fact_id
			ORDER BY distance
			LIMIT ?`, blob, limit)
		if err != nil {
			return Outcome{}, err
		}
		defer rows.Close()

		var strong, weak []Result
		for rows.Next() {
			f, dist, err := scanFactWithDistance(rows)
			if err != nil {
				return Outcome{}, err
			}
			if !f.Visible(req.Caller) {
				continue
			}
			score := boostScore(ctx, conn, 1.0-dist, f, entities, req.Caller.Branch)
			r := Result{Fact: f, Score: score}
			if dist < strongThreshold {
				strong = append(strong, r)
			} else if dist < weakThreshold {
				weak = append(weak, r)
			}
		}
		results := strong
		if len(results) == 0 {
			results = weak
		}
		sortByScoreDesc(results)
		return Outcome{Results: results, Stage: "semantic"}, nil
	})
}

func (e *Engine) fuzzySearch(ctx context.Context, query string, entities []string, req Request, limit int) (Outcome, error) {
	return storage.Interact(ctx, e.pool, func(conn *sql.Conn) (Outcome, error) {
		rows, err := conn.QueryContext(ctx, `
			SELECT id, content, key, fact_type, category, confidence, status, suspicious,
				scope, project_id, user_id, team_id, session_count, first_session_id,
				last_session_id, branch, created_at, updated_at
			FROM memory_facts
			WHERE status != ? AND (project_id = ? OR project_id IS NULL)`,
			string(domain.StatusArchived), req.Caller.ProjectID)
		if err != nil {
			return Outcome{}, err
		}
		defer rows.Close()

		var facts []domain.MemoryFact
		var contents []string
		for rows.Next() {
			f, err := scanFactPlain(rows)
			if err != nil {
				return Outcome{}, err
			}
			if !f.Visible(req.Caller) {
				continue
			}
			facts = append(facts, f)
			contents = append(contents, f.Content)
		}

		matches := fuzzy.Find(query, contents)
		if len(matches) == 0 {
			return Outcome{}, nil
		}
		maxScore := matches[0].Score
		if maxScore <= 0 {
			maxScore = 1
		}
		var results []Result
		for _, m := range matches {
			f := facts[m.Index]
			normalized := float64(m.Score) / float64(maxScore)
			score := boostScore(ctx, conn, normalized, f, entities, req.Caller.Branch)
			results = append(results, Result{Fact: f, Score: score})
		}
		sortByScoreDesc(results)
		if len(results) > limit {
			results = results[:limit]
		}
		return Outcome{Results: results, Stage: "fuzzy"}, nil
	})
}

func (e *Engine) keywordSearch(ctx context.Context, query string, req Request, limit int) (Outcome, error) {
	return storage.Interact(ctx, e.pool, func(conn *sql.Conn) (Outcome, error) {
		pattern := "%" + escapeLike(query) + "%"
		rows, err := conn.QueryContext(ctx, `
			SELECT id, content, key, fact_type, category, confidence, status, suspicious,
				scope, project_id, user_id, team_id, session_count, first_session_id,
				last_session_id, branch, created_at, updated_at
			FROM memory_facts
			WHERE status != ? AND (project_id = ? OR project_id IS NULL)
			  AND content LIKE ? ESCAPE '\'
			LIMIT ?`, string(domain.StatusArchived), req.Caller.ProjectID, pattern, limit)
		if err != nil {
			return Outcome{}, err
		}
		defer rows.Close()

		var results []Result
		i := 0
		for rows.Next() {
			f, err := scanFactPlain(rows)
			if err != nil {
				return Outcome{}, err
			}
			if !f.Visible(req.Caller) {
				continue
			}
			score := 0.80 - math.Min(0.50, float64(i)*0.08)
			results = append(results, Result{Fact: f, Score: score})
			i++
		}
		return Outcome{Results: results, Stage: "keyword fallback"}, nil
	})
}

// boostScore applies the entity-match and branch-match boosts, capped at
// raw_score × entityBoostCap (spec invariant 4).
func boostScore(ctx context.Context, conn *sql.Conn, raw float64, f domain.MemoryFact, queryEntities []string, callerBranch string) float64 {
	matches := 0
	if len(queryEntities) > 0 {
		linked, err := factEntities(ctx, conn, f.ID)
		if err == nil {
			linkedSet := make(map[string]bool, len(linked))
			for _, n := range linked {
				linkedSet[strings.ToLower(n)] = true
			}
			for _, qe := range queryEntities {
				if linkedSet[strings.ToLower(qe)] {
					matches++
				}
			}
		}
	}
	boosted := raw * (1.0 + entityBoostPerMatch*float64(matches))
	cap := raw * entityBoostCap
	if boosted > cap {
		boosted = cap
	}
	if f.Branch != "" && callerBranch != "" && f.Branch == callerBranch {
		boosted *= branchBoost
		if boosted > cap {
			boosted = cap
		}
	}
	return boosted
}

func factEntities(ctx context.Context, conn *sql.Conn, factID int64) ([]string, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT e.name FROM memory_entities e
		JOIN memory_fact_entities l ON l.entity_id = e.id
		WHERE l.fact_id = ?`, factID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func applyFilters(results []Result, category, factType string, limit int) []Result {
	var out []Result
	for _, r := range results {
		if category != "" && r.Fact.Category != category {
			continue
		}
		if factType != "" && r.Fact.FactType != factType {
			continue
		}
		out = append(out, r)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func sortByScoreDesc(results []Result) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Score > results[j-1].Score; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

func escapeLike(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '\\', '%', '_':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

type rowsLike interface {
	Scan(dest ...any) error
}

func scanFactPlain(row rowsLike) (domain.MemoryFact, error) {
	var f domain.MemoryFact
	var key, category, projectID, userID, teamID, firstSession, lastSession sql.NullString
	var suspicious int
	var status, scope string
	err := row.Scan(&f.ID, &f.Content, &key, &f.FactType, &category, &f.Confidence, &status,
		&suspicious, &scope, &projectID, &userID, &teamID, &f.SessionCount,
		&firstSession, &lastSession, &f.Branch, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return f, err
	}
	f.Key, f.Category = key.String, category.String
	f.Status = domain.FactStatus(status)
	f.Suspicious = suspicious != 0
	f.Scope = domain.Scope(scope)
	f.ProjectID, f.UserID, f.TeamID = projectID.String, userID.String, teamID.String
	f.FirstSessionID, f.LastSessionID = firstSession.String, lastSession.String
	return f, nil
}

func scanFactWithDistance(row rowsLike) (domain.MemoryFact, float64, error) {
	var f domain.MemoryFact
	var key, category, projectID, userID, teamID, firstSession, lastSession sql.NullString
	var suspicious int
	var status, scope string
	var dist float64
	err := row.Scan(&f.ID, &f.Content, &key, &f.FactType, &category, &f.Confidence, &status,
		&suspicious, &scope, &projectID, &userID, &teamID, &f.SessionCount,
		&firstSession, &lastSession, &f.Branch, &f.CreatedAt, &f.UpdatedAt, &dist)
	if err != nil {
		return f, 0, err
	}
	f.Key, f.Category = key.String, category.String
	f.Status = domain.FactStatus(status)
	f.Suspicious = suspicious != 0
	f.Scope = domain.Scope(scope)
	f.ProjectID, f.UserID, f.TeamID = projectID.String, userID.String, teamID.String
	f.FirstSessionID, f.LastSessionID = firstSession.String, lastSession.String
	return f, dist, nil
}
