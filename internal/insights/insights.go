package insights

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"mira/internal/domain"
	"mira/internal/storage"
)

const autoDismissAcuteAfterDays = 14

// Category tags drive the fixed display order (spec §4.5's "Display" rule).
const (
	CategoryPondering   = "pondering"
	CategoryDocGap      = "doc_gap"
	CategoryHealthTrend = "health_trend"
)

var displayOrder = []string{CategoryPondering, CategoryDocGap, CategoryHealthTrend}

const attentionRequiredThreshold = 0.75

// Insight is one fused, scored row from any of the three streams.
type Insight struct {
	ID            int64
	Source        string // "pondering" | "doc_gap" | "health_trend"
	Kind          string
	Summary       string
	Confidence    float64
	PriorityScore float64
	Timestamp     time.Time
	Dismissable   bool
	Dismissed     bool
}

// Filter narrows a Query call (spec §4.5's "Filtering").
type Filter struct {
	ProjectID     string
	InsightSource string // empty = all streams
	MinConfidence float64
	DaysBack      int
	Limit         int
}

type Store struct {
	pool *storage.Pool
}

func NewStore(pool *storage.Pool) *Store {
	return &Store{pool: pool}
}

// Query runs auto-dismiss, loads the three streams, scores, filters, sorts,
// and truncates to Filter.Limit (spec §4.5).
func (s *Store) Query(ctx context.Context, f Filter) ([]Insight, error) {
	if err := s.autoDismissAcute(ctx, f.ProjectID); err != nil {
		return nil, err
	}

	return storage.Interact(ctx, s.pool, func(conn *sql.Conn) ([]Insight, error) {
		var all []Insight

		if f.InsightSource == "" || f.InsightSource == CategoryPondering {
			rows, err := s.ponderingRows(ctx, conn, f)
			if err != nil {
				return nil, err
			}
			all = append(all, rows...)
		}
		if f.InsightSource == "" || f.InsightSource == CategoryDocGap {
			rows, err := s.docGapRows(ctx, conn, f)
			if err != nil {
				return nil, err
			}
			all = append(all, rows...)
		}
		if f.InsightSource == "" || f.InsightSource == CategoryHealthTrend {
			row, ok, err := s.healthTrendRow(ctx, conn, f)
			if err != nil {
				return nil, err
			}
			if ok {
				all = append(all, row)
			}
		}

		sort.SliceStable(all, func(i, j int) bool {
			if all[i].PriorityScore != all[j].PriorityScore {
				return all[i].PriorityScore > all[j].PriorityScore
			}
			return all[i].Timestamp.After(all[j].Timestamp)
		})
		if f.Limit > 0 && len(all) > f.Limit {
			all = all[:f.Limit]
		}
		return all, nil
	})
}

func (s *Store) ponderingRows(ctx context.Context, conn *sql.Conn, f Filter) ([]Insight, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT id, kind, confidence, summary, timestamp, dismissed
		FROM behavior_patterns
		WHERE project_id = ? AND confidence >= ?
		  AND (? = 0 OR timestamp >= ?)
		  AND dismissed = 0`,
		f.ProjectID, f.MinConfidence, boolToInt(f.DaysBack > 0), cutoff(f.DaysBack))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Insight
	for rows.Next() {
		var id int64
		var kind, summary string
		var confidence float64
		var ts time.Time
		var dismissed int
		if err := rows.Scan(&id, &kind, &confidence, &summary, &ts, &dismissed); err != nil {
			return nil, err
		}
		ageDays := time.Since(ts).Hours() / 24
		out = append(out, Insight{
			ID:            id,
			Source:        CategoryPondering,
			Kind:          kind,
			Summary:       summary,
			Confidence:    confidence,
			PriorityScore: ponderingScore(confidence, ageDays, kind),
			Timestamp:     ts,
			Dismissable:   true,
		})
	}
	return out, nil
}

func (s *Store) docGapRows(ctx context.Context, conn *sql.Conn, f Filter) ([]Insight, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT id, summary, priority, timestamp
		FROM documentation_tasks
		WHERE project_id = ? AND status != 'completed'
		  AND (? = 0 OR timestamp >= ?)`,
		f.ProjectID, boolToInt(f.DaysBack > 0), cutoff(f.DaysBack))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Insight
	for rows.Next() {
		var id int64
		var summary, priority string
		var ts time.Time
		if err := rows.Scan(&id, &summary, &priority, &ts); err != nil {
			return nil, err
		}
		score := docGapPriorityScore(priority)
		if score < f.MinConfidence {
			continue
		}
		out = append(out, Insight{
			ID:            id,
			Source:        CategoryDocGap,
			Kind:          priority,
			Summary:       summary,
			Confidence:    score,
			PriorityScore: score,
			Timestamp:     ts,
			Dismissable:   true,
		})
	}
	return out, nil
}

func (s *Store) healthTrendRow(ctx context.Context, conn *sql.Conn, f Filter) (Insight, bool, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT avg_debt, timestamp FROM health_snapshots
		WHERE project_id = ? ORDER BY timestamp DESC LIMIT 2`, f.ProjectID)
	if err != nil {
		return Insight{}, false, err
	}
	defer rows.Close()

	type snap struct {
		avg float64
		ts  time.Time
	}
	var snaps []snap
	for rows.Next() {
		var sn snap
		if err := rows.Scan(&sn.avg, &sn.ts); err != nil {
			return Insight{}, false, err
		}
		snaps = append(snaps, sn)
	}
	if len(snaps) < 2 {
		return Insight{}, false, nil
	}
	current, prev := snaps[0], snaps[1]
	trend := computeHealthTrend(prev.avg, current.avg)
	if !trend.Emit || trend.Confidence < f.MinConfidence {
		return Insight{}, false, nil
	}
	return Insight{
		Source:        CategoryHealthTrend,
		Kind:          trend.Trend,
		Summary:       "health trend: " + trend.Trend,
		Confidence:    trend.Confidence,
		PriorityScore: trend.Confidence,
		Timestamp:     current.ts,
		Dismissable:   false,
	}, true, nil
}

// autoDismissAcute runs on every query: acute pondering rows older than 14
// days are dismissed automatically, chronic rows never are (spec §4.5).
func (s *Store) autoDismissAcute(ctx context.Context, projectID string) error {
	var acuteList []string
	_, err := storage.Interact(ctx, s.pool, func(conn *sql.Conn) (struct{}, error) {
		rows, err := conn.QueryContext(ctx, `
			SELECT DISTINCT kind FROM behavior_patterns WHERE project_id = ? AND dismissed = 0`, projectID)
		if err != nil {
			return struct{}{}, err
		}
		var kinds []string
		for rows.Next() {
			var k string
			if err := rows.Scan(&k); err != nil {
				rows.Close()
				return struct{}{}, err
			}
			if !chronicKinds[k] {
				kinds = append(kinds, k)
			}
		}
		rows.Close()
		acuteList = kinds

		cut := time.Now().Add(-autoDismissAcuteAfterDays * 24 * time.Hour)
		for _, k := range acuteList {
			if _, err := conn.ExecContext(ctx, `
				UPDATE behavior_patterns SET dismissed = 1
				WHERE project_id = ? AND kind = ? AND timestamp < ? AND dismissed = 0`,
				projectID, k, cut); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	})
	return err
}

// Dismiss marks one row dismissed by id, disambiguated by source (pondering
// ids live in behavior_patterns, doc_gap ids in documentation_tasks).
// Missing or wrong-project rows report ok=false rather than an error.
func (s *Store) Dismiss(ctx context.Context, projectID, source string, id int64) (bool, error) {
	var table string
	switch source {
	case CategoryPondering:
		table = "behavior_patterns"
	case CategoryDocGap:
		table = "documentation_tasks"
	default:
		return false, domain.Invalid("insight_source must be %q or %q to dismiss by id", CategoryPondering, CategoryDocGap)
	}
	return storage.Interact(ctx, s.pool, func(conn *sql.Conn) (bool, error) {
		col := "dismissed = 1"
		if table == "documentation_tasks" {
			col = "status = 'dismissed'"
		}
		res, err := conn.ExecContext(ctx, "UPDATE "+table+" SET "+col+" WHERE id = ? AND project_id = ?", id, projectID)
		if err != nil {
			return false, domain.DbErr(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, domain.DbErr(err)
		}
		return n > 0, nil
	})
}

// AttentionRequired splits insights into the "Attention Required" bucket
// (priority_score >= 0.75) and the rest, preserving the fixed display order
// of categories within each bucket (spec §4.5).
func AttentionRequired(all []Insight) (attention, rest []Insight) {
	for _, cat := range displayOrder {
		for _, i := range all {
			if i.Source != cat {
				continue
			}
			if i.PriorityScore >= attentionRequiredThreshold {
				attention = append(attention, i)
			} else {
				rest = append(rest, i)
			}
		}
	}
	return attention, rest
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func cutoff(daysBack int) time.Time {
	if daysBack <= 0 {
		return time.Time{}
	}
	return time.Now().Add(-time.Duration(daysBack) * 24 * time.Hour)
}
