// Package session implements session_start and per-session lifecycle
// tracking (spec §4.9): upsert-by-id session rows, a system_context
// observation, recent-session briefing, stale-index detection, and
// Early/Mid/Late phase ticking. Grounded on the teacher's
// internal/persistence session-row upsert style (internal/memory/store.go's
// upsert-by-key shape, generalized to sessions) and on storage.Interact for
// connection borrowing.
package session

import (
	"context"
	"database/sql"
	"regexp"
	"time"

	"github.com/google/uuid"

	"mira/internal/domain"
	"mira/internal/obslog"
	"mira/internal/storage"
)

// GitLogReader is the narrow interface session depends on for stale-index
// detection. cmd/mira wires a real git-log-backed implementation; the core
// package never spawns a process itself (spec §4.9).
type GitLogReader interface {
	LatestCommitTime(ctx context.Context, repoPath string) (time.Time, bool, error)
}

// RunningMode reports whether recall/memory can use embeddings.
type RunningMode string

const (
	ModeSemantic RunningMode = "semantic"
	ModeLocal    RunningMode = "local"
)

// StartResult is session_start's typed response (spec §4.9).
type StartResult struct {
	Session         domain.Session
	Briefing        string
	RecentSessions  []domain.Session
	FirstSession    bool
	SymbolCount     int
	ActiveGoalCount int
	Mode            RunningMode
	StaleIndex      bool
}

// Store implements session_start and tick against the main and code pools.
type Store struct {
	mainPool *storage.Pool
	codePool *storage.Pool
	gitLog   GitLogReader
	embedder bool // whether an embedder is configured; drives RunningMode
}

func NewStore(mainPool, codePool *storage.Pool, gitLog GitLogReader, embedderConfigured bool) *Store {
	return &Store{mainPool: mainPool, codePool: codePool, gitLog: gitLog, embedder: embedderConfigured}
}

// Start implements session_start(project_path, name?, session_id?) (spec
// §4.9): upserts the session row (by id, if supplied), records a
// system_context observation, loads the project briefing and last three
// other sessions, runs first-session onboarding, and reports index/goal
// status plus the stale-index note.
func (s *Store) Start(ctx context.Context, projectID, sessionID, source string) (StartResult, error) {
	ctx, span := obslog.StartSpan(ctx, "session.start")
	defer span()

	now := time.Now().UTC()
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	sess, firstSession, err := storage.Interact(ctx, s.mainPool, func(conn *sql.Conn) (upsertResult, error) {
		return upsertSession(ctx, conn, sessionID, projectID, source, now)
	})
	if err != nil {
		return StartResult{}, err
	}

	recent, err := s.recentSessions(ctx, projectID, sessionID)
	if err != nil {
		obslog.FromContext(ctx).Warn().Err(err).Msg("session_start_recent_lookup_failed")
	}

	briefing, err := s.briefing(ctx, projectID)
	if err != nil {
		obslog.FromContext(ctx).Warn().Err(err).Msg("session_start_briefing_lookup_failed")
	}

	symbolCount, err := s.symbolCount(ctx, projectID)
	if err != nil {
		obslog.FromContext(ctx).Warn().Err(err).Msg("session_start_symbol_count_failed")
	}
	activeGoals, err := s.activeGoalCount(ctx, projectID)
	if err != nil {
		obslog.FromContext(ctx).Warn().Err(err).Msg("session_start_goal_count_failed")
	}

	mode := ModeLocal
	if s.embedder {
		mode = ModeSemantic
	}

	stale := s.checkStaleIndex(ctx, projectID)

	return StartResult{
		Session:         sess,
		Briefing:        briefing,
		RecentSessions:  recent,
		FirstSession:    firstSession,
		SymbolCount:     symbolCount,
		ActiveGoalCount: activeGoals,
		Mode:            mode,
		StaleIndex:      stale,
	}, nil
}

type upsertResult struct {
	session domain.Session
	isFirst bool
}

func upsertSession(ctx context.Context, conn *sql.Conn, id, projectID, source string, now time.Time) (upsertResult, error) {
	var existing domain.Session
	row := conn.QueryRowContext(ctx, `SELECT id, project_id, started_at, phase FROM sessions WHERE id = ?`, id)
	err := row.Scan(&existing.ID, &existing.ProjectID, &existing.StartedAt, &existing.Phase)
	switch {
	case err == sql.ErrNoRows:
		sess := domain.Session{
			ID: id, ProjectID: projectID, StartedAt: now, LastActivity: now,
			Status: "active", Source: source, Phase: domain.PhaseEarly,
		}
		_, insErr := conn.ExecContext(ctx, `
			INSERT INTO sessions (id, project_id, started_at, last_activity, status, source, phase)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, sess.ProjectID, sess.StartedAt, sess.LastActivity, sess.Status, sess.Source, sess.Phase)
		if insErr != nil {
			return upsertResult{}, domain.DbErr(insErr)
		}
		isFirst, countErr := isFirstSessionForProject(ctx, conn, projectID)
		if countErr != nil {
			return upsertResult{}, domain.DbErr(countErr)
		}
		if _, obsErr := recordSystemContext(ctx, conn, id, projectID, now); obsErr != nil {
			return upsertResult{}, obsErr
		}
		return upsertResult{session: sess, isFirst: isFirst}, nil
	case err != nil:
		return upsertResult{}, domain.DbErr(err)
	default:
		_, updErr := conn.ExecContext(ctx, `UPDATE sessions SET last_activity = ?, status = 'active' WHERE id = ?`, now, id)
		if updErr != nil {
			return upsertResult{}, domain.DbErr(updErr)
		}
		existing.LastActivity = now
		existing.Status = "active"
		if _, obsErr := recordSystemContext(ctx, conn, id, projectID, now); obsErr != nil {
			return upsertResult{}, obsErr
		}
		return upsertResult{session: existing}, nil
	}
}

func isFirstSessionForProject(ctx context.Context, conn *sql.Conn, projectID string) (bool, error) {
	var count int
	err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE project_id = ?`, projectID).Scan(&count)
	return count <= 1, err
}

// recordSystemContext stores the session_start observation as a
// SystemFactTypes-excluded memory_facts row, invisible to user-facing
// listings (spec §3.1's system_context type).
func recordSystemContext(ctx context.Context, conn *sql.Conn, sessionID, projectID string, now time.Time) (int64, error) {
	res, err := conn.ExecContext(ctx, `
		INSERT INTO memory_facts (content, fact_type, status, scope, project_id, first_session_id, last_session_id, session_count, created_at, updated_at)
		VALUES (?, 'system_context', 'confirmed', 'project', ?, ?, ?, 1, ?, ?)`,
		"session started", projectID, sessionID, sessionID, now, now)
	if err != nil {
		return 0, domain.DbErr(err)
	}
	id, err := res.LastInsertId()
	return id, err
}

func (s *Store) recentSessions(ctx context.Context, projectID, excludeID string) ([]domain.Session, error) {
	return storage.Interact(ctx, s.mainPool, func(conn *sql.Conn) ([]domain.Session, error) {
		rows, err := conn.QueryContext(ctx, `
			SELECT id, project_id, started_at, last_activity, status, summary, phase
			FROM sessions WHERE project_id = ? AND id != ?
			ORDER BY last_activity DESC LIMIT 3`, projectID, excludeID)
		if err != nil {
			return nil, domain.DbErr(err)
		}
		defer rows.Close()
		var out []domain.Session
		for rows.Next() {
			var sess domain.Session
			if err := rows.Scan(&sess.ID, &sess.ProjectID, &sess.StartedAt, &sess.LastActivity, &sess.Status, &sess.Summary, &sess.Phase); err != nil {
				return nil, domain.DbErr(err)
			}
			out = append(out, sess)
		}
		return out, rows.Err()
	})
}

func (s *Store) briefing(ctx context.Context, projectID string) (string, error) {
	return storage.Interact(ctx, s.mainPool, func(conn *sql.Conn) (string, error) {
		var text string
		err := conn.QueryRowContext(ctx, `SELECT content FROM documents WHERE project_id = ? AND title = 'briefing'`, projectID).Scan(&text)
		if err == sql.ErrNoRows {
			return "", nil
		}
		return text, err
	})
}

func (s *Store) symbolCount(ctx context.Context, projectID string) (int, error) {
	return storage.Interact(ctx, s.codePool, func(conn *sql.Conn) (int, error) {
		var n int
		err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM symbols WHERE project_id = ?`, projectID).Scan(&n)
		return n, err
	})
}

func (s *Store) activeGoalCount(ctx context.Context, projectID string) (int, error) {
	return storage.Interact(ctx, s.mainPool, func(conn *sql.Conn) (int, error) {
		var n int
		err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM goals WHERE project_id = ? AND status != 'done'`, projectID).Scan(&n)
		return n, err
	})
}

// datetimeSafe matches only characters legitimate in a SQLite TIMESTAMP
// string, the allowlist the stale-index check validates against before any
// shell interpolation (spec §4.9's "datetime-safe-chars validation").
var datetimeSafe = regexp.MustCompile(`^[0-9T:. Z+-]+$`)

// checkStaleIndex compares the code index's newest indexed_at against the
// repo's latest commit time, skipping (and logging) if either input is
// missing, the reader errors, or the indexed_at string fails the
// datetime-safe-chars check before being handed to the GitLogReader (spec
// §4.9's safety rule: unsafe values are logged and the check is skipped).
func (s *Store) checkStaleIndex(ctx context.Context, projectID string) bool {
	if s.gitLog == nil {
		return false
	}
	indexedAt, ok, err := s.latestIndexedAt(ctx, projectID)
	if err != nil || !ok {
		return false
	}
	raw := indexedAt.UTC().Format("2006-01-02T15:04:05")
	if !datetimeSafe.MatchString(raw) {
		obslog.FromContext(ctx).Warn().Str("indexed_at", raw).Msg("stale_index_check_skipped_unsafe_value")
		return false
	}

	repoPath, err := storage.Interact(ctx, s.mainPool, func(conn *sql.Conn) (string, error) {
		var path string
		err := conn.QueryRowContext(ctx, `SELECT path FROM projects WHERE id = ?`, projectID).Scan(&path)
		return path, err
	})
	if err != nil || repoPath == "" {
		return false
	}

	commitTime, ok, err := s.gitLog.LatestCommitTime(ctx, repoPath)
	if err != nil || !ok {
		return false
	}
	return commitTime.After(indexedAt)
}

func (s *Store) latestIndexedAt(ctx context.Context, projectID string) (time.Time, bool, error) {
	res, err := storage.Interact(ctx, s.codePool, func(conn *sql.Conn) (timeResult, error) {
		var raw sql.NullTime
		// Selecting the column itself (rather than MAX()) keeps its TIMESTAMP
		// declared type, which the driver needs to decode it into a time.
		err := conn.QueryRowContext(ctx, `SELECT indexed_at FROM symbols WHERE project_id = ? ORDER BY indexed_at DESC LIMIT 1`, projectID).Scan(&raw)
		if err == sql.ErrNoRows {
			return timeResult{}, nil
		}
		if err != nil {
			return timeResult{}, err
		}
		if !raw.Valid {
			return timeResult{}, nil
		}
		return timeResult{t: raw.Time, ok: true}, nil
	})
	return res.t, res.ok, err
}

type timeResult struct {
	t  time.Time
	ok bool
}
