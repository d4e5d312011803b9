// Package memory implements the fact store (spec §4.2): remember, recall,
// forget, archive, list, export, purge, list_entities, with scope/confidence/
// promotion semantics. Grounded on the teacher's
// internal/persistence/databases/chat_store_memory.go for the
// sync/transaction style, generalized from an in-memory map to SQLite rows.
package memory

import (
	"context"
	"database/sql"
	"math"
	"time"

	"mira/internal/domain"
	"mira/internal/llm"
	"mira/internal/obslog"
	"mira/internal/storage"
)

// Store implements the memory operations against the main storage pool.
type Store struct {
	pool     *storage.Pool
	embedder llm.Embedder // optional; absence degrades gracefully (spec §4.2)
}

func NewStore(pool *storage.Pool, embedder llm.Embedder) *Store {
	return &Store{pool: pool, embedder: embedder}
}

// RememberInput is the remember() argument bundle (spec §4.2).
type RememberInput struct {
	Content    string
	Key        string
	FactType   string
	Category   string
	Confidence float64 // caller-supplied; 0 means "unspecified" (defaults to 0.5 below)
	Scope      domain.Scope
	SessionID  string
	Caller     domain.Identity
}

// Remember implements remember(): upsert-by-key, scope validation, initial
// confidence floor, promotion-on-new-session, embedding sidecar.
func (s *Store) Remember(ctx context.Context, in RememberInput) (int64, error) {
	if in.Scope == domain.ScopePersonal && in.Caller.UserID == "" {
		return 0, domain.Invalid("scope=personal requires a caller user_id")
	}
	if in.FactType == "" {
		in.FactType = "general"
	}
	now := time.Now().UTC()

	return storage.Interact(ctx, s.pool, func(conn *sql.Conn) (int64, error) {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return 0, domain.DbErr(err)
		}
		defer tx.Rollback()

		var existingID int64
		var sessionCount int
		var lastSessionID, status string
		var confidence float64
		upserting := false
		if in.Key != "" {
			row := tx.QueryRowContext(ctx, `
				SELECT id, session_count, last_session_id, status, confidence
				FROM memory_facts
				WHERE key = ? AND (project_id = ? OR project_id IS NULL)
				LIMIT 1`, in.Key, in.Caller.ProjectID)
			switch err := row.Scan(&existingID, &sessionCount, &lastSessionID, &status, &confidence); err {
			case nil:
				upserting = true
			case sql.ErrNoRows:
				upserting = false
			default:
				return 0, domain.DbErr(err)
			}
		}

		if upserting {
			if in.SessionID != "" && in.SessionID != lastSessionID {
				sessionCount++
				if sessionCount >= 3 && status == string(domain.StatusCandidate) {
					status = string(domain.StatusConfirmed)
					confidence = math.Min(1.0, confidence+0.2)
				}
			}
			_, err := tx.ExecContext(ctx, `
				UPDATE memory_facts SET content=?, fact_type=?, category=?, scope=?,
					session_count=?, last_session_id=?, status=?, confidence=?, updated_at=?
				WHERE id=?`,
				in.Content, in.FactType, nullable(in.Category), string(in.Scope),
				sessionCount, in.SessionID, status, confidence, now, existingID)
			if err != nil {
				return 0, domain.DbErr(err)
			}
			if err := s.upsertEmbedding(ctx, tx, existingID, in.Content); err != nil {
				obslog.FromContext(ctx).Warn().Err(err).Int64("fact_id", existingID).Msg("embed_failed")
			}
			if err := tx.Commit(); err != nil {
				return 0, domain.DbErr(err)
			}
			return existingID, nil
		}

		initialConfidence := in.Confidence
		if initialConfidence <= 0 {
			initialConfidence = 0.5
		} else {
			initialConfidence = math.Min(initialConfidence, 0.5)
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO memory_facts
				(content, key, fact_type, category, confidence, status, suspicious,
				 scope, project_id, user_id, team_id, session_count,
				 first_session_id, last_session_id, branch, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?, 1, ?, ?, ?, ?, ?)`,
			in.Content, nullable(in.Key), in.FactType, nullable(in.Category),
			initialConfidence, string(domain.StatusCandidate), string(in.Scope),
			nullable(in.Caller.ProjectID), nullable(in.Caller.UserID), nullable(in.Caller.TeamID),
			nullable(in.SessionID), nullable(in.SessionID), in.Caller.Branch, now, now)
		if err != nil {
			return 0, domain.DbErr(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, domain.DbErr(err)
		}
		if err := linkEntities(ctx, tx, id, ExtractEntities(in.Content)); err != nil {
			return 0, domain.DbErr(err)
		}
		if err := s.upsertEmbedding(ctx, tx, id, in.Content); err != nil {
			obslog.FromContext(ctx).Warn().Err(err).Int64("fact_id", id).Msg("embed_failed")
		}
		if err := tx.Commit(); err != nil {
			return 0, domain.DbErr(err)
		}
		return id, nil
	})
}

func (s *Store) upsertEmbedding(ctx context.Context, tx *sql.Tx, factID int64, content string) error {
	if s.embedder == nil {
		return nil
	}
	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO memory_fact_vectors(fact_id, embedding) VALUES (?, ?)
		ON CONFLICT(fact_id) DO UPDATE SET embedding=excluded.embedding`,
		factID, encodeVector(vec))
	return err
}

// Forget implements forget(id): scope-checked deletion, vector row first,
// then fact, then orphan entity cleanup.
func (s *Store) Forget(ctx context.Context, id int64, caller domain.Identity) error {
	_, err := storage.Interact(ctx, s.pool, func(conn *sql.Conn) (struct{}, error) {
		fact, err := loadFact(ctx, conn, id)
		if err != nil {
			return struct{}{}, err
		}
		if !fact.Visible(caller) {
			return struct{}{}, domain.Invalid("fact %d is not visible to this caller", id)
		}
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return struct{}{}, domain.DbErr(err)
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `DELETE FROM memory_fact_vectors WHERE fact_id=?`, id); err != nil {
			return struct{}{}, domain.DbErr(err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM memory_facts WHERE id=?`, id)
		if err != nil {
			return struct{}{}, domain.DbErr(err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return struct{}{}, domain.Invalid("fact %d not found", id)
		}
		if err := deleteOrphanEntities(ctx, tx); err != nil {
			return struct{}{}, domain.DbErr(err)
		}
		if err := tx.Commit(); err != nil {
			return struct{}{}, domain.DbErr(err)
		}
		return struct{}{}, nil
	})
	return err
}

// Archive implements archive(id): scope-checked status transition, no deletion.
func (s *Store) Archive(ctx context.Context, id int64, caller domain.Identity) error {
	_, err := storage.Interact(ctx, s.pool, func(conn *sql.Conn) (struct{}, error) {
		fact, err := loadFact(ctx, conn, id)
		if err != nil {
			return struct{}{}, err
		}
		if !fact.Visible(caller) {
			return struct{}{}, domain.Invalid("fact %d is not visible to this caller", id)
		}
		_, err = conn.ExecContext(ctx, `UPDATE memory_facts SET status=?, updated_at=? WHERE id=?`,
			string(domain.StatusArchived), time.Now().UTC(), id)
		if err != nil {
			return struct{}{}, domain.DbErr(err)
		}
		return struct{}{}, nil
	})
	return err
}

// List paginates non-archived, non-suspicious, non-system facts visible to
// the caller.
func (s *Store) List(ctx context.Context, caller domain.Identity, limit, offset int, category, factType string) ([]domain.MemoryFact, error) {
	return storage.Interact(ctx, s.pool, func(conn *sql.Conn) ([]domain.MemoryFact, error) {
		rows, err := conn.QueryContext(ctx, `
			SELECT id, content, key, fact_type, category, confidence, status, suspicious,
				scope, project_id, user_id, team_id, session_count, first_session_id,
				last_session_id, branch, created_at, updated_at
			FROM memory_facts
			WHERE status != ?
			  AND suspicious = 0
			  AND (project_id = ? OR project_id IS NULL)
			  AND (? = '' OR category = ?)
			  AND (? = '' OR fact_type = ?)
			ORDER BY updated_at DESC
			LIMIT ? OFFSET ?`,
			string(domain.StatusArchived), caller.ProjectID, category, category, factType, factType, limit, offset)
		if err != nil {
			return nil, domain.DbErr(err)
		}
		defer rows.Close()

		var out []domain.MemoryFact
		for rows.Next() {
			f, err := scanFact(rows)
			if err != nil {
				return nil, domain.DbErr(err)
			}
			if domain.SystemFactTypes[f.FactType] || !f.Visible(caller) {
				continue
			}
			out = append(out, f)
		}
		return out, nil
	})
}

// Export returns all visible non-archived facts for the caller's project.
func (s *Store) Export(ctx context.Context, caller domain.Identity) ([]domain.MemoryFact, error) {
	return s.List(ctx, caller, math.MaxInt32, 0, "", "")
}

// Purge deletes all facts for the active project, atomically, when confirm is
// true (spec §4.2).
func (s *Store) Purge(ctx context.Context, caller domain.Identity, confirm bool) (int, error) {
	if !confirm {
		return 0, domain.Invalid("purge requires confirm=true")
	}
	return storage.Interact(ctx, s.pool, func(conn *sql.Conn) (int, error) {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return 0, domain.DbErr(err)
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM memory_fact_vectors WHERE fact_id IN
				(SELECT id FROM memory_facts WHERE project_id = ?)`, caller.ProjectID); err != nil {
			return 0, domain.DbErr(err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM memory_facts WHERE project_id = ?`, caller.ProjectID)
		if err != nil {
			return 0, domain.DbErr(err)
		}
		n, _ := res.RowsAffected()
		if err := deleteOrphanEntities(ctx, tx); err != nil {
			return 0, domain.DbErr(err)
		}
		if err := tx.Commit(); err != nil {
			return 0, domain.DbErr(err)
		}
		return int(n), nil
	})
}

// ListEntities returns entities joined by link count, filtered by an
// optionally-empty LIKE pattern with SQL wildcard escaping.
func (s *Store) ListEntities(ctx context.Context, query string, limit int) ([]domain.MemoryEntity, error) {
	return storage.Interact(ctx, s.pool, func(conn *sql.Conn) ([]domain.MemoryEntity, error) {
		pattern := "%" + escapeLike(query) + "%"
		rows, err := conn.QueryContext(ctx, `
			SELECT e.id, e.name, COUNT(l.fact_id) AS links
			FROM memory_entities e
			JOIN memory_fact_entities l ON l.entity_id = e.id
			WHERE e.name LIKE ? ESCAPE '\'
			GROUP BY e.id, e.name
			ORDER BY links DESC
			LIMIT ?`, pattern, limit)
		if err != nil {
			return nil, domain.DbErr(err)
		}
		defer rows.Close()

		var out []domain.MemoryEntity
		for rows.Next() {
			var e domain.MemoryEntity
			var links int
			if err := rows.Scan(&e.ID, &e.Name, &links); err != nil {
				return nil, domain.DbErr(err)
			}
			out = append(out, e)
		}
		return out, nil
	})
}

// RecordAccess bumps session_count when accessed from a new session, used
// by the recall engine's fire-and-forget access recording (spec §4.3).
func (s *Store) RecordAccess(ctx context.Context, id int64, sessionID string) {
	_, err := storage.Interact(ctx, s.pool, func(conn *sql.Conn) (struct{}, error) {
		var lastSession, status string
		var sessionCount int
		var confidence float64
		row := conn.QueryRowContext(ctx, `SELECT last_session_id, session_count, status, confidence FROM memory_facts WHERE id=?`, id)
		if err := row.Scan(&lastSession, &sessionCount, &status, &confidence); err != nil {
			return struct{}{}, err
		}
		if sessionID == "" || sessionID == lastSession {
			return struct{}{}, nil
		}
		sessionCount++
		if sessionCount >= 3 && status == string(domain.StatusCandidate) {
			status = string(domain.StatusConfirmed)
			confidence = math.Min(1.0, confidence+0.2)
		}
		_, err := conn.ExecContext(ctx, `
			UPDATE memory_facts SET session_count=?, last_session_id=?, status=?, confidence=?, updated_at=?
			WHERE id=?`, sessionCount, sessionID, status, confidence, time.Now().UTC(), id)
		return struct{}{}, err
	})
	if err != nil {
		obslog.FromContext(ctx).Warn().Err(err).Int64("fact_id", id).Msg("record_access_failed")
	}
}

func loadFact(ctx context.Context, conn *sql.Conn, id int64) (domain.MemoryFact, error) {
	row := conn.QueryRowContext(ctx, `
		SELECT id, content, key, fact_type, category, confidence, status, suspicious,
			scope, project_id, user_id, team_id, session_count, first_session_id,
			last_session_id, branch, created_at, updated_at
		FROM memory_facts WHERE id=?`, id)
	f, err := scanFact(row)
	if err == sql.ErrNoRows {
		return domain.MemoryFact{}, domain.Invalid("fact %d not found", id)
	}
	if err != nil {
		return domain.MemoryFact{}, domain.DbErr(err)
	}
	return f, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFact(row scanner) (domain.MemoryFact, error) {
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
	f.Key = key.String
	f.Category = category.String
	f.Status = domain.FactStatus(status)
	f.Suspicious = suspicious != 0
	f.Scope = domain.Scope(scope)
	f.ProjectID = projectID.String
	f.UserID = userID.String
	f.TeamID = teamID.String
	f.FirstSessionID = firstSession.String
	f.LastSessionID = lastSession.String
	return f, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func escapeLike(s string) string {
	r := make([]rune, 0, len(s))
	for _, c := range s {
		switch c {
		case '\\', '%', '_':
			r = append(r, '\\', c)
		default:
			r = append(r, c)
		}
	}
	return string(r)
}
