// Package build implements the build tool's surface (spec §6): recording
// build runs, hashed/deduped build errors with occurrence counting, and
// resolution marking. Grounded on the teacher's
// internal/rag/ingest/preprocess.go content-hash convention
// (crypto/sha256), applied here to error identity instead of chunk identity.
package build

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"time"

	"mira/internal/domain"
	"mira/internal/storage"
)

type Store struct {
	pool *storage.Pool
}

func NewStore(pool *storage.Pool) *Store {
	return &Store{pool: pool}
}

// RecordRun logs one build/test invocation outcome.
func (s *Store) RecordRun(ctx context.Context, projectID string, success bool) error {
	_, err := storage.Interact(ctx, s.pool, func(conn *sql.Conn) (struct{}, error) {
		_, err := conn.ExecContext(ctx, `INSERT INTO build_runs (project_id, success, timestamp) VALUES (?, ?, ?)`,
			projectID, boolToInt(success), time.Now().UTC())
		return struct{}{}, err
	})
	if err != nil {
		return domain.DbErr(err)
	}
	return nil
}

// ErrorInput is one observed compiler/test failure.
type ErrorInput struct {
	ProjectID string
	Category  string
	Severity  string
	File      string
	Line      int
	Message   string
}

// hashFor derives a stable identity for an error from its project/category/
// file/message, ignoring line number so small formatting shifts don't fragment
// occurrence counts across otherwise-identical failures.
func hashFor(in ErrorInput) string {
	sum := sha256.Sum256([]byte(in.ProjectID + "|" + in.Category + "|" + in.File + "|" + in.Message))
	return hex.EncodeToString(sum[:])
}

// RecordError upserts by hash: a first sighting inserts a row, a repeat
// bumps occurrences and last_seen.
func (s *Store) RecordError(ctx context.Context, in ErrorInput) (domain.BuildError, error) {
	hash := hashFor(in)
	now := time.Now().UTC()
	if in.Severity == "" {
		in.Severity = "error"
	}

	return storage.Interact(ctx, s.pool, func(conn *sql.Conn) (domain.BuildError, error) {
		var id int64
		var occurrences int
		row := conn.QueryRowContext(ctx, `SELECT id, occurrences FROM build_errors WHERE hash = ? AND project_id = ?`, hash, in.ProjectID)
		err := row.Scan(&id, &occurrences)
		switch {
		case err == sql.ErrNoRows:
			res, insErr := conn.ExecContext(ctx, `
				INSERT INTO build_errors (project_id, hash, category, severity, file, line, message, occurrences, first_seen, last_seen)
				VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
				in.ProjectID, hash, in.Category, in.Severity, in.File, in.Line, in.Message, now, now)
			if insErr != nil {
				return domain.BuildError{}, domain.DbErr(insErr)
			}
			id, insErr = res.LastInsertId()
			if insErr != nil {
				return domain.BuildError{}, domain.DbErr(insErr)
			}
			occurrences = 1
		case err != nil:
			return domain.BuildError{}, domain.DbErr(err)
		default:
			occurrences++
			if _, updErr := conn.ExecContext(ctx, `UPDATE build_errors SET occurrences = ?, last_seen = ?, resolved_by = NULL WHERE id = ?`,
				occurrences, now, id); updErr != nil {
				return domain.BuildError{}, domain.DbErr(updErr)
			}
		}
		return s.get(ctx, conn, id)
	})
}

// Resolve marks an error resolved by a free-text description (typically a
// commit hash or correction id), read back by the historical-fixes and
// error-resolutions sub-gatherers.
func (s *Store) Resolve(ctx context.Context, id int64, resolvedBy string) error {
	_, err := storage.Interact(ctx, s.pool, func(conn *sql.Conn) (struct{}, error) {
		_, err := conn.ExecContext(ctx, `UPDATE build_errors SET resolved_by = ? WHERE id = ?`, resolvedBy, id)
		return struct{}{}, err
	})
	if err != nil {
		return domain.DbErr(err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id int64) (domain.BuildError, error) {
	return storage.Interact(ctx, s.pool, func(conn *sql.Conn) (domain.BuildError, error) {
		return s.get(ctx, conn, id)
	})
}

func (s *Store) get(ctx context.Context, conn *sql.Conn, id int64) (domain.BuildError, error) {
	var e domain.BuildError
	var resolvedBy sql.NullString
	row := conn.QueryRowContext(ctx, `
		SELECT id, hash, category, severity, file, line, message, occurrences, resolved_by, first_seen, last_seen
		FROM build_errors WHERE id = ?`, id)
	err := row.Scan(&e.ID, &e.Hash, &e.Category, &e.Severity, &e.File, &e.Line, &e.Message, &e.Occurrences, &resolvedBy, &e.FirstSeen, &e.LastSeen)
	if err != nil {
		return domain.BuildError{}, domain.DbErr(err)
	}
	e.ResolvedBy = resolvedBy.String
	return e, nil
}

// ListUnresolved returns the most recent unresolved errors for a project.
func (s *Store) ListUnresolved(ctx context.Context, projectID string, limit int) ([]domain.BuildError, error) {
	if limit <= 0 {
		limit = 20
	}
	return storage.Interact(ctx, s.pool, func(conn *sql.Conn) ([]domain.BuildError, error) {
		rows, err := conn.QueryContext(ctx, `
			SELECT id, hash, category, severity, file, line, message, occurrences, resolved_by, first_seen, last_seen
			FROM build_errors WHERE project_id = ? AND resolved_by IS NULL
			ORDER BY last_seen DESC LIMIT ?`, projectID, limit)
		if err != nil {
			return nil, domain.DbErr(err)
		}
		defer rows.Close()
		var out []domain.BuildError
		for rows.Next() {
			var e domain.BuildError
			var resolvedBy sql.NullString
			if err := rows.Scan(&e.ID, &e.Hash, &e.Category, &e.Severity, &e.File, &e.Line, &e.Message, &e.Occurrences, &resolvedBy, &e.FirstSeen, &e.LastSeen); err != nil {
				return nil, domain.DbErr(err)
			}
			e.ResolvedBy = resolvedBy.String
			out = append(out, e)
		}
		return out, rows.Err()
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
