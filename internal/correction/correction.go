// Package correction implements the correction tool's surface (spec §6,
// §3.1): record/get/list a what-was-wrong -> what-is-right pair, and
// validate a proposed action against prior corrections via semantic search.
// Grounded on internal/memory.Store's embedding-sidecar upsert (an optional
// Embedder degrades to plain storage, never an error) and on
// internal/recall's vec0 MATCH query shape.
package correction

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"time"

	"mira/internal/domain"
	"mira/internal/llm"
	"mira/internal/obslog"
	"mira/internal/storage"
)

type Store struct {
	pool     *storage.Pool
	embedder llm.Embedder
}

func NewStore(pool *storage.Pool, embedder llm.Embedder) *Store {
	return &Store{pool: pool, embedder: embedder}
}

func (s *Store) Record(ctx context.Context, projectID string, scope domain.Scope, whatWasWrong, whatIsRight string) (domain.Correction, error) {
	if whatWasWrong == "" || whatIsRight == "" {
		return domain.Correction{}, domain.Invalid("correction requires both what_was_wrong and what_is_right")
	}
	if scope == "" {
		scope = domain.ScopeProject
	}
	now := time.Now().UTC()

	c, err := storage.Interact(ctx, s.pool, func(conn *sql.Conn) (domain.Correction, error) {
		res, err := conn.ExecContext(ctx, `
			INSERT INTO corrections (project_id, what_was_wrong, what_is_right, scope, created_at)
			VALUES (?, ?, ?, ?, ?)`, projectID, whatWasWrong, whatIsRight, scope, now)
		if err != nil {
			return domain.Correction{}, domain.DbErr(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return domain.Correction{}, domain.DbErr(err)
		}
		return domain.Correction{ID: id, WhatWasWrong: whatWasWrong, WhatIsRight: whatIsRight, Scope: scope, CreatedAt: now}, nil
	})
	if err != nil {
		return domain.Correction{}, err
	}

	if s.embedder != nil {
		if err := s.upsertEmbedding(ctx, c.ID, whatWasWrong+" "+whatIsRight); err != nil {
			obslog.FromContext(ctx).Warn().Err(err).Msg("correction_embedding_failed")
		}
	}
	return c, nil
}

func (s *Store) upsertEmbedding(ctx context.Context, correctionID int64, text string) error {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}
	_, err = storage.Interact(ctx, s.pool, func(conn *sql.Conn) (struct{}, error) {
		_, err := conn.ExecContext(ctx, `DELETE FROM correction_vectors WHERE correction_id = ?`, correctionID)
		if err != nil {
			return struct{}{}, err
		}
		_, err = conn.ExecContext(ctx, `INSERT INTO correction_vectors (correction_id, embedding) VALUES (?, ?)`,
			correctionID, encodeVector(vec))
		return struct{}{}, err
	})
	return err
}

func (s *Store) Get(ctx context.Context, id int64) (domain.Correction, error) {
	return storage.Interact(ctx, s.pool, func(conn *sql.Conn) (domain.Correction, error) {
		return scanOne(conn.QueryRowContext(ctx, `SELECT id, what_was_wrong, what_is_right, scope, created_at FROM corrections WHERE id = ?`, id))
	})
}

func (s *Store) List(ctx context.Context, projectID string, limit int) ([]domain.Correction, error) {
	if limit <= 0 {
		limit = 20
	}
	return storage.Interact(ctx, s.pool, func(conn *sql.Conn) ([]domain.Correction, error) {
		rows, err := conn.QueryContext(ctx, `
			SELECT id, what_was_wrong, what_is_right, scope, created_at FROM corrections
			WHERE project_id = ? ORDER BY created_at DESC LIMIT ?`, projectID, limit)
		if err != nil {
			return nil, domain.DbErr(err)
		}
		defer rows.Close()
		var out []domain.Correction
		for rows.Next() {
			c, err := scanOne(rows)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
		return out, rows.Err()
	})
}

// Validate finds prior corrections semantically close to a proposed action,
// letting a caller check "has this mistake been made (and fixed) before?"
// Falls back to recency order when no embedder is attached.
func (s *Store) Validate(ctx context.Context, projectID, proposedAction string, limit int) ([]domain.Correction, error) {
	if limit <= 0 {
		limit = 5
	}
	if s.embedder == nil {
		return s.List(ctx, projectID, limit)
	}
	vec, err := s.embedder.Embed(ctx, proposedAction)
	if err != nil {
		obslog.FromContext(ctx).Warn().Err(err).Msg("correction_validate_embed_failed")
		return s.List(ctx, projectID, limit)
	}
	blob := encodeVector(vec)

	return storage.Interact(ctx, s.pool, func(conn *sql.Conn) ([]domain.Correction, error) {
		rows, err := conn.QueryContext(ctx, `
			SELECT c.id, c.what_was_wrong, c.what_is_right, c.scope, c.created_at
			FROM correction_vectors v
			JOIN corrections c ON c.id = v.correction_id
			WHERE v.embedding MATCH ? AND k = ? AND c.project_id = ?
			ORDER BY v.distance`, blob, limit, projectID)
		if err != nil {
			return nil, domain.DbErr(err)
		}
		defer rows.Close()
		var out []domain.Correction
		for rows.Next() {
			c, err := scanOne(rows)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
		return out, rows.Err()
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOne(row scanner) (domain.Correction, error) {
	var c domain.Correction
	var scope string
	if err := row.Scan(&c.ID, &c.WhatWasWrong, &c.WhatIsRight, &scope, &c.CreatedAt); err != nil {
		return domain.Correction{}, domain.DbErr(err)
	}
	c.Scope = domain.Scope(scope)
	return c, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
