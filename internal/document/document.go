// Package document implements the document tool's surface (spec §6):
// list/search/get/ingest/delete against the main database's documents table
// and its sqlite-vec sidecar. Grounded on internal/correction's embed-on-
// write shape, which is itself grounded on internal/memory's upsert pattern.
package document

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

// Document is a stored title/content pair.
type Document struct {
	ID        int64
	ProjectID string
	Title     string
	Content   string
	CreatedAt time.Time
}

type Store struct {
	pool     *storage.Pool
	embedder llm.Embedder
}

func NewStore(pool *storage.Pool, embedder llm.Embedder) *Store {
	return &Store{pool: pool, embedder: embedder}
}

// Ingest stores a document and, when an embedder is attached, its vector
// sidecar (spec §6's domain-stack note: documentation.rs is the grounding
// for this action set).
func (s *Store) Ingest(ctx context.Context, projectID, title, content string) (Document, error) {
	if title == "" || content == "" {
		return Document{}, domain.Invalid("document ingest requires both title and content")
	}
	now := time.Now().UTC()

	d, err := storage.Interact(ctx, s.pool, func(conn *sql.Conn) (Document, error) {
		res, err := conn.ExecContext(ctx, `INSERT INTO documents (project_id, title, content, created_at) VALUES (?, ?, ?, ?)`,
			projectID, title, content, now)
		if err != nil {
			return Document{}, domain.DbErr(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return Document{}, domain.DbErr(err)
		}
		return Document{ID: id, ProjectID: projectID, Title: title, Content: content, CreatedAt: now}, nil
	})
	if err != nil {
		return Document{}, err
	}

	if s.embedder != nil {
		if err := s.upsertEmbedding(ctx, d.ID, title+"\n"+content); err != nil {
			obslog.FromContext(ctx).Warn().Err(err).Msg("document_embedding_failed")
		}
	}
	return d, nil
}

func (s *Store) upsertEmbedding(ctx context.Context, documentID int64, text string) error {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}
	_, err = storage.Interact(ctx, s.pool, func(conn *sql.Conn) (struct{}, error) {
		_, err := conn.ExecContext(ctx, `DELETE FROM document_vectors WHERE document_id = ?`, documentID)
		if err != nil {
			return struct{}{}, err
		}
		_, err = conn.ExecContext(ctx, `INSERT INTO document_vectors (document_id, embedding) VALUES (?, ?)`,
			documentID, encodeVector(vec))
		return struct{}{}, err
	})
	return err
}

func (s *Store) Get(ctx context.Context, id int64) (Document, error) {
	return storage.Interact(ctx, s.pool, func(conn *sql.Conn) (Document, error) {
		return scanOne(conn.QueryRowContext(ctx, `SELECT id, project_id, title, content, created_at FROM documents WHERE id = ?`, id))
	})
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	_, err := storage.Interact(ctx, s.pool, func(conn *sql.Conn) (struct{}, error) {
		if _, err := conn.ExecContext(ctx, `DELETE FROM document_vectors WHERE document_id = ?`, id); err != nil {
			return struct{}{}, err
		}
		_, err := conn.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
		return struct{}{}, err
	})
	if err != nil {
		return domain.DbErr(err)
	}
	return nil
}

// List returns documents for a project, most recent first.
func (s *Store) List(ctx context.Context, projectID string, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 20
	}
	return storage.Interact(ctx, s.pool, func(conn *sql.Conn) ([]Document, error) {
		rows, err := conn.QueryContext(ctx, `
			SELECT id, project_id, title, content, created_at FROM documents
			WHERE project_id = ? ORDER BY created_at DESC LIMIT ?`, projectID, limit)
		if err != nil {
			return nil, domain.DbErr(err)
		}
		defer rows.Close()
		var out []Document
		for rows.Next() {
			d, err := scanOne(rows)
			if err != nil {
				return nil, err
			}
			out = append(out, d)
		}
		return out, rows.Err()
	})
}

// Search ranks documents by semantic similarity to query, falling back to a
// substring match when no embedder is attached.
func (s *Store) Search(ctx context.Context, projectID, query string, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 5
	}
	if s.embedder == nil {
		return s.keywordSearch(ctx, projectID, query, limit)
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		obslog.FromContext(ctx).Warn().Err(err).Msg("document_search_embed_failed")
		return s.keywordSearch(ctx, projectID, query, limit)
	}
	blob := encodeVector(vec)

	return storage.Interact(ctx, s.pool, func(conn *sql.Conn) ([]Document, error) {
		rows, err := conn.QueryContext(ctx, `
			SELECT d.id, d.project_id, d.title, d.content, d.created_at
			FROM document_vectors v
			JOIN documents d ON d.id = v.document_id
			WHERE v.embedding MATCH ? AND k = ? AND d.project_id = ?
			ORDER BY v.distance`, blob, limit, projectID)
		if err != nil {
			return nil, domain.DbErr(err)
		}
		defer rows.Close()
		var out []Document
		for rows.Next() {
			d, err := scanOne(rows)
			if err != nil {
				return nil, err
			}
			out = append(out, d)
		}
		return out, rows.Err()
	})
}

func (s *Store) keywordSearch(ctx context.Context, projectID, query string, limit int) ([]Document, error) {
	return storage.Interact(ctx, s.pool, func(conn *sql.Conn) ([]Document, error) {
		rows, err := conn.QueryContext(ctx, `
			SELECT id, project_id, title, content, created_at FROM documents
			WHERE project_id = ? AND (title LIKE ? OR content LIKE ?)
			ORDER BY created_at DESC LIMIT ?`, projectID, "%"+query+"%", "%"+query+"%", limit)
		if err != nil {
			return nil, domain.DbErr(err)
		}
		defer rows.Close()
		var out []Document
		for rows.Next() {
			d, err := scanOne(rows)
			if err != nil {
				return nil, err
			}
			out = append(out, d)
		}
		return out, rows.Err()
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOne(row scanner) (Document, error) {
	var d Document
	var projectID sql.NullString
	if err := row.Scan(&d.ID, &projectID, &d.Title, &d.Content, &d.CreatedAt); err != nil {
		return Document{}, domain.DbErr(err)
	}
	d.ProjectID = projectID.String
	return d, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
