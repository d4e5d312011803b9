// Package project tracks source trees as domain.Project rows and holds the
// process-wide active-project pointer every tool call scopes against
// (spec §3.1, §4.1). Grounded on the teacher's storage.Interact connection
// borrowing convention; the get-or-create-by-path shape is new (the teacher
// has no project concept), built in its idiom.
package project

import (
	"context"
	"database/sql"
	"sync"

	"github.com/google/uuid"

	"mira/internal/domain"
	"mira/internal/storage"
)

// Store persists and resolves projects against the main database.
type Store struct {
	pool *storage.Pool

	mu     sync.RWMutex
	active *domain.Project
}

func NewStore(pool *storage.Pool) *Store {
	return &Store{pool: pool}
}

// GetOrCreate resolves path to its domain.Project row, inserting one if this
// is the first time path has been seen. projectType is only used on insert.
func (s *Store) GetOrCreate(ctx context.Context, path, name, projectType string) (domain.Project, error) {
	return storage.Interact(ctx, s.pool, func(conn *sql.Conn) (domain.Project, error) {
		row := conn.QueryRowContext(ctx, `SELECT id, path, name, project_type FROM projects WHERE path = ?`, path)
		var p domain.Project
		err := row.Scan(&p.ID, &p.Path, &p.Name, &p.ProjectType)
		if err == nil {
			return p, nil
		}
		if err != sql.ErrNoRows {
			return domain.Project{}, err
		}

		p = domain.Project{ID: uuid.NewString(), Path: path, Name: name, ProjectType: projectType}
		_, err = conn.ExecContext(ctx,
			`INSERT INTO projects (id, path, name, project_type) VALUES (?, ?, ?, ?)`,
			p.ID, p.Path, p.Name, p.ProjectType)
		if err != nil {
			return domain.Project{}, err
		}
		return p, nil
	})
}

// Get fetches a project by id.
func (s *Store) Get(ctx context.Context, id string) (domain.Project, error) {
	return storage.Interact(ctx, s.pool, func(conn *sql.Conn) (domain.Project, error) {
		row := conn.QueryRowContext(ctx, `SELECT id, path, name, project_type FROM projects WHERE id = ?`, id)
		var p domain.Project
		err := row.Scan(&p.ID, &p.Path, &p.Name, &p.ProjectType)
		return p, err
	})
}

// SetActive records the process-wide active project (callers observe the
// change via Active()). It touches no other cache.
func (s *Store) SetActive(p domain.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	active := p
	s.active = &active
}

// Active returns the current active project, or false if none has been set.
func (s *Store) Active() (domain.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return domain.Project{}, false
	}
	return *s.active, true
}
