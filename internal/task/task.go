// Package task implements the task tool's CRUD surface (spec §6) against the
// main database's tasks table. Grounded on internal/project's
// get-or-create/Interact shape, generalized to a full create/update/list.
package task

import (
	"context"
	"database/sql"

	"mira/internal/domain"
	"mira/internal/storage"
)

type Store struct {
	pool *storage.Pool
}

func NewStore(pool *storage.Pool) *Store {
	return &Store{pool: pool}
}

type CreateInput struct {
	ProjectID string
	Title     string
	Priority  string
	ParentID  int64
	GoalID    int64
}

func (s *Store) Create(ctx context.Context, in CreateInput) (domain.Task, error) {
	if in.Title == "" {
		return domain.Task{}, domain.Invalid("task title is required")
	}
	priority := in.Priority
	if priority == "" {
		priority = "medium"
	}
	return storage.Interact(ctx, s.pool, func(conn *sql.Conn) (domain.Task, error) {
		res, err := conn.ExecContext(ctx, `
			INSERT INTO tasks (project_id, title, status, priority, progress, parent_id, goal_id)
			VALUES (?, ?, 'open', ?, 0, ?, ?)`,
			in.ProjectID, in.Title, priority, nullableID(in.ParentID), nullableID(in.GoalID))
		if err != nil {
			return domain.Task{}, domain.DbErr(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return domain.Task{}, domain.DbErr(err)
		}
		return s.get(ctx, conn, id)
	})
}

// Update applies a partial field set; empty status/priority and a negative
// progress mean "leave unchanged".
func (s *Store) Update(ctx context.Context, id int64, status, priority string, progress float64) (domain.Task, error) {
	return storage.Interact(ctx, s.pool, func(conn *sql.Conn) (domain.Task, error) {
		if status != "" {
			if _, err := conn.ExecContext(ctx, `UPDATE tasks SET status = ? WHERE id = ?`, status, id); err != nil {
				return domain.Task{}, domain.DbErr(err)
			}
		}
		if priority != "" {
			if _, err := conn.ExecContext(ctx, `UPDATE tasks SET priority = ? WHERE id = ?`, priority, id); err != nil {
				return domain.Task{}, domain.DbErr(err)
			}
		}
		if progress >= 0 {
			if _, err := conn.ExecContext(ctx, `UPDATE tasks SET progress = ? WHERE id = ?`, progress, id); err != nil {
				return domain.Task{}, domain.DbErr(err)
			}
		}
		return s.get(ctx, conn, id)
	})
}

func (s *Store) Get(ctx context.Context, id int64) (domain.Task, error) {
	return storage.Interact(ctx, s.pool, func(conn *sql.Conn) (domain.Task, error) {
		return s.get(ctx, conn, id)
	})
}

func (s *Store) get(ctx context.Context, conn *sql.Conn, id int64) (domain.Task, error) {
	var t domain.Task
	var parentID, goalID sql.NullInt64
	row := conn.QueryRowContext(ctx, `SELECT id, title, status, priority, progress, parent_id, goal_id FROM tasks WHERE id = ?`, id)
	err := row.Scan(&t.ID, &t.Title, &t.Status, &t.Priority, &t.Progress, &parentID, &goalID)
	if err != nil {
		return domain.Task{}, domain.DbErr(err)
	}
	t.ParentID, t.GoalID = parentID.Int64, goalID.Int64
	return t, nil
}

// List returns tasks for a project, optionally filtered by status.
func (s *Store) List(ctx context.Context, projectID, status string, limit int) ([]domain.Task, error) {
	if limit <= 0 {
		limit = 50
	}
	return storage.Interact(ctx, s.pool, func(conn *sql.Conn) ([]domain.Task, error) {
		query := `SELECT id, title, status, priority, progress, parent_id, goal_id FROM tasks WHERE project_id = ?`
		args := []any{projectID}
		if status != "" {
			query += ` AND status = ?`
			args = append(args, status)
		}
		query += ` ORDER BY id DESC LIMIT ?`
		args = append(args, limit)

		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, domain.DbErr(err)
		}
		defer rows.Close()

		var out []domain.Task
		for rows.Next() {
			var t domain.Task
			var parentID, goalID sql.NullInt64
			if err := rows.Scan(&t.ID, &t.Title, &t.Status, &t.Priority, &t.Progress, &parentID, &goalID); err != nil {
				return nil, domain.DbErr(err)
			}
			t.ParentID, t.GoalID = parentID.Int64, goalID.Int64
			out = append(out, t)
		}
		return out, rows.Err()
	})
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
