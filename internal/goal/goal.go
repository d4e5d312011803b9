// Package goal implements the goal tool's CRUD surface (spec §6) against the
// main database's goals and goal_milestones tables. Grounded on
// internal/task's Store shape, generalized to own a child milestone list.
package goal

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

func (s *Store) Create(ctx context.Context, projectID, title, priority string) (domain.Goal, error) {
	if title == "" {
		return domain.Goal{}, domain.Invalid("goal title is required")
	}
	if priority == "" {
		priority = "medium"
	}
	return storage.Interact(ctx, s.pool, func(conn *sql.Conn) (domain.Goal, error) {
		res, err := conn.ExecContext(ctx, `
			INSERT INTO goals (project_id, title, status, priority, progress) VALUES (?, ?, 'open', ?, 0)`,
			projectID, title, priority)
		if err != nil {
			return domain.Goal{}, domain.DbErr(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return domain.Goal{}, domain.DbErr(err)
		}
		return s.get(ctx, conn, id)
	})
}

func (s *Store) AddMilestone(ctx context.Context, goalID int64, title string) (domain.Milestone, error) {
	if title == "" {
		return domain.Milestone{}, domain.Invalid("milestone title is required")
	}
	return storage.Interact(ctx, s.pool, func(conn *sql.Conn) (domain.Milestone, error) {
		res, err := conn.ExecContext(ctx, `INSERT INTO goal_milestones (goal_id, title, completed) VALUES (?, ?, 0)`, goalID, title)
		if err != nil {
			return domain.Milestone{}, domain.DbErr(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return domain.Milestone{}, domain.DbErr(err)
		}
		return domain.Milestone{ID: id, Title: title}, nil
	})
}

func (s *Store) CompleteMilestone(ctx context.Context, milestoneID int64) error {
	_, err := storage.Interact(ctx, s.pool, func(conn *sql.Conn) (struct{}, error) {
		_, err := conn.ExecContext(ctx, `UPDATE goal_milestones SET completed = 1 WHERE id = ?`, milestoneID)
		return struct{}{}, err
	})
	if err != nil {
		return domain.DbErr(err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, id int64, status, priority string, progress float64) (domain.Goal, error) {
	return storage.Interact(ctx, s.pool, func(conn *sql.Conn) (domain.Goal, error) {
		if status != "" {
			if _, err := conn.ExecContext(ctx, `UPDATE goals SET status = ? WHERE id = ?`, status, id); err != nil {
				return domain.Goal{}, domain.DbErr(err)
			}
		}
		if priority != "" {
			if _, err := conn.ExecContext(ctx, `UPDATE goals SET priority = ? WHERE id = ?`, priority, id); err != nil {
				return domain.Goal{}, domain.DbErr(err)
			}
		}
		if progress >= 0 {
			if _, err := conn.ExecContext(ctx, `UPDATE goals SET progress = ? WHERE id = ?`, progress, id); err != nil {
				return domain.Goal{}, domain.DbErr(err)
			}
		}
		return s.get(ctx, conn, id)
	})
}

func (s *Store) Get(ctx context.Context, id int64) (domain.Goal, error) {
	return storage.Interact(ctx, s.pool, func(conn *sql.Conn) (domain.Goal, error) {
		return s.get(ctx, conn, id)
	})
}

func (s *Store) get(ctx context.Context, conn *sql.Conn, id int64) (domain.Goal, error) {
	var g domain.Goal
	row := conn.QueryRowContext(ctx, `SELECT id, title, status, priority, progress FROM goals WHERE id = ?`, id)
	if err := row.Scan(&g.ID, &g.Title, &g.Status, &g.Priority, &g.Progress); err != nil {
		return domain.Goal{}, domain.DbErr(err)
	}
	milestones, err := milestonesFor(ctx, conn, id)
	if err != nil {
		return domain.Goal{}, err
	}
	g.Milestones = milestones
	return g, nil
}

func milestonesFor(ctx context.Context, conn *sql.Conn, goalID int64) ([]domain.Milestone, error) {
	rows, err := conn.QueryContext(ctx, `SELECT id, title, completed FROM goal_milestones WHERE goal_id = ? ORDER BY id`, goalID)
	if err != nil {
		return nil, domain.DbErr(err)
	}
	defer rows.Close()
	var out []domain.Milestone
	for rows.Next() {
		var m domain.Milestone
		var completed int
		if err := rows.Scan(&m.ID, &m.Title, &completed); err != nil {
			return nil, domain.DbErr(err)
		}
		m.Completed = completed != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

// List returns goals for a project, optionally filtered by status.
func (s *Store) List(ctx context.Context, projectID, status string) ([]domain.Goal, error) {
	return storage.Interact(ctx, s.pool, func(conn *sql.Conn) ([]domain.Goal, error) {
		query := `SELECT id FROM goals WHERE project_id = ?`
		args := []any{projectID}
		if status != "" {
			query += ` AND status = ?`
			args = append(args, status)
		}
		query += ` ORDER BY id DESC`

		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, domain.DbErr(err)
		}
		var ids []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, domain.DbErr(err)
			}
			ids = append(ids, id)
		}
		rows.Close()

		out := make([]domain.Goal, 0, len(ids))
		for _, id := range ids {
			g, err := s.get(ctx, conn, id)
			if err != nil {
				return nil, err
			}
			out = append(out, g)
		}
		return out, nil
	})
}
