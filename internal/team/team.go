// Package team implements the team tool's surface (spec §6): team
// create/get and membership add/remove/list against the main database's
// teams/team_members tables. Grounded on internal/project.Store's
// get-or-create shape.
package team

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"mira/internal/domain"
	"mira/internal/storage"
)

type Store struct {
	pool *storage.Pool
}

func NewStore(pool *storage.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Create(ctx context.Context, name string) (domain.Team, error) {
	if name == "" {
		return domain.Team{}, domain.Invalid("team name is required")
	}
	id := uuid.NewString()
	_, err := storage.Interact(ctx, s.pool, func(conn *sql.Conn) (struct{}, error) {
		_, err := conn.ExecContext(ctx, `INSERT INTO teams (id, name) VALUES (?, ?)`, id, name)
		return struct{}{}, err
	})
	if err != nil {
		return domain.Team{}, domain.DbErr(err)
	}
	return domain.Team{ID: id, Name: name}, nil
}

func (s *Store) Get(ctx context.Context, id string) (domain.Team, error) {
	return storage.Interact(ctx, s.pool, func(conn *sql.Conn) (domain.Team, error) {
		var t domain.Team
		row := conn.QueryRowContext(ctx, `SELECT id, name FROM teams WHERE id = ?`, id)
		if err := row.Scan(&t.ID, &t.Name); err != nil {
			return domain.Team{}, domain.DbErr(err)
		}
		members, err := membersFor(ctx, conn, id)
		if err != nil {
			return domain.Team{}, err
		}
		t.Members = members
		return t, nil
	})
}

func membersFor(ctx context.Context, conn *sql.Conn, teamID string) ([]string, error) {
	rows, err := conn.QueryContext(ctx, `SELECT user_id FROM team_members WHERE team_id = ? ORDER BY user_id`, teamID)
	if err != nil {
		return nil, domain.DbErr(err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, domain.DbErr(err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) AddMember(ctx context.Context, teamID, userID string) error {
	_, err := storage.Interact(ctx, s.pool, func(conn *sql.Conn) (struct{}, error) {
		_, err := conn.ExecContext(ctx, `INSERT OR IGNORE INTO team_members (team_id, user_id) VALUES (?, ?)`, teamID, userID)
		return struct{}{}, err
	})
	if err != nil {
		return domain.DbErr(err)
	}
	return nil
}

func (s *Store) RemoveMember(ctx context.Context, teamID, userID string) error {
	_, err := storage.Interact(ctx, s.pool, func(conn *sql.Conn) (struct{}, error) {
		_, err := conn.ExecContext(ctx, `DELETE FROM team_members WHERE team_id = ? AND user_id = ?`, teamID, userID)
		return struct{}{}, err
	})
	if err != nil {
		return domain.DbErr(err)
	}
	return nil
}

// MembersOf returns the ids of the teams userID belongs to.
func (s *Store) MembersOf(ctx context.Context, userID string) ([]string, error) {
	return storage.Interact(ctx, s.pool, func(conn *sql.Conn) ([]string, error) {
		rows, err := conn.QueryContext(ctx, `SELECT team_id FROM team_members WHERE user_id = ?`, userID)
		if err != nil {
			return nil, domain.DbErr(err)
		}
		defer rows.Close()
		var out []string
		for rows.Next() {
			var t string
			if err := rows.Scan(&t); err != nil {
				return nil, domain.DbErr(err)
			}
			out = append(out, t)
		}
		return out, rows.Err()
	})
}
