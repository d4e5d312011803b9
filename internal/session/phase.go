package session

import (
	"context"
	"database/sql"

	"mira/internal/domain"
	"mira/internal/storage"
)

// Phase transition thresholds: per-session tool-call count and distinct
// tool-name count both gate the Early->Mid->Late progression (spec §4.9's
// "per-session tool-call counts and tool diversity").
const (
	midCallThreshold  = 5
	midToolDiversity  = 3
	lateCallThreshold = 20
	lateToolDiversity = 6
)

// Tick records one tool invocation against a session: bumps the call count,
// tracks distinct tool names, recomputes phase, and returns the (possibly
// unchanged) resulting phase for observers to broadcast (spec §4.9).
func Tick(ctx context.Context, pool *storage.Pool, sessionID, toolName string, distinctTools map[string]bool) (domain.SessionPhase, error) {
	distinctTools[toolName] = true
	diversity := len(distinctTools)

	return storage.Interact(ctx, pool, func(conn *sql.Conn) (domain.SessionPhase, error) {
		var callCount int
		row := conn.QueryRowContext(ctx, `SELECT tool_call_count FROM sessions WHERE id = ?`, sessionID)
		if err := row.Scan(&callCount); err != nil {
			return domain.PhaseEarly, domain.DbErr(err)
		}
		callCount++

		phase := computePhase(callCount, diversity)
		_, err := conn.ExecContext(ctx, `UPDATE sessions SET tool_call_count = ?, phase = ? WHERE id = ?`, callCount, phase, sessionID)
		if err != nil {
			return domain.PhaseEarly, domain.DbErr(err)
		}
		return phase, nil
	})
}

func computePhase(callCount, diversity int) domain.SessionPhase {
	switch {
	case callCount >= lateCallThreshold && diversity >= lateToolDiversity:
		return domain.PhaseLate
	case callCount >= midCallThreshold && diversity >= midToolDiversity:
		return domain.PhaseMid
	default:
		return domain.PhaseEarly
	}
}
