// Package storage wraps the two local SQLite+vec databases (spec §4.1) behind
// a single interact(closure) operation, mirroring the teacher's pgxpool-backed
// DatabasePool but generalized to sqlite's single-writer/many-reader model.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"mira/internal/domain"
	"mira/internal/obslog"
)

func init() {
	// Registering the vec0 extension once, globally, mirrors sqlite-vec's own
	// documented integration pattern for mattn/go-sqlite3 (see asg017/sqlite-vec's
	// Go bindings README) and is what the pack's sqlite-vec consumers do.
	sqlite_vec.Auto()
}

// Pool owns one SQLite connection pool (main or code): guaranteed release,
// closed-pool rejection, idle-connection expiry. Single-writer, many-reader
// access comes from SQLite's WAL locking, not from a lock in Pool.
type Pool struct {
	db     *sql.DB
	name   string
	mu     sync.RWMutex
	closed bool
}

// Open opens a SQLite database at path with WAL mode and a busy timeout so
// concurrent readers never block behind the single writer for long. It does
// not migrate; callers run Migrate on the returned pool.
func Open(ctx context.Context, name, path string, idleTimeout time.Duration) (*Pool, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, domain.DbErr(err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, domain.DbErr(err)
	}
	// Up to 8 connections may be open at once. Writers are not serialized in
	// this process: SQLite's WAL locking lets one write at a time, and the
	// busy timeout makes the others wait, while readers proceed concurrently.
	db.SetMaxOpenConns(8)
	db.SetConnMaxIdleTime(idleTimeout)

	p := &Pool{db: db, name: name}
	return p, nil
}

// Close closes the underlying database. New interact calls after Close fail.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return p.db.Close()
}

// Interact borrows a connection, runs fn against it, and guarantees release
// on every exit path (including panics), per spec §4.1's interact<F, R>
// contract. fn should treat conn as exclusively its own for the duration.
func Interact[R any](ctx context.Context, p *Pool, fn func(conn *sql.Conn) (R, error)) (R, error) {
	var zero R
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return zero, domain.Internal("pool "+p.name+" is closed", nil)
	}

	conn, err := p.db.Conn(ctx)
	if err != nil {
		return zero, domain.DbErr(err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			obslog.FromContext(ctx).Warn().Err(cerr).Str("pool", p.name).Msg("release_connection_failed")
		}
	}()

	return fn(conn)
}

// DB exposes the underlying *sql.DB for callers (e.g. the migration runner)
// that need it directly rather than through a scoped interact closure.
func (p *Pool) DB() *sql.DB { return p.db }
