package storage

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/main/*.sql
var mainMigrations embed.FS

//go:embed migrations/code/*.sql
var codeMigrations embed.FS

// Migrate applies all pending forward-only migrations for one of the two
// databases ("main" or "code"), recording the applied version in a
// `_migrations` table (spec §4.1). Applying succeeds iff every pending
// migration completes in sequence; a failed migration leaves the database
// marked dirty at that version, and later calls return an error until the
// dirty flag is cleared.
func Migrate(p *Pool, which string) error {
	var fsys embed.FS
	switch which {
	case "main":
		fsys = mainMigrations
	case "code":
		fsys = codeMigrations
	default:
		return fmt.Errorf("unknown database %q", which)
	}

	src, err := iofs.New(fsys, "migrations/"+which)
	if err != nil {
		return fmt.Errorf("load migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(p.DB(), &sqlite3.Config{MigrationsTable: "_migrations"})
	if err != nil {
		return fmt.Errorf("init migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("init migration runner: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
