// Package migrations embeds the goose migrations for the SQL-backed kv drivers.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed postgres/*.sql sqlite/*.sql
var Migrations embed.FS

// Dialect selects both the goose dialect and the migration directory.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// goose keeps its base FS and dialect in package globals.
var mu sync.Mutex

func (d Dialect) gooseDialect() (string, error) {
	switch d {
	case Postgres:
		return "pgx", nil
	case SQLite:
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("unknown migration dialect %q", string(d))
	}
}

// Up applies every pending migration for the dialect. Running it against an
// already migrated database is a no-op.
func Up(ctx context.Context, db *sql.DB, d Dialect) error {
	dialect, err := d.gooseDialect()
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	goose.SetBaseFS(Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, string(d)); err != nil {
		return fmt.Errorf("migrations %s: %w", d, err)
	}
	return nil
}
