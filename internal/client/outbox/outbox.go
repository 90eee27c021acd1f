// Package outbox keeps progress pushes made while the server was unreachable
// in a local SQLite file until they can be delivered. Only the latest push
// per user and document is kept.
package outbox

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/dmitrijs2005/kosync/internal/client/client"
	"github.com/dmitrijs2005/kosync/internal/dbx"
	"github.com/dmitrijs2005/kosync/internal/filex"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Repository interface {
	Put(ctx context.Context, user string, p client.Progress) error
	List(ctx context.Context, user string) ([]client.Progress, error)
	Delete(ctx context.Context, user, document string) error
	Close() error
}

type SQLiteRepository struct {
	db  *sql.DB
	q   dbx.DBTX
	now func() time.Time
}

// Open opens (creating if needed) the outbox database at path and applies
// its migrations.
func Open(ctx context.Context, path string) (*SQLiteRepository, error) {
	if !filex.IsMemoryPath(path) {
		abs, err := filex.EnsureParentDir(path)
		if err != nil {
			return nil, err
		}
		path = abs
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteRepository{db: db, q: db, now: time.Now}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("outbox migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("outbox migrations: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Put(ctx context.Context, user string, p client.Progress) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO pending_pushes (username, document, percentage, progress, device, device_id, queued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(username, document) DO UPDATE SET
			percentage = excluded.percentage,
			progress   = excluded.progress,
			device     = excluded.device,
			device_id  = excluded.device_id,
			queued_at  = excluded.queued_at
	`, user, p.Document, p.Percentage, p.Progress, p.Device, p.DeviceID, r.now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to queue push[%s]: %w", p.Document, err)
	}
	return nil
}

// List returns the pending pushes of user, oldest first.
func (r *SQLiteRepository) List(ctx context.Context, user string) ([]client.Progress, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT document, percentage, progress, device, device_id
		FROM pending_pushes
		WHERE username = ?
		ORDER BY queued_at, document
	`, user)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending pushes: %w", err)
	}
	defer rows.Close()

	var result []client.Progress
	for rows.Next() {
		var p client.Progress
		if err := rows.Scan(&p.Document, &p.Percentage, &p.Progress, &p.Device, &p.DeviceID); err != nil {
			return nil, fmt.Errorf("failed to scan pending push: %w", err)
		}
		result = append(result, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending pushes: %w", err)
	}

	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, user, document string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM pending_pushes WHERE username = ? AND document = ?`, user, document)
	if err != nil {
		return fmt.Errorf("failed to delete pending push[%s]: %w", document, err)
	}
	return nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
