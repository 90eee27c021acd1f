// Package dbx provides tiny DB abstractions shared by the SQL kv drivers:
// a minimal interface (DBTX) implemented by both *sql.DB and *sql.Tx,
// and helpers for the single-value reads and conditional writes they issue.
package dbx

import (
	"context"
	"database/sql"
	"errors"
)

// DBTX is the subset of database/sql used by the drivers.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// QueryValue runs a query selecting one column of at most one row.
// A missing row is reported as found=false with a nil error.
func QueryValue(ctx context.Context, db DBTX, query string, args ...any) ([]byte, bool, error) {
	var value []byte
	err := db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// ExecAffected runs a statement and returns the number of affected rows.
//
// Typical use is an insert-or-fail:
//
//	n, err := dbx.ExecAffected(ctx, db, `INSERT ... ON CONFLICT DO NOTHING`, k, v)
//	if err == nil && n == 0 {
//	    // row already existed
//	}
func ExecAffected(ctx context.Context, db DBTX, query string, args ...any) (int64, error) {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
