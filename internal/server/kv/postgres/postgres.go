// Package postgres provides the PostgreSQL-backed kv.Store. Records live in
// the kv_store table (key TEXT primary key, value JSONB) created by goose
// migrations during Init.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dmitrijs2005/kosync/internal/dbx"
	"github.com/dmitrijs2005/kosync/internal/server/kv"
	"github.com/dmitrijs2005/kosync/internal/server/migrations"
)

const (
	queryGet    = `SELECT value FROM kv_store WHERE key = $1`
	queryUpsert = `
		INSERT INTO kv_store (key, value) VALUES ($1, $2::jsonb)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`
	queryInsert = `
		INSERT INTO kv_store (key, value) VALUES ($1, $2::jsonb)
		ON CONFLICT (key) DO NOTHING
	`
)

// Store implements kv.Store over a pgx connection pool.
type Store struct {
	dsn string

	mu sync.RWMutex
	db *sql.DB
}

// New returns a store for the given connection string. Nothing is dialed
// until Init.
func New(dsn string) *Store {
	return &Store{dsn: dsn}
}

// Init opens the pool, pings the server and applies migrations.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}
	if s.dsn == "" {
		return fmt.Errorf("postgres: %w: empty DSN", kv.ErrMissingCredentials)
	}

	db, err := sql.Open("pgx", s.dsn)
	if err != nil {
		return kv.Unavailable("postgres open", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return kv.Unavailable("postgres ping", err)
	}
	if err := migrations.Up(ctx, db, migrations.Postgres); err != nil {
		_ = db.Close()
		return kv.Unavailable("postgres migrate", err)
	}

	s.db = db
	return nil
}

func (s *Store) conn() (dbx.DBTX, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, kv.ErrNotInitialized
	}
	return s.db, nil
}

// Get reads the JSONB value under key into dst.
func (s *Store) Get(ctx context.Context, key kv.Key, dst any) (bool, error) {
	db, err := s.conn()
	if err != nil {
		return false, err
	}

	raw, found, err := dbx.QueryValue(ctx, db, queryGet, key.String())
	if err != nil {
		return false, kv.Unavailable(fmt.Sprintf("postgres get[%s]", key), err)
	}
	if !found {
		return false, nil
	}
	if err := kv.Decode(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

// Set upserts value under key.
func (s *Store) Set(ctx context.Context, key kv.Key, value any) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	b, err := kv.Encode(value)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, queryUpsert, key.String(), string(b)); err != nil {
		return kv.Unavailable(fmt.Sprintf("postgres set[%s]", key), err)
	}
	return nil
}

// Create inserts value only if key is absent. Returns kv.ErrKeyExists when
// no row was inserted.
func (s *Store) Create(ctx context.Context, key kv.Key, value any) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	b, err := kv.Encode(value)
	if err != nil {
		return err
	}

	n, err := dbx.ExecAffected(ctx, db, queryInsert, key.String(), string(b))
	if err != nil {
		return kv.Unavailable(fmt.Sprintf("postgres create[%s]", key), err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return kv.ErrKeyExists
	default:
		return fmt.Errorf("postgres create[%s]: unexpected rows affected: %d", key, n)
	}
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return kv.ErrNotInitialized
	}
	if err := s.db.PingContext(ctx); err != nil {
		return kv.Unavailable("postgres ping", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
