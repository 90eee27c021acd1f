// Package sqlite is the embedded single-file kv.Store backed by
// modernc.org/sqlite. The kv table is created by goose migrations in Init.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/kosync/internal/dbx"
	"github.com/dmitrijs2005/kosync/internal/filex"
	"github.com/dmitrijs2005/kosync/internal/server/kv"
	"github.com/dmitrijs2005/kosync/internal/server/migrations"

	_ "modernc.org/sqlite"
)

const (
	queryGet    = `SELECT value FROM kv WHERE key = ?`
	queryUpsert = `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	queryInsert = `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO NOTHING
	`
)

type Store struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

// New returns a store for the database file at path. ":memory:" is accepted.
func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	path := s.path
	if !filex.IsMemoryPath(path) {
		abs, err := filex.EnsureParentDir(path)
		if err != nil {
			return kv.Unavailable("sqlite init", err)
		}
		path = abs
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return kv.Unavailable("sqlite open", err)
	}
	// One writer at a time; also keeps ":memory:" on a single connection.
	db.SetMaxOpenConns(1)

	if err := migrations.Up(ctx, db, migrations.SQLite); err != nil {
		_ = db.Close()
		return kv.Unavailable("sqlite migrate", err)
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

func (s *Store) Get(ctx context.Context, key kv.Key, dst any) (bool, error) {
	db, err := s.conn()
	if err != nil {
		return false, err
	}

	raw, found, err := dbx.QueryValue(ctx, db, queryGet, key.String())
	if err != nil {
		return false, kv.Unavailable(fmt.Sprintf("sqlite get[%s]", key), err)
	}
	if !found {
		return false, nil
	}
	if err := kv.Decode(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

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
		return kv.Unavailable(fmt.Sprintf("sqlite set[%s]", key), err)
	}
	return nil
}

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
		return kv.Unavailable(fmt.Sprintf("sqlite create[%s]", key), err)
	}
	if n == 0 {
		return kv.ErrKeyExists
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return kv.ErrNotInitialized
	}
	if err := s.db.PingContext(ctx); err != nil {
		return kv.Unavailable("sqlite ping", err)
	}
	return nil
}

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
