// Package bbolt is the embedded kv.Store backed by a single bbolt file.
// All records live in one bucket keyed by the joined storage key.
package bbolt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/dmitrijs2005/kosync/internal/filex"
	"github.com/dmitrijs2005/kosync/internal/server/kv"
)

const lockTimeout = 5 * time.Second

var bucketName = []byte("kv")

type Store struct {
	path string

	mu sync.RWMutex
	db *bolt.DB
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	path, err := filex.EnsureParentDir(s.path)
	if err != nil {
		return kv.Unavailable("bbolt init", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: lockTimeout})
	if err != nil {
		return kv.Unavailable(fmt.Sprintf("bbolt open %s", path), err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		_ = db.Close()
		return kv.Unavailable("bbolt ensure bucket", err)
	}

	s.db = db
	return nil
}

func (s *Store) handle() (*bolt.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, kv.ErrNotInitialized
	}
	return s.db, nil
}

func (s *Store) Get(ctx context.Context, key kv.Key, dst any) (bool, error) {
	db, err := s.handle()
	if err != nil {
		return false, err
	}

	var raw []byte
	err = db.View(func(tx *bolt.Tx) error {
		// the slice is only valid inside the transaction
		if v := tx.Bucket(bucketName).Get([]byte(key.String())); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return false, kv.Unavailable(fmt.Sprintf("bbolt get[%s]", key), err)
	}
	if raw == nil {
		return false, nil
	}
	if err := kv.Decode(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Set(ctx context.Context, key kv.Key, value any) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	b, err := kv.Encode(value)
	if err != nil {
		return err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key.String()), b)
	}); err != nil {
		return kv.Unavailable(fmt.Sprintf("bbolt set[%s]", key), err)
	}
	return nil
}

// Create relies on bbolt allowing a single read-write transaction at a time.
func (s *Store) Create(ctx context.Context, key kv.Key, value any) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	b, err := kv.Encode(value)
	if err != nil {
		return err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		k := []byte(key.String())
		if bucket.Get(k) != nil {
			return kv.ErrKeyExists
		}
		return bucket.Put(k, b)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, kv.ErrKeyExists):
		return err
	default:
		return kv.Unavailable(fmt.Sprintf("bbolt create[%s]", key), err)
	}
}

func (s *Store) Ping(ctx context.Context) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	if err := db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketName) == nil {
			return fmt.Errorf("bucket %q missing", bucketName)
		}
		return nil
	}); err != nil {
		return kv.Unavailable("bbolt ping", err)
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
