// Package memory is an in-process kv.Store used for tests and single-node
// development. Records are kept in their encoded form so behaviour matches
// the persistent drivers.
package memory

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/kosync/internal/server/kv"
)

type Store struct {
	mu          sync.RWMutex
	data        map[string][]byte
	initialized bool
}

func New() *Store {
	return &Store{}
}

func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = make(map[string][]byte)
	}
	s.initialized = true
	return nil
}

func (s *Store) Get(ctx context.Context, key kv.Key, dst any) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return false, kv.ErrNotInitialized
	}
	raw, ok := s.data[key.String()]
	if !ok {
		return false, nil
	}
	if err := kv.Decode(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Set(ctx context.Context, key kv.Key, value any) error {
	b, err := kv.Encode(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return kv.ErrNotInitialized
	}
	s.data[key.String()] = b
	return nil
}

func (s *Store) Create(ctx context.Context, key kv.Key, value any) error {
	b, err := kv.Encode(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return kv.ErrNotInitialized
	}
	k := key.String()
	if _, ok := s.data[k]; ok {
		return kv.ErrKeyExists
	}
	s.data[k] = b
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return kv.ErrNotInitialized
	}
	return nil
}

// Close drops all records.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = nil
	s.initialized = false
	return nil
}
