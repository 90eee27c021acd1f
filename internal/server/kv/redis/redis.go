// Package redis is the kv.Store backed by a Redis server. Records are plain
// string keys holding the JSON payload, so the data stays readable with
// redis-cli.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/kosync/internal/server/kv"
)

var ErrFailedToParseRedisConnString = errors.New("failed to parse redis connection string")

// Options configure the connection. URL accepts redis:// and rediss://;
// Username and Password override credentials embedded in the URL.
type Options struct {
	URL           string
	Username      string
	Password      string
	RetryAttempts int
	RetryInterval time.Duration
}

type Store struct {
	opts Options

	mu     sync.RWMutex
	client *goredis.Client
}

func New(opts Options) *Store {
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 3
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = time.Second
	}
	return &Store{opts: opts}
}

// Init parses the URL, applies credentials and pings the server, retrying
// a few times so a server still starting up does not fail the process.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return nil
	}
	if s.opts.URL == "" {
		return fmt.Errorf("redis: %w: empty connection URL", kv.ErrMissingCredentials)
	}

	o, err := goredis.ParseURL(s.opts.URL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToParseRedisConnString, err)
	}
	if s.opts.Username != "" {
		o.Username = s.opts.Username
	}
	if s.opts.Password != "" {
		o.Password = s.opts.Password
	}

	client := goredis.NewClient(o)
	if err := ping(ctx, client, s.opts.RetryAttempts, s.opts.RetryInterval); err != nil {
		_ = client.Close()
		return kv.Unavailable("redis ping", err)
	}

	s.client = client
	return nil
}

func ping(ctx context.Context, client *goredis.Client, attempts int, interval time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = client.Ping(ctx).Err(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return err
}

func (s *Store) handle() (*goredis.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, kv.ErrNotInitialized
	}
	return s.client, nil
}

func (s *Store) Get(ctx context.Context, key kv.Key, dst any) (bool, error) {
	c, err := s.handle()
	if err != nil {
		return false, err
	}

	raw, err := c.Get(ctx, key.String()).Bytes()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, kv.Unavailable(fmt.Sprintf("redis get[%s]", key), err)
	}
	if err := kv.Decode(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Set(ctx context.Context, key kv.Key, value any) error {
	c, err := s.handle()
	if err != nil {
		return err
	}
	b, err := kv.Encode(value)
	if err != nil {
		return err
	}

	if err := c.Set(ctx, key.String(), b, 0).Err(); err != nil {
		return kv.Unavailable(fmt.Sprintf("redis set[%s]", key), err)
	}
	return nil
}

// Create uses SETNX.
func (s *Store) Create(ctx context.Context, key kv.Key, value any) error {
	c, err := s.handle()
	if err != nil {
		return err
	}
	b, err := kv.Encode(value)
	if err != nil {
		return err
	}

	ok, err := c.SetNX(ctx, key.String(), b, 0).Result()
	if err != nil {
		return kv.Unavailable(fmt.Sprintf("redis create[%s]", key), err)
	}
	if !ok {
		return kv.ErrKeyExists
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	c, err := s.handle()
	if err != nil {
		return err
	}
	if err := c.Ping(ctx).Err(); err != nil {
		return kv.Unavailable("redis ping", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}
