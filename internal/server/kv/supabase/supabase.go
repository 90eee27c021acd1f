// Package supabase is the kv.Store backed by a Supabase table reached through
// its PostgREST endpoint. The table needs a text primary key column "key" and
// a "value" column (text or jsonb).
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/dmitrijs2005/kosync/internal/server/kv"
)

type Options struct {
	URL   string
	Key   string
	Table string

	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// Logger receives retry diagnostics; nil keeps the client silent.
	Logger retryablehttp.LeveledLogger
}

type row struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Store struct {
	opts Options

	mu       sync.RWMutex
	client   *retryablehttp.Client
	insert   *retryablehttp.Client
	endpoint *url.URL
}

func New(opts Options) *Store {
	if opts.Table == "" {
		opts.Table = "kv_store"
	}
	if opts.RetryMax <= 0 {
		opts.RetryMax = 3
	}
	if opts.RetryWaitMin <= 0 {
		opts.RetryWaitMin = 200 * time.Millisecond
	}
	if opts.RetryWaitMax <= 0 {
		opts.RetryWaitMax = 2 * time.Second
	}
	return &Store{opts: opts}
}

// Init checks credentials and probes the table with a one-row select.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return nil
	}
	if s.opts.URL == "" || s.opts.Key == "" {
		return fmt.Errorf("supabase: %w: URL and key are required", kv.ErrMissingCredentials)
	}

	base, err := url.Parse(strings.TrimRight(s.opts.URL, "/"))
	if err != nil {
		return fmt.Errorf("supabase: invalid URL: %w", err)
	}
	endpoint := base.JoinPath("rest", "v1", s.opts.Table)

	client := s.newClient()

	// Inserts share the transport but are only resent when the connection
	// was never made: a retried POST that had committed would come back 409.
	insert := s.newClient()
	insert.HTTPClient = client.HTTPClient
	insert.CheckRetry = insertCheckRetry

	q := url.Values{}
	q.Set("select", "key")
	q.Set("limit", "1")
	resp, err := s.do(ctx, client, http.MethodGet, endpoint, q, nil, "")
	if err != nil {
		return kv.Unavailable("supabase probe", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return kv.Unavailable("supabase probe", statusError(resp))
	}

	s.client = client
	s.insert = insert
	s.endpoint = endpoint
	return nil
}

func (s *Store) newClient() *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = s.opts.RetryMax
	client.RetryWaitMin = s.opts.RetryWaitMin
	client.RetryWaitMax = s.opts.RetryWaitMax
	client.Logger = nil
	if s.opts.Logger != nil {
		client.Logger = s.opts.Logger
	}
	return client
}

// insertCheckRetry retries dial failures only. Any response, and any error
// after the request may have reached the server, ends the attempt.
func insertCheckRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	var opErr *net.OpError
	if err != nil && errors.As(err, &opErr) && opErr.Op == "dial" {
		return true, nil
	}
	return false, nil
}

func (s *Store) do(ctx context.Context, client *retryablehttp.Client, method string, endpoint *url.URL, q url.Values, body []byte, prefer string) (*http.Response, error) {
	u := *endpoint
	u.RawQuery = q.Encode()

	var reqBody any
	if body != nil {
		reqBody = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to make %s request: %w", method, err)
	}

	req.Header.Set("apikey", s.opts.Key)
	req.Header.Set("Authorization", "Bearer "+s.opts.Key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	return client.Do(req)
}

func (s *Store) handle() (*retryablehttp.Client, *url.URL, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, nil, kv.ErrNotInitialized
	}
	return s.client, s.endpoint, nil
}

func (s *Store) insertHandle() (*retryablehttp.Client, *url.URL, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.insert == nil {
		return nil, nil, kv.ErrNotInitialized
	}
	return s.insert, s.endpoint, nil
}

func (s *Store) Get(ctx context.Context, key kv.Key, dst any) (bool, error) {
	client, endpoint, err := s.handle()
	if err != nil {
		return false, err
	}

	q := url.Values{}
	q.Set("select", "value")
	q.Set("key", "eq."+key.String())
	resp, err := s.do(ctx, client, http.MethodGet, endpoint, q, nil, "")
	if err != nil {
		return false, kv.Unavailable(fmt.Sprintf("supabase get[%s]", key), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, kv.Unavailable(fmt.Sprintf("supabase get[%s]", key), statusError(resp))
	}

	var rows []struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return false, kv.Unavailable(fmt.Sprintf("supabase get[%s]", key), err)
	}
	if len(rows) == 0 || len(rows[0].Value) == 0 || string(rows[0].Value) == "null" {
		return false, nil
	}

	if err := kv.Decode(payload(rows[0].Value), dst); err != nil {
		return false, err
	}
	return true, nil
}

// payload unwraps a text column (a JSON string holding the encoded record);
// jsonb columns arrive as the record itself.
func payload(v json.RawMessage) []byte {
	if bytes.HasPrefix(v, []byte(`"`)) {
		var text string
		if err := json.Unmarshal(v, &text); err == nil {
			return []byte(text)
		}
	}
	return v
}

func (s *Store) write(ctx context.Context, op string, key kv.Key, value any, q url.Values, prefer string) (*http.Response, error) {
	handle := s.handle
	if op == "create" {
		handle = s.insertHandle
	}
	client, endpoint, err := handle()
	if err != nil {
		return nil, err
	}
	b, err := kv.Encode(value)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal([]row{{Key: key.String(), Value: string(b)}})
	if err != nil {
		return nil, err
	}

	resp, err := s.do(ctx, client, http.MethodPost, endpoint, q, body, prefer)
	if err != nil {
		return nil, kv.Unavailable(fmt.Sprintf("supabase %s[%s]", op, key), err)
	}
	return resp, nil
}

// Set posts the row with merge-duplicates resolution, PostgREST's upsert.
func (s *Store) Set(ctx context.Context, key kv.Key, value any) error {
	q := url.Values{}
	q.Set("on_conflict", "key")
	resp, err := s.write(ctx, "set", key, value, q, "resolution=merge-duplicates,return=minimal")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return kv.Unavailable(fmt.Sprintf("supabase set[%s]", key), statusError(resp))
	}
	return nil
}

// Create posts the row without conflict resolution, so the primary key
// rejects duplicates with 409. A failed insert is not resent once the server
// may have seen it.
func (s *Store) Create(ctx context.Context, key kv.Key, value any) error {
	resp, err := s.write(ctx, "create", key, value, url.Values{}, "return=minimal")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		return kv.ErrKeyExists
	case resp.StatusCode/100 != 2:
		return kv.Unavailable(fmt.Sprintf("supabase create[%s]", key), statusError(resp))
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	client, endpoint, err := s.handle()
	if err != nil {
		return err
	}
	q := url.Values{}
	q.Set("select", "key")
	q.Set("limit", "1")
	resp, err := s.do(ctx, client, http.MethodGet, endpoint, q, nil, "")
	if err != nil {
		return kv.Unavailable("supabase ping", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return kv.Unavailable("supabase ping", statusError(resp))
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client.HTTPClient.CloseIdleConnections()
	}
	s.client = nil
	s.insert = nil
	s.endpoint = nil
	return nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("unexpected HTTP response code %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
