package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/dmitrijs2005/kosync/internal/common"
	"github.com/hashicorp/go-retryablehttp"
)

// Server error codes the client reacts to.
const (
	codeUnauthorized    = 2001
	codeUserExists      = 2002
	codeInvalidFields   = 2003
	codeDocumentMissing = 2004
)

type HTTPClient struct {
	base   *url.URL
	client *retryablehttp.Client

	mu   sync.RWMutex
	user string
	key  string
}

// NewHTTPClient prepares a client for the server at serverURL. Transport
// failures and 5xx answers other than the server's own error payloads are
// retried up to retryMax times.
func NewHTTPClient(serverURL string, timeout time.Duration, retryMax int) (*HTTPClient, error) {
	base, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", serverURL)
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = retryMax
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil
	rc.CheckRetry = checkRetry
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &HTTPClient{base: base, client: rc}, nil
}

// checkRetry leaves the server's 502 error payloads alone; they are
// answers, not outages.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp != nil && resp.StatusCode == http.StatusBadGateway &&
		resp.Header.Get("Content-Type") == "application/json" {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func (c *HTTPClient) Close() error {
	c.client.HTTPClient.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) credentials() (string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user, c.key
}

func (c *HTTPClient) Register(ctx context.Context, username, key string) error {
	body := map[string]string{"username": username, "password": key}
	return c.do(ctx, http.MethodPost, "/users/create", "", "", body, nil)
}

// Login checks the credentials with the server and keeps them for later calls.
func (c *HTTPClient) Login(ctx context.Context, username, key string) error {
	if err := c.do(ctx, http.MethodGet, "/users/auth", username, key, nil, nil); err != nil {
		return err
	}

	c.mu.Lock()
	c.user, c.key = username, key
	c.mu.Unlock()
	return nil
}

func (c *HTTPClient) Logout() {
	c.mu.Lock()
	c.user, c.key = "", ""
	c.mu.Unlock()
}

func (c *HTTPClient) Push(ctx context.Context, p Progress) (PushResult, error) {
	user, key := c.credentials()
	if user == "" {
		return PushResult{}, ErrNotLoggedIn
	}

	var res PushResult
	if err := c.do(ctx, http.MethodPut, "/syncs/progress", user, key, p, &res); err != nil {
		return PushResult{}, err
	}
	return res, nil
}

func (c *HTTPClient) Pull(ctx context.Context, document string) (Progress, error) {
	user, key := c.credentials()
	if user == "" {
		return Progress{}, ErrNotLoggedIn
	}

	var p Progress
	if err := c.do(ctx, http.MethodGet, "/syncs/progress/"+url.PathEscape(document), user, key, nil, &p); err != nil {
		return Progress{}, err
	}
	return p, nil
}

// Ping calls the server's HTTP healthcheck.
func (c *HTTPClient) Ping(ctx context.Context) error {
	var res struct {
		State string `json:"state"`
	}
	if err := c.do(ctx, http.MethodGet, "/healthcheck", "", "", nil, &res); err != nil {
		return err
	}
	if res.State != "OK" {
		return fmt.Errorf("%w: state %q", ErrUnavailable, res.State)
	}
	return nil
}

func (c *HTTPClient) endpoint(path string) string {
	return c.base.JoinPath(common.APIBasePath).String() + path
}

func (c *HTTPClient) do(ctx context.Context, method, path, user, key string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(common.AuthUserHeaderName, user)
		req.Header.Set(common.AuthKeyHeaderName, key)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return mapError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func mapError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Code == 0 {
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
		}
		apiErr.Message = http.StatusText(resp.StatusCode)
		return apiErr
	}

	switch apiErr.Code {
	case codeUnauthorized:
		return ErrUnauthorized
	case codeUserExists:
		return ErrUserExists
	case codeInvalidFields, codeDocumentMissing:
		return fmt.Errorf("%w: %s", ErrInvalidFields, apiErr.Message)
	default:
		return apiErr
	}
}
