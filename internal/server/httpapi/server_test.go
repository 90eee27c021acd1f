package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/kosync/internal/common"
	"github.com/dmitrijs2005/kosync/internal/logging"
	"github.com/dmitrijs2005/kosync/internal/server/auth"
	"github.com/dmitrijs2005/kosync/internal/server/kv"
	"github.com/dmitrijs2005/kosync/internal/server/kv/memory"
	"github.com/dmitrijs2005/kosync/internal/server/services"
)

// --- helpers ---

func newServer(store kv.Store) *Server {
	return NewServer("127.0.0.1:0", time.Second, logging.Nop{},
		auth.NewAuthorizer(store),
		services.NewUserService(store),
		services.NewProgressService(store),
	)
}

func newTestAPI(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.Init(context.Background()))
	ts := httptest.NewServer(newServer(store).Handler())
	t.Cleanup(ts.Close)
	return ts
}

type response struct {
	status int
	header http.Header
	body   map[string]any
}

func call(t *testing.T, ts *httptest.Server, method, path, user, key string, body any) response {
	t.Helper()

	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, ts.URL+common.APIBasePath+path, rd)
	require.NoError(t, err)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(common.AuthUserHeaderName, user)
	}
	if key != "" {
		req.Header.Set(common.AuthKeyHeaderName, key)
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := response{status: resp.StatusCode, header: resp.Header}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out.body), "body: %s", raw)
	}
	return out
}

func register(t *testing.T, ts *httptest.Server, user, key string) {
	t.Helper()
	res := call(t, ts, http.MethodPost, "/users/create", "", "", map[string]string{"username": user, "password": key})
	require.Equal(t, http.StatusCreated, res.status)
}

func progressBody(doc string, pct float64, progress, device string) map[string]any {
	return map[string]any{"document": doc, "percentage": pct, "progress": progress, "device": device}
}

func errBody(code int, msg string) map[string]any {
	return map[string]any{"code": float64(code), "message": msg}
}

var unauthorized = errBody(2001, "Unauthorized")

// --- tests ---

func TestHealthcheck(t *testing.T) {
	ts := newTestAPI(t)

	res := call(t, ts, http.MethodGet, "/healthcheck", "", "", nil)
	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, map[string]any{"state": "OK"}, res.body)
	assert.NotEmpty(t, res.header.Get(RequestIDHeader))
}

func TestCreateUser(t *testing.T) {
	ts := newTestAPI(t)

	res := call(t, ts, http.MethodPost, "/users/create", "", "", map[string]string{"username": "new-user", "password": "passwd123"})
	assert.Equal(t, http.StatusCreated, res.status)
	assert.Equal(t, map[string]any{"username": "new-user"}, res.body)

	res = call(t, ts, http.MethodPost, "/users/create", "", "", map[string]string{"username": "new-user", "password": "passwd123"})
	assert.Equal(t, http.StatusPaymentRequired, res.status)
	assert.Equal(t, errBody(2002, "Username is already registered."), res.body)
}

func TestCreateUser_InvalidBodies(t *testing.T) {
	ts := newTestAPI(t)

	cases := map[string]any{
		"short username": map[string]string{"username": "ab", "password": "passwd123"},
		"short password": map[string]string{"username": "reader", "password": "12345"},
		"colon in name":  map[string]string{"username": "bad:name", "password": "passwd123"},
		"missing fields": map[string]string{},
		"malformed json": `{"username":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			res := call(t, ts, http.MethodPost, "/users/create", "", "", body)
			assert.Equal(t, http.StatusForbidden, res.status)
			assert.Equal(t, errBody(2003, "Invalid request"), res.body)
		})
	}
}

func TestAuthUser(t *testing.T) {
	ts := newTestAPI(t)
	register(t, ts, "new-user", "passwd123")

	res := call(t, ts, http.MethodGet, "/users/auth", "new-user", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.Equal(t, unauthorized, res.body)

	res = call(t, ts, http.MethodGet, "/users/auth", "new-user", "passwd123wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.Equal(t, unauthorized, res.body)

	res = call(t, ts, http.MethodGet, "/users/auth", "nobody", "passwd123", nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)

	res = call(t, ts, http.MethodGet, "/users/auth", "new-user", "passwd123", nil)
	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, map[string]any{"authorized": "OK"}, res.body)
}

func TestProgress_RequiresAuthorization(t *testing.T) {
	ts := newTestAPI(t)
	register(t, ts, "user1", "passwd123")
	doc := "89isjkdaj9j"

	res := call(t, ts, http.MethodGet, "/syncs/progress/"+doc, "user1", "passwd123wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.Equal(t, unauthorized, res.body)

	res = call(t, ts, http.MethodPut, "/syncs/progress", "user1", "passwd123wrong", progressBody(doc, 0.32, "56", "my kpw"))
	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.Equal(t, unauthorized, res.body)
}

func TestProgress_UpdateAndGet(t *testing.T) {
	ts := newTestAPI(t)
	register(t, ts, "user1", "passwd123")
	doc := "89isjkdaj9j"

	res := call(t, ts, http.MethodPut, "/syncs/progress", "user1", "passwd123", progressBody(doc, 0.32, "56", "my kpw"))
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, doc, res.body["document"])
	assert.NotZero(t, res.body["timestamp"])

	res = call(t, ts, http.MethodGet, "/syncs/progress/"+doc+"non_existent", "user1", "passwd123", nil)
	assert.Equal(t, http.StatusOK, res.status)
	assert.Empty(t, res.body)

	res = call(t, ts, http.MethodGet, "/syncs/progress/"+doc, "user1", "passwd123", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.NotZero(t, res.body["timestamp"])
	delete(res.body, "timestamp")
	assert.Equal(t, map[string]any{
		"document":   doc,
		"percentage": 0.32,
		"progress":   "56",
		"device":     "my kpw",
	}, res.body)
}

func TestProgress_LatestWins(t *testing.T) {
	ts := newTestAPI(t)
	register(t, ts, "user1", "passwd123")
	doc := "89isjkdaj9j"

	call(t, ts, http.MethodPut, "/syncs/progress", "user1", "passwd123", progressBody(doc, 0.32, "56", "my kpw"))
	call(t, ts, http.MethodPut, "/syncs/progress", "user1", "passwd123", progressBody(doc, 0.22, "36", "my pb"))

	res := call(t, ts, http.MethodGet, "/syncs/progress/"+doc, "user1", "passwd123", nil)
	require.Equal(t, http.StatusOK, res.status)
	delete(res.body, "timestamp")
	assert.Equal(t, map[string]any{
		"document":   doc,
		"percentage": 0.22,
		"progress":   "36",
		"device":     "my pb",
	}, res.body)
}

func TestProgress_ReaderScenario(t *testing.T) {
	ts := newTestAPI(t)
	register(t, ts, "reader1", "secret123")

	body := progressBody("bookA", 42.5, "loc-900", "phone")
	body["device_id"] = "dev-1"
	res := call(t, ts, http.MethodPut, "/syncs/progress", "reader1", "secret123", body)
	require.Equal(t, http.StatusOK, res.status)
	ts1 := res.body["timestamp"]

	res = call(t, ts, http.MethodGet, "/syncs/progress/bookA", "reader1", "secret123", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, map[string]any{
		"document":   "bookA",
		"percentage": 42.5,
		"progress":   "loc-900",
		"device":     "phone",
		"device_id":  "dev-1",
		"timestamp":  ts1,
	}, res.body)

	res = call(t, ts, http.MethodGet, "/syncs/progress/bookA", "reader2", "secret123", nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)
}

func TestUpdateProgress_InvalidBodies(t *testing.T) {
	ts := newTestAPI(t)
	register(t, ts, "user1", "passwd123")

	cases := []struct {
		name string
		body any
		want map[string]any
	}{
		{"missing document", map[string]any{"percentage": 1, "progress": "1", "device": "d"}, errBody(2004, "Field 'document' not provided.")},
		{"short document", progressBody("ab", 1, "1", "d"), errBody(2004, "Field 'document' not provided.")},
		{"document with colon", progressBody("book:1", 1, "1", "d"), errBody(2004, "Field 'document' not provided.")},
		{"percentage above range", progressBody("bookA", 101, "1", "d"), errBody(2003, "Invalid request")},
		{"negative percentage", progressBody("bookA", -0.1, "1", "d"), errBody(2003, "Invalid request")},
		{"missing percentage", map[string]any{"document": "bookA", "progress": "1", "device": "d"}, errBody(2003, "Invalid request")},
		{"percentage as string", map[string]any{"document": "bookA", "percentage": "1", "progress": "1", "device": "d"}, errBody(2003, "Invalid request")},
		{"empty progress", progressBody("bookA", 1, "", "d"), errBody(2003, "Invalid request")},
		{"missing device", map[string]any{"document": "bookA", "percentage": 1, "progress": "1"}, errBody(2003, "Invalid request")},
		{"malformed json", `{"document":"bookA",`, errBody(2003, "Invalid request")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := call(t, ts, http.MethodPut, "/syncs/progress", "user1", "passwd123", tc.body)
			assert.Equal(t, http.StatusForbidden, res.status)
			assert.Equal(t, tc.want, res.body)
		})
	}
}

func TestGetProgress_ShortDocument(t *testing.T) {
	ts := newTestAPI(t)
	register(t, ts, "user1", "passwd123")

	res := call(t, ts, http.MethodGet, "/syncs/progress/ab", "user1", "passwd123", nil)
	assert.Equal(t, http.StatusForbidden, res.status)
	assert.Equal(t, errBody(2004, "Field 'document' not provided."), res.body)
}

func TestStorageNotInitialized(t *testing.T) {
	ts := httptest.NewServer(newServer(memory.New()).Handler())
	defer ts.Close()

	res := call(t, ts, http.MethodGet, "/users/auth", "user1", "passwd123", nil)
	assert.Equal(t, http.StatusBadGateway, res.status)
	assert.Equal(t, errBody(1000, "Cannot connect to storage backend."), res.body)

	res = call(t, ts, http.MethodPost, "/users/create", "", "", map[string]string{"username": "user1", "password": "passwd123"})
	assert.Equal(t, http.StatusBadGateway, res.status)
	assert.Equal(t, errBody(1000, "Cannot connect to storage backend."), res.body)
}

func TestETag_NotModified(t *testing.T) {
	ts := newTestAPI(t)

	res := call(t, ts, http.MethodGet, "/healthcheck", "", "", nil)
	tag := res.header.Get("ETag")
	require.NotEmpty(t, tag)

	req, err := http.NewRequest(http.MethodGet, ts.URL+common.APIBasePath+"/healthcheck", nil)
	require.NoError(t, err)
	req.Header.Set("If-None-Match", tag)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)
}

func TestRequestID_KeepsValidIncoming(t *testing.T) {
	ts := newTestAPI(t)
	id := "3f1c5a0e-8d2b-4c1e-9a7f-1b2c3d4e5f60"

	req, err := http.NewRequest(http.MethodGet, ts.URL+common.APIBasePath+"/healthcheck", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, id)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, id, resp.Header.Get(RequestIDHeader))

	req.Header.Set(RequestIDHeader, "not-a-uuid")
	resp2, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.NotEqual(t, "not-a-uuid", resp2.Header.Get(RequestIDHeader))
}

func TestRecoverer_AnswersInternalError(t *testing.T) {
	s := newServer(memory.New())
	h := requestID(s.recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"code":2000,"message":"Unknown server error."}`, rec.Body.String())
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := newServer(memory.New())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewServer("127.0.0.1:99999", time.Second, logging.Nop{}, nil, nil, nil)
	assert.Error(t, srv.Run(context.Background()))
}
