package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/kosync/internal/server/kv"
	"github.com/dmitrijs2005/kosync/internal/server/kv/memory"
)

func newStore(t *testing.T) kv.Store {
	t.Helper()
	s := memory.New()
	require.NoError(t, s.Init(context.Background()))
	require.NoError(t, s.Set(context.Background(), kv.Key{"user", "reader1", "key"}, "secret123"))
	return s
}

type failingStore struct{ kv.Store }

func (failingStore) Get(context.Context, kv.Key, any) (bool, error) {
	return false, kv.Unavailable("get", errors.New("connection refused"))
}

func TestUserFromContext(t *testing.T) {
	_, ok := UserFromContext(context.Background())
	assert.False(t, ok)

	user, ok := UserFromContext(WithUser(context.Background(), "reader1"))
	assert.True(t, ok)
	assert.Equal(t, "reader1", user)

	_, ok = UserFromContext(WithUser(context.Background(), ""))
	assert.False(t, ok, "empty principal is not a principal")
}

func TestAuthorize(t *testing.T) {
	a := NewAuthorizer(newStore(t))

	tests := []struct {
		name     string
		user     string
		secret   string
		wantUser bool
	}{
		{name: "exact secret", user: "reader1", secret: "secret123", wantUser: true},
		{name: "wrong secret", user: "reader1", secret: "secret124"},
		{name: "secret prefix", user: "reader1", secret: "secret"},
		{name: "unknown user", user: "reader2", secret: "secret123"},
		{name: "blank user", user: "  ", secret: "secret123"},
		{name: "blank secret", user: "reader1", secret: " "},
		{name: "separator in user", user: "reader1:key", secret: "secret123"},
		{name: "both empty", user: "", secret: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, err := a.Authorize(context.Background(), tt.user, tt.secret)
			require.NoError(t, err)

			user, ok := UserFromContext(ctx)
			assert.Equal(t, tt.wantUser, ok)
			if tt.wantUser {
				assert.Equal(t, tt.user, user)
			}
		})
	}
}

func TestAuthorize_StorageFailure(t *testing.T) {
	a := NewAuthorizer(failingStore{})

	ctx, err := a.Authorize(context.Background(), "reader1", "secret123")
	require.ErrorIs(t, err, kv.ErrBackendUnavailable)
	_, ok := UserFromContext(ctx)
	assert.False(t, ok)
}

func TestAuthorize_UninitializedStore(t *testing.T) {
	a := NewAuthorizer(memory.New())

	_, err := a.Authorize(context.Background(), "reader1", "secret123")
	require.ErrorIs(t, err, kv.ErrNotInitialized)
}

func TestAuthorize_InvalidInputSkipsStorage(t *testing.T) {
	a := NewAuthorizer(failingStore{})

	ctx, err := a.Authorize(context.Background(), "", "secret123")
	require.NoError(t, err, "invalid credentials never reach the store")
	_, ok := UserFromContext(ctx)
	assert.False(t, ok)
}
