// Package auth resolves the caller of a request from the shared-secret pair
// sent by KOReader and carries the resulting principal on the context.
package auth

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/dmitrijs2005/kosync/internal/server/keys"
	"github.com/dmitrijs2005/kosync/internal/server/kv"
)

type ctxKey string

const userKey ctxKey = "user"

// WithUser returns a copy of ctx carrying user as the authenticated principal.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the authenticated principal, if any.
func UserFromContext(ctx context.Context) (string, bool) {
	user, ok := ctx.Value(userKey).(string)
	return user, ok && user != ""
}

// Authorizer checks claimed credentials against the stored user secret.
type Authorizer struct {
	store kv.Store
}

func NewAuthorizer(store kv.Store) *Authorizer {
	return &Authorizer{store: store}
}

// Authorize returns ctx with the principal attached when secret matches the
// secret stored for user. Blank or malformed credentials, unknown users and
// wrong secrets all yield ctx unchanged and a nil error: rejecting is left to
// the handlers that require a principal. Only storage failures are errors.
func (a *Authorizer) Authorize(ctx context.Context, user, secret string) (context.Context, error) {
	if !keys.ValidField(secret) || !keys.ValidKeyField(user) {
		return ctx, nil
	}

	key, err := keys.UserKey(user)
	if err != nil {
		return ctx, nil
	}

	stored, found, err := kv.GetAs[string](ctx, a.store, key)
	if err != nil {
		return ctx, fmt.Errorf("authorize %q: %w", user, err)
	}
	if !found {
		return ctx, nil
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(secret)) != 1 {
		return ctx, nil
	}

	return WithUser(ctx, user), nil
}
