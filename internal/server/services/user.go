// Package services contains the server-side business logic: registering
// users and storing and projecting reading progress. Both services talk only
// to a kv.Store.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/kosync/internal/common"
	"github.com/dmitrijs2005/kosync/internal/server/auth"
	"github.com/dmitrijs2005/kosync/internal/server/keys"
	"github.com/dmitrijs2005/kosync/internal/server/kv"
)

// UserService registers users and reports the authenticated principal.
type UserService struct {
	store kv.Store
}

func NewUserService(store kv.Store) *UserService {
	return &UserService{store: store}
}

// Register stores secret for a new username. It fails with
// common.ErrInvalidFields for unusable input and common.ErrUserExists when
// the username is taken.
//
// Stores implementing kv.Creator make the check and the write one atomic
// step. For other stores two concurrent registrations of the same name may
// both succeed, the later write winning.
func (s *UserService) Register(ctx context.Context, username, secret string) error {
	if !keys.ValidKeyField(username) || !keys.ValidField(secret) {
		return common.ErrInvalidFields
	}

	key, err := keys.UserKey(username)
	if err != nil {
		return common.ErrInvalidFields
	}

	if c, ok := s.store.(kv.Creator); ok {
		err := c.Create(ctx, key, secret)
		if errors.Is(err, kv.ErrKeyExists) {
			return common.ErrUserExists
		}
		if err != nil {
			return fmt.Errorf("register %q: %w", username, err)
		}
		return nil
	}

	var existing any
	found, err := s.store.Get(ctx, key, &existing)
	if err != nil {
		return fmt.Errorf("register %q: %w", username, err)
	}
	if found {
		return common.ErrUserExists
	}

	if err := s.store.Set(ctx, key, secret); err != nil {
		return fmt.Errorf("register %q: %w", username, err)
	}
	return nil
}

// Authorized returns the principal attached to ctx by the authorization
// middleware, or common.ErrorUnauthorized.
func (s *UserService) Authorized(ctx context.Context) (string, error) {
	user, ok := auth.UserFromContext(ctx)
	if !ok {
		return "", common.ErrorUnauthorized
	}
	return user, nil
}
