// Package kv defines the key-value contract every storage backend satisfies.
//
// Consumers (authorization, progress and registration services) depend only on
// Store; concrete drivers live in sub-packages and are picked once at startup
// by the drivers package.
package kv

import (
	"context"
	"errors"
	"strings"
)

// Separator joins key segments into the record identifier used by drivers.
const Separator = ":"

var (
	// ErrNotInitialized is returned when Get/Set/Create are called before Init.
	ErrNotInitialized = errors.New("kv store not initialized")

	// ErrBackendUnavailable wraps connectivity and backend failures so callers
	// can tell them apart from a missing record.
	ErrBackendUnavailable = errors.New("kv backend unavailable")

	// ErrKeyExists is returned by Creator.Create when a record already exists.
	ErrKeyExists = errors.New("kv key already exists")

	// ErrMissingCredentials is returned by Init when a driver that needs
	// credentials or an endpoint was configured without them.
	ErrMissingCredentials = errors.New("kv driver credentials not configured")
)

// Key is an ordered sequence of segments. Drivers treat it as opaque and
// address records by String().
type Key []string

// String joins the segments with Separator.
func (k Key) String() string {
	return strings.Join(k, Separator)
}

// Store is the uniform contract implemented by every backend driver.
//
// Init must be called exactly once before Get or Set. Get reports found=false
// with a nil error when no record exists. Set fully replaces any existing record.
// Implementations must be safe for concurrent use.
type Store interface {
	Init(ctx context.Context) error
	Get(ctx context.Context, key Key, dst any) (bool, error)
	Set(ctx context.Context, key Key, value any) error
	Close(ctx context.Context) error
}

// Creator is implemented by stores that can insert a record only if the key is
// absent, atomically, using the backend's native primitive.
type Creator interface {
	Create(ctx context.Context, key Key, value any) error
}

// Pinger is implemented by stores that can report backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// GetAs reads the record under key into a fresh T.
func GetAs[T any](ctx context.Context, s Store, key Key) (T, bool, error) {
	var v T
	found, err := s.Get(ctx, key, &v)
	if err != nil || !found {
		var zero T
		return zero, found, err
	}
	return v, true, nil
}
