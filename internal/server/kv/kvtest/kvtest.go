// Package kvtest holds the scenario suite every kv.Store driver must pass.
// Driver packages call Run from their own tests so that all backends are held
// to identical observable behaviour.
package kvtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/kosync/internal/server/kv"
)

// Factory returns a fresh, not yet initialized store backed by an empty
// namespace. The suite calls Init and Close itself.
type Factory func(t *testing.T) kv.Store

type record struct {
	Percentage float64 `json:"percentage"`
	Progress   string  `json:"progress"`
	Device     string  `json:"device"`
	DeviceID   string  `json:"device_id,omitempty"`
	Timestamp  int64   `json:"timestamp"`
}

// Run executes the conformance suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("UninitializedFails", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var v string
		_, err := s.Get(ctx, kv.Key{"user", "u1", "key"}, &v)
		assert.ErrorIs(t, err, kv.ErrNotInitialized)

		err = s.Set(ctx, kv.Key{"user", "u1", "key"}, "pw")
		assert.ErrorIs(t, err, kv.ErrNotInitialized)

		if c, ok := s.(kv.Creator); ok {
			assert.ErrorIs(t, c.Create(ctx, kv.Key{"user", "u1", "key"}, "pw"), kv.ErrNotInitialized)
		}
	})

	t.Run("MissingKeyIsNotAnError", func(t *testing.T) {
		s := open(t, newStore)

		var rec map[string]any
		found, err := s.Get(context.Background(), kv.Key{"user", "nobody", "document", "none"}, &rec)
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, rec)
	})

	t.Run("StringRoundTrip", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()
		key := kv.Key{"user", "reader1", "key"}

		require.NoError(t, s.Set(ctx, key, "secret123"))

		got, found, err := kv.GetAs[string](ctx, s, key)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "secret123", got)
	})

	t.Run("StructuredRoundTrip", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()
		key := kv.Key{"user", "reader1", "document", "bookA"}
		in := record{Percentage: 42.5, Progress: "loc-900", Device: "phone", Timestamp: 1700000000}

		require.NoError(t, s.Set(ctx, key, in))

		got, found, err := kv.GetAs[record](ctx, s, key)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, in, got)

		raw, found, err := kv.GetAs[map[string]any](ctx, s, key)
		require.NoError(t, err)
		require.True(t, found)
		_, hasDeviceID := raw["device_id"]
		assert.False(t, hasDeviceID, "omitted optional field must stay absent")
	})

	t.Run("SetOverwrites", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()
		key := kv.Key{"user", "reader1", "document", "bookA"}

		require.NoError(t, s.Set(ctx, key, record{Percentage: 32, Progress: "56", Device: "kpw", DeviceID: "d1", Timestamp: 1}))
		require.NoError(t, s.Set(ctx, key, record{Percentage: 22, Progress: "36", Device: "pb", Timestamp: 2}))

		raw, found, err := kv.GetAs[map[string]any](ctx, s, key)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, float64(22), raw["percentage"])
		assert.Equal(t, "36", raw["progress"])
		assert.Equal(t, "pb", raw["device"])
		_, hasDeviceID := raw["device_id"]
		assert.False(t, hasDeviceID, "set must replace the whole record, not merge it")
	})

	t.Run("KeysAreIsolated", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, kv.Key{"user", "a", "document", "x"}, record{Progress: "a"}))
		require.NoError(t, s.Set(ctx, kv.Key{"user", "b", "document", "x"}, record{Progress: "b"}))

		a, _, err := kv.GetAs[record](ctx, s, kv.Key{"user", "a", "document", "x"})
		require.NoError(t, err)
		b, _, err := kv.GetAs[record](ctx, s, kv.Key{"user", "b", "document", "x"})
		require.NoError(t, err)
		assert.Equal(t, "a", a.Progress)
		assert.Equal(t, "b", b.Progress)
	})

	t.Run("ConcurrentSetsLastWriteWins", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()
		key := kv.Key{"user", "reader1", "document", "race"}

		const writers = 8
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, s.Set(ctx, key, record{Progress: fmt.Sprintf("w%d", i), Timestamp: int64(i)}))
			}(i)
		}
		wg.Wait()

		got, found, err := kv.GetAs[record](ctx, s, key)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, fmt.Sprintf("w%d", got.Timestamp), got.Progress, "record must be one whole write")
	})

	t.Run("CreateIsInsertOrFail", func(t *testing.T) {
		s := open(t, newStore)
		c, ok := s.(kv.Creator)
		if !ok {
			t.Skip("driver does not implement kv.Creator")
		}
		ctx := context.Background()
		key := kv.Key{"user", "reader1", "key"}

		require.NoError(t, c.Create(ctx, key, "first"))
		err := c.Create(ctx, key, "second")
		require.ErrorIs(t, err, kv.ErrKeyExists)

		got, _, err := kv.GetAs[string](ctx, s, key)
		require.NoError(t, err)
		assert.Equal(t, "first", got)
	})

	t.Run("ConcurrentCreateHasOneWinner", func(t *testing.T) {
		s := open(t, newStore)
		c, ok := s.(kv.Creator)
		if !ok {
			t.Skip("driver does not implement kv.Creator")
		}
		ctx := context.Background()
		key := kv.Key{"user", "contended", "key"}

		const callers = 8
		var wins, conflicts atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := c.Create(ctx, key, fmt.Sprintf("secret-%d", i))
				switch {
				case err == nil:
					wins.Add(1)
				case errors.Is(err, kv.ErrKeyExists):
					conflicts.Add(1)
				default:
					t.Errorf("unexpected create error: %v", err)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
		assert.Equal(t, int32(callers-1), conflicts.Load())
	})

	t.Run("Ping", func(t *testing.T) {
		s := open(t, newStore)
		p, ok := s.(kv.Pinger)
		if !ok {
			t.Skip("driver does not implement kv.Pinger")
		}
		assert.NoError(t, p.Ping(context.Background()))
	})
}

func open(t *testing.T, newStore Factory) kv.Store {
	t.Helper()
	s := newStore(t)
	require.NoError(t, s.Init(context.Background()))
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}
