// Package client talks to a kosync server: account registration and login
// checks, pushing and pulling reading progress, and health probes over HTTP
// and gRPC.
package client

import (
	"context"
	"crypto/md5"
	"encoding/hex"
)

type Client interface {
	Close() error
	Register(ctx context.Context, username, key string) error
	Login(ctx context.Context, username, key string) error
	Logout()
	Push(ctx context.Context, p Progress) (PushResult, error)
	Pull(ctx context.Context, document string) (Progress, error)
	Ping(ctx context.Context) error
}

// Progress is one reading position as exchanged with the server. A pull of a
// document that was never pushed yields the zero value.
type Progress struct {
	Document   string  `json:"document,omitempty"`
	Percentage float64 `json:"percentage"`
	Progress   string  `json:"progress,omitempty"`
	Device     string  `json:"device,omitempty"`
	DeviceID   string  `json:"device_id,omitempty"`
	Timestamp  int64   `json:"timestamp,omitempty"`
}

type PushResult struct {
	Document  string `json:"document"`
	Timestamp int64  `json:"timestamp"`
}

// HashKey derives the key KOReader sends in place of the password: the
// lowercase hex MD5 of it.
func HashKey(password []byte) string {
	sum := md5.Sum(password)
	return hex.EncodeToString(sum[:])
}
