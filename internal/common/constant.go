// Package common contains shared constants and sentinel errors used across
// kosync components.
package common

// Request headers carrying the claimed principal and its shared secret.
// The names match what KOReader sends.
const (
	AuthUserHeaderName = "x-auth-user"
	AuthKeyHeaderName  = "x-auth-key"
)

// APIBasePath is the prefix every HTTP route is mounted under.
const APIBasePath = "/v1"

// HealthServiceName is the gRPC health service reported by the server next to
// the overall "" entry.
const HealthServiceName = "kosync"
