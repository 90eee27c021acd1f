// Package common defines shared constants and sentinel errors used across
// client and server layers of kosync. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Service-level errors.
	ErrorUnauthorized = errors.New("unauthorized")

	// Registration errors.
	ErrUserExists = errors.New("user already exists")

	// Validation errors.
	ErrInvalidFields   = errors.New("invalid fields")
	ErrDocumentMissing = errors.New("field 'document' not provided")
)
