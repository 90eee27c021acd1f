package client

import (
	"errors"
	"fmt"
)

var (
	ErrUnavailable   = errors.New("server unavailable")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrUserExists    = errors.New("username is already registered")
	ErrNotLoggedIn   = errors.New("not logged in")
	ErrInvalidFields = errors.New("invalid request")
)

// APIError is an error answer from the server that has no sentinel above.
type APIError struct {
	Status  int
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}
