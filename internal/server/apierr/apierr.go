// Package apierr maps domain errors to the numeric error codes KOReader
// understands.
package apierr

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/kosync/internal/common"
	"github.com/dmitrijs2005/kosync/internal/server/keys"
	"github.com/dmitrijs2005/kosync/internal/server/kv"
)

type Code int

const (
	NoStorage       Code = 1000
	Internal        Code = 2000
	Unauthorized    Code = 2001
	UserExists      Code = 2002
	InvalidFields   Code = 2003
	DocumentMissing Code = 2004
)

type entry struct {
	status  int
	message string
}

var table = map[Code]entry{
	NoStorage:       {http.StatusBadGateway, "Cannot connect to storage backend."},
	Internal:        {http.StatusBadGateway, "Unknown server error."},
	Unauthorized:    {http.StatusUnauthorized, "Unauthorized"},
	UserExists:      {http.StatusPaymentRequired, "Username is already registered."},
	InvalidFields:   {http.StatusForbidden, "Invalid request"},
	DocumentMissing: {http.StatusForbidden, "Field 'document' not provided."},
}

// Body is the JSON error payload.
type Body struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// Status returns the HTTP status for c; unknown codes map to Internal's.
func (c Code) Status() int {
	if e, ok := table[c]; ok {
		return e.status
	}
	return table[Internal].status
}

func (c Code) Message() string {
	if e, ok := table[c]; ok {
		return e.message
	}
	return table[Internal].message
}

func (c Code) Body() Body {
	return Body{Code: c, Message: c.Message()}
}

// FromError picks the code for err. Anything unrecognised is Internal.
func FromError(err error) Code {
	switch {
	case errors.Is(err, kv.ErrNotInitialized):
		return NoStorage
	case errors.Is(err, common.ErrorUnauthorized):
		return Unauthorized
	case errors.Is(err, common.ErrUserExists):
		return UserExists
	case errors.Is(err, common.ErrDocumentMissing):
		return DocumentMissing
	case errors.Is(err, common.ErrInvalidFields), errors.Is(err, keys.ErrInvalidIdentifier):
		return InvalidFields
	default:
		return Internal
	}
}
