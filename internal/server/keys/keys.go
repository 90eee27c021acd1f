// Package keys builds the storage keys used by kosync.
//
// Two record kinds share one flat key space:
//
//	user:<username>:key                  stored secret
//	user:<username>:document:<document>  progress snapshot
//
// The literal "key" and "document" segments keep the kinds apart, and
// identifiers are never allowed to carry the separator, so no valid pair of
// identifiers can produce the same key for different records.
package keys

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/kosync/internal/server/kv"
)

const (
	userPrefix      = "user"
	secretSuffix    = "key"
	documentSegment = "document"
)

// ErrInvalidIdentifier is returned for blank or separator-bearing identifiers.
var ErrInvalidIdentifier = errors.New("invalid key identifier")

// ValidField reports whether v is a non-blank string.
func ValidField(v string) bool {
	return strings.TrimSpace(v) != ""
}

// ValidKeyField reports whether v may be embedded in a storage key.
func ValidKeyField(v string) bool {
	return ValidField(v) && !strings.Contains(v, kv.Separator)
}

// UserKey returns the key of the secret stored for username.
func UserKey(username string) (kv.Key, error) {
	if !ValidKeyField(username) {
		return nil, fmt.Errorf("%w: username %q", ErrInvalidIdentifier, username)
	}
	return kv.Key{userPrefix, username, secretSuffix}, nil
}

// DocumentKey returns the key of the progress snapshot of document for username.
func DocumentKey(username, document string) (kv.Key, error) {
	if !ValidKeyField(username) {
		return nil, fmt.Errorf("%w: username %q", ErrInvalidIdentifier, username)
	}
	if !ValidKeyField(document) {
		return nil, fmt.Errorf("%w: document %q", ErrInvalidIdentifier, document)
	}
	return kv.Key{userPrefix, username, documentSegment, document}, nil
}
