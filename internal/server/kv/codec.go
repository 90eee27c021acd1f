package kv

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrDecode is returned when a stored payload cannot be decoded into the
// destination and no raw fallback applies.
var ErrDecode = errors.New("kv decode error")

// Encode serializes a value to its stored JSON form.
func Encode(value any) ([]byte, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("kv encode error: %w", err)
	}
	return b, nil
}

// Decode deserializes a stored payload into dst.
//
// Payloads that are not JSON of the expected shape are handed back verbatim
// when dst is *string or *any, so scalars written raw by older deployments
// stay readable.
func Decode(raw []byte, dst any) error {
	err := json.Unmarshal(raw, dst)
	if err == nil {
		return nil
	}

	switch d := dst.(type) {
	case *string:
		*d = string(raw)
		return nil
	case *any:
		*d = string(raw)
		return nil
	}

	return fmt.Errorf("%w: %v", ErrDecode, err)
}

// Unavailable wraps a backend error with ErrBackendUnavailable and the
// operation name.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrBackendUnavailable, err)
}
