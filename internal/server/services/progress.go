package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/dmitrijs2005/kosync/internal/common"
	"github.com/dmitrijs2005/kosync/internal/server/keys"
	"github.com/dmitrijs2005/kosync/internal/server/kv"
)

// UpdateInput is a progress report for one document. DeviceID is optional.
type UpdateInput struct {
	Document   string
	Percentage *float64
	Progress   string
	Device     string
	DeviceID   string
}

type UpdateResult struct {
	Document  string `json:"document"`
	Timestamp int64  `json:"timestamp"`
}

// Progress is the stored snapshot as returned to clients. Nil fields were
// absent from the record and are omitted on the wire; an entirely empty
// Progress encodes as {}.
type Progress struct {
	Document   string   `json:"document,omitempty"`
	Percentage *float64 `json:"percentage,omitempty"`
	Progress   *string  `json:"progress,omitempty"`
	Device     *string  `json:"device,omitempty"`
	DeviceID   *string  `json:"device_id,omitempty"`
	Timestamp  *int64   `json:"timestamp,omitempty"`
}

// progressRecord is the value stored under the document key.
type progressRecord struct {
	Percentage float64 `json:"percentage"`
	Progress   string  `json:"progress"`
	Device     string  `json:"device"`
	DeviceID   string  `json:"device_id,omitempty"`
	Timestamp  int64   `json:"timestamp"`
}

// ProgressService keeps one last-write-wins snapshot per user and document.
type ProgressService struct {
	store kv.Store
	now   func() time.Time
}

func NewProgressService(store kv.Store) *ProgressService {
	return &ProgressService{store: store, now: time.Now}
}

// Update replaces the snapshot of in.Document for user and returns the
// server timestamp (Unix seconds) it was stamped with.
func (s *ProgressService) Update(ctx context.Context, user string, in UpdateInput) (UpdateResult, error) {
	if user == "" {
		return UpdateResult{}, common.ErrorUnauthorized
	}
	if !keys.ValidKeyField(in.Document) {
		return UpdateResult{}, common.ErrDocumentMissing
	}
	if in.Percentage == nil || !keys.ValidField(in.Progress) || !keys.ValidField(in.Device) {
		return UpdateResult{}, common.ErrInvalidFields
	}

	key, err := keys.DocumentKey(user, in.Document)
	if err != nil {
		return UpdateResult{}, common.ErrInvalidFields
	}

	rec := progressRecord{
		Percentage: *in.Percentage,
		Progress:   in.Progress,
		Device:     in.Device,
		DeviceID:   in.DeviceID,
		Timestamp:  s.now().Unix(),
	}
	if err := s.store.Set(ctx, key, rec); err != nil {
		return UpdateResult{}, fmt.Errorf("update progress %q: %w", in.Document, err)
	}

	return UpdateResult{Document: in.Document, Timestamp: rec.Timestamp}, nil
}

// Get returns the projected snapshot of document for user. A document never
// synced yields an empty Progress and no error.
func (s *ProgressService) Get(ctx context.Context, user, document string) (Progress, error) {
	if user == "" {
		return Progress{}, common.ErrorUnauthorized
	}
	if !keys.ValidKeyField(document) {
		return Progress{}, common.ErrDocumentMissing
	}

	key, err := keys.DocumentKey(user, document)
	if err != nil {
		return Progress{}, common.ErrDocumentMissing
	}

	stored, found, err := kv.GetAs[any](ctx, s.store, key)
	if err != nil {
		return Progress{}, fmt.Errorf("get progress %q: %w", document, err)
	}
	if !found {
		return Progress{}, nil
	}

	// Scalars left by older writers have no fields to project.
	record, ok := stored.(map[string]any)
	if !ok {
		return Progress{}, nil
	}

	return project(record, document), nil
}

// project copies the non-null fields of a stored record, coercing them to
// the wire types. Values that cannot be coerced to a number are dropped.
func project(stored map[string]any, document string) Progress {
	var p Progress
	present := false

	if v, ok := asNumber(stored["percentage"]); ok {
		p.Percentage = &v
		present = true
	}
	if v, ok := asString(stored["progress"]); ok {
		p.Progress = &v
		present = true
	}
	if v, ok := asString(stored["device"]); ok {
		p.Device = &v
		present = true
	}
	if v, ok := asString(stored["device_id"]); ok {
		p.DeviceID = &v
		present = true
	}
	if v, ok := asNumber(stored["timestamp"]); ok {
		ts := int64(v)
		p.Timestamp = &ts
		present = true
	}

	if present {
		p.Document = document
	}
	return p
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case nil:
		return "", false
	case string:
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(s), true
	default:
		b, err := json.Marshal(s)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}
