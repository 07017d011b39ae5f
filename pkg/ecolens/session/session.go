// Package session persists the results of label extraction runs so later
// requests (alternatives, comparison) can reuse them without re-calling the
// ML service. Stores exist for memory, the filesystem and Postgres; the
// cached store layers the memory store in front of a durable one.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates no record exists for a session ID.
var ErrNotFound = errors.New("session not found")

// Record is one extraction run.
type Record struct {
	ID        string    `json:"session_id"`
	Slot      string    `json:"slot"`
	CreatedAt time.Time `json:"created_at"`

	FrontURL string `json:"front_url,omitempty"`
	BackURL  string `json:"back_url,omitempty"`

	// ExtractedData is the ML extraction payload, stored verbatim.
	ExtractedData json.RawMessage `json:"extracted_data"`

	MLDurationMillis int64 `json:"ml_duration_ms"`
}

// Store persists session records.
type Store interface {
	Save(ctx context.Context, rec *Record) error
	Load(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error
}

// NewID generates a session identifier of the form
// session_<unixms>_<random>.
func NewID() string {
	return fmt.Sprintf("session_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// ValidID rejects identifiers that could escape a storage namespace.
func ValidID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	return !strings.ContainsAny(id, "/\\. ")
}
