// Package extraction is the orchestration core: the persisted job record,
// its state machine, the classifier-driven dispatch to extractor strategies,
// and the per-job mutual exclusion that keeps processing attempts unique.
package extraction

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"time"

	"nexus/extractor/internal/extract"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ValidStatus reports whether s names a known status. Used to validate
// list filters at the boundary.
func ValidStatus(s string) bool {
	switch Status(s) {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var (
	ErrNotFound          = errors.New("extraction not found")
	ErrAlreadyExists     = errors.New("extraction id already exists")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyInProgress = errors.New("extraction already in progress")
)

// Extraction is one extraction attempt for one reference. Terminal records
// are never deleted by this service; retention is an external policy.
type Extraction struct {
	ID          string             `json:"id"`
	URL         string             `json:"url"`
	SourceKind  extract.SourceKind `json:"source_kind"`
	Status      Status             `json:"status"`
	Title       string             `json:"title,omitempty"`
	Content     string             `json:"content,omitempty"`
	Metadata    json.RawMessage    `json:"metadata,omitempty"`
	ErrorDetail string             `json:"error_detail,omitempty"`

	// Correlation fields are opaque pass-through for routing a completion
	// notification back to the originating chat context.
	ChannelID string `json:"channel_id,omitempty"`
	ThreadRef string `json:"thread_ref,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary is the list-view projection of an extraction.
type Summary struct {
	ID         string             `json:"id"`
	Title      string             `json:"title,omitempty"`
	SourceKind extract.SourceKind `json:"source_kind"`
	Status     Status             `json:"status"`
	CreatedAt  time.Time          `json:"created_at"`
}

// Correlation carries the originating chat reference, uninterpreted.
type Correlation struct {
	ChannelID string
	ThreadRef string
}

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewID returns a short opaque job identifier: 8 random characters from a
// lowercase base36 alphabet.
func NewID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		panic("extraction: crypto/rand unavailable: " + err.Error())
	}
	for i, b := range buf {
		buf[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return string(buf)
}
