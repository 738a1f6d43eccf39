// Package store persists ingested reports and serves the paginated read
// model. The fingerprint uniqueness constraint enforced here is the
// concurrency-correctness mechanism for deduplication; callers treat
// ErrConflict on insert as "someone else won the race" and re-read.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/bpsr-tools/crowddata/pkg/canonicalize"
)

var (
	// ErrNotFound is returned when no report matches the lookup.
	ErrNotFound = errors.New("report not found")
	// ErrConflict is returned when an insert violates the fingerprint
	// uniqueness constraint.
	ErrConflict = errors.New("fingerprint already exists")
)

// Report is the persisted ingestion unit. ID and Fingerprint are immutable
// once set; IngestedAt is set at creation and never mutated.
type Report struct {
	ID          string                `json:"id"`
	Source      string                `json:"source"`
	Fingerprint string                `json:"-"`
	IngestedAt  time.Time             `json:"ingested_at"`
	Data        canonicalize.Envelope `json:"data"`
}

// ListOptions filters and paginates report listings.
type ListOptions struct {
	// Source, when non-empty, restricts results to an exact source match.
	Source string
	// Limit is clamped to [1, 200]; zero means the default of 50.
	Limit int
	// Offset is clamped to >= 0.
	Offset int
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Normalize returns a copy with limit and offset clamped to their bounds.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit == 0 {
		o.Limit = defaultListLimit
	}
	if o.Limit < 1 {
		o.Limit = 1
	}
	if o.Limit > maxListLimit {
		o.Limit = maxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// ReportStore is the persistence contract for reports.
type ReportStore interface {
	// Insert stores a new report. Returns ErrConflict if a report with the
	// same fingerprint already exists.
	Insert(ctx context.Context, r *Report) error
	// Get returns the report with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Report, error)
	// GetByFingerprint returns the report with the given fingerprint, or
	// ErrNotFound.
	GetByFingerprint(ctx context.Context, fingerprint string) (*Report, error)
	// List returns reports ordered by ingestion time descending. An empty
	// result is an empty slice, never an error.
	List(ctx context.Context, opts ListOptions) ([]*Report, error)
}
