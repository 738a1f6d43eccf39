// Package ingest orchestrates the submission pipeline: credential check,
// rate limiting, adapter normalization, canonical fingerprinting, and
// deduplicated persistence.
package ingest

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/bpsr-tools/crowddata/pkg/adapters"
	"github.com/bpsr-tools/crowddata/pkg/canonicalize"
	"github.com/bpsr-tools/crowddata/pkg/observability"
	"github.com/bpsr-tools/crowddata/pkg/ratelimit"
	"github.com/bpsr-tools/crowddata/pkg/store"
)

// Terminal submission failures. Validation and auth errors are never
// retried; the api layer maps them onto HTTP statuses.
var (
	ErrInvalidSource     = errors.New("source not in allowed set")
	ErrMissingCredential = errors.New("missing credential")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrRateLimited       = errors.New("rate limit exceeded")
)

// Credentials authenticates an opaque caller key. The pipeline does not own
// key lifecycle; a lookup-table implementation can substitute for the
// shared-secret model without touching the pipeline.
type Credentials interface {
	Authenticate(key string) bool
}

// SharedSecret authenticates every caller against one configured key. An
// empty secret rejects all callers.
type SharedSecret string

func (s SharedSecret) Authenticate(key string) bool {
	if s == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s), []byte(key)) == 1
}

// Options tune pipeline behavior.
type Options struct {
	// DisableRateLimit skips the rate check entirely (test and operational
	// contexts).
	DisableRateLimit bool
}

// Pipeline is the ingestion state machine. It is safe for concurrent use;
// dedup correctness under concurrent identical submissions rests on the
// store's fingerprint uniqueness constraint, not on pipeline locking.
type Pipeline struct {
	registry  *adapters.Registry
	creds     Credentials
	limiter   *ratelimit.Limiter
	reports   store.ReportStore
	opts      Options
	telemetry *observability.Provider
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// New wires a pipeline. telemetry may be nil.
func New(registry *adapters.Registry, creds Credentials, limiter *ratelimit.Limiter, reports store.ReportStore, telemetry *observability.Provider, opts Options) *Pipeline {
	return &Pipeline{
		registry:  registry,
		creds:     creds,
		limiter:   limiter,
		reports:   reports,
		opts:      opts,
		telemetry: telemetry,
		logger:    slog.Default().With("component", "ingest"),
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// Submit runs one payload through the pipeline and returns the stored
// report. Resubmission of a logically identical payload returns the existing
// report; callers cannot distinguish first insert from duplicate.
func (p *Pipeline) Submit(ctx context.Context, key, source string, payload map[string]any) (*store.Report, error) {
	var done func(error)
	if p.telemetry != nil {
		ctx, done = p.telemetry.TrackOperation(ctx, "ingest.submit",
			attribute.String("source", source),
		)
	} else {
		done = func(error) {}
	}

	report, err := p.submit(ctx, key, source, payload)
	done(err)
	return report, err
}

func (p *Pipeline) submit(ctx context.Context, key, source string, payload map[string]any) (*store.Report, error) {
	if !p.registry.Allowed(source) {
		return nil, ErrInvalidSource
	}

	if key == "" {
		p.logger.InfoContext(ctx, "missing api key", "source", source)
		return nil, ErrMissingCredential
	}
	if !p.creds.Authenticate(key) {
		p.logger.InfoContext(ctx, "invalid api key", "source", source)
		return nil, ErrInvalidCredential
	}

	if !p.opts.DisableRateLimit && !p.limiter.Allow(key) {
		p.logger.InfoContext(ctx, "rate limit exceeded", "source", source)
		return nil, ErrRateLimited
	}

	// Normalization never fails: absent fields are omitted, unknown-but-
	// allowed sources yield empty metadata.
	normalized := p.registry.Normalize(source, payload)
	envelope := canonicalize.NewEnvelope(normalized, payload)

	fingerprint, err := canonicalize.Fingerprint(envelope)
	if err != nil {
		return nil, fmt.Errorf("fingerprint: %w", err)
	}

	if existing, err := p.reports.GetByFingerprint(ctx, fingerprint); err == nil {
		p.logger.InfoContext(ctx, "duplicate payload detected",
			"source", source, "report_id", existing.ID)
		return existing, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}

	report := &store.Report{
		ID:          p.newID(),
		Source:      source,
		Fingerprint: fingerprint,
		IngestedAt:  p.now().UTC(),
		Data:        envelope,
	}

	err = p.reports.Insert(ctx, report)
	if errors.Is(err, store.ErrConflict) {
		// A concurrent identical submission won the race; return its report.
		existing, rerr := p.reports.GetByFingerprint(ctx, fingerprint)
		if rerr != nil {
			return nil, fmt.Errorf("conflict re-read: %w", rerr)
		}
		p.logger.InfoContext(ctx, "lost insert race, returning existing report",
			"source", source, "report_id", existing.ID)
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("insert report: %w", err)
	}

	p.logger.InfoContext(ctx, "report ingested",
		"source", source, "report_id", report.ID)
	return report, nil
}
