// Package ratelimit provides the per-identity token bucket guarding the
// ingest write path.
//
// State is process-local and lost on restart; a restarted process grants
// every identity a fresh, fully topped-up bucket. Multi-instance deployments
// therefore enforce independent limits per instance.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter manages one token bucket per identity key. Each bucket holds at
// most `perMinute` tokens and refills continuously at `perMinute` tokens per
// 60 seconds. A single mutex guards the bucket map; the critical section is
// O(1) and non-blocking.
type Limiter struct {
	mu        sync.Mutex
	buckets   map[string]*rate.Limiter
	perMinute int
	now       func() time.Time
}

// New creates a limiter allowing perMinute requests per minute per identity.
// Values below 1 are raised to 1.
func New(perMinute int) *Limiter {
	return NewWithClock(perMinute, time.Now)
}

// NewWithClock is New with an injected clock so tests control refill passage.
func NewWithClock(perMinute int, now func() time.Time) *Limiter {
	if perMinute < 1 {
		perMinute = 1
	}
	return &Limiter{
		buckets:   make(map[string]*rate.Limiter),
		perMinute: perMinute,
		now:       now,
	}
}

// Allow consumes one token from key's bucket if at least one whole token is
// available, reporting whether the request may proceed. A previously unseen
// key starts with a full bucket. Denied checks do not consume tokens; the
// partial refill accrued since the last check is retained either way.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = rate.NewLimiter(rate.Limit(float64(l.perMinute))/60.0, l.perMinute)
		l.buckets[key] = bucket
	}
	now := l.now()
	l.mu.Unlock()

	return bucket.AllowN(now, 1)
}

// Limit returns the configured per-minute capacity.
func (l *Limiter) Limit() int {
	return l.perMinute
}
