// Package canonicalize produces the deterministic serialization and
// fingerprint that the ingestion pipeline uses as its idempotency key.
package canonicalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Envelope is the durable {normalized, raw} structure persisted with every
// report. Field names are part of the storage contract: renaming them would
// invalidate every historical fingerprint.
type Envelope struct {
	Normalized map[string]any `json:"normalized"`
	Raw        map[string]any `json:"raw"`
}

// NewEnvelope pairs adapter output with the untouched raw payload. Nil maps
// are replaced with empty ones so the canonical form is always an object,
// never null.
func NewEnvelope(normalized, raw map[string]any) Envelope {
	if normalized == nil {
		normalized = map[string]any{}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return Envelope{Normalized: normalized, Raw: raw}
}

// Canonical returns the RFC 8785 (JCS) canonical JSON representation of v:
// keys sorted lexicographically at every nesting level, no insignificant
// whitespace, ES6-stable number formatting.
func Canonical(v any) ([]byte, error) {
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: marshal: %w", err)
	}
	out, err := jcs.Transform(intermediate)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: transform: %w", err)
	}
	return out, nil
}

// Fingerprint returns the lowercase hex SHA-256 digest of the envelope's
// canonical form. Identical logical envelopes hash identically regardless of
// incidental key ordering in the raw payload, across process restarts.
// Ingestion time is deliberately excluded so resubmission of the same event
// is recognized as a duplicate.
func Fingerprint(env Envelope) (string, error) {
	b, err := Canonical(env)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
