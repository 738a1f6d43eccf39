// Package adapters normalizes third-party telemetry payloads into the
// canonical metadata shape used for fingerprinting and querying.
//
// Adapters are pure: the same payload always yields the same metadata, and
// the input is never mutated. Fields absent from the payload are simply
// omitted from the output, so normalization cannot fail.
package adapters

import (
	"strings"
)

// Source identifiers accepted at the ingest boundary.
const (
	SourceBPTimer  = "bp_timer"
	SourceBPSRLogs = "bpsr_logs"
	SourceManual   = "manual"
	SourceOther    = "other"
)

// Category values the adapters collapse event classifications into.
const (
	CategoryCombat    = "combat"
	CategoryHeal      = "heal"
	CategoryBossEvent = "boss_event"
	CategoryTrade     = "trade"
)

// Adapter extracts source-specific metadata from a raw payload.
type Adapter interface {
	Source() string
	Normalize(payload map[string]any) map[string]any
}

// Registry dispatches normalization by source tag. Sources without a
// dedicated adapter (manual, other) normalize to an empty mapping.
type Registry struct {
	adapters map[string]Adapter
	allowed  map[string]struct{}
}

// NewRegistry returns a registry with the built-in adapters and the full
// allowed source set registered.
func NewRegistry() *Registry {
	r := &Registry{
		adapters: make(map[string]Adapter),
		allowed:  make(map[string]struct{}),
	}
	for _, src := range []string{SourceBPTimer, SourceBPSRLogs, SourceManual, SourceOther} {
		r.allowed[src] = struct{}{}
	}
	r.register(BPTimer{})
	r.register(BPSRLogs{})
	return r
}

func (r *Registry) register(a Adapter) {
	r.adapters[a.Source()] = a
}

// Allowed reports whether source is in the accepted set. Sources outside it
// must be rejected before normalization is attempted.
func (r *Registry) Allowed(source string) bool {
	_, ok := r.allowed[source]
	return ok
}

// Normalize applies the adapter registered for source. Allowed sources
// without an adapter yield an empty mapping. Never fails.
func (r *Registry) Normalize(source string, payload map[string]any) map[string]any {
	if a, ok := r.adapters[source]; ok {
		return a.Normalize(payload)
	}
	return map[string]any{}
}

// firstValue returns the first non-nil value among the aliased keys.
func firstValue(payload map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := payload[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// firstString returns the first non-empty string among the aliased keys.
func firstString(payload map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := payload[k].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

func lowerString(v any) string {
	s, _ := v.(string)
	return strings.ToLower(s)
}
