//go:build property
// +build property

package canonicalize_test

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/bpsr-tools/crowddata/pkg/canonicalize"
)

// TestFingerprintDeterminism verifies the idempotency key is stable.
// Property: Fingerprint(env) == Fingerprint(env) for any payload, including
// a JSON round-trip of the payload (which scrambles map iteration order).
func TestFingerprintDeterminism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("fingerprint is stable across calls and round-trips", prop.ForAll(
		func(keys []string, values []string) bool {
			raw := make(map[string]any)
			for i := 0; i < len(keys) && i < len(values); i++ {
				if keys[i] != "" {
					raw[keys[i]] = values[i]
				}
			}

			env := canonicalize.NewEnvelope(nil, raw)
			fp1, err1 := canonicalize.Fingerprint(env)
			fp2, err2 := canonicalize.Fingerprint(env)
			if err1 != nil || err2 != nil {
				return false
			}
			if fp1 != fp2 {
				return false
			}

			// Round-trip through JSON to decouple from in-memory map identity.
			b, err := json.Marshal(raw)
			if err != nil {
				return false
			}
			var rawAgain map[string]any
			if err := json.Unmarshal(b, &rawAgain); err != nil {
				return false
			}
			fp3, err := canonicalize.Fingerprint(canonicalize.NewEnvelope(nil, rawAgain))
			if err != nil {
				return false
			}
			return fp1 == fp3
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
