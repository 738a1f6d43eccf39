package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestNew_DisabledProviderIsInert(t *testing.T) {
	ctx := context.Background()

	p, err := New(ctx, &Config{Enabled: false})
	require.NoError(t, err)

	// Recording on a disabled provider must be safe no-ops.
	p.RecordRequest(ctx)
	p.RecordError(ctx, errors.New("boom"))

	opCtx, done := p.TrackOperation(ctx, "ingest.submit",
		attribute.String("source", "bp_timer"),
	)
	assert.NotNil(t, opCtx)
	done(errors.New("boom"))

	assert.NoError(t, p.Shutdown(ctx))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "crowddata", cfg.ServiceName)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 1.0, cfg.SampleRate)
}
