package telemetry

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_DisabledWithoutEndpoint(t *testing.T) {
	p, err := Setup(context.Background(), Config{}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	assert.Nil(t, p.meterProvider)
	assert.Nil(t, p.tracerProvider)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSetup_WithEndpoint(t *testing.T) {
	// Exporters connect lazily, so no collector is needed.
	p, err := Setup(context.Background(), Config{OTLPEndpoint: "localhost:4317", Insecure: true}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	require.NotNil(t, p.meterProvider)
	require.NotNil(t, p.tracerProvider)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = p.Shutdown(ctx)
}
