package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestNewSpanCarriesTraceID(t *testing.T) {
	prev := Tracer
	t.Cleanup(func() { Tracer = prev })

	shutdown, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "stdout", Environment: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	span, ctx := NewSpan(context.Background(), "ingest.step", attribute.String("community", "test"))
	span.SetError(errors.New("feed unavailable"))
	span.SetError(nil)
	span.End()

	traceID, ok := ctx.Value(TraceIDKey).(string)
	require.True(t, ok)
	assert.Len(t, traceID, 32)
}
