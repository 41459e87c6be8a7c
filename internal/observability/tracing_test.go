package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewTracer_Disabled(t *testing.T) {
	t.Parallel()

	tracer, err := NewTracer(TracerConfig{
		ServiceName: "avtraced",
		Enabled:     false,
	})
	require.NoError(t, err)
	require.NotNil(t, tracer)

	ctx, span := tracer.StartSpan(context.Background(), "noop")
	require.NotNil(t, span)
	span.End()

	assert.NotNil(t, SpanFromContext(ctx))
	assert.NoError(t, tracer.Shutdown(context.Background()))
}

func TestNewTracer_Zipkin(t *testing.T) {
	t.Parallel()

	cfg := TracerConfig{
		ServiceName:   "avtraced",
		Driver:        TraceDriverZipkin,
		Endpoint:      "zipkin:9411",
		SamplingRate:  1.0,
		TraceID128Bit: true,
		Enabled:       true,
	}

	tracer, err := NewTracer(cfg)
	require.NoError(t, err)
	require.NotNil(t, tracer)
	assert.Equal(t, cfg, tracer.Config())

	// No collector is running; shutdown must still succeed without
	// spans in flight.
	assert.NoError(t, tracer.Shutdown(context.Background()))
}

func TestNewExporter_UnsupportedDriver(t *testing.T) {
	t.Parallel()

	_, err := newExporter(TracerConfig{Driver: "jaeger"})
	assert.Error(t, err)
}

func TestNewExporter_OTLPDrivers(t *testing.T) {
	t.Parallel()

	for _, driver := range []string{TraceDriverDatadog, TraceDriverLightstep, TraceDriverOTLP} {
		exporter, err := newExporter(TracerConfig{
			Driver:   driver,
			Endpoint: "collector:4317",
		})
		require.NoError(t, err, "driver %q", driver)
		require.NotNil(t, exporter)
		_ = exporter.Shutdown(context.Background())
	}
}

func TestCreateSampler(t *testing.T) {
	t.Parallel()

	assert.Equal(t, sdktrace.AlwaysSample().Description(), createSampler(1.0).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), createSampler(1.5).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), createSampler(0).Description())
	assert.Equal(t,
		sdktrace.TraceIDRatioBased(0.5).Description(),
		createSampler(0.5).Description())
}
