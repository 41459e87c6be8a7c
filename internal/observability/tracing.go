package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	zipkinexporter "go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
)

// Exporter timeout and reconnection defaults.
const (
	// DefaultOTLPTimeout is the default timeout for OTLP exporter operations.
	DefaultOTLPTimeout = 10 * time.Second

	// DefaultOTLPReconnectionPeriod is the default reconnection period for
	// the OTLP gRPC connection.
	DefaultOTLPReconnectionPeriod = 10 * time.Second
)

// Trace driver names accepted by the tracer initializer. These mirror
// the driver enum of the configuration model; the mapping is duplicated
// here to keep this package free of a config dependency.
const (
	TraceDriverZipkin    = "zipkin"
	TraceDriverDatadog   = "datadog"
	TraceDriverLightstep = "lightstep"
	TraceDriverOTLP      = "otlp"
)

// TracerConfig describes how to export spans for one gateway instance.
// It is the flattened form of a validated TracingService document.
type TracerConfig struct {
	ServiceName       string
	Driver            string
	Endpoint          string
	SamplingRate      float64
	TraceID128Bit     bool
	SharedSpanContext bool
	Enabled           bool
}

// Tracer wraps OpenTelemetry tracing functionality.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	config   TracerConfig
}

// NewTracer creates a tracer for the given configuration. Driver zipkin
// exports over the Zipkin v2 HTTP API; datadog, lightstep, and otlp all
// speak OTLP gRPC to their respective collectors.
func NewTracer(cfg TracerConfig) (*Tracer, error) {
	if !cfg.Enabled {
		return &Tracer{
			config: cfg,
			tracer: otel.Tracer(cfg.ServiceName),
		}, nil
	}

	exporter, err := newExporter(cfg)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			attribute.Bool("trace.shared_span_context", cfg.SharedSpanContext),
		),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(createSampler(cfg.SamplingRate)),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Tracer{
		provider: provider,
		tracer:   provider.Tracer(cfg.ServiceName),
		config:   cfg,
	}, nil
}

// newExporter builds the span exporter selected by the driver.
func newExporter(cfg TracerConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Driver {
	case TraceDriverZipkin:
		return zipkinexporter.New(
			fmt.Sprintf("http://%s/api/v2/spans", cfg.Endpoint),
		)
	case TraceDriverDatadog, TraceDriverLightstep, TraceDriverOTLP:
		return newOTLPExporter(cfg.Endpoint)
	default:
		return nil, fmt.Errorf("unsupported trace driver: %s", cfg.Driver)
	}
}

// newOTLPExporter builds an OTLP gRPC exporter for the given endpoint.
func newOTLPExporter(endpoint string) (*otlptrace.Exporter, error) {
	return otlptracegrpc.New(
		context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithTimeout(DefaultOTLPTimeout),
		otlptracegrpc.WithReconnectionPeriod(DefaultOTLPReconnectionPeriod),
	)
}

// createSampler creates a sampler based on the sampling rate.
func createSampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Shutdown shuts down the tracer.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider != nil {
		return t.provider.Shutdown(ctx)
	}
	return nil
}

// StartSpan starts a new span.
func (t *Tracer) StartSpan(
	ctx context.Context,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// Config returns the configuration the tracer was built from.
func (t *Tracer) Config() TracerConfig {
	return t.config
}

// SpanFromContext returns the span from context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}
