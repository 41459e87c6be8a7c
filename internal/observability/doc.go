// Package observability provides logging, metrics, and tracing
// functionality for the tracing configuration service.
//
// Logging is structured (zap behind the Logger interface), metrics are
// Prometheus collectors on a per-process custom registry, and tracing
// builds OpenTelemetry tracer providers from validated TracingService
// documents.
package observability
