package config

import (
	"github.com/vyrodovalexey/avtraced/internal/observability"
)

// TracerConfigFor flattens a validated TracingService document into the
// tracer configuration consumed by observability.NewTracer. The document
// should have passed Validate; no checks are repeated here.
func TracerConfigFor(doc *TracingService) observability.TracerConfig {
	if doc == nil {
		return observability.TracerConfig{}
	}

	return observability.TracerConfig{
		ServiceName:       doc.Name,
		Driver:            doc.Driver,
		Endpoint:          doc.Service,
		SamplingRate:      doc.Config.SamplingRateOrDefault(),
		TraceID128Bit:     doc.Config.TraceID128Bit,
		SharedSpanContext: doc.Config.SharedSpanContext,
		Enabled:           true,
	}
}
