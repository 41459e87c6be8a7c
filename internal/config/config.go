package config

// KindTracingService is the document kind accepted by this service.
const KindTracingService = "TracingService"

// DefaultAmbassadorID is applied when a document omits ambassador_id and
// defaults are requested (single-gateway sources).
const DefaultAmbassadorID = "default"

// Recognized trace drivers. Unknown values are rejected by validation.
const (
	DriverZipkin    = "zipkin"
	DriverDatadog   = "datadog"
	DriverLightstep = "lightstep"
	DriverOTLP      = "otlp"
)

// KnownDrivers maps recognized driver names.
var KnownDrivers = map[string]bool{
	DriverZipkin:    true,
	DriverDatadog:   true,
	DriverLightstep: true,
	DriverOTLP:      true,
}

// TracingService is a single tracing configuration document. It selects
// the trace driver and collector for one gateway instance. The record is
// treated as immutable once validated; a new submission replaces it
// wholesale.
type TracingService struct {
	APIVersion   string        `json:"apiVersion,omitempty" yaml:"apiVersion,omitempty"`
	Kind         string        `json:"kind" yaml:"kind"`
	Name         string        `json:"name" yaml:"name"`
	Service      string        `json:"service" yaml:"service"`
	Driver       string        `json:"driver" yaml:"driver"`
	AmbassadorID string        `json:"ambassador_id" yaml:"ambassador_id"`
	Config       DriverOptions `json:"config,omitempty" yaml:"config,omitempty"`
}

// DriverOptions holds driver-specific flags.
type DriverOptions struct {
	TraceID128Bit     bool `json:"trace_id_128bit" yaml:"trace_id_128bit"`
	SharedSpanContext bool `json:"shared_span_context" yaml:"shared_span_context"`

	// SamplingRate is the fraction of requests to trace. Nil means the
	// driver default (sample everything).
	SamplingRate *float64 `json:"sampling,omitempty" yaml:"sampling,omitempty"`
}

// ApplyDefaults fills defaulted fields on a parsed document. It does not
// validate; a document can still fail validation after defaulting.
func (t *TracingService) ApplyDefaults() {
	if t.AmbassadorID == "" {
		t.AmbassadorID = DefaultAmbassadorID
	}
	if t.Driver == "" {
		t.Driver = DriverZipkin
	}
}

// SamplingRateOrDefault returns the configured sampling rate, or 1.0 when
// unset.
func (o DriverOptions) SamplingRateOrDefault() float64 {
	if o.SamplingRate == nil {
		return 1.0
	}
	return *o.SamplingRate
}

// Clone returns a deep copy of the document.
func (t *TracingService) Clone() *TracingService {
	if t == nil {
		return nil
	}
	clone := *t
	if t.Config.SamplingRate != nil {
		rate := *t.Config.SamplingRate
		clone.Config.SamplingRate = &rate
	}
	return &clone
}

// Equal reports whether two documents carry the same configuration.
func (t *TracingService) Equal(other *TracingService) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.APIVersion != other.APIVersion ||
		t.Kind != other.Kind ||
		t.Name != other.Name ||
		t.Service != other.Service ||
		t.Driver != other.Driver ||
		t.AmbassadorID != other.AmbassadorID ||
		t.Config.TraceID128Bit != other.Config.TraceID128Bit ||
		t.Config.SharedSpanContext != other.Config.SharedSpanContext {
		return false
	}
	return t.Config.SamplingRateOrDefault() == other.Config.SamplingRateOrDefault()
}
