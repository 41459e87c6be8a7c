package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	doc := &TracingService{
		Kind:    KindTracingService,
		Name:    "tracing",
		Service: "zipkin:9411",
	}
	doc.ApplyDefaults()

	assert.Equal(t, DefaultAmbassadorID, doc.AmbassadorID)
	assert.Equal(t, DriverZipkin, doc.Driver)
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	t.Parallel()

	doc := &TracingService{
		Kind:         KindTracingService,
		Name:         "tracing",
		Service:      "collector:4317",
		Driver:       DriverOTLP,
		AmbassadorID: "015-tracing",
	}
	doc.ApplyDefaults()

	assert.Equal(t, "015-tracing", doc.AmbassadorID)
	assert.Equal(t, DriverOTLP, doc.Driver)
}

func TestSamplingRateOrDefault(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.0, DriverOptions{}.SamplingRateOrDefault())

	rate := 0.25
	opts := DriverOptions{SamplingRate: &rate}
	assert.Equal(t, 0.25, opts.SamplingRateOrDefault())
}

func TestClone_DeepCopiesSamplingRate(t *testing.T) {
	t.Parallel()

	rate := 0.5
	doc := &TracingService{
		Kind:         KindTracingService,
		Name:         "tracing",
		Service:      "zipkin:9411",
		Driver:       DriverZipkin,
		AmbassadorID: "015-tracing",
		Config: DriverOptions{
			TraceID128Bit: true,
			SamplingRate:  &rate,
		},
	}

	clone := doc.Clone()
	require.NotNil(t, clone)
	require.NotSame(t, doc, clone)
	assert.True(t, doc.Equal(clone))

	*clone.Config.SamplingRate = 0.9
	assert.Equal(t, 0.5, *doc.Config.SamplingRate)
}

func TestClone_Nil(t *testing.T) {
	t.Parallel()

	var doc *TracingService
	assert.Nil(t, doc.Clone())
}

func TestEqual(t *testing.T) {
	t.Parallel()

	base := &TracingService{
		Kind:         KindTracingService,
		Name:         "tracing",
		Service:      "zipkin:9411",
		Driver:       DriverZipkin,
		AmbassadorID: "015-tracing",
	}

	assert.True(t, base.Equal(base.Clone()))

	other := base.Clone()
	other.Service = "zipkin:9412"
	assert.False(t, base.Equal(other))

	flipped := base.Clone()
	flipped.Config.SharedSpanContext = true
	assert.False(t, base.Equal(flipped))

	// An explicit 1.0 sampling rate equals the unset default.
	full := 1.0
	sampled := base.Clone()
	sampled.Config.SamplingRate = &full
	assert.True(t, base.Equal(sampled))

	assert.False(t, base.Equal(nil))
}
