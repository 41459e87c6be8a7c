package kube

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
	"k8s.io/client-go/tools/cache"

	"github.com/vyrodovalexey/avtraced/internal/observability"
	"github.com/vyrodovalexey/avtraced/internal/registry"
	"github.com/vyrodovalexey/avtraced/internal/util"
)

const annotationBlock = `
kind: TracingService
name: tracing
service: zipkin:9411
driver: zipkin
ambassador_id: 015-tracing
`

const annotationBlockInvalid = `
kind: TracingService
name: tracing
service: zipkin:9411
driver: jaeger
ambassador_id: 015-tracing
`

const annotationBlockMixed = `
kind: Mapping
name: probe
prefix: /healthz
---
kind: TracingService
name: tracing-east
service: zipkin:9411
driver: zipkin
ambassador_id: east
---
kind: TracingService
name: tracing-west
service: collector:4317
driver: otlp
ambassador_id: west
`

const annotationBlockNoID = `
kind: TracingService
name: tracing
service: zipkin:9411
driver: zipkin
`

// eventRecorder records applied/rejected submissions.
type eventRecorder struct {
	mu       sync.Mutex
	applied  []string
	rejected []string
}

func (r *eventRecorder) RecordConfigApplied(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied = append(r.applied, source)
}

func (r *eventRecorder) RecordConfigRejected(source, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, source+"/"+reason)
}

func annotatedService(ns, name, block string) *v1.Service {
	svc := &v1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: ns,
			Name:      name,
		},
	}
	if block != "" {
		svc.Annotations = map[string]string{ConfigAnnotation: block}
	}
	return svc
}

func TestOnce_AppliesAnnotatedServices(t *testing.T) {
	t.Parallel()

	client := fake.NewSimpleClientset(
		annotatedService("default", "zipkin", annotationBlock),
		annotatedService("default", "plain", ""),
	)

	reg := registry.New()
	rec := &eventRecorder{}
	syncer := NewSyncer(client, "default", reg, WithRecorder(rec))

	require.NoError(t, syncer.Once(context.Background()))

	doc, err := reg.Get("015-tracing")
	require.NoError(t, err)
	assert.Equal(t, "zipkin:9411", doc.Service)
	assert.Equal(t, []string{"kubernetes"}, rec.applied)
}

func TestOnAdd_MixedKinds(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	syncer := NewSyncer(fake.NewSimpleClientset(), "default", reg)

	syncer.onAdd(annotatedService("default", "gateway", annotationBlockMixed))

	assert.Equal(t, []string{"east", "west"}, reg.IDs())
}

func TestOnAdd_InvalidBlockRejected(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	rec := &eventRecorder{}
	syncer := NewSyncer(fake.NewSimpleClientset(), "default", reg, WithRecorder(rec))

	syncer.onAdd(annotatedService("default", "gateway", annotationBlockInvalid))

	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, []string{"kubernetes/validation"}, rec.rejected)
}

func TestOnAdd_MissingAmbassadorIDRejected(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	rec := &eventRecorder{}
	syncer := NewSyncer(fake.NewSimpleClientset(), "default", reg, WithRecorder(rec))

	syncer.onAdd(annotatedService("default", "gateway", annotationBlockNoID))

	// The block is not silently defaulted to the "default" instance.
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, []string{"kubernetes/validation"}, rec.rejected)
}

func TestOnUpdate_InvalidBlockKeepsPrevious(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	syncer := NewSyncer(fake.NewSimpleClientset(), "default", reg)

	syncer.onAdd(annotatedService("default", "gateway", annotationBlock))
	require.Equal(t, 1, reg.Len())

	syncer.onUpdate(nil, annotatedService("default", "gateway", annotationBlockInvalid))

	// The prior valid configuration stays authoritative.
	doc, err := reg.Get("015-tracing")
	require.NoError(t, err)
	assert.Equal(t, "zipkin:9411", doc.Service)
}

func TestOnUpdate_AnnotationRemoved(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	syncer := NewSyncer(fake.NewSimpleClientset(), "default", reg)

	syncer.onAdd(annotatedService("default", "gateway", annotationBlock))
	require.Equal(t, 1, reg.Len())

	syncer.onUpdate(nil, annotatedService("default", "gateway", ""))

	_, err := reg.Get("015-tracing")
	assert.True(t, errors.Is(err, util.ErrNotFound))
}

func TestOnDelete_RemovesOwnedEntries(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	syncer := NewSyncer(fake.NewSimpleClientset(), "default", reg)

	syncer.onAdd(annotatedService("default", "gateway", annotationBlockMixed))
	require.Equal(t, 2, reg.Len())

	// An unrelated service deletion removes nothing.
	syncer.onDelete(annotatedService("default", "other", ""))
	assert.Equal(t, 2, reg.Len())

	syncer.onDelete(annotatedService("default", "gateway", annotationBlockMixed))
	assert.Equal(t, 0, reg.Len())
}

// warnCountLogger counts Warn calls, discarding everything else.
type warnCountLogger struct {
	observability.Logger
	mu    sync.Mutex
	warns int
}

func (l *warnCountLogger) Warn(msg string, fields ...observability.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns++
}

func (l *warnCountLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.warns
}

func TestOnDelete_Tombstone(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	logger := &warnCountLogger{Logger: observability.NopLogger()}
	syncer := NewSyncer(fake.NewSimpleClientset(), "default", reg, WithLogger(logger))

	svc := annotatedService("default", "gateway", annotationBlock)
	syncer.onAdd(svc)
	require.Equal(t, 1, reg.Len())

	syncer.onDelete(cache.DeletedFinalStateUnknown{
		Key: "default/gateway",
		Obj: svc,
	})
	assert.Equal(t, 0, reg.Len())

	// A tombstone is a routine deletion, not an unexpected object.
	assert.Equal(t, 0, logger.count())
}
