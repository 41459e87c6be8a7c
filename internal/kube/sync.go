// Package kube syncs TracingService documents embedded in Kubernetes
// Service annotations into the tracing configuration registry.
//
// Gateways in the ambassador family carry their configuration in the
// getambassador.io/config annotation of ordinary Services: a multi-doc
// YAML block where each document declares its kind. This package watches
// Services, extracts the TracingService documents, validates them, and
// applies them to the registry. An invalid annotation block is logged
// and skipped; the prior valid configuration stays authoritative.
package kube

import (
	"context"
	"fmt"
	"sync"
	"time"

	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/cache"

	"github.com/vyrodovalexey/avtraced/internal/config"
	"github.com/vyrodovalexey/avtraced/internal/observability"
	"github.com/vyrodovalexey/avtraced/internal/registry"
)

// ConfigAnnotation is the Service annotation carrying embedded gateway
// configuration documents.
const ConfigAnnotation = "getambassador.io/config"

// metricsSource is the label value reported for kube-sourced submissions.
const metricsSource = "kubernetes"

// Recorder receives accept/reject events for configuration submissions.
// Satisfied by observability.Metrics.
type Recorder interface {
	RecordConfigApplied(source string)
	RecordConfigRejected(source, reason string)
}

// Syncer watches Services and applies annotation-embedded TracingService
// documents to the registry.
type Syncer struct {
	client   kubernetes.Interface
	ns       string
	registry *registry.Registry
	loader   *config.Loader
	logger   observability.Logger
	recorder Recorder

	// owned tracks which ambassador ids each Service contributed, so a
	// Service deletion removes exactly its own entries.
	owned   map[string][]string
	ownedMu sync.Mutex

	store      cache.Store
	controller cache.Controller
}

// Option is a functional option for configuring the syncer.
type Option func(*Syncer)

// WithLogger sets the logger for the syncer.
func WithLogger(logger observability.Logger) Option {
	return func(s *Syncer) {
		s.logger = logger
	}
}

// WithRecorder wires a metrics recorder for submissions.
func WithRecorder(r Recorder) Option {
	return func(s *Syncer) {
		s.recorder = r
	}
}

// NewSyncer creates a Service-annotation syncer for the given namespace.
// An empty namespace watches all namespaces.
func NewSyncer(client kubernetes.Interface, ns string, reg *registry.Registry, opts ...Option) *Syncer {
	s := &Syncer{
		client:   client,
		ns:       ns,
		registry: reg,
		loader:   config.NewLoader(),
		logger:   observability.NopLogger(),
		owned:    make(map[string][]string),
	}

	for _, opt := range opts {
		opt(s)
	}

	listWatch := cache.NewListWatchFromClient(
		s.client.CoreV1().RESTClient(),
		"services",
		s.ns,
		fields.Everything())

	s.store, s.controller = cache.NewInformer(
		listWatch,
		&v1.Service{},
		time.Duration(0),
		cache.ResourceEventHandlerFuncs{
			AddFunc:    s.onAdd,
			UpdateFunc: s.onUpdate,
			DeleteFunc: s.onDelete,
		})

	return s
}

// Once does a blocking one-shot synchronization of all Services in the
// watched namespace.
func (s *Syncer) Once(ctx context.Context) error {
	services, err := s.client.CoreV1().Services(s.ns).List(ctx, metav1.ListOptions{})
	if err != nil {
		return fmt.Errorf("failed to list services: %w", err)
	}

	for i := range services.Items {
		s.applyService(&services.Items[i])
	}

	return nil
}

// Run starts the informer and blocks until the context is cancelled.
func (s *Syncer) Run(ctx context.Context) {
	s.logger.Info("starting kubernetes service watch",
		observability.String("namespace", s.ns),
	)
	s.controller.Run(ctx.Done())
}

// HasSynced reports whether the informer has completed its initial list.
func (s *Syncer) HasSynced() bool {
	return s.controller.HasSynced()
}

func (s *Syncer) onAdd(obj interface{}) {
	if svc := s.toService(obj); svc != nil {
		s.applyService(svc)
	}
}

func (s *Syncer) onUpdate(_, obj interface{}) {
	if svc := s.toService(obj); svc != nil {
		s.applyService(svc)
	}
}

func (s *Syncer) onDelete(obj interface{}) {
	if tombstone, ok := obj.(cache.DeletedFinalStateUnknown); ok {
		obj = tombstone.Obj
	}
	if svc := s.toService(obj); svc != nil {
		s.removeService(serviceKey(svc))
	}
}

// toService converts an informer object to a Service.
func (s *Syncer) toService(obj interface{}) *v1.Service {
	svc, ok := obj.(*v1.Service)
	if !ok {
		s.logger.Warn("unexpected object type in service watch",
			observability.Any("object", fmt.Sprintf("%T", obj)),
		)
		return nil
	}
	return svc
}

// applyService extracts, validates, and stores the TracingService
// documents embedded in a Service annotation.
func (s *Syncer) applyService(svc *v1.Service) {
	key := serviceKey(svc)

	block, ok := svc.Annotations[ConfigAnnotation]
	if !ok || block == "" {
		// Annotation removed: drop whatever this Service contributed.
		s.removeService(key)
		return
	}

	docs, err := s.loader.Parse([]byte(block))
	if err != nil {
		s.reject(key, "parse", err)
		return
	}

	valid := make([]*config.TracingService, 0, len(docs))
	for _, doc := range docs {
		if err := config.Validate(doc); err != nil {
			s.reject(key, "validation", err)
			return
		}
		valid = append(valid, doc)
	}

	if len(valid) == 0 {
		s.removeService(key)
		return
	}

	ids := make([]string, 0, len(valid))
	for _, doc := range valid {
		if err := s.registry.Put(doc.AmbassadorID, doc); err != nil {
			s.reject(key, "store", err)
			return
		}
		ids = append(ids, doc.AmbassadorID)
	}

	s.ownedMu.Lock()
	s.owned[key] = ids
	s.ownedMu.Unlock()

	if s.recorder != nil {
		s.recorder.RecordConfigApplied(metricsSource)
	}

	s.logger.Info("applied tracing configuration from service annotation",
		observability.String("service", key),
		observability.Int("documents", len(valid)),
	)
}

// removeService deletes the registry entries a Service contributed.
func (s *Syncer) removeService(key string) {
	s.ownedMu.Lock()
	ids := s.owned[key]
	delete(s.owned, key)
	s.ownedMu.Unlock()

	for _, id := range ids {
		if err := s.registry.Delete(id); err != nil {
			s.logger.Warn("failed to remove tracing configuration",
				observability.String("service", key),
				observability.String("ambassador_id", id),
				observability.Error(err),
			)
		}
	}

	if len(ids) > 0 {
		s.logger.Info("removed tracing configuration for deleted service",
			observability.String("service", key),
			observability.Int("entries", len(ids)),
		)
	}
}

// reject logs and records a rejected annotation block.
func (s *Syncer) reject(key, reason string, err error) {
	s.logger.Error("rejected tracing configuration from service annotation",
		observability.String("service", key),
		observability.String("reason", reason),
		observability.Error(err),
	)
	if s.recorder != nil {
		s.recorder.RecordConfigRejected(metricsSource, reason)
	}
}

// serviceKey builds the namespace/name key for a Service.
func serviceKey(svc *v1.Service) string {
	return svc.Namespace + "/" + svc.Name
}
