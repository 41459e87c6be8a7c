// Package registry holds the last valid tracing configuration for each
// gateway instance.
//
// The registry is an explicitly constructed object passed by reference,
// never an implicit singleton, so tests can instantiate independent
// registries. Writes replace a record wholesale; reads return a copy, so
// a reader never observes a partially updated record.
package registry

import (
	"sort"
	"sync"

	"github.com/vyrodovalexey/avtraced/internal/config"
	"github.com/vyrodovalexey/avtraced/internal/util"
)

// SizeReporter receives registry size updates after every mutation.
// Satisfied by observability.Metrics.
type SizeReporter interface {
	SetRegistrySize(n int)
}

// Registry stores the current tracing configuration per gateway
// instance, keyed by ambassador id.
type Registry struct {
	entries  map[string]*config.TracingService
	reporter SizeReporter
	mu       sync.RWMutex
}

// Option is a functional option for configuring the registry.
type Option func(*Registry)

// WithSizeReporter wires a metrics reporter for registry size.
func WithSizeReporter(r SizeReporter) Option {
	return func(reg *Registry) {
		reg.reporter = r
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string]*config.TracingService),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Put stores or replaces the configuration for a gateway instance. The
// stored record is a copy; later mutation of doc does not affect the
// registry.
func (r *Registry) Put(ambassadorID string, doc *config.TracingService) error {
	if ambassadorID == "" {
		return util.NewConfigError("ambassadorId", "ambassador id is required")
	}
	if doc == nil {
		return util.NewConfigError("", "document is nil")
	}

	stored := doc.Clone()

	r.mu.Lock()
	r.entries[ambassadorID] = stored
	size := len(r.entries)
	r.mu.Unlock()

	r.reportSize(size)
	return nil
}

// Get returns a copy of the configuration for a gateway instance, or
// util.ErrNotFound when none is stored.
func (r *Registry) Get(ambassadorID string) (*config.TracingService, error) {
	r.mu.RLock()
	doc, ok := r.entries[ambassadorID]
	r.mu.RUnlock()

	if !ok {
		return nil, util.NewNotFoundError(ambassadorID)
	}
	return doc.Clone(), nil
}

// Delete removes the configuration for a gateway instance. Deleting an
// absent id returns util.ErrNotFound.
func (r *Registry) Delete(ambassadorID string) error {
	r.mu.Lock()
	_, ok := r.entries[ambassadorID]
	if ok {
		delete(r.entries, ambassadorID)
	}
	size := len(r.entries)
	r.mu.Unlock()

	if !ok {
		return util.NewNotFoundError(ambassadorID)
	}
	r.reportSize(size)
	return nil
}

// List returns a snapshot of all stored configurations, ordered by
// ambassador id.
func (r *Registry) List() []*config.TracingService {
	r.mu.RLock()
	docs := make([]*config.TracingService, 0, len(r.entries))
	for _, doc := range r.entries {
		docs = append(docs, doc.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].AmbassadorID < docs[j].AmbassadorID
	})
	return docs
}

// IDs returns the sorted ambassador ids with a stored configuration.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Len returns the number of stored configurations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Replace swaps the full registry contents for the given documents,
// keyed by their ambassador id. Used by file reloads, where the file is
// the complete source of truth.
func (r *Registry) Replace(docs []*config.TracingService) {
	entries := make(map[string]*config.TracingService, len(docs))
	for _, doc := range docs {
		if doc == nil || doc.AmbassadorID == "" {
			continue
		}
		entries[doc.AmbassadorID] = doc.Clone()
	}

	r.mu.Lock()
	r.entries = entries
	size := len(r.entries)
	r.mu.Unlock()

	r.reportSize(size)
}

// reportSize forwards the registry size to the metrics reporter.
func (r *Registry) reportSize(n int) {
	if r.reporter != nil {
		r.reporter.SetRegistrySize(n)
	}
}
