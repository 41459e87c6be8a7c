// Package admin exposes the tracing configuration registry over HTTP.
//
// The admin API serves reads and writes of per-gateway tracing
// configuration, the ambassador probe endpoints, and Prometheus metrics.
// Write submissions go through the same parse and validate pipeline as
// file and Kubernetes sources; a rejected submission never touches the
// registry.
package admin

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/avtraced/internal/config"
	"github.com/vyrodovalexey/avtraced/internal/observability"
	"github.com/vyrodovalexey/avtraced/internal/registry"
	"github.com/vyrodovalexey/avtraced/internal/util"
)

// Probe endpoints, kept compatible with the ambassador defaults.
const (
	LivenessPath  = "/ambassador/v0/check_alive"
	ReadinessPath = "/ambassador/v0/check_ready"
)

// metricsSource is the label value reported for admin API submissions.
const metricsSource = "admin"

// maxBodyBytes bounds PUT request bodies. Tracing documents are tiny;
// anything larger is a client error.
const maxBodyBytes = 64 * 1024

// Server is the admin HTTP server.
type Server struct {
	engine   *gin.Engine
	registry *registry.Registry
	loader   *config.Loader
	logger   observability.Logger
	metrics  *observability.Metrics
	server   *http.Server
	ready    func() bool
}

// Option is a functional option for configuring the server.
type Option func(*Server)

// WithLogger sets the logger for the server.
func WithLogger(logger observability.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics wires the Prometheus metrics instance. Enables the
// /metrics endpoint and request instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithReadinessCheck sets the readiness probe check. When unset, the
// server is ready as soon as it accepts connections.
func WithReadinessCheck(ready func() bool) Option {
	return func(s *Server) {
		s.ready = ready
	}
}

// NewServer creates the admin server around a registry.
func NewServer(reg *registry.Registry, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine:   gin.New(),
		registry: reg,
		// PUT bodies are scoped to a single gateway instance by the
		// request path, so defaulting is safe here; the file and kube
		// sources parse strictly.
		loader: config.NewLoader(config.WithDefaults()),
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(requestIDMiddleware())
	s.engine.Use(accessLogMiddleware(s.logger))
	if s.metrics != nil {
		s.engine.Use(metricsMiddleware(s.metrics))
	}

	s.registerRoutes()

	return s
}

// registerRoutes wires all admin endpoints.
func (s *Server) registerRoutes() {
	s.engine.GET(LivenessPath, s.handleAlive)
	s.engine.GET(ReadinessPath, s.handleReady)

	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := s.engine.Group("/v1")
	v1.GET("/tracing", s.handleList)
	v1.GET("/tracing/:ambassadorID", s.handleGet)
	v1.PUT("/tracing/:ambassadorID", s.handlePut)
	v1.DELETE("/tracing/:ambassadorID", s.handleDelete)
}

// Engine returns the underlying gin engine, for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start begins serving on the given address. Blocks until the listener
// fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("admin server listening",
		observability.String("addr", addr),
	)

	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// handleAlive serves the liveness probe.
func (s *Server) handleAlive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// handleReady serves the readiness probe.
func (s *Server) handleReady(c *gin.Context) {
	if s.ready != nil && !s.ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// handleList returns all stored configurations.
func (s *Server) handleList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"tracingServices": s.registry.List(),
	})
}

// handleGet returns the configuration for one gateway instance.
func (s *Server) handleGet(c *gin.Context) {
	id := c.Param("ambassadorID")

	doc, err := s.registry.Get(id)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":        "not found",
				"ambassadorId": id,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, doc)
}

// handlePut accepts a raw TracingService document and stores it under
// the path id. The body must parse and validate; the document's
// ambassador_id must match the path id when set.
func (s *Server) handlePut(c *gin.Context) {
	id := c.Param("ambassadorID")

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	if len(body) > maxBodyBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
		return
	}

	doc, err := s.loader.ParseOne(body)
	if err != nil {
		s.rejectSubmission(c, "parse", err)
		return
	}

	// A document defaulted to "default" adopts the path id; an explicit
	// mismatch is a client error.
	if doc.AmbassadorID == config.DefaultAmbassadorID && id != config.DefaultAmbassadorID {
		doc.AmbassadorID = id
	}
	if doc.AmbassadorID != id {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "ambassador_id does not match request path",
			"field": "ambassadorId",
		})
		return
	}

	if err := config.Validate(doc); err != nil {
		s.rejectSubmission(c, "validation", err)
		return
	}

	if err := s.registry.Put(doc.AmbassadorID, doc); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if s.metrics != nil {
		s.metrics.RecordConfigApplied(metricsSource)
	}

	s.logger.Info("stored tracing configuration",
		observability.String("ambassador_id", doc.AmbassadorID),
		observability.String("driver", doc.Driver),
		observability.String("service", doc.Service),
	)

	c.JSON(http.StatusOK, doc)
}

// handleDelete removes the configuration for one gateway instance.
func (s *Server) handleDelete(c *gin.Context) {
	id := c.Param("ambassadorID")

	if err := s.registry.Delete(id); err != nil {
		if errors.Is(err, util.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":        "not found",
				"ambassadorId": id,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

// rejectSubmission reports a parse or validation failure to the client
// with per-field detail when available.
func (s *Server) rejectSubmission(c *gin.Context, reason string, err error) {
	if s.metrics != nil {
		s.metrics.RecordConfigRejected(metricsSource, reason)
	}

	var verrs config.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]gin.H, 0, len(verrs))
		for _, verr := range verrs {
			fields = append(fields, gin.H{
				"field":   verr.Field,
				"message": verr.Message,
			})
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "validation failed",
			"fields": fields,
		})
		return
	}

	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
