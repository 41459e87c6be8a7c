// Package config provides the TracingService configuration model for
// gateway tracing settings.
//
// This package defines the typed document, YAML loading with environment
// variable substitution, field-level validation, and file watching for
// hot reload. Parsing and validation are side-effect free; publishing an
// accepted document into the process-wide registry is the caller's
// responsibility.
package config
