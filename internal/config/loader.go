package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vyrodovalexey/avtraced/internal/util"
)

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// Loader handles TracingService document loading from files and readers.
// A source may carry several YAML documents; non-TracingService kinds are
// skipped so the loader can consume mixed annotation blocks.
type Loader struct {
	applyDefaults bool
}

// LoaderOption is a functional option for configuring the loader.
type LoaderOption func(*Loader)

// WithDefaults makes the loader fill defaulted fields on parsed
// documents. Only sources scoped to a single gateway instance should opt
// in; file and Kubernetes sources stay strict so a document missing
// ambassador_id is rejected by validation instead of silently claiming
// the default instance.
func WithDefaults() LoaderOption {
	return func(l *Loader) {
		l.applyDefaults = true
	}
}

// NewLoader creates a new configuration loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadFile loads all TracingService documents from a file path.
func LoadFile(path string) ([]*TracingService, error) {
	loader := NewLoader()
	return loader.Load(path)
}

// LoadReader loads all TracingService documents from an io.Reader.
func LoadReader(r io.Reader) ([]*TracingService, error) {
	loader := NewLoader()
	return loader.LoadFromReader(r)
}

// Load loads documents from a file path.
func (l *Loader) Load(path string) ([]*TracingService, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	data, err := os.ReadFile(absPath) //nolint:gosec // path is validated via filepath.Abs
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return l.Parse(data)
}

// LoadFromReader loads documents from an io.Reader.
func (l *Loader) LoadFromReader(r io.Reader) ([]*TracingService, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return l.Parse(data)
}

// Parse parses raw YAML into TracingService documents. Documents of other
// kinds are ignored; malformed YAML yields a ConfigError.
func (l *Loader) Parse(data []byte) ([]*TracingService, error) {
	content := l.substituteEnvVars(string(data))

	var docs []*TracingService
	decoder := yaml.NewDecoder(strings.NewReader(content))

	for {
		var doc TracingService
		err := decoder.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, util.NewConfigErrorWithCause("", "failed to parse YAML", err)
		}

		// Empty documents ("---" separators with no content) decode to
		// the zero value; skip them along with foreign kinds.
		if doc.Kind == "" && doc.Name == "" && doc.Service == "" {
			continue
		}
		if doc.Kind != "" && doc.Kind != KindTracingService {
			continue
		}

		if l.applyDefaults {
			doc.ApplyDefaults()
		}
		docs = append(docs, &doc)
	}

	return docs, nil
}

// ParseOne parses raw YAML expected to contain exactly one TracingService
// document.
func (l *Loader) ParseOne(data []byte) (*TracingService, error) {
	docs, err := l.Parse(data)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, util.NewConfigError("kind", "no TracingService document found")
	}
	if len(docs) > 1 {
		return nil, util.NewConfigError("", fmt.Sprintf("expected one TracingService document, got %d", len(docs)))
	}
	return docs[0], nil
}

// substituteEnvVars replaces ${VAR} and ${VAR:-default} patterns with
// environment variable values.
func (l *Loader) substituteEnvVars(content string) string {
	// Handle escaped dollar signs first
	content = strings.ReplaceAll(content, "$$", "\x00ESCAPED_DOLLAR\x00")

	result := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		defaultValue := ""
		if len(submatches) >= 3 {
			defaultValue = submatches[2]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return defaultValue
	})

	// Restore escaped dollar signs
	result = strings.ReplaceAll(result, "\x00ESCAPED_DOLLAR\x00", "$")

	return result
}

// ResolveConfigPath resolves a configuration file path, checking common
// locations.
func ResolveConfigPath(path string) (string, error) {
	// If path is absolute and exists, use it
	if filepath.IsAbs(path) {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		return "", fmt.Errorf("config file not found: %s", path)
	}

	// Check relative to current directory
	if _, err := os.Stat(path); err == nil {
		return filepath.Abs(path)
	}

	// Check common locations
	etcPath := filepath.Join(string(filepath.Separator), "etc", "avtraced")
	commonPaths := []string{
		filepath.Join("configs", path),
		filepath.Join(etcPath, path),
		filepath.Join(os.Getenv("HOME"), ".avtraced", path),
	}

	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return filepath.Abs(p)
		}
	}

	return "", fmt.Errorf("config file not found: %s", path)
}
