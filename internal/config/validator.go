package config

import (
	"fmt"
	"strings"

	"github.com/vyrodovalexey/avtraced/internal/util"
)

// ValidationError represents a configuration validation error for a
// single field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// Is checks if the error matches the target.
func (e *ValidationError) Is(target error) bool {
	if target == util.ErrConfigInvalid {
		return true
	}
	_, ok := target.(*ValidationError)
	return ok
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Is checks if the error matches the target.
func (e ValidationErrors) Is(target error) bool {
	if target == util.ErrConfigInvalid {
		return true
	}
	_, ok := target.(ValidationErrors)
	return ok
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// HasField returns true if any error refers to the given field.
func (e ValidationErrors) HasField(field string) bool {
	for _, err := range e {
		if err.Field == field {
			return true
		}
	}
	return false
}

// Validator validates TracingService documents.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// Validate validates a single TracingService document. All invalid
// fields are reported, not just the first. The document is not modified.
func Validate(doc *TracingService) error {
	v := NewValidator()
	return v.Validate(doc)
}

// Validate validates the document and returns any errors.
func (v *Validator) Validate(doc *TracingService) error {
	v.errors = make(ValidationErrors, 0)

	if doc == nil {
		v.addError("", "document is nil")
		return v.errors
	}

	v.validateKind(doc)
	v.validateName(doc)
	v.validateService(doc)
	v.validateDriver(doc)
	v.validateAmbassadorID(doc)
	v.validateOptions(&doc.Config)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

// validateKind validates the document kind.
func (v *Validator) validateKind(doc *TracingService) {
	if doc.Kind == "" {
		v.addError("kind", "kind is required")
	} else if doc.Kind != KindTracingService {
		v.addError("kind", fmt.Sprintf("kind must be %q, got %q", KindTracingService, doc.Kind))
	}
}

// validateName validates the document name.
func (v *Validator) validateName(doc *TracingService) {
	if err := util.ValidateNonEmpty(doc.Name, "name"); err != nil {
		v.addError("name", err.Error())
	}
}

// validateService validates the collector reference.
func (v *Validator) validateService(doc *TracingService) {
	if doc.Service == "" {
		v.addError("service", "collector service is required")
		return
	}
	if err := util.ValidateHostPort(doc.Service); err != nil {
		v.addError("service", err.Error())
	}
}

// validateDriver validates the trace driver against the recognized set.
func (v *Validator) validateDriver(doc *TracingService) {
	if doc.Driver == "" {
		v.addError("driver", "driver is required")
		return
	}
	if !KnownDrivers[doc.Driver] {
		v.addError("driver", fmt.Sprintf(
			"unknown driver %q, must be one of: %s, %s, %s, %s",
			doc.Driver, DriverZipkin, DriverDatadog, DriverLightstep, DriverOTLP))
	}
}

// validateAmbassadorID validates the owning gateway instance id.
func (v *Validator) validateAmbassadorID(doc *TracingService) {
	if strings.TrimSpace(doc.AmbassadorID) == "" {
		v.addError("ambassadorId", "ambassador_id is required")
	}
}

// validateOptions validates driver flags.
func (v *Validator) validateOptions(opts *DriverOptions) {
	if opts.SamplingRate != nil {
		if err := util.ValidateSamplingRate(*opts.SamplingRate); err != nil {
			v.addError("config.sampling", err.Error())
		}
	}
}

// addError adds a validation error.
func (v *Validator) addError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}
