package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors matched by errors.Is.
var (
	// ErrInvalidModel is matched by every model validation failure.
	ErrInvalidModel = errors.New("gql2sql: invalid model")
	// ErrConfiguration is matched by type table / option failures.
	ErrConfiguration = errors.New("gql2sql: configuration error")
)

// Validation codes.
const (
	CodeUnknownType             = "unknown_type"
	CodeUnknownTarget           = "unknown_target"
	CodeDuplicateEntity         = "duplicate_entity"
	CodeDuplicateField          = "duplicate_field"
	CodeDuplicateColumn         = "duplicate_column"
	CodeMissingIdentity         = "missing_identity"
	CodeAmbiguousForeignKey     = "ambiguous_foreign_key"
	CodeAmbiguousRelation       = "ambiguous_relation"
	CodeMixedCardinality        = "mixed_cardinality"
	CodeIncompatibleCardinality = "incompatible_cardinality"
	CodeInverseMismatch         = "inverse_mismatch"
	CodeJunctionCollision       = "junction_collision"
	CodeOnDeleteUnknown         = "on_delete_unknown"
	CodeRequiredSetNull         = "required_conflicts_on_delete"
	CodeEnumEmpty               = "enum_empty"
	CodeUniqueUnknownField      = "unique_unknown_field"
)

// ValidationError reports a self-inconsistent model. Entity and Field name the
// offending pair.
type ValidationError struct {
	Entity  string `json:"entity"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("gql2sql: invalid model")
	if e.Entity != "" {
		b.WriteString(" at ")
		b.WriteString(e.Entity)
		if e.Field != "" {
			b.WriteString(".")
			b.WriteString(e.Field)
		}
	}
	if e.Code != "" {
		b.WriteString(" [")
		b.WriteString(e.Code)
		b.WriteString("]")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Is reports whether target is ErrInvalidModel.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidModel }

func invalid(entity, field, code, format string, args ...any) *ValidationError {
	return &ValidationError{Entity: entity, Field: field, Code: code, Message: fmt.Sprintf(format, args...)}
}

// ValidationErrors is a list of lint findings.
type ValidationErrors []*ValidationError

// Error implements the error interface.
func (es ValidationErrors) Error() string {
	switch len(es) {
	case 0:
		return "gql2sql: no validation errors"
	case 1:
		return es[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "gql2sql: %d model validation errors:", len(es))
	for _, e := range es {
		b.WriteString("\n  - ")
		b.WriteString(e.Error())
	}
	return b.String()
}

// Is reports whether target is ErrInvalidModel.
func (es ValidationErrors) Is(target error) bool { return target == ErrInvalidModel }

// Unwrap exposes the individual findings to errors.As.
func (es ValidationErrors) Unwrap() []error {
	out := make([]error, len(es))
	for i, e := range es {
		out[i] = e
	}
	return out
}

// ConfigError reports missing or malformed engine configuration.
type ConfigError struct {
	Option  string
	Value   any
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("gql2sql: config error for %q (value: %v): %s", e.Option, e.Value, e.Message)
	}
	return fmt.Sprintf("gql2sql: config error for %q: %s", e.Option, e.Message)
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }

// NewConfigError creates a new ConfigError.
func NewConfigError(option string, value any, message string) *ConfigError {
	return &ConfigError{Option: option, Value: value, Message: message}
}

// IsValidationError reports whether err is (or wraps) a model validation error.
func IsValidationError(err error) bool { return errors.Is(err, ErrInvalidModel) }

// IsConfigError reports whether err is (or wraps) a configuration error.
func IsConfigError(err error) bool { return errors.Is(err, ErrConfiguration) }
