package protocols

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingVersion is returned when the version key is absent.
	ErrMissingVersion = errors.New("configuration must have a 'version' field")

	// ErrMissingRules is returned when the rules key is absent.
	ErrMissingRules = errors.New("configuration must have a 'rules' field")

	// ErrUnknownSeverity is returned for severities outside CRITICAL|HIGH|WARNING|INFO.
	ErrUnknownSeverity = errors.New("unknown protocol severity")

	// ErrUnsupportedVersion is returned when the version is outside SupportedVersions.
	ErrUnsupportedVersion = errors.New("unsupported configuration version")

	// ErrSchemaViolation is returned when the document does not match the schema.
	ErrSchemaViolation = errors.New("configuration does not match schema")

	// ErrInvalidPattern is returned when a rule pattern cannot be decoded.
	ErrInvalidPattern = errors.New("invalid rule pattern")
)

// ConfigError describes why a protocol configuration failed to load.
type ConfigError struct {
	// Path is the file path, empty when parsing bytes.
	Path string

	// Field locates the offending element, e.g. "rules.allergy_checks[0].severity".
	Field string

	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	msg := "protocol config"
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Field != "" {
		msg += fmt.Sprintf(": %s", e.Field)
	}
	msg += ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

func configErr(field string, cause error, format string, args ...any) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}
