package clinical

import (
	"errors"
	"fmt"
	"math"
)

// ErrValidation is the sentinel matched by every *ValidationError.
var ErrValidation = errors.New("clinical model validation failed")

// ValidationError describes a model field that is missing or malformed.
type ValidationError struct {
	Model   string
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: field %q: %s", e.Model, e.Field, e.Message)
}

// Unwrap returns ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(model, field, format string, args ...any) error {
	return &ValidationError{
		Model:   model,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

func checkConfidence(model, field string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return invalid(model, field, "must be within [0, 1], got %v", v)
	}
	return nil
}
