package fhir

import (
	"errors"
	"fmt"
)

var (
	// ErrPatientNotFound is returned when the bundle has no matching Patient.
	ErrPatientNotFound = errors.New("patient not found in bundle")

	// ErrEncounterNotFound is returned when the patient has no Encounter.
	ErrEncounterNotFound = errors.New("encounter not found in bundle")

	// ErrInvalidBundle is returned for documents that are not a FHIR Bundle.
	ErrInvalidBundle = errors.New("invalid FHIR bundle")
)

// MappingError describes a resource that could not be mapped.
type MappingError struct {
	Resource string
	ID       string
	Field    string
	Message  string
	Cause    error
}

func (e *MappingError) Error() string {
	msg := fmt.Sprintf("fhir: %s", e.Resource)
	if e.ID != "" {
		msg += "/" + e.ID
	}
	if e.Field != "" {
		msg += "." + e.Field
	}
	msg += ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *MappingError) Unwrap() error {
	return e.Cause
}
