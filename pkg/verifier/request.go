package verifier

import (
	"errors"
	"fmt"
	"time"

	"clinical-guardrails/guardrails/pkg/clinical"
	"clinical-guardrails/guardrails/pkg/compliance"
	"clinical-guardrails/guardrails/pkg/fhir"
)

// ErrNoArtifact is returned when a request has neither an AI output nor an
// extraction to verify.
var ErrNoArtifact = errors.New("request has no ai_output or extraction")

// ErrNoSubject is returned when a request names neither an inline patient
// and context nor a FHIR bundle.
var ErrNoSubject = errors.New("request needs patient and context, or a FHIR bundle")

// Request is one verification. The subject is either given inline
// (Patient and Context) or resolved from Bundle by PatientID. The artifact
// is either Output, or Extraction plus Transcript which are converted to
// an output first.
type Request struct {
	// RequestID correlates logs, spans and the audit record.
	RequestID string `json:"request_id,omitempty"`

	Patient *clinical.PatientProfile `json:"patient,omitempty"`
	Context *clinical.EMRContext     `json:"context,omitempty"`

	Bundle    *fhir.Bundle `json:"fhir_bundle,omitempty"`
	PatientID string       `json:"patient_id,omitempty"`

	Output     *clinical.AIGeneratedOutput     `json:"ai_output,omitempty"`
	Extraction *clinical.StructuredExtraction `json:"extraction,omitempty"`
	Transcript string                         `json:"transcript,omitempty"`
}

// Validate checks that the request names a subject and an artifact, and
// that inline models are well formed. Model errors wrap
// clinical.ErrValidation. The extraction is checked later: a malformed
// extraction is an extraction failure, reported as an alert.
func (r *Request) Validate() error {
	if r.Output == nil && r.Extraction == nil {
		return ErrNoArtifact
	}
	if r.Bundle == nil && (r.Patient == nil || r.Context == nil) {
		return ErrNoSubject
	}
	if r.Bundle != nil && r.Bundle.ResourceType != fhir.ResourceBundle {
		return fmt.Errorf("%w: fhir_bundle has resourceType %q", ErrNoSubject, r.Bundle.ResourceType)
	}
	if r.Bundle == nil {
		if err := r.Patient.Validate(); err != nil {
			return fmt.Errorf("patient: %w", err)
		}
		if err := r.Context.Validate(); err != nil {
			return fmt.Errorf("context: %w", err)
		}
	}
	if r.Output != nil {
		if err := r.Output.Validate(); err != nil {
			return fmt.Errorf("ai_output: %w", err)
		}
	}
	return nil
}

// output returns the artifact under verification.
func (r *Request) output() (clinical.AIGeneratedOutput, error) {
	if r.Output != nil {
		return *r.Output, nil
	}
	if err := r.Extraction.Validate(); err != nil {
		return clinical.AIGeneratedOutput{}, err
	}
	return compliance.OutputFromExtraction(*r.Extraction, r.Transcript), nil
}

// Response is the outcome of one verification.
type Response struct {
	// Outcome is the engine result, or a synthetic failure when the subject
	// or artifact could not be prepared.
	Outcome compliance.Outcome `json:"-"`

	// Result is Outcome rendered as a VerificationResult.
	Result clinical.VerificationResult `json:"result"`

	PatientID string `json:"patient_id"`
	VisitID   string `json:"visit_id"`

	// AuditID is the trace record id, empty when auditing is off or the
	// record was dropped.
	AuditID string `json:"audit_id,omitempty"`

	ProtocolVersion string        `json:"protocol_version,omitempty"`
	Duration        time.Duration `json:"duration"`

	// LowConfidence is set when the extraction had values below the
	// configured confidence threshold.
	LowConfidence bool `json:"low_confidence,omitempty"`
}
