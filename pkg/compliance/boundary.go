package compliance

import (
	"fmt"

	"clinical-guardrails/guardrails/pkg/clinical"
	"clinical-guardrails/guardrails/pkg/result"
)

// Rule identifiers for failures of collaborators outside the engine.
const (
	RulePatientNotFound  = "FHIR_PATIENT_NOT_FOUND"
	RuleExtractionFailed = "EXTRACTION_FAILED"
	RuleWorkflowError    = "WORKFLOW_ERROR"
)

// CollaboratorFailure wraps a single synthetic critical alert in a failure.
func CollaboratorFailure(ruleID, field, message string) Outcome {
	return result.Failure[clinical.VerificationResult]([]clinical.ComplianceAlert{{
		RuleID:   ruleID,
		Message:  message,
		Severity: clinical.SeverityCritical,
		Field:    field,
	}})
}

// PatientNotFound is the failure for a patient or encounter the EMR cannot supply.
func PatientNotFound(patientID string, err error) Outcome {
	msg := fmt.Sprintf("Patient %s not found in FHIR system", patientID)
	if err != nil {
		msg += ": " + err.Error()
	}
	return CollaboratorFailure(RulePatientNotFound, "patient_id", msg)
}

// ExtractionFailed is the failure for a transcript that could not be extracted.
func ExtractionFailed(err error) Outcome {
	return CollaboratorFailure(RuleExtractionFailed, "transcript",
		fmt.Sprintf("Failed to extract structured data: %v", err))
}

// WorkflowError is the failure for any other error around the engine.
func WorkflowError(err error) Outcome {
	return CollaboratorFailure(RuleWorkflowError, "workflow",
		fmt.Sprintf("Verification workflow failed: %v", err))
}

// Resolve renders an Outcome as a VerificationResult. Failures become unsafe
// with a zero score and their alerts.
func Resolve(o Outcome) clinical.VerificationResult {
	return result.Fold(o,
		func(v clinical.VerificationResult) clinical.VerificationResult { return v },
		func(alerts []clinical.ComplianceAlert) clinical.VerificationResult {
			return clinical.VerificationResult{IsSafeToFile: false, Score: 0, Alerts: alerts}
		},
	)
}
