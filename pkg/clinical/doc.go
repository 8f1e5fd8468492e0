// Package clinical defines the value types exchanged by the compliance core.
//
// Every verification request is built from three inputs:
//
//   - PatientProfile: identity and clinical risk facts from the EMR.
//   - EMRContext: the encounter window treated as ground truth.
//   - AIGeneratedOutput: the AI-produced artifact under verification.
//
// StructuredExtraction is the normalized extraction consumed by protocol
// checkers. ComplianceAlert and VerificationResult describe the outcome.
//
// Values are validated at construction with the New* functions or Validate
// and are never mutated by the core afterwards. Validation failures are
// reported as *ValidationError and match ErrValidation with errors.Is.
package clinical
