// Guardrails is a deterministic compliance verifier for AI-generated
// clinical documentation.
//
// It checks an AI-produced summary against the patient record and a
// configurable set of medical protocols before the summary is filed:
//   - Date consistency with the encounter
//   - Protected health information leaks
//   - Sepsis protocol adherence
//   - Drug interaction, allergy and required-field protocol rules
//
// Usage:
//
//	# Validate a protocol file
//	guardrails protocols validate --file config/medical_protocols.yaml
//
//	# Verify a request and record the result
//	guardrails verify --request request.json
//
//	# Query the audit trail
//	guardrails audit query --outcome unsafe --format json
//
//	# Serve metrics and health endpoints with hot protocol reload
//	guardrails serve --config guardrails.yaml
package main

func main() {
	Execute()
}
