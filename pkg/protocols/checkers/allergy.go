package checkers

import (
	"clinical-guardrails/guardrails/pkg/clinical"
	"clinical-guardrails/guardrails/pkg/protocols"
	"clinical-guardrails/guardrails/pkg/protocols/matcher"
)

// AllergyChecker fires when a patient allergy and a conflicting extracted
// medication are both present.
type AllergyChecker struct {
	base
	allergies   matcher.AllergyMatcher
	medications matcher.MedicationMatcher
}

// NewAllergyChecker returns a checker for the allergy_checks group.
func NewAllergyChecker(cfg *protocols.Config) *AllergyChecker {
	return &AllergyChecker{base: base{config: cfg, ruleGroup: protocols.CheckerAllergyChecks}}
}

// Check implements Checker.
func (c *AllergyChecker) Check(patient clinical.PatientProfile, extraction clinical.StructuredExtraction) []clinical.ComplianceAlert {
	return c.evaluate(func(rule protocols.Rule) bool {
		p, ok := rule.Pattern.(protocols.AllergyConflictPattern)
		if !ok {
			return false
		}
		return c.allergies.Matches(patient, extraction, matcher.AllergyPattern{PatientAllergies: p.PatientAllergies}) &&
			c.medications.Matches(patient, extraction, matcher.MedicationPattern{Medications: p.ConflictMedications})
	})
}
