package checkers

import (
	"clinical-guardrails/guardrails/pkg/clinical"
	"clinical-guardrails/guardrails/pkg/protocols"
)

// DrugInteractionChecker fires when the patient's medications hit both a
// rule's trigger set and its conflict set.
type DrugInteractionChecker struct {
	base
}

// NewDrugInteractionChecker returns a checker for the drug_interactions group.
func NewDrugInteractionChecker(cfg *protocols.Config) *DrugInteractionChecker {
	return &DrugInteractionChecker{base{config: cfg, ruleGroup: protocols.CheckerDrugInteractions}}
}

// Check implements Checker. The medication pool is the union of the
// patient's active medications and the extracted medications.
func (c *DrugInteractionChecker) Check(patient clinical.PatientProfile, extraction clinical.StructuredExtraction) []clinical.ComplianceAlert {
	pool := make([]string, 0, len(patient.ActiveMedications)+len(extraction.Medications))
	pool = append(pool, patient.ActiveMedications...)
	pool = append(pool, extraction.MedicationNames()...)

	return c.evaluate(func(rule protocols.Rule) bool {
		p, ok := rule.Pattern.(protocols.DrugInteractionPattern)
		if !ok {
			return false
		}
		return p.Trigger.ContainsAny(pool) && p.Conflicts.ContainsAny(pool)
	})
}
