package checkers

import (
	"clinical-guardrails/guardrails/pkg/clinical"
	"clinical-guardrails/guardrails/pkg/protocols"
	"clinical-guardrails/guardrails/pkg/protocols/matcher"
)

// RequiredFieldsChecker fires when documentation a rule requires is missing.
type RequiredFieldsChecker struct {
	base
	fields matcher.FieldPresenceMatcher
}

// NewRequiredFieldsChecker returns a checker for the required_fields group.
func NewRequiredFieldsChecker(cfg *protocols.Config) *RequiredFieldsChecker {
	return &RequiredFieldsChecker{base: base{config: cfg, ruleGroup: protocols.CheckerRequiredFields}}
}

// Check implements Checker. Alerts name the extraction as a whole, not the
// missing field.
func (c *RequiredFieldsChecker) Check(patient clinical.PatientProfile, extraction clinical.StructuredExtraction) []clinical.ComplianceAlert {
	return c.evaluate(func(rule protocols.Rule) bool {
		p, ok := rule.Pattern.(protocols.RequiredFieldsPattern)
		if !ok {
			return false
		}
		return !c.fields.Matches(patient, extraction, matcher.FieldPresencePattern{Required: p.Required})
	})
}
