package checkers

import (
	"strings"

	"clinical-guardrails/guardrails/pkg/clinical"
	"clinical-guardrails/guardrails/pkg/protocols"
)

// AlertField is the field attributed to every protocol alert.
const AlertField = "extraction"

// Checker evaluates one rule group against a patient and extraction.
type Checker interface {
	// Name returns the checker name, which is also its rule group key.
	Name() string

	// Check returns one alert per firing rule.
	Check(patient clinical.PatientProfile, extraction clinical.StructuredExtraction) []clinical.ComplianceAlert
}

// RuleID builds PROTOCOL_{TYPE}_{NAME} with spaces in the name replaced by
// underscores.
func RuleID(checkerType, ruleName string) string {
	name := strings.ReplaceAll(strings.ToUpper(ruleName), " ", "_")
	return "PROTOCOL_" + strings.ToUpper(checkerType) + "_" + name
}

// NewAlert builds the alert emitted when rule fires.
func NewAlert(rule protocols.Rule) clinical.ComplianceAlert {
	return clinical.ComplianceAlert{
		RuleID:   RuleID(rule.CheckerType, rule.Name),
		Message:  rule.Message,
		Severity: rule.Severity.ToAlertSeverity(),
		Field:    AlertField,
	}
}

// base holds the configuration and group key shared by all checkers.
type base struct {
	config    *protocols.Config
	ruleGroup string
}

func (b base) Name() string {
	return b.ruleGroup
}

func (b base) rules() []protocols.Rule {
	rules, _ := b.config.RulesFor(b.ruleGroup)
	return rules
}

// evaluate emits an alert for every rule fires reports true for.
func (b base) evaluate(fires func(protocols.Rule) bool) []clinical.ComplianceAlert {
	var alerts []clinical.ComplianceAlert
	for _, rule := range b.rules() {
		if fires(rule) {
			alerts = append(alerts, NewAlert(rule))
		}
	}
	return alerts
}
