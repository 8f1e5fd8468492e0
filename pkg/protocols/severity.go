package protocols

import (
	"fmt"

	"clinical-guardrails/guardrails/pkg/clinical"
)

// Severity is the severity literal used in protocol files.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityWarning  Severity = "WARNING"
	SeverityInfo     Severity = "INFO"
)

// ParseSeverity parses a severity literal. Matching is case-sensitive.
func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(s); sev {
	case SeverityCritical, SeverityHigh, SeverityWarning, SeverityInfo:
		return sev, nil
	}
	return "", fmt.Errorf("%w: %q (want CRITICAL, HIGH, WARNING or INFO)", ErrUnknownSeverity, s)
}

// ToAlertSeverity maps a protocol severity to an alert severity.
func (s Severity) ToAlertSeverity() clinical.Severity {
	switch s {
	case SeverityCritical:
		return clinical.SeverityCritical
	case SeverityHigh:
		return clinical.SeverityHigh
	case SeverityWarning:
		return clinical.SeverityMedium
	default:
		return clinical.SeverityLow
	}
}
