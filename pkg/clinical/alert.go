package clinical

import (
	"fmt"
	"strings"
)

// Severity is the ordinal classification of a ComplianceAlert.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities LOW < MEDIUM < HIGH < CRITICAL. Unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// AtLeast reports whether s is at or above min.
func (s Severity) AtLeast(min Severity) bool {
	return s.Rank() >= min.Rank()
}

// Valid reports whether s is one of the four known severities.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// ParseSeverity parses a severity name, ignoring case.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if !sev.Valid() {
		return "", fmt.Errorf("unknown alert severity %q", s)
	}
	return sev, nil
}

// ComplianceAlert is one rule violation found during verification.
type ComplianceAlert struct {
	// RuleID is a stable identifier such as INVARIANT_DATE_MISMATCH.
	RuleID string `json:"rule_id"`

	// Message is the human-readable explanation.
	Message string `json:"message"`

	// Severity drives failure classification and scoring.
	Severity Severity `json:"severity"`

	// Field names the input field the alert concerns. Empty when unset.
	Field string `json:"field,omitempty"`
}

// NewAlert builds a validated alert.
func NewAlert(ruleID, message string, severity Severity, field string) (ComplianceAlert, error) {
	a := ComplianceAlert{RuleID: ruleID, Message: message, Severity: severity, Field: field}
	if err := a.Validate(); err != nil {
		return ComplianceAlert{}, err
	}
	return a, nil
}

// Validate checks that the alert has a rule id and a known severity.
func (a ComplianceAlert) Validate() error {
	if a.RuleID == "" {
		return invalid("ComplianceAlert", "rule_id", "is required")
	}
	if !a.Severity.Valid() {
		return invalid("ComplianceAlert", "severity", "unknown severity %q", a.Severity)
	}
	return nil
}

// FilterBySeverity returns the alerts whose severity equals sev, in order.
func FilterBySeverity(alerts []ComplianceAlert, sev Severity) []ComplianceAlert {
	var out []ComplianceAlert
	for _, a := range alerts {
		if a.Severity == sev {
			out = append(out, a)
		}
	}
	return out
}

// HasSeverity reports whether any alert has exactly severity sev.
func HasSeverity(alerts []ComplianceAlert, sev Severity) bool {
	for _, a := range alerts {
		if a.Severity == sev {
			return true
		}
	}
	return false
}
