package protocols

import (
	"fmt"
	"strings"
)

// Checker types with a built-in implementation.
const (
	CheckerDrugInteractions = "drug_interactions"
	CheckerAllergyChecks    = "allergy_checks"
	CheckerRequiredFields   = "required_fields"
	CheckerExpressionChecks = "expression_checks"
)

// Rule is one declarative protocol rule. Rules are immutable after load.
type Rule struct {
	Name        string
	CheckerType string
	Pattern     Pattern
	Severity    Severity
	Message     string
}

// Pattern is the typed matching payload of a rule.
type Pattern interface {
	// Describe renders the pattern for listings.
	Describe() string
}

// DrugInteractionPattern fires when medications hit both sets.
type DrugInteractionPattern struct {
	Trigger   TermSet
	Conflicts TermSet
}

// Describe implements Pattern.
func (p DrugInteractionPattern) Describe() string {
	return fmt.Sprintf("trigger=[%s] conflicts=[%s]",
		strings.Join(p.Trigger.Terms(), ", "), strings.Join(p.Conflicts.Terms(), ", "))
}

// AllergyConflictPattern fires when a patient allergy and a conflicting
// medication are both present.
type AllergyConflictPattern struct {
	PatientAllergies    TermSet
	ConflictMedications TermSet
}

// Describe implements Pattern.
func (p AllergyConflictPattern) Describe() string {
	return fmt.Sprintf("allergies=[%s] conflicts=[%s]",
		strings.Join(p.PatientAllergies.Terms(), ", "), strings.Join(p.ConflictMedications.Terms(), ", "))
}

// RequiredFieldsPattern lists extraction fields that must all be present.
type RequiredFieldsPattern struct {
	Required []string
}

// Describe implements Pattern.
func (p RequiredFieldsPattern) Describe() string {
	return fmt.Sprintf("required=[%s]", strings.Join(p.Required, ", "))
}

// RawPattern holds the payload of a rule whose checker type has no
// implementation.
type RawPattern struct {
	Values map[string]any
}

// Describe implements Pattern.
func (p RawPattern) Describe() string {
	return fmt.Sprintf("%v", p.Values)
}
