// Package matcher provides the stateless predicates protocol checkers use to
// test a patient and extraction against a rule pattern.
//
// All comparisons are case-insensitive. An empty term set never matches; an
// empty required-fields list is trivially satisfied.
package matcher

import (
	"clinical-guardrails/guardrails/pkg/clinical"
	"clinical-guardrails/guardrails/pkg/protocols"
)

// Matcher tests whether pattern P is present in a patient and extraction pair.
type Matcher[P any] interface {
	Matches(patient clinical.PatientProfile, extraction clinical.StructuredExtraction, pattern P) bool
}

// MedicationPattern is a set of medication names.
type MedicationPattern struct {
	Medications protocols.TermSet
}

// AllergyPattern is a set of allergy names.
type AllergyPattern struct {
	PatientAllergies protocols.TermSet
}

// FieldPresencePattern lists extraction fields that must all hold a value.
type FieldPresencePattern struct {
	Required []string
}

// MedicationMatcher matches when any extracted medication name is in the
// pattern.
type MedicationMatcher struct{}

// Matches implements Matcher.
func (MedicationMatcher) Matches(_ clinical.PatientProfile, extraction clinical.StructuredExtraction, pattern MedicationPattern) bool {
	return pattern.Medications.ContainsAny(extraction.MedicationNames())
}

// AllergyMatcher matches when any patient allergy is in the pattern.
type AllergyMatcher struct{}

// Matches implements Matcher.
func (AllergyMatcher) Matches(patient clinical.PatientProfile, _ clinical.StructuredExtraction, pattern AllergyPattern) bool {
	return pattern.PatientAllergies.ContainsAny(patient.Allergies)
}

// FieldPresenceMatcher matches when every required field is present. A
// pattern with no required fields is satisfied, so an absent or empty
// required key never reports missing documentation.
type FieldPresenceMatcher struct{}

// Matches implements Matcher.
func (FieldPresenceMatcher) Matches(_ clinical.PatientProfile, extraction clinical.StructuredExtraction, pattern FieldPresencePattern) bool {
	for _, field := range pattern.Required {
		if !extraction.FieldPresent(field) {
			return false
		}
	}
	return true
}

var (
	_ Matcher[MedicationPattern]    = MedicationMatcher{}
	_ Matcher[AllergyPattern]       = AllergyMatcher{}
	_ Matcher[FieldPresencePattern] = FieldPresenceMatcher{}
)
