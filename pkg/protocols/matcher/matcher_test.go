package matcher

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"clinical-guardrails/guardrails/pkg/clinical"
	"clinical-guardrails/guardrails/pkg/protocols"
)

func extractionWith(meds ...string) clinical.StructuredExtraction {
	e := clinical.StructuredExtraction{Confidence: 1}
	for _, m := range meds {
		e.Medications = append(e.Medications, clinical.ExtractedMedication{Name: m, Confidence: 1})
	}
	return e
}

// TestMedicationMatcher tests medication set intersection.
func TestMedicationMatcher(t *testing.T) {
	m := MedicationMatcher{}
	pattern := MedicationPattern{Medications: protocols.NewTermSet("amoxicillin", "ampicillin")}

	tests := []struct {
		name  string
		meds  []string
		match bool
	}{
		{"exact", []string{"amoxicillin"}, true},
		{"upper case", []string{"AMOXICILLIN"}, true},
		{"no overlap", []string{"aspirin"}, false},
		{"no medications", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Matches(clinical.PatientProfile{}, extractionWith(tt.meds...), pattern); got != tt.match {
				t.Errorf("Matches() = %v, want %v", got, tt.match)
			}
		})
	}

	if m.Matches(clinical.PatientProfile{}, extractionWith("aspirin"), MedicationPattern{}) {
		t.Errorf("empty pattern should never match")
	}
}

// TestAllergyMatcher tests allergy set intersection in both case directions.
func TestAllergyMatcher(t *testing.T) {
	m := AllergyMatcher{}

	patient := clinical.PatientProfile{Allergies: []string{"PENICILLIN"}}
	if !m.Matches(patient, clinical.StructuredExtraction{}, AllergyPattern{PatientAllergies: protocols.NewTermSet("penicillin")}) {
		t.Errorf("PENICILLIN allergy should match penicillin pattern")
	}

	patient = clinical.PatientProfile{Allergies: []string{"penicillin"}}
	if !m.Matches(patient, clinical.StructuredExtraction{}, AllergyPattern{PatientAllergies: protocols.NewTermSet("PENICILLIN")}) {
		t.Errorf("penicillin allergy should match PENICILLIN pattern")
	}

	if m.Matches(clinical.PatientProfile{}, clinical.StructuredExtraction{}, AllergyPattern{PatientAllergies: protocols.NewTermSet("penicillin")}) {
		t.Errorf("patient without allergies should not match")
	}
}

// TestFieldPresenceMatcher tests all-or-nothing field presence.
func TestFieldPresenceMatcher(t *testing.T) {
	m := FieldPresenceMatcher{}
	e := clinical.StructuredExtraction{
		VisitType:   "inpatient",
		Medications: []clinical.ExtractedMedication{{Name: "heparin", Confidence: 1}},
	}

	tests := []struct {
		name     string
		required []string
		want     bool
	}{
		{"all present", []string{"visit_type", "medications"}, true},
		{"one missing", []string{"visit_type", "diagnoses"}, false},
		{"empty list field", []string{"vital_signs"}, false},
		{"no requirements", nil, true},
		{"empty requirements", []string{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Matches(clinical.PatientProfile{}, e, FieldPresencePattern{Required: tt.required}); got != tt.want {
				t.Errorf("Matches(%v) = %v, want %v", tt.required, got, tt.want)
			}
		})
	}
}

// TestMedicationMatcher_CaseInsensitiveProperty checks that case never
// changes the outcome of a medication match.
func TestMedicationMatcher_CaseInsensitiveProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("upper-cased names match lower-cased patterns", prop.ForAll(
		func(name string) bool {
			if name == "" {
				return true
			}
			pattern := MedicationPattern{Medications: protocols.NewTermSet(name)}
			upper := extractionWith(strings.ToUpper(name))
			return MedicationMatcher{}.Matches(clinical.PatientProfile{}, upper, pattern)
		},
		gen.AlphaString(),
	))

	properties.Property("empty pattern never matches", prop.ForAll(
		func(names []string) bool {
			return !MedicationMatcher{}.Matches(clinical.PatientProfile{}, extractionWith(names...), MedicationPattern{})
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
