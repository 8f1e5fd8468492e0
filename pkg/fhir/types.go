package fhir

import "encoding/json"

// Resource type names.
const (
	ResourceBundle              = "Bundle"
	ResourcePatient             = "Patient"
	ResourceEncounter           = "Encounter"
	ResourceAllergyIntolerance  = "AllergyIntolerance"
	ResourceCondition           = "Condition"
	ResourceMedicationStatement = "MedicationStatement"
)

// Bundle represents a FHIR Bundle resource.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Type         string        `json:"type,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

// BundleEntry holds one resource, left raw until its type is known.
type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
}

// Patient represents a FHIR R4 Patient resource (simplified)
type Patient struct {
	ResourceType string      `json:"resourceType"`
	ID           string      `json:"id,omitempty"`
	Name         []HumanName `json:"name,omitempty"`
	Gender       string      `json:"gender,omitempty"`
	BirthDate    string      `json:"birthDate,omitempty"`
}

// HumanName represents a FHIR HumanName
type HumanName struct {
	Use    string   `json:"use,omitempty"`
	Family string   `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`
}

// CodeableConcept represents a FHIR CodeableConcept
type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// Coding represents a FHIR Coding
type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

// Label returns the text of the concept, falling back to the first coding
// display and then the first code.
func (c *CodeableConcept) Label() string {
	if c == nil {
		return ""
	}
	if c.Text != "" {
		return c.Text
	}
	for _, coding := range c.Coding {
		if coding.Display != "" {
			return coding.Display
		}
	}
	for _, coding := range c.Coding {
		if coding.Code != "" {
			return coding.Code
		}
	}
	return ""
}

// FirstCode returns the first non-empty code of the concept.
func (c *CodeableConcept) FirstCode() string {
	if c == nil {
		return ""
	}
	for _, coding := range c.Coding {
		if coding.Code != "" {
			return coding.Code
		}
	}
	return ""
}

// Reference represents a FHIR Reference
type Reference struct {
	Reference string `json:"reference,omitempty"`
	Display   string `json:"display,omitempty"`
}

// CodeableReference is the R5 concept-or-reference type.
type CodeableReference struct {
	Concept   *CodeableConcept `json:"concept,omitempty"`
	Reference *Reference       `json:"reference,omitempty"`
}

// Period represents a FHIR Period
type Period struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Encounter represents a FHIR Encounter resource (simplified)
type Encounter struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Status       string        `json:"status,omitempty"`
	Subject      *Reference    `json:"subject,omitempty"`
	Participant  []Participant `json:"participant,omitempty"`
	Period       *Period       `json:"period,omitempty"`
	ActualPeriod *Period       `json:"actualPeriod,omitempty"`
}

// Participant represents an encounter participant. R4 names the person
// individual; R5 names it actor.
type Participant struct {
	Type       []CodeableConcept `json:"type,omitempty"`
	Individual *Reference        `json:"individual,omitempty"`
	Actor      *Reference        `json:"actor,omitempty"`
}

// AllergyIntolerance represents a FHIR AllergyIntolerance resource (simplified)
type AllergyIntolerance struct {
	ResourceType       string           `json:"resourceType"`
	ID                 string           `json:"id,omitempty"`
	ClinicalStatus     *CodeableConcept `json:"clinicalStatus,omitempty"`
	VerificationStatus *CodeableConcept `json:"verificationStatus,omitempty"`
	Code               *CodeableConcept `json:"code,omitempty"`
	Patient            *Reference       `json:"patient,omitempty"`
}

// Condition represents a FHIR Condition resource (simplified)
type Condition struct {
	ResourceType       string           `json:"resourceType"`
	ID                 string           `json:"id,omitempty"`
	ClinicalStatus     *CodeableConcept `json:"clinicalStatus,omitempty"`
	VerificationStatus *CodeableConcept `json:"verificationStatus,omitempty"`
	Code               *CodeableConcept `json:"code,omitempty"`
	Subject            *Reference       `json:"subject,omitempty"`
}

// MedicationStatement represents a FHIR MedicationStatement resource
// (simplified). R4 carries medicationCodeableConcept; R5 carries medication.
type MedicationStatement struct {
	ResourceType              string             `json:"resourceType"`
	ID                        string             `json:"id,omitempty"`
	Status                    string             `json:"status,omitempty"`
	MedicationCodeableConcept *CodeableConcept   `json:"medicationCodeableConcept,omitempty"`
	Medication                *CodeableReference `json:"medication,omitempty"`
	Subject                   *Reference         `json:"subject,omitempty"`
}

// MedicationName returns the display name of the medication.
func (m MedicationStatement) MedicationName() string {
	if name := m.MedicationCodeableConcept.Label(); name != "" {
		return name
	}
	if m.Medication == nil {
		return ""
	}
	if name := m.Medication.Concept.Label(); name != "" {
		return name
	}
	if m.Medication.Reference != nil {
		return m.Medication.Reference.Display
	}
	return ""
}
