package clinical

import (
	"strings"

	"github.com/golang-sql/civil"
)

// PatientProfile holds identity and clinical risk facts for one patient.
type PatientProfile struct {
	PatientID string     `json:"patient_id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	DOB       civil.Date `json:"dob"`

	// Allergies are free text and compared case-insensitively.
	Allergies []string `json:"allergies,omitempty"`
	Diagnoses []string `json:"diagnoses,omitempty"`

	// ActiveMedications are medication names the EMR lists as current.
	ActiveMedications []string `json:"active_medications,omitempty"`
}

// NewPatientProfile validates p and returns it.
func NewPatientProfile(p PatientProfile) (PatientProfile, error) {
	if err := p.Validate(); err != nil {
		return PatientProfile{}, err
	}
	return p, nil
}

// Validate checks required identity fields.
func (p PatientProfile) Validate() error {
	if strings.TrimSpace(p.PatientID) == "" {
		return invalid("PatientProfile", "patient_id", "is required")
	}
	if !p.DOB.IsValid() {
		return invalid("PatientProfile", "dob", "is required and must be a calendar date")
	}
	return nil
}

// FullName returns "First Last", trimming absent parts.
func (p PatientProfile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}
