package clinical

import (
	"strings"

	"github.com/golang-sql/civil"
)

// MedicationStatus describes what happened to a medication during the visit.
type MedicationStatus string

const (
	MedicationActive       MedicationStatus = "active"
	MedicationStarted      MedicationStatus = "started"
	MedicationDiscontinued MedicationStatus = "discontinued"
	MedicationIncreased    MedicationStatus = "increased"
	MedicationDecreased    MedicationStatus = "decreased"
	MedicationUnknown      MedicationStatus = "unknown"
)

// Valid reports whether s is a known status. The empty status is valid and
// treated as unknown.
func (s MedicationStatus) Valid() bool {
	switch s {
	case "", MedicationActive, MedicationStarted, MedicationDiscontinued,
		MedicationIncreased, MedicationDecreased, MedicationUnknown:
		return true
	}
	return false
}

// TemporalType classifies a temporal expression.
type TemporalType string

const (
	TemporalRelativeDate TemporalType = "relative_date"
	TemporalAbsoluteDate TemporalType = "absolute_date"
	TemporalAbsoluteTime TemporalType = "absolute_time"
	TemporalDuration     TemporalType = "duration"
	TemporalAmbiguous    TemporalType = "ambiguous"
)

// Valid reports whether t is a known temporal type.
func (t TemporalType) Valid() bool {
	switch t {
	case TemporalRelativeDate, TemporalAbsoluteDate, TemporalAbsoluteTime,
		TemporalDuration, TemporalAmbiguous:
		return true
	}
	return false
}

// ExtractedMedication is one medication mention.
type ExtractedMedication struct {
	Name       string           `json:"name"`
	Dosage     string           `json:"dosage,omitempty"`
	Frequency  string           `json:"frequency,omitempty"`
	Route      string           `json:"route,omitempty"`
	Status     MedicationStatus `json:"status,omitempty"`
	StartDate  *civil.Date      `json:"start_date,omitempty"`
	Confidence float64          `json:"confidence"`
}

// Validate checks the name, status and confidence.
func (m ExtractedMedication) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return invalid("ExtractedMedication", "name", "is required")
	}
	if !m.Status.Valid() {
		return invalid("ExtractedMedication", "status", "unknown status %q", m.Status)
	}
	return checkConfidence("ExtractedMedication", "confidence", m.Confidence)
}

// StatusOrUnknown returns the status, defaulting to unknown.
func (m ExtractedMedication) StatusOrUnknown() MedicationStatus {
	if m.Status == "" {
		return MedicationUnknown
	}
	return m.Status
}

// ExtractedDiagnosis is one diagnosis mention.
type ExtractedDiagnosis struct {
	Text       string  `json:"text"`
	ICD10Code  string  `json:"icd10_code,omitempty"`
	Confidence float64 `json:"confidence"`
}

// TemporalExpression is a time reference found in a transcript.
type TemporalExpression struct {
	Text           string       `json:"text"`
	Type           TemporalType `json:"type"`
	NormalizedDate *civil.Date  `json:"normalized_date,omitempty"`
	Confidence     float64      `json:"confidence"`
	Note           string       `json:"note,omitempty"`
}

// VitalSign is a single measured vital.
type VitalSign struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

// StructuredExtraction is the normalized extraction consumed by protocol
// checkers. Empty strings and empty slices mean the field was not extracted.
type StructuredExtraction struct {
	PatientName         string                `json:"patient_name,omitempty"`
	PatientAge          string                `json:"patient_age,omitempty"`
	VisitType           string                `json:"visit_type,omitempty"`
	TemporalExpressions []TemporalExpression  `json:"temporal_expressions"`
	Medications         []ExtractedMedication `json:"medications"`
	Diagnoses           []ExtractedDiagnosis  `json:"diagnoses"`
	VitalSigns          []VitalSign           `json:"vital_signs"`
	Confidence          float64               `json:"confidence"`
}

// Extraction field names understood by FieldPresent.
const (
	FieldPatientName         = "patient_name"
	FieldPatientAge          = "patient_age"
	FieldVisitType           = "visit_type"
	FieldTemporalExpressions = "temporal_expressions"
	FieldMedications         = "medications"
	FieldDiagnoses           = "diagnoses"
	FieldVitalSigns          = "vital_signs"
	FieldConfidence          = "confidence"
)

// KnownFields lists every field name FieldPresent recognizes.
func KnownFields() []string {
	return []string{
		FieldPatientName, FieldPatientAge, FieldVisitType,
		FieldTemporalExpressions, FieldMedications, FieldDiagnoses,
		FieldVitalSigns, FieldConfidence,
	}
}

// IsKnownField reports whether name is an extraction field.
func IsKnownField(name string) bool {
	for _, f := range KnownFields() {
		if f == name {
			return true
		}
	}
	return false
}

// FieldPresent reports whether the named field holds a value: a non-empty
// string or a non-empty list. Confidence is always present. Unknown names
// report false.
func (e StructuredExtraction) FieldPresent(name string) bool {
	switch name {
	case FieldPatientName:
		return e.PatientName != ""
	case FieldPatientAge:
		return e.PatientAge != ""
	case FieldVisitType:
		return e.VisitType != ""
	case FieldTemporalExpressions:
		return len(e.TemporalExpressions) > 0
	case FieldMedications:
		return len(e.Medications) > 0
	case FieldDiagnoses:
		return len(e.Diagnoses) > 0
	case FieldVitalSigns:
		return len(e.VitalSigns) > 0
	case FieldConfidence:
		return true
	default:
		return false
	}
}

// MedicationNames returns the extracted medication names in order.
func (e StructuredExtraction) MedicationNames() []string {
	names := make([]string, 0, len(e.Medications))
	for _, m := range e.Medications {
		names = append(names, m.Name)
	}
	return names
}

// DiagnosisTexts returns the extracted diagnosis texts in order.
func (e StructuredExtraction) DiagnosisTexts() []string {
	texts := make([]string, 0, len(e.Diagnoses))
	for _, d := range e.Diagnoses {
		texts = append(texts, d.Text)
	}
	return texts
}

// HasLowConfidenceExtractions reports whether the overall confidence or any
// medication, diagnosis or temporal expression falls below threshold.
func (e StructuredExtraction) HasLowConfidenceExtractions(threshold float64) bool {
	if e.Confidence < threshold {
		return true
	}
	for _, m := range e.Medications {
		if m.Confidence < threshold {
			return true
		}
	}
	for _, d := range e.Diagnoses {
		if d.Confidence < threshold {
			return true
		}
	}
	for _, t := range e.TemporalExpressions {
		if t.Confidence < threshold {
			return true
		}
	}
	return false
}

// Validate checks confidences, statuses and temporal types.
func (e StructuredExtraction) Validate() error {
	if err := checkConfidence("StructuredExtraction", "confidence", e.Confidence); err != nil {
		return err
	}
	for _, m := range e.Medications {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	for _, d := range e.Diagnoses {
		if strings.TrimSpace(d.Text) == "" {
			return invalid("ExtractedDiagnosis", "text", "is required")
		}
		if err := checkConfidence("ExtractedDiagnosis", "confidence", d.Confidence); err != nil {
			return err
		}
	}
	for _, t := range e.TemporalExpressions {
		if !t.Type.Valid() {
			return invalid("TemporalExpression", "type", "unknown type %q", t.Type)
		}
		if err := checkConfidence("TemporalExpression", "confidence", t.Confidence); err != nil {
			return err
		}
	}
	return nil
}
