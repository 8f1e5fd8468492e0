package clinical

import "github.com/golang-sql/civil"

// AIGeneratedOutput is the artifact under verification.
type AIGeneratedOutput struct {
	SummaryText        string       `json:"summary_text"`
	ExtractedDates     []civil.Date `json:"extracted_dates"`
	ExtractedDiagnoses []string     `json:"extracted_diagnoses"`

	// SuggestedBillingCodes is carried through but not evaluated.
	SuggestedBillingCodes []string `json:"suggested_billing_codes"`

	ExtractedMedications []ExtractedMedication `json:"extracted_medications,omitempty"`

	// ContainsPII is advisory. The engine runs its own detection.
	ContainsPII bool `json:"contains_pii"`
}

// NewAIGeneratedOutput validates o and returns it.
func NewAIGeneratedOutput(o AIGeneratedOutput) (AIGeneratedOutput, error) {
	if err := o.Validate(); err != nil {
		return AIGeneratedOutput{}, err
	}
	return o, nil
}

// Validate checks dates and nested medication records.
func (o AIGeneratedOutput) Validate() error {
	for _, d := range o.ExtractedDates {
		if !d.IsValid() {
			return invalid("AIGeneratedOutput", "extracted_dates", "%s is not a calendar date", d)
		}
	}
	for _, m := range o.ExtractedMedications {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	return nil
}
