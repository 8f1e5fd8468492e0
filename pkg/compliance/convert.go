package compliance

import (
	"fmt"
	"strings"

	"github.com/golang-sql/civil"

	"clinical-guardrails/guardrails/pkg/clinical"
)

// ExtractionFromOutput builds the extraction protocol checkers run against.
// Only medications carry over.
func ExtractionFromOutput(output clinical.AIGeneratedOutput) clinical.StructuredExtraction {
	return clinical.StructuredExtraction{
		Medications: append([]clinical.ExtractedMedication(nil), output.ExtractedMedications...),
		Confidence:  1.0,
	}
}

// OutputFromExtraction converts an extraction and its source transcript into
// the output shape the engine verifies. Dates come from normalized temporal
// expressions. The summary is the transcript followed by medication and
// diagnosis lines.
func OutputFromExtraction(extraction clinical.StructuredExtraction, transcript string) clinical.AIGeneratedOutput {
	var dates []civil.Date
	for _, t := range extraction.TemporalExpressions {
		if t.NormalizedDate != nil {
			dates = append(dates, *t.NormalizedDate)
		}
	}

	diagnoses := extraction.DiagnosisTexts()

	parts := []string{transcript}
	if len(extraction.Medications) > 0 {
		meds := make([]string, 0, len(extraction.Medications))
		for _, m := range extraction.Medications {
			meds = append(meds, fmt.Sprintf("%s (%s)", m.Name, m.StatusOrUnknown()))
		}
		parts = append(parts, "Medications: "+strings.Join(meds, ", "))
	}
	if len(diagnoses) > 0 {
		parts = append(parts, "Diagnoses: "+strings.Join(diagnoses, ", "))
	}

	return clinical.AIGeneratedOutput{
		SummaryText:           strings.Join(parts, "\n"),
		ExtractedDates:        dates,
		ExtractedDiagnoses:    diagnoses,
		SuggestedBillingCodes: []string{},
		ExtractedMedications:  append([]clinical.ExtractedMedication(nil), extraction.Medications...),
	}
}
