package clinical

import "encoding/json"

// Confidence defaults to 1.0 when a document omits it.

// UnmarshalJSON implements json.Unmarshaler.
func (m *ExtractedMedication) UnmarshalJSON(data []byte) error {
	type plain ExtractedMedication
	p := plain{Confidence: 1}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*m = ExtractedMedication(p)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *ExtractedDiagnosis) UnmarshalJSON(data []byte) error {
	type plain ExtractedDiagnosis
	p := plain{Confidence: 1}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*d = ExtractedDiagnosis(p)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *TemporalExpression) UnmarshalJSON(data []byte) error {
	type plain TemporalExpression
	p := plain{Confidence: 1}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = TemporalExpression(p)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *StructuredExtraction) UnmarshalJSON(data []byte) error {
	type plain StructuredExtraction
	p := plain{Confidence: 1}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = StructuredExtraction(p)
	return nil
}
