package clinical

import "math"

// VerificationResult is the success payload of a verification run.
type VerificationResult struct {
	IsSafeToFile bool              `json:"is_safe_to_file"`
	Score        float64           `json:"score"`
	Alerts       []ComplianceAlert `json:"alerts"`
}

// NewVerificationResult builds a result, rejecting scores outside [0, 1].
func NewVerificationResult(safe bool, score float64, alerts []ComplianceAlert) (VerificationResult, error) {
	r := VerificationResult{IsSafeToFile: safe, Score: score, Alerts: alerts}
	if err := r.Validate(); err != nil {
		return VerificationResult{}, err
	}
	if r.Alerts == nil {
		r.Alerts = []ComplianceAlert{}
	}
	return r, nil
}

// Validate checks the score range and every alert.
func (r VerificationResult) Validate() error {
	if math.IsNaN(r.Score) || r.Score < 0 || r.Score > 1 {
		return invalid("VerificationResult", "score", "must be within [0, 1], got %v", r.Score)
	}
	for _, a := range r.Alerts {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return nil
}
