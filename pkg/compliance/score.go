package compliance

import "clinical-guardrails/guardrails/pkg/clinical"

// Trust score tiers.
const (
	ScoreClean        = 1.0
	ScoreWithFindings = 0.9
	ScoreWithHigh     = 0.7
)

// Score returns the trust score of a non-failing alert list: 0.7 with any
// HIGH alert, 0.9 with any other alert, 1.0 with none.
func Score(alerts []clinical.ComplianceAlert) float64 {
	switch {
	case clinical.HasSeverity(alerts, clinical.SeverityHigh):
		return ScoreWithHigh
	case len(alerts) > 0:
		return ScoreWithFindings
	default:
		return ScoreClean
	}
}
