package checkers

import (
	"log/slog"

	"clinical-guardrails/guardrails/pkg/clinical"
	"clinical-guardrails/guardrails/pkg/protocols"
)

// ExpressionChecker fires when a rule's CEL expression evaluates to true.
type ExpressionChecker struct {
	base
	logger *slog.Logger
}

// NewExpressionChecker returns a checker for the expression_checks group.
func NewExpressionChecker(cfg *protocols.Config) *ExpressionChecker {
	return &ExpressionChecker{
		base:   base{config: cfg, ruleGroup: protocols.CheckerExpressionChecks},
		logger: slog.Default().With("component", "checkers.expression"),
	}
}

// Check implements Checker. Evaluation errors count as no match.
func (c *ExpressionChecker) Check(patient clinical.PatientProfile, extraction clinical.StructuredExtraction) []clinical.ComplianceAlert {
	vars := ExpressionVars(patient, extraction)

	return c.evaluate(func(rule protocols.Rule) bool {
		p, ok := rule.Pattern.(protocols.ExpressionPattern)
		if !ok {
			return false
		}
		fired, err := p.Evaluate(vars)
		if err != nil {
			c.logger.Debug("expression rule did not evaluate",
				"rule", rule.Name,
				"error", err,
			)
			return false
		}
		return fired
	})
}

// ExpressionVars builds the variables expression rules see. Names are
// passed as written; use lowerAscii() in expressions for case-insensitive
// comparisons.
func ExpressionVars(patient clinical.PatientProfile, extraction clinical.StructuredExtraction) map[string]any {
	return map[string]any{
		protocols.ExprVarPatient: map[string]any{
			"patient_id":         patient.PatientID,
			"allergies":          nonNil(patient.Allergies),
			"diagnoses":          nonNil(patient.Diagnoses),
			"active_medications": nonNil(patient.ActiveMedications),
		},
		protocols.ExprVarExtraction: map[string]any{
			"medications": extraction.MedicationNames(),
			"diagnoses":   extraction.DiagnosisTexts(),
			"visit_type":  extraction.VisitType,
			"patient_age": extraction.PatientAge,
			"confidence":  extraction.Confidence,
		},
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
