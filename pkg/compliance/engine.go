package compliance

import (
	"fmt"
	"strings"

	"clinical-guardrails/guardrails/pkg/clinical"
	"clinical-guardrails/guardrails/pkg/protocols"
	"clinical-guardrails/guardrails/pkg/protocols/registry"
	"clinical-guardrails/guardrails/pkg/result"
)

// Rule identifiers raised by the engine's built-in checks.
const (
	RuleDateMismatch    = "INVARIANT_DATE_MISMATCH"
	RuleProtocolMissing = "PROTOCOL_ADHERENCE_MISSING"
	RulePIILeak         = "SAFETY_PII_LEAK"
)

// Fields the built-in alerts are attributed to.
const (
	FieldExtractedDates = "extracted_dates"
	FieldSummaryText    = "summary_text"
)

const (
	sepsisTerm     = "sepsis"
	antibioticTerm = "antibiotic"
)

// Outcome is the engine's return type: a VerificationResult on success, or
// the critical alerts on failure.
type Outcome = result.Result[clinical.VerificationResult, []clinical.ComplianceAlert]

// Engine verifies AI output. It is immutable after construction.
type Engine struct {
	piiPatterns  []PIIPattern
	registryOpts []registry.Option
}

// Option configures an Engine.
type Option func(*Engine)

// WithPIIPatterns replaces the PII patterns checked against the summary.
// An empty list keeps the current patterns; the PII check cannot be turned
// off.
func WithPIIPatterns(patterns ...PIIPattern) Option {
	return func(e *Engine) {
		if len(patterns) == 0 {
			return
		}
		e.piiPatterns = append([]PIIPattern(nil), patterns...)
	}
}

// WithRegistryOptions passes options to the protocol registry built for
// each verification.
func WithRegistryOptions(opts ...registry.Option) Option {
	return func(e *Engine) {
		e.registryOpts = append(e.registryOpts, opts...)
	}
}

// NewEngine returns an engine that checks MedicarePattern unless options say
// otherwise.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{piiPatterns: []PIIPattern{MedicarePattern}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PIIPatterns returns the patterns this engine checks.
func (e *Engine) PIIPatterns() []PIIPattern {
	return append([]PIIPattern(nil), e.piiPatterns...)
}

// Verify runs every check and classifies the alerts. cfg may be nil, in
// which case protocol checkers are skipped.
func (e *Engine) Verify(
	patient clinical.PatientProfile,
	emr clinical.EMRContext,
	output clinical.AIGeneratedOutput,
	cfg *protocols.Config,
) Outcome {
	var alerts []clinical.ComplianceAlert

	alerts = append(alerts, checkDates(emr, output)...)
	alerts = append(alerts, checkSepsisProtocol(output)...)
	alerts = append(alerts, e.checkPII(output)...)

	if cfg != nil {
		extraction := ExtractionFromOutput(output)
		alerts = append(alerts, registry.New(cfg, e.registryOpts...).CheckAll(patient, extraction)...)
	}

	return Classify(alerts)
}

// Classify turns an alert list into an Outcome. Any critical alert yields a
// failure carrying only the critical alerts; otherwise the result is safe
// with a tiered score and every alert.
func Classify(alerts []clinical.ComplianceAlert) Outcome {
	if critical := clinical.FilterBySeverity(alerts, clinical.SeverityCritical); len(critical) > 0 {
		return result.Failure[clinical.VerificationResult](critical)
	}

	if alerts == nil {
		alerts = []clinical.ComplianceAlert{}
	}
	return result.Success[clinical.VerificationResult, []clinical.ComplianceAlert](clinical.VerificationResult{
		IsSafeToFile: true,
		Score:        Score(alerts),
		Alerts:       alerts,
	})
}

// checkDates flags every extracted date outside the encounter's allowed set.
func checkDates(emr clinical.EMRContext, output clinical.AIGeneratedOutput) []clinical.ComplianceAlert {
	allowed := emr.AllowedDates()

	var alerts []clinical.ComplianceAlert
	for _, d := range output.ExtractedDates {
		if _, ok := allowed[d]; ok {
			continue
		}
		alerts = append(alerts, clinical.ComplianceAlert{
			RuleID:   RuleDateMismatch,
			Message:  fmt.Sprintf("Extracted date %s is not the admission or discharge date of visit %s", d, emr.VisitID),
			Severity: clinical.SeverityCritical,
			Field:    FieldExtractedDates,
		})
	}
	return alerts
}

// checkSepsisProtocol requires an antibiotic mention when sepsis is diagnosed.
func checkSepsisProtocol(output clinical.AIGeneratedOutput) []clinical.ComplianceAlert {
	sepsis := false
	for _, dx := range output.ExtractedDiagnoses {
		if strings.Contains(strings.ToLower(dx), sepsisTerm) {
			sepsis = true
			break
		}
	}
	if !sepsis || strings.Contains(strings.ToLower(output.SummaryText), antibioticTerm) {
		return nil
	}

	return []clinical.ComplianceAlert{{
		RuleID:   RuleProtocolMissing,
		Message:  "Sepsis diagnosis requires antibiotic administration to be documented",
		Severity: clinical.SeverityHigh,
		Field:    FieldSummaryText,
	}}
}

// checkPII raises a single alert for the first pattern found in the summary.
func (e *Engine) checkPII(output clinical.AIGeneratedOutput) []clinical.ComplianceAlert {
	for _, p := range e.piiPatterns {
		if p.Regexp == nil || !p.Regexp.MatchString(output.SummaryText) {
			continue
		}
		return []clinical.ComplianceAlert{{
			RuleID:   RulePIILeak,
			Message:  fmt.Sprintf("Potential PII (%s pattern) detected in summary", p.Description),
			Severity: clinical.SeverityCritical,
			Field:    FieldSummaryText,
		}}
	}
	return nil
}
