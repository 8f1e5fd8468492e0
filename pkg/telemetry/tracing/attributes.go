package tracing

import (
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"clinical-guardrails/guardrails/pkg/clinical"
)

// Span names.
const (
	SpanVerify        = "guardrails.verify"
	SpanResolveFHIR   = "guardrails.fhir.resolve"
	SpanProtocolCheck = "guardrails.protocols.check"
)

// Attribute keys use the "guardrails.*" namespace.
const (
	AttrRequestID       = "guardrails.request_id"
	AttrVisitID         = "guardrails.visit_id"
	AttrSafeToFile      = "guardrails.safe_to_file"
	AttrScore           = "guardrails.score"
	AttrAlertCount      = "guardrails.alert.count"
	AttrRuleIDs         = "guardrails.alert.rule_ids"
	AttrMaxSeverity     = "guardrails.alert.max_severity"
	AttrProtocolVersion = "guardrails.protocol.version"
	AttrLowConfidence   = "guardrails.extraction.low_confidence"
)

// SetRequestAttributes sets the request and visit ids. Either may be empty.
func SetRequestAttributes(span trace.Span, requestID, visitID string) {
	attrs := make([]attribute.KeyValue, 0, 2)
	if requestID != "" {
		attrs = append(attrs, attribute.String(AttrRequestID, requestID))
	}
	if visitID != "" {
		attrs = append(attrs, attribute.String(AttrVisitID, visitID))
	}
	span.SetAttributes(attrs...)
}

// SetVerificationAttributes records a verification result on the span.
// Rule ids are deduplicated and sorted.
func SetVerificationAttributes(span trace.Span, result clinical.VerificationResult) {
	seen := make(map[string]struct{}, len(result.Alerts))
	ruleIDs := make([]string, 0, len(result.Alerts))
	var maxSeverity clinical.Severity
	for _, a := range result.Alerts {
		if _, ok := seen[a.RuleID]; !ok {
			seen[a.RuleID] = struct{}{}
			ruleIDs = append(ruleIDs, a.RuleID)
		}
		if maxSeverity == "" || a.Severity.Rank() > maxSeverity.Rank() {
			maxSeverity = a.Severity
		}
	}
	sort.Strings(ruleIDs)

	attrs := []attribute.KeyValue{
		attribute.Bool(AttrSafeToFile, result.IsSafeToFile),
		attribute.Float64(AttrScore, result.Score),
		attribute.Int(AttrAlertCount, len(result.Alerts)),
	}
	if len(ruleIDs) > 0 {
		attrs = append(attrs,
			attribute.StringSlice(AttrRuleIDs, ruleIDs),
			attribute.String(AttrMaxSeverity, string(maxSeverity)),
		)
	}
	span.SetAttributes(attrs...)
}

// SetProtocolVersion records the active protocol configuration version.
func SetProtocolVersion(span trace.Span, version string) {
	if version != "" {
		span.SetAttributes(attribute.String(AttrProtocolVersion, version))
	}
}

// AddEvent adds an event to the span with optional attributes.
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
