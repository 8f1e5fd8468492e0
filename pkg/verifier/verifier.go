package verifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"clinical-guardrails/guardrails/pkg/audit"
	"clinical-guardrails/guardrails/pkg/clinical"
	"clinical-guardrails/guardrails/pkg/compliance"
	"clinical-guardrails/guardrails/pkg/fhir"
	"clinical-guardrails/guardrails/pkg/protocols"
	"clinical-guardrails/guardrails/pkg/telemetry/logging"
	"clinical-guardrails/guardrails/pkg/telemetry/metrics"
	"clinical-guardrails/guardrails/pkg/telemetry/tracing"
)

// DefaultLowConfidenceThreshold is the extraction confidence below which a
// warning is logged.
const DefaultLowConfidenceThreshold = 0.7

// ProtocolSource supplies the active protocol configuration and the digest
// of the file it came from. *manager.Manager implements it.
type ProtocolSource interface {
	Snapshot() (*protocols.Config, string)
}

// StaticSource serves a fixed configuration.
type StaticSource struct {
	Config *protocols.Config
	Digest string
}

// Snapshot implements ProtocolSource.
func (s StaticSource) Snapshot() (*protocols.Config, string) {
	return s.Config, s.Digest
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithSink records every verification to sink.
func WithSink(sink audit.Sink) Option {
	return func(v *Verifier) { v.sink = sink }
}

// WithMetrics records verification metrics to c.
func WithMetrics(c *metrics.Collector) Option {
	return func(v *Verifier) { v.metrics = c }
}

// WithTracer opens a span per verification.
func WithTracer(t *tracing.Tracer) Option {
	return func(v *Verifier) { v.tracer = t }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithLowConfidenceThreshold sets the confidence below which extractions
// are flagged.
func WithLowConfidenceThreshold(threshold float64) Option {
	return func(v *Verifier) { v.lowConfidence = threshold }
}

// Verifier runs verifications end to end: it resolves the subject,
// prepares the artifact, runs the engine against the active protocol
// configuration and records the result. It is safe for concurrent use.
type Verifier struct {
	engine        *compliance.Engine
	source        ProtocolSource
	sink          audit.Sink
	metrics       *metrics.Collector
	tracer        *tracing.Tracer
	logger        *slog.Logger
	lowConfidence float64
}

// New creates a verifier. source may be nil, in which case protocol
// checkers are skipped.
func New(engine *compliance.Engine, source ProtocolSource, opts ...Option) *Verifier {
	if engine == nil {
		engine = compliance.NewEngine()
	}
	v := &Verifier{
		engine:        engine,
		source:        source,
		logger:        slog.Default(),
		lowConfidence: DefaultLowConfidenceThreshold,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.logger = v.logger.With("component", "verifier")
	return v
}

// Verify runs one verification. A patient missing from the FHIR bundle or
// an unusable extraction is reported as a synthetic critical alert in the
// Response, not as an error. An error is returned for a malformed request,
// including inline models that fail validation, or a cancelled context; no
// audit record is written for those.
func (v *Verifier) Verify(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	if req.RequestID != "" {
		ctx = logging.WithRequestID(ctx, req.RequestID)
	}

	ctx, span := v.tracer.Start(ctx, tracing.SpanVerify)
	defer span.End()

	cfg, digest := v.snapshot()
	version := ""
	if cfg != nil {
		version = cfg.Version
	}
	tracing.SetProtocolVersion(span, version)

	resp := &Response{ProtocolVersion: version}
	resp.Outcome = v.run(ctx, span, &req, cfg, resp)
	resp.Result = compliance.Resolve(resp.Outcome)
	resp.Duration = time.Since(start)

	tracing.SetRequestAttributes(span, req.RequestID, resp.VisitID)
	tracing.SetVerificationAttributes(span, resp.Result)
	v.metrics.RecordVerification(resp.Result, resp.Duration)

	resp.AuditID = v.record(ctx, req.RequestID, resp, digest)

	logArgs := []any{
		"visit_id", resp.VisitID,
		"is_safe_to_file", resp.Result.IsSafeToFile,
		"score", resp.Result.Score,
		"alerts", len(resp.Result.Alerts),
		"protocol_version", version,
		"duration_ms", resp.Duration.Milliseconds(),
	}
	if resp.Result.IsSafeToFile {
		v.logger.InfoContext(ctx, "Verification completed", logArgs...)
	} else {
		v.logger.WarnContext(ctx, "Verification failed compliance", logArgs...)
	}

	return resp, nil
}

func (v *Verifier) snapshot() (*protocols.Config, string) {
	if v.source == nil {
		return nil, ""
	}
	return v.source.Snapshot()
}

// run prepares the inputs and calls the engine. It fills the subject ids on
// resp as soon as they are known.
func (v *Verifier) run(ctx context.Context, span trace.Span, req *Request, cfg *protocols.Config, resp *Response) compliance.Outcome {
	patient, emr, err := v.resolve(ctx, req)
	if err != nil {
		resp.PatientID = req.PatientID
		v.logger.WarnContext(ctx, "Patient context could not be resolved", "error", err)
		tracing.SetStatus(span, err)
		return compliance.PatientNotFound(req.PatientID, err)
	}
	resp.PatientID = patient.PatientID
	resp.VisitID = emr.VisitID
	ctx = logging.WithPatientID(logging.WithVisitID(ctx, emr.VisitID), patient.PatientID)

	if req.Extraction != nil && req.Extraction.HasLowConfidenceExtractions(v.lowConfidence) {
		resp.LowConfidence = true
		v.logger.WarnContext(ctx, "Extraction has low-confidence values",
			"threshold", v.lowConfidence,
			"confidence", req.Extraction.Confidence,
		)
		tracing.AddEvent(span, "low_confidence_extraction",
			attribute.Float64("threshold", v.lowConfidence),
		)
	}

	output, err := req.output()
	if err != nil {
		v.logger.WarnContext(ctx, "Extraction could not be used", "error", err)
		tracing.SetStatus(span, err)
		return compliance.ExtractionFailed(err)
	}

	_, checkSpan := v.tracer.Start(ctx, tracing.SpanProtocolCheck)
	outcome := v.engine.Verify(patient, emr, output, cfg)
	checkSpan.End()

	return outcome
}

// resolve returns the inline subject, already validated by Request.Validate,
// or maps it from the FHIR bundle.
func (v *Verifier) resolve(ctx context.Context, req *Request) (clinical.PatientProfile, clinical.EMRContext, error) {
	if req.Bundle == nil {
		return *req.Patient, *req.Context, nil
	}

	_, span := v.tracer.Start(ctx, tracing.SpanResolveFHIR)
	defer span.End()

	patient, emr, err := fhir.MapBundle(req.Bundle, req.PatientID)
	if err != nil {
		tracing.SetStatus(span, err)
		return clinical.PatientProfile{}, clinical.EMRContext{}, err
	}
	return patient, emr, nil
}

// record writes the trace record and returns its id. Audit failures are
// logged and never fail the verification.
func (v *Verifier) record(ctx context.Context, requestID string, resp *Response, digest string) string {
	if v.sink == nil {
		return ""
	}

	rec := audit.NewTraceRecord(resp.PatientID, resp.VisitID, resp.Result)
	rec.RequestID = requestID
	rec.ProtocolVersion = resp.ProtocolVersion
	rec.ProtocolDigest = digest
	rec.Duration = resp.Duration

	if err := v.sink.Record(ctx, rec); err != nil {
		if errors.Is(err, audit.ErrBufferFull) {
			v.logger.WarnContext(ctx, "Audit record dropped", "record_id", rec.ID)
		} else {
			v.logger.ErrorContext(ctx, "Failed to record audit trace", "error", fmt.Errorf("record %s: %w", rec.ID, err))
		}
		return ""
	}
	return rec.ID
}
