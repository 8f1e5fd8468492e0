// Package tracing provides OpenTelemetry tracing for compliance
// verifications.
//
// # Overview
//
// Each verification runs inside a span. Spans carry the verdict, score,
// alert count and rule ids, and are exported over OTLP gRPC. Patient
// identifiers are never set as span attributes; spans carry the visit id
// and request id only.
//
// # Sampling Strategies
//
// Three sampling strategies are supported:
//   - always: Sample all traces (development/debugging)
//   - never: Sample no traces
//   - ratio: Sample a percentage of traces (production)
//
// All samplers respect the parent span's decision.
//
// # Usage
//
//	tracer, err := tracing.New(&config.TracingConfig{
//	    Enabled:     true,
//	    Sampler:     "ratio",
//	    SampleRatio: 0.1,
//	    Endpoint:    "localhost:4317",
//	    ServiceName: "guardrails",
//	})
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, tracing.SpanVerify)
//	defer span.End()
//	tracing.SetVerificationAttributes(span, result)
//
// When tracing is disabled a noop tracer is returned.
package tracing
