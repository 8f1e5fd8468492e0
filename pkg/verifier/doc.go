// Package verifier runs clinical verifications end to end.
//
// A Verifier composes the compliance engine with its collaborators: the
// active protocol configuration, a FHIR bundle when the subject is not
// given inline, the audit sink, metrics and tracing. Dependencies are
// passed explicitly with options; there is no package state.
//
//	v := verifier.New(engine, protocolManager,
//		verifier.WithSink(recorder),
//		verifier.WithMetrics(collector),
//		verifier.WithTracer(tracer),
//		verifier.WithLogger(logger),
//	)
//	resp, err := v.Verify(ctx, verifier.Request{Patient: &p, Context: &emr, Output: &out})
//
// Collaborator failures are folded into the Response as synthetic critical
// alerts, so callers always get a verdict for a well-formed request.
package verifier
