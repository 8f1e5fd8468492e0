// Package telemetry groups the observability packages of the guardrails.
//
// # Components
//
//   - logging: slog logger with PII redaction and context ids
//   - metrics: Prometheus metrics for verifications, protocol reloads and
//     the audit recorder
//   - tracing: OpenTelemetry spans exported over OTLP gRPC
//   - health: liveness and readiness endpoints
//
// # PII Protection
//
// Summaries under verification can contain the very identifiers the
// engine screens for. Log redaction reuses the compliance PII patterns so
// a leaked Medicare number is not copied into the logs that report it.
package telemetry
