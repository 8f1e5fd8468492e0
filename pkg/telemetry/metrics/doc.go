// Package metrics provides Prometheus metrics collection for the guardrails.
//
// # Overview
//
// The collector owns a private Prometheus registry and groups metrics by
// the component that produces them:
//
//   - Verification Metrics: verdicts, alerts by rule and severity, trust
//     score distribution and verification latency
//   - Protocol Metrics: protocol configuration reloads and loaded rule count
//   - Audit Metrics: trace records written and dropped
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordVerification(result.Value(), 3*time.Millisecond)
//	http.Handle("/metrics", collector.Handler())
//
// # Cardinality Management
//
// Rule ids come from protocol configuration, so the number of distinct
// values is bounded by a CardinalityLimiter. Rule ids past the limit are
// recorded as "other".
package metrics
