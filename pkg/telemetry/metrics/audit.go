package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"clinical-guardrails/guardrails/pkg/config"
)

// AuditMetrics tracks the audit trail recorder.
//
// Metrics:
//   - guardrails_audit_records_written_total: Trace records stored
//   - guardrails_audit_records_dropped_total: Trace records dropped on a full buffer
type AuditMetrics struct {
	writtenTotal prometheus.Counter
	droppedTotal prometheus.Counter
}

// NewAuditMetrics creates and registers audit metrics with the provided registry.
func NewAuditMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *AuditMetrics {
	am := &AuditMetrics{
		writtenTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "audit_records_written_total",
			Help:      "Total number of audit trace records written to storage",
		}),
		droppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "audit_records_dropped_total",
			Help:      "Total number of audit trace records dropped because the buffer was full",
		}),
	}

	registry.MustRegister(am.writtenTotal, am.droppedTotal)
	return am
}

// RecordWritten increments the written counter.
func (am *AuditMetrics) RecordWritten() {
	am.writtenTotal.Inc()
}

// RecordDropped increments the dropped counter.
func (am *AuditMetrics) RecordDropped() {
	am.droppedTotal.Inc()
}
