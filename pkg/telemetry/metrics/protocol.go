package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"clinical-guardrails/guardrails/pkg/config"
)

// ProtocolMetrics tracks protocol configuration loading.
//
// Metrics:
//   - guardrails_protocol_reloads_total: Reload attempts by result (success, failure)
//   - guardrails_protocol_rules: Number of rules in the active configuration
type ProtocolMetrics struct {
	reloadsTotal *prometheus.CounterVec
	rules        prometheus.Gauge
}

// NewProtocolMetrics creates and registers protocol metrics with the provided registry.
func NewProtocolMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ProtocolMetrics {
	pm := &ProtocolMetrics{
		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "protocol_reloads_total",
				Help:      "Total number of protocol configuration reloads",
			},
			[]string{"result"},
		),

		rules: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "protocol_rules",
				Help:      "Number of protocol rules in the active configuration",
			},
		),
	}

	registry.MustRegister(pm.reloadsTotal, pm.rules)
	return pm
}

// RecordReload records a reload attempt. A failed reload keeps the
// previous configuration, so the rule gauge is left alone.
func (pm *ProtocolMetrics) RecordReload(success bool, rules int) {
	if !success {
		pm.reloadsTotal.WithLabelValues("failure").Inc()
		return
	}
	pm.reloadsTotal.WithLabelValues("success").Inc()
	pm.rules.Set(float64(rules))
}
