package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"clinical-guardrails/guardrails/pkg/config"
)

// VerificationMetrics tracks compliance verifications.
//
// Metrics:
//   - guardrails_verifications_total: Verifications by outcome (safe, unsafe)
//   - guardrails_alerts_total: Alerts by rule and severity
//   - guardrails_trust_score: Distribution of trust scores
//   - guardrails_verification_duration_seconds: Verification latency
type VerificationMetrics struct {
	verificationsTotal *prometheus.CounterVec
	alertsTotal        *prometheus.CounterVec
	trustScore         prometheus.Histogram
	duration           prometheus.Histogram
}

// NewVerificationMetrics creates and registers verification metrics with the provided registry.
func NewVerificationMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *VerificationMetrics {
	vm := &VerificationMetrics{
		verificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "verifications_total",
				Help:      "Total number of compliance verifications",
			},
			[]string{"outcome"},
		),

		alertsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "alerts_total",
				Help:      "Total number of compliance alerts raised",
			},
			[]string{"rule_id", "severity"},
		),

		trustScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "trust_score",
				Help:      "Trust score of verifications",
				// Scores are tiered: 0 for unsafe, then 0.7, 0.9 and 1.0.
				Buckets: []float64{0, 0.5, 0.7, 0.8, 0.9, 1.0},
			},
		),

		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "verification_duration_seconds",
				Help:      "Duration of compliance verification in seconds",
				Buckets:   cfg.DurationBuckets,
			},
		),
	}

	registry.MustRegister(
		vm.verificationsTotal,
		vm.alertsTotal,
		vm.trustScore,
		vm.duration,
	)

	return vm
}

// RecordVerification records one verdict.
func (vm *VerificationMetrics) RecordVerification(outcome string, score float64, duration time.Duration) {
	vm.verificationsTotal.WithLabelValues(outcome).Inc()
	vm.trustScore.Observe(score)
	vm.duration.Observe(duration.Seconds())
}

// RecordAlert records one alert.
func (vm *VerificationMetrics) RecordAlert(ruleID, severity string) {
	vm.alertsTotal.WithLabelValues(ruleID, severity).Inc()
}
