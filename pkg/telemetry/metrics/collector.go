package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"clinical-guardrails/guardrails/pkg/clinical"
	"clinical-guardrails/guardrails/pkg/config"
)

// DefaultMaxRuleIDs bounds the number of distinct rule_id label values.
const DefaultMaxRuleIDs = 500

// OtherLabel replaces label values past the cardinality limit.
const OtherLabel = "other"

// Outcome label values for verifications_total.
const (
	OutcomeSafe   = "safe"
	OutcomeUnsafe = "unsafe"
)

// Collector manages metric registration and provides a single interface
// for recording metrics across all components. A disabled collector
// records nothing.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	verificationMetrics *VerificationMetrics
	protocolMetrics     *ProtocolMetrics
	auditMetrics        *AuditMetrics

	ruleIDLimiter *CardinalityLimiter
}

// Series selects the metric groups a collector registers.
type Series uint8

const (
	// SeriesVerification covers verifications_total, alerts_total,
	// trust_score and verification_duration_seconds.
	SeriesVerification Series = 1 << iota
	// SeriesProtocol covers protocol reloads and the loaded rule count.
	SeriesProtocol
	// SeriesAudit covers the trace recorder counters.
	SeriesAudit

	SeriesAll = SeriesVerification | SeriesProtocol | SeriesAudit
)

// NewCollector creates a collector registering every series. If registry is
// nil, a new private registry is used.
//
// Example:
//
//	cfg := &config.MetricsConfig{
//		Enabled:   true,
//		Namespace: "guardrails",
//	}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	return NewCollectorFor(cfg, registry, SeriesAll)
}

// NewCollectorFor creates a collector that registers only the given series,
// so a process exposes nothing it can never update. Recording into an
// unregistered series is a no-op.
func NewCollectorFor(cfg *config.MetricsConfig, registry *prometheus.Registry, series Series) *Collector {
	if cfg == nil {
		cfg = &config.MetricsConfig{Enabled: true}
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = "guardrails"
	}
	if len(cfg.DurationBuckets) == 0 {
		// Verifications are CPU bound and run in microseconds to milliseconds.
		cfg.DurationBuckets = prometheus.ExponentialBuckets(0.00005, 2, 14) // 50µs to ~400ms
	}
	if cfg.MaxRuleIDs <= 0 {
		cfg.MaxRuleIDs = DefaultMaxRuleIDs
	}

	c := &Collector{
		config:        cfg,
		registry:      registry,
		ruleIDLimiter: NewCardinalityLimiter(cfg.MaxRuleIDs),
	}

	if series&SeriesVerification != 0 {
		c.verificationMetrics = NewVerificationMetrics(cfg, registry)
	}
	if series&SeriesProtocol != 0 {
		c.protocolMetrics = NewProtocolMetrics(cfg, registry)
	}
	if series&SeriesAudit != 0 {
		c.auditMetrics = NewAuditMetrics(cfg, registry)
	}

	return c
}

// RecordVerification records the verdict, alerts and latency of one
// verification.
//
// Example:
//
//	collector.RecordVerification(clinical.VerificationResult{
//		IsSafeToFile: true,
//		Score:        0.9,
//	}, 2*time.Millisecond)
func (c *Collector) RecordVerification(result clinical.VerificationResult, duration time.Duration) {
	if c == nil || !c.config.Enabled || c.verificationMetrics == nil {
		return
	}

	outcome := OutcomeSafe
	if !result.IsSafeToFile {
		outcome = OutcomeUnsafe
	}
	c.verificationMetrics.RecordVerification(outcome, result.Score, duration)

	for _, alert := range result.Alerts {
		ruleID := alert.RuleID
		if !c.ruleIDLimiter.Allow(ruleID) {
			ruleID = OtherLabel
		}
		c.verificationMetrics.RecordAlert(ruleID, string(alert.Severity))
	}
}

// RecordProtocolReload records a protocol configuration reload attempt.
// On success rules is the number of rules now loaded.
func (c *Collector) RecordProtocolReload(success bool, rules int) {
	if c == nil || !c.config.Enabled || c.protocolMetrics == nil {
		return
	}
	c.protocolMetrics.RecordReload(success, rules)
}

// RecordAuditWritten records a trace record reaching storage.
func (c *Collector) RecordAuditWritten() {
	if c == nil || !c.config.Enabled || c.auditMetrics == nil {
		return
	}
	c.auditMetrics.RecordWritten()
}

// RecordAuditDropped records a trace record dropped by the recorder.
func (c *Collector) RecordAuditDropped() {
	if c == nil || !c.config.Enabled || c.auditMetrics == nil {
		return
	}
	c.auditMetrics.RecordDropped()
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique values a label may take.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label value is allowed. Returns true if the value
// was seen before or the limit has not been reached yet.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[value]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[value] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
