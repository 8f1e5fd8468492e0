package config

import "time"

// Default values for configuration fields.
const (
	// Protocol defaults
	DefaultProtocolsPath     = "config/medical_protocols.yaml"
	DefaultProtocolsWatch    = false
	DefaultProtocolsDebounce = 100 * time.Millisecond

	// Compliance defaults
	DefaultPIIPattern             = "medicare"
	DefaultLowConfidenceThreshold = 0.7

	// Audit defaults
	DefaultAuditEnabled              = true
	DefaultAuditBackend              = "memory"
	DefaultAuditSQLiteDriver         = "sqlite"
	DefaultAuditSQLitePath           = "data/audit.db"
	DefaultAuditSQLiteMaxOpenConns   = 10
	DefaultAuditSQLiteMaxIdleConns   = 5
	DefaultAuditSQLiteWALMode        = true
	DefaultAuditSQLiteBusyTimeout    = 5 * time.Second
	DefaultAuditRecorderBufferSize   = 1000
	DefaultAuditRecorderWriteTimeout = 5 * time.Second
	DefaultAuditRetentionDays        = 90
	DefaultAuditPruneSchedule        = "0 3 * * *"
	DefaultAuditArchivePath          = "data/archives/"

	// Telemetry defaults
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "json"
	DefaultLogRedactPII       = true
	DefaultMetricsEnabled     = true
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "guardrails"
	DefaultMetricsMaxRuleIDs  = 500
	DefaultTracingEnabled     = false
	DefaultTracingTimeout     = 10 * time.Second
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingServiceName = "clinical-guardrails"

	// Server defaults
	DefaultListenAddress   = "127.0.0.1:9090"
	DefaultShutdownTimeout = 30 * time.Second
)

// NewDefault returns a configuration with every default applied,
// including the boolean defaults that ApplyDefaults cannot distinguish
// from an explicit false.
func NewDefault() *Config {
	cfg := &Config{}
	cfg.Protocols.Watch = DefaultProtocolsWatch
	cfg.Audit.Enabled = DefaultAuditEnabled
	cfg.Audit.SQLite.WALMode = DefaultAuditSQLiteWALMode
	cfg.Audit.Retention.RetentionDays = DefaultAuditRetentionDays
	cfg.Telemetry.Logging.RedactPII = DefaultLogRedactPII
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Telemetry.Tracing.Enabled = DefaultTracingEnabled
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their default values.
// Boolean fields are left alone; LoadConfig decodes onto NewDefault so
// that omitted booleans keep their defaults.
func ApplyDefaults(cfg *Config) {
	// Protocol defaults
	if cfg.Protocols.Path == "" {
		cfg.Protocols.Path = DefaultProtocolsPath
	}
	if cfg.Protocols.Debounce == 0 {
		cfg.Protocols.Debounce = DefaultProtocolsDebounce
	}

	// Compliance defaults
	if len(cfg.Compliance.PIIPatterns) == 0 {
		cfg.Compliance.PIIPatterns = []string{DefaultPIIPattern}
	}
	if cfg.Compliance.LowConfidenceThreshold == 0 {
		cfg.Compliance.LowConfidenceThreshold = DefaultLowConfidenceThreshold
	}

	// Audit defaults
	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = DefaultAuditBackend
	}
	if cfg.Audit.SQLite.Driver == "" {
		cfg.Audit.SQLite.Driver = DefaultAuditSQLiteDriver
	}
	if cfg.Audit.SQLite.Path == "" {
		cfg.Audit.SQLite.Path = DefaultAuditSQLitePath
	}
	if cfg.Audit.SQLite.MaxOpenConns == 0 {
		cfg.Audit.SQLite.MaxOpenConns = DefaultAuditSQLiteMaxOpenConns
	}
	if cfg.Audit.SQLite.MaxIdleConns == 0 {
		cfg.Audit.SQLite.MaxIdleConns = DefaultAuditSQLiteMaxIdleConns
	}
	if cfg.Audit.SQLite.BusyTimeout == 0 {
		cfg.Audit.SQLite.BusyTimeout = DefaultAuditSQLiteBusyTimeout
	}
	if cfg.Audit.Recorder.BufferSize == 0 {
		cfg.Audit.Recorder.BufferSize = DefaultAuditRecorderBufferSize
	}
	if cfg.Audit.Recorder.WriteTimeout == 0 {
		cfg.Audit.Recorder.WriteTimeout = DefaultAuditRecorderWriteTimeout
	}
	if cfg.Audit.Retention.PruneSchedule == "" {
		cfg.Audit.Retention.PruneSchedule = DefaultAuditPruneSchedule
	}
	if cfg.Audit.Retention.ArchivePath == "" {
		cfg.Audit.Retention.ArchivePath = DefaultAuditArchivePath
	}
	// RetentionDays 0 means keep forever, so it is only defaulted by NewDefault.

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.MaxRuleIDs == 0 {
		cfg.Telemetry.Metrics.MaxRuleIDs = DefaultMetricsMaxRuleIDs
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 && cfg.Telemetry.Tracing.Sampler == "ratio" {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}

	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
}
