package main

import (
	"fmt"
	"log/slog"
	"strings"

	"clinical-guardrails/guardrails/pkg/audit"
	"clinical-guardrails/guardrails/pkg/audit/recorder"
	"clinical-guardrails/guardrails/pkg/audit/retention"
	"clinical-guardrails/guardrails/pkg/audit/storage"
	"clinical-guardrails/guardrails/pkg/cli"
	"clinical-guardrails/guardrails/pkg/compliance"
	"clinical-guardrails/guardrails/pkg/config"
	"clinical-guardrails/guardrails/pkg/telemetry/logging"
	"clinical-guardrails/guardrails/pkg/telemetry/metrics"
)

// loadConfig loads the application configuration named by --config with
// GUARDRAILS_* environment overrides applied.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg, nil
}

// newLogger builds the process logger. --verbose forces debug level.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	logCfg := logging.FromConfig(cfg.Telemetry.Logging)
	if verbose {
		logCfg.Level = "debug"
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)
	return logger, nil
}

// newEngine builds the compliance engine with the configured PII patterns.
func newEngine(cfg *config.Config) (*compliance.Engine, error) {
	patterns, err := compliance.PIIPatternsByName(cfg.Compliance.PIIPatterns)
	if err != nil {
		return nil, cli.NewConfigError("compliance.pii_patterns", err.Error())
	}
	return compliance.NewEngine(compliance.WithPIIPatterns(patterns...)), nil
}

// protocolsPath returns override when set, the configured path otherwise.
func protocolsPath(cfg *config.Config, override string) string {
	if override != "" {
		return override
	}
	return cfg.Protocols.Path
}

// openStorage opens the configured audit backend.
func openStorage(cfg *config.Config) (audit.Storage, error) {
	sc := cfg.Audit.SQLite
	store, err := storage.Open(storage.Config{
		Backend: cfg.Audit.Backend,
		SQLite: &storage.SQLiteConfig{
			Driver:       sc.Driver,
			Path:         sc.Path,
			MaxOpenConns: sc.MaxOpenConns,
			MaxIdleConns: sc.MaxIdleConns,
			WALMode:      sc.WALMode,
			BusyTimeout:  sc.BusyTimeout,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s audit storage: %w", cfg.Audit.Backend, err)
	}
	return store, nil
}

// openQueryStorage opens the audit store for the read-side audit commands.
// An in-memory store is always empty in a fresh process, so it is refused.
func openQueryStorage(cfg *config.Config) (audit.Storage, error) {
	if !strings.EqualFold(cfg.Audit.Backend, storage.BackendSQLite) {
		return nil, cli.NewConfigError("audit.backend",
			fmt.Sprintf("backend %q does not persist between runs; configure %q", cfg.Audit.Backend, storage.BackendSQLite))
	}
	return openStorage(cfg)
}

// newRecorder builds the async recorder and connects its hooks to the
// audit metrics. collector may be nil.
func newRecorder(cfg *config.Config, store audit.Storage, collector *metrics.Collector, logger *slog.Logger) *recorder.Recorder {
	return recorder.NewRecorder(store, &recorder.Config{
		Enabled:      cfg.Audit.Enabled,
		BufferSize:   cfg.Audit.Recorder.BufferSize,
		WriteTimeout: cfg.Audit.Recorder.WriteTimeout,
	},
		recorder.WithLogger(logger),
		recorder.WithWriteHook(collector.RecordAuditWritten),
		recorder.WithDropHook(collector.RecordAuditDropped),
	)
}

// retentionConfig maps the retention section.
func retentionConfig(cfg *config.Config) *retention.Config {
	rc := cfg.Audit.Retention
	return &retention.Config{
		RetentionDays:       rc.RetentionDays,
		MaxRecords:          rc.MaxRecords,
		PruneSchedule:       rc.PruneSchedule,
		ArchiveBeforeDelete: rc.ArchiveBeforeDelete,
		ArchivePath:         rc.ArchivePath,
	}
}
