package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"clinical-guardrails/guardrails/pkg/audit/retention"
	"clinical-guardrails/guardrails/pkg/cli"
	"clinical-guardrails/guardrails/pkg/config"
	"clinical-guardrails/guardrails/pkg/protocols/manager"
	"clinical-guardrails/guardrails/pkg/telemetry/health"
	"clinical-guardrails/guardrails/pkg/telemetry/metrics"
	"clinical-guardrails/guardrails/pkg/telemetry/tracing"
)

var serveFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve metrics and health endpoints",
	Long: `Run the long-lived guardrails process.

serve loads the protocol configuration and keeps it current when
protocols.watch is set, runs the audit retention schedule, and exposes:
  - Prometheus metrics at telemetry.metrics.path
  - Liveness at /healthz, readiness at /readyz and build info at /version

Verifications run in the verify command, not in serve, so the served
metrics cover protocol reloads and the loaded rule count only. Verdicts
and alert counts are read from the audit trail (guardrails audit stats).

Readiness fails until a protocol configuration is loaded and while the
audit store is unreachable.

Examples:
  # Start with a config file
  guardrails serve --config guardrails.yaml

  # Override listen address
  guardrails serve --listen 0.0.0.0:9090

  # Validate config without starting
  guardrails serve --dry-run`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config without starting")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Apply flag overrides
	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = serveFlags.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("", err.Error())
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if serveFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	fmt.Fprintf(out, "Clinical Guardrails v%s\n", Version)
	if cfgFile != "" {
		fmt.Fprintf(out, "Loading configuration from: %s\n", cfgFile)
	}
	fmt.Fprintln(out, "✓ Configuration loaded")

	ctx, cancel := cli.SetupSignalHandler(cmd.Context())
	defer cancel()

	collector := newServeCollector(cfg)

	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
	if err != nil {
		return cli.NewConfigError("telemetry.tracing", err.Error())
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Telemetry.Tracing.Timeout)
		defer shutdownCancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	checker := health.New(5 * time.Second)

	protocolManager, err := startProtocols(ctx, cfg, logger, collector)
	if err != nil {
		return err
	}
	defer protocolManager.Close()
	checker.RegisterCheck(health.CheckProtocols, health.ProtocolCheck(protocolManager))

	st := protocolManager.Status()
	fmt.Fprintf(out, "✓ Protocols loaded (version %s, %d rules)\n", st.Version, st.Rules)
	if cfg.Protocols.Watch {
		fmt.Fprintf(out, "✓ Watching %s for changes\n", st.Path)
	}

	if cfg.Audit.Enabled {
		store, err := openStorage(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		checker.RegisterCheck(health.CheckAuditStorage, health.StorageCheck(store))

		rc := retentionConfig(cfg)
		if rc.PruneSchedule != "" && (rc.RetentionDays > 0 || rc.MaxRecords > 0) {
			pruner := retention.NewPruner(store, rc)
			if err := pruner.Start(ctx); err != nil {
				logger.Warn("failed to start retention scheduler", "error", err)
			} else {
				defer pruner.Stop()
				if next := pruner.NextPruning(); next != nil {
					logger.Debug("audit retention scheduler started", "next_pruning", next)
				}
			}
		}
		fmt.Fprintf(out, "✓ Audit store initialized (%s)\n", cfg.Audit.Backend)
	}

	mux := http.NewServeMux()
	health.Register(mux, checker, Version, GitCommit, BuildDate)
	if cfg.Telemetry.Metrics.Enabled {
		mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
	}

	srv := &http.Server{
		Handler:           tracing.HTTPMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.Server.ListenAddress)
	if err != nil {
		return cli.NewCommandError("serve", fmt.Errorf("failed to listen on %s: %w", cfg.Server.ListenAddress, err))
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	fmt.Fprintln(out)
	fmt.Fprintf(out, "✓ Server listening on %s\n", ln.Addr())
	fmt.Fprintf(out, "✓ Health endpoints: http://%s%s, http://%s%s\n", ln.Addr(), health.PathLiveness, ln.Addr(), health.PathReadiness)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Fprintf(out, "✓ Metrics endpoint: http://%s%s\n", ln.Addr(), cfg.Telemetry.Metrics.Path)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	select {
	case err := <-errChan:
		return cli.NewCommandError("serve", err)
	case <-ctx.Done():
		fmt.Fprintln(out, "\nShutting down gracefully...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
			return cli.NewCommandError("serve", err)
		}

		fmt.Fprintln(out, "✓ Server stopped")
		return nil
	}
}

// newServeCollector registers only the series the serve process updates.
func newServeCollector(cfg *config.Config) *metrics.Collector {
	return metrics.NewCollectorFor(&cfg.Telemetry.Metrics, prometheus.NewRegistry(), metrics.SeriesProtocol)
}

// startProtocols loads the protocol configuration, reports every load to
// the collector and starts the file watcher when enabled.
func startProtocols(ctx context.Context, cfg *config.Config, logger *slog.Logger, collector *metrics.Collector) (*manager.Manager, error) {
	m, err := manager.New(manager.Config{
		Path:             cfg.Protocols.Path,
		Watch:            cfg.Protocols.Watch,
		DebounceInterval: cfg.Protocols.Debounce,
	}, logger)
	if err != nil {
		return nil, cli.NewConfigError("protocols.path", err.Error())
	}

	m.OnReload(func(e manager.ReloadEvent) {
		collector.RecordProtocolReload(e.Success, e.Rules)
	})

	if err := m.Load(); err != nil {
		return nil, fmt.Errorf("failed to load protocols: %w", err)
	}

	if cfg.Protocols.Watch {
		if err := m.Watch(ctx); err != nil {
			m.Close()
			return nil, fmt.Errorf("failed to watch protocols: %w", err)
		}
	}
	return m, nil
}
