package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"clinical-guardrails/guardrails/pkg/audit"
	"clinical-guardrails/guardrails/pkg/audit/export"
	"clinical-guardrails/guardrails/pkg/audit/retention"
	"clinical-guardrails/guardrails/pkg/cli"
)

var auditFlags struct {
	timeRange    string
	patientID    string
	visitID      string
	ruleID       string
	outcome      string
	limit        int
	offset       int
	sortOrder    string
	format       string
	exportFormat string
	output       string
	verify       bool
	recent       int

	retentionDays int
	maxRecords    int64
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query and maintain the verification audit trail",
	Long: `Query, export and maintain the audit trail of verifications.

Every verification is recorded with its verdict, alerts, the protocol
version it ran against and a digest of the record. The audit commands read
the SQLite store configured under audit.sqlite.

Subcommands:
  query  - List trace records with filters
  export - Export trace records as JSON, JSON Lines or CSV
  stats  - Summarize runs, failures and rule counts
  report - Render an HTML compliance attestation report
  prune  - Apply the retention policy now`,
}

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query trace records",
	Long: `Query trace records with filters, newest first.

Time Range Format:
  RFC3339 interval format: "start/end"
  Example: "2025-11-19T00:00:00Z/2025-11-20T00:00:00Z"

Examples:
  # Failed verifications for one patient
  guardrails audit query --patient-id P001 --outcome unsafe

  # Records that raised a rule, with digest verification
  guardrails audit query --rule-id PROTOCOL_ALLERGY_CHECKS_PENICILLIN_ALLERGY --verify`,
	RunE: queryAudit,
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export trace records",
	Long: `Export trace records matching the filters, oldest first.

Examples:
  guardrails audit export --format jsonl --output audit.jsonl
  guardrails audit export --format csv --time-range "2025-11-01T00:00:00Z/2025-12-01T00:00:00Z"`,
	RunE: exportAudit,
}

var auditStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the audit trail",
	RunE:  statsAudit,
}

var auditReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate an HTML compliance report",
	Long: `Render an HTML attestation report with compliance statistics, the most
frequent rules and the most recent verifications.

Examples:
  guardrails audit report --output report.html --recent 50`,
	RunE: reportAudit,
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply the retention policy",
	Long: `Delete trace records older than the retention period and, when a record
limit is set, the oldest records beyond it. Records are archived as JSON
Lines first when audit.retention.archive_before_delete is set.`,
	RunE: pruneAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditQueryCmd, auditExportCmd, auditStatsCmd, auditReportCmd, auditPruneCmd)

	for _, cmd := range []*cobra.Command{auditQueryCmd, auditExportCmd, auditStatsCmd, auditReportCmd} {
		cmd.Flags().StringVar(&auditFlags.timeRange, "time-range", "", "time range (RFC3339 interval: start/end)")
		cmd.Flags().StringVar(&auditFlags.patientID, "patient-id", "", "filter by patient ID")
		cmd.Flags().StringVar(&auditFlags.visitID, "visit-id", "", "filter by visit ID")
		cmd.Flags().StringVar(&auditFlags.ruleID, "rule-id", "", "filter by alert rule ID")
		cmd.Flags().StringVar(&auditFlags.outcome, "outcome", "", "filter by outcome: safe, unsafe")
	}

	auditQueryCmd.Flags().IntVar(&auditFlags.limit, "limit", audit.DefaultLimit, "max results")
	auditQueryCmd.Flags().IntVar(&auditFlags.offset, "offset", 0, "pagination offset")
	auditQueryCmd.Flags().StringVar(&auditFlags.sortOrder, "sort", "desc", "sort by time: asc, desc")
	auditQueryCmd.Flags().StringVar(&auditFlags.format, "format", "text", "output format: text, json, csv")
	auditQueryCmd.Flags().BoolVar(&auditFlags.verify, "verify", false, "verify record digests")

	auditExportCmd.Flags().StringVar(&auditFlags.exportFormat, "format", "jsonl", "export format: json, jsonl, csv")
	auditExportCmd.Flags().StringVarP(&auditFlags.output, "output", "o", "", "output file (default: stdout)")

	auditStatsCmd.Flags().StringVar(&auditFlags.format, "format", "text", "output format: text, json")

	auditReportCmd.Flags().StringVarP(&auditFlags.output, "output", "o", "", "output file (default: stdout)")
	auditReportCmd.Flags().IntVar(&auditFlags.recent, "recent", 20, "number of recent verifications to include")

	auditPruneCmd.Flags().IntVar(&auditFlags.retentionDays, "retention-days", -1, "override audit.retention.retention_days")
	auditPruneCmd.Flags().Int64Var(&auditFlags.maxRecords, "max-records", -1, "override audit.retention.max_records")
}

// parseTimeRange parses an RFC3339 "start/end" interval.
func parseTimeRange(s string) (*time.Time, *time.Time, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("invalid time range format (expected: start/end)")
	}

	start, err := time.Parse(time.RFC3339, parts[0])
	if err != nil {
		return nil, nil, fmt.Errorf("invalid start time: %w", err)
	}
	end, err := time.Parse(time.RFC3339, parts[1])
	if err != nil {
		return nil, nil, fmt.Errorf("invalid end time: %w", err)
	}
	return &start, &end, nil
}

// buildQuery maps the filter flags onto a query.
func buildQuery() (*audit.Query, error) {
	query := &audit.Query{
		PatientID: auditFlags.patientID,
		VisitID:   auditFlags.visitID,
		RuleID:    auditFlags.ruleID,
		Outcome:   auditFlags.outcome,
	}
	if auditFlags.timeRange != "" {
		start, end, err := parseTimeRange(auditFlags.timeRange)
		if err != nil {
			return nil, err
		}
		query.StartTime, query.EndTime = start, end
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}
	return query, nil
}

// withAuditStore opens the audit store and runs fn with it.
func withAuditStore(fn func(audit.Storage) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := newLogger(cfg); err != nil {
		return err
	}
	store, err := openQueryStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

// openOutput returns the file named by path, or stdout when empty.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// traceTable renders trace records for the text and csv formatters.
type traceTable struct {
	records []*audit.TraceRecord
	digests map[string]string
}

func (t traceTable) Header() []string {
	h := []string{"ID", "RECORDED_AT", "PATIENT", "VISIT", "SAFE", "SCORE", "ALERTS", "PROTOCOL"}
	if t.digests != nil {
		h = append(h, "DIGEST")
	}
	return h
}

func (t traceTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.records))
	for _, r := range t.records {
		rules := make([]string, 0, len(r.Alerts))
		for _, a := range r.Alerts {
			rules = append(rules, a.RuleID)
		}
		alerts := "-"
		if len(rules) > 0 {
			alerts = strings.Join(rules, ";")
		}
		row := []string{
			r.ID,
			r.RecordedAt.UTC().Format(time.RFC3339),
			r.PatientID,
			r.VisitID,
			fmt.Sprint(r.IsSafeToFile),
			fmt.Sprintf("%.2f", r.Score),
			alerts,
			r.ProtocolVersion,
		}
		if t.digests != nil {
			row = append(row, t.digests[r.ID])
		}
		rows = append(rows, row)
	}
	return rows
}

// verifyDigests checks every record digest and returns a status per id.
func verifyDigests(records []*audit.TraceRecord) (map[string]string, int) {
	status := make(map[string]string, len(records))
	invalid := 0
	for _, r := range records {
		ok, err := r.VerifyDigest()
		switch {
		case err != nil:
			status[r.ID] = "error: " + err.Error()
			invalid++
		case ok:
			status[r.ID] = "valid"
		default:
			status[r.ID] = "MISMATCH"
			invalid++
		}
	}
	return status, invalid
}

func queryAudit(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(auditFlags.format)
	if err != nil {
		return err
	}
	query, err := buildQuery()
	if err != nil {
		return err
	}
	query.Limit = auditFlags.limit
	query.Offset = auditFlags.offset
	query.SortOrder = auditFlags.sortOrder

	return withAuditStore(func(store audit.Storage) error {
		records, err := store.Query(cmd.Context(), query)
		if err != nil {
			return cli.NewCommandError("audit query", fmt.Errorf("query failed: %w", err))
		}

		table := traceTable{records: records}
		invalid := 0
		if auditFlags.verify {
			table.digests, invalid = verifyDigests(records)
		}

		out := cmd.OutOrStdout()
		switch format {
		case cli.FormatJSON:
			result := map[string]any{
				"total_records": len(records),
				"records":       records,
			}
			if table.digests != nil {
				result["digests"] = table.digests
			}
			err = cli.NewFormatter(format).FormatTo(out, result)
		case cli.FormatCSV:
			err = cli.NewFormatter(format).FormatTo(out, table)
		default:
			fmt.Fprintf(out, "Total records: %d\n\n", len(records))
			if len(records) == 0 {
				fmt.Fprintln(out, "No records found.")
				return nil
			}
			err = cli.NewFormatter(format).FormatTo(out, table)
		}
		if err != nil {
			return err
		}

		if invalid > 0 {
			return &cli.ExitError{Code: 1, Reason: fmt.Sprintf("%d record(s) failed digest verification", invalid)}
		}
		return nil
	})
}

func exportAudit(cmd *cobra.Command, args []string) error {
	exporter, err := export.New(auditFlags.exportFormat)
	if err != nil {
		return err
	}
	query, err := buildQuery()
	if err != nil {
		return err
	}
	query.SortOrder = "asc"

	return withAuditStore(func(store audit.Storage) error {
		records, err := store.Query(cmd.Context(), query)
		if err != nil {
			return cli.NewCommandError("audit export", fmt.Errorf("query failed: %w", err))
		}

		out, closeOut, err := openOutput(cmd, auditFlags.output)
		if err != nil {
			return err
		}
		if err := exporter.Export(cmd.Context(), records, out); err != nil {
			closeOut()
			return cli.NewCommandError("audit export", err)
		}
		if err := closeOut(); err != nil {
			return err
		}

		if auditFlags.output != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Exported %d record(s) to %s\n", len(records), auditFlags.output)
		}
		return nil
	})
}

// statsSummary is the stats output.
type statsSummary struct {
	*audit.Stats
	ComplianceRate float64 `json:"compliance_rate"`
}

func statsAudit(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(auditFlags.format)
	if err != nil {
		return err
	}
	query, err := buildQuery()
	if err != nil {
		return err
	}

	return withAuditStore(func(store audit.Storage) error {
		stats, err := store.Stats(cmd.Context(), query)
		if err != nil {
			return cli.NewCommandError("audit stats", err)
		}

		out := cmd.OutOrStdout()
		if format != cli.FormatText {
			return cli.NewFormatter(format).FormatTo(out, statsSummary{Stats: stats, ComplianceRate: stats.ComplianceRate()})
		}

		fmt.Fprintf(out, "Total runs: %d\n", stats.TotalRuns)
		fmt.Fprintf(out, "Failed compliance: %d\n", stats.FailedCompliance)
		fmt.Fprintf(out, "Compliance rate: %.1f%%\n", stats.ComplianceRate())
		if len(stats.RuleCounts) == 0 {
			return nil
		}

		fmt.Fprintln(out, "\nRule counts:")
		for _, rc := range export.NewReport(stats, nil, time.Now()).Rules {
			fmt.Fprintf(out, "  %6d  %s\n", rc.Count, rc.RuleID)
		}
		return nil
	})
}

func reportAudit(cmd *cobra.Command, args []string) error {
	query, err := buildQuery()
	if err != nil {
		return err
	}

	return withAuditStore(func(store audit.Storage) error {
		stats, err := store.Stats(cmd.Context(), query)
		if err != nil {
			return cli.NewCommandError("audit report", err)
		}

		recentQuery := *query
		recentQuery.Limit = auditFlags.recent
		recentQuery.SortOrder = "desc"
		recent, err := store.Query(cmd.Context(), &recentQuery)
		if err != nil {
			return cli.NewCommandError("audit report", err)
		}

		out, closeOut, err := openOutput(cmd, auditFlags.output)
		if err != nil {
			return err
		}
		if err := export.NewReport(stats, recent, time.Now().UTC()).WriteHTML(out); err != nil {
			closeOut()
			return cli.NewCommandError("audit report", err)
		}
		if err := closeOut(); err != nil {
			return err
		}

		if auditFlags.output != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Report written to %s\n", auditFlags.output)
		}
		return nil
	})
}

func pruneAudit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := newLogger(cfg); err != nil {
		return err
	}

	rc := retentionConfig(cfg)
	if auditFlags.retentionDays >= 0 {
		rc.RetentionDays = auditFlags.retentionDays
	}
	if auditFlags.maxRecords >= 0 {
		rc.MaxRecords = auditFlags.maxRecords
	}
	if rc.RetentionDays == 0 && rc.MaxRecords == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Retention is unlimited; nothing to prune.")
		return nil
	}

	store, err := openQueryStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	deleted, err := retention.NewPruner(store, rc).Prune(cmd.Context())
	if err != nil {
		return cli.NewCommandError("audit prune", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Pruned %d record(s)\n", deleted)
	return nil
}
