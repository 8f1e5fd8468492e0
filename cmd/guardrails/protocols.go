package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/golang-sql/civil"
	"github.com/spf13/cobra"

	"clinical-guardrails/guardrails/pkg/cli"
	"clinical-guardrails/guardrails/pkg/clinical"
	"clinical-guardrails/guardrails/pkg/protocols"
	"clinical-guardrails/guardrails/pkg/protocols/checkers"
	"clinical-guardrails/guardrails/pkg/protocols/registry"
)

var protocolsFlags struct {
	file        string
	format      string
	checkerType string
	patientID   string
	allergies   string
	medications string
}

var protocolsCmd = &cobra.Command{
	Use:   "protocols",
	Short: "Validate, list and test medical protocol rules",
	Long: `Manage the medical protocol configuration.

Subcommands:
  validate - Load the protocol file and summarize its checkers
  list     - List configured rules
  check    - Run the protocol checkers against an ad-hoc patient

The protocol file defaults to protocols.path from the application config.`,
}

var protocolsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a protocol configuration file",
	Long: `Load the protocol configuration and report its version, checker
enablement and rule counts. Schema, severity, version and expression errors
are reported with the offending path.

Examples:
  # Validate the configured protocol file
  guardrails protocols validate

  # Validate a specific file
  guardrails protocols validate --file config/medical_protocols.yaml`,
	RunE: validateProtocols,
}

var protocolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured protocol rules",
	Long: `List the configured protocol rules grouped by checker type.

Examples:
  # List all rules
  guardrails protocols list

  # Only allergy rules, as CSV
  guardrails protocols list --type allergy_checks --format csv`,
	RunE: listProtocols,
}

var protocolsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check an ad-hoc patient against the protocols",
	Long: `Run every enabled protocol checker against a patient built from the
given allergies and medications.

Examples:
  guardrails protocols check --allergies penicillin --medications amoxicillin,ibuprofen`,
	RunE: checkProtocols,
}

func init() {
	rootCmd.AddCommand(protocolsCmd)
	protocolsCmd.AddCommand(protocolsValidateCmd, protocolsListCmd, protocolsCheckCmd)

	protocolsCmd.PersistentFlags().StringVarP(&protocolsFlags.file, "file", "f", "", "protocol file (default: protocols.path from config)")

	protocolsValidateCmd.Flags().StringVar(&protocolsFlags.format, "format", "text", "output format: text, json")

	protocolsListCmd.Flags().StringVar(&protocolsFlags.checkerType, "type", "", "only list rules of this checker type")
	protocolsListCmd.Flags().StringVar(&protocolsFlags.format, "format", "text", "output format: text, json, csv")

	protocolsCheckCmd.Flags().StringVar(&protocolsFlags.patientID, "patient-id", "CLI-PATIENT", "patient id")
	protocolsCheckCmd.Flags().StringVar(&protocolsFlags.allergies, "allergies", "", "comma-separated allergies")
	protocolsCheckCmd.Flags().StringVar(&protocolsFlags.medications, "medications", "", "comma-separated medications")
}

func loadProtocols() (*protocols.Config, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	path := protocolsPath(cfg, protocolsFlags.file)
	pc, err := protocols.LoadConfig(path)
	if err != nil {
		return nil, path, err
	}
	return pc, path, nil
}

// checkerSummary is the validate report for one checker.
type checkerSummary struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Rules   int    `json:"rules"`
}

// protocolSummary is the validate report.
type protocolSummary struct {
	Path       string           `json:"path"`
	Version    string           `json:"version"`
	TotalRules int              `json:"total_rules"`
	Checkers   []checkerSummary `json:"checkers"`
}

func summarize(pc *protocols.Config, path string) protocolSummary {
	s := protocolSummary{Path: path, Version: pc.Version, TotalRules: pc.RuleCount()}
	seen := make(map[string]bool)
	for name, settings := range pc.Checkers {
		seen[name] = true
		rules, _ := pc.RulesFor(name)
		s.Checkers = append(s.Checkers, checkerSummary{Name: name, Enabled: settings.Enabled, Rules: len(rules)})
	}
	// Rule groups without a checkers entry are loaded but never run.
	for _, name := range pc.RuleTypes() {
		if !seen[name] {
			rules, _ := pc.RulesFor(name)
			s.Checkers = append(s.Checkers, checkerSummary{Name: name, Rules: len(rules)})
		}
	}
	sort.Slice(s.Checkers, func(i, j int) bool { return s.Checkers[i].Name < s.Checkers[j].Name })
	return s
}

func validateProtocols(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(protocolsFlags.format)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	pc, path, err := loadProtocols()
	if err != nil {
		if path == "" {
			return err
		}
		fmt.Fprintf(out, "✗ Config validation failed: %v\n", err)
		return &cli.ExitError{Code: 1, Reason: "invalid protocol configuration"}
	}

	summary := summarize(pc, path)
	if format != cli.FormatText {
		return cli.NewFormatter(format).FormatTo(out, summary)
	}

	fmt.Fprintln(out, "✓ Config loaded successfully")
	fmt.Fprintf(out, "  Version: %s\n", summary.Version)
	fmt.Fprintf(out, "  Enabled checkers: [%s]\n", strings.Join(pc.EnabledCheckers(), ", "))
	fmt.Fprintf(out, "  Total rules: %d\n", summary.TotalRules)
	for _, c := range summary.Checkers {
		status := "✗ disabled"
		if c.Enabled {
			status = "✓ enabled"
		}
		fmt.Fprintf(out, "  - %s: %s\n", c.Name, status)
		if c.Enabled && c.Rules > 0 {
			fmt.Fprintf(out, "    Rules: %d\n", c.Rules)
		}
	}
	return nil
}

// ruleRow is one listed rule.
type ruleRow struct {
	Checker  string `json:"checker"`
	Enabled  bool   `json:"enabled"`
	RuleID   string `json:"rule_id"`
	Name     string `json:"name"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Pattern  string `json:"pattern"`
}

// ruleTable renders rule rows for the text and csv formatters.
type ruleTable []ruleRow

func (t ruleTable) Header() []string {
	return []string{"CHECKER", "ENABLED", "RULE_ID", "SEVERITY", "MESSAGE", "PATTERN"}
}

func (t ruleTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		rows = append(rows, []string{r.Checker, fmt.Sprint(r.Enabled), r.RuleID, r.Severity, r.Message, r.Pattern})
	}
	return rows
}

func listRules(pc *protocols.Config, checkerType string) ruleTable {
	var table ruleTable
	for _, t := range pc.RuleTypes() {
		if checkerType != "" && t != checkerType {
			continue
		}
		rules, _ := pc.RulesFor(t)
		for _, r := range rules {
			pattern := ""
			if r.Pattern != nil {
				pattern = r.Pattern.Describe()
			}
			table = append(table, ruleRow{
				Checker:  t,
				Enabled:  pc.IsEnabled(t),
				RuleID:   checkers.RuleID(t, r.Name),
				Name:     r.Name,
				Severity: string(r.Severity),
				Message:  r.Message,
				Pattern:  pattern,
			})
		}
	}
	return table
}

func listProtocols(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(protocolsFlags.format)
	if err != nil {
		return err
	}
	pc, _, err := loadProtocols()
	if err != nil {
		return err
	}

	table := listRules(pc, protocolsFlags.checkerType)
	out := cmd.OutOrStdout()
	switch format {
	case cli.FormatJSON:
		if table == nil {
			table = ruleTable{}
		}
		return cli.NewFormatter(format).FormatTo(out, []ruleRow(table))
	case cli.FormatCSV:
		return cli.NewFormatter(format).FormatTo(out, table)
	}
	writeRuleListing(out, pc, table)
	return nil
}

func writeRuleListing(out io.Writer, pc *protocols.Config, table ruleTable) {
	fmt.Fprintf(out, "Protocol Rules (version %s)\n", pc.Version)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	current := ""
	for _, r := range table {
		if r.Checker != current {
			current = r.Checker
			status := "[DISABLED]"
			if r.Enabled {
				status = "[ENABLED]"
			}
			fmt.Fprintf(out, "\n%s %s\n", r.Checker, status)
			fmt.Fprintln(out, strings.Repeat("-", 40))
		}
		fmt.Fprintf(out, "  • %s (%s)\n", r.Name, r.RuleID)
		fmt.Fprintf(out, "    Severity: %s\n", r.Severity)
		fmt.Fprintf(out, "    Message: %s\n", r.Message)
		if r.Pattern != "" {
			fmt.Fprintf(out, "    Pattern: %s\n", r.Pattern)
		}
	}
}

// splitList splits a comma-separated flag value, dropping empty items.
func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// adHocSubject builds the patient and extraction checked by protocols check.
func adHocSubject(patientID, allergies, medications string) (clinical.PatientProfile, clinical.StructuredExtraction) {
	patient := clinical.PatientProfile{
		PatientID: patientID,
		FirstName: "Test",
		LastName:  "Patient",
		DOB:       civil.Date{Year: 1990, Month: time.January, Day: 1},
		Allergies: splitList(allergies),
	}
	extraction := clinical.StructuredExtraction{Confidence: 1}
	for _, name := range splitList(medications) {
		extraction.Medications = append(extraction.Medications, clinical.ExtractedMedication{
			Name:       name,
			Status:     clinical.MedicationUnknown,
			Confidence: 1,
		})
	}
	return patient, extraction
}

func checkProtocols(cmd *cobra.Command, args []string) error {
	pc, _, err := loadProtocols()
	if err != nil {
		return err
	}

	patient, extraction := adHocSubject(protocolsFlags.patientID, protocolsFlags.allergies, protocolsFlags.medications)
	medications := make([]string, 0, len(extraction.Medications))
	for _, m := range extraction.Medications {
		medications = append(medications, m.Name)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Checking patient: %s\n", patient.PatientID)
	fmt.Fprintf(out, "Allergies: [%s]\n", strings.Join(patient.Allergies, ", "))
	fmt.Fprintf(out, "Medications: [%s]\n", strings.Join(medications, ", "))
	fmt.Fprintln(out, strings.Repeat("-", 60))

	alerts := registry.New(pc).CheckAll(patient, extraction)
	if len(alerts) == 0 {
		fmt.Fprintln(out, "✓ No protocol violations detected")
		return nil
	}

	fmt.Fprintf(out, "⚠ %d protocol violation(s) detected:\n", len(alerts))
	for _, a := range alerts {
		fmt.Fprintf(out, "  [%s] %s (%s)\n", strings.ToUpper(string(a.Severity)), a.Message, a.RuleID)
	}
	return nil
}
