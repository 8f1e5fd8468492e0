package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"clinical-guardrails/guardrails/pkg/cli"
	"clinical-guardrails/guardrails/pkg/clinical"
	"clinical-guardrails/guardrails/pkg/fhir"
	"clinical-guardrails/guardrails/pkg/protocols/manager"
	"clinical-guardrails/guardrails/pkg/telemetry/tracing"
	"clinical-guardrails/guardrails/pkg/verifier"
)

// exitUnsafe is the exit code of a verification that is not safe to file.
const exitUnsafe = 2

var verifyFlags struct {
	request    string
	bundle     string
	patientID  string
	extraction string
	transcript string
	output     string
	protocols  string
	format     string
	noAudit    bool
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify an AI-generated clinical summary",
	Long: `Verify an AI-generated clinical summary against the patient record and
the medical protocols, print the verdict and record it to the audit trail.

The input is either a complete request document (--request) or assembled
from parts: a FHIR bundle for the patient and encounter, and either an AI
output document or a structured extraction plus its transcript.

Exit status is 0 when the summary is safe to file and 2 when it is not.

Examples:
  # Verify a request document
  guardrails verify --request request.json

  # Verify an extraction against a FHIR bundle
  guardrails verify --fhir-bundle bundle.json --patient-id P001 \
    --extraction extraction.json --transcript transcript.txt

  # Print the full response as JSON
  guardrails verify --request request.json --format json`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVarP(&verifyFlags.request, "request", "r", "", "request document (JSON, - for stdin)")
	verifyCmd.Flags().StringVar(&verifyFlags.bundle, "fhir-bundle", "", "FHIR R4 bundle with the patient and encounter")
	verifyCmd.Flags().StringVar(&verifyFlags.patientID, "patient-id", "", "patient id within the bundle (default: first patient)")
	verifyCmd.Flags().StringVar(&verifyFlags.extraction, "extraction", "", "structured extraction (JSON)")
	verifyCmd.Flags().StringVar(&verifyFlags.transcript, "transcript", "", "transcript text file")
	verifyCmd.Flags().StringVar(&verifyFlags.output, "ai-output", "", "AI-generated output (JSON)")
	verifyCmd.Flags().StringVar(&verifyFlags.protocols, "protocols", "", "protocol file (default: protocols.path from config)")
	verifyCmd.Flags().StringVar(&verifyFlags.format, "format", "text", "output format: text, json")
	verifyCmd.Flags().BoolVar(&verifyFlags.noAudit, "no-audit", false, "do not record the verification")

	verifyCmd.MarkFlagsMutuallyExclusive("request", "fhir-bundle")
	verifyCmd.MarkFlagsMutuallyExclusive("extraction", "ai-output")
}

// readInput reads a file, or stdin for "-".
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func decodeJSONFile(path string, stdin io.Reader, v any) error {
	data, err := readInput(path, stdin)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// buildRequest assembles the verification request from the flags.
func buildRequest(stdin io.Reader) (verifier.Request, error) {
	var req verifier.Request
	if verifyFlags.request != "" {
		if err := decodeJSONFile(verifyFlags.request, stdin, &req); err != nil {
			return req, err
		}
	} else {
		if verifyFlags.bundle == "" {
			return req, cli.NewConfigError("", "either --request or --fhir-bundle is required")
		}
		bundle, err := fhir.LoadBundle(verifyFlags.bundle)
		if err != nil {
			return req, err
		}
		req.Bundle = bundle
		req.PatientID = verifyFlags.patientID

		switch {
		case verifyFlags.output != "":
			req.Output = &clinical.AIGeneratedOutput{}
			if err := decodeJSONFile(verifyFlags.output, stdin, req.Output); err != nil {
				return req, err
			}
		case verifyFlags.extraction != "":
			req.Extraction = &clinical.StructuredExtraction{}
			if err := decodeJSONFile(verifyFlags.extraction, stdin, req.Extraction); err != nil {
				return req, err
			}
		default:
			return req, cli.NewConfigError("", "either --ai-output or --extraction is required")
		}

		if verifyFlags.transcript != "" {
			data, err := readInput(verifyFlags.transcript, stdin)
			if err != nil {
				return req, err
			}
			req.Transcript = string(data)
		}
	}

	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	return req, nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(verifyFlags.format)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}

	req, err := buildRequest(cmd.InOrStdin())
	if err != nil {
		return err
	}

	protocolManager, err := manager.New(manager.Config{Path: protocolsPath(cfg, verifyFlags.protocols)}, logger)
	if err != nil {
		return err
	}
	if err := protocolManager.Load(); err != nil {
		return fmt.Errorf("failed to load protocols: %w", err)
	}

	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
	if err != nil {
		return cli.NewConfigError("telemetry.tracing", err.Error())
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Telemetry.Tracing.Timeout)
		defer cancel()
		if err := tracer.Shutdown(ctx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	opts := []verifier.Option{
		verifier.WithLogger(logger),
		verifier.WithTracer(tracer),
		verifier.WithLowConfidenceThreshold(cfg.Compliance.LowConfidenceThreshold),
	}

	if cfg.Audit.Enabled && !verifyFlags.noAudit {
		store, err := openStorage(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		rec := newRecorder(cfg, store, nil, logger)
		// Close drains the buffer, so it runs before the store closes.
		defer rec.Close()
		opts = append(opts, verifier.WithSink(rec))
	}

	ctx, cancel := cli.SetupSignalHandler(cmd.Context())
	defer cancel()

	v := verifier.New(engine, protocolManager, opts...)
	resp, err := v.Verify(ctx, req)
	if err != nil {
		return cli.NewCommandError("verify", err)
	}

	out := cmd.OutOrStdout()
	if format == cli.FormatText {
		writeVerdict(out, resp)
	} else if err := cli.NewFormatter(format).FormatTo(out, resp); err != nil {
		return err
	}

	if !resp.Result.IsSafeToFile {
		return &cli.ExitError{Code: exitUnsafe, Reason: "not safe to file"}
	}
	return nil
}

func writeVerdict(out io.Writer, resp *verifier.Response) {
	r := resp.Result
	if r.IsSafeToFile {
		fmt.Fprintf(out, "✓ Safe to file (score %.2f)\n", r.Score)
	} else {
		fmt.Fprintf(out, "✗ Not safe to file (score %.2f)\n", r.Score)
	}
	fmt.Fprintf(out, "  Patient: %s\n", resp.PatientID)
	fmt.Fprintf(out, "  Visit: %s\n", resp.VisitID)
	if resp.ProtocolVersion != "" {
		fmt.Fprintf(out, "  Protocol version: %s\n", resp.ProtocolVersion)
	}
	if resp.AuditID != "" {
		fmt.Fprintf(out, "  Audit record: %s\n", resp.AuditID)
	}
	if resp.LowConfidence {
		fmt.Fprintln(out, "  ⚠ Extraction contains low-confidence values")
	}
	writeAlerts(out, r.Alerts)
}

func writeAlerts(out io.Writer, alerts []clinical.ComplianceAlert) {
	if len(alerts) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%d alert(s):\n", len(alerts))
	for _, a := range alerts {
		line := fmt.Sprintf("  [%s] %s: %s", strings.ToUpper(string(a.Severity)), a.RuleID, a.Message)
		if a.Field != "" {
			line += fmt.Sprintf(" (field %s)", a.Field)
		}
		fmt.Fprintln(out, line)
	}
}
