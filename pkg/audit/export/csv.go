package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"clinical-guardrails/guardrails/pkg/audit"
)

// CSVExporter exports trace records in CSV format. Alerts are flattened to
// their rule ids joined with ";".
type CSVExporter struct {
	// IncludeHeader includes a header row with column names.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

// Header returns the CSV header row.
func (e *CSVExporter) Header() []string {
	return []string{
		"id", "request_id", "patient_id", "visit_id", "recorded_at",
		"is_safe_to_file", "score", "alert_count", "rule_ids",
		"protocol_version", "protocol_digest", "duration_ms", "digest",
	}
}

// Export writes the records as CSV rows.
func (e *CSVExporter) Export(ctx context.Context, records []*audit.TraceRecord, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(e.Header()); err != nil {
			return audit.NewExportError(FormatCSV, len(records), err)
		}
	}
	for _, record := range records {
		if err := writer.Write(e.recordToRow(record)); err != nil {
			return audit.NewExportError(FormatCSV, len(records), err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return audit.NewExportError(FormatCSV, len(records), err)
	}
	return nil
}

func (e *CSVExporter) recordToRow(record *audit.TraceRecord) []string {
	ruleIDs := make([]string, 0, len(record.Alerts))
	for _, a := range record.Alerts {
		ruleIDs = append(ruleIDs, a.RuleID)
	}

	return []string{
		record.ID,
		record.RequestID,
		record.PatientID,
		record.VisitID,
		record.RecordedAt.Format(time.RFC3339Nano),
		strconv.FormatBool(record.IsSafeToFile),
		strconv.FormatFloat(record.Score, 'f', 2, 64),
		strconv.Itoa(len(record.Alerts)),
		strings.Join(ruleIDs, ";"),
		record.ProtocolVersion,
		record.ProtocolDigest,
		strconv.FormatInt(record.Duration.Milliseconds(), 10),
		record.Digest,
	}
}
