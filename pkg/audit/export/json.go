package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"clinical-guardrails/guardrails/pkg/audit"
)

// Export formats.
const (
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
)

// New returns the exporter for a format name.
func New(format string) (audit.Exporter, error) {
	switch format {
	case FormatJSON:
		return NewJSONExporter(true), nil
	case FormatJSONL:
		return NewJSONLExporter(), nil
	case FormatCSV:
		return NewCSVExporter(true), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q (want json, jsonl or csv)", format)
	}
}

// JSONExporter exports trace records as a JSON array.
type JSONExporter struct {
	// Pretty enables pretty-printing with indentation.
	Pretty bool
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Export writes the records as a JSON array. An empty input writes [].
func (e *JSONExporter) Export(ctx context.Context, records []*audit.TraceRecord, w io.Writer) error {
	if records == nil {
		records = []*audit.TraceRecord{}
	}

	var (
		data []byte
		err  error
	)
	if e.Pretty {
		data, err = json.MarshalIndent(records, "", "  ")
	} else {
		data, err = json.Marshal(records)
	}
	if err != nil {
		return audit.NewExportError(FormatJSON, len(records), err)
	}

	if _, err := w.Write(data); err != nil {
		return audit.NewExportError(FormatJSON, len(records), err)
	}
	return nil
}

// JSONLExporter exports one JSON object per line, the format of the
// compliance trace log.
type JSONLExporter struct{}

// NewJSONLExporter creates a new JSON Lines exporter.
func NewJSONLExporter() *JSONLExporter {
	return &JSONLExporter{}
}

// Export writes one line per record.
func (e *JSONLExporter) Export(ctx context.Context, records []*audit.TraceRecord, w io.Writer) error {
	enc := json.NewEncoder(w)
	for i, record := range records {
		if err := ctx.Err(); err != nil {
			return audit.NewExportError(FormatJSONL, i, err)
		}
		if err := enc.Encode(record); err != nil {
			return audit.NewExportError(FormatJSONL, i, err)
		}
	}
	return nil
}
