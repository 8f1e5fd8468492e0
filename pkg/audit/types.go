package audit

import (
	"context"
	"io"
	"time"

	"clinical-guardrails/guardrails/pkg/clinical"
)

// Outcome filters for Query.Outcome.
const (
	OutcomeSafe   = "safe"
	OutcomeUnsafe = "unsafe"
)

// TraceRecord is the audit entry for one verification.
type TraceRecord struct {
	// Identity
	ID        string `json:"id"`         // UUID v4
	RequestID string `json:"request_id"` // Caller correlation id, if any

	// Subject
	PatientID string `json:"patient_id"`
	VisitID   string `json:"visit_id"`

	// Verdict
	RecordedAt   time.Time                  `json:"recorded_at"`
	IsSafeToFile bool                       `json:"is_safe_to_file"`
	Score        float64                    `json:"score"`
	Alerts       []clinical.ComplianceAlert `json:"alerts"`

	// Protocol configuration active for the verification
	ProtocolVersion string `json:"protocol_version,omitempty"`
	ProtocolDigest  string `json:"protocol_digest,omitempty"`

	// Duration of the verification
	Duration time.Duration `json:"duration"`

	// Digest of the canonical record, see ComputeDigest
	Digest string `json:"digest,omitempty"`
}

// NewTraceRecord builds an unsaved record for a verification result. ID and
// digest are assigned by the recorder.
func NewTraceRecord(patientID, visitID string, result clinical.VerificationResult) *TraceRecord {
	alerts := append([]clinical.ComplianceAlert{}, result.Alerts...)
	return &TraceRecord{
		PatientID:    patientID,
		VisitID:      visitID,
		RecordedAt:   time.Now().UTC(),
		IsSafeToFile: result.IsSafeToFile,
		Score:        result.Score,
		Alerts:       alerts,
	}
}

// Result returns the verification result the record captures.
func (r *TraceRecord) Result() clinical.VerificationResult {
	return clinical.VerificationResult{
		IsSafeToFile: r.IsSafeToFile,
		Score:        r.Score,
		Alerts:       append([]clinical.ComplianceAlert{}, r.Alerts...),
	}
}

// HasRule reports whether the record carries an alert with the given rule id.
func (r *TraceRecord) HasRule(ruleID string) bool {
	for _, a := range r.Alerts {
		if a.RuleID == ruleID {
			return true
		}
	}
	return false
}

// Query defines filter parameters for querying trace records.
type Query struct {
	// Time range, applied to RecordedAt
	StartTime *time.Time `json:"start_time,omitempty"` // Inclusive start time
	EndTime   *time.Time `json:"end_time,omitempty"`   // Inclusive end time

	// Filters
	PatientID string `json:"patient_id,omitempty"`
	VisitID   string `json:"visit_id,omitempty"`
	RuleID    string `json:"rule_id,omitempty"` // Records with at least one alert for this rule
	Outcome   string `json:"outcome,omitempty"` // "safe" or "unsafe"

	// Pagination
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	// Sorting by RecordedAt
	SortOrder string `json:"sort_order,omitempty"` // "asc", "desc"
}

// Stats summarizes a set of trace records.
type Stats struct {
	TotalRuns        int64            `json:"total_runs"`
	FailedCompliance int64            `json:"failed_compliance"`
	RuleCounts       map[string]int64 `json:"rule_counts"`
}

// ComplianceRate returns the percentage of runs that were safe to file, or
// 0 when there were no runs.
func (s *Stats) ComplianceRate() float64 {
	if s == nil || s.TotalRuns == 0 {
		return 0
	}
	return float64(s.TotalRuns-s.FailedCompliance) / float64(s.TotalRuns) * 100
}

// Add folds one record into the stats.
func (s *Stats) Add(r *TraceRecord) {
	if s.RuleCounts == nil {
		s.RuleCounts = make(map[string]int64)
	}
	s.TotalRuns++
	if !r.IsSafeToFile {
		s.FailedCompliance++
	}
	for _, a := range r.Alerts {
		s.RuleCounts[a.RuleID]++
	}
}

// Storage defines the interface for trace storage backends.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Store persists a trace record.
	Store(ctx context.Context, record *TraceRecord) error

	// Query retrieves trace records matching the query filters.
	// Returns an empty slice if no records match.
	Query(ctx context.Context, query *Query) ([]*TraceRecord, error)

	// Count returns the number of trace records matching the query filters.
	Count(ctx context.Context, query *Query) (int64, error)

	// Stats aggregates the records matching the query filters. Pagination
	// fields are ignored.
	Stats(ctx context.Context, query *Query) (*Stats, error)

	// Delete removes trace records matching the query filters and returns
	// the number deleted.
	Delete(ctx context.Context, query *Query) (int64, error)

	// Close releases any resources held by the storage backend.
	Close() error
}

// Sink accepts trace records for recording.
type Sink interface {
	Record(ctx context.Context, record *TraceRecord) error
}

// Exporter writes trace records in some format.
type Exporter interface {
	Export(ctx context.Context, records []*TraceRecord, w io.Writer) error
}
