package audit

import "fmt"

const (
	// DefaultLimit is the number of records returned when a query sets none.
	DefaultLimit = 100

	// MaxLimit is the largest limit a query may request.
	MaxLimit = 10000
)

// Validate checks query parameters.
func (q *Query) Validate() error {
	if q.Limit < 0 {
		return NewQueryError(q, fmt.Errorf("limit must be >= 0, got %d", q.Limit))
	}
	if q.Limit > MaxLimit {
		return NewQueryError(q, fmt.Errorf("limit must be <= %d, got %d", MaxLimit, q.Limit))
	}
	if q.Offset < 0 {
		return NewQueryError(q, fmt.Errorf("offset must be >= 0, got %d", q.Offset))
	}
	switch q.SortOrder {
	case "", "asc", "desc":
	default:
		return NewQueryError(q, fmt.Errorf("invalid sort order: %s (must be 'asc' or 'desc')", q.SortOrder))
	}
	switch q.Outcome {
	case "", OutcomeSafe, OutcomeUnsafe:
	default:
		return NewQueryError(q, fmt.Errorf("invalid outcome: %s (must be '%s' or '%s')", q.Outcome, OutcomeSafe, OutcomeUnsafe))
	}
	if q.StartTime != nil && q.EndTime != nil && q.StartTime.After(*q.EndTime) {
		return NewQueryError(q, fmt.Errorf("start_time must be before end_time"))
	}
	return nil
}

// ApplyDefaults fills in the default sort order. A zero limit stays zero,
// which backends read as "no limit".
func (q *Query) ApplyDefaults() {
	if q.SortOrder == "" {
		q.SortOrder = "desc"
	}
}

// Matches reports whether a record satisfies the query filters. Pagination
// and sorting are not considered.
func (q *Query) Matches(r *TraceRecord) bool {
	if q == nil {
		return true
	}
	if q.StartTime != nil && r.RecordedAt.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && r.RecordedAt.After(*q.EndTime) {
		return false
	}
	if q.PatientID != "" && r.PatientID != q.PatientID {
		return false
	}
	if q.VisitID != "" && r.VisitID != q.VisitID {
		return false
	}
	if q.RuleID != "" && !r.HasRule(q.RuleID) {
		return false
	}
	switch q.Outcome {
	case OutcomeSafe:
		return r.IsSafeToFile
	case OutcomeUnsafe:
		return !r.IsSafeToFile
	}
	return true
}
