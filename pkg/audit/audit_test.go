package audit

import (
	"errors"
	"testing"
	"time"

	"clinical-guardrails/guardrails/pkg/clinical"
)

func sampleRecord() *TraceRecord {
	r := NewTraceRecord("P001", "V100", clinical.VerificationResult{
		IsSafeToFile: true,
		Score:        0.7,
		Alerts: []clinical.ComplianceAlert{{
			RuleID:   "PROTOCOL_ADHERENCE_MISSING",
			Message:  "Sepsis diagnosis requires antibiotic administration to be documented",
			Severity: clinical.SeverityHigh,
			Field:    "summary_text",
		}},
	})
	r.ID = "3f0e6c52-2f7b-4b7e-9a51-0d3c2f1e8a10"
	r.RecordedAt = time.Date(2025, 2, 24, 17, 5, 0, 123456789, time.UTC)
	r.ProtocolVersion = "1.0"
	r.Duration = 1500 * time.Microsecond
	return r
}

// TestTraceRecord_Digest tests sealing and tamper detection.
func TestTraceRecord_Digest(t *testing.T) {
	r := sampleRecord()

	ok, err := r.VerifyDigest()
	if err != nil || ok {
		t.Fatalf("unsealed record VerifyDigest() = %v, %v; want false, nil", ok, err)
	}

	if err := r.Seal(); err != nil {
		t.Fatalf("Seal() failed: %v", err)
	}
	if len(r.Digest) != 64 {
		t.Fatalf("digest length = %d, want 64", len(r.Digest))
	}

	ok, err = r.VerifyDigest()
	if err != nil || !ok {
		t.Fatalf("VerifyDigest() = %v, %v; want true, nil", ok, err)
	}

	first := r.Digest
	if err := r.Seal(); err != nil {
		t.Fatalf("Seal() failed: %v", err)
	}
	if r.Digest != first {
		t.Errorf("resealing changed digest")
	}

	r.Score = 1.0
	if ok, _ := r.VerifyDigest(); ok {
		t.Errorf("tampered record still verifies")
	}
}

// TestStats tests aggregation and compliance rate.
func TestStats(t *testing.T) {
	var empty *Stats
	if got := empty.ComplianceRate(); got != 0 {
		t.Errorf("nil ComplianceRate() = %v, want 0", got)
	}

	s := &Stats{}
	s.Add(sampleRecord())
	unsafe := sampleRecord()
	unsafe.IsSafeToFile = false
	unsafe.Alerts = append(unsafe.Alerts, clinical.ComplianceAlert{RuleID: "SAFETY_PII_LEAK", Severity: clinical.SeverityCritical})
	s.Add(unsafe)
	s.Add(&TraceRecord{IsSafeToFile: true, Alerts: []clinical.ComplianceAlert{}})
	s.Add(&TraceRecord{IsSafeToFile: true})

	if s.TotalRuns != 4 || s.FailedCompliance != 1 {
		t.Errorf("stats = %+v", s)
	}
	if s.RuleCounts["PROTOCOL_ADHERENCE_MISSING"] != 2 || s.RuleCounts["SAFETY_PII_LEAK"] != 1 {
		t.Errorf("RuleCounts = %v", s.RuleCounts)
	}
	if got := s.ComplianceRate(); got != 75 {
		t.Errorf("ComplianceRate() = %v, want 75", got)
	}
}

// TestQuery_Validate tests query parameter validation.
func TestQuery_Validate(t *testing.T) {
	start := time.Now()
	end := start.Add(-time.Hour)

	tests := []struct {
		name    string
		query   Query
		wantErr bool
	}{
		{"empty", Query{}, false},
		{"full", Query{Limit: 10, Offset: 5, SortOrder: "asc", Outcome: OutcomeUnsafe}, false},
		{"negative limit", Query{Limit: -1}, true},
		{"limit too large", Query{Limit: MaxLimit + 1}, true},
		{"negative offset", Query{Offset: -1}, true},
		{"bad sort", Query{SortOrder: "sideways"}, true},
		{"bad outcome", Query{Outcome: "maybe"}, true},
		{"inverted range", Query{StartTime: &start, EndTime: &end}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			var qe *QueryError
			if err != nil && !errors.As(err, &qe) {
				t.Errorf("error %T is not a *QueryError", err)
			}
		})
	}
}

// TestQuery_Matches tests record filtering.
func TestQuery_Matches(t *testing.T) {
	r := sampleRecord()
	before := r.RecordedAt.Add(-time.Minute)
	after := r.RecordedAt.Add(time.Minute)

	tests := []struct {
		name  string
		query *Query
		want  bool
	}{
		{"nil", nil, true},
		{"patient", &Query{PatientID: "P001"}, true},
		{"other patient", &Query{PatientID: "P002"}, false},
		{"visit", &Query{VisitID: "V999"}, false},
		{"rule", &Query{RuleID: "PROTOCOL_ADHERENCE_MISSING"}, true},
		{"absent rule", &Query{RuleID: "SAFETY_PII_LEAK"}, false},
		{"safe", &Query{Outcome: OutcomeSafe}, true},
		{"unsafe", &Query{Outcome: OutcomeUnsafe}, false},
		{"in range", &Query{StartTime: &before, EndTime: &after}, true},
		{"ends before", &Query{EndTime: &before}, false},
		{"starts after", &Query{StartTime: &after}, false},
	}

	for _, tt := range tests {
		if got := tt.query.Matches(r); got != tt.want {
			t.Errorf("%s: Matches() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
