package verifier

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-sql/civil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"clinical-guardrails/guardrails/pkg/audit"
	"clinical-guardrails/guardrails/pkg/audit/recorder"
	"clinical-guardrails/guardrails/pkg/audit/storage"
	"clinical-guardrails/guardrails/pkg/clinical"
	"clinical-guardrails/guardrails/pkg/compliance"
	"clinical-guardrails/guardrails/pkg/config"
	"clinical-guardrails/guardrails/pkg/fhir"
	"clinical-guardrails/guardrails/pkg/protocols"
	"clinical-guardrails/guardrails/pkg/telemetry/metrics"
	"clinical-guardrails/guardrails/pkg/telemetry/tracing"
)

const protocolYAML = `
version: "1.0"
checkers:
  allergy_checks: {enabled: true}
rules:
  allergy_checks:
    - name: Penicillin Allergy
      pattern:
        patient_allergies: [penicillin]
        conflicts: {medications: [amoxicillin]}
      severity: CRITICAL
      message: Patient is allergic to penicillin
`

const allergyRuleID = "PROTOCOL_ALLERGY_CHECKS_PENICILLIN_ALLERGY"

type captureSink struct {
	mu      sync.Mutex
	records []*audit.TraceRecord
	err     error
}

func (s *captureSink) Record(_ context.Context, r *audit.TraceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	r.ID = "rec-" + r.VisitID
	s.records = append(s.records, r)
	return nil
}

func (s *captureSink) last(t *testing.T) *audit.TraceRecord {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.records)
	return s.records[len(s.records)-1]
}

func testSource(t *testing.T) StaticSource {
	t.Helper()
	cfg, err := protocols.ParseConfig([]byte(protocolYAML))
	require.NoError(t, err)
	return StaticSource{Config: cfg, Digest: "sha256:test"}
}

func day(d int) civil.Date {
	return civil.Date{Year: 2025, Month: time.February, Day: d}
}

func inlineRequest(output clinical.AIGeneratedOutput) Request {
	discharge := time.Date(2025, 2, 24, 17, 0, 0, 0, time.UTC)
	return Request{
		RequestID: "req-1",
		Patient: &clinical.PatientProfile{
			PatientID: "P001",
			FirstName: "Jane",
			LastName:  "Doe",
			DOB:       civil.Date{Year: 1960, Month: time.May, Day: 4},
			Allergies: []string{"Penicillin"},
		},
		Context: &clinical.EMRContext{
			VisitID:            "V100",
			PatientID:          "P001",
			AdmissionDate:      time.Date(2025, 2, 20, 8, 30, 0, 0, time.UTC),
			DischargeDate:      &discharge,
			AttendingPhysician: "Dr. House",
		},
		Output: &output,
	}
}

func cleanOutput() clinical.AIGeneratedOutput {
	return clinical.AIGeneratedOutput{
		SummaryText:        "Patient admitted with pneumonia, treated and discharged.",
		ExtractedDates:     []civil.Date{day(20), day(24)},
		ExtractedDiagnoses: []string{"Pneumonia"},
	}
}

func TestVerify_SafeOutput(t *testing.T) {
	sink := &captureSink{}
	v := New(compliance.NewEngine(), testSource(t), WithSink(sink))

	resp, err := v.Verify(context.Background(), inlineRequest(cleanOutput()))
	require.NoError(t, err)

	assert.True(t, resp.Outcome.IsSuccess())
	assert.True(t, resp.Result.IsSafeToFile)
	assert.Equal(t, 1.0, resp.Result.Score)
	assert.Equal(t, "P001", resp.PatientID)
	assert.Equal(t, "V100", resp.VisitID)
	assert.Equal(t, "1.0", resp.ProtocolVersion)
	assert.Equal(t, "rec-V100", resp.AuditID)

	rec := sink.last(t)
	assert.Equal(t, "req-1", rec.RequestID)
	assert.Equal(t, "P001", rec.PatientID)
	assert.Equal(t, "1.0", rec.ProtocolVersion)
	assert.Equal(t, "sha256:test", rec.ProtocolDigest)
	assert.True(t, rec.IsSafeToFile)
}

func TestVerify_ProtocolViolation(t *testing.T) {
	out := cleanOutput()
	out.ExtractedMedications = []clinical.ExtractedMedication{{Name: "Amoxicillin", Confidence: 0.9}}

	sink := &captureSink{}
	v := New(compliance.NewEngine(), testSource(t), WithSink(sink))

	resp, err := v.Verify(context.Background(), inlineRequest(out))
	require.NoError(t, err)

	assert.False(t, resp.Outcome.IsSuccess())
	assert.False(t, resp.Result.IsSafeToFile)
	assert.Equal(t, 0.0, resp.Result.Score)
	require.Len(t, resp.Result.Alerts, 1)
	assert.Equal(t, allergyRuleID, resp.Result.Alerts[0].RuleID)
	assert.True(t, sink.last(t).HasRule(allergyRuleID))
}

func TestVerify_NilSourceSkipsProtocols(t *testing.T) {
	out := cleanOutput()
	out.ExtractedMedications = []clinical.ExtractedMedication{{Name: "Amoxicillin", Confidence: 0.9}}

	v := New(nil, nil)
	resp, err := v.Verify(context.Background(), inlineRequest(out))
	require.NoError(t, err)

	assert.True(t, resp.Result.IsSafeToFile)
	assert.Empty(t, resp.ProtocolVersion)
	assert.Empty(t, resp.AuditID)
}

func TestVerify_FHIRBundle(t *testing.T) {
	bundle, err := fhir.LoadBundle(filepath.Join("..", "fhir", "testdata", "bundle.json"))
	require.NoError(t, err)

	out := cleanOutput()
	out.ExtractedMedications = []clinical.ExtractedMedication{{Name: "amoxicillin", Confidence: 0.95}}

	v := New(compliance.NewEngine(), testSource(t))
	resp, err := v.Verify(context.Background(), Request{Bundle: bundle, PatientID: "P001", Output: &out})
	require.NoError(t, err)

	assert.Equal(t, "P001", resp.PatientID)
	assert.Equal(t, "ENC-42", resp.VisitID)
	assert.False(t, resp.Result.IsSafeToFile)
	require.NotEmpty(t, resp.Result.Alerts)
	assert.Equal(t, allergyRuleID, resp.Result.Alerts[0].RuleID)
}

func TestVerify_FHIRPatientNotFound(t *testing.T) {
	bundle, err := fhir.LoadBundle(filepath.Join("..", "fhir", "testdata", "bundle.json"))
	require.NoError(t, err)

	out := cleanOutput()
	sink := &captureSink{}
	v := New(compliance.NewEngine(), testSource(t), WithSink(sink))

	resp, err := v.Verify(context.Background(), Request{Bundle: bundle, PatientID: "NOPE", Output: &out})
	require.NoError(t, err)

	assert.False(t, resp.Result.IsSafeToFile)
	require.Len(t, resp.Result.Alerts, 1)
	alert := resp.Result.Alerts[0]
	assert.Equal(t, compliance.RulePatientNotFound, alert.RuleID)
	assert.Equal(t, clinical.SeverityCritical, alert.Severity)
	assert.Contains(t, alert.Message, "Patient NOPE not found in FHIR system")

	rec := sink.last(t)
	assert.Equal(t, "NOPE", rec.PatientID)
	assert.False(t, rec.IsSafeToFile)
}

func TestVerify_Extraction(t *testing.T) {
	date := day(21)
	extraction := &clinical.StructuredExtraction{
		VisitType: "inpatient",
		TemporalExpressions: []clinical.TemporalExpression{
			{Text: "yesterday", Type: clinical.TemporalRelativeDate, NormalizedDate: &date, Confidence: 0.9},
		},
		Medications: []clinical.ExtractedMedication{
			{Name: "Amoxicillin", Status: clinical.MedicationStarted, Confidence: 0.5},
		},
		Confidence: 0.9,
	}

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	req := inlineRequest(clinical.AIGeneratedOutput{})
	req.Output = nil
	req.Extraction = extraction
	req.Transcript = "Started amoxicillin yesterday."

	v := New(compliance.NewEngine(), testSource(t), WithLogger(logger))
	resp, err := v.Verify(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, resp.LowConfidence)
	assert.Contains(t, logs.String(), "Extraction has low-confidence values")
	assert.False(t, resp.Result.IsSafeToFile)
	assert.Equal(t, allergyRuleID, resp.Result.Alerts[0].RuleID)
}

func TestVerify_InvalidExtraction(t *testing.T) {
	req := inlineRequest(clinical.AIGeneratedOutput{})
	req.Output = nil
	req.Extraction = &clinical.StructuredExtraction{Confidence: 1.5}

	v := New(compliance.NewEngine(), testSource(t))
	resp, err := v.Verify(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, resp.Result.Alerts, 1)
	assert.Equal(t, compliance.RuleExtractionFailed, resp.Result.Alerts[0].RuleID)
	assert.False(t, resp.Result.IsSafeToFile)
}

func TestVerify_InvalidRequest(t *testing.T) {
	v := New(compliance.NewEngine(), nil)

	_, err := v.Verify(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNoArtifact)

	out := cleanOutput()
	_, err = v.Verify(context.Background(), Request{Output: &out})
	assert.ErrorIs(t, err, ErrNoSubject)

	_, err = v.Verify(context.Background(), Request{Output: &out, Bundle: &fhir.Bundle{ResourceType: "Patient"}})
	assert.ErrorIs(t, err, ErrNoSubject)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = v.Verify(ctx, inlineRequest(out))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVerify_InvalidInlineModels(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"context without admission date", func(r *Request) {
			r.Context = &clinical.EMRContext{VisitID: "V1", PatientID: "P1"}
		}},
		{"patient without id", func(r *Request) {
			p := *r.Patient
			p.PatientID = ""
			r.Patient = &p
		}},
		{"output with bad medication status", func(r *Request) {
			r.Output.ExtractedMedications = []clinical.ExtractedMedication{{Name: "aspirin", Status: "paused", Confidence: 1}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &captureSink{}
			v := New(compliance.NewEngine(), testSource(t), WithSink(sink))

			req := inlineRequest(cleanOutput())
			tt.mutate(&req)

			resp, err := v.Verify(context.Background(), req)
			require.Error(t, err)
			assert.ErrorIs(t, err, clinical.ErrValidation)
			assert.Nil(t, resp)
			assert.Empty(t, sink.records)
		})
	}
}

func TestVerify_AuditFailureDoesNotFailVerification(t *testing.T) {
	sink := &captureSink{err: errors.New("disk full")}
	v := New(compliance.NewEngine(), testSource(t), WithSink(sink))

	resp, err := v.Verify(context.Background(), inlineRequest(cleanOutput()))
	require.NoError(t, err)
	assert.True(t, resp.Result.IsSafeToFile)
	assert.Empty(t, resp.AuditID)
}

func TestVerify_RecorderAndStorage(t *testing.T) {
	store := storage.NewMemoryStorage()
	rec := recorder.NewRecorder(store, &recorder.Config{Enabled: true, BufferSize: 10, WriteTimeout: time.Second})

	v := New(compliance.NewEngine(), testSource(t), WithSink(rec))
	resp, err := v.Verify(context.Background(), inlineRequest(cleanOutput()))
	require.NoError(t, err)
	require.NotEmpty(t, resp.AuditID)

	require.NoError(t, rec.Close())

	records, err := store.Query(context.Background(), &audit.Query{VisitID: "V100"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	stored := records[0]
	assert.Equal(t, resp.AuditID, stored.ID)
	ok, err := stored.VerifyDigest()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_MetricsAndSpans(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true, Namespace: "guardrails"}, registry)

	exporter := tracetest.NewInMemoryExporter()
	tracer, err := tracing.NewWithExporter(&config.TracingConfig{
		Enabled:     true,
		Sampler:     tracing.SamplerAlways,
		ServiceName: "verifier-test",
	}, exporter)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tracer.Shutdown(context.Background()) })

	v := New(compliance.NewEngine(), testSource(t), WithMetrics(collector), WithTracer(tracer))

	_, err = v.Verify(context.Background(), inlineRequest(cleanOutput()))
	require.NoError(t, err)

	out := cleanOutput()
	out.ExtractedMedications = []clinical.ExtractedMedication{{Name: "Amoxicillin", Confidence: 0.9}}
	_, err = v.Verify(context.Background(), inlineRequest(out))
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(registry, "guardrails_verifications_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, tracer.ForceFlush(context.Background()))
	var names []string
	for _, s := range exporter.GetSpans() {
		names = append(names, s.Name)
		for _, kv := range s.Attributes {
			assert.NotEqual(t, "P001", kv.Value.Emit(), "span %s leaks patient id", s.Name)
		}
	}
	joined := strings.Join(names, ",")
	assert.Contains(t, joined, tracing.SpanVerify)
	assert.Contains(t, joined, tracing.SpanProtocolCheck)
}
