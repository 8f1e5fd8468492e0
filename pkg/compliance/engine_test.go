package compliance

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/golang-sql/civil"

	"clinical-guardrails/guardrails/pkg/clinical"
	"clinical-guardrails/guardrails/pkg/protocols"
)

var (
	admission = time.Date(2025, 2, 20, 8, 30, 0, 0, time.UTC)
	discharge = time.Date(2025, 2, 24, 17, 0, 0, 0, time.UTC)
)

func testPatient() clinical.PatientProfile {
	return clinical.PatientProfile{
		PatientID: "P001",
		FirstName: "Jane",
		LastName:  "Doe",
		DOB:       civil.Date{Year: 1960, Month: time.May, Day: 4},
		Allergies: []string{"Penicillin"},
	}
}

func testEMR() clinical.EMRContext {
	d := discharge
	return clinical.EMRContext{
		VisitID:            "V100",
		PatientID:          "P001",
		AdmissionDate:      admission,
		DischargeDate:      &d,
		AttendingPhysician: "Dr. House",
	}
}

func day(d int) civil.Date {
	return civil.Date{Year: 2025, Month: time.February, Day: d}
}

func hasRule(alerts []clinical.ComplianceAlert, ruleID string) bool {
	for _, a := range alerts {
		if a.RuleID == ruleID {
			return true
		}
	}
	return false
}

// TestEngine_CleanOutput tests a fully compliant summary.
func TestEngine_CleanOutput(t *testing.T) {
	out := clinical.AIGeneratedOutput{
		SummaryText:        "Patient admitted with pneumonia, treated and discharged.",
		ExtractedDates:     []civil.Date{day(20), day(24)},
		ExtractedDiagnoses: []string{"Pneumonia"},
	}

	res := NewEngine().Verify(testPatient(), testEMR(), out, nil)
	v, ok := res.Value()
	if !ok {
		alerts, _ := res.Err()
		t.Fatalf("expected success, got failure: %+v", alerts)
	}
	if !v.IsSafeToFile || v.Score != 1.0 || len(v.Alerts) != 0 {
		t.Errorf("result = %+v, want safe with score 1.0 and no alerts", v)
	}
}

// TestEngine_DateMismatch tests that dates outside the encounter fail.
func TestEngine_DateMismatch(t *testing.T) {
	out := clinical.AIGeneratedOutput{
		SummaryText:    "Follow-up scheduled.",
		ExtractedDates: []civil.Date{day(20), day(22), {Year: 2024, Month: time.December, Day: 1}},
	}

	res := NewEngine().Verify(testPatient(), testEMR(), out, nil)
	if res.IsSuccess() {
		t.Fatalf("expected failure for hallucinated dates")
	}
	alerts, _ := res.Err()
	if len(alerts) != 2 {
		t.Fatalf("len(alerts) = %d, want 2 (one per offending date)", len(alerts))
	}
	for _, a := range alerts {
		if a.RuleID != RuleDateMismatch || a.Field != FieldExtractedDates || a.Severity != clinical.SeverityCritical {
			t.Errorf("alert = %+v", a)
		}
	}
}

// TestEngine_DateWithoutDischarge tests the allowed set when discharge is absent.
func TestEngine_DateWithoutDischarge(t *testing.T) {
	emr := testEMR()
	emr.DischargeDate = nil

	out := clinical.AIGeneratedOutput{ExtractedDates: []civil.Date{day(24)}}
	if res := NewEngine().Verify(testPatient(), emr, out, nil); res.IsSuccess() {
		t.Errorf("discharge date accepted although the encounter has no discharge")
	}
}

// TestEngine_PIILeak tests Medicare number detection.
func TestEngine_PIILeak(t *testing.T) {
	tests := []struct {
		summary string
		leak    bool
	}{
		{"Patient Medicare is 1234 56789 1.", true},
		{"Medicare 1234567891 on file.", true},
		{"MRN 12345 recorded.", false},
		{"SSN 123-45-6789 recorded.", false},
	}

	for _, tt := range tests {
		t.Run(tt.summary, func(t *testing.T) {
			res := NewEngine().Verify(testPatient(), testEMR(), clinical.AIGeneratedOutput{SummaryText: tt.summary}, nil)
			alerts, failed := res.Err()
			if failed != tt.leak {
				t.Fatalf("failure = %v, want %v", failed, tt.leak)
			}
			if tt.leak && !hasRule(alerts, RulePIILeak) {
				t.Errorf("alerts = %+v, want %s", alerts, RulePIILeak)
			}
		})
	}
}

// TestEngine_SSNPattern tests the configurable SSN pattern.
func TestEngine_SSNPattern(t *testing.T) {
	e := NewEngine(WithPIIPatterns(SSNPattern))
	out := clinical.AIGeneratedOutput{SummaryText: "SSN 123-45-6789 recorded."}

	res := e.Verify(testPatient(), testEMR(), out, nil)
	alerts, failed := res.Err()
	if !failed || !hasRule(alerts, RulePIILeak) {
		t.Fatalf("expected PII failure, got %+v", res)
	}

	out.SummaryText = "Patient Medicare is 1234 56789 1."
	if res := e.Verify(testPatient(), testEMR(), out, nil); !res.IsSuccess() {
		t.Errorf("Medicare number flagged although only SSN pattern is configured")
	}
}

// TestEngine_EmptyPIIPatterns tests that an empty pattern list keeps the
// default PII check.
func TestEngine_EmptyPIIPatterns(t *testing.T) {
	e := NewEngine(WithPIIPatterns())
	if got := e.PIIPatterns(); len(got) != 1 || got[0].Name != MedicarePattern.Name {
		t.Fatalf("PIIPatterns() = %+v, want medicare only", got)
	}

	out := clinical.AIGeneratedOutput{SummaryText: "Patient Medicare is 1234 56789 1."}
	alerts, failed := e.Verify(testPatient(), testEMR(), out, nil).Err()
	if !failed || !hasRule(alerts, RulePIILeak) {
		t.Errorf("expected PII failure with an empty pattern list, got %+v", alerts)
	}
}

// TestEngine_SepsisProtocol tests the hardcoded sepsis rule.
func TestEngine_SepsisProtocol(t *testing.T) {
	out := clinical.AIGeneratedOutput{
		SummaryText:        "Patient has sepsis.",
		ExtractedDates:     []civil.Date{day(20)},
		ExtractedDiagnoses: []string{"Severe Sepsis"},
	}

	res := NewEngine().Verify(testPatient(), testEMR(), out, nil)
	v, ok := res.Value()
	if !ok {
		t.Fatalf("expected success, got failure")
	}
	if !hasRule(v.Alerts, RuleProtocolMissing) {
		t.Errorf("alerts = %+v, want %s", v.Alerts, RuleProtocolMissing)
	}
	if v.Score != 0.7 {
		t.Errorf("Score = %v, want 0.7", v.Score)
	}

	out.SummaryText = "Patient has sepsis. Started IV Antibiotics."
	v, _ = NewEngine().Verify(testPatient(), testEMR(), out, nil).Value()
	if len(v.Alerts) != 0 || v.Score != 1.0 {
		t.Errorf("antibiotic mention should satisfy protocol, got %+v", v)
	}
}

// TestEngine_CriticalSuppressesNonCritical tests that failures carry only
// critical alerts.
func TestEngine_CriticalSuppressesNonCritical(t *testing.T) {
	out := clinical.AIGeneratedOutput{
		SummaryText:        "Patient has sepsis.",
		ExtractedDates:     []civil.Date{day(1)},
		ExtractedDiagnoses: []string{"sepsis"},
	}

	res := NewEngine().Verify(testPatient(), testEMR(), out, nil)
	alerts, failed := res.Err()
	if !failed {
		t.Fatalf("expected failure")
	}
	if len(alerts) != 1 || alerts[0].RuleID != RuleDateMismatch {
		t.Errorf("failure alerts = %+v, want only %s", alerts, RuleDateMismatch)
	}
}

const protocolConfig = `
version: "1.0"
checkers:
  allergy_checks: {enabled: true}
  required_fields: {enabled: true}
rules:
  allergy_checks:
    - name: Penicillin Allergy
      pattern:
        patient_allergies: [penicillin]
        conflicts: {medications: [amoxicillin]}
      severity: CRITICAL
      message: Patient is allergic to penicillin
  required_fields:
    - name: Diagnoses Documented
      pattern: {required: [diagnoses]}
      severity: INFO
      message: Diagnoses are not carried into protocol checks
`

// TestEngine_ProtocolChecks tests that protocol alerts flow through
// classification.
func TestEngine_ProtocolChecks(t *testing.T) {
	cfg, err := protocols.ParseConfig([]byte(protocolConfig))
	if err != nil {
		t.Fatalf("ParseConfig() failed: %v", err)
	}

	out := clinical.AIGeneratedOutput{
		SummaryText:          "Started amoxicillin for otitis.",
		ExtractedDates:       []civil.Date{day(20)},
		ExtractedDiagnoses:   []string{"Otitis media"},
		ExtractedMedications: []clinical.ExtractedMedication{{Name: "Amoxicillin", Confidence: 1}},
	}

	res := NewEngine().Verify(testPatient(), testEMR(), out, cfg)
	alerts, failed := res.Err()
	if !failed {
		t.Fatalf("expected failure from allergy conflict")
	}
	if len(alerts) != 1 || alerts[0].RuleID != "PROTOCOL_ALLERGY_CHECKS_PENICILLIN_ALLERGY" {
		t.Errorf("alerts = %+v", alerts)
	}

	// Diagnoses are not carried into the extraction, so the INFO rule fires
	// and the score drops to 0.9.
	out.ExtractedMedications = []clinical.ExtractedMedication{{Name: "Azithromycin", Confidence: 1}}
	v, ok := NewEngine().Verify(testPatient(), testEMR(), out, cfg).Value()
	if !ok {
		t.Fatalf("expected success")
	}
	if v.Score != 0.9 || len(v.Alerts) != 1 || v.Alerts[0].Severity != clinical.SeverityLow {
		t.Errorf("result = %+v, want score 0.9 with one low alert", v)
	}

	// Without a config the protocol layer is skipped entirely.
	v, _ = NewEngine().Verify(testPatient(), testEMR(), out, nil).Value()
	if len(v.Alerts) != 0 {
		t.Errorf("nil config produced alerts: %+v", v.Alerts)
	}
}

// TestEngine_EmptyInputs tests that empty outputs verify cleanly.
func TestEngine_EmptyInputs(t *testing.T) {
	res := NewEngine().Verify(clinical.PatientProfile{}, testEMR(), clinical.AIGeneratedOutput{}, nil)
	v, ok := res.Value()
	if !ok || v.Score != 1.0 || v.Alerts == nil {
		t.Errorf("empty output = %+v", res)
	}
}

// TestEngine_Idempotent tests that identical inputs give identical results.
func TestEngine_Idempotent(t *testing.T) {
	out := clinical.AIGeneratedOutput{
		SummaryText:        "Patient has sepsis.",
		ExtractedDiagnoses: []string{"sepsis"},
	}
	e := NewEngine()
	first := Resolve(e.Verify(testPatient(), testEMR(), out, nil))
	second := Resolve(e.Verify(testPatient(), testEMR(), out, nil))
	if !reflect.DeepEqual(first, second) {
		t.Errorf("results differ: %+v vs %+v", first, second)
	}
}

// TestScore tests the three score tiers.
func TestScore(t *testing.T) {
	tests := []struct {
		name   string
		alerts []clinical.ComplianceAlert
		want   float64
	}{
		{"none", nil, 1.0},
		{"low", []clinical.ComplianceAlert{{Severity: clinical.SeverityLow}}, 0.9},
		{"medium and low", []clinical.ComplianceAlert{{Severity: clinical.SeverityMedium}, {Severity: clinical.SeverityLow}}, 0.9},
		{"high", []clinical.ComplianceAlert{{Severity: clinical.SeverityHigh}}, 0.7},
		{"many high", []clinical.ComplianceAlert{{Severity: clinical.SeverityHigh}, {Severity: clinical.SeverityHigh}, {Severity: clinical.SeverityMedium}}, 0.7},
	}
	for _, tt := range tests {
		if got := Score(tt.alerts); got != tt.want {
			t.Errorf("%s: Score() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// TestResolve tests rendering of both outcome arms.
func TestResolve(t *testing.T) {
	failure := PatientNotFound("P404", errors.New("404 Not Found"))
	v := Resolve(failure)
	if v.IsSafeToFile || v.Score != 0 || len(v.Alerts) != 1 || v.Alerts[0].RuleID != RulePatientNotFound {
		t.Errorf("Resolve(failure) = %+v", v)
	}

	v = Resolve(Classify(nil))
	if !v.IsSafeToFile || v.Score != 1.0 {
		t.Errorf("Resolve(success) = %+v", v)
	}
}

// TestCollaboratorFailures tests the synthetic boundary alerts.
func TestCollaboratorFailures(t *testing.T) {
	tests := []struct {
		name   string
		res    Outcome
		ruleID string
		field  string
	}{
		{"patient", PatientNotFound("P1", nil), RulePatientNotFound, "patient_id"},
		{"extraction", ExtractionFailed(errors.New("timeout")), RuleExtractionFailed, "transcript"},
		{"workflow", WorkflowError(errors.New("boom")), RuleWorkflowError, "workflow"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alerts, failed := tt.res.Err()
			if !failed || len(alerts) != 1 {
				t.Fatalf("expected one-alert failure, got %+v", tt.res)
			}
			a := alerts[0]
			if a.RuleID != tt.ruleID || a.Field != tt.field || a.Severity != clinical.SeverityCritical {
				t.Errorf("alert = %+v", a)
			}
		})
	}
}

// TestOutputFromExtraction tests extraction to output conversion.
func TestOutputFromExtraction(t *testing.T) {
	d := day(20)
	extraction := clinical.StructuredExtraction{
		TemporalExpressions: []clinical.TemporalExpression{
			{Text: "today", Type: clinical.TemporalRelativeDate, NormalizedDate: &d, Confidence: 1},
			{Text: "for two weeks", Type: clinical.TemporalDuration, Confidence: 1},
		},
		Medications: []clinical.ExtractedMedication{
			{Name: "Ceftriaxone", Status: clinical.MedicationStarted, Confidence: 1},
			{Name: "Aspirin", Confidence: 1},
		},
		Diagnoses:  []clinical.ExtractedDiagnosis{{Text: "Sepsis", Confidence: 0.9}},
		Confidence: 1,
	}

	out := OutputFromExtraction(extraction, "Patient seen today.")

	if !reflect.DeepEqual(out.ExtractedDates, []civil.Date{d}) {
		t.Errorf("ExtractedDates = %v", out.ExtractedDates)
	}
	if !reflect.DeepEqual(out.ExtractedDiagnoses, []string{"Sepsis"}) {
		t.Errorf("ExtractedDiagnoses = %v", out.ExtractedDiagnoses)
	}
	want := "Patient seen today.\nMedications: Ceftriaxone (started), Aspirin (unknown)\nDiagnoses: Sepsis"
	if out.SummaryText != want {
		t.Errorf("SummaryText = %q, want %q", out.SummaryText, want)
	}
	if len(out.ExtractedMedications) != 2 {
		t.Errorf("len(ExtractedMedications) = %d, want 2", len(out.ExtractedMedications))
	}

	back := ExtractionFromOutput(out)
	if len(back.Medications) != 2 || len(back.Diagnoses) != 0 || len(back.TemporalExpressions) != 0 {
		t.Errorf("ExtractionFromOutput() should carry medications only, got %+v", back)
	}
}

// TestPIIPatternByName tests configuration name resolution.
func TestPIIPatternByName(t *testing.T) {
	got, err := PIIPatternsByName([]string{"Medicare", "ssn"})
	if err != nil {
		t.Fatalf("PIIPatternsByName() failed: %v", err)
	}
	if len(got) != 2 || got[0].Name != "medicare" || got[1].Name != "ssn" {
		t.Errorf("patterns = %+v", got)
	}
	if _, err := PIIPatternByName("passport"); err == nil {
		t.Errorf("expected error for unknown pattern")
	}
}

const concurrentConfig = `
version: "1.0"
checkers:
  allergy_checks: {enabled: true}
  drug_interactions: {enabled: true}
  expression_checks: {enabled: true}
rules:
  allergy_checks:
    - name: Penicillin Allergy
      pattern:
        patient_allergies: [penicillin]
        conflicts: {medications: [amoxicillin]}
      severity: CRITICAL
      message: Patient is allergic to penicillin
  drug_interactions:
    - name: Warfarin NSAID
      pattern:
        trigger: {medications: [warfarin]}
        conflicts: {medications: [ibuprofen]}
      severity: WARNING
      message: Warfarin with NSAIDs increases bleeding risk
  expression_checks:
    - name: Anticoagulant With Allergies
      pattern:
        expression: >
          patient.allergies.size() > 0 &&
          extraction.medications.exists(m, m.lowerAscii() == "warfarin")
      severity: HIGH
      message: Review anticoagulation for a patient with recorded allergies
`

// TestEngine_ConcurrentVerify tests that one engine and one shared config
// give the same answers from many goroutines as they do sequentially.
func TestEngine_ConcurrentVerify(t *testing.T) {
	cfg, err := protocols.ParseConfig([]byte(concurrentConfig))
	if err != nil {
		t.Fatalf("ParseConfig() failed: %v", err)
	}
	engine := NewEngine()

	outputs := []clinical.AIGeneratedOutput{
		{
			SummaryText:    "Routine follow-up.",
			ExtractedDates: []civil.Date{day(20)},
		},
		{
			SummaryText:          "Started amoxicillin.",
			ExtractedDates:       []civil.Date{day(21)},
			ExtractedMedications: []clinical.ExtractedMedication{{Name: "Amoxicillin", Confidence: 1}},
		},
		{
			SummaryText:    "Continued warfarin, added ibuprofen.",
			ExtractedDates: []civil.Date{day(24)},
			ExtractedMedications: []clinical.ExtractedMedication{
				{Name: "Warfarin", Confidence: 1},
				{Name: "Ibuprofen", Confidence: 1},
			},
		},
	}

	want := make([]clinical.VerificationResult, len(outputs))
	for i, out := range outputs {
		want[i] = Resolve(engine.Verify(testPatient(), testEMR(), out, cfg))
	}
	if want[2].Score != 0.7 || len(want[2].Alerts) != 2 {
		t.Fatalf("sequential expression result = %+v, want two alerts at 0.7", want[2])
	}

	const workers = 16
	const iterations = 50
	var wg sync.WaitGroup
	errs := make(chan string, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				k := (w + i) % len(outputs)
				got := Resolve(engine.Verify(testPatient(), testEMR(), outputs[k], cfg))
				if !reflect.DeepEqual(got, want[k]) {
					errs <- "concurrent result differs from sequential result"
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Error(msg)
	}
	if cfg.RuleCount() != 3 {
		t.Errorf("shared config changed: RuleCount() = %d", cfg.RuleCount())
	}
}
