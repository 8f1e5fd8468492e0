package fhir

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-sql/civil"

	"clinical-guardrails/guardrails/pkg/clinical"
)

// Defaults used when a resource omits a value.
const (
	UnknownName      = "Unknown"
	UnknownVisitID   = "VISIT-UNKNOWN"
	UnknownPhysician = "Unknown Provider"
	UnknownStatus    = "unknown"
)

// DefaultBirthDate is used when a Patient has no birthDate.
var DefaultBirthDate = civil.Date{Year: 1900, Month: time.January, Day: 1}

// Statuses that exclude a resource from the patient's current record.
var (
	inactiveClinical = map[string]bool{"inactive": true, "resolved": true, "remission": true}
	excludedVerified = map[string]bool{"refuted": true, "entered-in-error": true}
	currentMedStatus = map[string]bool{"": true, "active": true, "intended": true, "recorded": true}
)

// MapBundle maps the patient with the given id and their latest encounter.
// An empty id selects the first Patient in the bundle.
func MapBundle(b *Bundle, patientID string) (clinical.PatientProfile, clinical.EMRContext, error) {
	idx, err := b.index()
	if err != nil {
		return clinical.PatientProfile{}, clinical.EMRContext{}, err
	}
	entry, err := idx.findPatient(patientID)
	if err != nil {
		return clinical.PatientProfile{}, clinical.EMRContext{}, err
	}

	profile, err := idx.patientProfile(entry)
	if err != nil {
		return clinical.PatientProfile{}, clinical.EMRContext{}, err
	}
	emr, err := idx.emrContext(entry)
	if err != nil {
		return clinical.PatientProfile{}, clinical.EMRContext{}, err
	}
	return profile, emr, nil
}

// PatientProfileFromBundle maps the patient with the given id, including
// their allergies, conditions and current medications.
func PatientProfileFromBundle(b *Bundle, patientID string) (clinical.PatientProfile, error) {
	idx, err := b.index()
	if err != nil {
		return clinical.PatientProfile{}, err
	}
	entry, err := idx.findPatient(patientID)
	if err != nil {
		return clinical.PatientProfile{}, err
	}
	return idx.patientProfile(entry)
}

// EMRContextFromBundle maps the latest encounter of the patient with the
// given id.
func EMRContextFromBundle(b *Bundle, patientID string) (clinical.EMRContext, error) {
	idx, err := b.index()
	if err != nil {
		return clinical.EMRContext{}, err
	}
	entry, err := idx.findPatient(patientID)
	if err != nil {
		return clinical.EMRContext{}, err
	}
	return idx.emrContext(entry)
}

func (idx *index) patientProfile(entry patientEntry) (clinical.PatientProfile, error) {
	p := entry.patient
	first, last := mapName(p.Name)

	dob := DefaultBirthDate
	if p.BirthDate != "" {
		d, err := parseDate(p.BirthDate)
		if err != nil {
			return clinical.PatientProfile{}, &MappingError{
				Resource: ResourcePatient, ID: p.ID, Field: "birthDate",
				Message: fmt.Sprintf("invalid date %q", p.BirthDate), Cause: err,
			}
		}
		dob = d
	}

	subj := newSubject(entry)
	var allergies, diagnoses, medications []string
	for _, a := range idx.allergies {
		if !subj.matches(a.Patient) || excluded(a.ClinicalStatus, a.VerificationStatus) {
			continue
		}
		allergies = appendUnique(allergies, a.Code.Label())
	}
	for _, c := range idx.conditions {
		if !subj.matches(c.Subject) || excluded(c.ClinicalStatus, c.VerificationStatus) {
			continue
		}
		diagnoses = appendUnique(diagnoses, c.Code.Label())
	}
	for _, m := range idx.medications {
		if !subj.matches(m.Subject) || !currentMedStatus[m.Status] {
			continue
		}
		medications = appendUnique(medications, m.MedicationName())
	}

	profile, err := clinical.NewPatientProfile(clinical.PatientProfile{
		PatientID:         p.ID,
		FirstName:         first,
		LastName:          last,
		DOB:               dob,
		Allergies:         allergies,
		Diagnoses:         diagnoses,
		ActiveMedications: medications,
	})
	if err != nil {
		return clinical.PatientProfile{}, &MappingError{
			Resource: ResourcePatient, ID: p.ID,
			Message: "resource does not form a valid patient profile", Cause: err,
		}
	}
	return profile, nil
}

func (idx *index) emrContext(entry patientEntry) (clinical.EMRContext, error) {
	subj := newSubject(entry)

	var (
		latest      *Encounter
		latestStart time.Time
		found       bool
	)
	for i := range idx.encounters {
		e := &idx.encounters[i]
		if !subj.matches(e.Subject) {
			continue
		}
		found = true

		period := e.period()
		if period == nil || period.Start == "" {
			continue
		}
		start, err := parseDateTime(period.Start)
		if err != nil {
			return clinical.EMRContext{}, &MappingError{
				Resource: ResourceEncounter, ID: e.ID, Field: "period.start",
				Message: fmt.Sprintf("invalid dateTime %q", period.Start), Cause: err,
			}
		}
		if latest == nil || start.After(latestStart) {
			latest, latestStart = e, start
		}
	}

	if !found {
		return clinical.EMRContext{}, fmt.Errorf("%w: patient %s", ErrEncounterNotFound, entry.patient.ID)
	}
	if latest == nil {
		return clinical.EMRContext{}, &MappingError{
			Resource: ResourceEncounter, Field: "period.start",
			Message: fmt.Sprintf("no encounter for patient %s has an admission date", entry.patient.ID),
		}
	}

	var discharge *time.Time
	if end := latest.period().End; end != "" {
		t, err := parseDateTime(end)
		if err != nil {
			return clinical.EMRContext{}, &MappingError{
				Resource: ResourceEncounter, ID: latest.ID, Field: "period.end",
				Message: fmt.Sprintf("invalid dateTime %q", end), Cause: err,
			}
		}
		discharge = &t
	}

	visitID := latest.ID
	if visitID == "" {
		visitID = UnknownVisitID
	}
	status := latest.Status
	if status == "" {
		status = UnknownStatus
	}

	emr, err := clinical.NewEMRContext(clinical.EMRContext{
		VisitID:            visitID,
		PatientID:          entry.patient.ID,
		AdmissionDate:      latestStart,
		DischargeDate:      discharge,
		AttendingPhysician: latest.physician(),
		RawNotes:           "Encounter status: " + status,
	})
	if err != nil {
		return clinical.EMRContext{}, &MappingError{
			Resource: ResourceEncounter, ID: latest.ID,
			Message: "resource does not form a valid EMR context", Cause: err,
		}
	}
	return emr, nil
}

// period prefers the R5 actualPeriod.
func (e *Encounter) period() *Period {
	if e.ActualPeriod != nil && e.ActualPeriod.Start != "" {
		return e.ActualPeriod
	}
	return e.Period
}

func (e *Encounter) physician() string {
	for _, p := range e.Participant {
		for _, ref := range []*Reference{p.Individual, p.Actor} {
			if ref != nil && ref.Display != "" {
				return ref.Display
			}
		}
	}
	return UnknownPhysician
}

// mapName prefers the official name and falls back to the first one.
func mapName(names []HumanName) (first, last string) {
	first, last = UnknownName, UnknownName
	if len(names) == 0 {
		return first, last
	}

	name := names[0]
	for _, n := range names {
		if n.Use == "official" {
			name = n
			break
		}
	}

	var given []string
	for _, g := range name.Given {
		if g = strings.TrimSpace(g); g != "" {
			given = append(given, g)
		}
	}
	if len(given) > 0 {
		first = strings.Join(given, " ")
	}
	if name.Family != "" {
		last = name.Family
	}
	return first, last
}

func excluded(clinicalStatus, verificationStatus *CodeableConcept) bool {
	return inactiveClinical[clinicalStatus.FirstCode()] || excludedVerified[verificationStatus.FirstCode()]
}

func appendUnique(list []string, v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return list
	}
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

// parseDate accepts the FHIR date forms YYYY, YYYY-MM and YYYY-MM-DD.
// Partial dates resolve to the first day of the period.
func parseDate(s string) (civil.Date, error) {
	for _, layout := range []string{"2006", "2006-01"} {
		if len(s) == len(layout) {
			t, err := time.Parse(layout, s)
			if err != nil {
				return civil.Date{}, err
			}
			return civil.DateOf(t), nil
		}
	}
	return civil.ParseDate(s)
}

// parseDateTime accepts FHIR dateTime values. Date-only forms are taken
// as midnight UTC.
func parseDateTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	d, err := parseDate(s)
	if err != nil {
		return time.Time{}, err
	}
	return d.In(time.UTC), nil
}
