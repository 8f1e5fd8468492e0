package fhir

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// LoadBundle reads and parses a bundle file.
func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle: %w", err)
	}
	return ParseBundle(data)
}

// ParseBundle parses a FHIR Bundle document.
func ParseBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	if b.ResourceType != ResourceBundle {
		return nil, fmt.Errorf("%w: resourceType is %q", ErrInvalidBundle, b.ResourceType)
	}
	return &b, nil
}

type patientEntry struct {
	fullURL string
	patient Patient
}

// index holds the decoded resources of a bundle, in bundle order.
type index struct {
	patients    []patientEntry
	encounters  []Encounter
	allergies   []AllergyIntolerance
	conditions  []Condition
	medications []MedicationStatement
}

func (b *Bundle) index() (*index, error) {
	idx := &index{}
	for _, entry := range b.Entry {
		if len(entry.Resource) == 0 {
			continue
		}

		var head struct {
			ResourceType string `json:"resourceType"`
			ID           string `json:"id"`
		}
		if err := json.Unmarshal(entry.Resource, &head); err != nil {
			return nil, &MappingError{Resource: "entry", Message: "failed to decode resource", Cause: err}
		}

		var err error
		switch head.ResourceType {
		case ResourcePatient:
			var p Patient
			if err = json.Unmarshal(entry.Resource, &p); err == nil {
				idx.patients = append(idx.patients, patientEntry{fullURL: entry.FullURL, patient: p})
			}
		case ResourceEncounter:
			var e Encounter
			if err = json.Unmarshal(entry.Resource, &e); err == nil {
				idx.encounters = append(idx.encounters, e)
			}
		case ResourceAllergyIntolerance:
			var a AllergyIntolerance
			if err = json.Unmarshal(entry.Resource, &a); err == nil {
				idx.allergies = append(idx.allergies, a)
			}
		case ResourceCondition:
			var c Condition
			if err = json.Unmarshal(entry.Resource, &c); err == nil {
				idx.conditions = append(idx.conditions, c)
			}
		case ResourceMedicationStatement:
			var m MedicationStatement
			if err = json.Unmarshal(entry.Resource, &m); err == nil {
				idx.medications = append(idx.medications, m)
			}
		}
		if err != nil {
			return nil, &MappingError{Resource: head.ResourceType, ID: head.ID, Message: "failed to decode resource", Cause: err}
		}
	}
	return idx, nil
}

// findPatient returns the patient with the given id, or the first patient
// when id is empty.
func (idx *index) findPatient(id string) (patientEntry, error) {
	for _, p := range idx.patients {
		if id == "" || p.patient.ID == id {
			return p, nil
		}
	}
	if id == "" {
		return patientEntry{}, ErrPatientNotFound
	}
	return patientEntry{}, fmt.Errorf("%w: %s", ErrPatientNotFound, id)
}

// subject matches references that point at one patient.
type subject struct {
	aliases map[string]struct{}
	id      string
}

func newSubject(p patientEntry) subject {
	s := subject{aliases: map[string]struct{}{}, id: p.patient.ID}
	if p.patient.ID != "" {
		s.aliases[ResourcePatient+"/"+p.patient.ID] = struct{}{}
	}
	if p.fullURL != "" {
		s.aliases[p.fullURL] = struct{}{}
	}
	return s
}

func (s subject) matches(ref *Reference) bool {
	if ref == nil || ref.Reference == "" {
		return false
	}
	if _, ok := s.aliases[ref.Reference]; ok {
		return true
	}
	return s.id != "" && strings.HasSuffix(ref.Reference, "/"+ResourcePatient+"/"+s.id)
}
