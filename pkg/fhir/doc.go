// Package fhir maps FHIR R4 bundles onto the clinical data model.
//
// Only the resources the verifier needs are modelled: Patient, Encounter,
// AllergyIntolerance, Condition and MedicationStatement. Unknown resource
// types in a bundle are ignored. Encounter.actualPeriod (R5) is read in
// preference to Encounter.period so bundles exported from either version
// map the same way.
package fhir
