/*
Package protocols loads and models declarative medical-protocol rules.

A protocol configuration is a versioned YAML document:

	version: "1.0"
	settings:
	  hot_reload: false
	checkers:
	  drug_interactions:
	    enabled: true
	  allergy_checks:
	    enabled: true
	rules:
	  drug_interactions:
	    - name: Warfarin NSAID
	      pattern:
	        trigger:
	          medications: [warfarin]
	        conflicts:
	          medications: [ibuprofen, naproxen]
	      severity: CRITICAL
	      message: Warfarin with NSAIDs increases bleeding risk

# Loading

LoadConfig and ParseConfig validate the document in four passes:

 1. Required keys: version and rules must be present.
 2. Structure: the document must satisfy the embedded JSON schema.
 3. Version: the version must satisfy SupportedVersions.
 4. Patterns: each rule's pattern is decoded into the typed pattern for its
    checker type. Expression rules are compiled.

Any failure returns a *ConfigError and no Config. A returned Config is
immutable and safe to share across goroutines.

# Patterns

Each checker type has its own pattern type:

  - drug_interactions: DrugInteractionPattern
  - allergy_checks: AllergyConflictPattern
  - required_fields: RequiredFieldsPattern
  - expression_checks: ExpressionPattern

Rules in groups with no checker implementation keep a RawPattern and are
never evaluated. Absent pattern keys decode to empty term sets, which never
match, or to an empty required list, which is always satisfied. Either way
a missing key raises no alert.
*/
package protocols
