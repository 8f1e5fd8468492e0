package compliance

import (
	"fmt"
	"regexp"
	"strings"
)

// PIIPattern is a regular expression for an identifier that must never
// appear in a summary.
type PIIPattern struct {
	Name        string
	Description string
	Regexp      *regexp.Regexp
}

var (
	// MedicarePattern matches ten-digit Medicare numbers, optionally grouped 4-5-1.
	MedicarePattern = PIIPattern{
		Name:        "medicare",
		Description: "Medicare Number",
		Regexp:      regexp.MustCompile(`\b\d{4}[ ]?\d{5}[ ]?\d{1}\b`),
	}

	// SSNPattern matches US social security numbers written 3-2-4 with dashes.
	SSNPattern = PIIPattern{
		Name:        "ssn",
		Description: "US Social Security Number",
		Regexp:      regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	}
)

// PIIPatternByName resolves a pattern name as used in configuration.
func PIIPatternByName(name string) (PIIPattern, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case MedicarePattern.Name:
		return MedicarePattern, nil
	case SSNPattern.Name:
		return SSNPattern, nil
	}
	return PIIPattern{}, fmt.Errorf("unknown PII pattern %q (want medicare or ssn)", name)
}

// PIIPatternsByName resolves a list of pattern names.
func PIIPatternsByName(names []string) ([]PIIPattern, error) {
	out := make([]PIIPattern, 0, len(names))
	for _, name := range names {
		p, err := PIIPatternByName(name)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
