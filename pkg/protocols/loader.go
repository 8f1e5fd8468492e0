package protocols

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"

	"clinical-guardrails/guardrails/pkg/clinical"
)

// rawConfig mirrors the document layout before patterns are typed.
type rawConfig struct {
	Version  string                    `yaml:"version"`
	Settings map[string]any            `yaml:"settings"`
	Checkers map[string]map[string]any `yaml:"checkers"`
	Rules    map[string][]rawRule      `yaml:"rules"`
}

type rawRule struct {
	Name     string    `yaml:"name"`
	Pattern  yaml.Node `yaml:"pattern"`
	Severity string    `yaml:"severity"`
	Message  string    `yaml:"message"`
}

type medicationList struct {
	Medications []string `yaml:"medications"`
}

type rawDrugPattern struct {
	Trigger   medicationList `yaml:"trigger"`
	Conflicts medicationList `yaml:"conflicts"`
}

type rawAllergyPattern struct {
	PatientAllergies []string       `yaml:"patient_allergies"`
	Conflicts        medicationList `yaml:"conflicts"`
}

type rawRequiredPattern struct {
	Required []string `yaml:"required"`
}

type rawExpressionPattern struct {
	Expression string `yaml:"expression"`
}

// LoadConfig reads and validates a protocol configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Message: "failed to read file", Cause: err}
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		var cerr *ConfigError
		if errors.As(err, &cerr) {
			cerr.Path = path
		}
		return nil, err
	}
	return cfg, nil
}

// ParseConfig validates a protocol configuration document.
func ParseConfig(data []byte) (*Config, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, configErr("", err, "failed to parse YAML")
	}
	if doc == nil {
		doc = map[string]any{}
	}

	if _, ok := doc["version"]; !ok {
		return nil, configErr("version", ErrMissingVersion, "required field is missing")
	}
	if _, ok := doc["rules"]; !ok {
		return nil, configErr("rules", ErrMissingRules, "required field is missing")
	}

	if err := validateSchema(doc); err != nil {
		return nil, &ConfigError{Message: err.Error(), Cause: ErrSchemaViolation}
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, configErr("", err, "failed to decode configuration")
	}

	if err := checkVersion(raw.Version); err != nil {
		return nil, err
	}

	env, err := NewExpressionEnv()
	if err != nil {
		return nil, configErr("", err, "failed to prepare expression environment")
	}

	cfg := &Config{
		Version:  raw.Version,
		Settings: raw.Settings,
		Checkers: make(map[string]CheckerSettings, len(raw.Checkers)),
		Rules:    make(map[string][]Rule, len(raw.Rules)),
	}
	if cfg.Settings == nil {
		cfg.Settings = map[string]any{}
	}

	for name, block := range raw.Checkers {
		cfg.Checkers[name] = decodeCheckerSettings(block)
	}

	types := make([]string, 0, len(raw.Rules))
	for t := range raw.Rules {
		types = append(types, t)
	}
	sort.Strings(types)

	for _, checkerType := range types {
		rawRules := raw.Rules[checkerType]
		rules := make([]Rule, 0, len(rawRules))
		for i, rr := range rawRules {
			field := fmt.Sprintf("rules.%s[%d]", checkerType, i)
			rule, err := buildRule(env, checkerType, rr, field)
			if err != nil {
				return nil, err
			}
			rules = append(rules, rule)
		}
		cfg.Rules[checkerType] = rules
	}

	return cfg, nil
}

func checkVersion(version string) error {
	v, err := semver.NewVersion(strings.TrimSpace(version))
	if err != nil {
		return configErr("version", ErrUnsupportedVersion, "%q is not a semantic version", version)
	}
	c, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return configErr("version", err, "invalid version constraint")
	}
	if !c.Check(v) {
		return configErr("version", ErrUnsupportedVersion, "%s does not satisfy %q", version, SupportedVersions)
	}
	return nil
}

func decodeCheckerSettings(block map[string]any) CheckerSettings {
	s := CheckerSettings{Options: map[string]any{}}
	for k, v := range block {
		if k == "enabled" {
			// The schema guarantees a bool here.
			s.Enabled, _ = v.(bool)
			continue
		}
		s.Options[k] = v
	}
	return s
}

func buildRule(env *cel.Env, checkerType string, rr rawRule, field string) (Rule, error) {
	sev, err := ParseSeverity(rr.Severity)
	if err != nil {
		return Rule{}, configErr(field+".severity", err, "rule %q has an invalid severity", rr.Name)
	}

	pattern, err := buildPattern(env, checkerType, &rr.Pattern)
	if err != nil {
		return Rule{}, configErr(field+".pattern", err, "rule %q has an invalid pattern", rr.Name)
	}

	return Rule{
		Name:        rr.Name,
		CheckerType: checkerType,
		Pattern:     pattern,
		Severity:    sev,
		Message:     rr.Message,
	}, nil
}

// buildPattern decodes node into the typed pattern for checkerType. An
// empty node yields an empty pattern.
func buildPattern(env *cel.Env, checkerType string, node *yaml.Node) (Pattern, error) {
	decode := func(out any) error {
		if node.Kind == 0 {
			return nil
		}
		if err := node.Decode(out); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPattern, err)
		}
		return nil
	}

	switch checkerType {
	case CheckerDrugInteractions:
		var p rawDrugPattern
		if err := decode(&p); err != nil {
			return nil, err
		}
		return DrugInteractionPattern{
			Trigger:   NewTermSet(p.Trigger.Medications...),
			Conflicts: NewTermSet(p.Conflicts.Medications...),
		}, nil

	case CheckerAllergyChecks:
		var p rawAllergyPattern
		if err := decode(&p); err != nil {
			return nil, err
		}
		return AllergyConflictPattern{
			PatientAllergies:    NewTermSet(p.PatientAllergies...),
			ConflictMedications: NewTermSet(p.Conflicts.Medications...),
		}, nil

	case CheckerRequiredFields:
		var p rawRequiredPattern
		if err := decode(&p); err != nil {
			return nil, err
		}
		for _, f := range p.Required {
			if !clinical.IsKnownField(f) {
				return nil, fmt.Errorf("%w: unknown extraction field %q (known: %s)",
					ErrInvalidPattern, f, strings.Join(clinical.KnownFields(), ", "))
			}
		}
		return RequiredFieldsPattern{Required: append([]string(nil), p.Required...)}, nil

	case CheckerExpressionChecks:
		var p rawExpressionPattern
		if err := decode(&p); err != nil {
			return nil, err
		}
		if strings.TrimSpace(p.Expression) == "" {
			return nil, fmt.Errorf("%w: expression is required", ErrInvalidPattern)
		}
		expr, err := CompileExpression(env, p.Expression)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
		}
		return expr, nil

	default:
		values := map[string]any{}
		if err := decode(&values); err != nil {
			return nil, err
		}
		return RawPattern{Values: values}, nil
	}
}
