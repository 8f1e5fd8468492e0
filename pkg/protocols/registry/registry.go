// Package registry instantiates and runs the enabled protocol checkers of a
// configuration.
package registry

import (
	"sort"

	"clinical-guardrails/guardrails/pkg/clinical"
	"clinical-guardrails/guardrails/pkg/protocols"
	"clinical-guardrails/guardrails/pkg/protocols/checkers"
)

// Factory builds a checker for a configuration.
type Factory func(cfg *protocols.Config) checkers.Checker

// DefaultFactories returns a fresh table of the built-in checkers, keyed by
// checker name.
func DefaultFactories() map[string]Factory {
	return map[string]Factory{
		protocols.CheckerDrugInteractions: func(cfg *protocols.Config) checkers.Checker {
			return checkers.NewDrugInteractionChecker(cfg)
		},
		protocols.CheckerAllergyChecks: func(cfg *protocols.Config) checkers.Checker {
			return checkers.NewAllergyChecker(cfg)
		},
		protocols.CheckerRequiredFields: func(cfg *protocols.Config) checkers.Checker {
			return checkers.NewRequiredFieldsChecker(cfg)
		},
		protocols.CheckerExpressionChecks: func(cfg *protocols.Config) checkers.Checker {
			return checkers.NewExpressionChecker(cfg)
		},
	}
}

// Option configures a Registry.
type Option func(*options)

type options struct {
	factories map[string]Factory
}

// WithFactory registers an additional checker factory, replacing any
// built-in factory with the same name.
func WithFactory(name string, f Factory) Option {
	return func(o *options) {
		o.factories[name] = f
	}
}

// Registry holds the checkers enabled by one configuration.
type Registry struct {
	config   *protocols.Config
	checkers []checkers.Checker
}

// New instantiates every checker whose name is enabled in cfg and has a
// registered factory. Disabled, absent or unknown checkers are never built.
func New(cfg *protocols.Config, opts ...Option) *Registry {
	o := options{factories: DefaultFactories()}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Registry{config: cfg}
	for _, name := range cfg.EnabledCheckers() {
		factory, ok := o.factories[name]
		if !ok {
			continue
		}
		r.checkers = append(r.checkers, factory(cfg))
	}
	return r
}

// CheckAll runs every instantiated checker in name order and concatenates
// their alerts.
func (r *Registry) CheckAll(patient clinical.PatientProfile, extraction clinical.StructuredExtraction) []clinical.ComplianceAlert {
	var alerts []clinical.ComplianceAlert
	for _, c := range r.checkers {
		alerts = append(alerts, c.Check(patient, extraction)...)
	}
	return alerts
}

// EnabledCheckers returns the names of the instantiated checkers.
func (r *Registry) EnabledCheckers() []string {
	names := make([]string, 0, len(r.checkers))
	for _, c := range r.checkers {
		names = append(names, c.Name())
	}
	sort.Strings(names)
	return names
}

// Config returns the configuration the registry was built from.
func (r *Registry) Config() *protocols.Config {
	return r.config
}
