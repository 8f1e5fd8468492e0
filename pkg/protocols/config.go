package protocols

import "sort"

// SupportedVersions is the semver constraint a configuration version must meet.
const SupportedVersions = ">= 1.0.0, < 2.0.0"

// CheckerSettings is the per-checker block under "checkers".
type CheckerSettings struct {
	Enabled bool

	// Options holds any keys besides enabled.
	Options map[string]any
}

// Config is a loaded protocol configuration. It must be treated as
// immutable; reloads produce a new Config.
type Config struct {
	Version  string
	Settings map[string]any
	Checkers map[string]CheckerSettings

	// Rules maps a checker type to its rules in file order.
	Rules map[string][]Rule
}

// IsEnabled reports whether the named checker is present and enabled.
func (c *Config) IsEnabled(name string) bool {
	if c == nil {
		return false
	}
	s, ok := c.Checkers[name]
	return ok && s.Enabled
}

// EnabledCheckers returns the enabled checker names in sorted order.
func (c *Config) EnabledCheckers() []string {
	if c == nil {
		return nil
	}
	var names []string
	for name, s := range c.Checkers {
		if s.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// RulesFor returns the rules for a checker type and whether the group exists.
func (c *Config) RulesFor(checkerType string) ([]Rule, bool) {
	if c == nil {
		return nil, false
	}
	rules, ok := c.Rules[checkerType]
	return rules, ok
}

// RuleTypes returns the rule group keys in sorted order.
func (c *Config) RuleTypes() []string {
	if c == nil {
		return nil
	}
	types := make([]string, 0, len(c.Rules))
	for t := range c.Rules {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// RuleCount returns the total number of rules across all groups.
func (c *Config) RuleCount() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, rules := range c.Rules {
		n += len(rules)
	}
	return n
}

// Setting returns a value from the settings block.
func (c *Config) Setting(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.Settings[key]
	return v, ok
}
