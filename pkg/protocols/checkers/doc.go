// Package checkers implements the protocol checkers.
//
// Each checker owns one rule group of a protocol configuration. It walks that
// group's rules and emits one alert per firing rule. A checker built without
// a configuration, or whose group is absent, returns no alerts. Missing
// configuration never produces an alert on its own.
//
// Checkers are read-only after construction and safe for concurrent use.
package checkers
