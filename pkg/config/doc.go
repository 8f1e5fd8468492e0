// Package config provides application configuration for the guardrails
// service.
//
// This package loads the service configuration from YAML with environment
// variable overrides. It is separate from the medical protocol file, which
// is owned by package protocols and may be hot reloaded; this configuration
// only says where that file lives.
//
// # Configuration Loading
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("guardrails.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("guardrails.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention GUARDRAILS_SECTION_FIELD.
// For example:
//
//   - GUARDRAILS_PROTOCOLS_PATH overrides protocols.path
//   - GUARDRAILS_AUDIT_BACKEND overrides audit.backend
//   - GUARDRAILS_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// There is no global instance. Commands load a *Config once and pass it
// to the components they build.
//
// # Validation
//
// Validation errors include field paths:
//
//	configuration validation failed with 2 errors:
//	  - audit.backend: invalid backend "postgres": must be 'memory' or 'sqlite'
//	  - compliance.pii_patterns[0]: unknown PII pattern "nhs" (want medicare or ssn)
//
// # Example Configuration
//
//	protocols:
//	  path: "config/medical_protocols.yaml"
//	  watch: true
//
//	audit:
//	  backend: "sqlite"
//	  sqlite:
//	    path: "data/audit.db"
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
package config
