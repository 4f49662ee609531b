// Package config provides configuration management for the rule engine.
//
// This package handles loading and validating configuration from YAML files
// with environment variable overrides. Configuration is passed explicitly to
// the components that need it; there is no global instance.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("rules.yaml")
//
//  2. From a YAML file (or defaults) with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("rules.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention RULES_SECTION_FIELD.
// For example:
//
//   - RULES_STORE_BACKEND overrides store.backend
//   - RULES_STORE_SQLITE_COMPRESSION overrides store.sqlite.compression
//   - RULES_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Example
//
//	store:
//	  backend: sqlite
//	  sqlite:
//	    driver: sqlite
//	    path: data/rules.db
//	    compression: zstd
//	registry:
//	  refresh_schedule: "@every 30s"
//	telemetry:
//	  logging:
//	    level: debug
//	    redact_fields: [salary, ssn]
package config
