package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "RULES_"

// LoadConfig loads configuration from a YAML file at the specified path.
// Fields the file omits keep their defaults. The configuration is validated
// before it is returned. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention RULES_SECTION_FIELD (e.g., RULES_STORE_BACKEND) and always take
// precedence over the file. An empty path starts from the defaults.
//
// The loading sequence is:
// 1. Start from default values
// 2. Load YAML from file
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg := NewDefault()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if cfg, err = parse(data); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// parse decodes YAML on top of the defaults.
func parse(data []byte) (*Config, error) {
	cfg := NewDefault()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// envOverride binds one environment variable to a configuration field.
type envOverride struct {
	name  string
	apply func(cfg *Config, val string) error
}

var envOverrides = []envOverride{
	// Store overrides
	{"STORE_BACKEND", setString(func(c *Config) *string { return &c.Store.Backend })},
	{"STORE_FILE_DIR", setString(func(c *Config) *string { return &c.Store.File.Dir })},
	{"STORE_SQLITE_DRIVER", setString(func(c *Config) *string { return &c.Store.SQLite.Driver })},
	{"STORE_SQLITE_PATH", setString(func(c *Config) *string { return &c.Store.SQLite.Path })},
	{"STORE_SQLITE_COMPRESSION", setString(func(c *Config) *string { return &c.Store.SQLite.Compression })},
	{"STORE_SQLITE_WAL_MODE", setBool(func(c *Config) *bool { return &c.Store.SQLite.WALMode })},
	{"STORE_SQLITE_BUSY_TIMEOUT", setDuration(func(c *Config) *time.Duration { return &c.Store.SQLite.BusyTimeout })},
	{"STORE_SQLITE_MAX_OPEN_CONNS", setInt(func(c *Config) *int { return &c.Store.SQLite.MaxOpenConns })},

	// Engine overrides
	{"ENGINE_MAX_RULE_LENGTH", setInt(func(c *Config) *int { return &c.Engine.MaxRuleLength })},
	{"ENGINE_MAX_DEPTH", setInt(func(c *Config) *int { return &c.Engine.MaxDepth })},
	{"ENGINE_TRACE", setBool(func(c *Config) *bool { return &c.Engine.Trace })},

	// Registry overrides
	{"REGISTRY_ENABLED", setBool(func(c *Config) *bool { return &c.Registry.Enabled })},
	{"REGISTRY_WATCH", setBool(func(c *Config) *bool { return &c.Registry.Watch })},
	{"REGISTRY_DEBOUNCE_INTERVAL", setDuration(func(c *Config) *time.Duration { return &c.Registry.DebounceInterval })},
	{"REGISTRY_REFRESH_SCHEDULE", setString(func(c *Config) *string { return &c.Registry.RefreshSchedule })},

	// Telemetry overrides
	{"TELEMETRY_LOGGING_LEVEL", setString(func(c *Config) *string { return &c.Telemetry.Logging.Level })},
	{"TELEMETRY_LOGGING_FORMAT", setString(func(c *Config) *string { return &c.Telemetry.Logging.Format })},
	{"TELEMETRY_LOGGING_REDACT_FIELDS", setList(func(c *Config) *[]string { return &c.Telemetry.Logging.RedactFields })},
	{"TELEMETRY_METRICS_ENABLED", setBool(func(c *Config) *bool { return &c.Telemetry.Metrics.Enabled })},
	{"TELEMETRY_TRACING_ENABLED", setBool(func(c *Config) *bool { return &c.Telemetry.Tracing.Enabled })},
	{"TELEMETRY_TRACING_ENDPOINT", setString(func(c *Config) *string { return &c.Telemetry.Tracing.Endpoint })},
	{"TELEMETRY_TRACING_SAMPLE_RATIO", setFloat(func(c *Config) *float64 { return &c.Telemetry.Tracing.SampleRatio })},
	{"TELEMETRY_TRACING_SERVICE_NAME", setString(func(c *Config) *string { return &c.Telemetry.Tracing.ServiceName })},
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Unlike file values, a malformed override is an error
// rather than being silently ignored.
func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []FieldError
	for _, o := range envOverrides {
		val, ok := lookup(EnvPrefix + o.name)
		if !ok || val == "" {
			continue
		}
		if err := o.apply(cfg, val); err != nil {
			errs = append(errs, FieldError{
				Field:   EnvPrefix + o.name,
				Message: err.Error(),
			})
		}
	}
	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func setString(field func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		*field(cfg) = val
		return nil
	}
}

func setList(field func(*Config) *[]string) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		var items []string
		for _, item := range strings.Split(val, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		*field(cfg) = items
		return nil
	}
}

func setBool(field func(*Config) *bool) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", val)
		}
		*field(cfg) = b
		return nil
	}
}

func setInt(field func(*Config) *int) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid integer %q", val)
		}
		*field(cfg) = i
		return nil
	}
}

func setFloat(field func(*Config) *float64) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q", val)
		}
		*field(cfg) = f
		return nil
	}
}

func setDuration(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid duration %q", val)
		}
		*field(cfg) = d
		return nil
	}
}
