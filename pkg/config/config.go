package config

import "time"

// Config is the root configuration structure for the rule engine.
type Config struct {
	// Store selects and configures the backend that persists rule encodings.
	Store StoreConfig `yaml:"store"`

	// Engine contains parsing limits and evaluation settings.
	Engine EngineConfig `yaml:"engine"`

	// Registry configures the decoded-rule cache and how it is refreshed.
	Registry RegistryConfig `yaml:"registry"`

	// Telemetry contains configuration for logging, metrics and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// StoreConfig contains configuration for rule persistence.
type StoreConfig struct {
	// Backend selects the store implementation.
	// Options: "memory", "file", "sqlite"
	// Default: "file"
	Backend string `yaml:"backend"`

	// File contains file backend configuration.
	File FileStoreConfig `yaml:"file"`

	// SQLite contains SQLite backend configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// FileStoreConfig contains configuration for the file backend.
type FileStoreConfig struct {
	// Dir is the directory holding one <name>.json file per rule.
	// Default: "data/rules"
	Dir string `yaml:"dir"`
}

// SQLiteConfig contains SQLite-specific configuration.
type SQLiteConfig struct {
	// Driver selects the database/sql driver.
	// Options: "sqlite" (pure Go), "sqlite3" (cgo)
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// Path is the database file path.
	// Default: "data/rules.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables Write-Ahead Logging for better concurrency.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long to wait for a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// Compression applied to stored encodings.
	// Options: "none", "zstd"
	// Default: "none"
	Compression string `yaml:"compression"`
}

// EngineConfig contains rule engine settings.
type EngineConfig struct {
	// MaxRuleLength is the longest rule text accepted, in bytes.
	// Default: 65536
	MaxRuleLength int `yaml:"max_rule_length"`

	// MaxDepth caps parenthesis and NOT nesting in rule text.
	// Default: 128
	MaxDepth int `yaml:"max_depth"`

	// Trace records every operand evaluated in evaluation results.
	// Default: false
	Trace bool `yaml:"trace"`
}

// RegistryConfig contains configuration for the decoded-rule cache.
type RegistryConfig struct {
	// Enabled caches decoded rules between evaluations.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Watch refreshes the cache when rule files change.
	// Only used with the file backend.
	// Default: false
	Watch bool `yaml:"watch"`

	// DebounceInterval is the quiet period after file changes before a
	// refresh.
	// Default: 100ms
	DebounceInterval time.Duration `yaml:"debounce_interval"`

	// RefreshSchedule is a cron expression for periodic refreshes.
	// Empty disables scheduled refreshes.
	// Example: "*/5 * * * *", "@every 30s"
	RefreshSchedule string `yaml:"refresh_schedule"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "text"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactFields lists attribute keys whose values are masked, such as
	// record fields that hold personal data.
	RedactFields []string `yaml:"redact_fields"`

	// RedactPatterns contains regular expressions masked in string values.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom redaction pattern.
type RedactPattern struct {
	// Name is a descriptive name for the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the string to replace matches with.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace is the metric name prefix.
	// Default: "rules"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "engine"
	Subsystem string `yaml:"subsystem"`

	// MaxRuleLabels caps distinct rule names used as label values; further
	// rules are reported as "other".
	// Default: 1000
	MaxRuleLabels int `yaml:"max_rule_labels"`

	// DurationBuckets defines histogram buckets for evaluation duration (seconds).
	// Default: [0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05]
	DurationBuckets []float64 `yaml:"duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "rulectl"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS for the OTLP connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}
