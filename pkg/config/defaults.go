package config

import "time"

// Default values for configuration fields.
const (
	// Store defaults
	DefaultStoreBackend      = "file"
	DefaultFileStoreDir      = "data/rules"
	DefaultSQLiteDriver      = "sqlite"
	DefaultSQLitePath        = "data/rules.db"
	DefaultSQLiteMaxOpen     = 10
	DefaultSQLiteMaxIdle     = 5
	DefaultSQLiteWALMode     = true
	DefaultSQLiteBusyTimeout = 5 * time.Second
	DefaultSQLiteCompression = "none"

	// Engine defaults
	DefaultMaxRuleLength = 64 * 1024
	DefaultMaxDepth      = 128

	// Registry defaults
	DefaultRegistryEnabled  = true
	DefaultDebounceInterval = 100 * time.Millisecond

	// Telemetry defaults
	DefaultLoggingLevel        = "info"
	DefaultLoggingFormat       = "text"
	DefaultMetricsEnabled      = true
	DefaultMetricsNamespace    = "rules"
	DefaultMetricsSubsystem    = "engine"
	DefaultMaxRuleLabels       = 1000
	DefaultTracingSampler      = "ratio"
	DefaultTracingSamplingRate = 0.1
	DefaultTracingEndpoint     = "localhost:4317"
	DefaultTracingServiceName  = "rulectl"
	DefaultTracingInsecure     = true
	DefaultTracingTimeout      = 10 * time.Second
)

// DefaultDurationBuckets are the evaluation duration histogram buckets in
// seconds. Evaluations are in-memory, so the buckets start at 10µs.
var DefaultDurationBuckets = []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05}

// NewDefault returns a configuration with every default applied.
//
// Boolean settings that default to true cannot be told apart from an
// explicit false once a file is parsed, so LoadConfig decodes the file on
// top of NewDefault instead of relying on ApplyDefaults for them.
func NewDefault() *Config {
	cfg := &Config{
		Store: StoreConfig{
			SQLite: SQLiteConfig{WALMode: DefaultSQLiteWALMode},
		},
		Registry: RegistryConfig{Enabled: DefaultRegistryEnabled},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
			Tracing: TracingConfig{Insecure: DefaultTracingInsecure},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in zero-valued fields with their default values.
// Existing values are preserved. Boolean fields are left alone; see
// NewDefault.
func ApplyDefaults(cfg *Config) {
	// Store defaults
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = DefaultStoreBackend
	}
	if cfg.Store.File.Dir == "" {
		cfg.Store.File.Dir = DefaultFileStoreDir
	}
	if cfg.Store.SQLite.Driver == "" {
		cfg.Store.SQLite.Driver = DefaultSQLiteDriver
	}
	if cfg.Store.SQLite.Path == "" {
		cfg.Store.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Store.SQLite.MaxOpenConns == 0 {
		cfg.Store.SQLite.MaxOpenConns = DefaultSQLiteMaxOpen
	}
	if cfg.Store.SQLite.MaxIdleConns == 0 {
		cfg.Store.SQLite.MaxIdleConns = DefaultSQLiteMaxIdle
	}
	if cfg.Store.SQLite.BusyTimeout == 0 {
		cfg.Store.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Store.SQLite.Compression == "" {
		cfg.Store.SQLite.Compression = DefaultSQLiteCompression
	}

	// Engine defaults
	if cfg.Engine.MaxRuleLength == 0 {
		cfg.Engine.MaxRuleLength = DefaultMaxRuleLength
	}
	if cfg.Engine.MaxDepth == 0 {
		cfg.Engine.MaxDepth = DefaultMaxDepth
	}

	// Registry defaults
	if cfg.Registry.DebounceInterval == 0 {
		cfg.Registry.DebounceInterval = DefaultDebounceInterval
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if cfg.Telemetry.Metrics.MaxRuleLabels == 0 {
		cfg.Telemetry.Metrics.MaxRuleLabels = DefaultMaxRuleLabels
	}
	if len(cfg.Telemetry.Metrics.DurationBuckets) == 0 {
		cfg.Telemetry.Metrics.DurationBuckets = append([]float64(nil), DefaultDurationBuckets...)
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSamplingRate
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
}
