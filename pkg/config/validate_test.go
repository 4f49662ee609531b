package config

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		modify     func(*Config)
		wantFields []string
	}{
		{
			name:   "defaults are valid",
			modify: func(*Config) {},
		},
		{
			name:       "unknown backend",
			modify:     func(c *Config) { c.Store.Backend = "redis" },
			wantFields: []string{"store.backend"},
		},
		{
			name:       "empty backend",
			modify:     func(c *Config) { c.Store.Backend = "" },
			wantFields: []string{"store.backend"},
		},
		{
			name: "file backend without dir",
			modify: func(c *Config) {
				c.Store.File.Dir = ""
			},
			wantFields: []string{"store.file.dir"},
		},
		{
			name: "sqlite problems",
			modify: func(c *Config) {
				c.Store.Backend = "sqlite"
				c.Store.SQLite.Path = ""
				c.Store.SQLite.Driver = "postgres"
				c.Store.SQLite.Compression = "gzip"
				c.Store.SQLite.BusyTimeout = -1
			},
			wantFields: []string{
				"store.sqlite.path",
				"store.sqlite.driver",
				"store.sqlite.compression",
				"store.sqlite.busy_timeout",
			},
		},
		{
			name: "sqlite settings ignored for other backends",
			modify: func(c *Config) {
				c.Store.SQLite.Driver = "postgres"
			},
		},
		{
			name: "engine limits",
			modify: func(c *Config) {
				c.Engine.MaxRuleLength = 0
				c.Engine.MaxDepth = -1
			},
			wantFields: []string{"engine.max_rule_length", "engine.max_depth"},
		},
		{
			name: "watch requires file backend",
			modify: func(c *Config) {
				c.Store.Backend = "memory"
				c.Registry.Watch = true
			},
			wantFields: []string{"registry.watch"},
		},
		{
			name: "refresh requires registry",
			modify: func(c *Config) {
				c.Registry.Enabled = false
				c.Registry.RefreshSchedule = "@hourly"
			},
			wantFields: []string{"registry.enabled"},
		},
		{
			name:       "invalid cron schedule",
			modify:     func(c *Config) { c.Registry.RefreshSchedule = "every five minutes" },
			wantFields: []string{"registry.refresh_schedule"},
		},
		{
			name: "logging",
			modify: func(c *Config) {
				c.Telemetry.Logging.Level = "trace"
				c.Telemetry.Logging.Format = "xml"
				c.Telemetry.Logging.RedactPatterns = []RedactPattern{{Name: "bad", Pattern: "("}}
			},
			wantFields: []string{
				"telemetry.logging.level",
				"telemetry.logging.format",
				"telemetry.logging.redact_patterns[0].pattern",
			},
		},
		{
			name: "metrics buckets out of order",
			modify: func(c *Config) {
				c.Telemetry.Metrics.DurationBuckets = []float64{0.1, 0.01}
			},
			wantFields: []string{"telemetry.metrics.duration_buckets"},
		},
		{
			name: "tracing",
			modify: func(c *Config) {
				c.Telemetry.Tracing.Enabled = true
				c.Telemetry.Tracing.Endpoint = ""
				c.Telemetry.Tracing.Sampler = "sometimes"
				c.Telemetry.Tracing.SampleRatio = 1.5
			},
			wantFields: []string{
				"telemetry.tracing.sampler",
				"telemetry.tracing.endpoint",
				"telemetry.tracing.sample_ratio",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefault()
			tt.modify(cfg)

			err := Validate(cfg)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}

			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want ValidationError", err)
			}
			if len(verr.Errors) != len(tt.wantFields) {
				t.Fatalf("got %d errors, want %d: %v", len(verr.Errors), len(tt.wantFields), verr)
			}
			for i, want := range tt.wantFields {
				if verr.Errors[i].Field != want {
					t.Errorf("error %d field = %q, want %q", i, verr.Errors[i].Field, want)
				}
			}
		})
	}
}

func TestValidationError_Format(t *testing.T) {
	single := ValidationError{Errors: []FieldError{{Field: "store.backend", Message: "backend is required"}}}
	if got := single.Error(); got != "configuration validation failed: store.backend: backend is required" {
		t.Errorf("single error = %q", got)
	}

	multi := ValidationError{Errors: []FieldError{
		{Field: "a", Message: "x"},
		{Field: "b", Message: "y"},
	}}
	got := multi.Error()
	if !strings.HasPrefix(got, "configuration validation failed with 2 errors:") {
		t.Errorf("multi error = %q", got)
	}
	if !strings.Contains(got, "  - a: x\n") || !strings.Contains(got, "  - b: y\n") {
		t.Errorf("multi error missing entries: %q", got)
	}
}
