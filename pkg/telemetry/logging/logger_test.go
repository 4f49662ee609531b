package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"mercator-hq/ruleengine/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"json debug", Config{Level: "debug", Format: "json"}, false},
		{"text warn", Config{Level: "WARN", Format: "text"}, false},
		{"bad level", Config{Level: "verbose"}, true},
		{"bad format", Config{Format: "xml"}, true},
		{"bad pattern", Config{RedactPatterns: []config.RedactPattern{{Name: "x", Pattern: "("}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Writer = &bytes.Buffer{}
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && logger == nil {
				t.Fatal("New() returned nil logger")
			}
		})
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("dropped")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("info message logged at warn level: %s", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("warn message missing: %s", out)
	}
}

func TestLogger_RedactsFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{
		Format:       "json",
		RedactFields: []string{"Salary"},
		Writer:       &buf,
	})
	if err != nil {
		t.Fatal(err)
	}

	logger.With("password", "hunter2").Info("rule evaluated",
		"salary", 90000,
		"department", "Sales",
		"note", "contact bob@example.com",
		slog.Group("record", slog.Int("salary", 1), slog.Int("age", 35)),
	)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON log line %q: %v", buf.String(), err)
	}

	if entry["salary"] != Redacted {
		t.Errorf("salary = %v, want %q", entry["salary"], Redacted)
	}
	if entry["password"] != Redacted {
		t.Errorf("password = %v, want %q", entry["password"], Redacted)
	}
	if entry["department"] != "Sales" {
		t.Errorf("department = %v, want Sales", entry["department"])
	}
	if strings.Contains(entry["note"].(string), "bob@example.com") {
		t.Errorf("email not redacted: %v", entry["note"])
	}
	record, ok := entry["record"].(map[string]any)
	if !ok {
		t.Fatalf("record group missing: %v", entry)
	}
	if record["salary"] != Redacted || record["age"] != float64(35) {
		t.Errorf("record group = %v", record)
	}
}

func TestLogger_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	ctx := WithOperation(WithRule(context.Background(), "senior-sales"), "evaluate")
	logger.InfoContext(ctx, "done")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["rule"] != "senior-sales" || entry["operation"] != "evaluate" {
		t.Errorf("context fields missing: %v", entry)
	}
	if _, ok := entry["trace_id"]; ok {
		t.Error("trace_id logged without an active span")
	}
}

func TestFromConfig(t *testing.T) {
	var buf bytes.Buffer
	cfg := FromConfig(config.LoggingConfig{
		Level:        "debug",
		Format:       "text",
		RedactFields: []string{"ssn"},
	}, &buf)

	logger, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("record", "ssn", "123-45-6789")

	out := buf.String()
	if !strings.Contains(out, "ssn=***") {
		t.Errorf("ssn not redacted in text output: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, err %v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("Discard logger is enabled")
	}
}
