package logging

import (
	"errors"
	"log/slog"
	"strings"
	"testing"

	"mercator-hq/ruleengine/pkg/config"
)

func TestNewRedactor(t *testing.T) {
	r, err := NewRedactor(nil, []config.RedactPattern{
		{Name: "employee_id", Pattern: `EMP-\d{6}`, Replacement: "EMP-******"},
	})
	if err != nil {
		t.Fatalf("NewRedactor() error = %v", err)
	}
	if len(r.patterns) != len(defaultPatterns)+1 {
		t.Errorf("patterns = %d, want %d", len(r.patterns), len(defaultPatterns)+1)
	}

	if _, err := NewRedactor(nil, []config.RedactPattern{{Name: "bad", Pattern: "[unclosed"}}); err == nil {
		t.Error("NewRedactor() accepted an invalid pattern")
	}
}

func TestRedactor_RedactString(t *testing.T) {
	r, err := NewRedactor(nil, []config.RedactPattern{
		{Name: "employee_id", Pattern: `EMP-\d{6}`, Replacement: "EMP-******"},
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		input   string
		leak    string
		wantHas string
	}{
		{"api key", "using sk-abc123xyz", "abc123xyz", "sk-***"},
		{"email", "owner is jane.doe@example.com", "jane.doe", "***@***"},
		{"bearer", "Authorization: Bearer eyJhbGciOi.abc", "eyJhbGciOi", "Bearer ***"},
		{"password", "password=hunter2", "hunter2", "password: ***"},
		{"custom", "record EMP-123456 updated", "123456", "EMP-******"},
		{"clean", "age > 30 AND department == 'Sales'", "", "age > 30 AND department == 'Sales'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.RedactString(tt.input)
			if tt.leak != "" && strings.Contains(got, tt.leak) {
				t.Errorf("RedactString(%q) = %q, leaks %q", tt.input, got, tt.leak)
			}
			if !strings.Contains(got, tt.wantHas) {
				t.Errorf("RedactString(%q) = %q, want it to contain %q", tt.input, got, tt.wantHas)
			}
		})
	}
}

func TestRedactor_IsSensitiveKey(t *testing.T) {
	r, err := NewRedactor([]string{"salary", "SSN"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		key  string
		want bool
	}{
		{"salary", true},
		{"Salary", true},
		{"ssn", true},
		{"db_password", true},
		{"API_KEY", true},
		{"refresh_token", true},
		{"age", false},
		{"department", false},
		{"salary_band", false},
	}
	for _, tt := range tests {
		if got := r.IsSensitiveKey(tt.key); got != tt.want {
			t.Errorf("IsSensitiveKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestRedactor_RedactAttr(t *testing.T) {
	r, err := NewRedactor([]string{"salary"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if got := r.RedactAttr(slog.Int("salary", 90000)); got.Value.String() != Redacted {
		t.Errorf("salary = %v, want %q", got.Value, Redacted)
	}
	if got := r.RedactAttr(slog.Int("age", 35)); got.Value.Int64() != 35 {
		t.Errorf("age = %v, want 35", got.Value)
	}
	if got := r.RedactAttr(slog.Any("error", errors.New("load sk-secret123 failed"))); strings.Contains(got.Value.String(), "secret123") {
		t.Errorf("error attr leaks key: %v", got.Value)
	}
	if got := r.RedactAttr(slog.Bool("matched", true)); !got.Value.Bool() {
		t.Errorf("matched = %v, want true", got.Value)
	}
}
