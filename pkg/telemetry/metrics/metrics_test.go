package metrics

import (
	"strings"
	"testing"
	"time"

	"mercator-hq/ruleengine/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Helper function to create test config
func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:         true,
		Namespace:       "test",
		Subsystem:       "rules",
		MaxRuleLabels:   3,
		DurationBuckets: []float64{0.0001, 0.001, 0.01},
	}
}

func TestNewCollector_Defaults(t *testing.T) {
	cfg := &config.MetricsConfig{Enabled: true}
	registry := prometheus.NewRegistry()

	collector := NewCollector(cfg, registry)
	if collector.Registry() != registry {
		t.Error("Collector registry not set correctly")
	}
	if cfg.Namespace != config.DefaultMetricsNamespace || cfg.Subsystem != config.DefaultMetricsSubsystem {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.MaxRuleLabels != config.DefaultMaxRuleLabels {
		t.Errorf("MaxRuleLabels = %d, want %d", cfg.MaxRuleLabels, config.DefaultMaxRuleLabels)
	}
}

func TestCollector_RecordEvaluation(t *testing.T) {
	collector := NewCollector(testConfig(), nil)

	collector.RecordEvaluation("senior", "true", 5*time.Microsecond)
	collector.RecordEvaluation("senior", "true", 5*time.Microsecond)
	collector.RecordEvaluation("senior", "false", 5*time.Microsecond)
	collector.RecordEvaluation("", "true", time.Microsecond)

	evals := collector.ruleMetrics.evaluationsTotal
	if got := testutil.ToFloat64(evals.WithLabelValues("senior", "true")); got != 2 {
		t.Errorf("senior/true = %v, want 2", got)
	}
	if got := testutil.ToFloat64(evals.WithLabelValues("senior", "false")); got != 1 {
		t.Errorf("senior/false = %v, want 1", got)
	}
	if got := testutil.ToFloat64(evals.WithLabelValues("adhoc", "true")); got != 1 {
		t.Errorf("adhoc/true = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(collector.ruleMetrics.evaluationDuration); got != 2 {
		t.Errorf("duration series = %d, want 2", got)
	}
}

func TestCollector_RuleLabelLimit(t *testing.T) {
	collector := NewCollector(testConfig(), nil)

	for _, rule := range []string{"a", "b", "c", "d", "e", "a"} {
		collector.RecordEvaluation(rule, "true", time.Microsecond)
	}

	evals := collector.ruleMetrics.evaluationsTotal
	if got := testutil.ToFloat64(evals.WithLabelValues("a", "true")); got != 2 {
		t.Errorf("a = %v, want 2", got)
	}
	if got := testutil.ToFloat64(evals.WithLabelValues(OtherRule, "true")); got != 2 {
		t.Errorf("other = %v, want 2", got)
	}
	if got := collector.ruleLabels.Count(); got != 3 {
		t.Errorf("label count = %d, want 3", got)
	}
}

func TestCollector_Errors(t *testing.T) {
	collector := NewCollector(testConfig(), nil)

	collector.RecordParseError("unknown_token")
	collector.RecordParseError("unknown_token")
	collector.RecordDecodeError("arity_mismatch")
	collector.RecordEvaluationError("senior", "missing_field")

	rm := collector.ruleMetrics
	if got := testutil.ToFloat64(rm.parseErrors.WithLabelValues("unknown_token")); got != 2 {
		t.Errorf("parse errors = %v, want 2", got)
	}
	if got := testutil.ToFloat64(rm.decodeErrors.WithLabelValues("arity_mismatch")); got != 1 {
		t.Errorf("decode errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rm.evaluationErrors.WithLabelValues("senior", "missing_field")); got != 1 {
		t.Errorf("evaluation errors = %v, want 1", got)
	}
}

func TestCollector_StoreAndRegistry(t *testing.T) {
	collector := NewCollector(testConfig(), nil)

	collector.RecordStoreOperation("sqlite", "load", "ok", time.Millisecond)
	collector.RecordStoreOperation("sqlite", "load", "not_found", time.Millisecond)
	collector.RecordCacheHit()
	collector.RecordCacheHit()
	collector.RecordCacheMiss()
	collector.RecordReload("ok", 7, 1)
	collector.RecordReload("error", 0, 0)

	sm := collector.storeMetrics
	if got := testutil.ToFloat64(sm.operationsTotal.WithLabelValues("sqlite", "load", "ok")); got != 1 {
		t.Errorf("store ok = %v, want 1", got)
	}

	rm := collector.registryMetrics
	if got := testutil.ToFloat64(rm.hitsTotal); got != 2 {
		t.Errorf("hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(rm.missesTotal); got != 1 {
		t.Errorf("misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rm.rules); got != 7 {
		t.Errorf("rules gauge = %v, want 7 (error reload must not reset it)", got)
	}
	if got := testutil.ToFloat64(rm.reloadFailures); got != 1 {
		t.Errorf("reload failures = %v, want 1", got)
	}

	collector.UpdateRegistrySize(3)
	if got := testutil.ToFloat64(rm.rules); got != 3 {
		t.Errorf("rules gauge = %v, want 3", got)
	}
}

func TestCollector_Exposition(t *testing.T) {
	collector := NewCollector(testConfig(), nil)
	collector.RecordParseError("unmatched_paren")

	expected := `
# HELP test_rules_parse_errors_total Total number of rule texts rejected by the parser
# TYPE test_rules_parse_errors_total counter
test_rules_parse_errors_total{kind="unmatched_paren"} 1
`
	if err := testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected), "test_rules_parse_errors_total"); err != nil {
		t.Error(err)
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	collector := NewCollector(cfg, nil)

	collector.RecordEvaluation("a", "true", time.Microsecond)
	collector.RecordStoreOperation("memory", "save", "ok", time.Microsecond)

	if got := testutil.CollectAndCount(collector.ruleMetrics.evaluationsTotal); got != 0 {
		t.Errorf("disabled collector recorded %d series", got)
	}
}

func TestCollector_Nil(t *testing.T) {
	var collector *Collector

	// None of these may panic
	collector.RecordEvaluation("a", "true", time.Microsecond)
	collector.RecordParseError("x")
	collector.RecordStoreOperation("memory", "save", "ok", time.Microsecond)
	collector.RecordCacheHit()
	collector.RecordReload("ok", 1, 0)
	if collector.Registry() != nil {
		t.Error("nil collector returned a registry")
	}
}

func TestCardinalityLimiter(t *testing.T) {
	cl := NewCardinalityLimiter(2)

	if !cl.Allow("a") || !cl.Allow("b") {
		t.Fatal("limiter rejected values under the limit")
	}
	if cl.Allow("c") {
		t.Error("limiter allowed a value over the limit")
	}
	if !cl.Allow("a") {
		t.Error("limiter rejected a known value")
	}
	if cl.Count() != 2 {
		t.Errorf("Count() = %d, want 2", cl.Count())
	}
}
