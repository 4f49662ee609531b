package metrics

import (
	"sync"
	"time"

	"mercator-hq/ruleengine/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// OtherRule replaces rule names once the rule label limit is reached.
const OtherRule = "other"

// Collector is the entry point for all rule engine metrics. It owns the
// Prometheus registry and applies the rule label cardinality limit.
//
// A nil *Collector is valid and records nothing.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	ruleMetrics     *RuleMetrics
	storeMetrics    *StoreMetrics
	registryMetrics *RegistryMetrics

	ruleLabels *CardinalityLimiter
}

// NewCollector creates a metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a new registry is created.
//
// Example:
//
//	cfg := &config.MetricsConfig{
//		Enabled:   true,
//		Namespace: "rules",
//		Subsystem: "engine",
//	}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = append([]float64(nil), config.DefaultDurationBuckets...)
	}
	if cfg.MaxRuleLabels == 0 {
		cfg.MaxRuleLabels = config.DefaultMaxRuleLabels
	}

	return &Collector{
		config:          cfg,
		registry:        registry,
		ruleMetrics:     NewRuleMetrics(cfg, registry),
		storeMetrics:    NewStoreMetrics(cfg, registry),
		registryMetrics: NewRegistryMetrics(cfg, registry),
		ruleLabels:      NewCardinalityLimiter(cfg.MaxRuleLabels),
	}
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// ruleLabel returns name, or OtherRule once the limit is reached.
func (c *Collector) ruleLabel(name string) string {
	if name == "" {
		return "adhoc"
	}
	if !c.ruleLabels.Allow(name) {
		return OtherRule
	}
	return name
}

// RecordEvaluation records a completed evaluation.
//
// Parameters:
//   - rule: Rule name ("" for ad hoc rule text)
//   - result: "true", "false" or "error"
//   - duration: Evaluation duration
func (c *Collector) RecordEvaluation(rule, result string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.ruleMetrics.RecordEvaluation(c.ruleLabel(rule), result, duration)
}

// RecordEvaluationError records an evaluation that failed.
//
// Parameters:
//   - rule: Rule name
//   - kind: "missing_field" or "type_mismatch"
func (c *Collector) RecordEvaluationError(rule, kind string) {
	if !c.enabled() {
		return
	}
	c.ruleMetrics.RecordEvaluationError(c.ruleLabel(rule), kind)
}

// RecordParseError records a rule text that failed to parse.
func (c *Collector) RecordParseError(kind string) {
	if !c.enabled() {
		return
	}
	c.ruleMetrics.RecordParseError(kind)
}

// RecordDecodeError records an encoding that failed to decode.
func (c *Collector) RecordDecodeError(kind string) {
	if !c.enabled() {
		return
	}
	c.ruleMetrics.RecordDecodeError(kind)
}

// RecordStoreOperation records a store call.
//
// Parameters:
//   - backend: "memory", "file" or "sqlite"
//   - operation: "save", "load", "delete" or "list"
//   - status: "ok", "not_found" or "error"
//   - duration: Call duration
func (c *Collector) RecordStoreOperation(backend, operation, status string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.storeMetrics.RecordOperation(backend, operation, status, duration)
}

// RecordCacheHit records an evaluation served from the registry.
func (c *Collector) RecordCacheHit() {
	if !c.enabled() {
		return
	}
	c.registryMetrics.RecordHit()
}

// RecordCacheMiss records an evaluation that had to load its rule.
func (c *Collector) RecordCacheMiss() {
	if !c.enabled() {
		return
	}
	c.registryMetrics.RecordMiss()
}

// RecordReload records a registry refresh.
//
// Parameters:
//   - status: "ok" or "error"
//   - rules: Rules cached after the refresh
//   - failed: Rules skipped because they could not be loaded
func (c *Collector) RecordReload(status string, rules, failed int) {
	if !c.enabled() {
		return
	}
	c.registryMetrics.RecordReload(status, rules, failed)
}

// UpdateRegistrySize sets the number of cached rules.
func (c *Collector) UpdateRegistrySize(size int) {
	if !c.enabled() {
		return
	}
	c.registryMetrics.UpdateSize(size)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of distinct label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label value is allowed. Returns true if the value was
// seen before or the limit has not been reached yet.
func (cl *CardinalityLimiter) Allow(label string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[label]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[label]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[label] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
