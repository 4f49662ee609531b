package metrics

import (
	"mercator-hq/ruleengine/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RegistryMetrics tracks the decoded-rule cache.
//
// Metrics:
//   - rules_engine_registry_hits_total: Evaluations served from the cache
//   - rules_engine_registry_misses_total: Evaluations that loaded their rule
//   - rules_engine_registry_rules: Current number of cached rules
//   - rules_engine_registry_reloads_total: Refreshes by status
//   - rules_engine_registry_reload_failures_total: Rules skipped during refreshes
type RegistryMetrics struct {
	hitsTotal      prometheus.Counter
	missesTotal    prometheus.Counter
	rules          prometheus.Gauge
	reloadsTotal   *prometheus.CounterVec
	reloadFailures prometheus.Counter
}

// NewRegistryMetrics creates and registers registry metrics with the provided registry.
func NewRegistryMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RegistryMetrics {
	rm := &RegistryMetrics{
		hitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "registry_hits_total",
				Help:      "Total number of evaluations served from the rule cache",
			},
		),

		missesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "registry_misses_total",
				Help:      "Total number of evaluations that loaded their rule from the store",
			},
		),

		rules: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "registry_rules",
				Help:      "Current number of cached rules",
			},
		),

		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "registry_reloads_total",
				Help:      "Total number of rule cache refreshes",
			},
			[]string{"status"},
		),

		reloadFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "registry_reload_failures_total",
				Help:      "Total number of rules skipped during refreshes",
			},
		),
	}

	registry.MustRegister(
		rm.hitsTotal,
		rm.missesTotal,
		rm.rules,
		rm.reloadsTotal,
		rm.reloadFailures,
	)

	return rm
}

// RecordHit records a cache hit.
func (rm *RegistryMetrics) RecordHit() {
	rm.hitsTotal.Inc()
}

// RecordMiss records a cache miss.
func (rm *RegistryMetrics) RecordMiss() {
	rm.missesTotal.Inc()
}

// UpdateSize sets the number of cached rules.
func (rm *RegistryMetrics) UpdateSize(size int) {
	rm.rules.Set(float64(size))
}

// RecordReload records a refresh.
func (rm *RegistryMetrics) RecordReload(status string, rules, failed int) {
	rm.reloadsTotal.WithLabelValues(status).Inc()
	if status == "ok" {
		rm.rules.Set(float64(rules))
	}
	rm.reloadFailures.Add(float64(failed))
}
