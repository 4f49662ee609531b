package metrics

import (
	"time"

	"mercator-hq/ruleengine/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics tracks calls to the rule store.
//
// Metrics:
//   - rules_engine_store_operations_total: Calls by backend, operation and status
//   - rules_engine_store_operation_duration_seconds: Call duration by backend and operation
type StoreMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

// NewStoreMetrics creates and registers store metrics with the provided registry.
func NewStoreMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *StoreMetrics {
	sm := &StoreMetrics{
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "store_operations_total",
				Help:      "Total number of rule store operations",
			},
			[]string{"backend", "operation", "status"},
		),

		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "store_operation_duration_seconds",
				Help:      "Duration of rule store operations in seconds",
				// Store calls touch disk: 100µs to ~3s
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"backend", "operation"},
		),
	}

	registry.MustRegister(
		sm.operationsTotal,
		sm.operationDuration,
	)

	return sm
}

// RecordOperation records a store call.
func (sm *StoreMetrics) RecordOperation(backend, operation, status string, duration time.Duration) {
	sm.operationsTotal.WithLabelValues(backend, operation, status).Inc()
	sm.operationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}
