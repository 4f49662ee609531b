package metrics

import (
	"time"

	"mercator-hq/ruleengine/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RuleMetrics tracks parsing, decoding and evaluation of rules.
//
// Metrics:
//   - rules_engine_evaluations_total: Evaluations by rule and result
//   - rules_engine_evaluation_duration_seconds: Evaluation duration by rule
//   - rules_engine_evaluation_errors_total: Failed evaluations by rule and kind
//   - rules_engine_parse_errors_total: Rule texts rejected by the parser, by kind
//   - rules_engine_decode_errors_total: Encodings rejected by the decoder, by kind
type RuleMetrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	evaluationErrors   *prometheus.CounterVec
	parseErrors        *prometheus.CounterVec
	decodeErrors       *prometheus.CounterVec
}

// NewRuleMetrics creates and registers rule metrics with the provided registry.
func NewRuleMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RuleMetrics {
	rm := &RuleMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluations_total",
				Help:      "Total number of rule evaluations",
			},
			[]string{"rule", "result"},
		),

		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of rule evaluation in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"rule"},
		),

		evaluationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluation_errors_total",
				Help:      "Total number of failed rule evaluations",
			},
			[]string{"rule", "kind"},
		),

		parseErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "parse_errors_total",
				Help:      "Total number of rule texts rejected by the parser",
			},
			[]string{"kind"},
		),

		decodeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "decode_errors_total",
				Help:      "Total number of rule encodings rejected by the decoder",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		rm.evaluationsTotal,
		rm.evaluationDuration,
		rm.evaluationErrors,
		rm.parseErrors,
		rm.decodeErrors,
	)

	return rm
}

// RecordEvaluation records an evaluation result and its duration.
func (rm *RuleMetrics) RecordEvaluation(rule, result string, duration time.Duration) {
	rm.evaluationsTotal.WithLabelValues(rule, result).Inc()
	rm.evaluationDuration.WithLabelValues(rule).Observe(duration.Seconds())
}

// RecordEvaluationError records a failed evaluation.
func (rm *RuleMetrics) RecordEvaluationError(rule, kind string) {
	rm.evaluationErrors.WithLabelValues(rule, kind).Inc()
}

// RecordParseError records a parse failure.
func (rm *RuleMetrics) RecordParseError(kind string) {
	rm.parseErrors.WithLabelValues(kind).Inc()
}

// RecordDecodeError records a decode failure.
func (rm *RuleMetrics) RecordDecodeError(kind string) {
	rm.decodeErrors.WithLabelValues(kind).Inc()
}
