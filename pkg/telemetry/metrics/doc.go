// Package metrics provides Prometheus metrics for the rule engine.
//
// # Metrics
//
// With the default namespace "rules" and subsystem "engine":
//
//   - rules_engine_evaluations_total{rule,result}
//   - rules_engine_evaluation_duration_seconds{rule}
//   - rules_engine_evaluation_errors_total{rule,kind}
//   - rules_engine_parse_errors_total{kind}
//   - rules_engine_decode_errors_total{kind}
//   - rules_engine_store_operations_total{backend,operation,status}
//   - rules_engine_store_operation_duration_seconds{backend,operation}
//   - rules_engine_registry_hits_total, rules_engine_registry_misses_total
//   - rules_engine_registry_rules
//   - rules_engine_registry_reloads_total{status}
//   - rules_engine_registry_reload_failures_total
//
// # Cardinality
//
// Rule names are user data, so the collector admits at most MaxRuleLabels
// distinct rule label values. Later rules are reported as "other".
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordEvaluation("senior-sales", "true", 3*time.Microsecond)
//
//	families, _ := collector.Registry().Gather()
package metrics
