// Package telemetry groups the rule engine's observability packages.
//
//   - logging: slog construction with field and pattern redaction
//   - metrics: Prometheus counters and histograms for evaluations, parse and
//     decode failures, store operations and the rule registry
//   - tracing: OpenTelemetry spans exported over OTLP gRPC
//   - health: component health checks for rulectl doctor
//
// All of them are configured from config.TelemetryConfig. None opens a
// listening socket; metrics are gathered from a prometheus.Registry by the
// caller (rulectl bench prints them in text exposition format).
package telemetry
