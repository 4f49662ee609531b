package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Context keys for common log fields.
type contextKey string

const (
	// RuleKey is the context key for the rule being processed.
	RuleKey contextKey = "rule"

	// OperationKey is the context key for the engine operation.
	OperationKey contextKey = "operation"
)

// WithRule adds a rule name to the context.
func WithRule(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, RuleKey, name)
}

// GetRule retrieves the rule name from the context.
func GetRule(ctx context.Context) string {
	if name, ok := ctx.Value(RuleKey).(string); ok {
		return name
	}
	return ""
}

// WithOperation adds an operation name to the context.
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, OperationKey, op)
}

// GetOperation retrieves the operation name from the context.
func GetOperation(ctx context.Context) string {
	if op, ok := ctx.Value(OperationKey).(string); ok {
		return op
	}
	return ""
}

// contextAttrs extracts log fields from the context, including the IDs of
// the active span.
func contextAttrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}

	var attrs []slog.Attr
	if op := GetOperation(ctx); op != "" {
		attrs = append(attrs, slog.String("operation", op))
	}
	if name := GetRule(ctx); name != "" {
		attrs = append(attrs, slog.String("rule", name))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return attrs
}
