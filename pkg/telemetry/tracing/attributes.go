package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for rule engine spans.
const (
	AttrRuleName    = "rule.name"
	AttrRuleNodes   = "rule.nodes"
	AttrRuleDepth   = "rule.depth"
	AttrRuleResult  = "rule.result"
	AttrRuleCached  = "rule.cached"
	AttrRuleCount   = "rule.count"
	AttrStore       = "store.backend"
	AttrEncodingLen = "rule.encoding.size"
	AttrErrorKind   = "error.kind"
)

// SetRuleAttributes records which rule a span works on and its shape.
func SetRuleAttributes(span trace.Span, name string, nodes, depth int) {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrRuleNodes, nodes),
		attribute.Int(AttrRuleDepth, depth),
	}
	if name != "" {
		attrs = append(attrs, attribute.String(AttrRuleName, name))
	}
	span.SetAttributes(attrs...)
}

// SetResult records an evaluation result.
func SetResult(span trace.Span, matched, cached bool) {
	span.SetAttributes(
		attribute.Bool(AttrRuleResult, matched),
		attribute.Bool(AttrRuleCached, cached),
	)
}

// SetError marks the span as failed and records the error with its kind.
func SetError(span trace.Span, err error, kind string) {
	if err == nil {
		return
	}
	if kind != "" {
		span.SetAttributes(attribute.String(AttrErrorKind, kind))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetStatus sets the span status based on an error.
func SetStatus(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
}
