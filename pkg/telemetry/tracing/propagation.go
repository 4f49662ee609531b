package tracing

import (
	"context"
	"os"
	"strings"

	"go.opentelemetry.io/otel/propagation"
)

// Propagator returns the W3C Trace Context and Baggage propagator.
func Propagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

// EnvCarrier reads trace context from environment variables, the way
// batch jobs and CI steps hand a parent trace to a command they run:
// traceparent is read from TRACEPARENT and so on.
type EnvCarrier struct {
	lookup func(string) (string, bool)
}

// NewEnvCarrier returns a carrier over the process environment.
func NewEnvCarrier() EnvCarrier {
	return EnvCarrier{lookup: os.LookupEnv}
}

// Get implements propagation.TextMapCarrier.
func (c EnvCarrier) Get(key string) string {
	v, _ := c.lookup(strings.ToUpper(key))
	return v
}

// Set implements propagation.TextMapCarrier. The environment is read-only.
func (c EnvCarrier) Set(string, string) {}

// Keys implements propagation.TextMapCarrier.
func (c EnvCarrier) Keys() []string {
	return []string{"traceparent", "tracestate", "baggage"}
}

// ContextFromEnvironment returns ctx carrying the parent span described by
// TRACEPARENT, if set.
func ContextFromEnvironment(ctx context.Context) context.Context {
	return Propagator().Extract(ctx, NewEnvCarrier())
}

// InjectToMap writes the trace context of ctx into carrier.
func InjectToMap(ctx context.Context, carrier map[string]string) {
	Propagator().Inject(ctx, propagation.MapCarrier(carrier))
}
