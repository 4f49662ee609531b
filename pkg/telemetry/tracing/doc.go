// Package tracing provides OpenTelemetry tracing for the rule engine.
//
// When tracing is enabled, spans are exported over OTLP gRPC to the
// configured collector; otherwise a noop tracer is used and span calls cost
// next to nothing. Engine operations open one span each ("rule.define",
// "rule.evaluate", ...) with rule.* attributes.
//
// A parent trace can be handed to rulectl through the TRACEPARENT
// environment variable; see ContextFromEnvironment.
//
//	tracer, err := tracing.New(ctx, &cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(tracing.ContextFromEnvironment(ctx), "rule.evaluate")
//	defer span.End()
package tracing
