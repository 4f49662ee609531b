package engine

import (
	"context"
	"errors"
	"time"

	"mercator-hq/ruleengine/pkg/store"
	"mercator-hq/ruleengine/pkg/telemetry/metrics"
	"mercator-hq/ruleengine/pkg/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// instrumentedStore records a metric and a span for every store call.
type instrumentedStore struct {
	store.Store
	backend string
	metrics *metrics.Collector
	tracer  *tracing.Tracer
}

func instrument(st store.Store, collector *metrics.Collector, tracer *tracing.Tracer) store.Store {
	if is, ok := st.(*instrumentedStore); ok {
		return is
	}
	return &instrumentedStore{
		Store:   st,
		backend: backendName(st),
		metrics: collector,
		tracer:  tracer,
	}
}

// backendName labels a store for metrics.
func backendName(st store.Store) string {
	switch st.(type) {
	case *store.MemoryStore:
		return store.BackendMemory
	case *store.FileStore:
		return store.BackendFile
	case *store.SQLiteStore:
		return store.BackendSQLite
	}
	return "custom"
}

func (s *instrumentedStore) Save(ctx context.Context, name string, encoding []byte) error {
	ctx, span := s.start(ctx, "save", name)
	defer span.End()
	span.SetAttributes(attribute.Int(tracing.AttrEncodingLen, len(encoding)))

	start := time.Now()
	err := s.Store.Save(ctx, name, encoding)
	s.record(span, "save", start, err)
	return err
}

func (s *instrumentedStore) Load(ctx context.Context, name string) ([]byte, error) {
	ctx, span := s.start(ctx, "load", name)
	defer span.End()

	start := time.Now()
	enc, err := s.Store.Load(ctx, name)
	s.record(span, "load", start, err)
	return enc, err
}

func (s *instrumentedStore) Delete(ctx context.Context, name string) error {
	ctx, span := s.start(ctx, "delete", name)
	defer span.End()

	start := time.Now()
	err := s.Store.Delete(ctx, name)
	s.record(span, "delete", start, err)
	return err
}

func (s *instrumentedStore) List(ctx context.Context) ([]store.Record, error) {
	ctx, span := s.start(ctx, "list", "")
	defer span.End()

	start := time.Now()
	records, err := s.Store.List(ctx)
	s.record(span, "list", start, err)
	span.SetAttributes(attribute.Int(tracing.AttrRuleCount, len(records)))
	return records, err
}

func (s *instrumentedStore) start(ctx context.Context, operation, name string) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "store."+operation)
	span.SetAttributes(attribute.String(tracing.AttrStore, s.backend))
	if name != "" {
		span.SetAttributes(attribute.String(tracing.AttrRuleName, name))
	}
	return ctx, span
}

func (s *instrumentedStore) record(span trace.Span, operation string, start time.Time, err error) {
	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		status = string(store.KindNotFound)
	default:
		status = "error"
		tracing.SetError(span, err, errorKind(err))
	}
	s.metrics.RecordStoreOperation(s.backend, operation, status, time.Since(start))
}
