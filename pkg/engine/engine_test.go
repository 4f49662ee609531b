package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"mercator-hq/ruleengine/pkg/config"
	"mercator-hq/ruleengine/pkg/rule/ast"
	"mercator-hq/ruleengine/pkg/rule/codec"
	"mercator-hq/ruleengine/pkg/rule/compose"
	ruleErrors "mercator-hq/ruleengine/pkg/rule/errors"
	"mercator-hq/ruleengine/pkg/rule/eval"
	"mercator-hq/ruleengine/pkg/store"
	"mercator-hq/ruleengine/pkg/telemetry/health"
	"mercator-hq/ruleengine/pkg/telemetry/logging"
	"mercator-hq/ruleengine/pkg/telemetry/metrics"
	"mercator-hq/ruleengine/pkg/telemetry/tracing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type testEngine struct {
	*Engine
	store    *store.MemoryStore
	registry *prometheus.Registry
}

func newTestEngine(t *testing.T, opts ...Option) *testEngine {
	t.Helper()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(&config.MetricsConfig{
		Enabled:   true,
		Namespace: "test",
		Subsystem: "rules",
	}, reg)

	st := store.NewMemoryStore()
	opts = append([]Option{WithLogger(logging.Discard()), WithMetrics(collector)}, opts...)
	e, err := New(nil, st, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &testEngine{Engine: e, store: st, registry: reg}
}

// metricValue sums the samples of a counter or gauge whose labels include
// all of want.
func metricValue(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if !hasLabels(m, want) {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			}
		}
	}
	return total
}

func hasLabels(m *dto.Metric, want map[string]string) bool {
	found := 0
	for _, lp := range m.GetLabel() {
		if v, ok := want[lp.GetName()]; ok && v == lp.GetValue() {
			found++
		}
	}
	return found == len(want)
}

func TestNew_NilStore(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Error("New(nil store) succeeded, want error")
	}
}

func TestEngine_DefineAndEvaluate(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.Define(ctx, "senior-sales", "age > 30 AND department == 'Sales'"); err != nil {
		t.Fatalf("Define() error = %v", err)
	}

	tests := []struct {
		name   string
		record map[string]any
		want   bool
	}{
		{"matches", map[string]any{"age": 35, "department": "Sales"}, true},
		{"too young", map[string]any{"age": 25, "department": "Sales"}, false},
		{"other department", map[string]any{"age": 40, "department": "HR"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Evaluate(ctx, "senior-sales", eval.MustContext(tt.record))
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if res.Matched != tt.want {
				t.Errorf("Matched = %v, want %v", res.Matched, tt.want)
			}
			if res.Rule != "senior-sales" || res.Cached {
				t.Errorf("Result = %+v", res)
			}
			if res.Trace != nil {
				t.Error("Trace set without Explain")
			}
		})
	}

	if got := metricValue(t, e.registry, "test_rules_evaluations_total", map[string]string{"rule": "senior-sales"}); got != 3 {
		t.Errorf("evaluations_total = %v, want 3", got)
	}
	if got := metricValue(t, e.registry, "test_rules_store_operations_total", map[string]string{"backend": "memory", "operation": "load", "status": "ok"}); got != 3 {
		t.Errorf("store loads = %v, want 3", got)
	}
}

func TestEngine_DefineStoresEncoding(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	rule, err := e.Define(ctx, "r1", "NOT active == true OR score >= 9.5")
	if err != nil {
		t.Fatalf("Define() error = %v", err)
	}

	enc, err := e.store.Load(ctx, "r1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	decoded, err := codec.Deserialize(enc)
	if err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	if !ast.Equal(rule, decoded) {
		t.Errorf("stored rule = %s, want %s", decoded, rule)
	}
}

func TestEngine_DefineErrors(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Define(ctx, "bad", "age >")
	var pe *ruleErrors.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("Define() error = %v, want *ParseError", err)
	}
	if pe.Kind != ruleErrors.KindMissingOperand {
		t.Errorf("Kind = %s, want %s", pe.Kind, ruleErrors.KindMissingOperand)
	}
	if got := metricValue(t, e.registry, "test_rules_parse_errors_total", map[string]string{"kind": string(pe.Kind)}); got != 1 {
		t.Errorf("parse_errors_total = %v, want 1", got)
	}

	if _, err := e.Define(ctx, "no spaces allowed", "a == 1"); !errors.Is(err, store.ErrInvalidName) {
		t.Errorf("Define(invalid name) error = %v, want ErrInvalidName", err)
	}

	if recs, _ := e.List(ctx); len(recs) != 0 {
		t.Errorf("failed definitions stored %d rules", len(recs))
	}
}

func TestEngine_EvaluateErrors(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.Define(ctx, "adult", "age >= 18"); err != nil {
		t.Fatal(err)
	}

	_, err := e.Evaluate(ctx, "missing", eval.MustContext(map[string]any{"age": 20}))
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Evaluate(unknown rule) error = %v, want ErrNotFound", err)
	}

	_, err = e.Evaluate(ctx, "adult", eval.MustContext(map[string]any{"name": "x"}))
	var mf *eval.MissingFieldError
	if !errors.As(err, &mf) || mf.Field != "age" {
		t.Errorf("Evaluate(no age) error = %v, want MissingField(age)", err)
	}

	_, err = e.Evaluate(ctx, "adult", eval.MustContext(map[string]any{"age": "old"}))
	if !errors.Is(err, eval.ErrTypeMismatch) {
		t.Errorf("Evaluate(string age) error = %v, want TypeMismatch", err)
	}

	if got := metricValue(t, e.registry, "test_rules_evaluation_errors_total", map[string]string{"rule": "adult"}); got != 2 {
		t.Errorf("evaluation_errors_total = %v, want 2", got)
	}
	if got := metricValue(t, e.registry, "test_rules_store_operations_total", map[string]string{"status": "not_found"}); got != 1 {
		t.Errorf("not_found store operations = %v, want 1", got)
	}
}

func TestEngine_EvaluateCorruptEncoding(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	bad := `{"kind":"operator","op":"AND","left":{"kind":"operand","field":"a","cmp":"==","literal":{"t":"int","v":1}}}`
	if err := e.store.Save(ctx, "broken", []byte(bad)); err != nil {
		t.Fatal(err)
	}

	_, err := e.Evaluate(ctx, "broken", eval.MustContext(map[string]any{"a": 1}))
	if !errors.Is(err, codec.ErrArityMismatch) {
		t.Fatalf("Evaluate() error = %v, want ArityMismatch", err)
	}
	if got := metricValue(t, e.registry, "test_rules_decode_errors_total", map[string]string{"kind": "arity_mismatch"}); got != 1 {
		t.Errorf("decode_errors_total = %v, want 1", got)
	}
}

func TestEngine_ShortCircuitSuppressesErrors(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.Define(ctx, "guarded", "active == false AND missing > 1"); err != nil {
		t.Fatal(err)
	}
	res, err := e.Evaluate(ctx, "guarded", eval.MustContext(map[string]any{"active": true}))
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if res.Matched {
		t.Error("Matched = true, want false")
	}
}

func TestEngine_EvaluateText(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.EvaluateText(context.Background(), "x < 3 OR y == 'z'", eval.MustContext(map[string]any{"x": 5, "y": "z"}))
	if err != nil {
		t.Fatalf("EvaluateText() error = %v", err)
	}
	if !res.Matched || res.Rule != "" {
		t.Errorf("Result = %+v", res)
	}
	if recs, _ := e.List(context.Background()); len(recs) != 0 {
		t.Error("EvaluateText stored a rule")
	}
	if got := metricValue(t, e.registry, "test_rules_evaluations_total", map[string]string{"rule": "adhoc"}); got != 1 {
		t.Errorf("adhoc evaluations = %v, want 1", got)
	}
}

func TestEngine_Explain(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.Define(ctx, "either", "a == 1 OR b == 2"); err != nil {
		t.Fatal(err)
	}
	res, err := e.Explain(ctx, "either", eval.MustContext(map[string]any{"a": 1}))
	if err != nil {
		t.Fatalf("Explain() error = %v", err)
	}
	if res.Trace == nil {
		t.Fatal("Trace = nil")
	}
	if len(res.Trace.Steps) != 1 || res.Trace.ShortCircuits != 1 {
		t.Errorf("Trace = %+v, want one step and one short circuit", res.Trace)
	}
}

func TestEngine_TraceConfig(t *testing.T) {
	st := store.NewMemoryStore()
	e, err := New(&config.EngineConfig{MaxRuleLength: 100, MaxDepth: 8, Trace: true}, st, WithLogger(logging.Discard()))
	if err != nil {
		t.Fatal(err)
	}

	res, err := e.EvaluateText(context.Background(), "a == 1", eval.MustContext(map[string]any{"a": 1}))
	if err != nil {
		t.Fatal(err)
	}
	if res.Trace == nil {
		t.Error("Trace = nil with engine.trace enabled")
	}

	long := "a == 1" + string(make([]byte, 100))
	if _, err := e.EvaluateText(context.Background(), long, nil); !errors.Is(err, &ruleErrors.ParseError{Kind: ruleErrors.KindTooLong}) {
		t.Errorf("EvaluateText(long) error = %v, want too_long", err)
	}
}

func TestEngine_Combine(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	for name, text := range map[string]string{
		"adult": "age >= 18",
		"sales": "department == 'Sales'",
		"rich":  "salary > 100000",
	} {
		if _, err := e.Define(ctx, name, text); err != nil {
			t.Fatal(err)
		}
	}

	combined, err := e.Combine(ctx, "target", "adult", "sales", "rich")
	if err != nil {
		t.Fatalf("Combine() error = %v", err)
	}
	if got, want := combined.String(), "age >= 18 AND department == 'Sales' AND salary > 100000"; got != want {
		t.Errorf("combined = %s, want %s", got, want)
	}
	if combined.Op() != ast.OpAnd || combined.Right().Field() != "salary" {
		t.Errorf("combined is not a left fold: %s", combined)
	}

	res, err := e.Evaluate(ctx, "target", eval.MustContext(map[string]any{
		"age": 40, "department": "Sales", "salary": 150000,
	}))
	if err != nil || !res.Matched {
		t.Errorf("Evaluate(target) = %+v, %v", res, err)
	}

	single, err := e.Combine(ctx, "copy", "adult")
	if err != nil {
		t.Fatal(err)
	}
	adult, _ := e.Get(ctx, "adult")
	if !ast.Equal(single, adult) {
		t.Errorf("single combine = %s, want %s", single, adult)
	}

	if _, err := e.Combine(ctx, "empty"); !errors.Is(err, compose.ErrEmpty) {
		t.Errorf("Combine() with no rules error = %v, want ErrEmpty", err)
	}
	if _, err := e.Combine(ctx, "broken", "adult", "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Combine(unknown) error = %v, want ErrNotFound", err)
	}
	if _, err := e.Get(ctx, "broken"); !errors.Is(err, store.ErrNotFound) {
		t.Error("failed Combine stored its target")
	}
}

func TestEngine_ListDelete(t *testing.T) {
	e := newTestEngine(t, WithRegistry())
	ctx := context.Background()

	for _, name := range []string{"b", "a"} {
		if _, err := e.Define(ctx, name, "x == 1"); err != nil {
			t.Fatal(err)
		}
	}
	recs, err := e.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[0].Name != "a" {
		t.Errorf("List() = %+v", recs)
	}

	if err := e.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := e.Evaluate(ctx, "a", eval.MustContext(map[string]any{"x": 1})); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Evaluate(deleted) error = %v, want ErrNotFound", err)
	}
	if err := e.Delete(ctx, "a"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestEngine_Registry(t *testing.T) {
	e := newTestEngine(t, WithRegistry())
	ctx := context.Background()
	record := eval.MustContext(map[string]any{"x": 1})

	if _, err := e.Define(ctx, "r", "x == 1"); err != nil {
		t.Fatal(err)
	}
	res, err := e.Evaluate(ctx, "r", record)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Cached {
		t.Error("rule defined through the engine not cached")
	}

	// A rule saved behind the engine's back is loaded once, then cached.
	enc, _ := codec.Serialize(ast.Condition("x", ast.CmpGreater, ast.IntValue(0)))
	if err := e.store.Save(ctx, "external", enc); err != nil {
		t.Fatal(err)
	}
	first, err := e.Evaluate(ctx, "external", record)
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Evaluate(ctx, "external", record)
	if err != nil {
		t.Fatal(err)
	}
	if first.Cached || !second.Cached {
		t.Errorf("Cached = %v then %v, want false then true", first.Cached, second.Cached)
	}

	if got := metricValue(t, e.registry, "test_rules_registry_hits_total", nil); got != 2 {
		t.Errorf("registry hits = %v, want 2", got)
	}
	if got := metricValue(t, e.registry, "test_rules_registry_misses_total", nil); got != 1 {
		t.Errorf("registry misses = %v, want 1", got)
	}
}

func TestEngine_Refresh(t *testing.T) {
	plain := newTestEngine(t)
	if _, err := plain.Refresh(context.Background()); !errors.Is(err, ErrNoRegistry) {
		t.Errorf("Refresh() without registry error = %v, want ErrNoRegistry", err)
	}

	e := newTestEngine(t, WithRegistry())
	ctx := context.Background()
	enc, _ := codec.Serialize(ast.Condition("x", ast.CmpEqual, ast.IntValue(1)))
	for _, name := range []string{"one", "two"} {
		if err := e.store.Save(ctx, name, enc); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.store.Save(ctx, "corrupt", []byte("{")); err != nil {
		t.Fatal(err)
	}

	stats, err := e.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if stats.Loaded != 2 || len(stats.Failed) != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if e.LastReload() != stats {
		t.Error("LastReload() does not return the last stats")
	}
	if got := metricValue(t, e.registry, "test_rules_registry_rules", nil); got != 2 {
		t.Errorf("registry_rules = %v, want 2", got)
	}

	checker := health.New(0)
	e.RegisterHealthChecks(checker)
	report := checker.Run(ctx)
	if report.Healthy() {
		t.Error("health report healthy with an undecodable rule")
	}
	for _, c := range report.Checks {
		if c.Name == "store" && c.Status != health.StatusOK {
			t.Errorf("store check = %+v", c)
		}
	}
}

func TestEngine_HealthStoreClosed(t *testing.T) {
	e := newTestEngine(t)
	checker := health.New(0)
	e.RegisterHealthChecks(checker)

	if report := checker.Run(context.Background()); !report.Healthy() {
		t.Fatalf("report = %+v, want healthy", report)
	}
	_ = e.store.Close()
	if report := checker.Run(context.Background()); report.Healthy() {
		t.Error("report healthy with a closed store")
	}
}

func TestEngine_Tracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tracer, err := tracing.NewWithExporter(&config.TracingConfig{
		Enabled:     true,
		Sampler:     tracing.SamplerAlways,
		ServiceName: "engine-test",
	}, "test", exporter)
	if err != nil {
		t.Fatal(err)
	}
	defer tracer.Shutdown(context.Background())

	e := newTestEngine(t, WithTracer(tracer))
	ctx := context.Background()
	if _, err := e.Define(ctx, "r", "x == 1"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Evaluate(ctx, "missing", nil); err == nil {
		t.Fatal("Evaluate(missing) succeeded")
	}
	if err := tracer.ForceFlush(ctx); err != nil {
		t.Fatal(err)
	}

	names := make(map[string]bool)
	for _, s := range exporter.GetSpans() {
		names[s.Name] = true
	}
	for _, want := range []string{"rule.define", "store.save", "rule.evaluate", "store.load"} {
		if !names[want] {
			t.Errorf("no %q span in %v", want, names)
		}
	}
}

func TestEngine_ConcurrentEvaluate(t *testing.T) {
	e := newTestEngine(t, WithRegistry())
	ctx := context.Background()
	if _, err := e.Define(ctx, "r", "n > 10 AND NOT (tag == 'skip')"); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			res, err := e.Evaluate(ctx, "r", eval.MustContext(map[string]any{"n": n, "tag": "keep"}))
			if err != nil {
				errs <- err
				return
			}
			if res.Matched != (n > 10) {
				errs <- errors.New("wrong result")
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

// gatedStore blocks the first Load of one rule until release is closed.
type gatedStore struct {
	*store.MemoryStore
	name    string
	once    sync.Once
	reached chan struct{}
	release chan struct{}
}

func (s *gatedStore) Load(ctx context.Context, name string) ([]byte, error) {
	if name == s.name {
		s.once.Do(func() {
			close(s.reached)
			<-s.release
		})
	}
	return s.MemoryStore.Load(ctx, name)
}

func TestEngine_DefineDuringRefresh(t *testing.T) {
	ctx := context.Background()
	st := &gatedStore{
		MemoryStore: store.NewMemoryStore(),
		name:        "slow",
		reached:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	e, err := New(nil, st, WithLogger(logging.Discard()), WithRegistry())
	if err != nil {
		t.Fatal(err)
	}

	for name, text := range map[string]string{"x": "a > 10", "gone": "a > 0"} {
		if _, err := e.Define(ctx, name, text); err != nil {
			t.Fatal(err)
		}
	}
	enc, _ := codec.Serialize(ast.Condition("b", ast.CmpEqual, ast.IntValue(1)))
	if err := st.Save(ctx, "slow", enc); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := e.Refresh(ctx)
		done <- err
	}()
	<-st.reached

	if _, err := e.Define(ctx, "x", "a < 10"); err != nil {
		t.Fatal(err)
	}
	if err := e.Delete(ctx, "gone"); err != nil {
		t.Fatal(err)
	}
	close(st.release)
	if err := <-done; err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	res, err := e.Evaluate(ctx, "x", eval.MustContext(map[string]any{"a": 5}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Matched {
		t.Errorf("Evaluate(x) = false, want the rule redefined during the refresh (a < 10)")
	}
	if _, err := e.Evaluate(ctx, "gone", eval.MustContext(map[string]any{"a": 5})); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Evaluate(gone) error = %v, want not found", err)
	}
}
