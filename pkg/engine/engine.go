package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/ruleengine/pkg/config"
	"mercator-hq/ruleengine/pkg/registry"
	"mercator-hq/ruleengine/pkg/rule/ast"
	"mercator-hq/ruleengine/pkg/rule/codec"
	"mercator-hq/ruleengine/pkg/rule/compose"
	"mercator-hq/ruleengine/pkg/rule/eval"
	"mercator-hq/ruleengine/pkg/rule/parser"
	"mercator-hq/ruleengine/pkg/store"
	"mercator-hq/ruleengine/pkg/telemetry/logging"
	"mercator-hq/ruleengine/pkg/telemetry/metrics"
	"mercator-hq/ruleengine/pkg/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
)

// ErrNoRegistry is returned by Refresh when the engine has no registry.
var ErrNoRegistry = errors.New("rule registry is not enabled")

// Result is the outcome of evaluating a rule.
type Result struct {
	// Rule is the name of the evaluated rule, empty for ad hoc rule text.
	Rule string

	// Matched is the boolean result of the rule.
	Matched bool

	// Cached is true when the rule tree came from the registry instead of
	// being loaded and decoded from the store.
	Cached bool

	// Duration is the time spent evaluating, excluding loading.
	Duration time.Duration

	// Trace holds the comparisons performed. Only set by Explain, or by
	// Evaluate when tracing is enabled in the engine config.
	Trace *eval.Trace
}

// Engine defines, stores and evaluates named rules.
// It is safe for concurrent use.
type Engine struct {
	config    *config.EngineConfig
	store     store.Store
	parser    *parser.Parser
	evaluator *eval.Evaluator
	registry  *registry.Registry

	logger  *slog.Logger
	metrics *metrics.Collector
	tracer  *tracing.Tracer

	useRegistry bool

	statsMu   sync.Mutex
	lastStats *registry.ReloadStats
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics records engine metrics with collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(e *Engine) {
		e.metrics = collector
	}
}

// WithTracer opens a span for every engine operation.
func WithTracer(tracer *tracing.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithRegistry caches decoded rules in a registry, so repeated
// evaluations of a rule skip loading and decoding.
func WithRegistry() Option {
	return func(e *Engine) {
		e.useRegistry = true
	}
}

// New creates an engine persisting rules in st. The caller keeps ownership
// of st and closes it after the engine is no longer used.
func New(cfg *config.EngineConfig, st store.Store, opts ...Option) (*Engine, error) {
	if st == nil {
		return nil, errors.New("store cannot be nil")
	}
	if cfg == nil {
		cfg = &config.EngineConfig{
			MaxRuleLength: config.DefaultMaxRuleLength,
			MaxDepth:      config.DefaultMaxDepth,
		}
	}

	e := &Engine{config: cfg}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.tracer == nil {
		e.tracer = tracing.Noop()
	}

	e.store = instrument(st, e.metrics, e.tracer)
	e.parser = parser.NewParser().WithMaxDepth(cfg.MaxDepth).WithMaxLength(cfg.MaxRuleLength)
	e.evaluator = eval.New(eval.WithLogger(e.logger))
	if e.useRegistry {
		e.registry = registry.New(e.store,
			registry.WithLogger(e.logger),
			registry.WithReloadHook(e.onReload),
		)
	}
	e.logger = e.logger.With("component", "engine")

	return e, nil
}

// Store returns the instrumented store the engine reads and writes.
func (e *Engine) Store() store.Store {
	return e.store
}

// Registry returns the rule registry, or nil if the engine has none.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Define parses text, encodes the tree and saves it under name,
// replacing any rule stored under that name.
func (e *Engine) Define(ctx context.Context, name, text string) (*ast.Node, error) {
	ctx = logging.WithOperation(logging.WithRule(ctx, name), "define")
	ctx, span := e.tracer.Start(ctx, "rule.define")
	defer span.End()

	if err := store.ValidateName(name); err != nil {
		tracing.SetError(span, err, "invalid_name")
		return nil, err
	}

	rule, err := e.parse(ctx, text)
	if err != nil {
		tracing.SetError(span, err, errorKind(err))
		return nil, err
	}
	tracing.SetRuleAttributes(span, name, ast.Count(rule), ast.Depth(rule))

	enc, err := codec.Serialize(rule)
	if err != nil {
		tracing.SetError(span, err, errorKind(err))
		return nil, fmt.Errorf("encode rule %q: %w", name, err)
	}
	if err := e.store.Save(ctx, name, enc); err != nil {
		tracing.SetError(span, err, errorKind(err))
		return nil, err
	}
	e.cache(name, rule, enc)

	e.logger.InfoContext(ctx, "rule defined", "nodes", ast.Count(rule), "size", len(enc))
	return rule, nil
}

// Get returns the tree of the rule stored under name.
func (e *Engine) Get(ctx context.Context, name string) (*ast.Node, error) {
	ctx = logging.WithOperation(logging.WithRule(ctx, name), "get")
	ctx, span := e.tracer.Start(ctx, "rule.get")
	defer span.End()

	rule, _, err := e.resolve(ctx, name)
	if err != nil {
		tracing.SetError(span, err, errorKind(err))
		return nil, err
	}
	return rule, nil
}

// Evaluate evaluates the rule stored under name against record.
func (e *Engine) Evaluate(ctx context.Context, name string, record eval.Context) (*Result, error) {
	return e.evaluateNamed(ctx, name, record, e.config.Trace)
}

// Explain is like Evaluate but always returns the evaluation trace.
func (e *Engine) Explain(ctx context.Context, name string, record eval.Context) (*Result, error) {
	return e.evaluateNamed(ctx, name, record, true)
}

func (e *Engine) evaluateNamed(ctx context.Context, name string, record eval.Context, explain bool) (*Result, error) {
	ctx = logging.WithOperation(logging.WithRule(ctx, name), "evaluate")
	ctx, span := e.tracer.Start(ctx, "rule.evaluate")
	defer span.End()

	rule, cached, err := e.resolve(ctx, name)
	if err != nil {
		tracing.SetError(span, err, errorKind(err))
		return nil, err
	}
	tracing.SetRuleAttributes(span, name, ast.Count(rule), ast.Depth(rule))

	res, err := e.run(ctx, name, rule, record, explain)
	if err != nil {
		tracing.SetError(span, err, errorKind(err))
		return nil, fmt.Errorf("rule %q: %w", name, err)
	}
	res.Cached = cached
	tracing.SetResult(span, res.Matched, cached)
	return res, nil
}

// EvaluateText parses text and evaluates it against record without
// storing anything.
func (e *Engine) EvaluateText(ctx context.Context, text string, record eval.Context) (*Result, error) {
	ctx = logging.WithOperation(ctx, "evaluate")
	ctx, span := e.tracer.Start(ctx, "rule.evaluate")
	defer span.End()

	rule, err := e.parse(ctx, text)
	if err != nil {
		tracing.SetError(span, err, errorKind(err))
		return nil, err
	}
	tracing.SetRuleAttributes(span, "", ast.Count(rule), ast.Depth(rule))

	res, err := e.run(ctx, "", rule, record, e.config.Trace)
	if err != nil {
		tracing.SetError(span, err, errorKind(err))
		return nil, err
	}
	tracing.SetResult(span, res.Matched, false)
	return res, nil
}

// Combine loads the rules stored under names, joins them with AND folding
// from the left, and saves the result under target. With no names it fails
// with compose.ErrEmpty; with one name the stored tree is copied unchanged.
func (e *Engine) Combine(ctx context.Context, target string, names ...string) (*ast.Node, error) {
	ctx = logging.WithOperation(logging.WithRule(ctx, target), "combine")
	ctx, span := e.tracer.Start(ctx, "rule.combine")
	defer span.End()

	if err := store.ValidateName(target); err != nil {
		tracing.SetError(span, err, "invalid_name")
		return nil, err
	}

	rules := make([]*ast.Node, 0, len(names))
	for _, name := range names {
		rule, _, err := e.resolve(ctx, name)
		if err != nil {
			tracing.SetError(span, err, errorKind(err))
			return nil, err
		}
		rules = append(rules, rule)
	}

	combined, err := compose.All(rules...)
	if err != nil {
		tracing.SetError(span, err, errorKind(err))
		return nil, fmt.Errorf("combine into %q: %w", target, err)
	}
	tracing.SetRuleAttributes(span, target, ast.Count(combined), ast.Depth(combined))

	enc, err := codec.Serialize(combined)
	if err != nil {
		tracing.SetError(span, err, errorKind(err))
		return nil, fmt.Errorf("encode rule %q: %w", target, err)
	}
	if err := e.store.Save(ctx, target, enc); err != nil {
		tracing.SetError(span, err, errorKind(err))
		return nil, err
	}
	e.cache(target, combined, enc)

	e.logger.InfoContext(ctx, "rules combined", "sources", names, "nodes", ast.Count(combined))
	return combined, nil
}

// List returns the metadata of every stored rule, sorted by name.
func (e *Engine) List(ctx context.Context) ([]store.Record, error) {
	ctx = logging.WithOperation(ctx, "list")
	ctx, span := e.tracer.Start(ctx, "rule.list")
	defer span.End()

	records, err := e.store.List(ctx)
	if err != nil {
		tracing.SetError(span, err, errorKind(err))
		return nil, err
	}
	return records, nil
}

// Delete removes the rule stored under name.
func (e *Engine) Delete(ctx context.Context, name string) error {
	ctx = logging.WithOperation(logging.WithRule(ctx, name), "delete")
	ctx, span := e.tracer.Start(ctx, "rule.delete")
	defer span.End()

	err := e.store.Delete(ctx, name)
	if e.registry != nil && e.registry.Remove(name) {
		e.metrics.UpdateRegistrySize(e.registry.Len())
	}
	if err != nil {
		tracing.SetError(span, err, errorKind(err))
		return err
	}
	e.logger.InfoContext(ctx, "rule deleted")
	return nil
}

// Refresh reloads the registry from the store.
func (e *Engine) Refresh(ctx context.Context) (*registry.ReloadStats, error) {
	if e.registry == nil {
		return nil, ErrNoRegistry
	}
	ctx = logging.WithOperation(ctx, "refresh")
	ctx, span := e.tracer.Start(ctx, "registry.refresh")
	defer span.End()

	stats, err := e.registry.Refresh(ctx)
	if err != nil {
		e.metrics.RecordReload("error", 0, 0)
		tracing.SetError(span, err, errorKind(err))
		return nil, err
	}
	span.SetAttributes(attribute.Int(tracing.AttrRuleCount, stats.Loaded))
	return stats, nil
}

// LastReload returns the stats of the most recent successful Refresh.
func (e *Engine) LastReload() *registry.ReloadStats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.lastStats
}

func (e *Engine) onReload(stats *registry.ReloadStats) {
	e.statsMu.Lock()
	e.lastStats = stats
	e.statsMu.Unlock()

	e.metrics.RecordReload("ok", stats.Loaded, len(stats.Failed))
	e.metrics.UpdateRegistrySize(stats.Loaded)
}

// parse compiles text, counting rejections by kind.
func (e *Engine) parse(ctx context.Context, text string) (*ast.Node, error) {
	rule, err := e.parser.Parse(text)
	if err != nil {
		e.metrics.RecordParseError(errorKind(err))
		e.logger.DebugContext(ctx, "rule rejected", "error", err)
		return nil, err
	}
	return rule, nil
}

// resolve returns the tree stored under name, from the registry when it
// holds the rule.
func (e *Engine) resolve(ctx context.Context, name string) (*ast.Node, bool, error) {
	if e.registry != nil {
		if entry, ok := e.registry.Get(name); ok {
			e.metrics.RecordCacheHit()
			return entry.Rule, true, nil
		}
		e.metrics.RecordCacheMiss()
	}

	enc, err := e.store.Load(ctx, name)
	if err != nil {
		return nil, false, err
	}
	rule, err := codec.Deserialize(enc)
	if err != nil {
		e.metrics.RecordDecodeError(errorKind(err))
		e.logger.WarnContext(ctx, "stored rule could not be decoded", "error", err)
		return nil, false, fmt.Errorf("decode rule %q: %w", name, err)
	}
	e.cache(name, rule, enc)
	return rule, false, nil
}

func (e *Engine) cache(name string, rule *ast.Node, enc []byte) {
	if e.registry == nil {
		return
	}
	e.registry.Put(name, rule, store.Checksum(enc))
	e.metrics.UpdateRegistrySize(e.registry.Len())
}

// run evaluates rule and records the outcome.
func (e *Engine) run(ctx context.Context, name string, rule *ast.Node, record eval.Context, explain bool) (*Result, error) {
	start := time.Now()
	var (
		matched bool
		trace   *eval.Trace
		err     error
	)
	if explain {
		trace, err = e.evaluator.Explain(rule, record)
		matched = trace.Result
	} else {
		matched, err = e.evaluator.Evaluate(rule, record)
	}
	duration := time.Since(start)

	if err != nil {
		e.metrics.RecordEvaluationError(name, errorKind(err))
		e.logger.DebugContext(ctx, "rule evaluation failed", "error", err)
		return nil, err
	}

	e.metrics.RecordEvaluation(name, fmt.Sprint(matched), duration)
	e.logger.DebugContext(ctx, "rule evaluated", "result", matched, "duration_us", duration.Microseconds())
	return &Result{
		Rule:     name,
		Matched:  matched,
		Duration: duration,
		Trace:    trace,
	}, nil
}
