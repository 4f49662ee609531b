package eval

import (
	"context"
	"log/slog"

	"mercator-hq/ruleengine/pkg/rule/ast"
	ruleErrors "mercator-hq/ruleengine/pkg/rule/errors"
)

// Evaluator evaluates rule trees. It holds no per-evaluation state and is
// safe for concurrent use.
type Evaluator struct {
	logger *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// New creates an evaluator. Without WithLogger it logs to slog.Default().
func New(opts ...Option) *Evaluator {
	e := &Evaluator{}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("component", "rule.eval")
	return e
}

// quiet backs the package level functions and never logs.
var quiet = &Evaluator{}

// Evaluate evaluates a rule against a context without logging.
func Evaluate(rule *ast.Node, ctx Context) (bool, error) {
	return quiet.Evaluate(rule, ctx)
}

// Explain evaluates a rule and records each comparison performed.
func Explain(rule *ast.Node, ctx Context) (*Trace, error) {
	return quiet.Explain(rule, ctx)
}

// Step records one operand comparison.
type Step struct {
	Field      string
	Comparator ast.Comparator
	Literal    ast.Value
	Actual     ast.Value
	Result     bool
}

// Trace describes how a result was reached.
type Trace struct {
	Result bool
	Steps  []Step

	// ShortCircuits counts the right-hand subtrees that were skipped because
	// the left operand of AND was false or the left operand of OR was true.
	ShortCircuits int

	// SkippedOperands counts the operand nodes inside skipped subtrees.
	SkippedOperands int
}

// Evaluate returns the boolean result of rule against ctx. It fails with a
// *MissingFieldError or *TypeMismatchError from the first operand that could
// not be compared; operands in short-circuited subtrees are never examined.
func (e *Evaluator) Evaluate(rule *ast.Node, ctx Context) (bool, error) {
	return e.run(rule, ctx, nil)
}

// Explain is like Evaluate but also returns the trace of the evaluation.
// On error the trace holds the steps performed before the failure.
func (e *Evaluator) Explain(rule *ast.Node, ctx Context) (*Trace, error) {
	trace := &Trace{}
	result, err := e.run(rule, ctx, trace)
	trace.Result = result
	return trace, err
}

// frame is an operator node waiting for the result of a child.
// stage 0: nothing evaluated yet, stage 1: left child done, stage 2: right child done.
type frame struct {
	node  *ast.Node
	stage uint8
}

func (e *Evaluator) run(rule *ast.Node, ctx Context, trace *Trace) (bool, error) {
	if rule == nil {
		return false, ErrNilRule
	}

	var (
		result bool
		stack  = make([]frame, 0, 16)
	)
	stack = append(stack, frame{node: rule})

	for len(stack) > 0 {
		top := len(stack) - 1
		node := stack[top].node

		if node.IsOperand() {
			res, err := e.operand(node, ctx, trace)
			if err != nil {
				e.debug("rule evaluation failed", "field", node.Field(), "error", err)
				return false, err
			}
			result = res
			stack = stack[:top]
			continue
		}

		switch stack[top].stage {
		case 0:
			stack[top].stage = 1
			stack = append(stack, frame{node: node.Left()})

		case 1:
			switch node.Op() {
			case ast.OpNot:
				result = !result
				stack = stack[:top]
			case ast.OpAnd, ast.OpOr:
				// AND is decided by a false left operand, OR by a true one
				if result == (node.Op() == ast.OpOr) {
					if trace != nil {
						trace.ShortCircuits++
						trace.SkippedOperands += countOperands(node.Right())
					}
					stack = stack[:top]
					continue
				}
				stack[top].stage = 2
				stack = append(stack, frame{node: node.Right()})
			}

		default:
			// The right operand decides the result
			stack = stack[:top]
		}
	}

	return result, nil
}

func (e *Evaluator) operand(node *ast.Node, ctx Context, trace *Trace) (bool, error) {
	actual, ok := ctx.Get(node.Field())
	if !ok {
		return false, &MissingFieldError{
			Field:      node.Field(),
			Suggestion: ruleErrors.SuggestFieldName(node.Field(), ctx.Fields()),
		}
	}

	res, err := compare(node.Field(), node.Comparator(), actual, node.Value())
	if err != nil {
		return false, err
	}

	if trace != nil {
		trace.Steps = append(trace.Steps, Step{
			Field:      node.Field(),
			Comparator: node.Comparator(),
			Literal:    node.Value(),
			Actual:     actual,
			Result:     res,
		})
	}
	return res, nil
}

func (e *Evaluator) debug(msg string, args ...any) {
	if e.logger != nil && e.logger.Enabled(context.Background(), slog.LevelDebug) {
		e.logger.Debug(msg, args...)
	}
}

func countOperands(n *ast.Node) int {
	count := 0
	ast.Inspect(n, func(node *ast.Node) bool {
		if node.IsOperand() {
			count++
		}
		return true
	})
	return count
}
