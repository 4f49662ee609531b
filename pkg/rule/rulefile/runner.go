package rulefile

import (
	"errors"
	"fmt"
	"time"

	"mercator-hq/ruleengine/pkg/rule/ast"
	"mercator-hq/ruleengine/pkg/rule/compose"
	"mercator-hq/ruleengine/pkg/rule/eval"
)

// TestResult is the outcome of one test case.
type TestResult struct {
	Case     *TestCase
	Passed   bool
	Result   bool  // Evaluation result, when evaluation succeeded
	Err      error // Evaluation error, when evaluation failed
	Message  string
	Duration time.Duration
}

// Report collects the results of a bundle's test cases.
type Report struct {
	Source  string
	Results []TestResult
	Passed  int
	Failed  int
}

// OK reports whether every test case passed.
func (r *Report) OK() bool {
	return r.Failed == 0
}

// RunTests evaluates every test case of the bundle. Disabled rules are still
// evaluated: a test names its rule explicitly.
func RunTests(b *Bundle, opts ...eval.Option) *Report {
	e := eval.New(opts...)
	report := &Report{
		Source:  b.Source,
		Results: make([]TestResult, 0, len(b.Tests)),
	}

	for _, tc := range b.Tests {
		res := runCase(e, b, tc)
		if res.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
		report.Results = append(report.Results, res)
	}
	return report
}

func runCase(e *eval.Evaluator, b *Bundle, tc *TestCase) TestResult {
	res := TestResult{Case: tc}

	rules := make([]*ast.Node, 0, len(tc.Rules))
	for _, name := range tc.Rules {
		r, ok := b.Rule(name)
		if !ok {
			res.Message = fmt.Sprintf("unknown rule %q", name)
			return res
		}
		rules = append(rules, r.Tree)
	}
	rule, err := compose.All(rules...)
	if err != nil {
		res.Message = err.Error()
		return res
	}

	start := time.Now()
	res.Result, res.Err = e.Evaluate(rule, tc.Context)
	res.Duration = time.Since(start)

	switch {
	case tc.ExpectError != "":
		want := expectedError(tc.ExpectError)
		switch {
		case res.Err == nil:
			res.Message = fmt.Sprintf("expected %s error, got %v", tc.ExpectError, res.Result)
		case !errors.Is(res.Err, want):
			res.Message = fmt.Sprintf("expected %s error, got: %v", tc.ExpectError, res.Err)
		default:
			res.Passed = true
		}
	case res.Err != nil:
		res.Message = fmt.Sprintf("evaluation failed: %v", res.Err)
	case res.Result != tc.Expect:
		res.Message = fmt.Sprintf("expected %v, got %v", tc.Expect, res.Result)
	default:
		res.Passed = true
	}
	return res
}

func expectedError(name string) error {
	if name == ExpectTypeMismatch {
		return eval.ErrTypeMismatch
	}
	return eval.ErrMissingField
}
