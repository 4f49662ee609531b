// Package compose combines independently authored rules into one tree.
package compose

import (
	"errors"
	"fmt"

	"mercator-hq/ruleengine/pkg/rule/ast"
)

// ErrEmpty is returned when there are no rules to combine.
var ErrEmpty = errors.New("no rules to combine")

// NilRuleError indicates one of the rules to combine is nil.
type NilRuleError struct {
	Index int
}

// Error returns the error message.
func (e *NilRuleError) Error() string {
	return fmt.Sprintf("rule %d is nil", e.Index)
}

// All conjoins rules by folding them left to right:
// [r1, r2, r3] becomes AND(AND(r1, r2), r3).
//
// A single rule is returned unchanged. The input trees are referenced by the
// result, never copied or modified, so callers may keep using them.
func All(rules ...*ast.Node) (*ast.Node, error) {
	return fold(ast.OpAnd, rules)
}

// Any disjoins rules the same way: [r1, r2, r3] becomes OR(OR(r1, r2), r3).
func Any(rules ...*ast.Node) (*ast.Node, error) {
	return fold(ast.OpOr, rules)
}

func fold(op ast.Op, rules []*ast.Node) (*ast.Node, error) {
	if len(rules) == 0 {
		return nil, ErrEmpty
	}
	for i, r := range rules {
		if r == nil {
			return nil, &NilRuleError{Index: i}
		}
	}

	combined := rules[0]
	for _, r := range rules[1:] {
		next, err := ast.NewOperator(op, combined, r)
		if err != nil {
			return nil, err
		}
		combined = next
	}
	return combined, nil
}
