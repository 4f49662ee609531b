// Package rule compiles textual business rules into predicate trees,
// evaluates them against records, combines them and encodes them for storage.
//
// # Architecture
//
// The package is organized into subpackages:
//
//   - ast: immutable rule trees and typed literal values
//   - parser: rule text to tree
//   - eval: tree evaluation against a Context
//   - compose: conjunction and disjunction of rules
//   - codec: portable JSON encoding of trees
//   - errors: parse errors with offsets, error lists and suggestions
//   - rulefile: YAML bundles of named rules with test cases
//
// This package wires them together for the common paths.
//
// # Basic Usage
//
//	r, err := rule.Parse("age > 30 AND department == 'Sales'")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ok, err := rule.Evaluate(r, rule.MustContext(map[string]any{
//	    "age":        35,
//	    "department": "Sales",
//	}))
//
// # Grammar
//
// NOT binds tighter than AND, which binds tighter than OR. AND and OR are
// left-associative, so "a OR b OR c" is (a OR b) OR c:
//
//	expr      := or
//	or        := and ( "OR" and )*
//	and       := unary ( "AND" unary )*
//	unary     := "NOT" unary | "(" expr ")" | condition
//	condition := field ( ">" | "<" | ">=" | "<=" | "==" | "!=" ) literal
//	literal   := integer | float | 'string' | "string" | true | false
//
// # Error Handling
//
// Each stage fails with its own error type:
//
//	*errors.ParseError    Kind and byte offset in the rule text
//	*eval.MissingFieldError, *eval.TypeMismatchError
//	compose.ErrEmpty
//	*codec.DecodeError    Kind and path in the encoding
package rule

import (
	"mercator-hq/ruleengine/pkg/rule/ast"
	"mercator-hq/ruleengine/pkg/rule/codec"
	"mercator-hq/ruleengine/pkg/rule/compose"
	"mercator-hq/ruleengine/pkg/rule/eval"
	"mercator-hq/ruleengine/pkg/rule/parser"
)

// Node is a rule tree.
type Node = ast.Node

// Context holds the field values a rule is evaluated against.
type Context = eval.Context

// Encoding is the serialized form of a rule tree.
type Encoding = codec.Encoding

// Parse compiles rule text with the default parser limits.
func Parse(text string) (*Node, error) {
	return parser.Parse(text)
}

// Evaluate reports whether ctx satisfies the rule.
func Evaluate(r *Node, ctx Context) (bool, error) {
	return eval.Evaluate(r, ctx)
}

// ParseAndEvaluate compiles text and evaluates it against ctx.
func ParseAndEvaluate(text string, ctx Context) (bool, error) {
	r, err := parser.Parse(text)
	if err != nil {
		return false, err
	}
	return eval.Evaluate(r, ctx)
}

// Combine joins rules with AND, folding from the left. The rules are shared
// by the result, not copied.
func Combine(rules ...*Node) (*Node, error) {
	return compose.All(rules...)
}

// Serialize encodes a rule tree.
func Serialize(r *Node) (Encoding, error) {
	return codec.Serialize(r)
}

// Deserialize decodes and validates an encoding.
func Deserialize(enc Encoding) (*Node, error) {
	return codec.Deserialize(enc)
}

// NewContext converts native Go values into a Context.
func NewContext(values map[string]any) (Context, error) {
	return eval.NewContext(values)
}

// MustContext is like NewContext but panics on error.
func MustContext(values map[string]any) Context {
	return eval.MustContext(values)
}
