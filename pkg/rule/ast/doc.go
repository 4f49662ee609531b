// Package ast defines the predicate tree that rule text compiles into.
//
// A rule is a tree of Nodes. Operator nodes (AND, OR, NOT) combine the
// boolean results of their children; operand nodes compare a single record
// field against a typed literal.
//
// # Core Types
//
// Node: Immutable tree node, either an operator or an operand
//
// Op: Logical operator (AND, OR, NOT) with a fixed arity
//
// Comparator: Comparison of an operand (>, <, >=, <=, ==, !=)
//
// Value: Typed literal (int, float, bool, string)
//
// # Construction
//
// Nodes are only built through validating constructors, so an operator always
// has the number of children its kind requires and an operand always carries
// a field, a comparator and a literal:
//
//	age, _ := ast.NewOperand("age", ast.CmpGreater, ast.IntValue(30))
//	dept, _ := ast.NewOperand("department", ast.CmpEqual, ast.StringValue("Sales"))
//	rule, err := ast.NewOperator(ast.OpAnd, age, dept)
//
// The panicking helpers And, Or, Not and Condition are shorthand for trees
// known to be valid, typically in tests.
//
// # Sharing
//
// Nodes have no exported fields and no mutators. A subtree may therefore be
// referenced by any number of parents, and a tree may be evaluated from many
// goroutines at once without synchronization.
package ast
