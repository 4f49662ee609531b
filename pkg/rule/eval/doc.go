// Package eval evaluates rule trees against data records.
//
// A record is a Context: a map from field name to typed value. Operand nodes
// compare one field of the record against their literal; operator nodes
// combine the results of their children:
//
//	rule, _ := parser.Parse("age > 30 AND department == 'Sales'")
//	ctx, _ := eval.NewContext(map[string]any{"age": 35, "department": "Sales"})
//	ok, err := eval.Evaluate(rule, ctx) // true, nil
//
// # Typing
//
// Integers and floats compare with each other under all six comparators;
// two integers compare exactly, any other numeric pair compares as float64.
// Strings and booleans only support == and !=. Every other pairing fails
// with a *TypeMismatchError; a field absent from the record fails with a
// *MissingFieldError. Both can be matched with errors.Is against
// ErrTypeMismatch and ErrMissingField.
//
// # Short-circuit
//
// AND stops at a false left operand and OR at a true one. The skipped
// subtree is not evaluated at all, so errors it would have raised (for
// example a missing field) are not reported.
//
// Evaluation walks the tree with an explicit stack, so deep trees produced
// by combining many rules cannot exhaust the goroutine stack.
package eval
