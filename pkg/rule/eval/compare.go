package eval

import (
	"mercator-hq/ruleengine/pkg/rule/ast"
)

// compare applies an operand's comparator to the context value (left side)
// and the operand literal (right side).
func compare(field string, cmp ast.Comparator, actual, literal ast.Value) (bool, error) {
	at, lt := actual.Type(), literal.Type()

	switch {
	case at == ast.ValueTypeInt && lt == ast.ValueTypeInt:
		return compareOrdered(cmp, actual.Int(), literal.Int()), nil

	case at.IsNumeric() && lt.IsNumeric():
		return compareOrdered(cmp, actual.Float(), literal.Float()), nil

	case at != lt || cmp.IsOrdering():
		return false, &TypeMismatchError{
			Field:       field,
			Comparator:  cmp,
			LiteralType: lt,
			ActualType:  at,
		}

	case at == ast.ValueTypeString:
		return (actual.Str() == literal.Str()) == (cmp == ast.CmpEqual), nil

	default: // bool
		return (actual.Bool() == literal.Bool()) == (cmp == ast.CmpEqual), nil
	}
}

func compareOrdered[T int64 | float64](cmp ast.Comparator, a, b T) bool {
	switch cmp {
	case ast.CmpGreater:
		return a > b
	case ast.CmpLess:
		return a < b
	case ast.CmpGreaterEqual:
		return a >= b
	case ast.CmpLessEqual:
		return a <= b
	case ast.CmpEqual:
		return a == b
	case ast.CmpNotEqual:
		return a != b
	}
	return false
}
