package ast

import (
	"math"
	"strconv"
	"strings"
)

// ValueType identifies the type of a literal or record value.
// Rules are strongly typed: comparisons never coerce between strings,
// booleans and numbers.
type ValueType string

const (
	ValueTypeInt    ValueType = "int"
	ValueTypeFloat  ValueType = "float"
	ValueTypeBool   ValueType = "bool"
	ValueTypeString ValueType = "string"
)

// IsValid returns true if t is one of the supported value types.
func (t ValueType) IsValid() bool {
	switch t {
	case ValueTypeInt, ValueTypeFloat, ValueTypeBool, ValueTypeString:
		return true
	}
	return false
}

// IsNumeric returns true for int and float.
func (t ValueType) IsNumeric() bool {
	return t == ValueTypeInt || t == ValueTypeFloat
}

// Value is an immutable typed value. The zero Value is invalid and is
// rejected by NewOperand.
type Value struct {
	typ ValueType
	i   int64
	f   float64
	b   bool
	s   string
}

// IntValue returns an integer value.
func IntValue(v int64) Value { return Value{typ: ValueTypeInt, i: v} }

// FloatValue returns a floating point value.
func FloatValue(v float64) Value { return Value{typ: ValueTypeFloat, f: v} }

// BoolValue returns a boolean value.
func BoolValue(v bool) Value { return Value{typ: ValueTypeBool, b: v} }

// StringValue returns a string value.
func StringValue(v string) Value { return Value{typ: ValueTypeString, s: v} }

// Type returns the type of the value, or "" for the zero Value.
func (v Value) Type() ValueType { return v.typ }

// IsValid returns true if the value was built by one of the constructors.
func (v Value) IsValid() bool { return v.typ.IsValid() }

// Int returns the integer payload. It is 0 unless Type is ValueTypeInt.
func (v Value) Int() int64 { return v.i }

// Float returns the numeric payload as a float64. Integers are converted.
func (v Value) Float() float64 {
	if v.typ == ValueTypeInt {
		return float64(v.i)
	}
	return v.f
}

// Bool returns the boolean payload.
func (v Value) Bool() bool { return v.b }

// Str returns the string payload.
func (v Value) Str() string { return v.s }

// Interface returns the payload as a native Go value
// (int64, float64, bool or string), or nil for the zero Value.
func (v Value) Interface() any {
	switch v.typ {
	case ValueTypeInt:
		return v.i
	case ValueTypeFloat:
		return v.f
	case ValueTypeBool:
		return v.b
	case ValueTypeString:
		return v.s
	}
	return nil
}

// Equal reports whether two values have the same type and payload.
// Unlike the == comparator, Equal never treats 1 and 1.0 as equal.
func (v Value) Equal(other Value) bool {
	if v.typ != other.typ {
		return false
	}
	switch v.typ {
	case ValueTypeInt:
		return v.i == other.i
	case ValueTypeFloat:
		return v.f == other.f || (math.IsNaN(v.f) && math.IsNaN(other.f))
	case ValueTypeBool:
		return v.b == other.b
	case ValueTypeString:
		return v.s == other.s
	}
	return true
}

// String renders the value as rule literal text. Floats always carry a
// decimal point or exponent so the text parses back as a float, and strings
// are single quoted with \\, \', \n and \t escaped.
func (v Value) String() string {
	switch v.typ {
	case ValueTypeInt:
		return strconv.FormatInt(v.i, 10)
	case ValueTypeFloat:
		s := strconv.FormatFloat(v.f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEnN") {
			s += ".0"
		}
		return s
	case ValueTypeBool:
		return strconv.FormatBool(v.b)
	case ValueTypeString:
		return Quote(v.s)
	}
	return "<invalid>"
}

// Quote returns s as a single quoted rule string literal.
func Quote(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			sb.WriteString(`\\`)
		case '\'':
			sb.WriteString(`\'`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('\'')
	return sb.String()
}

// isFinite reports whether a float literal can appear in a rule.
func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
