package eval

import (
	"errors"
	"fmt"

	"mercator-hq/ruleengine/pkg/rule/ast"
)

// Sentinel errors
var (
	// ErrMissingField matches every *MissingFieldError.
	ErrMissingField = errors.New("missing field")

	// ErrTypeMismatch matches every *TypeMismatchError.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrNilRule is returned when evaluating a nil tree.
	ErrNilRule = errors.New("rule is nil")

	// ErrInvalidContext is returned when a record cannot be converted into a Context.
	ErrInvalidContext = errors.New("invalid context")
)

// MissingFieldError indicates an operand references a field absent from the context.
type MissingFieldError struct {
	Field      string
	Suggestion string // Closest field present in the context (optional)
}

// Error returns the error message.
func (e *MissingFieldError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("missing field %q: %s", e.Field, e.Suggestion)
	}
	return fmt.Sprintf("missing field %q", e.Field)
}

// Is reports whether target is ErrMissingField.
func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

// TypeMismatchError indicates an operand literal cannot be compared with the
// context value under the operand's comparator.
type TypeMismatchError struct {
	Field       string
	Comparator  ast.Comparator
	LiteralType ast.ValueType
	ActualType  ast.ValueType
}

// Error returns the error message.
func (e *TypeMismatchError) Error() string {
	if e.LiteralType == e.ActualType {
		return fmt.Sprintf("type mismatch for field %q: %s values do not support %q", e.Field, e.ActualType, e.Comparator)
	}
	return fmt.Sprintf("type mismatch for field %q: cannot compare %s with %s literal using %q",
		e.Field, e.ActualType, e.LiteralType, e.Comparator)
}

// Is reports whether target is ErrTypeMismatch.
func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}
