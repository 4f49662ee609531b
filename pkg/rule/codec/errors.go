package codec

import (
	"errors"
	"fmt"
)

// DecodeErrorKind categorizes why an encoding was rejected.
type DecodeErrorKind string

const (
	KindArityMismatch DecodeErrorKind = "arity_mismatch" // Operator with the wrong children
	KindUnknownTag    DecodeErrorKind = "unknown_tag"    // Unrecognized kind, op, cmp or literal type
	KindMalformed     DecodeErrorKind = "malformed"      // Anything else: bad JSON, wrong shapes, wrong types
)

// Targets for errors.Is, matching any *DecodeError of the same kind.
var (
	ErrArityMismatch = &DecodeError{Kind: KindArityMismatch}
	ErrUnknownTag    = &DecodeError{Kind: KindUnknownTag}
	ErrMalformed     = &DecodeError{Kind: KindMalformed}
)

// Serialization errors.
var (
	ErrNilNode    = errors.New("cannot serialize a nil rule")
	ErrTooDeep    = fmt.Errorf("rule is deeper than %d levels", MaxDepth)
	ErrInvalidUTF = errors.New("string literal is not valid UTF-8")
)

// DecodeError reports why an encoding could not be turned into a tree.
type DecodeError struct {
	Kind    DecodeErrorKind
	Path    string // Location of the offending node, e.g. $.left.literal
	Message string
}

// Error returns the error message.
func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("decode error (%s): %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("decode error at %s (%s): %s", e.Path, e.Kind, e.Message)
}

// Is matches another *DecodeError with the same Kind.
func (e *DecodeError) Is(target error) bool {
	t, ok := target.(*DecodeError)
	if !ok {
		return false
	}
	return t.Kind == "" || t.Kind == e.Kind
}

func decodeErr(kind DecodeErrorKind, path, format string, args ...any) *DecodeError {
	return &DecodeError{Kind: kind, Path: path, Message: fmt.Sprintf(format, args...)}
}
