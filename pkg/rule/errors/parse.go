package errors

import (
	"fmt"
	"strings"
)

// ParseErrorKind categorizes why rule text could not be parsed.
type ParseErrorKind string

const (
	KindUnknownToken    ParseErrorKind = "unknown_token"    // Character that starts no token
	KindUnexpectedToken ParseErrorKind = "unexpected_token" // Valid token in the wrong place
	KindUnmatchedParen  ParseErrorKind = "unmatched_paren"  // '(' never closed or stray ')'
	KindMissingOperand  ParseErrorKind = "missing_operand"  // Operator or comparator with nothing after it
	KindInvalidLiteral  ParseErrorKind = "invalid_literal"  // Malformed number or unterminated string
	KindTooDeep         ParseErrorKind = "too_deep"         // Nesting limit exceeded
	KindTooLong         ParseErrorKind = "too_long"         // Length limit exceeded
)

// ParseError reports the first problem found in rule text.
// Parsing never partially succeeds: when a ParseError is returned no tree is.
type ParseError struct {
	Kind       ParseErrorKind // Category of the error
	Position   int            // Byte offset of the offending character
	Message    string         // Human readable description
	Input      string         // Rule text that was parsed
	Suggestion string         // Suggested fix (optional)
}

// NewParseError creates a parse error for the given input.
func NewParseError(kind ParseErrorKind, pos int, input, format string, args ...any) *ParseError {
	return &ParseError{
		Kind:     kind,
		Position: pos,
		Message:  fmt.Sprintf(format, args...),
		Input:    input,
	}
}

// WithSuggestion sets the suggestion and returns the error.
func (e *ParseError) WithSuggestion(suggestion string) *ParseError {
	e.Suggestion = suggestion
	return e
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parse error at offset %d: %s (%s)", e.Position, e.Message, e.Kind)
	if e.Suggestion != "" {
		msg += ": " + e.Suggestion
	}
	return msg
}

// Is matches another *ParseError with the same Kind, so callers can write
// errors.Is(err, &ParseError{Kind: KindUnmatchedParen}).
func (e *ParseError) Is(target error) bool {
	t, ok := target.(*ParseError)
	if !ok {
		return false
	}
	return t.Kind == "" || t.Kind == e.Kind
}

// Context renders the line of input containing the error with a caret
// under the offending column. It returns "" when no input is attached.
func (e *ParseError) Context() string {
	if e.Input == "" && e.Position == 0 {
		return ""
	}

	pos := e.Position
	if pos > len(e.Input) {
		pos = len(e.Input)
	}

	// Only show the line the offset falls on
	start := strings.LastIndexByte(e.Input[:pos], '\n') + 1
	end := len(e.Input)
	if i := strings.IndexByte(e.Input[pos:], '\n'); i >= 0 {
		end = pos + i
	}

	line := e.Input[start:end]
	var sb strings.Builder
	sb.WriteString(line)
	sb.WriteByte('\n')
	for i := start; i < pos; i++ {
		// Keep tabs so the caret lines up in terminals
		if e.Input[i] == '\t' {
			sb.WriteByte('\t')
		} else {
			sb.WriteByte(' ')
		}
	}
	sb.WriteString("^\n")
	return sb.String()
}

// Detailed returns the error message followed by the caret context,
// in the format used by the command line tools.
func (e *ParseError) Detailed() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s\n", e.Kind, e.Message))
	sb.WriteString(fmt.Sprintf("  --> offset %d\n", e.Position))
	if ctx := e.Context(); ctx != "" {
		sb.WriteString("  |\n")
		for _, line := range strings.SplitAfter(strings.TrimSuffix(ctx, "\n"), "\n") {
			sb.WriteString("  | ")
			sb.WriteString(strings.TrimSuffix(line, "\n"))
			sb.WriteByte('\n')
		}
	}
	if e.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  = suggestion: %s\n", e.Suggestion))
	}
	return sb.String()
}
