package errors

import (
	"fmt"
	"strings"
)

// ErrorType categorizes errors found in rule bundle files.
type ErrorType string

const (
	ErrorTypeSyntax     ErrorType = "syntax"     // YAML or rule expression syntax error
	ErrorTypeStructural ErrorType = "structural" // Missing or invalid bundle fields
	ErrorTypeSemantic   ErrorType = "semantic"   // Duplicate names, unknown rule references
	ErrorTypeIO         ErrorType = "io"         // File I/O error
)

// Location identifies a position in a bundle file.
type Location struct {
	File   string
	Line   int
	Column int
}

// IsValid returns true if the location has at least a line number.
func (l Location) IsValid() bool {
	return l.Line > 0
}

// String formats the location as file:line:column.
func (l Location) String() string {
	switch {
	case l.File == "":
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	case l.Column > 0:
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	default:
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	}
}

// Error is a single problem found in a bundle file.
type Error struct {
	Type       ErrorType // Category of error
	Message    string    // Error message
	Location   Location  // Source location
	Suggestion string    // Suggested fix (optional)
	Cause      error     // Underlying error, e.g. a *ParseError
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Type, e.Message))
	if e.Location.IsValid() {
		sb.WriteString(fmt.Sprintf(" (%s)", e.Location))
	}
	if e.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("; suggestion: %s", e.Suggestion))
	}
	return sb.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrorList accumulates errors instead of failing on the first one.
type ErrorList struct {
	Errors []*Error
}

// NewErrorList creates an empty error list.
func NewErrorList() *ErrorList {
	return &ErrorList{Errors: make([]*Error, 0)}
}

// Add appends an error to the list.
func (el *ErrorList) Add(err *Error) {
	el.Errors = append(el.Errors, err)
}

// AddError creates and adds a new error.
func (el *ErrorList) AddError(errType ErrorType, message string, location Location) {
	el.Add(&Error{Type: errType, Message: message, Location: location})
}

// AddParseError wraps a rule expression parse error found at location.
func (el *ErrorList) AddParseError(pe *ParseError, location Location) {
	el.Add(&Error{
		Type:       ErrorTypeSyntax,
		Message:    pe.Error(),
		Location:   location,
		Suggestion: pe.Suggestion,
		Cause:      pe,
	})
}

// HasErrors returns true if the list contains any errors.
func (el *ErrorList) HasErrors() bool {
	return len(el.Errors) > 0
}

// Count returns the number of errors in the list.
func (el *ErrorList) Count() int {
	return len(el.Errors)
}

// Error implements the error interface.
func (el *ErrorList) Error() string {
	if !el.HasErrors() {
		return ""
	}
	if el.Count() == 1 {
		return el.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("found %d errors:", el.Count()))
	for _, err := range el.Errors {
		sb.WriteString("\n  ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Unwrap returns the collected errors so errors.Is and errors.As can reach
// their causes.
func (el *ErrorList) Unwrap() []error {
	errs := make([]error, len(el.Errors))
	for i, err := range el.Errors {
		errs[i] = err
	}
	return errs
}

// ToError returns nil for an empty list and the list itself otherwise.
func (el *ErrorList) ToError() error {
	if !el.HasErrors() {
		return nil
	}
	return el
}

// ByType returns all errors of the given type.
func (el *ErrorList) ByType(errType ErrorType) []*Error {
	var result []*Error
	for _, err := range el.Errors {
		if err.Type == errType {
			result = append(result, err)
		}
	}
	return result
}
