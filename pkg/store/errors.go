package store

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes store failures.
type ErrorKind string

const (
	KindNotFound   ErrorKind = "not_found"  // No rule stored under the name
	KindConnection ErrorKind = "connection" // Backend unreachable or failing
)

// Targets for errors.Is, matching any *StoreError of the same kind.
var (
	ErrNotFound   = &StoreError{Kind: KindNotFound}
	ErrConnection = &StoreError{Kind: KindConnection}
)

// ErrInvalidName is returned for rule names a backend cannot store.
var ErrInvalidName = errors.New("invalid rule name")

// StoreError represents a failure of a storage backend.
type StoreError struct {
	Kind      ErrorKind
	Backend   string // "memory", "file" or "sqlite"
	Operation string // "save", "load", "delete", "list", ...
	Name      string // Rule name, when the operation has one
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	msg := fmt.Sprintf("store error [backend=%s, operation=%s", e.Backend, e.Operation)
	if e.Name != "" {
		msg += ", name=" + e.Name
	}
	msg += "]: " + string(e.Kind)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause error.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Is matches another *StoreError with the same Kind.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return t.Kind == "" || t.Kind == e.Kind
}

// NotFound creates a not-found error.
func NotFound(backend, operation, name string) *StoreError {
	return &StoreError{Kind: KindNotFound, Backend: backend, Operation: operation, Name: name}
}

// ConnectionError creates a connection error wrapping cause.
func ConnectionError(backend, operation, name string, cause error) *StoreError {
	return &StoreError{Kind: KindConnection, Backend: backend, Operation: operation, Name: name, Cause: cause}
}

var errClosed = errors.New("store is closed")
