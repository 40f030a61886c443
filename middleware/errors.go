package middleware

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// Sentinel errors reported by the composition engine and the context.
var (
	// ErrInvalidArgument is returned at composition time when a handler is
	// nil or an item cannot be used as a handler.
	ErrInvalidArgument = errors.New("middleware: invalid argument")

	// ErrDoubleInvocation is returned by a continuation that was already
	// used, or that belongs to a step the chain has moved past.
	ErrDoubleInvocation = errors.New("middleware: next() called more than once")

	// ErrProtectedField matches any ProtectedFieldError.
	ErrProtectedField = errors.New("middleware: protected field")
)

// ProtectedFieldError reports an attempt to store a dynamic field under a
// name owned by the Context itself.
type ProtectedFieldError struct {
	Name string
}

// Error implements the error interface.
func (e *ProtectedFieldError) Error() string {
	return fmt.Sprintf("middleware: field %q is protected by the context", e.Name)
}

// Is reports whether target is ErrProtectedField.
func (e *ProtectedFieldError) Is(target error) bool {
	return target == ErrProtectedField
}

// PanicError wraps a non-error value recovered from a panicking handler.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("middleware: panic: %v", e.Value)
}

// panicError converts a recovered value into an error. Error values are
// returned as is so callers see the exact value that was raised.
func panicError(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return &PanicError{Value: v, Stack: debug.Stack()}
}
