package tools

import (
	"errors"
	"fmt"
)

// Registry and invocation errors. Every failure returned by Invoke is an
// *Error whose Kind is one of these.
var (
	// ErrToolNotFound is returned when no available operation has the name.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolAmbiguous is returned when more than one provider exposes the
	// name and no qualifier narrows it down.
	ErrToolAmbiguous = errors.New("tool name is ambiguous")

	// ErrMissingParameter is returned when a required parameter is absent.
	ErrMissingParameter = errors.New("missing required parameter")

	// ErrInvalidParameter is returned when a value cannot be coerced to the
	// declared kind.
	ErrInvalidParameter = errors.New("invalid parameter value")

	// ErrInvocationFailed is returned when the operation body fails or panics.
	ErrInvocationFailed = errors.New("tool invocation failed")

	// ErrDuplicateOperation is returned by Discover when a provider exposes
	// the same name twice.
	ErrDuplicateOperation = errors.New("duplicate operation")

	// ErrInvalidOperation is returned by Discover for an incomplete
	// operation definition.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrMalformedCall is returned by ParseCall for a value that names a
	// tool but cannot be read as a call.
	ErrMalformedCall = errors.New("malformed tool call")
)

// Error describes one failed tool invocation.
type Error struct {
	Kind  error
	Tool  string
	Param string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Tool != "" {
		msg += ": " + e.Tool
	}
	if e.Param != "" {
		msg += fmt.Sprintf(" (parameter %q)", e.Param)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, tool, param string, cause error) *Error {
	return &Error{Kind: kind, Tool: tool, Param: param, Err: cause}
}
