// Package errors provides the error taxonomy shared by the query front-end
// and the execution engines behind it.
//
// Every failure surfaced to callers is an *Error carrying a Kind. Callers
// match on the kind with the standard library:
//
//	if errors.Is(err, errors.ErrColumnNotFound) { ... }
//
// Engine failures keep their cause, so a missing column reported while a plan
// executes matches both ErrEngineFailure and ErrColumnNotFound.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies an error.
type Kind int

const (
	Unknown Kind = iota
	ResourceReleased
	ColumnNotFound
	InvalidArgument
	EngineFailure
)

// Sentinels for errors.Is.
var (
	ErrResourceReleased error = ResourceReleased
	ErrColumnNotFound   error = ColumnNotFound
	ErrInvalidArgument  error = InvalidArgument
	ErrEngineFailure    error = EngineFailure
)

func (k Kind) String() string {
	switch k {
	case ResourceReleased:
		return "resource released"
	case ColumnNotFound:
		return "column not found"
	case InvalidArgument:
		return "invalid argument"
	case EngineFailure:
		return "engine failure"
	default:
		return "unknown"
	}
}

// Error lets a bare Kind act as a sentinel.
func (k Kind) Error() string {
	return k.String()
}

// Error is the concrete error type returned by every package in this module.
type Error struct {
	Kind    Kind   // Classification used by errors.Is
	Op      string // Operation name (e.g. "Filter", "ReadSource", "Materialize")
	Column  string // Column name if applicable
	Message string // Human-readable description of the violated precondition
	Cause   error  // Underlying error cause
}

func (e *Error) Error() string {
	var msg string
	if e.Column != "" {
		msg = fmt.Sprintf("%s operation failed on column '%s': %s", e.Op, e.Column, e.Message)
	} else {
		msg = fmt.Sprintf("%s operation failed: %s", e.Op, e.Message)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error wrapping support
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches a Kind sentinel by kind and another *Error by value.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case Kind:
		return e.Kind == t
	case *Error:
		return e.Kind == t.Kind && e.Op == t.Op && e.Column == t.Column && e.Message == t.Message
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// NewResourceReleasedError reports use of a context after Release.
func NewResourceReleasedError(op string) *Error {
	return &Error{
		Kind:    ResourceReleased,
		Op:      op,
		Message: "context has been released",
	}
}

// NewColumnNotFoundError creates an error for access to a non-existent column
func NewColumnNotFoundError(op, column string) *Error {
	return &Error{
		Kind:    ColumnNotFound,
		Op:      op,
		Column:  column,
		Message: fmt.Sprintf("column not found: %s", column),
	}
}

// NewInvalidArgumentError creates an error for an argument that breaks an operation's contract
func NewInvalidArgumentError(op, message string) *Error {
	return &Error{
		Kind:    InvalidArgument,
		Op:      op,
		Message: message,
	}
}

// NewTypeMismatchError reports a buffer accessor used against the wrong dtype.
func NewTypeMismatchError(op, column, want, got string) *Error {
	return &Error{
		Kind:    InvalidArgument,
		Op:      op,
		Column:  column,
		Message: fmt.Sprintf("column has dtype %s, accessor requires %s", got, want),
	}
}

// NewEngineError wraps a failure raised while reading a source or executing a plan.
func NewEngineError(op, message string, cause error) *Error {
	return &Error{
		Kind:    EngineFailure,
		Op:      op,
		Message: message,
		Cause:   cause,
	}
}
