// Package apierr defines the error taxonomy shared by the ingest, query,
// and drift-query HTTP surfaces.
package apierr

import "fmt"

// Kind is one of the fixed error categories every service boundary maps to
// an HTTP status.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindInsufficientData Kind = "insufficient_data"
	KindTimeout          Kind = "timeout"
	KindUnavailable      Kind = "unavailable"
	KindInternal         Kind = "internal"
)

// Error is the typed error every service method returns for a boundary
// condition; Path identifies the offending field or rule for validation
// errors.
type Error struct {
	Kind    Kind
	Message string
	Path    string
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// New constructs an Error of the given kind with no offending path.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Validation constructs a validation Error citing the offending path.
func Validation(path, message string) *Error {
	return &Error{Kind: KindValidation, Message: message, Path: path}
}

// NotFound constructs a not_found Error.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Conflict constructs a conflict Error.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// InsufficientData constructs an insufficient_data Error.
func InsufficientData(message string) *Error {
	return &Error{Kind: KindInsufficientData, Message: message}
}

// As extracts an *Error from err, returning (nil, false) when err isn't one.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}
