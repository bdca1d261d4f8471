// Package etlerr defines the error taxonomy shared by every pipeline stage.
//
// Each stage returns errors that match exactly one of the sentinel kinds via
// errors.Is, so callers (the CLI, tests, metrics) can branch on the failure
// class without string matching:
//
//	if errors.Is(err, etlerr.ErrColumnNotFound) { ... }
//
// Context (operation, column) travels in *Error; the underlying cause stays
// reachable through errors.Unwrap / errors.As.
package etlerr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrIO reports an unreadable input (missing file, failed download).
	ErrIO = errors.New("io error")

	// ErrParse reports malformed delimited input.
	ErrParse = errors.New("parse error")

	// ErrColumnNotFound reports a referenced column that is absent.
	ErrColumnNotFound = errors.New("column not found")

	// ErrType reports an operation applied to an incompatible column domain.
	ErrType = errors.New("type error")

	// ErrConnection reports an unreachable or invalid database handle.
	ErrConnection = errors.New("connection error")

	// ErrSchema reports a destination schema mismatch in append mode.
	ErrSchema = errors.New("schema error")

	// ErrConfig reports an invalid stage configuration (unknown transform,
	// empty delimiter, unsupported storage kind).
	ErrConfig = errors.New("config error")
)

// Error decorates a sentinel Kind with the failing operation and, when known,
// the column involved.
type Error struct {
	Kind   error
	Op     string
	Column string
	Err    error
}

// New wraps err as kind for operation op.
func New(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Column wraps err as kind for operation op on a named column.
func Column(kind error, op, column string, err error) *Error {
	return &Error{Kind: kind, Op: op, Column: column, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Column != "" {
		fmt.Fprintf(&b, "column %q: ", e.Column)
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	} else {
		b.WriteString("error")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is reports whether target is this error's Kind.
func (e *Error) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }
