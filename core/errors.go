package core

import (
	"errors"
	"fmt"
)

// Sentinel errors of the turn error taxonomy. Typed errors below wrap them
// so callers can branch with errors.Is and inspect details with errors.As.
var (
	// ErrTransportFailure indicates the generation capability was unreachable
	// or kept erroring after the bounded retry schedule.
	ErrTransportFailure = errors.New("transport failure")

	// ErrMalformedOutput indicates model output could not be extracted or
	// parsed against the declared schema (a formatting error).
	ErrMalformedOutput = errors.New("malformed output")

	// ErrSchemaViolation indicates structurally valid output that breaks a
	// semantic rule (a reasoning error). It is never retried automatically.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrBudgetExhausted indicates new work was declined because the turn's
	// time budget has run out.
	ErrBudgetExhausted = errors.New("time budget exhausted")

	// ErrNotFound is returned by repositories for unknown identifiers.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned by repositories on identity collisions.
	ErrAlreadyExists = errors.New("already exists")
)

// TransportError records a generation failure together with the number of
// attempts spent on it.
type TransportError struct {
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure after %d attempt(s): %v", e.Attempts, e.Err)
}

// Unwrap exposes the underlying provider error.
func (e *TransportError) Unwrap() error { return e.Err }

// Is matches ErrTransportFailure.
func (e *TransportError) Is(target error) bool { return target == ErrTransportFailure }

// MalformedOutputError carries the offending raw model text for diagnostics.
type MalformedOutputError struct {
	Raw string
	Err error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("malformed output: %v", e.Err)
}

// Unwrap exposes the parse or schema error.
func (e *MalformedOutputError) Unwrap() error { return e.Err }

// Is matches ErrMalformedOutput.
func (e *MalformedOutputError) Is(target error) bool { return target == ErrMalformedOutput }

// SchemaViolationError describes a semantically invalid structured result.
type SchemaViolationError struct {
	Field   string
	Message string
	Raw     string
}

func (e *SchemaViolationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schema violation on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("schema violation: %s", e.Message)
}

// Is matches ErrSchemaViolation.
func (e *SchemaViolationError) Is(target error) bool { return target == ErrSchemaViolation }

// NewSchemaViolation is a shorthand for a field-level violation.
func NewSchemaViolation(field, format string, args ...any) *SchemaViolationError {
	return &SchemaViolationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsRetryableOutput reports whether err is a formatting error that a
// corrective follow-up prompt may fix.
func IsRetryableOutput(err error) bool {
	return errors.Is(err, ErrMalformedOutput) && !errors.Is(err, ErrSchemaViolation)
}
