package brackets

import (
	"errors"
	"fmt"
)

// Sentinels matched with errors.Is by callers that only care about the class.
var (
	ErrValidation    = errors.New("validation failed")
	ErrStateConflict = errors.New("operation conflicts with current state")
	ErrStructural    = errors.New("bracket invariant violated")
	ErrNotFound      = errors.New("not found")
)

// ValidationError reports a malformed or rule-violating input. Nothing was changed.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// StateConflictError reports an operation that is invalid for the current
// match or slot status.
type StateConflictError struct {
	Op     string
	Reason string
}

func (e *StateConflictError) Error() string {
	if e.Op == "" {
		return "state conflict: " + e.Reason
	}
	return fmt.Sprintf("state conflict: %s: %s", e.Op, e.Reason)
}

func (e *StateConflictError) Unwrap() error { return ErrStateConflict }

// StructuralError rejects a whole build or advancement step.
type StructuralError struct {
	Reason string
}

func (e *StructuralError) Error() string { return "structural: " + e.Reason }

func (e *StructuralError) Unwrap() error { return ErrStructural }

// NotFoundError reports a missing match, slot, participant or tournament.
type NotFoundError struct {
	Entity string
	ID     int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func conflictf(op, format string, args ...any) error {
	return &StateConflictError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

func structuralf(format string, args ...any) error {
	return &StructuralError{Reason: fmt.Sprintf(format, args...)}
}
