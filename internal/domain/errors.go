package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the core.
var (
	// ErrDataUnavailable is returned when required inputs are missing or
	// insufficient. Callers degrade to a documented conservative default
	// instead of fabricating a value.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrExternalService is returned when an external dependency keeps
	// failing after retries and circuit breaking. The core continues with
	// a typed "unavailable" result.
	ErrExternalService = errors.New("external service unavailable")

	// ErrCorruptedCacheEntry is returned when a durable cache payload fails
	// to deserialize. The entry is invalidated and the lookup degrades to a
	// miss; it never propagates as a crash.
	ErrCorruptedCacheEntry = errors.New("corrupted cache entry")
)

// ValidationError indicates malformed or wrong-shaped input. It is returned
// immediately at component boundaries with a specific message instead of
// failing deep inside a computation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError for a field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// InvariantViolationError indicates an arithmetic or configuration invariant
// was broken (weights not summing to 1.0, drawdown above 100%). Violations at
// configuration load are fatal at startup; runtime violations are flagged
// loudly, never silently clamped.
type InvariantViolationError struct {
	Invariant string
	Detail    string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violated: %s: %s", e.Invariant, e.Detail)
}

// NewInvariantViolation creates an InvariantViolationError.
func NewInvariantViolation(invariant, detail string) *InvariantViolationError {
	return &InvariantViolationError{Invariant: invariant, Detail: detail}
}
