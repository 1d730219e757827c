package storage

import "errors"

var (
	// ErrNotFound is returned when no record exists for the requested key.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when an insert collides with an existing
	// natural key. Fact tables are append-only; rewriting a recorded
	// snapshot, move, or trade is never allowed.
	ErrDuplicateKey = errors.New("duplicate key: records are append-only")

	// ErrInvalidInput is returned for nil records or empty keys before any
	// statement is issued.
	ErrInvalidInput = errors.New("invalid input")
)
