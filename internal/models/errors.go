package models

import "errors"

var (
	// ErrProvider marks a failed embedding or explanation call.
	ErrProvider = errors.New("provider error")
	// ErrBackendUnavailable marks an unreachable relational backend or a failed match call.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrMalformedInput marks a missing or empty query or author id.
	ErrMalformedInput = errors.New("malformed input")
	// ErrCorruptSnapshot marks a persisted store that exists but cannot be parsed.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
	// ErrPartialBatch marks a migration batch that failed as a unit.
	ErrPartialBatch = errors.New("partial batch failure")
	// ErrDimensionMismatch marks a vector whose length differs from the store's.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
