// Package coreerrors holds the sentinel error taxonomy shared across
// the store's packages: InvalidKey, InvalidValue, BackendFailure,
// Poisoned, ConflictingAssumption. MissingResource is the typed
// resource.MissingResourceError. Programmer errors (invalid key length,
// conflicting assume_key) are raised synchronously as plain errors;
// backend and durability failures are returned through futures and the
// KVStore façade instead.
package coreerrors

import "errors"

var (
	// ErrInvalidKey is returned when a key's length falls outside [1, 255].
	ErrInvalidKey = errors.New("coredb: invalid key")

	// ErrInvalidValue is returned when a value exceeds the maximum size.
	ErrInvalidValue = errors.New("coredb: invalid value")

	// ErrBackendFailure wraps an unrecoverable storage backend error.
	ErrBackendFailure = errors.New("coredb: backend failure")

	// ErrPoisoned is returned by any operation attempted after the
	// committer has poisoned the database handle.
	ErrPoisoned = errors.New("coredb: database handle poisoned")

	// ErrConflictingAssumption is raised when a transaction's assume_key
	// is called twice for the same key with different values.
	ErrConflictingAssumption = errors.New("coredb: conflicting read assumption")
)
