package store

import (
	"errors"
)

// Errors shared by the SQL-backed stores. Stores translate them into the
// task package's errors at their boundary.
var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an insert collides with an existing key.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when a row violates a constraint.
	// Check the wrapped error for the constraint details.
	ErrInvalidEntity = errors.New("invalid entity")
)

// IsNotFoundError reports whether err is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError reports whether err is or wraps ErrDuplicate.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
