package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned by compare-and-swap updates when the
	// document changed since it was read.
	ErrVersionConflict = errors.New("version conflict")

	// ErrValueTooLong is returned when a value does not fit its column.
	ErrValueTooLong = errors.New("value too long")
)

// DuplicateError reports a unique constraint violation on Field.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s", e.Field)
}
