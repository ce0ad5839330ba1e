// Package errdefs holds the error taxonomy shared by the imaging packages.
// Callers match errors with errors.Is against the sentinel values.
package errdefs

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks invalid partition, kernel or geometry parameters.
	// It is always raised before any partition is dispatched.
	ErrConfiguration = errors.New("configuration error")

	// ErrShapeMismatch marks disagreeing channel or polarisation shapes
	// between an image and a visibility set.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrExecutorFailure marks a partition computation that failed while running.
	ErrExecutorFailure = errors.New("executor failure")
)

// Configurationf returns an error wrapping ErrConfiguration.
func Configurationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// ShapeMismatchf returns an error wrapping ErrShapeMismatch.
func ShapeMismatchf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrShapeMismatch, fmt.Sprintf(format, args...))
}

// PartitionError reports the failure of a single dispatched partition.
type PartitionError struct {
	Index int
	Err   error
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("%v: partition %d: %v", ErrExecutorFailure, e.Index, e.Err)
}

// Unwrap exposes both the executor sentinel and the underlying cause.
func (e *PartitionError) Unwrap() []error {
	return []error{ErrExecutorFailure, e.Err}
}
