package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned when an operation is attempted on a closed engine.
	ErrClosed = errors.New("engine closed")

	// ErrInvalidArgument is returned when an option or argument is invalid.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrCorrupt is returned when persisted state is inconsistent.
	ErrCorrupt = errors.New("data corruption detected")
)

// ValueTooLongError is returned by Put when a value exceeds the configured value size.
type ValueTooLongError struct {
	Max    int
	Actual int
}

func (e *ValueTooLongError) Error() string {
	return fmt.Sprintf("value too long: %d bytes exceeds %d", e.Actual, e.Max)
}

func (e *ValueTooLongError) Unwrap() error { return ErrInvalidArgument }
