package segkv

import (
	"errors"
	"fmt"

	"github.com/hupe1980/segkv/internal/engine"
)

var (
	// ErrClosed is returned when the store has been closed.
	ErrClosed = errors.New("segkv: closed")

	// ErrCorrupt is returned when persisted state fails validation.
	ErrCorrupt = errors.New("segkv: corrupt data")

	// ErrInvalidArgument is returned for invalid options or arguments.
	ErrInvalidArgument = errors.New("segkv: invalid argument")

	// ErrInvalidRange is returned when a key range cannot be collected.
	ErrInvalidRange = errors.New("segkv: invalid range")
)

// ErrValueTooLong indicates a value longer than the configured value size.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrValueTooLong struct {
	Max    int
	Actual int
	cause  error
}

func (e *ErrValueTooLong) Error() string {
	return fmt.Sprintf("segkv: value too long: %d bytes exceeds %d", e.Actual, e.Max)
}

func (e *ErrValueTooLong) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var tl *engine.ValueTooLongError
	if errors.As(err, &tl) {
		return &ErrValueTooLong{Max: tl.Max, Actual: tl.Actual, cause: err}
	}

	if errors.Is(err, engine.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	if errors.Is(err, engine.ErrCorrupt) {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if errors.Is(err, engine.ErrInvalidArgument) {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	return err
}
