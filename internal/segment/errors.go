package segment

import "errors"

var (
	// ErrCorrupt is returned when a segment is truncated or its keys are not ascending.
	ErrCorrupt = errors.New("segment: corrupt")

	// ErrOutOfOrder is returned by Writer.Append when keys are not strictly ascending.
	ErrOutOfOrder = errors.New("segment: keys out of order")

	// ErrValueSize is returned when a value does not match the configured width.
	ErrValueSize = errors.New("segment: value size mismatch")
)
