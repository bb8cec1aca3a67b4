package engine

import (
	"log/slog"

	"github.com/hupe1980/segkv/internal/bloom"
	"github.com/hupe1980/segkv/internal/resource"
)

const (
	// DefaultValueSize is the fixed value width in bytes.
	DefaultValueSize = 128
	// DefaultBufferCapacity is the number of buffered writes that triggers a flush.
	DefaultBufferCapacity = 1_000_000
	// DefaultSegmentMaxKeys is the number of resident keys that triggers a split.
	DefaultSegmentMaxKeys = 2_000_000
	// DefaultFilterBits is the membership filter size.
	DefaultFilterBits = bloom.DefaultBits
)

// Option defines a configuration option for the Engine.
type Option func(*Engine)

// WithValueSize sets the fixed value width. Shorter values are zero padded.
func WithValueSize(n int) Option {
	return func(e *Engine) {
		e.valueSize = n
	}
}

// WithBufferCapacity sets how many writes are buffered before a flush.
func WithBufferCapacity(n int) Option {
	return func(e *Engine) {
		e.bufferCapacity = n
	}
}

// WithSegmentMaxKeys sets the resident key count at which the hot tree is
// split into two segments.
func WithSegmentMaxKeys(n int) Option {
	return func(e *Engine) {
		e.segmentMaxKeys = n
	}
}

// WithFilterBits sets the membership filter size in bits. It must be a power
// of two and match the size of an existing persisted filter.
func WithFilterBits(bits uint64) Option {
	return func(e *Engine) {
		e.filterBits = bits
	}
}

// WithGapPolicy sets the policy for writes that fall between segments.
func WithGapPolicy(p GapPolicy) Option {
	return func(e *Engine) {
		if p != nil {
			e.policy = p
		}
	}
}

// WithLogger sets the logger for the engine.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetricsObserver sets the metrics observer for the engine.
func WithMetricsObserver(observer MetricsObserver) Option {
	return func(e *Engine) {
		if observer != nil {
			e.metrics = observer
		}
	}
}

// WithResourceController sets the resource controller for the engine.
// It takes precedence over WithMemoryLimit and WithIOLimit.
func WithResourceController(rc *resource.Controller) Option {
	return func(e *Engine) {
		e.rc = rc
	}
}

// WithMemoryLimit caps the bytes held by the resident tree. Reaching the
// cap splits the tree like reaching the segment size does.
// If set to 0, memory is unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(e *Engine) {
		e.resourceConfig.MemoryLimit = bytes
	}
}

// WithIOLimit throttles segment reads and writes to the given bytes per second.
// If set to 0, IO is unlimited.
func WithIOLimit(bytesPerSec int64) Option {
	return func(e *Engine) {
		e.resourceConfig.IOBytesPerSec = bytesPerSec
	}
}
