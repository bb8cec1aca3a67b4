package segkv

import (
	"log/slog"

	"github.com/hupe1980/segkv/internal/engine"
	"github.com/hupe1980/segkv/internal/fs"
	"github.com/hupe1980/segkv/internal/resource"
)

// GapPolicy decides which range absorbs a write to a key outside every
// stored range.
type GapPolicy = engine.GapPolicy

// NearestBoundary is the default GapPolicy.
type NearestBoundary = engine.NearestBoundary

// MetricsObserver receives engine-internal events such as flushes, swaps
// and splits.
type MetricsObserver = engine.MetricsObserver

// FileSystem is the file abstraction used by local stores.
type FileSystem = fs.FileSystem

// ResourceController holds a memory budget and an IO limit. One controller
// can be shared by a DB and the block cache of its store.
type ResourceController = resource.Controller

// NewResourceController returns a controller with the given limits.
// Zero means unlimited.
func NewResourceController(memoryLimit, ioBytesPerSec int64) *ResourceController {
	return resource.NewController(resource.Config{MemoryLimit: memoryLimit, IOBytesPerSec: ioBytesPerSec})
}

type options struct {
	engineOpts       []engine.Option
	metricsCollector MetricsCollector
	logger           *Logger
	fileSystem       fs.FileSystem
}

// Option configures Open.
type Option func(*options)

func applyOptions(optFns []Option) options {
	opts := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

// WithValueSize sets the fixed value width in bytes. The width is part of
// the on-disk format and must not change between opens.
func WithValueSize(n int) Option {
	return func(o *options) {
		o.engineOpts = append(o.engineOpts, engine.WithValueSize(n))
	}
}

// WithBufferCapacity sets how many writes are buffered before they are
// sorted and applied.
func WithBufferCapacity(n int) Option {
	return func(o *options) {
		o.engineOpts = append(o.engineOpts, engine.WithBufferCapacity(n))
	}
}

// WithSegmentMaxKeys sets the resident key count at which a range is split
// in two.
func WithSegmentMaxKeys(n int) Option {
	return func(o *options) {
		o.engineOpts = append(o.engineOpts, engine.WithSegmentMaxKeys(n))
	}
}

// WithFilterBits sets the membership filter size. It must be a power of two
// and must match an existing filter.
func WithFilterBits(bits uint64) Option {
	return func(o *options) {
		o.engineOpts = append(o.engineOpts, engine.WithFilterBits(bits))
	}
}

// WithGapPolicy replaces the NearestBoundary gap policy.
func WithGapPolicy(p GapPolicy) Option {
	return func(o *options) {
		o.engineOpts = append(o.engineOpts, engine.WithGapPolicy(p))
	}
}

// WithMemoryLimit caps the bytes held by resident records. Reaching the cap
// splits the resident range early. Zero means unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.engineOpts = append(o.engineOpts, engine.WithMemoryLimit(bytes))
	}
}

// WithIOLimit throttles segment reads and writes to bytesPerSec.
// Zero means unlimited.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.engineOpts = append(o.engineOpts, engine.WithIOLimit(bytesPerSec))
	}
}

// WithResourceController makes the DB draw from rc. It takes precedence
// over WithMemoryLimit and WithIOLimit.
func WithResourceController(rc *ResourceController) Option {
	return func(o *options) {
		o.engineOpts = append(o.engineOpts, engine.WithResourceController(rc))
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &segkv.BasicMetricsCollector{}
//	db, _ := segkv.Open(ctx, segkv.Local("./data"), segkv.WithMetricsCollector(metrics))
//	// ... use db ...
//	stats := metrics.GetStats()
//	fmt.Printf("Puts: %d, Avg latency: %dns\n", stats.PutCount, stats.PutAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithMetricsObserver forwards engine events to observer.
func WithMetricsObserver(observer MetricsObserver) Option {
	return func(o *options) {
		o.engineOpts = append(o.engineOpts, engine.WithMetricsObserver(observer))
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := segkv.NewJSONLogger(slog.LevelInfo)
//	db, _ := segkv.Open(ctx, segkv.Local("./data"), segkv.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithFileSystem sets the file system used by Local backends.
func WithFileSystem(f FileSystem) Option {
	return func(o *options) {
		o.fileSystem = f
	}
}
