package engine

import "time"

// MetricsObserver defines the interface for observing engine events.
type MetricsObserver interface {
	// OnFlush is called when the write buffer has been drained into the tree.
	OnFlush(duration time.Duration, entries int, err error)

	// OnSwap is called when a segment has been loaded as the hot tree.
	OnSwap(duration time.Duration, segment uint64, keys int, err error)

	// OnSplit is called when an oversized hot tree has been split into two segments.
	OnSplit(duration time.Duration, lower, upper int, err error)

	// OnThroughput reports bytes processed.
	OnThroughput(name string, bytes int64)
}

// NoopMetricsObserver is a no-op implementation of MetricsObserver.
type NoopMetricsObserver struct{}

func (NoopMetricsObserver) OnFlush(time.Duration, int, error)        {}
func (NoopMetricsObserver) OnSwap(time.Duration, uint64, int, error) {}
func (NoopMetricsObserver) OnSplit(time.Duration, int, int, error)   {}
func (NoopMetricsObserver) OnThroughput(string, int64)               {}
