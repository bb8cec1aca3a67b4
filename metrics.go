package segkv

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    putCounter    prometheus.Counter
//	    scanHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordPut(duration time.Duration, err error) {
//	    p.putCounter.Inc()
//	}
type MetricsCollector interface {
	// RecordPut is called after each put operation.
	// duration is the total time taken, err is nil if successful.
	RecordPut(duration time.Duration, err error)

	// RecordGet is called after each get operation.
	// found reports whether the key held a value.
	RecordGet(duration time.Duration, found bool, err error)

	// RecordScan is called when a scan finishes or is abandoned.
	// emitted is the number of entries yielded, found how many held a value.
	RecordScan(emitted, found int, duration time.Duration, err error)

	// RecordClose is called after the store is closed.
	RecordClose(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordPut(time.Duration, error)            {}
func (NoopMetricsCollector) RecordGet(time.Duration, bool, error)      {}
func (NoopMetricsCollector) RecordScan(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordClose(time.Duration, error)          {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	PutCount       atomic.Int64
	PutErrors      atomic.Int64
	PutTotalNanos  atomic.Int64
	GetCount       atomic.Int64
	GetFound       atomic.Int64
	GetErrors      atomic.Int64
	GetTotalNanos  atomic.Int64
	ScanCount      atomic.Int64
	ScanErrors     atomic.Int64
	ScanEmitted    atomic.Int64
	ScanFound      atomic.Int64
	ScanTotalNanos atomic.Int64
	CloseCount     atomic.Int64
	CloseErrors    atomic.Int64
}

// RecordPut implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPut(duration time.Duration, err error) {
	b.PutCount.Add(1)
	b.PutTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.PutErrors.Add(1)
	}
}

// RecordGet implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGet(duration time.Duration, found bool, err error) {
	b.GetCount.Add(1)
	b.GetTotalNanos.Add(duration.Nanoseconds())
	if found {
		b.GetFound.Add(1)
	}
	if err != nil {
		b.GetErrors.Add(1)
	}
}

// RecordScan implements MetricsCollector.
func (b *BasicMetricsCollector) RecordScan(emitted, found int, duration time.Duration, err error) {
	b.ScanCount.Add(1)
	b.ScanEmitted.Add(int64(emitted))
	b.ScanFound.Add(int64(found))
	b.ScanTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ScanErrors.Add(1)
	}
}

// RecordClose implements MetricsCollector.
func (b *BasicMetricsCollector) RecordClose(_ time.Duration, err error) {
	b.CloseCount.Add(1)
	if err != nil {
		b.CloseErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		PutCount:     b.PutCount.Load(),
		PutErrors:    b.PutErrors.Load(),
		PutAvgNanos:  avgNanos(b.PutTotalNanos.Load(), b.PutCount.Load()),
		GetCount:     b.GetCount.Load(),
		GetFound:     b.GetFound.Load(),
		GetErrors:    b.GetErrors.Load(),
		GetAvgNanos:  avgNanos(b.GetTotalNanos.Load(), b.GetCount.Load()),
		ScanCount:    b.ScanCount.Load(),
		ScanErrors:   b.ScanErrors.Load(),
		ScanEmitted:  b.ScanEmitted.Load(),
		ScanFound:    b.ScanFound.Load(),
		ScanAvgNanos: avgNanos(b.ScanTotalNanos.Load(), b.ScanCount.Load()),
		CloseCount:   b.CloseCount.Load(),
		CloseErrors:  b.CloseErrors.Load(),
	}
}

func avgNanos(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	PutCount     int64
	PutErrors    int64
	PutAvgNanos  int64
	GetCount     int64
	GetFound     int64
	GetErrors    int64
	GetAvgNanos  int64
	ScanCount    int64
	ScanErrors   int64
	ScanEmitted  int64
	ScanFound    int64
	ScanAvgNanos int64
	CloseCount   int64
	CloseErrors  int64
}
