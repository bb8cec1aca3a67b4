package main

import (
	"time"

	"github.com/hupe1980/segkv/internal/resource"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// promMetrics records store operations and engine events in a private
// Prometheus registry.
type promMetrics struct {
	registry *prometheus.Registry

	ops         *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	scanEntries *prometheus.CounterVec
	flushes     *prometheus.CounterVec
	flushed     prometheus.Counter
	swaps       *prometheus.CounterVec
	splits      *prometheus.CounterVec
	bytes       *prometheus.CounterVec
	memory      *prometheus.GaugeVec
}

func newPromMetrics() *promMetrics {
	m := &promMetrics{
		registry: prometheus.NewRegistry(),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "segkv_operations_total",
			Help: "Store operations by kind and result",
		}, []string{"op", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "segkv_operation_duration_seconds",
			Help:    "Store operation latency",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
		}, []string{"op"}),
		scanEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "segkv_scan_entries_total",
			Help: "Entries emitted by scans, split by whether a value was present",
		}, []string{"kind"}),
		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "segkv_flushes_total",
			Help: "Write buffer flushes",
		}, []string{"result"}),
		flushed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "segkv_flushed_entries_total",
			Help: "Entries moved from the write buffer into the hot tree",
		}),
		swaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "segkv_segment_swaps_total",
			Help: "Segments loaded as the hot tree",
		}, []string{"result"}),
		splits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "segkv_segment_splits_total",
			Help: "Hot tree splits",
		}, []string{"result"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "segkv_io_bytes_total",
			Help: "Bytes read and written by segment I/O",
		}, []string{"name"}),
		memory: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "segkv_memory_reserved_bytes",
			Help: "Bytes reserved from the shared memory budget at exit",
		}, []string{"pool"}),
	}

	m.registry.MustRegister(
		m.ops, m.latency, m.scanEntries,
		m.flushes, m.flushed, m.swaps, m.splits, m.bytes, m.memory,
		collectors.NewGoCollector(),
	)
	return m
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *promMetrics) observe(op string, d time.Duration, res string) {
	m.ops.WithLabelValues(op, res).Inc()
	m.latency.WithLabelValues(op).Observe(d.Seconds())
}

func (m *promMetrics) RecordPut(d time.Duration, err error) {
	m.observe("put", d, result(err))
}

func (m *promMetrics) RecordGet(d time.Duration, found bool, err error) {
	res := result(err)
	if err == nil && !found {
		res = "miss"
	}
	m.observe("get", d, res)
}

func (m *promMetrics) RecordScan(emitted, found int, d time.Duration, err error) {
	m.observe("scan", d, result(err))
	m.scanEntries.WithLabelValues("found").Add(float64(found))
	m.scanEntries.WithLabelValues("empty").Add(float64(emitted - found))
}

func (m *promMetrics) RecordClose(d time.Duration, err error) {
	m.observe("close", d, result(err))
}

func (m *promMetrics) OnFlush(_ time.Duration, entries int, err error) {
	m.flushes.WithLabelValues(result(err)).Inc()
	if err == nil {
		m.flushed.Add(float64(entries))
	}
}

func (m *promMetrics) OnSwap(_ time.Duration, _ uint64, _ int, err error) {
	m.swaps.WithLabelValues(result(err)).Inc()
}

func (m *promMetrics) OnSplit(_ time.Duration, _, _ int, err error) {
	m.splits.WithLabelValues(result(err)).Inc()
}

func (m *promMetrics) OnThroughput(name string, n int64) {
	m.bytes.WithLabelValues(name).Add(float64(n))
}

func (m *promMetrics) observeUsage(u resource.Usage) {
	m.memory.WithLabelValues(resource.PoolHot.String()).Set(float64(u.Hot))
	m.memory.WithLabelValues(resource.PoolCache.String()).Set(float64(u.Cache))
}

// WriteTextfile writes the registry in the node exporter textfile format.
func (m *promMetrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
