package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/segkv/blobstore"
	"github.com/hupe1980/segkv/internal/bloom"
	"github.com/hupe1980/segkv/internal/bptree"
	"github.com/hupe1980/segkv/internal/metatable"
	"github.com/hupe1980/segkv/internal/resource"
	"github.com/hupe1980/segkv/internal/wbuf"
	"golang.org/x/sync/errgroup"
)

// Engine is the segkv storage engine. It is safe for concurrent use.
type Engine struct {
	mu    sync.Mutex
	store blobstore.BlobStore

	valueSize      int
	bufferCapacity int
	segmentMaxKeys int
	filterBits     uint64
	policy         GapPolicy

	logger         *slog.Logger
	metrics        MetricsObserver
	rc             *resource.Controller
	resourceConfig resource.Config

	filter *bloom.Filter
	meta   *metatable.Table
	buf    *wbuf.Buffer
	hot    hotState

	filteredGets atomic.Uint64
	closed       bool
}

// Open opens the engine on store, loading the metatable and the filter if
// they exist.
func Open(ctx context.Context, store blobstore.BlobStore, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: nil blob store", ErrInvalidArgument)
	}

	e := &Engine{
		store:          store,
		valueSize:      DefaultValueSize,
		bufferCapacity: DefaultBufferCapacity,
		segmentMaxKeys: DefaultSegmentMaxKeys,
		filterBits:     DefaultFilterBits,
		policy:         NearestBoundary{},
		logger:         slog.New(slog.DiscardHandler),
		metrics:        NoopMetricsObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.valueSize < 1 {
		return nil, fmt.Errorf("%w: value size %d", ErrInvalidArgument, e.valueSize)
	}
	if e.bufferCapacity < 1 {
		return nil, fmt.Errorf("%w: buffer capacity %d", ErrInvalidArgument, e.bufferCapacity)
	}
	if e.segmentMaxKeys < 2 {
		return nil, fmt.Errorf("%w: segment max keys %d", ErrInvalidArgument, e.segmentMaxKeys)
	}
	if e.rc == nil && (e.resourceConfig.MemoryLimit > 0 || e.resourceConfig.IOBytesPerSec > 0) {
		e.rc = resource.NewController(e.resourceConfig)
	}

	filter, err := bloom.Load(ctx, store, e.filterBits)
	if err != nil {
		if errors.Is(err, bloom.ErrInvalidSize) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		if errors.Is(err, bloom.ErrSizeMismatch) {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		return nil, fmt.Errorf("load filter: %w", err)
	}

	meta, err := metatable.Load(ctx, store)
	if err == nil {
		err = meta.Validate()
	}
	if err != nil {
		if errors.Is(err, metatable.ErrCorrupt) {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		return nil, fmt.Errorf("load metatable: %w", err)
	}

	e.filter = filter
	e.meta = meta
	e.buf = wbuf.New(e.bufferCapacity)
	e.hot = hotState{tree: bptree.New()}

	e.logger.Info("Engine opened",
		"segments", meta.Len(),
		"valueSize", e.valueSize,
		"bufferCapacity", e.bufferCapacity,
		"segmentMaxKeys", e.segmentMaxKeys,
	)
	return e, nil
}

// ValueSize returns the fixed value width.
func (e *Engine) ValueSize() int { return e.valueSize }

// Put buffers a write of value under key. The value is zero padded to the
// value size. Writes become visible to Get and Scan, which flush the buffer
// first.
func (e *Engine) Put(ctx context.Context, key uint64, value []byte) error {
	if len(value) > e.valueSize {
		return &ValueTooLongError{Max: e.valueSize, Actual: len(value)}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	padded := make([]byte, e.valueSize)
	copy(padded, value)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	e.filter.Add(key)
	e.buf.Add(key, padded)
	if e.buf.Full() {
		return e.flush(ctx)
	}
	return nil
}

// Get returns the value stored under key. Keys the filter rules out are
// answered without flushing or touching storage.
func (e *Engine) Get(ctx context.Context, key uint64) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, false, ErrClosed
	}

	if !e.filter.MayContain(key) {
		e.filteredGets.Add(1)
		return nil, false, nil
	}

	if err := e.flush(ctx); err != nil {
		return nil, false, err
	}

	ok, err := e.resolve(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}

	v, found := e.hot.tree.Search(key)
	if !found {
		return nil, false, nil
	}
	return slices.Clone(v), true, nil
}

// Flush applies all buffered writes.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	return e.flush(ctx)
}

// Close flushes buffered writes, saves the hot tree and persists the
// metatable and the filter. Any later call returns ErrClosed.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	e.closed = true

	var errs []error
	if err := e.flush(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := e.evict(ctx); err != nil {
		errs = append(errs, err)
	}

	// Persist both even if the other fails.
	var g errgroup.Group
	g.Go(func() error {
		if err := e.meta.Save(ctx, e.store); err != nil {
			return fmt.Errorf("persist metatable: %w", err)
		}
		e.logger.Info("Metatable persisted", "segments", e.meta.Len())
		return nil
	})
	g.Go(func() error {
		if err := e.filter.Save(ctx, e.store); err != nil {
			return fmt.Errorf("persist filter: %w", err)
		}
		e.logger.Info("Filter persisted", "bits", e.filter.Size(), "set", e.filter.Count())
		return nil
	})
	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}

	e.rc.Release(resource.PoolHot, e.hot.charged)
	e.hot.charged = 0

	err := errors.Join(errs...)
	if err != nil {
		e.logger.Error("Engine closed with errors", "error", err)
	} else {
		e.logger.Info("Engine closed", "segments", e.meta.Len())
	}
	return err
}

// Stats is a point-in-time summary of engine state.
type Stats struct {
	Segments      int
	HotSegment    int64 // -1 when the hot tree has no segment yet
	HotKeys       int
	HotRange      Range
	HotValid      bool
	Buffered      int
	FilterBitsSet uint64
	FilterFPR     float64
	FilteredGets  uint64
	MemoryUsage   int64
}

// Stats returns engine statistics.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Stats{
		Segments:      e.meta.Len(),
		HotSegment:    -1,
		HotKeys:       e.hot.tree.Len(),
		HotRange:      e.hot.rng,
		HotValid:      e.hot.valid,
		Buffered:      e.buf.Len(),
		FilterBitsSet: e.filter.Count(),
		FilterFPR:     e.filter.FalsePositiveRate(),
		FilteredGets:  e.filteredGets.Load(),
		MemoryUsage:   e.rc.InUse(resource.PoolHot),
	}
	if e.hot.hasID {
		s.HotSegment = int64(e.hot.id)
	}
	return s
}

// Descriptors returns the segment descriptors in creation order.
func (e *Engine) Descriptors() []metatable.Descriptor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.meta.Descriptors()
}
