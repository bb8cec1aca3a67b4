package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/segkv/internal/bptree"
	"github.com/hupe1980/segkv/internal/metatable"
	"github.com/hupe1980/segkv/internal/resource"
	"github.com/hupe1980/segkv/internal/segment"
)

// hotState is the resident tree and the key range it answers for. The range
// covers every key in the tree. When hasID is set the tree was loaded from,
// or last saved to, segment id.
type hotState struct {
	tree    *bptree.Tree
	id      uint64
	hasID   bool
	rng     Range
	valid   bool
	charged int64
}

func (h *hotState) contains(key uint64) bool {
	return h.valid && h.rng.Contains(key)
}

func (h *hotState) widen(key uint64) {
	if !h.valid {
		h.rng = Range{Min: key, Max: key}
		h.valid = true
		return
	}
	h.rng.Min = min(h.rng.Min, key)
	h.rng.Max = max(h.rng.Max, key)
}

func (h *hotState) clear() {
	h.hasID = false
	h.valid = false
	h.rng = Range{}
}

func (e *Engine) recordBytes() int64 {
	return int64(segment.RecordSize(e.valueSize))
}

func (e *Engine) release(bytes int64) {
	bytes = min(bytes, e.hot.charged)
	e.rc.Release(resource.PoolHot, bytes)
	e.hot.charged -= bytes
}

// resolve makes the segment owning key resident for a read. It reports
// false when no segment covers key.
func (e *Engine) resolve(ctx context.Context, key uint64) (bool, error) {
	if e.hot.contains(key) {
		return true, nil
	}
	d, ok := e.meta.Find(key)
	if !ok {
		return false, nil
	}
	if err := e.swap(ctx, d); err != nil {
		return false, err
	}
	return true, nil
}

// resolveForWrite makes a tree resident whose range includes key. Keys in a
// gap between segments are placed by the gap policy.
func (e *Engine) resolveForWrite(ctx context.Context, key uint64) error {
	if e.hot.contains(key) {
		return nil
	}
	if d, ok := e.meta.Find(key); ok {
		return e.swap(ctx, d)
	}

	candidates := e.candidates()
	d, ok := e.policy.Choose(key, e.hot.rng, e.hot.valid, candidates)
	if !ok {
		widened := Range{Min: key, Max: key}
		if e.hot.valid {
			widened = Range{Min: min(e.hot.rng.Min, key), Max: max(e.hot.rng.Max, key)}
		}
		if other, overlap := overlapping(widened, candidates, nil); overlap {
			return fmt.Errorf("%w: gap policy widens hot range over segment %d", ErrInvalidArgument, other.ID)
		}
		e.hot.widen(key)
		return nil
	}

	if !containsID(candidates, d.ID) {
		return fmt.Errorf("%w: gap policy chose unknown segment %d", ErrInvalidArgument, d.ID)
	}
	widened := Range{Min: min(d.Start, key), Max: max(d.End, key)}
	if other, overlap := overlapping(widened, candidates, &d); overlap {
		return fmt.Errorf("%w: gap policy widens segment %d over segment %d", ErrInvalidArgument, d.ID, other.ID)
	}

	if err := e.swap(ctx, d); err != nil {
		return err
	}
	e.hot.widen(key)
	return nil
}

// candidates returns the stored segments other than the hot one.
func (e *Engine) candidates() []metatable.Descriptor {
	descs := e.meta.Descriptors()
	out := descs[:0]
	for _, d := range descs {
		if d.Count == 0 || (e.hot.hasID && d.ID == e.hot.id) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func containsID(descs []metatable.Descriptor, id uint64) bool {
	for _, d := range descs {
		if d.ID == id {
			return true
		}
	}
	return false
}

func overlapping(r Range, descs []metatable.Descriptor, skip *metatable.Descriptor) (metatable.Descriptor, bool) {
	for _, d := range descs {
		if skip != nil && d.ID == skip.ID {
			continue
		}
		if d.Start <= r.Max && r.Min <= d.End {
			return d, true
		}
	}
	return metatable.Descriptor{}, false
}

// swap evicts the hot tree and loads segment d in its place.
func (e *Engine) swap(ctx context.Context, d metatable.Descriptor) error {
	start := time.Now()
	if err := e.evict(ctx); err != nil {
		e.metrics.OnSwap(time.Since(start), d.ID, 0, err)
		return err
	}

	err := e.load(ctx, d)
	e.metrics.OnSwap(time.Since(start), d.ID, e.hot.tree.Len(), err)
	if err != nil {
		return err
	}

	e.hot.id, e.hot.hasID = d.ID, true
	e.hot.rng = Range{Min: d.Start, Max: d.End}
	e.hot.valid = true

	e.logger.Debug("Segment swapped in", "segment", d.ID, "start", d.Start, "end", d.End, "keys", d.Count)
	return nil
}

// evict saves a non-empty hot tree to its segment, allocating one if the
// tree has none, and leaves no tree resident.
func (e *Engine) evict(ctx context.Context) error {
	if e.hot.tree.IsEmpty() {
		e.hot.clear()
		return nil
	}

	if !e.hot.hasID {
		d := e.meta.Alloc()
		e.hot.id, e.hot.hasID = d.ID, true
	}

	id := e.hot.id
	sum, err := e.writeSegment(ctx, id, e.hot.tree.Save)
	if err != nil {
		return err
	}
	if err := e.meta.Update(descriptor(id, sum)); err != nil {
		return err
	}

	e.release(e.hot.charged)
	e.hot.clear()
	return nil
}

// load reads segment d into the empty hot tree.
func (e *Engine) load(ctx context.Context, d metatable.Descriptor) error {
	bytes := int64(d.Count) * e.recordBytes()
	if err := e.rc.Reserve(resource.PoolHot, bytes); err != nil {
		return fmt.Errorf("load segment %d: %w", d.ID, err)
	}
	e.hot.charged += bytes

	err := e.readSegment(ctx, d)
	if err != nil {
		e.hot.tree.Reset()
		e.release(e.hot.charged)
		return fmt.Errorf("load segment %d: %w", d.ID, err)
	}

	e.metrics.OnThroughput("segment_read", bytes)
	e.logger.Debug("Segment loaded", "segment", d.ID, "keys", d.Count)
	return nil
}

func (e *Engine) readSegment(ctx context.Context, d metatable.Descriptor) error {
	blob, err := e.store.Open(ctx, d.Name())
	if err != nil {
		return err
	}
	defer blob.Close()

	want := int64(d.Count) * e.recordBytes()
	if blob.Size() != want {
		return fmt.Errorf("%w: segment is %d bytes, want %d", ErrCorrupt, blob.Size(), want)
	}

	rc, err := blob.ReadRange(ctx, 0, blob.Size())
	if err != nil {
		return err
	}
	defer rc.Close()

	r := segment.NewReader(resource.NewReader(ctx, rc, e.rc), e.valueSize)
	if err := e.hot.tree.Load(r); err != nil {
		return err
	}

	minKey, _ := e.hot.tree.MinKey()
	maxKey, _ := e.hot.tree.MaxKey()
	if uint64(e.hot.tree.Len()) != d.Count || minKey != d.Start || maxKey != d.End {
		return fmt.Errorf("%w: segment holds %d keys in [%d, %d], metatable says %d in [%d, %d]",
			ErrCorrupt, e.hot.tree.Len(), minKey, maxKey, d.Count, d.Start, d.End)
	}
	return nil
}

// segmentSink streams records into a blob and publishes it on Commit.
type segmentSink struct {
	w    *segment.Writer
	blob interface {
		Close() error
	}
}

func (s *segmentSink) Append(key uint64, value []byte) error {
	return s.w.Append(key, value)
}

func (s *segmentSink) Commit() error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	return s.blob.Close()
}

// writeSegment stores the records produced by save as segment id. The
// segment is either fully written or left as it was.
func (e *Engine) writeSegment(ctx context.Context, id uint64, save func(bptree.RecordWriter) (bptree.Summary, error)) (bptree.Summary, error) {
	blob, err := e.store.Create(ctx, metatable.SegmentName(id))
	if err != nil {
		return bptree.Summary{}, fmt.Errorf("write segment %d: %w", id, err)
	}

	sink := &segmentSink{
		w:    segment.NewWriter(resource.NewWriter(ctx, blob, e.rc), e.valueSize),
		blob: blob,
	}
	sum, err := save(sink)
	if err != nil {
		_ = blob.Abort()
		e.logger.Error("Segment write failed", "segment", id, "error", err)
		return bptree.Summary{}, fmt.Errorf("write segment %d: %w", id, err)
	}

	e.metrics.OnThroughput("segment_write", int64(sum.Count)*e.recordBytes())
	e.logger.Debug("Segment saved", "segment", id, "start", sum.Start, "end", sum.End, "count", sum.Count)
	return sum, nil
}

func descriptor(id uint64, sum bptree.Summary) metatable.Descriptor {
	return metatable.Descriptor{
		ID:    id,
		Start: sum.Start,
		End:   sum.End,
		Count: uint64(sum.Count),
	}
}
