package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/segkv/internal/bptree"
	"github.com/hupe1980/segkv/internal/resource"
	"github.com/hupe1980/segkv/internal/wbuf"
)

// flush drains the write buffer into the hot tree in key order. Writes not
// applied because of an error stay buffered for the next flush.
func (e *Engine) flush(ctx context.Context) error {
	n := e.buf.Len()
	if n == 0 {
		return nil
	}

	start := time.Now()
	e.logger.Debug("Flush started", "entries", n)

	err := e.buf.Drain(func(ent wbuf.Entry) error {
		return e.apply(ctx, ent)
	})
	e.metrics.OnFlush(time.Since(start), n, err)
	if err != nil {
		e.logger.Error("Flush failed", "entries", n, "error", err)
		return fmt.Errorf("flush: %w", err)
	}

	e.logger.Debug("Flush completed", "entries", n, "duration", time.Since(start))
	return nil
}

// apply inserts one buffered write, swapping or splitting as needed.
func (e *Engine) apply(ctx context.Context, ent wbuf.Entry) error {
	if err := e.resolveForWrite(ctx, ent.Key); err != nil {
		return err
	}

	reserved, full := e.reserve()
	if full {
		if err := e.flushSplit(ctx); err != nil {
			return err
		}
		if err := e.resolveForWrite(ctx, ent.Key); err != nil {
			return err
		}
		// A freshly split half always has room by key count; a tight
		// memory budget only skips the charge.
		reserved, _ = e.reserve()
	}

	if !e.hot.tree.Insert(ent.Key, ent.Value) && reserved {
		e.release(e.recordBytes())
	}
	return nil
}

// reserve charges one record against the memory budget. full reports that
// the hot tree must be split first.
func (e *Engine) reserve() (reserved, full bool) {
	n := e.hot.tree.Len()
	if n >= e.segmentMaxKeys {
		return false, true
	}
	if err := e.rc.Reserve(resource.PoolHot, e.recordBytes()); err != nil {
		return false, n >= 2
	}
	e.hot.charged += e.recordBytes()
	return true, false
}

// flushSplit writes the hot tree out as two segments split at its median
// key. The lower half reuses the hot segment id. Afterwards no tree is
// resident.
func (e *Engine) flushSplit(ctx context.Context) error {
	start := time.Now()
	total := e.hot.tree.Len()
	split, _ := e.hot.tree.MedianKey()

	if !e.hot.hasID {
		d := e.meta.Alloc()
		e.hot.id, e.hot.hasID = d.ID, true
	}
	lowerID := e.hot.id

	lower, err := e.writeSegment(ctx, lowerID, func(w bptree.RecordWriter) (bptree.Summary, error) {
		return e.hot.tree.SaveUntil(w, split)
	})
	if err != nil {
		e.metrics.OnSplit(time.Since(start), 0, 0, err)
		return err
	}
	if err := e.meta.Update(descriptor(lowerID, lower)); err != nil {
		return err
	}
	e.release(int64(lower.Count) * e.recordBytes())

	// The hot id now names the lower segment; what stays resident is the
	// upper part without a segment of its own.
	e.hot.hasID = false
	if minKey, ok := e.hot.tree.MinKey(); ok {
		e.hot.rng.Min = minKey
	} else {
		e.hot.clear()
	}

	upperCount := 0
	if !e.hot.tree.IsEmpty() {
		d := e.meta.Alloc()
		e.hot.id, e.hot.hasID = d.ID, true
		upper, err := e.writeSegment(ctx, d.ID, e.hot.tree.Save)
		if err != nil {
			e.metrics.OnSplit(time.Since(start), lower.Count, 0, err)
			return err
		}
		if err := e.meta.Update(descriptor(d.ID, upper)); err != nil {
			return err
		}
		upperCount = upper.Count
	}

	e.release(e.hot.charged)
	e.hot.clear()

	e.metrics.OnSplit(time.Since(start), lower.Count, upperCount, nil)
	e.logger.Debug("Segment split",
		"segment", lowerID,
		"keys", total,
		"split", split,
		"lower", lower.Count,
		"upper", upperCount,
	)
	return nil
}
