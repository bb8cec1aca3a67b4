package engine

import (
	"context"
	"iter"
	"slices"
)

// scanChunk bounds how many entries a scan produces per lock acquisition.
const scanChunk = 4096

// Entry is one key of a scan result. Found is false for keys that hold no
// value.
type Entry struct {
	Key   uint64
	Value []byte
	Found bool
}

// Scan yields one entry for every key in [start, end] in ascending order,
// including keys that were never written. Nothing is yielded when
// start > end. The engine lock is released between chunks, so writes made
// while iterating may or may not be observed by later chunks.
func (e *Engine) Scan(ctx context.Context, start, end uint64) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		if start > end {
			return
		}

		cursor := start
		buf := make([]Entry, 0, scanChunk)
		for {
			if err := ctx.Err(); err != nil {
				yield(Entry{}, err)
				return
			}

			var (
				last uint64
				err  error
			)
			buf, last, err = e.scanChunk(ctx, cursor, end, buf[:0])
			if err != nil {
				yield(Entry{}, err)
				return
			}
			for _, ent := range buf {
				if !yield(ent, nil) {
					return
				}
			}
			if last == end {
				return
			}
			cursor = last + 1
		}
	}
}

// scanChunk appends the entries for [cursor, last] to out, where last <= end
// is the end of the range the current segment, gap or chunk limit allows.
func (e *Engine) scanChunk(ctx context.Context, cursor, end uint64, out []Entry) ([]Entry, uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return out, 0, ErrClosed
	}
	if err := e.flush(ctx); err != nil {
		return out, 0, err
	}

	for {
		if e.hot.contains(cursor) {
			last := chunkEnd(cursor, min(end, e.hot.rng.Max))
			return e.emitResident(cursor, last, out), last, nil
		}

		if d, ok := e.meta.Find(cursor); ok {
			if err := e.swap(ctx, d); err != nil {
				return out, 0, err
			}
			continue
		}

		gapEnd := end
		if next, ok := e.nextKnownStart(cursor); ok && next-1 < gapEnd {
			gapEnd = next - 1
		}
		last := chunkEnd(cursor, gapEnd)
		return emitAbsent(cursor, last, out), last, nil
	}
}

// chunkEnd caps hi so that [lo, hi] holds at most scanChunk keys.
func chunkEnd(lo, hi uint64) uint64 {
	if hi-lo >= scanChunk {
		return lo + scanChunk - 1
	}
	return hi
}

// nextKnownStart returns the smallest start of a segment or of the hot range
// above key.
func (e *Engine) nextKnownStart(key uint64) (uint64, bool) {
	next, ok := e.meta.NextStart(key)
	if e.hot.valid && e.hot.rng.Min > key && (!ok || e.hot.rng.Min < next) {
		next, ok = e.hot.rng.Min, true
	}
	return next, ok
}

// emitResident appends dense entries for [lo, hi] from the hot tree.
func (e *Engine) emitResident(lo, hi uint64, out []Entry) []Entry {
	n := int(hi-lo) + 1
	i := 0
	e.hot.tree.Scan(lo, hi, func(k uint64, v []byte) bool {
		for ; lo+uint64(i) < k; i++ {
			out = append(out, Entry{Key: lo + uint64(i)})
		}
		out = append(out, Entry{Key: k, Value: slices.Clone(v), Found: true})
		i++
		return true
	})
	for ; i < n; i++ {
		out = append(out, Entry{Key: lo + uint64(i)})
	}
	return out
}

// emitAbsent appends absent entries for [lo, hi].
func emitAbsent(lo, hi uint64, out []Entry) []Entry {
	n := int(hi-lo) + 1
	for i := range n {
		out = append(out, Entry{Key: lo + uint64(i)})
	}
	return out
}
