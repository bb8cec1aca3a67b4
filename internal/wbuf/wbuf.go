package wbuf

// Entry is a pending write.
type Entry struct {
	Key   uint64
	Value []byte
}

// Buffer accumulates writes in arrival order until it is drained.
// Capacity is a flush threshold, not a memory bound.
type Buffer struct {
	entries []Entry
	scratch []Entry
	cap     int
}

// New returns a buffer that reports Full after capacity writes.
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{cap: capacity}
}

// Add appends a write. The buffer keeps value without copying it.
func (b *Buffer) Add(key uint64, value []byte) {
	b.entries = append(b.entries, Entry{Key: key, Value: value})
}

// Len returns the number of pending writes.
func (b *Buffer) Len() int { return len(b.entries) }

// Cap returns the flush threshold.
func (b *Buffer) Cap() int { return b.cap }

// Full reports whether the buffer reached its threshold.
func (b *Buffer) Full() bool { return len(b.entries) >= b.cap }

// Drain sorts the pending writes by key, keeping arrival order among equal
// keys, and passes them to fn in that order. If fn fails, the failed write
// and every write after it stay buffered in sorted order, so the next Drain
// resumes where this one stopped.
func (b *Buffer) Drain(fn func(Entry) error) error {
	b.scratch = MergeSortWith(b.entries, b.scratch)
	clear(b.scratch)

	for i, e := range b.entries {
		if err := fn(e); err != nil {
			b.keep(i)
			return err
		}
	}
	b.reset()
	return nil
}

// keep drops the first i entries.
func (b *Buffer) keep(i int) {
	n := copy(b.entries, b.entries[i:])
	clear(b.entries[n:])
	b.entries = b.entries[:n]
}

func (b *Buffer) reset() {
	clear(b.entries)
	b.entries = b.entries[:0]
	clear(b.scratch)
}

// MergeSort sorts entries by key in place. The sort is stable.
func MergeSort(entries []Entry) {
	MergeSortWith(entries, nil)
}

// MergeSortWith is MergeSort with a caller-provided scratch slice. It returns
// the scratch slice, grown if needed, for reuse.
func MergeSortWith(entries, scratch []Entry) []Entry {
	if len(entries) < 2 {
		return scratch
	}
	if cap(scratch) < len(entries) {
		scratch = make([]Entry, len(entries))
	}
	scratch = scratch[:len(entries)]
	mergeSort(entries, scratch)
	return scratch
}

func mergeSort(a, tmp []Entry) {
	n := len(a)
	if n < 2 {
		return
	}
	mid := n / 2
	mergeSort(a[:mid], tmp[:mid])
	mergeSort(a[mid:], tmp[mid:])

	if a[mid-1].Key <= a[mid].Key {
		return
	}

	copy(tmp, a)
	i, j, k := 0, mid, 0
	for i < mid && j < n {
		// <= keeps the left (earlier) entry first on ties.
		if tmp[i].Key <= tmp[j].Key {
			a[k] = tmp[i]
			i++
		} else {
			a[k] = tmp[j]
			j++
		}
		k++
	}
	for i < mid {
		a[k] = tmp[i]
		i++
		k++
	}
	for j < n {
		a[k] = tmp[j]
		j++
		k++
	}
}
