package bptree

// RecordWriter receives records in strictly ascending key order.
type RecordWriter interface {
	Append(key uint64, value []byte) error
}

// Committer is implemented by writers that publish their output in one
// step. Save and SaveUntil call Commit after the last record and release
// nothing if it fails.
type Committer interface {
	Commit() error
}

func commit(w RecordWriter) error {
	if c, ok := w.(Committer); ok {
		return c.Commit()
	}
	return nil
}

// RecordReader yields records, typically from a segment.
type RecordReader interface {
	Next() bool
	Key() uint64
	Value() []byte
	Err() error
}

// Summary describes the records written by Save or SaveUntil.
type Summary struct {
	Start uint64
	End   uint64
	Count int
}

func (s *Summary) add(key uint64) {
	if s.Count == 0 {
		s.Start = key
	}
	s.End = key
	s.Count++
}

// Save writes every record along the leaf chain and empties the tree.
// On error the tree is left untouched.
func (t *Tree) Save(w RecordWriter) (Summary, error) {
	var (
		sum Summary
		err error
	)
	t.Ascend(func(key uint64, value []byte) bool {
		if err = w.Append(key, value); err != nil {
			return false
		}
		sum.add(key)
		return true
	})
	if err == nil {
		err = commit(w)
	}
	if err != nil {
		return Summary{}, err
	}
	t.Reset()
	return sum, nil
}

// SaveUntil writes every record with key <= splitKey. The remaining records
// are rebuilt into the tree, which stays resident. On error the tree is left
// untouched.
func (t *Tree) SaveUntil(w RecordWriter, splitKey uint64) (Summary, error) {
	type entry struct {
		key   uint64
		value []byte
	}

	var (
		sum  Summary
		rest []entry
		err  error
	)
	t.Ascend(func(key uint64, value []byte) bool {
		if key > splitKey {
			rest = append(rest, entry{key, value})
			return true
		}
		if err = w.Append(key, value); err != nil {
			return false
		}
		sum.add(key)
		return true
	})
	if err == nil {
		err = commit(w)
	}
	if err != nil {
		return Summary{}, err
	}

	t.Reset()
	for _, e := range rest {
		t.Insert(e.key, e.value)
	}
	return sum, nil
}

// Load inserts every record from r. The tree must be empty.
func (t *Tree) Load(r RecordReader) error {
	if !t.IsEmpty() {
		return ErrNotEmpty
	}
	for r.Next() {
		t.Insert(r.Key(), r.Value())
	}
	return r.Err()
}
