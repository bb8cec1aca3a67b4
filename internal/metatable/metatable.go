package metatable

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/hupe1980/segkv/blobstore"
)

const (
	// BlobName is the name of the persisted metatable blob.
	BlobName = "meta"

	// RecordSize is the encoded size of one descriptor.
	RecordSize = 32
)

var (
	// ErrCorrupt is returned when the persisted table cannot be decoded.
	ErrCorrupt = errors.New("metatable: corrupt")

	// ErrUnknownID is returned when updating a descriptor that was never allocated.
	ErrUnknownID = errors.New("metatable: unknown segment id")
)

// Descriptor describes one segment: its blob id and the inclusive key range
// and number of records it holds. A descriptor with Count 0 has been
// allocated but holds no data yet.
type Descriptor struct {
	ID    uint64
	Start uint64
	End   uint64
	Count uint64
}

// Contains reports whether key lies within the descriptor's range.
func (d Descriptor) Contains(key uint64) bool {
	return d.Count > 0 && d.Start <= key && key <= d.End
}

// Name returns the blob name of the segment.
func (d Descriptor) Name() string {
	return SegmentName(d.ID)
}

// SegmentName returns the blob name for segment id.
func SegmentName(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// Table is an insertion-ordered list of descriptors. A descriptor's ID is
// its position in the list. Table is not safe for concurrent use.
type Table struct {
	descs []Descriptor
}

// New returns an empty table.
func New() *Table {
	return &Table{}
}

// Len returns the number of descriptors.
func (t *Table) Len() int { return len(t.descs) }

// Descriptors returns a copy of all descriptors in creation order.
func (t *Table) Descriptors() []Descriptor {
	return slices.Clone(t.descs)
}

// Get returns the descriptor with the given id.
func (t *Table) Get(id uint64) (Descriptor, bool) {
	if id >= uint64(len(t.descs)) {
		return Descriptor{}, false
	}
	return t.descs[id], true
}

// Find returns the first descriptor whose range contains key.
func (t *Table) Find(key uint64) (Descriptor, bool) {
	for _, d := range t.descs {
		if d.Contains(key) {
			return d, true
		}
	}
	return Descriptor{}, false
}

// NextStart returns the smallest non-empty descriptor start greater than key.
func (t *Table) NextStart(key uint64) (uint64, bool) {
	var (
		best  uint64
		found bool
	)
	for _, d := range t.descs {
		if d.Count == 0 || d.Start <= key {
			continue
		}
		if !found || d.Start < best {
			best, found = d.Start, true
		}
	}
	return best, found
}

// Alloc appends an empty descriptor and returns it.
func (t *Table) Alloc() Descriptor {
	d := Descriptor{ID: uint64(len(t.descs))}
	t.descs = append(t.descs, d)
	return d
}

// Update rewrites the descriptor stored under d.ID.
func (t *Table) Update(d Descriptor) error {
	if d.ID >= uint64(len(t.descs)) {
		return fmt.Errorf("%w: %d", ErrUnknownID, d.ID)
	}
	t.descs[d.ID] = d
	return nil
}

// Validate checks that the non-empty ranges are well-formed and pairwise
// disjoint.
func (t *Table) Validate() error {
	live := make([]Descriptor, 0, len(t.descs))
	for _, d := range t.descs {
		if d.Count == 0 {
			continue
		}
		if d.Start > d.End {
			return fmt.Errorf("%w: segment %d has start %d > end %d", ErrCorrupt, d.ID, d.Start, d.End)
		}
		if d.End-d.Start < d.Count-1 {
			return fmt.Errorf("%w: segment %d range cannot hold %d keys", ErrCorrupt, d.ID, d.Count)
		}
		live = append(live, d)
	}

	slices.SortFunc(live, func(a, b Descriptor) int {
		switch {
		case a.Start < b.Start:
			return -1
		case a.Start > b.Start:
			return 1
		}
		return 0
	})
	for i := 1; i < len(live); i++ {
		if live[i].Start <= live[i-1].End {
			return fmt.Errorf("%w: segments %d and %d overlap", ErrCorrupt, live[i-1].ID, live[i].ID)
		}
	}
	return nil
}

// MarshalBinary encodes the table as 32-byte little-endian records
// {id, start, end, count} in creation order.
func (t *Table) MarshalBinary() ([]byte, error) {
	buf := make([]byte, len(t.descs)*RecordSize)
	for i, d := range t.descs {
		rec := buf[i*RecordSize:]
		binary.LittleEndian.PutUint64(rec[0:], d.ID)
		binary.LittleEndian.PutUint64(rec[8:], d.Start)
		binary.LittleEndian.PutUint64(rec[16:], d.End)
		binary.LittleEndian.PutUint64(rec[24:], d.Count)
	}
	return buf, nil
}

// UnmarshalBinary replaces the table with the records in data.
func (t *Table) UnmarshalBinary(data []byte) error {
	if len(data)%RecordSize != 0 {
		return fmt.Errorf("%w: size %d is not a multiple of %d", ErrCorrupt, len(data), RecordSize)
	}

	descs := make([]Descriptor, len(data)/RecordSize)
	for i := range descs {
		rec := data[i*RecordSize:]
		d := Descriptor{
			ID:    binary.LittleEndian.Uint64(rec[0:]),
			Start: binary.LittleEndian.Uint64(rec[8:]),
			End:   binary.LittleEndian.Uint64(rec[16:]),
			Count: binary.LittleEndian.Uint64(rec[24:]),
		}
		if d.ID != uint64(i) {
			return fmt.Errorf("%w: record %d has id %d", ErrCorrupt, i, d.ID)
		}
		descs[i] = d
	}
	t.descs = descs
	return nil
}

// Save persists the table as BlobName.
func (t *Table) Save(ctx context.Context, store blobstore.BlobStore) error {
	data, err := t.MarshalBinary()
	if err != nil {
		return err
	}
	return store.Put(ctx, BlobName, data)
}

// Load reads the table persisted as BlobName. A missing blob yields an empty table.
func Load(ctx context.Context, store blobstore.BlobStore) (*Table, error) {
	data, err := blobstore.ReadAll(ctx, store, BlobName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return New(), nil
		}
		return nil, err
	}

	t := New()
	if err := t.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return t, nil
}
