package metatable

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/hupe1980/segkv/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_AllocFindUpdate(t *testing.T) {
	tbl := New()

	d0 := tbl.Alloc()
	d1 := tbl.Alloc()
	assert.Equal(t, uint64(0), d0.ID)
	assert.Equal(t, uint64(1), d1.ID)
	assert.Equal(t, "1", d1.Name())

	// Allocated but empty slots never match.
	_, ok := tbl.Find(0)
	assert.False(t, ok)

	require.NoError(t, tbl.Update(Descriptor{ID: 0, Start: 10, End: 20, Count: 3}))
	require.NoError(t, tbl.Update(Descriptor{ID: 1, Start: 30, End: 40, Count: 2}))
	require.ErrorIs(t, tbl.Update(Descriptor{ID: 5}), ErrUnknownID)

	d, ok := tbl.Find(15)
	require.True(t, ok)
	assert.Equal(t, uint64(0), d.ID)

	d, ok = tbl.Find(40)
	require.True(t, ok)
	assert.Equal(t, uint64(1), d.ID)

	_, ok = tbl.Find(25)
	assert.False(t, ok)

	next, ok := tbl.NextStart(20)
	require.True(t, ok)
	assert.Equal(t, uint64(30), next)
	_, ok = tbl.NextStart(30)
	assert.False(t, ok)

	require.NoError(t, tbl.Validate())
}

func TestTable_ValidateOverlap(t *testing.T) {
	tbl := New()
	tbl.Alloc()
	tbl.Alloc()
	require.NoError(t, tbl.Update(Descriptor{ID: 0, Start: 10, End: 20, Count: 2}))
	require.NoError(t, tbl.Update(Descriptor{ID: 1, Start: 20, End: 30, Count: 2}))
	assert.ErrorIs(t, tbl.Validate(), ErrCorrupt)

	require.NoError(t, tbl.Update(Descriptor{ID: 1, Start: 21, End: 22, Count: 5}))
	assert.ErrorIs(t, tbl.Validate(), ErrCorrupt)
}

func TestTable_Codec(t *testing.T) {
	tbl := New()
	tbl.Alloc()
	tbl.Alloc()
	require.NoError(t, tbl.Update(Descriptor{ID: 0, Start: 1, End: 2, Count: 2}))
	require.NoError(t, tbl.Update(Descriptor{ID: 1, Start: 5, End: ^uint64(0), Count: 9}))

	data, err := tbl.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, 2*RecordSize)

	assert.Equal(t, uint64(1), binary.LittleEndian.Uint64(data[32:]))
	assert.Equal(t, uint64(5), binary.LittleEndian.Uint64(data[40:]))
	assert.Equal(t, ^uint64(0), binary.LittleEndian.Uint64(data[48:]))
	assert.Equal(t, uint64(9), binary.LittleEndian.Uint64(data[56:]))

	out := New()
	require.NoError(t, out.UnmarshalBinary(data))
	assert.Equal(t, tbl.Descriptors(), out.Descriptors())
}

func TestTable_UnmarshalCorrupt(t *testing.T) {
	assert.ErrorIs(t, New().UnmarshalBinary(make([]byte, 33)), ErrCorrupt)

	data := make([]byte, RecordSize)
	binary.LittleEndian.PutUint64(data, 3)
	assert.ErrorIs(t, New().UnmarshalBinary(data), ErrCorrupt)
}

func TestTable_SaveLoad(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	empty, err := Load(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())

	tbl := New()
	d := tbl.Alloc()
	d.Start, d.End, d.Count = 100, 200, 50
	require.NoError(t, tbl.Update(d))
	require.NoError(t, tbl.Save(ctx, store))

	loaded, err := Load(ctx, store)
	require.NoError(t, err)
	got, ok := loaded.Get(0)
	require.True(t, ok)
	assert.Equal(t, d, got)

	require.NoError(t, store.Put(ctx, BlobName, []byte("short")))
	_, err = Load(ctx, store)
	assert.ErrorIs(t, err, ErrCorrupt)
}
