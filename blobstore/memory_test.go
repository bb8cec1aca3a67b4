package blobstore

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Open(ctx, "0")
	require.ErrorIs(t, err, ErrNotFound)

	w, err := store.Create(ctx, "0")
	require.NoError(t, err)
	_, err = w.Write([]byte("abcdef"))
	require.NoError(t, err)

	ok, err := Exists(ctx, store, "0")
	require.NoError(t, err)
	assert.False(t, ok, "unpublished before Close")

	require.NoError(t, w.Close())

	b, err := store.Open(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, int64(6), b.Size())

	rc, err := b.ReadRange(ctx, 2, 10)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "cdef", string(got))
	require.NoError(t, b.Close())

	require.NoError(t, store.Put(ctx, "1", []byte("x")))
	require.NoError(t, store.Put(ctx, "meta", []byte("y")))

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1", "meta"}, names)

	require.NoError(t, store.Delete(ctx, "1"))
	names, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "meta"}, names)
}

func TestMemoryStore_Abort(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, "2", []byte("old")))

	w, err := store.Create(ctx, "2")
	require.NoError(t, err)
	_, err = w.Write([]byte("new"))
	require.NoError(t, err)
	require.NoError(t, w.Abort())
	require.ErrorIs(t, w.Close(), ErrAborted)

	data, err := ReadAll(ctx, store, "2")
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}

func TestMemoryStore_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewMemoryStore()
	require.ErrorIs(t, store.Put(ctx, "0", nil), context.Canceled)
	_, err := store.Open(ctx, "0")
	require.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStore_OpenIsSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, "meta", []byte("v1")))

	b, err := store.Open(ctx, "meta")
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, store.Put(ctx, "meta", []byte("v2")))
	assert.Equal(t, 2, store.Publishes("meta"))

	buf := make([]byte, 2)
	_, err = b.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(buf))

	w, err := store.Create(ctx, "meta")
	require.NoError(t, err)
	require.NoError(t, w.Abort())
	assert.Equal(t, 2, store.Publishes("meta"), "aborted writes are not published")
}
