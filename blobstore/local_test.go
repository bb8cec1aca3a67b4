package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/segkv/internal/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBlobStore_Lifecycle(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewLocalStore(tmpDir)
	require.NoError(t, store.Init())

	ctx := context.Background()

	// 1. Create a blob
	blobName := "7"
	data := []byte("hello world, this is a test blob for segkv")

	w, err := store.Create(ctx, blobName)
	require.NoError(t, err)

	n, err := w.Write(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	// Not visible before Close
	_, err = os.Stat(filepath.Join(tmpDir, blobName))
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, w.Close())

	_, err = os.Stat(filepath.Join(tmpDir, blobName))
	require.NoError(t, err)

	// 2. Open and ReadAt
	blob, err := store.Open(ctx, blobName)
	require.NoError(t, err)
	defer blob.Close()

	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 5)
	n, err = blob.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "world", string(buf))

	// 3. ReadRange
	rangeReader, err := blob.ReadRange(ctx, 13, 4)
	require.NoError(t, err)
	defer rangeReader.Close()

	rangeContent, err := io.ReadAll(rangeReader)
	require.NoError(t, err)
	require.Equal(t, "this", string(rangeContent))

	// 4. List skips temp files
	require.NoError(t, store.Put(ctx, "meta", []byte("m")))
	tmp, err := store.Create(ctx, "8")
	require.NoError(t, err)

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Equal(t, []string{"7", "meta"}, names)
	require.NoError(t, tmp.Abort())

	// 5. Delete
	require.NoError(t, store.Delete(ctx, blobName))
	require.NoError(t, store.Delete(ctx, blobName))
	_, err = store.Open(ctx, blobName)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalBlobStore_Overwrite(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	require.NoError(t, store.Put(ctx, "0", []byte("first")))
	require.NoError(t, store.Put(ctx, "0", []byte("second!")))

	data, err := ReadAll(ctx, store, "0")
	require.NoError(t, err)
	assert.Equal(t, "second!", string(data))
}

func TestLocalBlobStore_FailedWriteKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	ffs := fs.NewFaultyFS(nil)
	store := NewLocalStore(t.TempDir(), WithFileSystem(ffs))

	require.NoError(t, store.Put(ctx, "bf.state", []byte("good")))

	ffs.AddRule(".bf.state.tmp", fs.Fault{FailAfterBytes: 2})
	w, err := store.Create(ctx, "bf.state")
	require.NoError(t, err)

	_, err = w.Write([]byte("broken"))
	require.ErrorIs(t, err, fs.ErrInjected)
	require.ErrorIs(t, w.Close(), fs.ErrInjected)

	data, err := ReadAll(ctx, store, "bf.state")
	require.NoError(t, err)
	assert.Equal(t, "good", string(data))

	entries, err := os.ReadDir(store.Root())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be removed")
}

func TestLocalBlobStore_FailedSyncKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	ffs := fs.NewFaultyFS(nil)
	store := NewLocalStore(t.TempDir(), WithFileSystem(ffs))

	require.NoError(t, store.Put(ctx, "meta", []byte("v1")))
	ffs.AddRule(".meta.tmp", fs.Fault{FailAfterBytes: -1, FailOnSync: true})

	err := store.Put(ctx, "meta", []byte("v2"))
	require.ErrorIs(t, err, fs.ErrInjected)

	data, err := ReadAll(ctx, store, "meta")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))
}

func TestLocalBlobStore_Abort(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	w, err := store.Create(ctx, "3")
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)
	require.NoError(t, w.Abort())
	require.ErrorIs(t, w.Close(), ErrAborted)

	ok, err := Exists(ctx, store, "3")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalBlobStore_ListMissingRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "absent"))
	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLocalBlobStore_ReadThroughFileSystem(t *testing.T) {
	ctx := context.Background()
	ffs := fs.NewFaultyFS(nil)
	store := NewLocalStore(t.TempDir(), WithFileSystem(ffs))
	require.NoError(t, store.Put(ctx, "4", []byte("segment four")))

	data, err := ReadAll(ctx, store, "4")
	require.NoError(t, err)
	assert.Equal(t, "segment four", string(data))

	ffs.AddRule("/4", fs.Fault{FailAfterBytes: -1, FailOnRead: true})
	_, err = store.Open(ctx, "4")
	require.ErrorIs(t, err, fs.ErrInjected)
}

func TestLocalBlobStore_SyncDirFailure(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ffs := fs.NewFaultyFS(nil)
	store := NewLocalStore(dir, WithFileSystem(ffs))

	ffs.AddRule(dir, fs.Fault{FailAfterBytes: -1, FailOnSyncDir: true})
	require.ErrorIs(t, store.Put(ctx, "meta", []byte("v1")), fs.ErrInjected)
}
