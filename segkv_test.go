package segkv

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/hupe1980/segkv/blobstore"
	"github.com/hupe1980/segkv/internal/engine"
	"github.com/hupe1980/segkv/internal/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFilterBits = 1 << 20

func TestDB(t *testing.T) {
	ctx := context.Background()

	t.Run("PutGetScan", func(t *testing.T) {
		db, err := Open(ctx, Local(t.TempDir()), WithFilterBits(testFilterBits))
		require.NoError(t, err)
		defer db.Close(ctx)

		require.NoError(t, db.Put(ctx, 10, []byte("AAA")))
		require.NoError(t, db.Put(ctx, 5, []byte("BBB")))
		require.NoError(t, db.Put(ctx, 20, []byte("CCC")))

		v, ok, err := db.Get(ctx, 5)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "BBB", string(TrimValue(v)))
		assert.Len(t, v, DefaultValueSize)

		_, ok, err = db.Get(ctx, 7)
		require.NoError(t, err)
		assert.False(t, ok)

		entries, err := db.Collect(ctx, 5, 20)
		require.NoError(t, err)
		require.Len(t, entries, 16)
		var found []uint64
		for _, e := range entries {
			if e.Found {
				found = append(found, e.Key)
			}
		}
		assert.Equal(t, []uint64{5, 10, 20}, found)
	})

	t.Run("Reopen", func(t *testing.T) {
		dir := t.TempDir()
		db, err := Open(ctx, Local(dir), WithFilterBits(testFilterBits), WithSegmentMaxKeys(8), WithBufferCapacity(3))
		require.NoError(t, err)
		for k := uint64(0); k < 50; k++ {
			require.NoError(t, db.Put(ctx, k*7, []byte{byte(k)}))
		}
		require.NoError(t, db.Close(ctx))

		db, err = Open(ctx, Local(dir), WithFilterBits(testFilterBits), WithSegmentMaxKeys(8), WithBufferCapacity(3))
		require.NoError(t, err)
		defer db.Close(ctx)

		assert.Greater(t, len(db.Segments()), 4)
		for k := uint64(0); k < 50; k++ {
			v, ok, err := db.Get(ctx, k*7)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, byte(k), v[0])
		}

		reports, err := db.Verify(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, reports)
	})

	t.Run("Remote", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		db, err := Open(ctx, Remote(store), WithFilterBits(testFilterBits))
		require.NoError(t, err)
		require.NoError(t, db.Put(ctx, 1, []byte("x")))
		require.NoError(t, db.Close(ctx))

		names, err := store.List(ctx, "")
		require.NoError(t, err)
		assert.Contains(t, names, "meta")
		assert.Contains(t, names, "bf.state")
	})
}

func TestErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("ValueTooLong", func(t *testing.T) {
		db, err := Open(ctx, Remote(blobstore.NewMemoryStore()), WithFilterBits(testFilterBits), WithValueSize(2))
		require.NoError(t, err)
		defer db.Close(ctx)

		err = db.Put(ctx, 1, []byte("abc"))
		var tl *ErrValueTooLong
		require.ErrorAs(t, err, &tl)
		assert.Equal(t, 2, tl.Max)
		assert.Equal(t, 3, tl.Actual)
		assert.ErrorIs(t, err, engine.ErrInvalidArgument)
	})

	t.Run("Closed", func(t *testing.T) {
		db, err := Open(ctx, Remote(blobstore.NewMemoryStore()), WithFilterBits(testFilterBits))
		require.NoError(t, err)
		require.NoError(t, db.Close(ctx))

		assert.ErrorIs(t, db.Put(ctx, 1, nil), ErrClosed)
		_, _, err = db.Get(ctx, 1)
		assert.ErrorIs(t, err, ErrClosed)
		_, err = db.Collect(ctx, 1, 2)
		assert.ErrorIs(t, err, ErrClosed)
		assert.ErrorIs(t, db.Close(ctx), ErrClosed)
	})

	t.Run("InvalidRange", func(t *testing.T) {
		db, err := Open(ctx, Remote(blobstore.NewMemoryStore()), WithFilterBits(testFilterBits))
		require.NoError(t, err)
		defer db.Close(ctx)

		_, err = db.Collect(ctx, 5, 4)
		assert.ErrorIs(t, err, ErrInvalidRange)
		_, err = db.Collect(ctx, 0, MaxCollect)
		assert.ErrorIs(t, err, ErrInvalidRange)

		n := 0
		for range db.Scan(ctx, 5, 4) {
			n++
		}
		assert.Zero(t, n)
	})

	t.Run("InvalidOptions", func(t *testing.T) {
		_, err := Open(ctx, Remote(nil))
		assert.ErrorIs(t, err, ErrInvalidArgument)
		_, err = Open(ctx, Local(""))
		assert.ErrorIs(t, err, ErrInvalidArgument)
		_, err = Open(ctx, Remote(blobstore.NewMemoryStore()), WithFilterBits(3))
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("Corrupt", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		require.NoError(t, store.Put(ctx, "meta", []byte{1, 2, 3}))
		_, err := Open(ctx, Remote(store), WithFilterBits(testFilterBits))
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("InjectedFault", func(t *testing.T) {
		ffs := fs.NewFaultyFS(nil)
		db, err := Open(ctx, Local(t.TempDir()), WithFilterBits(testFilterBits), WithFileSystem(ffs))
		require.NoError(t, err)
		require.NoError(t, db.Put(ctx, 1, []byte("x")))

		ffs.AddRule(".0.tmp", fs.Fault{FailAfterBytes: 0})
		err = db.Close(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, fs.ErrInjected))
	})
}

func TestMetricsAndLogging(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logger := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	metrics := &BasicMetricsCollector{}

	db, err := Open(ctx, Remote(blobstore.NewMemoryStore()),
		WithFilterBits(testFilterBits),
		WithLogger(logger),
		WithMetricsCollector(metrics),
	)
	require.NoError(t, err)

	require.NoError(t, db.Put(ctx, 3, []byte("x")))
	_, _, err = db.Get(ctx, 3)
	require.NoError(t, err)
	_, _, err = db.Get(ctx, 4)
	require.NoError(t, err)
	_, err = db.Collect(ctx, 1, 10)
	require.NoError(t, err)

	// An abandoned scan is still recorded.
	for range db.Scan(ctx, 1, 10) {
		break
	}
	require.NoError(t, db.Close(ctx))

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.PutCount)
	assert.Equal(t, int64(2), stats.GetCount)
	assert.Equal(t, int64(1), stats.GetFound)
	assert.Equal(t, int64(2), stats.ScanCount)
	assert.Equal(t, int64(11), stats.ScanEmitted)
	assert.Equal(t, int64(1), stats.ScanFound)
	assert.Equal(t, int64(1), stats.CloseCount)
	assert.Zero(t, stats.CloseErrors)

	out := buf.String()
	assert.Contains(t, out, "put completed")
	assert.Contains(t, out, "scan completed")
	assert.Contains(t, out, "store closed")
	assert.Contains(t, out, "Engine opened")
}

func TestSharedResourceController(t *testing.T) {
	ctx := context.Background()
	rc := NewResourceController(1<<20, 0)

	db, err := Open(ctx, Local(t.TempDir()), WithFilterBits(testFilterBits), WithResourceController(rc), WithBufferCapacity(1))
	require.NoError(t, err)

	for k := uint64(0); k < 10; k++ {
		require.NoError(t, db.Put(ctx, k, []byte("v")))
	}
	require.NoError(t, db.Flush(ctx))
	assert.Positive(t, rc.Usage().Hot)
	assert.Equal(t, rc.Usage().Hot, db.Stats().MemoryUsage)

	require.NoError(t, db.Close(ctx))
	assert.Zero(t, rc.Usage().Hot)
}
