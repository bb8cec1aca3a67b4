package segkv

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/hupe1980/segkv/blobstore"
	"github.com/hupe1980/segkv/internal/engine"
	"github.com/hupe1980/segkv/internal/metatable"
)

// MaxCollect is the largest range Collect materializes.
const MaxCollect = 1 << 24

// DefaultValueSize is the value width used unless WithValueSize is given.
const DefaultValueSize = engine.DefaultValueSize

// Entry is one key of a scan. Found is false for keys without a value.
type Entry = engine.Entry

// Stats is a point-in-time summary of the store.
type Stats = engine.Stats

// Range is an inclusive key range.
type Range = engine.Range

// SegmentInfo describes one stored segment.
type SegmentInfo = metatable.Descriptor

// SegmentReport is the verification result of one segment.
type SegmentReport = engine.SegmentReport

// Backend selects where the store keeps its blobs.
type Backend interface {
	open(ctx context.Context, o *options) (blobstore.BlobStore, error)
}

type localBackend struct {
	dir string
}

func (b localBackend) open(_ context.Context, o *options) (blobstore.BlobStore, error) {
	if b.dir == "" {
		return nil, fmt.Errorf("%w: empty directory", ErrInvalidArgument)
	}
	var localOpts []blobstore.LocalOption
	if o.fileSystem != nil {
		localOpts = append(localOpts, blobstore.WithFileSystem(o.fileSystem))
	}
	store := blobstore.NewLocalStore(b.dir, localOpts...)
	if err := store.Init(); err != nil {
		return nil, fmt.Errorf("segkv: init %s: %w", b.dir, err)
	}
	return store, nil
}

// Local keeps the store in dir, creating it if needed.
func Local(dir string) Backend {
	return localBackend{dir: dir}
}

type remoteBackend struct {
	store blobstore.BlobStore
}

func (b remoteBackend) open(context.Context, *options) (blobstore.BlobStore, error) {
	if b.store == nil {
		return nil, fmt.Errorf("%w: nil blob store", ErrInvalidArgument)
	}
	return b.store, nil
}

// Remote keeps the store in an arbitrary blob store such as S3 or MinIO.
func Remote(store blobstore.BlobStore) Backend {
	return remoteBackend{store: store}
}

// DB is an open store. It is safe for concurrent use.
type DB struct {
	eng     *engine.Engine
	metrics MetricsCollector
	logger  *Logger
}

// Open opens the store at backend, loading any persisted state.
func Open(ctx context.Context, backend Backend, optFns ...Option) (*DB, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: nil backend", ErrInvalidArgument)
	}
	opts := applyOptions(optFns)

	store, err := backend.open(ctx, &opts)
	if err != nil {
		return nil, err
	}

	engineOpts := append([]engine.Option{engine.WithLogger(opts.logger.Logger)}, opts.engineOpts...)
	eng, err := engine.Open(ctx, store, engineOpts...)
	if err != nil {
		return nil, translateError(err)
	}

	return &DB{
		eng:     eng,
		metrics: opts.metricsCollector,
		logger:  opts.logger,
	}, nil
}

// ValueSize returns the fixed value width.
func (db *DB) ValueSize() int { return db.eng.ValueSize() }

// Put stores value under key. The value is zero padded to ValueSize.
func (db *DB) Put(ctx context.Context, key uint64, value []byte) error {
	start := time.Now()
	err := translateError(db.eng.Put(ctx, key, value))
	db.metrics.RecordPut(time.Since(start), err)
	db.logger.LogPut(ctx, key, len(value), err)
	return err
}

// Get returns the padded value stored under key and whether it exists.
func (db *DB) Get(ctx context.Context, key uint64) ([]byte, bool, error) {
	start := time.Now()
	v, ok, err := db.eng.Get(ctx, key)
	err = translateError(err)
	db.metrics.RecordGet(time.Since(start), ok, err)
	db.logger.LogGet(ctx, key, ok, err)
	return v, ok, err
}

// Scan yields one entry per key in [start, end] in ascending order. Keys
// without a value are yielded with Found set to false. Nothing is yielded
// when start > end.
func (db *DB) Scan(ctx context.Context, start, end uint64) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		began := time.Now()
		var (
			emitted, found int
			scanErr        error
		)
		defer func() {
			db.metrics.RecordScan(emitted, found, time.Since(began), scanErr)
			db.logger.LogScan(ctx, start, end, emitted, found, scanErr)
		}()

		for e, err := range db.eng.Scan(ctx, start, end) {
			if err != nil {
				scanErr = translateError(err)
				yield(Entry{}, scanErr)
				return
			}
			emitted++
			if e.Found {
				found++
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

// Collect returns the entries of [start, end] as a slice. It returns
// ErrInvalidRange when start > end or the range exceeds MaxCollect keys.
func (db *DB) Collect(ctx context.Context, start, end uint64) ([]Entry, error) {
	if start > end || end-start >= MaxCollect {
		return nil, fmt.Errorf("%w: [%d, %d]", ErrInvalidRange, start, end)
	}
	out := make([]Entry, 0, end-start+1)
	for e, err := range db.Scan(ctx, start, end) {
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Flush applies all buffered writes.
func (db *DB) Flush(ctx context.Context) error {
	return translateError(db.eng.Flush(ctx))
}

// Close persists all state. Further calls return ErrClosed.
func (db *DB) Close(ctx context.Context) error {
	start := time.Now()
	err := translateError(db.eng.Close(ctx))
	db.metrics.RecordClose(time.Since(start), err)
	db.logger.LogClose(ctx, len(db.eng.Descriptors()), err)
	return err
}

// Stats returns store statistics.
func (db *DB) Stats() Stats { return db.eng.Stats() }

// Segments returns the descriptors of all stored segments.
func (db *DB) Segments() []SegmentInfo { return db.eng.Descriptors() }

// Verify checks every stored segment against the metatable.
func (db *DB) Verify(ctx context.Context) ([]SegmentReport, error) {
	reports, err := db.eng.Verify(ctx)
	return reports, translateError(err)
}

// TrimValue strips the zero padding from a stored value.
func TrimValue(v []byte) []byte {
	return bytes.TrimRight(v, "\x00")
}
