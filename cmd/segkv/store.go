package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hupe1980/segkv"
	"github.com/hupe1980/segkv/blobstore"
	minioblob "github.com/hupe1980/segkv/blobstore/minio"
	"github.com/hupe1980/segkv/blobstore/s3"
	"github.com/hupe1980/segkv/internal/resource"
	"github.com/urfave/cli/v2"
)

// session holds what every subcommand shares: the logger, the metrics,
// the resource budget and the blob store.
type session struct {
	logger  *slog.Logger
	metrics *promMetrics
	rc      *resource.Controller
	store   blobstore.BlobStore
	local   string
}

func newSession(cctx *cli.Context) (*session, error) {
	s := &session{
		logger:  configLogger(cctx, cctx.App.ErrWriter),
		metrics: newPromMetrics(),
		rc: resource.NewController(resource.Config{
			MemoryLimit:   cctx.Int64("memory-limit"),
			IOBytesPerSec: cctx.Int64("io-limit"),
		}),
	}

	store, local, err := openStore(cctx.Context, cctx)
	if err != nil {
		return nil, err
	}
	if size := cctx.Int64("cache-size"); size > 0 && local == "" {
		store = blobstore.NewLRUCachingStore(store, size, s.rc)
	}
	s.store, s.local = store, local
	return s, nil
}

// openStore builds the blob store named by --backend. For the local backend
// it also returns the directory.
func openStore(ctx context.Context, cctx *cli.Context) (blobstore.BlobStore, string, error) {
	bucket := cctx.String("bucket")

	switch backend := cctx.String("backend"); backend {
	case "local":
		dir := cctx.String("dir")
		if dir == "" {
			return nil, "", errors.New("--dir must not be empty")
		}
		store := blobstore.NewLocalStore(dir)
		if err := store.Init(); err != nil {
			return nil, "", fmt.Errorf("init %s: %w", dir, err)
		}
		return store, dir, nil

	case "s3":
		if bucket == "" {
			return nil, "", errors.New("--bucket is required for the s3 backend")
		}
		opts := []s3.Option{s3.WithPrefix(cctx.String("prefix"))}
		if endpoint := cctx.String("endpoint"); endpoint != "" {
			opts = append(opts, s3.WithEndpoint(endpoint))
		}
		if table := cctx.String("ddb-table"); table != "" {
			store, err := s3.NewWithCommitTable(ctx, bucket, table, opts...)
			return store, "", err
		}
		store, err := s3.New(ctx, bucket, opts...)
		return store, "", err

	case "minio":
		endpoint := cctx.String("endpoint")
		if bucket == "" || endpoint == "" {
			return nil, "", errors.New("--bucket and --endpoint are required for the minio backend")
		}
		store, err := minioblob.New(endpoint, bucket, minioblob.WithPrefix(cctx.String("prefix")))
		if err != nil {
			return nil, "", err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, "", fmt.Errorf("bucket %s: %w", bucket, err)
		}
		return store, "", nil

	default:
		return nil, "", fmt.Errorf("unknown backend %q", backend)
	}
}

// openDB opens the store with the options from the global flags.
func (s *session) openDB(cctx *cli.Context) (*segkv.DB, error) {
	opts := []segkv.Option{
		segkv.WithLogger(segkv.NewLogger(s.logger.Handler())),
		segkv.WithMetricsCollector(s.metrics),
		segkv.WithMetricsObserver(s.metrics),
		segkv.WithValueSize(cctx.Int("value-size")),
		segkv.WithResourceController(s.rc),
	}
	if n := cctx.Int("buffer-size"); n > 0 {
		opts = append(opts, segkv.WithBufferCapacity(n))
	}
	if n := cctx.Int("segment-keys"); n > 0 {
		opts = append(opts, segkv.WithSegmentMaxKeys(n))
	}
	if n := cctx.Uint64("filter-bits"); n > 0 {
		opts = append(opts, segkv.WithFilterBits(n))
	}

	backend := segkv.Remote(s.store)
	if s.local != "" {
		backend = segkv.Local(s.local)
	}
	return segkv.Open(cctx.Context, backend, opts...)
}

// finish reports cache and budget statistics and writes the metrics textfile if one
// was requested.
func (s *session) finish(cctx *cli.Context) error {
	if cs, ok := s.store.(*blobstore.CachingStore); ok {
		hits, misses := cs.CacheStats()
		s.logger.Info("block cache", "hits", hits, "misses", misses)
	}
	u := s.rc.Usage()
	s.logger.Debug("resource usage", "hot", u.Hot, "cache", u.Cache, "limit", u.Limit, "io_bytes", u.IOBytes)
	s.metrics.observeUsage(u)

	path := cctx.String("metrics-file")
	if path == "" {
		return nil
	}
	if err := s.metrics.WriteTextfile(path); err != nil {
		return fmt.Errorf("metrics file: %w", err)
	}
	s.logger.Debug("metrics written", "path", path)
	return nil
}
