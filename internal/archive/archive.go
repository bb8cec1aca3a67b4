package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/hupe1980/segkv/blobstore"
	"github.com/hupe1980/segkv/internal/hash"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNotEmpty is returned by Restore when the target store holds blobs
	// and overwriting was not requested.
	ErrNotEmpty = errors.New("archive: target store is not empty")

	// ErrInvalidName is returned for archive entries that are not plain blob names.
	ErrInvalidName = errors.New("archive: invalid entry name")

	// ErrChecksum is returned by Restore when an entry does not match its
	// recorded checksum.
	ErrChecksum = errors.New("archive: checksum mismatch")
)

// checksumRecord is the PAX record holding the CRC32C of an entry.
const checksumRecord = "SEGKV.crc32c"

// DefaultConcurrency is the number of blobs read ahead during Backup.
const DefaultConcurrency = 4

// Stats summarizes a backup or restore.
type Stats struct {
	Codec Codec
	Blobs int
	Bytes int64
}

// Options configures Backup and Restore.
type Options struct {
	// Concurrency bounds how many blobs Backup reads ahead.
	Concurrency int

	// Overwrite lets Restore write into a store that already holds blobs.
	Overwrite bool
}

type blobData struct {
	name string
	data []byte
}

// Backup writes every blob of store to w as a tar stream compressed with codec.
// Blobs are read concurrently and written in name order.
func Backup(ctx context.Context, store blobstore.BlobStore, w io.Writer, codec Codec, opts Options) (Stats, error) {
	names, err := store.List(ctx, "")
	if err != nil {
		return Stats{}, fmt.Errorf("list blobs: %w", err)
	}

	cw, err := codec.newWriter(w)
	if err != nil {
		return Stats{}, err
	}
	tw := tar.NewWriter(cw)

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	results := make([]chan blobData, len(names))
	for i := range results {
		results[i] = make(chan blobData, 1)
	}
	slots := make(chan struct{}, concurrency)

	g.Go(func() error {
		for i, name := range names {
			select {
			case slots <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			g.Go(func() error {
				data, err := blobstore.ReadAll(gctx, store, name)
				if err != nil {
					return fmt.Errorf("read %s: %w", name, err)
				}
				results[i] <- blobData{name: name, data: data}
				return nil
			})
		}
		return nil
	})

	stats := Stats{Codec: codec}
	writeErr := func() error {
		for i := range names {
			var b blobData
			select {
			case b = <-results[i]:
			case <-gctx.Done():
				return gctx.Err()
			}
			<-slots

			hdr := &tar.Header{
				Typeflag: tar.TypeReg,
				Name:     b.name,
				Mode:     0o644,
				Size:     int64(len(b.data)),
				ModTime:  time.Unix(0, 0),
				Format:   tar.FormatPAX,
				PAXRecords: map[string]string{
					checksumRecord: fmt.Sprintf("%08x", hash.CRC32C(b.data)),
				},
			}
			if err := tw.WriteHeader(hdr); err != nil {
				return err
			}
			if _, err := tw.Write(b.data); err != nil {
				return err
			}
			stats.Blobs++
			stats.Bytes += int64(len(b.data))
		}
		return nil
	}()
	if writeErr != nil {
		cancel()
	}
	if err := g.Wait(); err != nil && writeErr == nil {
		writeErr = err
	}
	if writeErr != nil {
		return stats, fmt.Errorf("backup: %w", writeErr)
	}

	if err := tw.Close(); err != nil {
		return stats, fmt.Errorf("backup: %w", err)
	}
	if err := cw.Close(); err != nil {
		return stats, fmt.Errorf("backup: %w", err)
	}
	return stats, nil
}

// Restore reads a stream written by Backup and writes every blob to store.
// The codec is detected from the stream.
func Restore(ctx context.Context, r io.Reader, store blobstore.BlobStore, opts Options) (Stats, error) {
	if !opts.Overwrite {
		names, err := store.List(ctx, "")
		if err != nil {
			return Stats{}, fmt.Errorf("list blobs: %w", err)
		}
		if len(names) > 0 {
			return Stats{}, fmt.Errorf("%w: %d blobs", ErrNotEmpty, len(names))
		}
	}

	dr, codec, closeFn, err := detect(r)
	if err != nil {
		return Stats{}, fmt.Errorf("restore: %w", err)
	}
	defer closeFn()

	stats := Stats{Codec: codec}
	tr := tar.NewReader(dr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("restore: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if !validName(hdr.Name) {
			return stats, fmt.Errorf("%w: %q", ErrInvalidName, hdr.Name)
		}

		n, err := restoreBlob(ctx, store, hdr.Name, tr, hdr.PAXRecords[checksumRecord])
		if err != nil {
			return stats, fmt.Errorf("restore %s: %w", hdr.Name, err)
		}
		stats.Blobs++
		stats.Bytes += n
	}
}

// restoreBlob copies one entry into store. When want is set the entry must
// match that checksum or nothing is written.
func restoreBlob(ctx context.Context, store blobstore.BlobStore, name string, r io.Reader, want string) (int64, error) {
	w, err := store.Create(ctx, name)
	if err != nil {
		return 0, err
	}
	h := hash.NewCRC32C()
	n, err := io.Copy(io.MultiWriter(w, h), r)
	if err != nil {
		_ = w.Abort()
		return n, err
	}
	if got := fmt.Sprintf("%08x", h.Sum32()); want != "" && got != want {
		_ = w.Abort()
		return n, fmt.Errorf("%w: crc32c %s, header says %s", ErrChecksum, got, want)
	}
	if err := w.Close(); err != nil {
		return n, err
	}
	return n, nil
}

func validName(name string) bool {
	return name != "" &&
		name == path.Base(name) &&
		name != "." && name != ".." &&
		!strings.HasPrefix(name, ".") &&
		!strings.ContainsAny(name, `/\`)
}
