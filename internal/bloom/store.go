package bloom

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/segkv/blobstore"
)

// BlobName is the name of the persisted filter blob.
const BlobName = "bf.state"

// Save persists the filter as BlobName.
func (f *Filter) Save(ctx context.Context, store blobstore.BlobStore) error {
	w, err := store.Create(ctx, BlobName)
	if err != nil {
		return err
	}
	if _, err := f.WriteTo(w); err != nil {
		_ = w.Abort()
		return fmt.Errorf("bloom: write %s: %w", BlobName, err)
	}
	return w.Close()
}

// Load reads the filter persisted as BlobName. A missing blob yields an
// empty filter of the given size.
func Load(ctx context.Context, store blobstore.BlobStore, size uint64) (*Filter, error) {
	f, err := New(size)
	if err != nil {
		return nil, err
	}

	b, err := store.Open(ctx, BlobName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return f, nil
		}
		return nil, err
	}
	defer b.Close()

	if b.Size() != f.ByteSize() {
		return nil, fmt.Errorf("%w: %s is %d bytes, want %d", ErrSizeMismatch, BlobName, b.Size(), f.ByteSize())
	}

	rc, err := b.ReadRange(ctx, 0, b.Size())
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if _, err := f.ReadFrom(rc); err != nil {
		return nil, err
	}
	return f, nil
}
