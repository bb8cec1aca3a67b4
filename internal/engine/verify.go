package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/segkv/internal/conv"
	"github.com/hupe1980/segkv/internal/metatable"
	"github.com/hupe1980/segkv/internal/segment"
)

// SegmentReport is the result of verifying one stored segment.
type SegmentReport struct {
	Descriptor metatable.Descriptor
	Err        error
}

// Verify checks the metatable ranges, the structure of the hot tree and
// every stored segment against its descriptor. It returns one report per
// non-empty segment and an error wrapping ErrCorrupt if anything failed.
func (e *Engine) Verify(ctx context.Context) ([]SegmentReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}

	var errs []error
	if err := e.meta.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := e.hot.tree.Check(); err != nil {
		errs = append(errs, err)
	}

	var reports []SegmentReport
	for _, d := range e.meta.Descriptors() {
		if d.Count == 0 {
			continue
		}
		err := e.verifySegment(ctx, d)
		reports = append(reports, SegmentReport{Descriptor: d, Err: err})
		if err != nil {
			errs = append(errs, fmt.Errorf("segment %d: %w", d.ID, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return reports, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return reports, nil
}

func (e *Engine) verifySegment(ctx context.Context, d metatable.Descriptor) error {
	blob, err := e.store.Open(ctx, d.Name())
	if err != nil {
		return err
	}
	defer blob.Close()

	count, err := conv.Uint64ToInt(d.Count)
	if err != nil {
		return err
	}
	if want := int64(count) * e.recordBytes(); blob.Size() != want {
		return fmt.Errorf("size %d, descriptor needs %d", blob.Size(), want)
	}

	rc, err := blob.ReadRange(ctx, 0, blob.Size())
	if err != nil {
		return err
	}
	defer rc.Close()

	var (
		first, last uint64
		r           = segment.NewReader(rc, e.valueSize)
	)
	for r.Next() {
		if r.Count() == 1 {
			first = r.Key()
		}
		last = r.Key()
	}
	if err := r.Err(); err != nil {
		return err
	}

	if uint64(r.Count()) != d.Count || first != d.Start || last != d.End {
		return fmt.Errorf("holds %d keys in [%d, %d], descriptor says %d in [%d, %d]",
			r.Count(), first, last, d.Count, d.Start, d.End)
	}
	return nil
}
