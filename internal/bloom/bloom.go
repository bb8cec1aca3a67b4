package bloom

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/bits"

	"github.com/RoaringBitmap/roaring/v2"
)

// DefaultBits is the default filter size in bits.
const DefaultBits = 1 << 31

var (
	// ErrSizeMismatch is returned when a persisted filter does not match the configured size.
	ErrSizeMismatch = errors.New("bloom: size mismatch")

	// ErrInvalidSize is returned for sizes that are not a power of two in [64, 2^32].
	ErrInvalidSize = errors.New("bloom: size must be a power of two between 64 and 2^32")
)

// hashParams are the (a, b) multiply-add pairs, one per probe.
var hashParams = [3][2]uint32{
	{31, 1150616525},
	{23, 572251735},
	{47, 258054038},
}

// Filter is a fixed-size bloom filter over uint64 keys.
// It is not safe for concurrent use.
type Filter struct {
	bits *roaring.Bitmap
	size uint64
	mask uint32
}

// New returns an empty filter of size bits.
func New(size uint64) (*Filter, error) {
	if size < 64 || size > 1<<32 || size&(size-1) != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	return &Filter{
		bits: roaring.New(),
		size: size,
		mask: uint32(size - 1),
	}, nil
}

// Size returns the filter size in bits.
func (f *Filter) Size() uint64 { return f.size }

// Count returns the number of set bits.
func (f *Filter) Count() uint64 { return f.bits.GetCardinality() }

// index computes the bit for probe i.
func (f *Filter) index(key uint64, i int) uint32 {
	a, b := hashParams[i][0], hashParams[i][1]
	hi, lo := uint32(key>>32), uint32(key)
	return ((a*hi + b) ^ (a*lo + b)) & f.mask
}

// Add records key in the filter.
func (f *Filter) Add(key uint64) {
	for i := range hashParams {
		f.bits.Add(f.index(key, i))
	}
}

// MayContain reports whether key may have been added. False means the key
// was definitely never added.
func (f *Filter) MayContain(key uint64) bool {
	for i := range hashParams {
		if !f.bits.Contains(f.index(key, i)) {
			return false
		}
	}
	return true
}

// FalsePositiveRate estimates the current false positive probability from
// the fill ratio.
func (f *Filter) FalsePositiveRate() float64 {
	fill := float64(f.Count()) / float64(f.size)
	return math.Pow(fill, float64(len(hashParams)))
}

// ByteSize returns the size of the persisted form.
func (f *Filter) ByteSize() int64 { return int64(f.size / 8) }

const chunkWords = 8192

// WriteTo writes the raw bit array as little-endian 64-bit words.
func (f *Filter) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriterSize(w, 64*1024)
	words := make([]uint64, chunkWords)
	buf := make([]byte, 8*chunkWords)
	totalWords := f.size / 64

	var written int64
	flush := func(n uint64) error {
		for i := range n {
			binary.LittleEndian.PutUint64(buf[8*i:], words[i])
		}
		m, err := bw.Write(buf[:8*n])
		written += int64(m)
		clear(words)
		return err
	}

	it := f.bits.Iterator()
	for base := uint64(0); base < totalWords; base += chunkWords {
		n := min(uint64(chunkWords), totalWords-base)
		limit := (base + n) * 64
		for it.HasNext() && uint64(it.PeekNext()) < limit {
			bit := uint64(it.Next())
			words[bit/64-base] |= 1 << (bit % 64)
		}
		if err := flush(n); err != nil {
			return written, err
		}
	}
	return written, bw.Flush()
}

// ReadFrom replaces the filter bits with a raw bit array written by WriteTo.
// The input must hold exactly ByteSize bytes.
func (f *Filter) ReadFrom(r io.Reader) (int64, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	buf := make([]byte, 8*chunkWords)
	totalWords := f.size / 64
	next := roaring.New()
	batch := make([]uint32, 0, 1024)

	var read int64
	for base := uint64(0); base < totalWords; base += chunkWords {
		n := min(uint64(chunkWords), totalWords-base)
		m, err := io.ReadFull(br, buf[:8*n])
		read += int64(m)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return read, fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, read, f.ByteSize())
			}
			return read, err
		}

		for i := range n {
			word := binary.LittleEndian.Uint64(buf[8*i:])
			for word != 0 {
				tz := uint64(bits.TrailingZeros64(word))
				batch = append(batch, uint32((base+i)*64+tz))
				word &= word - 1
			}
			if len(batch) >= 1024-64 {
				next.AddMany(batch)
				batch = batch[:0]
			}
		}
	}
	next.AddMany(batch)

	next.RunOptimize()
	f.bits = next
	return read, nil
}
