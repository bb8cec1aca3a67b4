package segment

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// KeySize is the encoded size of a key.
const KeySize = 8

// RecordSize returns the encoded size of one record.
func RecordSize(valueSize int) int {
	return KeySize + valueSize
}

// Stats summarizes the records written to a segment.
type Stats struct {
	Start uint64
	End   uint64
	Count int
}

// Writer encodes records into a segment.
type Writer struct {
	bw        *bufio.Writer
	valueSize int
	stats     Stats
	hdr       [KeySize]byte
}

// NewWriter returns a Writer that writes records with values of valueSize bytes.
func NewWriter(w io.Writer, valueSize int) *Writer {
	return &Writer{
		bw:        bufio.NewWriterSize(w, 64*1024),
		valueSize: valueSize,
	}
}

// Append writes one record. Keys must be strictly ascending.
func (w *Writer) Append(key uint64, value []byte) error {
	if len(value) != w.valueSize {
		return fmt.Errorf("%w: got %d, want %d", ErrValueSize, len(value), w.valueSize)
	}
	if w.stats.Count > 0 && key <= w.stats.End {
		return fmt.Errorf("%w: %d after %d", ErrOutOfOrder, key, w.stats.End)
	}

	binary.LittleEndian.PutUint64(w.hdr[:], key)
	if _, err := w.bw.Write(w.hdr[:]); err != nil {
		return err
	}
	if _, err := w.bw.Write(value); err != nil {
		return err
	}

	if w.stats.Count == 0 {
		w.stats.Start = key
	}
	w.stats.End = key
	w.stats.Count++
	return nil
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.bw.Flush()
}

// Stats returns the range and count of the records appended so far.
func (w *Writer) Stats() Stats {
	return w.stats
}

// Reader decodes records from a segment.
//
//	r := segment.NewReader(src, 128)
//	for r.Next() {
//		use(r.Key(), r.Value())
//	}
//	if err := r.Err(); err != nil { ... }
type Reader struct {
	br    *bufio.Reader
	rec   []byte
	key   uint64
	count int
	err   error
}

// NewReader returns a Reader for records with values of valueSize bytes.
func NewReader(r io.Reader, valueSize int) *Reader {
	return &Reader{
		br:  bufio.NewReaderSize(r, 64*1024),
		rec: make([]byte, RecordSize(valueSize)),
	}
}

// Next advances to the next record. It returns false at the end of the
// segment or on error.
func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}

	_, err := io.ReadFull(r.br, r.rec)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		return false
	case errors.Is(err, io.ErrUnexpectedEOF):
		r.err = fmt.Errorf("%w: truncated record %d", ErrCorrupt, r.count)
		return false
	default:
		r.err = err
		return false
	}

	key := binary.LittleEndian.Uint64(r.rec[:KeySize])
	if r.count > 0 && key <= r.key {
		r.err = fmt.Errorf("%w: key %d after %d", ErrCorrupt, key, r.key)
		return false
	}
	r.key = key
	r.count++
	return true
}

// Key returns the current record's key.
func (r *Reader) Key() uint64 { return r.key }

// Value returns the current record's value.
// The slice is only valid until the next call to Next.
func (r *Reader) Value() []byte { return r.rec[KeySize:] }

// Count returns the number of records read so far.
func (r *Reader) Count() int { return r.count }

// Err returns the first error encountered.
func (r *Reader) Err() error { return r.err }
