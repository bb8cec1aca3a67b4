package mmap

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
)

var (
	// ErrClosed is returned when a closed Region is read.
	ErrClosed = errors.New("mmap: region is closed")
	// ErrTooLarge is returned for files that do not fit the address space.
	ErrTooLarge = errors.New("mmap: file too large")
)

// File is what Map needs from an open file.
type File interface {
	io.ReaderAt
	Stat() (os.FileInfo, error)
}

// descriptor is implemented by *os.File.
type descriptor interface {
	Fd() uintptr
}

// Region is a read-only view over the whole content of a file.
type Region struct {
	data   []byte
	mapped bool
	closed atomic.Bool
}

// Map returns a Region holding the content of f. Files that expose a
// descriptor are mapped and advised for sequential access; other files are
// read into memory through ReadAt. The caller may close f once Map returns.
func Map(f File) (*Region, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if size < 0 || int64(int(size)) != size {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}
	if size == 0 {
		return &Region{}, nil
	}

	if d, ok := f.(descriptor); ok {
		data, err := osMap(d.Fd(), int(size))
		if err == nil {
			return &Region{data: data, mapped: true}, nil
		}
		if !errors.Is(err, errUnsupported) {
			return nil, err
		}
	}

	data := make([]byte, size)
	n, err := f.ReadAt(data, 0)
	if n < len(data) {
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return &Region{data: data}, nil
}

// Mapped reports whether the Region is backed by a memory mapping.
func (r *Region) Mapped() bool { return r.mapped }

// Len returns the size of the Region in bytes.
func (r *Region) Len() int64 { return int64(len(r.data)) }

// Bytes returns the content. The slice must not be used after Close.
func (r *Region) Bytes() ([]byte, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}
	return r.data, nil
}

// ReadAt copies content starting at off into p. It returns io.EOF when
// fewer than len(p) bytes remain.
func (r *Region) ReadAt(p []byte, off int64) (int, error) {
	if r.closed.Load() {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("mmap: negative offset %d", off)
	}
	if off >= int64(len(r.data)) {
		return 0, io.EOF
	}
	n := copy(p, r.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Close releases the Region. Calling Close more than once is a no-op.
func (r *Region) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	data := r.data
	r.data = nil
	if r.mapped && len(data) > 0 {
		return osUnmap(data)
	}
	return nil
}
