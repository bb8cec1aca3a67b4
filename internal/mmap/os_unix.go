//go:build unix

package mmap

import (
	"errors"

	"golang.org/x/sys/unix"
)

var errUnsupported = errors.New("mmap: unsupported")

func osMap(fd uintptr, size int) ([]byte, error) {
	data, err := unix.Mmap(int(fd), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	// Advisory only.
	_ = unix.Madvise(data, unix.MADV_SEQUENTIAL)
	return data, nil
}

func osUnmap(data []byte) error { return unix.Munmap(data) }
