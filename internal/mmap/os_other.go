//go:build !unix

package mmap

import "errors"

var errUnsupported = errors.New("mmap: unsupported")

func osMap(uintptr, int) ([]byte, error) { return nil, errUnsupported }

func osUnmap([]byte) error { return nil }
