// Package mmap maps files into memory read-only and provides a durable sync
// for files written the regular way.
package mmap

import (
	"fmt"
	"os"
)

type Options uint

const (
	// SequentialAccess is a hint requesting aggressive read-ahead.
	// Maps to MADV_SEQUENTIAL on Unix.
	SequentialAccess Options = 1 << 0
)

func (o Options) Has(v Options) bool {
	return o&v != 0
}

// Map maps the first size bytes of f read-only. A zero size yields an empty
// non-nil slice without touching the OS, since empty mappings are rejected by
// most kernels.
func Map(f *os.File, size int64, opt Options) ([]byte, error) {
	if size < 0 || size > MaxSize {
		return nil, fmt.Errorf("mmap: unsupported size %d", size)
	}
	if size == 0 {
		return []byte{}, nil
	}
	return mmap(f, int(size), opt)
}

// Unmap releases a slice returned by Map.
func Unmap(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return munmap(b)
}
