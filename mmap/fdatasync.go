package mmap

import "os"

// Fdatasync flushes the data written to f to stable storage. Where the OS
// allows it, file metadata such as modification times is skipped.
//
// After a failure the on-disk contents are unknown, and retrying proves
// nothing: the kernel may already have marked the pages clean.
func Fdatasync(f *os.File) error {
	return fdatasync(f)
}
