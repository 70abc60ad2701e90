package mmap

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOptionsHas(t *testing.T) {
	var o Options = SequentialAccess
	if !o.Has(SequentialAccess) || Options(0).Has(SequentialAccess) {
		t.Fatalf("Options.Has returned unexpected results for %v", o)
	}
}

func TestMapAndUnmap(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "data")
	ensure(os.WriteFile(fn, []byte("hello, mapped world"), 0o600))

	f := must(os.Open(fn))
	defer f.Close()

	b, err := Map(f, 19, SequentialAccess)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if string(b) != "hello, mapped world" {
		t.Fatalf("mapped = %q", b)
	}
	if err := Unmap(b); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
}

func TestMap_empty(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "empty")
	ensure(os.WriteFile(fn, nil, 0o600))
	f := must(os.Open(fn))
	defer f.Close()

	b, err := Map(f, 0, 0)
	if err != nil || b == nil || len(b) != 0 {
		t.Fatalf("Map(empty) = %v, %v, wanted empty non-nil slice", b, err)
	}
	if err := Unmap(b); err != nil {
		t.Fatalf("Unmap(empty): %v", err)
	}
}

func TestMap_rejectsNegativeSize(t *testing.T) {
	if _, err := Map(nil, -1, 0); err == nil {
		t.Fatalf("Map(-1) succeeded")
	}
}

func TestFdatasync(t *testing.T) {
	f := must(os.Create(filepath.Join(t.TempDir(), "sync")))
	defer f.Close()
	must(f.Write([]byte("x")))
	if err := Fdatasync(f); err != nil {
		t.Fatalf("Fdatasync: %v", err)
	}
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}
