package infolist

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

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

func diffEq[T any](t testing.TB, a, e T) bool {
	if diff := cmp.Diff(e, a); diff != "" {
		t.Helper()
		t.Errorf("** mismatch (-wanted +got):\n%s", diff)
		return false
	}
	return true
}

// sample builds a three-item list with one var per kind in the first item.
func sample(t testing.TB, reg *Registry) *InfoList {
	l := must(reg.New(NoOwner))
	it := l.NewItem()
	ensure(it.NewVarInteger("integer", 123456))
	ensure(it.NewVarString("string", "test string"))
	ensure(it.NewVarPointer("pointer", &struct{ x int }{}))
	ensure(it.NewVarBuffer("buffer", []byte("abc\x00"), 4))
	ensure(it.NewVar("time", UnixValue(1234567890)))

	it = l.NewItem()
	ensure(it.NewVarString("string2", "test2"))

	it = l.NewItem()
	ensure(it.NewVarInteger("n", 3))
	return l
}
