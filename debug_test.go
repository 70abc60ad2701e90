package infolist

import (
	"errors"
	"strings"
	"testing"
)

func TestInfoList_dump(t *testing.T) {
	reg := NewRegistry()
	l := must(reg.New(NoOwner))
	it := l.NewItem()
	ensure(it.NewVarInteger("id", 42))
	ensure(it.NewVarString("label", "hello"))

	e := "infolist 0.1 (owner <none>, 1 items, cursor unset)\n" +
		"  item 0 (2 vars)\n" +
		"    integer id = 42\n" +
		"    string label = \"hello\"\n"
	if got := l.Dump(); got != e {
		t.Fatalf("Dump() = %q, wanted %q", got, e)
	}

	l.Next()
	if got := l.Dump(); !strings.Contains(got, "cursor 0") {
		t.Fatalf("Dump() = %q, wanted cursor 0", got)
	}

	l.Free()
	if got := l.Dump(); !strings.Contains(got, "FREED") {
		t.Fatalf("Dump() of freed list = %q", got)
	}
}

func TestRegistry_dump(t *testing.T) {
	reg := NewRegistry()
	must(reg.New(NoOwner)).NewItem()
	must(reg.New(NewOwnerID()))

	got := reg.Dump()
	if !strings.HasPrefix(got, "2 LIVE INFOLISTS\n") || strings.Count(got, dumpSep) != 2 {
		t.Fatalf("Dump() = %q", got)
	}
}

func TestVarError(t *testing.T) {
	err := varErr("x", Buffer, ErrInvalidName, "duplicate name")
	if !errors.Is(err, ErrInvalidName) {
		t.Fatalf("errors.Is(err, ErrInvalidName) = false")
	}
	if s := err.Error(); s != `infolist: buffer var "x": duplicate name: invalid variable name` {
		t.Fatalf("Error() = %q", s)
	}
}
