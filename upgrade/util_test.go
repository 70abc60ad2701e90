package upgrade_test

import (
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/andreyvit/infolist"
	"github.com/andreyvit/infolist/upgrade"
	"github.com/andreyvit/infolist/upgrade/upgradetest"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// sampleList is a one-item list holding a var of every kind.
func sampleList(t testing.TB, reg *infolist.Registry) *infolist.InfoList {
	l := must(reg.New(infolist.NoOwner))
	it := l.NewItem()
	ensure(it.NewVarInteger("n", 42))
	ensure(it.NewVarString("s", "hi"))
	ensure(it.NewVarPointer("p", &struct{}{}))
	ensure(it.NewVarBuffer("b", []byte{1, 2, 0, 9}, 3))
	ensure(it.NewVar("t", infolist.UnixValue(1234567890)))
	return l
}

func run(t testing.TB, fn string, cb upgrade.ReadFunc, o upgrade.Options) error {
	r, err := upgrade.Open(fn, cb, o)
	if err != nil {
		return err
	}
	defer r.Close()
	return r.Run()
}

func readAll(t testing.TB, fn string, o upgrade.Options) ([]upgradetest.Object, error) {
	var rec upgradetest.Recorder
	err := run(t, fn, rec.Read, o)
	return rec.Objects, err
}

func deepEq[T any](t testing.TB, a, e T) bool {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
		return false
	}
	return true
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
