package infolist

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestKind(t *testing.T) {
	for k := Integer; k < numKinds; k++ {
		got, ok := KindByTag(k.Tag())
		if !ok || got != k {
			t.Fatalf("KindByTag(%c) = %v, %v, wanted %v", k.Tag(), got, ok, k)
		}
	}
	if _, ok := KindByTag('x'); ok {
		t.Fatalf("KindByTag(x) succeeded")
	}
	if s := Kind(9).String(); s != "kind(9)" {
		t.Fatalf("Kind(9).String() = %q", s)
	}
	if Kind(9).Tag() != '?' || Kind(9).Valid() {
		t.Fatalf("Kind(9) considered valid")
	}
}

func TestValue_accessorsOnlyMatchTheirKind(t *testing.T) {
	p := &struct{}{}
	vals := []Value{
		IntegerValue(-7),
		StringValue("s"),
		PointerValue(p),
		BufferValue([]byte{1}),
		UnixValue(99),
	}
	for i, v := range vals {
		if (v.AsInteger() != 0) != (i == 0) {
			t.Errorf("%v.AsInteger() = %d", v.Kind(), v.AsInteger())
		}
		if (v.AsString() != "") != (i == 1) {
			t.Errorf("%v.AsString() = %q", v.Kind(), v.AsString())
		}
		if (v.AsPointer() != nil) != (i == 2) {
			t.Errorf("%v.AsPointer() = %v", v.Kind(), v.AsPointer())
		}
		if (v.AsBuffer() != nil) != (i == 3) {
			t.Errorf("%v.AsBuffer() = %v", v.Kind(), v.AsBuffer())
		}
		if (!v.AsTime().IsZero()) != (i == 4) {
			t.Errorf("%v.AsTime() = %v", v.Kind(), v.AsTime())
		}
	}
}

func TestValue_equal(t *testing.T) {
	p, q := &struct{ a int }{}, &struct{ a int }{}
	tests := []struct {
		a, b Value
		eq   bool
	}{
		{IntegerValue(1), IntegerValue(1), true},
		{IntegerValue(1), UnixValue(1), false},
		{StringValue("a"), StringValue("a"), true},
		{BufferValue(nil), BufferValue([]byte{}), true},
		{BufferValue([]byte{1}), BufferValue([]byte{2}), false},
		{PointerValue(p), PointerValue(p), true},
		{PointerValue(p), PointerValue(q), false},
		{PointerValue(nil), PointerValue(nil), true},
		{PointerValue([]int{1}), PointerValue([]int{1}), false},
		{TimeValue(time.Unix(5, 999)), UnixValue(5), true},
	}
	for _, tt := range tests {
		if got := tt.a.Equal(tt.b); got != tt.eq {
			t.Errorf("%v.Equal(%v) = %v, wanted %v", tt.a, tt.b, got, tt.eq)
		}
	}
}

func TestValue_zeroTime(t *testing.T) {
	v := TimeValue(time.Time{})
	if v.AsUnix() != 0 {
		t.Fatalf("TimeValue(zero).AsUnix() = %d, wanted 0", v.AsUnix())
	}
}

func TestValue_string(t *testing.T) {
	tests := []struct {
		v Value
		e string
	}{
		{IntegerValue(42), "42"},
		{StringValue("hi"), `"hi"`},
		{BufferValue([]byte{0xAB}), "(1) ab"},
		{BufferValue(nil), "(0) <empty>"},
		{UnixValue(0), "0 (1970-01-01T00:00:00Z)"},
		{PointerValue(nil), "<nil>"},
		{PointerValue(7), "int(7)"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.e {
			t.Errorf("String() = %q, wanted %q", got, tt.e)
		}
	}
	if s := PointerValue(&struct{}{}).String(); !strings.HasPrefix(s, "*struct {}(0x") {
		t.Errorf("pointer String() = %q", s)
	}
}

func TestValue_logValue(t *testing.T) {
	if k := IntegerValue(1).LogValue().Kind(); k != slog.KindInt64 {
		t.Fatalf("integer LogValue kind = %v", k)
	}
	if k := UnixValue(1).LogValue().Kind(); k != slog.KindTime {
		t.Fatalf("time LogValue kind = %v", k)
	}
	if s := BufferValue([]byte{1, 2}).LogValue().String(); s != "0102" {
		t.Fatalf("buffer LogValue = %q", s)
	}
}
