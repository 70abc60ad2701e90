package infolist

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"time"
)

type Kind uint8

const (
	Integer Kind = iota
	String
	Pointer
	Buffer
	Time

	numKinds
)

var kindTags = [numKinds]byte{'i', 's', 'p', 'b', 't'}

var kindNames = [numKinds]string{"integer", "string", "pointer", "buffer", "time"}

// Tag returns the one-letter tag used in field lists.
func (k Kind) Tag() byte {
	if k >= numKinds {
		return '?'
	}
	return kindTags[k]
}

func (k Kind) String() string {
	if k >= numKinds {
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

func (k Kind) Valid() bool {
	return k < numKinds
}

// KindByTag is the inverse of Kind.Tag.
func KindByTag(tag byte) (Kind, bool) {
	for k, t := range kindTags {
		if t == tag {
			return Kind(k), true
		}
	}
	return 0, false
}

// Value is a tagged union of the values a variable can hold. The zero Value
// is an Integer zero.
type Value struct {
	kind Kind
	num  int64 // Integer and Time
	str  string
	buf  []byte
	ptr  any
}

func IntegerValue(v int32) Value {
	return Value{kind: Integer, num: int64(v)}
}

func StringValue(s string) Value {
	return Value{kind: String, str: s}
}

// PointerValue wraps an opaque handle. Pointers are never persisted, they are
// only meaningful inside the running process.
func PointerValue(p any) Value {
	return Value{kind: Pointer, ptr: p}
}

// BufferValue wraps b without copying it.
func BufferValue(b []byte) Value {
	if b == nil {
		b = []byte{}
	}
	return Value{kind: Buffer, buf: b}
}

// TimeValue keeps whole seconds only.
func TimeValue(t time.Time) Value {
	if t.IsZero() {
		return Value{kind: Time}
	}
	return Value{kind: Time, num: t.Unix()}
}

func UnixValue(sec int64) Value {
	return Value{kind: Time, num: sec}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) AsInteger() int32 {
	if v.kind != Integer {
		return 0
	}
	return int32(v.num)
}

func (v Value) AsString() string {
	if v.kind != String {
		return ""
	}
	return v.str
}

func (v Value) AsPointer() any {
	if v.kind != Pointer {
		return nil
	}
	return v.ptr
}

// AsBuffer returns the underlying bytes, which must not be modified.
func (v Value) AsBuffer() []byte {
	if v.kind != Buffer {
		return nil
	}
	return v.buf
}

// AsUnix returns Unix seconds of a Time value.
func (v Value) AsUnix() int64 {
	if v.kind != Time {
		return 0
	}
	return v.num
}

// AsTime returns the zero time.Time for non-Time values.
func (v Value) AsTime() time.Time {
	if v.kind != Time {
		return time.Time{}
	}
	return time.Unix(v.num, 0)
}

func (v Value) Equal(w Value) bool {
	if v.kind != w.kind {
		return false
	}
	switch v.kind {
	case Integer, Time:
		return v.num == w.num
	case String:
		return v.str == w.str
	case Buffer:
		return string(v.buf) == string(w.buf)
	case Pointer:
		return samePointer(v.ptr, w.ptr)
	default:
		return false
	}
}

func samePointer(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

func (v Value) String() string {
	switch v.kind {
	case Integer:
		return strconv.FormatInt(v.num, 10)
	case String:
		return strconv.Quote(v.str)
	case Pointer:
		if v.ptr == nil {
			return "<nil>"
		}
		switch reflect.ValueOf(v.ptr).Kind() {
		case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Chan, reflect.Func, reflect.Slice:
			return fmt.Sprintf("%T(%p)", v.ptr, v.ptr)
		default:
			return fmt.Sprintf("%T(%v)", v.ptr, v.ptr)
		}
	case Buffer:
		return fmt.Sprintf("(%d) %s", len(v.buf), hexstr(v.buf))
	case Time:
		return strconv.FormatInt(v.num, 10) + " (" + time.Unix(v.num, 0).UTC().Format(time.RFC3339) + ")"
	default:
		return "<invalid>"
	}
}

func (v Value) LogValue() slog.Value {
	switch v.kind {
	case Integer:
		return slog.Int64Value(v.num)
	case String:
		return slog.StringValue(v.str)
	case Buffer:
		return slog.StringValue(hexstr(v.buf))
	case Time:
		return slog.TimeValue(time.Unix(v.num, 0))
	default:
		return slog.StringValue(v.String())
	}
}

func hexstr(b []byte) string {
	if b == nil {
		return "<nil>"
	}
	if len(b) == 0 {
		return "<empty>"
	}
	return hex.EncodeToString(b)
}
