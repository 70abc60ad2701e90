// Package export converts infolist items into self-describing records and
// streams them as text, JSON lines, CBOR or MessagePack.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/andreyvit/infolist"
)

type Format int

const (
	Text Format = iota
	JSON
	CBOR
	MsgPack
)

var formatNames = [...]string{"text", "json", "cbor", "msgpack"}

func (f Format) String() string {
	if f >= 0 && int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("format(%d)", int(f))
}

func ParseFormat(s string) (Format, error) {
	for i, name := range formatNames {
		if strings.EqualFold(s, name) {
			return Format(i), nil
		}
	}
	return 0, fmt.Errorf("export: unknown format %q (wanted one of %s)", s, strings.Join(formatNames[:], ", "))
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("export: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Var holds a variable's value as int32, string, []byte or int64 (Unix
// seconds, for times). Pointers are exported as their printed form.
type Var struct {
	Name  string `json:"name" cbor:"name" msgpack:"name"`
	Type  string `json:"type" cbor:"type" msgpack:"type"`
	Value any    `json:"value" cbor:"value" msgpack:"value"`
}

type Object struct {
	Kind int32 `json:"kind" cbor:"kind" msgpack:"kind"`
	Vars []Var `json:"vars" cbor:"vars" msgpack:"vars"`
}

func FromItem(kind int32, it *infolist.Item) Object {
	o := Object{Kind: kind, Vars: make([]Var, 0, it.Len())}
	for v := range it.All() {
		o.Vars = append(o.Vars, Var{Name: v.Name, Type: v.Kind().String(), Value: exportValue(v.Value)})
	}
	return o
}

// FromInfoList returns one object per item, in list order. The cursor is
// left untouched.
func FromInfoList(kind int32, l *infolist.InfoList) []Object {
	objs := make([]Object, 0, l.Len())
	for _, it := range l.Items() {
		objs = append(objs, FromItem(kind, it))
	}
	return objs
}

func exportValue(v infolist.Value) any {
	switch v.Kind() {
	case infolist.Integer:
		return v.AsInteger()
	case infolist.String:
		return v.AsString()
	case infolist.Buffer:
		return v.AsBuffer()
	case infolist.Time:
		return v.AsUnix()
	default:
		return v.String()
	}
}

// Encoder writes a stream of objects. CBOR output is a sequence of canonical
// items; JSON output has one object per line.
type Encoder struct {
	w   io.Writer
	f   Format
	js  *json.Encoder
	cb  *cbor.Encoder
	mp  *msgpack.Encoder
	buf strings.Builder
}

func NewEncoder(w io.Writer, f Format) *Encoder {
	e := &Encoder{w: w, f: f}
	switch f {
	case Text:
	case JSON:
		e.js = json.NewEncoder(w)
		e.js.SetEscapeHTML(false)
	case CBOR:
		e.cb = cborEncMode.NewEncoder(w)
	case MsgPack:
		e.mp = msgpack.NewEncoder(w)
		e.mp.SetSortMapKeys(true)
	default:
		panic("export: unsupported format " + f.String())
	}
	return e
}

func (e *Encoder) Encode(o Object) error {
	switch e.f {
	case JSON:
		return e.js.Encode(&o)
	case CBOR:
		return e.cb.Encode(&o)
	case MsgPack:
		return e.mp.Encode(&o)
	default:
		e.buf.Reset()
		fmt.Fprintf(&e.buf, "object %d (%d vars)\n", o.Kind, len(o.Vars))
		for _, v := range o.Vars {
			fmt.Fprintf(&e.buf, "  %s %s = %s\n", v.Type, v.Name, textValue(v))
		}
		_, err := io.WriteString(e.w, e.buf.String())
		return err
	}
}

// EncodeInfoList encodes every item of l as an object of the given kind.
func (e *Encoder) EncodeInfoList(kind int32, l *infolist.InfoList) error {
	for _, o := range FromInfoList(kind, l) {
		if err := e.Encode(o); err != nil {
			return err
		}
	}
	return nil
}

func textValue(v Var) string {
	switch val := v.Value.(type) {
	case string:
		return fmt.Sprintf("%q", val)
	case []byte:
		return infolist.BufferValue(val).String()
	case int64:
		if v.Type == infolist.Time.String() {
			return infolist.UnixValue(val).String()
		}
	}
	return fmt.Sprint(v.Value)
}
