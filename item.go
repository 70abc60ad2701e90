package infolist

import (
	"iter"
	"strings"
	"time"
)

type Var struct {
	Name  string
	Value Value
}

func (v Var) Kind() Kind {
	return v.Value.kind
}

// Item is a single record of an InfoList. Items are created by
// InfoList.NewItem and stay valid until the list is freed.
type Item struct {
	vars []Var

	fields       string
	fieldsCached bool
}

func (it *Item) Len() int {
	return len(it.vars)
}

// Var returns the i-th variable in insertion order.
func (it *Item) Var(i int) Var {
	return it.vars[i]
}

// Vars returns a copy of the variables in insertion order.
func (it *Item) Vars() []Var {
	if len(it.vars) == 0 {
		return nil
	}
	return append([]Var(nil), it.vars...)
}

func (it *Item) All() iter.Seq[Var] {
	return func(yield func(Var) bool) {
		for _, v := range it.vars {
			if !yield(v) {
				return
			}
		}
	}
}

func (it *Item) SearchVar(name string) (Var, bool) {
	if i := it.find(name); i >= 0 {
		return it.vars[i], true
	}
	return Var{}, false
}

func (it *Item) find(name string) int {
	if name == "" {
		return -1
	}
	for i := range it.vars {
		if it.vars[i].Name == name {
			return i
		}
	}
	return -1
}

// Fields returns the comma-separated "<tag>:<name>" list of the item's
// variables. The string is computed on first call and never updated, so vars
// added after the first call are not listed.
func (it *Item) Fields() string {
	if it.fieldsCached {
		return it.fields
	}
	var buf strings.Builder
	for i, v := range it.vars {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte(v.Value.kind.Tag())
		buf.WriteByte(':')
		buf.WriteString(v.Name)
	}
	it.fields = buf.String()
	it.fieldsCached = true
	return it.fields
}

// NewVar appends a variable. The name must be non-empty and not yet used in
// this item.
func (it *Item) NewVar(name string, value Value) error {
	if !value.kind.Valid() {
		return varErr(name, value.kind, nil, "invalid kind")
	}
	if name == "" {
		return varErr(name, value.kind, ErrInvalidName, "empty name")
	}
	if it.find(name) >= 0 {
		return varErr(name, value.kind, ErrInvalidName, "duplicate name")
	}
	it.vars = append(it.vars, Var{Name: name, Value: value})
	return nil
}

func (it *Item) NewVarInteger(name string, v int32) error {
	return it.NewVar(name, IntegerValue(v))
}

func (it *Item) NewVarString(name string, s string) error {
	return it.NewVar(name, StringValue(s))
}

func (it *Item) NewVarPointer(name string, p any) error {
	return it.NewVar(name, PointerValue(p))
}

// NewVarBuffer copies the first size bytes of data. A negative size is
// treated as zero, and size never reaches past the end of data, so a nil data
// always yields an empty buffer.
func (it *Item) NewVarBuffer(name string, data []byte, size int) error {
	if size < 0 {
		size = 0
	}
	if size > len(data) {
		size = len(data)
	}
	b := make([]byte, size)
	copy(b, data)
	return it.NewVar(name, BufferValue(b))
}

func (it *Item) NewVarTime(name string, t time.Time) error {
	return it.NewVar(name, TimeValue(t))
}

func (it *Item) release() {
	clear(it.vars)
	it.vars = nil
	it.fields, it.fieldsCached = "", false
}
