package infolist

import (
	"iter"
	"time"
)

const noCursor = -1

// InfoList is an ordered list of items with a cursor. Create lists with
// Registry.New and release them with Free.
type InfoList struct {
	reg    *Registry
	handle Handle
	owner  OwnerID
	items  []*Item
	cursor int
}

func (l *InfoList) Handle() Handle {
	return l.handle
}

func (l *InfoList) Owner() OwnerID {
	return l.owner
}

// Freed reports whether Free has been called.
func (l *InfoList) Freed() bool {
	return l.reg == nil
}

func (l *InfoList) Len() int {
	return len(l.items)
}

// NewItem appends an empty item. Panics if the list has been freed.
func (l *InfoList) NewItem() *Item {
	if l.reg == nil {
		panic("infolist: NewItem called on a freed list")
	}
	it := &Item{}
	l.items = append(l.items, it)
	return it
}

// Items iterates over all items without touching the cursor.
func (l *InfoList) Items() iter.Seq2[int, *Item] {
	return func(yield func(int, *Item) bool) {
		for i, it := range l.items {
			if !yield(i, it) {
				return
			}
		}
	}
}

// Next moves the cursor forward and returns the item under it. From an unset
// cursor it moves to the first item. Returns nil, unsetting the cursor, after
// the last item.
func (l *InfoList) Next() *Item {
	if l.cursor == noCursor {
		if len(l.items) == 0 {
			return nil
		}
		l.cursor = 0
		return l.items[0]
	}
	l.cursor++
	if l.cursor >= len(l.items) {
		l.cursor = noCursor
		return nil
	}
	return l.items[l.cursor]
}

// Prev is the mirror image of Next: from an unset cursor it moves to the
// last item.
func (l *InfoList) Prev() *Item {
	if l.cursor == noCursor {
		if len(l.items) == 0 {
			return nil
		}
		l.cursor = len(l.items) - 1
		return l.items[l.cursor]
	}
	l.cursor--
	if l.cursor < 0 {
		l.cursor = noCursor
		return nil
	}
	return l.items[l.cursor]
}

func (l *InfoList) ResetCursor() {
	l.cursor = noCursor
}

// Current returns the item under the cursor, or nil if the cursor is unset.
func (l *InfoList) Current() *Item {
	if l.cursor == noCursor {
		return nil
	}
	return l.items[l.cursor]
}

// Fields returns the field list of the current item (see Item.Fields), or
// false if the cursor is unset.
func (l *InfoList) Fields() (string, bool) {
	it := l.Current()
	if it == nil {
		return "", false
	}
	return it.Fields(), true
}

// SearchVar looks up a variable of the current item.
func (l *InfoList) SearchVar(name string) (Var, bool) {
	it := l.Current()
	if it == nil {
		return Var{}, false
	}
	return it.SearchVar(name)
}

func (l *InfoList) value(name string) Value {
	v, _ := l.SearchVar(name)
	return v.Value
}

// Integer returns the named integer of the current item, or 0.
func (l *InfoList) Integer(name string) int32 {
	return l.value(name).AsInteger()
}

// String returns the named string of the current item, or "".
func (l *InfoList) String(name string) string {
	return l.value(name).AsString()
}

// Pointer returns the named pointer of the current item, or nil.
func (l *InfoList) Pointer(name string) any {
	return l.value(name).AsPointer()
}

// Buffer returns the named buffer of the current item, or nil. The returned
// slice is shared with the list.
func (l *InfoList) Buffer(name string) []byte {
	return l.value(name).AsBuffer()
}

// Time returns the named time of the current item, or the zero time.Time.
func (l *InfoList) Time(name string) time.Time {
	return l.value(name).AsTime()
}

// Free releases all items and unregisters the list. Calling Free again is a
// no-op.
func (l *InfoList) Free() {
	if l.reg == nil {
		return
	}
	l.reg.unregister(l)
	l.release()
}

func (l *InfoList) release() {
	for _, it := range l.items {
		it.release()
	}
	clear(l.items)
	l.items = nil
	l.cursor = noCursor
	l.reg = nil
}
