package infolist

import (
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
)

// OwnerID identifies the consumer (usually a plugin) that owns a list.
// The zero OwnerID means no owner.
type OwnerID uuid.UUID

var NoOwner OwnerID

func NewOwnerID() OwnerID {
	return OwnerID(uuid.New())
}

func ParseOwnerID(s string) (OwnerID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NoOwner, fmt.Errorf("invalid owner id: %w", err)
	}
	return OwnerID(u), nil
}

func (o OwnerID) IsZero() bool {
	return o == NoOwner
}

func (o OwnerID) String() string {
	if o.IsZero() {
		return "<none>"
	}
	return uuid.UUID(o).String()
}

// Handle refers to a registered list. The zero Handle is never valid.
type Handle struct {
	index uint32
	gen   uint32
}

func (h Handle) IsZero() bool {
	return h.gen == 0
}

func (h Handle) String() string {
	return fmt.Sprintf("%d.%d", h.index, h.gen)
}

type slot struct {
	gen  uint32
	list *InfoList
}

// Registry keeps track of live lists. Slots of freed lists are reused with a
// bumped generation, so stale handles never alias new lists.
type Registry struct {
	mu     sync.Mutex
	slots  []slot
	free   []uint32
	live   int
	closed bool
}

func NewRegistry() *Registry {
	return &Registry{}
}

// New registers an empty list. It fails with ErrAllocationFailure after Close
// or when the handle space is exhausted.
func (r *Registry) New(owner OwnerID) (*InfoList, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, fmt.Errorf("infolist: registry closed: %w", ErrAllocationFailure)
	}

	var idx uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		if uint64(len(r.slots)) >= math.MaxUint32 {
			return nil, fmt.Errorf("infolist: too many lists: %w", ErrAllocationFailure)
		}
		idx = uint32(len(r.slots))
		r.slots = append(r.slots, slot{})
	}

	s := &r.slots[idx]
	s.gen++
	l := &InfoList{
		reg:    r,
		handle: Handle{index: idx, gen: s.gen},
		owner:  owner,
		cursor: noCursor,
	}
	s.list = l
	r.live++
	return l, nil
}

func (r *Registry) IsValid(h Handle) bool {
	return r.Lookup(h) != nil
}

// Lookup returns the live list with the given handle, or nil.
func (r *Registry) Lookup(h Handle) *InfoList {
	if h.IsZero() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if int(h.index) >= len(r.slots) {
		return nil
	}
	s := r.slots[h.index]
	if s.gen != h.gen {
		return nil
	}
	return s.list
}

// Len returns the number of live lists.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

// Lists returns a snapshot of live lists in slot order.
func (r *Registry) Lists() []*InfoList {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*InfoList, 0, r.live)
	for _, s := range r.slots {
		if s.list != nil {
			result = append(result, s.list)
		}
	}
	return result
}

// FreeAllOwnedBy frees every list registered with the given owner and
// returns how many were freed. Passing NoOwner frees the lists without an
// owner.
func (r *Registry) FreeAllOwnedBy(owner OwnerID) int {
	var victims []*InfoList
	r.mu.Lock()
	for i := range r.slots {
		s := &r.slots[i]
		if s.list != nil && s.list.owner == owner {
			victims = append(victims, s.list)
			r.unregister_locked(s.list)
		}
	}
	r.mu.Unlock()

	for _, l := range victims {
		l.release()
	}
	return len(victims)
}

// Close frees all lists. Any later New fails.
func (r *Registry) Close() {
	var victims []*InfoList
	r.mu.Lock()
	r.closed = true
	for i := range r.slots {
		if l := r.slots[i].list; l != nil {
			victims = append(victims, l)
			r.unregister_locked(l)
		}
	}
	r.mu.Unlock()

	for _, l := range victims {
		l.release()
	}
}

func (r *Registry) unregister(l *InfoList) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unregister_locked(l)
}

func (r *Registry) unregister_locked(l *InfoList) {
	h := l.handle
	if int(h.index) >= len(r.slots) {
		panic("infolist: handle out of range")
	}
	s := &r.slots[h.index]
	if s.gen != h.gen || s.list != l {
		panic("infolist: list is not registered")
	}
	s.list = nil
	r.live--
	// a slot whose generation is about to wrap is retired for good
	if s.gen != math.MaxUint32 {
		r.free = append(r.free, h.index)
	}
}
