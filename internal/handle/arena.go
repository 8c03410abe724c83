// Package handle provides a contiguous arena addressed by generation-checked
// handles. A handle that outlives the value it pointed to is detected instead
// of silently aliasing whatever reused the slot.
package handle

import (
	"fmt"
	"iter"
)

// Handle addresses a value stored in an Arena. The zero Handle is null.
type Handle struct {
	slot       uint32
	generation uint32
}

func (h Handle) IsNull() bool { return h.generation == 0 }

func (h Handle) String() string {
	if h.IsNull() {
		return "handle(null)"
	}
	return fmt.Sprintf("handle(%d#%d)", h.slot, h.generation)
}

// Pack folds h into a single integer. The null handle packs to zero.
func (h Handle) Pack() uint64 { return uint64(h.slot)<<32 | uint64(h.generation) }

// Unpack is the inverse of Handle.Pack.
func Unpack(v uint64) Handle {
	return Handle{slot: uint32(v >> 32), generation: uint32(v)}
}

type slot struct {
	generation uint32
	dense      uint32
	live       bool
}

// Arena stores values densely. Removal swaps the last value into the hole so
// iteration stays a linear scan.
type Arena[T any] struct {
	values []T
	owners []uint32 // dense index -> slot
	slots  []slot
	free   []uint32
}

// New creates an empty arena with room for capacity values.
func New[T any](capacity int) *Arena[T] {
	return &Arena[T]{
		values: make([]T, 0, capacity),
		owners: make([]uint32, 0, capacity),
	}
}

// Insert stores v and returns its handle.
func (a *Arena[T]) Insert(v T) Handle {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot{})
	}
	s := &a.slots[idx]
	s.generation++
	s.dense = uint32(len(a.values))
	s.live = true

	a.values = append(a.values, v)
	a.owners = append(a.owners, idx)
	return Handle{slot: idx, generation: s.generation}
}

func (a *Arena[T]) lookup(h Handle) (*slot, bool) {
	if h.IsNull() || int(h.slot) >= len(a.slots) {
		return nil, false
	}
	s := &a.slots[h.slot]
	if !s.live || s.generation != h.generation {
		return nil, false
	}
	return s, true
}

// Get returns a pointer to the value behind h. The pointer is invalidated by
// the next Insert or Remove.
func (a *Arena[T]) Get(h Handle) (*T, bool) {
	s, ok := a.lookup(h)
	if !ok {
		return nil, false
	}
	return &a.values[s.dense], true
}

// MustGet is Get for handles the caller knows to be live.
func (a *Arena[T]) MustGet(h Handle) *T {
	v, ok := a.Get(h)
	if !ok {
		panic(fmt.Sprintf("handle: stale or foreign %s", h))
	}
	return v
}

// Remove deletes the value behind h. It reports false for stale handles.
func (a *Arena[T]) Remove(h Handle) bool {
	s, ok := a.lookup(h)
	if !ok {
		return false
	}
	last := len(a.values) - 1
	hole := s.dense
	if int(hole) != last {
		a.values[hole] = a.values[last]
		moved := a.owners[last]
		a.owners[hole] = moved
		a.slots[moved].dense = hole
	}
	var zero T
	a.values[last] = zero
	a.values = a.values[:last]
	a.owners = a.owners[:last]

	s.live = false
	a.free = append(a.free, h.slot)
	return true
}

func (a *Arena[T]) Len() int { return len(a.values) }

// All iterates over live values with their handles.
func (a *Arena[T]) All() iter.Seq2[Handle, *T] {
	return func(yield func(Handle, *T) bool) {
		for i := range a.values {
			idx := a.owners[i]
			h := Handle{slot: idx, generation: a.slots[idx].generation}
			if !yield(h, &a.values[i]) {
				return
			}
		}
	}
}
