// Package buffer provides reference-counted buffers shared between tasks
// of a processing schedule.
//
// Buffers are accessed through non-blocking borrows. A conflicting borrow
// is a programming error and panics with BorrowError instead of waiting.
package buffer

import (
	"fmt"
	"sync/atomic"

	"pipelined.dev/host/collect"
)

// Kind is the kind of data carried by a buffer. Used for diagnostics only.
type Kind uint8

// Buffer kinds.
const (
	Audio32 Kind = iota
	Audio64
	IntermediaryAudio32
	Automation
	Note
)

func (k Kind) String() string {
	switch k {
	case Audio32:
		return "fl"
	case Audio64:
		return "db"
	case IntermediaryAudio32:
		return "ifl"
	case Automation:
		return "ev"
	case Note:
		return "nt"
	}
	return "unknown"
}

// ID identifies the buffer in diagnostics.
type ID struct {
	Index uint32
	Kind  Kind
}

func (id ID) String() string {
	return fmt.Sprintf("%v(%d)", id.Kind, id.Index)
}

// BorrowError is the value of panic raised on conflicting borrow.
type BorrowError struct {
	ID      ID
	Mutable bool
}

func (e BorrowError) Error() string {
	if e.Mutable {
		return fmt.Sprintf("buffer %v: already borrowed", e.ID)
	}
	return fmt.Sprintf("buffer %v: already mutably borrowed", e.ID)
}

// writer marks exclusive borrow in the borrow flag.
const writer = -1

type data[T comparable] struct {
	collect.Node
	borrow   atomic.Int32
	s        []T
	constant atomic.Bool
	id       ID
}

// Shared is a reference-counted buffer of samples or events. Zero value is
// not usable, buffers are created with New or WithCapacity.
type Shared[T comparable] struct {
	d *data[T]
}

// New returns a buffer of maxFrames zero values.
func New[T comparable](h collect.Handle, maxFrames int, id ID) Shared[T] {
	return newShared(h, make([]T, maxFrames), id)
}

// WithCapacity returns an empty buffer with provided capacity. It's used
// for event buffers.
func WithCapacity[T comparable](h collect.Handle, capacity int, id ID) Shared[T] {
	return newShared(h, make([]T, 0, capacity), id)
}

func newShared[T comparable](h collect.Handle, s []T, id ID) Shared[T] {
	d := &data[T]{s: s, id: id}
	h.Track(&d.Node, func() {
		d.s = nil
	})
	return Shared[T]{d: d}
}

// IsZero returns true if the buffer is not initialized.
func (b Shared[T]) IsZero() bool {
	return b.d == nil
}

// Clone returns a new reference to the same buffer.
func (b Shared[T]) Clone() Shared[T] {
	b.d.Retain()
	return b
}

// Release drops the reference. The buffer is reclaimed by the collector
// once all references are released.
func (b Shared[T]) Release() {
	b.d.Release()
}

// ID returns the debug identity.
func (b Shared[T]) ID() ID {
	return b.d.id
}

// SetConstant sets the constant hint.
func (b Shared[T]) SetConstant(constant bool) {
	b.d.constant.Store(constant)
}

// IsConstant returns the constant hint. It may be false for a buffer that
// is actually constant.
func (b Shared[T]) IsConstant() bool {
	return b.d.constant.Load()
}

// Borrow returns a shared borrow. Panics if the buffer is mutably
// borrowed.
func (b Shared[T]) Borrow() Ref[T] {
	for {
		s := b.d.borrow.Load()
		if s == writer {
			panic(BorrowError{ID: b.d.id})
		}
		if b.d.borrow.CompareAndSwap(s, s+1) {
			return Ref[T]{d: b.d}
		}
	}
}

// BorrowMut returns an exclusive borrow. Panics if the buffer is
// borrowed.
func (b Shared[T]) BorrowMut() RefMut[T] {
	if !b.d.borrow.CompareAndSwap(0, writer) {
		panic(BorrowError{ID: b.d.id, Mutable: true})
	}
	return RefMut[T]{d: b.d}
}

// Clear zeroes first frames values and sets constant hint.
func (b Shared[T]) Clear(frames int) {
	r := b.BorrowMut()
	s := r.Slice()
	if frames > len(s) {
		frames = len(s)
	}
	clear(s[:frames])
	r.Release()
	b.SetConstant(true)
}

// Truncate removes all values from the buffer, capacity is retained.
func (b Shared[T]) Truncate() {
	r := b.BorrowMut()
	r.Reset()
	r.Release()
}

// HasSilentHint returns true if the buffer could be silent. It relies
// only on the constant hint and the first value.
func (b Shared[T]) HasSilentHint() bool {
	if !b.IsConstant() {
		return false
	}
	r := b.Borrow()
	defer r.Release()
	s := r.Slice()
	var zero T
	return len(s) > 0 && s[0] == zero
}

// Ref is a shared borrow of the buffer.
type Ref[T comparable] struct {
	d *data[T]
}

// Slice returns the borrowed values. The slice must not be used after
// release.
func (r Ref[T]) Slice() []T {
	return r.d.s
}

// Release ends the borrow.
func (r Ref[T]) Release() {
	r.d.borrow.Add(-1)
}

// RefMut is an exclusive borrow of the buffer.
type RefMut[T comparable] struct {
	d *data[T]
}

// Slice returns the borrowed values. The slice must not be used after
// release.
func (r RefMut[T]) Slice() []T {
	return r.d.s
}

// Append adds values to the end of the buffer. The buffer never grows
// beyond its capacity, values that don't fit are dropped. Number of added
// values is returned.
func (r RefMut[T]) Append(v ...T) int {
	if free := cap(r.d.s) - len(r.d.s); len(v) > free {
		v = v[:free]
	}
	r.d.s = append(r.d.s, v...)
	return len(v)
}

// Reset sets length of the buffer to zero.
func (r RefMut[T]) Reset() {
	r.d.s = r.d.s[:0]
}

// Release ends the borrow.
func (r RefMut[T]) Release() {
	r.d.borrow.Store(0)
}
