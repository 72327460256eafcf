package collect

import (
	"runtime"
	"sync/atomic"
)

type (
	// Shared is a reference-counted value reclaimed by a collector.
	Shared[T any] struct {
		b *box[T]
	}

	box[T any] struct {
		Node
		v T
	}

	// Cell is an atomically swappable Shared value. Acquire is called by
	// the audio goroutine and never waits. Set and Close are called by
	// the control goroutine and wait until concurrent Acquire calls leave
	// the cell before releasing the replaced value.
	Cell[T any] struct {
		readers atomic.Int64
		version atomic.Uint64
		cur     atomic.Pointer[box[T]]
	}
)

// NewShared returns a new shared value with a single reference. Finalize
// is optional and called with the value once the value is collected.
func NewShared[T any](h Handle, v T, finalize func(T)) Shared[T] {
	b := &box[T]{v: v}
	h.Track(&b.Node, func() {
		if finalize != nil {
			finalize(b.v)
		}
		var zero T
		b.v = zero
	})
	return Shared[T]{b: b}
}

// Get returns the shared value.
func (s Shared[T]) Get() T {
	return s.b.v
}

// IsZero returns true if s doesn't reference any value.
func (s Shared[T]) IsZero() bool {
	return s.b == nil
}

// Clone returns a new reference to the same value.
func (s Shared[T]) Clone() Shared[T] {
	s.b.Retain()
	return s
}

// Release drops the reference. Releasing a zero Shared is no-op.
func (s Shared[T]) Release() {
	if s.b != nil {
		s.b.Release()
	}
}

// NewCell returns a cell that takes the ownership of provided value.
func NewCell[T any](v Shared[T]) *Cell[T] {
	c := &Cell[T]{}
	c.cur.Store(v.b)
	c.version.Store(1)
	return c
}

// Version is incremented every time the value of cell is replaced.
func (c *Cell[T]) Version() uint64 {
	return c.version.Load()
}

// Acquire returns a new reference to the current value. Zero Shared is
// returned if the cell is closed.
func (c *Cell[T]) Acquire() (Shared[T], uint64) {
	c.readers.Add(1)
	v := c.version.Load()
	b := c.cur.Load()
	if b != nil {
		b.Retain()
	}
	c.readers.Add(-1)
	return Shared[T]{b: b}, v
}

// Set replaces the value of the cell and releases the reference the cell
// held on the previous one.
func (c *Cell[T]) Set(v Shared[T]) {
	c.swap(v.b)
}

// Close releases the current value. Acquire returns zero Shared after
// cell is closed.
func (c *Cell[T]) Close() {
	c.swap(nil)
}

func (c *Cell[T]) swap(b *box[T]) {
	old := c.cur.Swap(b)
	c.version.Add(1)
	for c.readers.Load() != 0 {
		runtime.Gosched()
	}
	if old != nil {
		old.Release()
	}
}
