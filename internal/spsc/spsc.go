// Package spsc provides a lock-free single-producer single-consumer queue.
package spsc

import "sync/atomic"

// Ring is a bounded queue of values. Push must only be called by the
// producer goroutine and Pop by the consumer goroutine. Neither of them
// blocks or allocates.
type Ring[T any] struct {
	// producer and consumer positions live on separate cache lines.
	write atomic.Uint64
	_     [56]byte
	read  atomic.Uint64
	_     [56]byte

	buf  []T
	mask uint64
}

// New returns a ring with capacity rounded up to the next power of two.
func New[T any](minSize int) *Ring[T] {
	size := 1
	for size < minSize {
		size <<= 1
	}
	return &Ring[T]{
		buf:  make([]T, size),
		mask: uint64(size - 1),
	}
}

// Push appends value to the queue. False is returned if queue is full.
func (r *Ring[T]) Push(v T) bool {
	w := r.write.Load()
	if w-r.read.Load() == uint64(len(r.buf)) {
		return false
	}
	r.buf[w&r.mask] = v
	r.write.Store(w + 1)
	return true
}

// Pop removes the oldest value from the queue. False is returned if queue
// is empty.
func (r *Ring[T]) Pop() (T, bool) {
	var v T
	rd := r.read.Load()
	if rd == r.write.Load() {
		return v, false
	}
	v = r.buf[rd&r.mask]
	r.read.Store(rd + 1)
	return v, true
}

// Len returns number of values available to the consumer.
func (r *Ring[T]) Len() int {
	return int(r.write.Load() - r.read.Load())
}

// Cap returns capacity of the ring.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}
