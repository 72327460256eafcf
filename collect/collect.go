/*
Package collect provides deferred reclamation of allocations shared between
the control and the audio goroutines.

Every tracked allocation embeds a Node with an atomic reference count. The
audio goroutine is allowed to retain and release nodes, but it never runs
finalizers: a release that drops the count to zero only pushes the node onto
a lock-free pending stack. The control goroutine calls Collector.Collect
periodically to run finalizers of pending nodes.

A Collector is passed explicitly to every construction site through its
Handle, so independent engines never share reclamation state.
*/
package collect

import (
	"fmt"
	"sync/atomic"
)

type (
	// Collector reclaims allocations whose reference count dropped to
	// zero. Collect must only be called from the control goroutine.
	Collector struct {
		pending atomic.Pointer[Node]
		live    atomic.Int64
	}

	// Handle is used to register new allocations within a collector.
	Handle struct {
		c *Collector
	}

	// Node is embedded into tracked allocations.
	Node struct {
		next     *Node
		refs     atomic.Int64
		finalize func()
		c        *Collector
	}
)

// New returns a new collector.
func New() *Collector {
	return &Collector{}
}

// Handle returns a handle bound to the collector.
func (c *Collector) Handle() Handle {
	return Handle{c: c}
}

// Live returns the number of tracked allocations that were not reclaimed
// yet. Allocations waiting in the pending stack are counted as live.
func (c *Collector) Live() int {
	return int(c.live.Load())
}

// Collect runs finalizers of all pending allocations and returns how many
// were reclaimed. Finalizers may release other nodes, those are reclaimed
// within the same call.
func (c *Collector) Collect() int {
	var n int
	for {
		head := c.pending.Swap(nil)
		if head == nil {
			return n
		}
		for head != nil {
			next := head.next
			head.next = nil
			if head.finalize != nil {
				head.finalize()
			}
			c.live.Add(-1)
			n++
			head = next
		}
	}
}

func (c *Collector) push(n *Node) {
	for {
		head := c.pending.Load()
		n.next = head
		if c.pending.CompareAndSwap(head, n) {
			return
		}
	}
}

// Track registers the node with a single reference. The finalize function
// is executed by Collect once the last reference is released.
func (h Handle) Track(n *Node, finalize func()) {
	if h.c == nil {
		panic("collect: track with zero handle")
	}
	n.c = h.c
	n.finalize = finalize
	n.refs.Store(1)
	h.c.live.Add(1)
}

// IsZero returns true if handle is not bound to any collector.
func (h Handle) IsZero() bool {
	return h.c == nil
}

// Retain adds a reference. Retaining a released node is a programming
// error and panics.
func (n *Node) Retain() {
	if n.refs.Add(1) <= 1 {
		panic(fmt.Sprintf("collect: retain of released allocation %p", n))
	}
}

// Release drops a reference. It never blocks, never allocates and never
// runs the finalizer, so it is safe to call from the audio goroutine.
func (n *Node) Release() {
	switch refs := n.refs.Add(-1); {
	case refs == 0:
		n.c.push(n)
	case refs < 0:
		panic(fmt.Sprintf("collect: release of released allocation %p", n))
	}
}

// Refs returns current number of references.
func (n *Node) Refs() int {
	return int(n.refs.Load())
}
