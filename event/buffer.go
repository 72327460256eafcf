package event

// Buffer is a pre-allocated list of events. It's used as scratch input and
// output for plugin processing.
type Buffer struct {
	events []Event
}

// NewBuffer returns a buffer with provided capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{events: make([]Event, 0, capacity)}
}

// Push appends event to the buffer. The buffer never grows, false is
// returned and the event is dropped if it's full.
func (b *Buffer) Push(e Event) bool {
	if len(b.events) == cap(b.events) {
		return false
	}
	b.events = append(b.events, e)
	return true
}

// Cap returns capacity of the buffer.
func (b *Buffer) Cap() int {
	return cap(b.events)
}

// Clear removes all events, capacity is retained.
func (b *Buffer) Clear() {
	b.events = b.events[:0]
}

// Len returns number of events.
func (b *Buffer) Len() int {
	return len(b.events)
}

// At returns event at index i.
func (b *Buffer) At(i int) Event {
	return b.events[i]
}

// Events returns all events. The slice is valid until the next change of
// the buffer.
func (b *Buffer) Events() []Event {
	return b.events
}
