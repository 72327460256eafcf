// Package timer provides a coarse periodic scheduler for the control
// goroutine.
//
// Wheel is not safe for concurrent use. It's polled by the engine on every
// control callback and is never used on the audio path.
package timer

import (
	"fmt"
	"time"
)

// Kind is the category of timer.
type Kind uint8

// Timer kinds.
const (
	// MainIdle drives graph maintenance.
	MainIdle Kind = iota
	// GarbageCollect drives collection passes.
	GarbageCollect
	// PluginTimer is registered by a plugin instance.
	PluginTimer
)

// Key identifies timer entry. Instance and Timer are only set for plugin
// timers.
type Key struct {
	Kind     Kind
	Instance uint64
	Timer    uint32
}

func (k Key) String() string {
	switch k.Kind {
	case MainIdle:
		return "main idle"
	case GarbageCollect:
		return "garbage collect"
	}
	return fmt.Sprintf("plugin %d timer %d", k.Instance, k.Timer)
}

// Entry is a periodic timer.
type Entry struct {
	Key
	Period time.Duration
	Due    time.Time
}

// Wheel holds periodic timer entries.
type Wheel struct {
	entries []Entry
	next    time.Time
}

// NewWheel returns a wheel with idle and garbage collection entries
// first due one period after now.
func NewWheel(now time.Time, idle, gc time.Duration) *Wheel {
	w := &Wheel{}
	w.Insert(Key{Kind: MainIdle}, idle, now)
	w.Insert(Key{Kind: GarbageCollect}, gc, now)
	return w
}

// Insert adds an entry due one period after now. Existing entry with the
// same key is replaced. Non-positive period panics.
func (w *Wheel) Insert(key Key, period time.Duration, now time.Time) {
	if period <= 0 {
		panic(fmt.Sprintf("timer %v: non-positive period %v", key, period))
	}
	e := Entry{Key: key, Period: period, Due: now.Add(period)}
	if i := w.index(key); i >= 0 {
		w.entries[i] = e
	} else {
		w.entries = append(w.entries, e)
	}
	w.updateNext()
}

// Remove deletes the entry. False is returned if entry wasn't found.
func (w *Wheel) Remove(key Key) bool {
	i := w.index(key)
	if i < 0 {
		return false
	}
	w.entries = append(w.entries[:i], w.entries[i+1:]...)
	w.updateNext()
	return true
}

// RemoveInstance deletes all timers of plugin instance and returns the
// number of removed entries.
func (w *Wheel) RemoveInstance(instance uint64) int {
	return w.removeFunc(func(e Entry) bool {
		return e.Kind == PluginTimer && e.Instance == instance
	})
}

// Reset deletes all plugin timers, idle and garbage collection entries
// are kept.
func (w *Wheel) Reset() {
	w.removeFunc(func(e Entry) bool {
		return e.Kind == PluginTimer
	})
}

// Len returns number of entries.
func (w *Wheel) Len() int {
	return len(w.entries)
}

// Advance appends every entry due at now to the due slice and reschedules
// them one period after their due instant. Every entry is returned at most
// once per call. The instant of the next due entry is returned.
func (w *Wheel) Advance(now time.Time, due []Entry) ([]Entry, time.Time) {
	for i := range w.entries {
		e := &w.entries[i]
		if e.Due.After(now) {
			continue
		}
		due = append(due, *e)
		e.Due = e.Due.Add(e.Period)
	}
	w.updateNext()
	return due, w.next
}

// NextExpectedTick returns the instant of the next due entry.
func (w *Wheel) NextExpectedTick() time.Time {
	return w.next
}

func (w *Wheel) index(key Key) int {
	for i := range w.entries {
		if w.entries[i].Key == key {
			return i
		}
	}
	return -1
}

func (w *Wheel) removeFunc(fn func(Entry) bool) int {
	var removed int
	entries := w.entries[:0]
	for _, e := range w.entries {
		if fn(e) {
			removed++
			continue
		}
		entries = append(entries, e)
	}
	w.entries = entries
	w.updateNext()
	return removed
}

func (w *Wheel) updateNext() {
	w.next = time.Time{}
	for i := range w.entries {
		if w.next.IsZero() || w.entries[i].Due.Before(w.next) {
			w.next = w.entries[i].Due
		}
	}
}
