package pluginhost

import (
	"math"

	"pipelined.dev/host/buffer"
	"pipelined.dev/host/event"
)

// EventIO holds event buffers connecting the plugin to sum tasks of the
// schedule. Zero buffers are not connected.
type EventIO struct {
	NoteIn        buffer.Shared[event.NoteIO]
	NoteOut       buffer.Shared[event.NoteIO]
	AutomationIn  buffer.Shared[event.AutomationIO]
	AutomationOut buffer.Shared[event.AutomationIO]
}

// ClearBeforeProcess truncates output buffers.
func (io *EventIO) ClearBeforeProcess() {
	if !io.NoteOut.IsZero() {
		io.NoteOut.Truncate()
	}
	if !io.AutomationOut.IsZero() {
		io.AutomationOut.Truncate()
	}
}

// WriteInputEvents appends input events to dst. Automation addressed to
// other instances is skipped. It reports whether note and param events
// were written.
func (io *EventIO) WriteInputEvents(dst *event.Buffer, instance uint64) (hasNote, hasParam bool) {
	if !io.NoteIn.IsZero() {
		r := io.NoteIn.Borrow()
		for _, e := range r.Slice() {
			if dst.Push(e.Event) {
				hasNote = true
			}
		}
		r.Release()
	}
	if !io.AutomationIn.IsZero() {
		r := io.AutomationIn.Borrow()
		for _, e := range r.Slice() {
			if e.Target != 0 && e.Target != instance {
				continue
			}
			if dst.Push(e.Event) {
				hasParam = true
			}
		}
		r.Release()
	}
	return hasNote, hasParam
}

// ReadOutputEvents routes sanitized output events. Param changes are sent
// to the control goroutine when queues are provided, note events are
// written to the note output.
func (io *EventIO) ReadOutputEvents(out *event.Buffer, params *ParamQueues, s *Sanitizer, frames int) {
	s.begin()
	var notes buffer.RefMut[event.NoteIO]
	hasNotes := !io.NoteOut.IsZero()
	if hasNotes {
		notes = io.NoteOut.BorrowMut()
	}
	for _, e := range out.Events() {
		if !s.check(&e, frames) {
			continue
		}
		switch {
		case e.Kind == event.ParamValue:
			if params != nil {
				params.pushModified(e)
			}
		case e.Kind.IsNote():
			if hasNotes {
				notes.Append(event.NoteIO{Event: e})
			}
		}
	}
	if hasNotes {
		notes.Release()
	}
}

// Sanitizer discards malformed output events. Parameter ids out of range,
// non-finite values and repeated values of the same parameter within a
// cycle are discarded, event time is clamped into the cycle.
type Sanitizer struct {
	numParams int
	values    []float64
	stamps    []uint64
	cycle     uint64
}

// NewSanitizer returns sanitizer for a plugin with numParams parameters.
func NewSanitizer(numParams int) *Sanitizer {
	return &Sanitizer{
		numParams: numParams,
		values:    make([]float64, numParams),
		stamps:    make([]uint64, numParams),
	}
}

func (s *Sanitizer) begin() {
	s.cycle++
}

func (s *Sanitizer) check(e *event.Event, frames int) bool {
	if frames > 0 && int(e.Time) >= frames {
		e.Time = uint32(frames - 1)
	}
	switch {
	case e.Kind.IsParam():
		if int(e.ParamID) >= s.numParams {
			return false
		}
		if e.Kind != event.ParamValue && e.Kind != event.ParamMod {
			return true
		}
		if math.IsNaN(e.Value) || math.IsInf(e.Value, 0) {
			return false
		}
		if e.Kind == event.ParamMod {
			return true
		}
		if s.stamps[e.ParamID] == s.cycle && s.values[e.ParamID] == e.Value {
			return false
		}
		s.stamps[e.ParamID] = s.cycle
		s.values[e.ParamID] = e.Value
	case e.Kind == event.NoteOn || e.Kind == event.NoteOff || e.Kind == event.NoteChoke:
		if e.Key > 127 {
			return false
		}
	}
	return true
}
