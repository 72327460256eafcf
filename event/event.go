// Package event defines events exchanged between the host and plugins.
package event

import (
	"math"

	"gitlab.com/gomidi/midi/v2"
)

// Kind identifies the type of event.
type Kind uint8

// Event kinds.
const (
	NoteOn Kind = iota + 1
	NoteOff
	NoteChoke
	ParamValue
	ParamMod
	ParamGestureBegin
	ParamGestureEnd
	Transport
	MIDI
)

func (k Kind) String() string {
	switch k {
	case NoteOn:
		return "event.NoteOn"
	case NoteOff:
		return "event.NoteOff"
	case NoteChoke:
		return "event.NoteChoke"
	case ParamValue:
		return "event.ParamValue"
	case ParamMod:
		return "event.ParamMod"
	case ParamGestureBegin:
		return "event.ParamGestureBegin"
	case ParamGestureEnd:
		return "event.ParamGestureEnd"
	case Transport:
		return "event.Transport"
	case MIDI:
		return "event.MIDI"
	}
	return "event.Unknown"
}

// IsNote returns true for note events.
func (k Kind) IsNote() bool {
	return k == NoteOn || k == NoteOff || k == NoteChoke || k == MIDI
}

// IsParam returns true for parameter events.
func (k Kind) IsParam() bool {
	return k == ParamValue || k == ParamMod || k == ParamGestureBegin || k == ParamGestureEnd
}

// Event is a timestamped event. Time is a frame offset within the cycle.
// Fields that don't apply to the kind are zero.
type Event struct {
	Time uint32
	Kind Kind

	// note fields
	Port     uint16
	Channel  uint8
	Key      uint8
	Velocity float64

	// param fields
	ParamID uint32
	Value   float64

	// transport fields
	Playing  bool
	Position int64
	Tempo    float64

	Data [3]byte
}

// NoteIO is a note event routed between plugins.
type NoteIO struct {
	Event
}

// AutomationIO is a parameter event routed between plugins. Target is the
// unique id of the plugin instance the event is addressed to, zero means
// any receiving plugin.
type AutomationIO struct {
	Event
	Target uint64
}

// FromMIDI converts MIDI note messages into note events. False is
// returned for other messages.
func FromMIDI(msg midi.Message, time uint32) (Event, bool) {
	var ch, key, vel uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		return Event{
			Time:     time,
			Kind:     NoteOn,
			Channel:  ch,
			Key:      key,
			Velocity: float64(vel) / math.MaxInt8,
		}, true
	case msg.GetNoteEnd(&ch, &key):
		return Event{
			Time:    time,
			Kind:    NoteOff,
			Channel: ch,
			Key:     key,
		}, true
	}
	return Event{}, false
}
