package event_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gitlab.com/gomidi/midi/v2"

	"pipelined.dev/host/event"
)

func TestFromMIDI(t *testing.T) {
	tests := []struct {
		description string
		msg         midi.Message
		ok          bool
		expected    event.Event
	}{
		{
			description: "note on",
			msg:         midi.NoteOn(2, 60, 127),
			ok:          true,
			expected:    event.Event{Time: 5, Kind: event.NoteOn, Channel: 2, Key: 60, Velocity: 1},
		},
		{
			description: "note off",
			msg:         midi.NoteOff(1, 61),
			ok:          true,
			expected:    event.Event{Time: 5, Kind: event.NoteOff, Channel: 1, Key: 61},
		},
		{
			description: "zero velocity",
			msg:         midi.NoteOn(0, 62, 0),
			ok:          true,
			expected:    event.Event{Time: 5, Kind: event.NoteOff, Key: 62},
		},
		{
			description: "control change",
			msg:         midi.ControlChange(0, 7, 100),
		},
	}
	for _, test := range tests {
		e, ok := event.FromMIDI(test.msg, 5)
		assert.Equal(t, test.ok, ok, test.description)
		assert.Equal(t, test.expected, e, test.description)
	}
}

func TestBuffer(t *testing.T) {
	b := event.NewBuffer(2)
	assert.Equal(t, 2, b.Cap())
	assert.True(t, b.Push(event.Event{Kind: event.NoteOn}))
	assert.True(t, b.Push(event.Event{Kind: event.ParamValue}))
	assert.False(t, b.Push(event.Event{Kind: event.NoteOff}))
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, event.ParamValue, b.At(1).Kind)
	assert.Len(t, b.Events(), 2)

	b.Clear()
	assert.Zero(t, b.Len())
	assert.Equal(t, 2, b.Cap())
}

func TestKind(t *testing.T) {
	tests := []struct {
		kind  event.Kind
		name  string
		note  bool
		param bool
	}{
		{kind: event.NoteOn, name: "event.NoteOn", note: true},
		{kind: event.NoteChoke, name: "event.NoteChoke", note: true},
		{kind: event.MIDI, name: "event.MIDI", note: true},
		{kind: event.ParamValue, name: "event.ParamValue", param: true},
		{kind: event.ParamGestureEnd, name: "event.ParamGestureEnd", param: true},
		{kind: event.Transport, name: "event.Transport"},
		{kind: 0, name: "event.Unknown"},
	}
	for _, test := range tests {
		assert.Equal(t, test.name, test.kind.String())
		assert.Equal(t, test.note, test.kind.IsNote(), test.name)
		assert.Equal(t, test.param, test.kind.IsParam(), test.name)
	}
}
