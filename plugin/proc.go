package plugin

import (
	"pipelined.dev/host/buffer"
	"pipelined.dev/host/event"
)

// Transport is the state of the engine transport for a cycle.
type Transport struct {
	Playing bool
	// Position of the first frame of the cycle.
	Position int64
	Tempo    float64
}

// Event returns the transport event. False is returned if transport is
// not moving in this cycle.
func (t Transport) Event() (event.Event, bool) {
	if !t.Playing {
		return event.Event{}, false
	}
	return event.Event{
		Kind:     event.Transport,
		Playing:  true,
		Position: t.Position,
		Tempo:    t.Tempo,
	}, true
}

// ProcInfo describes a single processing cycle.
type ProcInfo struct {
	// Frames in this cycle, it's never greater than max frames of
	// activation.
	Frames          int
	ScheduleVersion uint64
	SampleRate      uint32
	Transport       Transport
}

// ProcBuffers are audio ports of the plugin for a cycle.
type ProcBuffers struct {
	AudioIn  []buffer.AudioPort
	AudioOut []buffer.AudioPortMut
	// MainThrough is set when the first input port must be passed to the
	// first output port while bypassed.
	MainThrough bool
}

// ClearAllOutputs zeroes frames of every output channel.
func (b *ProcBuffers) ClearAllOutputs(info *ProcInfo) {
	for i := range b.AudioOut {
		b.AudioOut[i].ClearAll(info.Frames)
	}
}

// AudioInputsSilent checks that all input channels are exactly silent.
func (b *ProcBuffers) AudioInputsSilent(frames int) bool {
	for i := range b.AudioIn {
		if !b.AudioIn[i].IsSilent(frames) {
			return false
		}
	}
	return true
}

// MainAudioThroughWhenBypassed returns true if main ports exist and the
// main input is passed through when bypassed.
func (b *ProcBuffers) MainAudioThroughWhenBypassed() bool {
	return b.MainThrough && len(b.AudioIn) > 0 && len(b.AudioOut) > 0
}
