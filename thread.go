package host

import (
	"fmt"
	"math"
	"runtime"
	"sync/atomic"

	"gitlab.com/gomidi/midi/v2"

	"pipelined.dev/host/buffer"
	"pipelined.dev/host/collect"
	"pipelined.dev/host/event"
	"pipelined.dev/host/internal/spsc"
	"pipelined.dev/host/metric"
	"pipelined.dev/host/plugin"
	"pipelined.dev/host/schedule"
	"pipelined.dev/host/signal"
)

// states of the audio thread.
const (
	threadIdle int32 = iota
	threadRunning
	threadClosed
)

// AudioThread runs the schedule on the audio goroutine. Process must only
// be called by a single goroutine at a time. It never blocks on the
// control goroutine and doesn't allocate while the schedule is unchanged.
type AudioThread struct {
	state atomic.Int32
	cell  *collect.Cell[*schedule.Schedule]
	// schedule is the current reference acquired from the cell.
	schedule collect.Shared[*schedule.Schedule]
	version  uint64

	inChannels  int
	outChannels int
	maxFrames   int
	info        plugin.ProcInfo

	notes *spsc.Ring[event.Event]
	crash atomic.Pointer[CrashError]

	playing atomic.Bool
	tempo   atomic.Uint64

	meter *metric.Meter
}

func newAudioThread(cell *collect.Cell[*schedule.Schedule], activation plugin.ActivateSettings, settings Settings) *AudioThread {
	t := AudioThread{
		cell:        cell,
		inChannels:  settings.InChannels,
		outChannels: settings.OutChannels,
		maxFrames:   activation.MaxFrames,
		info:        plugin.ProcInfo{SampleRate: activation.SampleRate},
		notes:       spsc.New[event.Event](max(1, settings.NoteCapacity)),
	}
	t.meter = metric.NewMeter(&t, int(activation.SampleRate))
	return &t
}

// MaxFrames returns the maximum number of frames processed in a single
// cycle.
func (t *AudioThread) MaxFrames() int {
	return t.maxFrames
}

// Channels returns the number of interleaved input and output channels.
func (t *AudioThread) Channels() (in, out int) {
	return t.inChannels, t.outChannels
}

// SampleRate returns the sample rate of activation.
func (t *AudioThread) SampleRate() uint32 {
	return t.info.SampleRate
}

// SetTransport updates playing state and tempo. It can be called from any
// goroutine.
func (t *AudioThread) SetTransport(transport plugin.Transport) {
	t.tempo.Store(math.Float64bits(transport.Tempo))
	t.playing.Store(transport.Playing)
}

// SendNote queues note event for the next call of Process. It must only
// be called by a single producer goroutine. False is returned if queue is
// full.
func (t *AudioThread) SendNote(e event.Event) bool {
	return t.notes.Push(e)
}

// SendMIDI converts MIDI note messages into note events and queues them.
// False is returned if message is not a note or queue is full.
func (t *AudioThread) SendMIDI(msg midi.Message) bool {
	e, ok := event.FromMIDI(msg, 0)
	if !ok {
		return false
	}
	return t.notes.Push(e)
}

// Crashed returns true if processing has stopped because of a plugin
// panic.
func (t *AudioThread) Crashed() bool {
	return t.crash.Load() != nil
}

func (t *AudioThread) crashed() error {
	if err := t.crash.Load(); err != nil {
		return err
	}
	return nil
}

// Process runs the schedule over interleaved buffers. Number of frames is
// defined by the output length, input is ignored if engine has no inputs.
// Frames are split into cycles of at most MaxFrames, new schedule is
// picked up only between cycles. Output is silent if engine is
// deactivated or crashed.
func (t *AudioThread) Process(in, out []float32) {
	if !t.state.CompareAndSwap(threadIdle, threadRunning) {
		clear(out)
		return
	}
	defer t.state.Store(threadIdle)
	if t.crash.Load() != nil || t.outChannels == 0 {
		clear(out)
		return
	}

	frames := len(out) / t.outChannels
	for offset := 0; offset < frames; offset += t.maxFrames {
		n := min(t.maxFrames, frames-offset)
		cycleOut := out[offset*t.outChannels : (offset+n)*t.outChannels]
		var cycleIn []float32
		if t.inChannels > 0 && len(in) >= (offset+n)*t.inChannels {
			cycleIn = in[offset*t.inChannels : (offset+n)*t.inChannels]
		}
		if !t.cycle(cycleIn, cycleOut, n) {
			clear(out[offset*t.outChannels:])
			return
		}
	}
}

// cycle processes at most max frames. False is returned if schedule
// crashed.
func (t *AudioThread) cycle(in, out []float32, frames int) bool {
	t.meter.Start()
	t.acquire()
	if t.schedule.IsZero() {
		clear(out)
		return true
	}
	s := t.schedule.Get()
	t.writeInputs(s, in, frames)

	t.info.Frames = frames
	t.info.Transport.Playing = t.playing.Load()
	t.info.Transport.Tempo = math.Float64frombits(t.tempo.Load())
	if err := t.run(s); err != nil {
		t.crash.Store(err)
		return false
	}
	t.readOutputs(s, out, frames)

	if t.info.Transport.Playing {
		t.info.Transport.Position += int64(frames)
	}
	t.meter.Measure(int64(frames))
	return true
}

// acquire replaces the current schedule if a new version is published.
func (t *AudioThread) acquire() {
	if t.cell.Version() == t.version {
		return
	}
	s, version := t.cell.Acquire()
	t.schedule.Release()
	t.schedule = s
	t.version = version
}

// run recovers plugin panics. Borrow conflicts are programming errors of
// the host and are not recovered.
func (t *AudioThread) run(s *schedule.Schedule) (err *CrashError) {
	defer func() {
		if r := recover(); r != nil {
			if b, ok := r.(buffer.BorrowError); ok {
				panic(b)
			}
			err = &CrashError{Cause: fmt.Errorf("plugin panic: %v", r)}
		}
	}()
	s.Process(&t.info)
	return nil
}

func (t *AudioThread) writeInputs(s *schedule.Schedule, in []float32, frames int) {
	for ch, b := range s.GraphIn {
		w := b.BorrowMut()
		dst := w.Slice()[:frames]
		if in == nil {
			clear(dst)
		} else {
			signal.ReadChannel(dst, in, t.inChannels, ch)
		}
		w.Release()
		b.SetConstant(in == nil)
	}
	if s.NoteIn.IsZero() {
		// notes are dropped if nothing is connected to graph input
		for _, ok := t.notes.Pop(); ok; _, ok = t.notes.Pop() {
		}
		return
	}
	w := s.NoteIn.BorrowMut()
	w.Reset()
	for e, ok := t.notes.Pop(); ok; e, ok = t.notes.Pop() {
		if w.Append(event.NoteIO{Event: e}) == 0 {
			break
		}
	}
	w.Release()
}

func (t *AudioThread) readOutputs(s *schedule.Schedule, out []float32, frames int) {
	for ch := 0; ch < t.outChannels; ch++ {
		if ch >= len(s.GraphOut) {
			signal.FillChannel(out, t.outChannels, ch, 0)
			continue
		}
		r := s.GraphOut[ch].Borrow()
		signal.WriteChannel(out, r.Slice()[:frames], t.outChannels, ch)
		r.Release()
	}
}

// close waits until the running cycle is completed and releases the
// schedule. Process produces silence after close.
func (t *AudioThread) close() {
	for !t.state.CompareAndSwap(threadIdle, threadClosed) {
		if t.state.Load() == threadClosed {
			return
		}
		runtime.Gosched()
	}
	t.schedule.Release()
	t.schedule = collect.Shared[*schedule.Schedule]{}
}
