package builtin

import (
	"math"

	"pipelined.dev/host/event"
	"pipelined.dev/host/plugin"
)

// ToneID is the descriptor id of tone plugin.
const ToneID = "builtin.tone"

// ToneLevel is the output level param of tone plugin.
const ToneLevel uint32 = 0

// Tone returns a factory of monophonic sine generator driven by notes. It
// sleeps while no note is playing.
func Tone(channels int) plugin.Factory {
	return &factory{
		descriptor: plugin.Descriptor{
			ID:      ToneID,
			Name:    "Tone",
			Version: "1.0.0",
			Vendor:  vendor,
		},
		ports: plugin.AudioPortsExt{
			Outputs: []plugin.PortInfo{{Name: "main", Channels: channels}},
			NoteIn:  true,
		},
		numParams: 1,
		activate: func(settings plugin.ActivateSettings) plugin.Processor {
			return &tone{
				sampleRate: float64(settings.SampleRate),
				level:      1,
				key:        -1,
			}
		},
	}
}

type tone struct {
	sampleRate float64
	level      float64

	// key is -1 when no note is playing.
	key       int
	amplitude float64
	step      float64
	phase     float64
}

func (t *tone) StartProcessing() error {
	return nil
}

func (t *tone) StopProcessing() {
	t.key = -1
	t.phase = 0
}

func (t *tone) Process(info *plugin.ProcInfo, buffers *plugin.ProcBuffers, in, out *event.Buffer) plugin.Status {
	if len(buffers.AudioOut) == 0 {
		for i := 0; i < in.Len(); i++ {
			t.handle(in.At(i))
		}
		return t.status()
	}
	port := buffers.AudioOut[0]
	first := port.Channel(0)
	w := first.BorrowMut()
	s := w.Slice()[:info.Frames]
	next := 0
	for i := range s {
		for ; next < in.Len() && int(in.At(next).Time) <= i; next++ {
			t.handle(in.At(next))
		}
		if t.key < 0 {
			s[i] = 0
			continue
		}
		s[i] = float32(math.Sin(2*math.Pi*t.phase) * t.amplitude * t.level)
		t.phase += t.step
		if t.phase >= 1 {
			t.phase--
		}
	}
	for ; next < in.Len(); next++ {
		t.handle(in.At(next))
	}
	w.Release()
	first.SetConstant(false)

	// every channel gets the same signal
	r := first.Borrow()
	for c := 1; c < port.Channels(); c++ {
		dst := port.Channel(c)
		wc := dst.BorrowMut()
		copy(wc.Slice()[:info.Frames], r.Slice()[:info.Frames])
		wc.Release()
		dst.SetConstant(false)
	}
	r.Release()
	return t.status()
}

func (t *tone) ParamFlush(in, out *event.Buffer) {
	for i := 0; i < in.Len(); i++ {
		if e := in.At(i); e.Kind.IsParam() {
			t.handle(e)
		}
	}
}

func (t *tone) status() plugin.Status {
	if t.key < 0 {
		return plugin.Sleep
	}
	return plugin.Continue
}

func (t *tone) handle(e event.Event) {
	switch e.Kind {
	case event.NoteOn:
		if t.key != int(e.Key) {
			t.phase = 0
		}
		t.key = int(e.Key)
		t.amplitude = e.Velocity
		t.step = frequency(e.Key) / t.sampleRate
	case event.NoteOff, event.NoteChoke:
		if t.key == int(e.Key) {
			t.key = -1
		}
	case event.ParamValue:
		if e.ParamID == ToneLevel {
			t.level = max(0, min(1, e.Value))
		}
	}
}

// frequency returns equal temperament frequency of the key, A4 is 440 Hz.
func frequency(key uint8) float64 {
	return 440 * math.Pow(2, (float64(key)-69)/12)
}
