package builtin

import (
	"pipelined.dev/host/event"
	"pipelined.dev/host/plugin"
)

// GainID is the descriptor id of gain plugin.
const GainID = "builtin.gain"

// GainParam is the linear gain param of gain plugin.
const GainParam uint32 = 0

// maxGain limits the gain param.
const maxGain = 4

// Gain returns a factory of gain plugin. Main input is multiplied by the
// gain param and passed through when bypassed.
func Gain(channels int) plugin.Factory {
	return &factory{
		descriptor: plugin.Descriptor{
			ID:      GainID,
			Name:    "Gain",
			Version: "1.0.0",
			Vendor:  vendor,
		},
		ports: plugin.AudioPortsExt{
			Inputs:                  []plugin.PortInfo{{Name: "main", Channels: channels}},
			Outputs:                 []plugin.PortInfo{{Name: "main", Channels: channels}},
			MainThroughWhenBypassed: true,
		},
		numParams: 1,
		activate: func(plugin.ActivateSettings) plugin.Processor {
			return &gain{value: 1}
		},
	}
}

type gain struct {
	value float32
}

func (g *gain) StartProcessing() error {
	return nil
}

func (g *gain) StopProcessing() {}

func (g *gain) Process(info *plugin.ProcInfo, buffers *plugin.ProcBuffers, in, out *event.Buffer) plugin.Status {
	g.apply(in)
	if len(buffers.AudioIn) == 0 || len(buffers.AudioOut) == 0 {
		buffers.ClearAllOutputs(info)
		return plugin.ContinueIfNotQuiet
	}
	input, output := buffers.AudioIn[0], buffers.AudioOut[0]
	for c := 0; c < output.Channels(); c++ {
		dst := output.Channel(c)
		if c >= input.Channels() {
			dst.Clear(info.Frames)
			continue
		}
		src := input.Channel(c)
		r := src.Borrow()
		w := dst.BorrowMut()
		s, d := r.Slice()[:info.Frames], w.Slice()[:info.Frames]
		for i := range d {
			d[i] = s[i] * g.value
		}
		w.Release()
		r.Release()
		dst.SetConstant(src.IsConstant())
	}
	return plugin.ContinueIfNotQuiet
}

func (g *gain) ParamFlush(in, out *event.Buffer) {
	g.apply(in)
}

func (g *gain) apply(in *event.Buffer) {
	for i := 0; i < in.Len(); i++ {
		e := in.At(i)
		if e.Kind == event.ParamValue && e.ParamID == GainParam {
			g.value = float32(max(0, min(maxGain, e.Value)))
		}
	}
}
