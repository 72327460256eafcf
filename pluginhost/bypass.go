package pluginhost

import (
	"pipelined.dev/host/buffer"
	"pipelined.dev/host/plugin"
)

// processBypass applies the bypass state on top of plugin output. When
// bypass is toggled in the middle of crossfade, the crossfade is reversed
// from its current position.
func (p *Processor) processBypass(info *plugin.ProcInfo, buffers *plugin.ProcBuffers) {
	if bypassed := p.shared.Bypassed(); bypassed != p.bypassed {
		p.bypassed = bypassed
		if p.declickLeft == 0 {
			p.declickLeft = p.declickFrames
			if bypassed {
				p.declick = 1
			} else {
				p.declick = 0
			}
		} else {
			p.declickLeft = p.declickFrames - p.declickLeft
		}
	}

	switch {
	case p.declickLeft != 0:
		p.bypassDeclick(info, buffers)
	case p.bypassed:
		p.bypass(info, buffers)
	}
}

func (p *Processor) bypassDeclick(info *plugin.ProcInfo, buffers *plugin.ProcBuffers) {
	frames := min(p.declickLeft, info.Frames)

	skip := 0
	if buffers.MainAudioThroughWhenBypassed() {
		skip = 1
		in, out := buffers.AudioIn[0], buffers.AudioOut[0]
		for i := 0; i < out.Channels(); i++ {
			if i < in.Channels() {
				p.crossfadeChannel(out.Channel(i), in.Channel(i), info.Frames, frames)
			} else {
				p.fadeChannel(out.Channel(i), info.Frames, frames)
			}
		}
	}
	for _, port := range buffers.AudioOut[skip:] {
		for i := 0; i < port.Channels(); i++ {
			p.fadeChannel(port.Channel(i), info.Frames, frames)
		}
	}

	p.declickLeft -= frames
	if p.bypassed {
		p.declick = max(p.declick-p.declickInc*float32(frames), 0)
	} else {
		p.declick = min(p.declick+p.declickInc*float32(frames), 1)
	}
}

// crossfadeChannel mixes plugin output with the input.
func (p *Processor) crossfadeChannel(out, in buffer.Shared[float32], cycle, frames int) {
	r := in.Borrow()
	w := out.BorrowMut()
	dry, wet := r.Slice()[:cycle], w.Slice()[:cycle]
	declick := p.declick
	for i := 0; i < frames; i++ {
		declick = p.step(declick)
		wet[i] = wet[i]*declick + dry[i]*(1-declick)
	}
	if p.bypassed {
		copy(wet[frames:], dry[frames:])
	}
	w.Release()
	r.Release()
	out.SetConstant(false)
}

// fadeChannel fades plugin output to silence.
func (p *Processor) fadeChannel(out buffer.Shared[float32], cycle, frames int) {
	w := out.BorrowMut()
	wet := w.Slice()[:cycle]
	declick := p.declick
	for i := 0; i < frames; i++ {
		declick = p.step(declick)
		wet[i] *= declick
	}
	if p.bypassed {
		clear(wet[frames:])
	}
	w.Release()
	out.SetConstant(false)
}

func (p *Processor) step(declick float32) float32 {
	if p.bypassed {
		return declick - p.declickInc
	}
	return declick + p.declickInc
}

// bypass silences all outputs and passes the main input through.
func (p *Processor) bypass(info *plugin.ProcInfo, buffers *plugin.ProcBuffers) {
	buffers.ClearAllOutputs(info)
	if !buffers.MainAudioThroughWhenBypassed() {
		return
	}
	in, out := buffers.AudioIn[0], buffers.AudioOut[0]
	if in.HasSilentHint() {
		return
	}
	for i := 0; i < min(in.Channels(), out.Channels()); i++ {
		src, dst := in.Channel(i), out.Channel(i)
		r := src.Borrow()
		w := dst.BorrowMut()
		copy(w.Slice()[:info.Frames], r.Slice()[:info.Frames])
		w.Release()
		r.Release()
		dst.SetConstant(src.IsConstant())
	}
}
