package buffer

// AudioPort groups channel buffers of a plugin input port.
type AudioPort struct {
	channels []Shared[float32]
	latency  uint32
}

// AudioPortMut groups channel buffers of a plugin output port.
type AudioPortMut struct {
	channels []Shared[float32]
	latency  uint32
}

// NewAudioPort returns an input port view over provided channels.
func NewAudioPort(channels []Shared[float32], latency uint32) AudioPort {
	return AudioPort{channels: channels, latency: latency}
}

// NewAudioPortMut returns an output port view over provided channels.
func NewAudioPortMut(channels []Shared[float32], latency uint32) AudioPortMut {
	return AudioPortMut{channels: channels, latency: latency}
}

// Latency in frames.
func (p AudioPort) Latency() uint32 {
	return p.latency
}

// Channels returns number of channels.
func (p AudioPort) Channels() int {
	return len(p.channels)
}

// Channel returns channel buffer.
func (p AudioPort) Channel(i int) Shared[float32] {
	return p.channels[i]
}

// Raw returns all channel buffers.
func (p AudioPort) Raw() []Shared[float32] {
	return p.channels
}

// HasSilentHint returns true if every channel could be silent.
func (p AudioPort) HasSilentHint() bool {
	return hasSilentHint(p.channels)
}

// IsSilent scans first frames of every channel and returns true only if
// all samples are exactly zero.
func (p AudioPort) IsSilent(frames int) bool {
	return isSilent(p.channels, frames)
}

// Latency in frames.
func (p AudioPortMut) Latency() uint32 {
	return p.latency
}

// Channels returns number of channels.
func (p AudioPortMut) Channels() int {
	return len(p.channels)
}

// Channel returns channel buffer.
func (p AudioPortMut) Channel(i int) Shared[float32] {
	return p.channels[i]
}

// Raw returns all channel buffers.
func (p AudioPortMut) Raw() []Shared[float32] {
	return p.channels
}

// HasSilentHint returns true if every channel could be silent.
func (p AudioPortMut) HasSilentHint() bool {
	return hasSilentHint(p.channels)
}

// IsSilent scans first frames of every channel and returns true only if
// all samples are exactly zero.
func (p AudioPortMut) IsSilent(frames int) bool {
	return isSilent(p.channels, frames)
}

// ClearAll clears first frames of every channel.
func (p AudioPortMut) ClearAll(frames int) {
	for i := range p.channels {
		p.channels[i].Clear(frames)
	}
}

func hasSilentHint(channels []Shared[float32]) bool {
	for i := range channels {
		if !channels[i].HasSilentHint() {
			return false
		}
	}
	return true
}

func isSilent(channels []Shared[float32], frames int) bool {
	for i := range channels {
		r := channels[i].Borrow()
		s := r.Slice()
		if frames < len(s) {
			s = s[:frames]
		}
		for _, v := range s {
			if v != 0 {
				r.Release()
				return false
			}
		}
		r.Release()
	}
	return true
}
