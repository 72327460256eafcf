package plugin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pipelined.dev/host/buffer"
	"pipelined.dev/host/collect"
	"pipelined.dev/host/event"
	"pipelined.dev/host/plugin"
)

func TestTransport(t *testing.T) {
	_, ok := plugin.Transport{Tempo: 120}.Event()
	assert.False(t, ok)

	e, ok := plugin.Transport{Playing: true, Position: 64, Tempo: 90}.Event()
	assert.True(t, ok)
	assert.Equal(t, event.Event{Kind: event.Transport, Playing: true, Position: 64, Tempo: 90}, e)
}

func TestPorts(t *testing.T) {
	ports := plugin.AudioPortsExt{
		Inputs:  []plugin.PortInfo{{Name: "main", Channels: 2}, {Name: "side", Channels: 1}},
		Outputs: []plugin.PortInfo{{Name: "main", Channels: 2}},
		NoteIn:  true,
	}
	assert.Equal(t, 3, ports.TotalInChannels())
	assert.Equal(t, 2, ports.TotalOutChannels())
	assert.True(t, ports.Equal(ports))

	changed := ports
	changed.Outputs = []plugin.PortInfo{{Name: "main", Channels: 1}}
	assert.False(t, ports.Equal(changed))
	changed = ports
	changed.NoteIn = false
	assert.False(t, ports.Equal(changed))
}

func TestInstanceID(t *testing.T) {
	a, b := plugin.NewInstanceID("gain"), plugin.NewInstanceID("gain")
	assert.NotEqual(t, a.Unique, b.Unique)
	assert.NotEqual(t, a.UID, b.UID)
	assert.Equal(t, "gain", a.Key)
	assert.Contains(t, a.String(), "gain#")
}

func TestProcBuffers(t *testing.T) {
	c := collect.New()
	in := buffer.New[float32](c.Handle(), 4, buffer.ID{Index: 0})
	out := buffer.New[float32](c.Handle(), 4, buffer.ID{Index: 1})
	w := out.BorrowMut()
	copy(w.Slice(), []float32{1, 2, 3, 4})
	w.Release()

	buffers := plugin.ProcBuffers{
		AudioIn:     []buffer.AudioPort{buffer.NewAudioPort([]buffer.Shared[float32]{in}, 0)},
		AudioOut:    []buffer.AudioPortMut{buffer.NewAudioPortMut([]buffer.Shared[float32]{out}, 0)},
		MainThrough: true,
	}
	assert.True(t, buffers.AudioInputsSilent(4))
	assert.True(t, buffers.MainAudioThroughWhenBypassed())

	buffers.ClearAllOutputs(&plugin.ProcInfo{Frames: 4})
	r := out.Borrow()
	assert.Equal(t, []float32{0, 0, 0, 0}, r.Slice()[:4])
	r.Release()

	w = in.BorrowMut()
	w.Slice()[3] = 0.1
	w.Release()
	in.SetConstant(false)
	assert.False(t, buffers.AudioInputsSilent(4))
	assert.True(t, buffers.AudioInputsSilent(3))

	in.Release()
	out.Release()
	c.Collect()
	assert.Zero(t, c.Live())
}
