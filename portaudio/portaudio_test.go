//go:build portaudio

package portaudio_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"

	"pipelined.dev/host"
	"pipelined.dev/host/builtin"
	"pipelined.dev/host/graph"
	"pipelined.dev/host/plugin"
	"pipelined.dev/host/portaudio"
)

func TestStream(t *testing.T) {
	devices, err := portaudio.Devices()
	require.NoError(t, err)
	assert.NotEmpty(t, devices)

	settings := host.DefaultSettings()
	settings.InChannels = 0
	e, next := host.New(settings, host.WithFactories(builtin.Tone(2)))
	defer e.Close()
	result, err := e.ModifyGraph(host.ModifyGraphRequest{Add: []string{builtin.ToneID}})
	require.NoError(t, err)
	id := result.Added[0].Unique
	_, err = e.ModifyGraph(host.ModifyGraphRequest{Connect: []graph.Edge{
		{Type: graph.Note, Src: graph.Port{Node: graph.Input}, Dst: graph.Port{Node: id}},
		{Type: graph.Audio, Src: graph.Port{Node: id, Channel: 0}, Dst: graph.Port{Node: graph.Output, Channel: 0}},
		{Type: graph.Audio, Src: graph.Port{Node: id, Channel: 1}, Dst: graph.Port{Node: graph.Output, Channel: 1}},
	}})
	require.NoError(t, err)

	thread, err := e.Activate(plugin.ActivateSettings{SampleRate: 44100, MinFrames: 1, MaxFrames: 512})
	require.NoError(t, err)
	stream, err := portaudio.Open(thread)
	require.NoError(t, err)
	require.NoError(t, stream.Start())
	thread.SendMIDI(midi.NoteOn(0, 69, 100))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	assert.NoError(t, e.Run(ctx, next, nil))
	assert.NoError(t, stream.Close())
}
