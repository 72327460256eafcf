package wav_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"go.uber.org/goleak"

	"pipelined.dev/host"
	"pipelined.dev/host/builtin"
	"pipelined.dev/host/graph"
	"pipelined.dev/host/mock"
	"pipelined.dev/host/plugin"
	"pipelined.dev/host/signal"
	"pipelined.dev/host/wav"
)

const sampleRate = 44100

var (
	start      = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	activation = plugin.ActivateSettings{SampleRate: sampleRate, MinFrames: 1, MaxFrames: 64}
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// generate writes a file with every sample set to the value.
func generate(t *testing.T, path string, channels, frames int, bitDepth signal.BitDepth, value float32) {
	t.Helper()
	sink, err := wav.CreateSink(path, sampleRate, channels, bitDepth)
	require.NoError(t, err)
	data := make([]float32, channels*frames)
	for i := range data {
		data[i] = value
	}
	require.NoError(t, sink.Write(data))
	assert.Equal(t, int64(frames), sink.Frames())
	require.NoError(t, sink.Close())
}

// readAll returns all samples of the file.
func readAll(t *testing.T, path string) ([]float32, int) {
	t.Helper()
	pump, err := wav.OpenPump(path)
	require.NoError(t, err)
	defer pump.Close()
	assert.Equal(t, sampleRate, pump.SampleRate())
	var result []float32
	buf := make([]float32, 100*pump.Channels())
	for {
		n, err := pump.Read(buf)
		if errors.Is(err, io.EOF) {
			return result, pump.Channels()
		}
		require.NoError(t, err)
		result = append(result, buf[:n*pump.Channels()]...)
	}
}

func TestSinkPump(t *testing.T) {
	tests := []struct {
		bitDepth signal.BitDepth
		channels int
		value    float32
		expected float32
	}{
		{bitDepth: signal.BitDepth16, channels: 1, value: 0.5, expected: 0.5},
		{bitDepth: signal.BitDepth24, channels: 2, value: -0.25, expected: -0.25},
		{bitDepth: signal.BitDepth32, channels: 2, value: 0.75, expected: 0.75},
		{bitDepth: signal.BitDepth16, channels: 2, value: 3, expected: 1},
	}
	for _, test := range tests {
		path := filepath.Join(t.TempDir(), "test.wav")
		generate(t, path, test.channels, 250, test.bitDepth, test.value)
		samples, channels := readAll(t, path)
		assert.Equal(t, test.channels, channels)
		require.Len(t, samples, 250*test.channels)
		for _, v := range samples {
			assert.InDelta(t, test.expected, v, 1e-3)
		}
	}
}

func TestErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := wav.CreateSink(filepath.Join(dir, "8bit.wav"), sampleRate, 2, signal.BitDepth8)
	assert.ErrorIs(t, err, wav.ErrUnsupportedBitDepth)
	_, err = wav.CreateSink(filepath.Join(dir, "none.wav"), sampleRate, 0, signal.BitDepth16)
	assert.Error(t, err)

	path := filepath.Join(dir, "invalid.wav")
	require.NoError(t, os.WriteFile(path, []byte("not a wav file"), 0o600))
	_, err = wav.OpenPump(path)
	assert.ErrorIs(t, err, wav.ErrInvalidFile)
	_, err = wav.OpenPump(filepath.Join(dir, "missing.wav"))
	assert.Error(t, err)
}

func audio(src uint64, srcCh int, dst uint64, dstCh int) graph.Edge {
	return graph.Edge{
		Type: graph.Audio,
		Src:  graph.Port{Node: src, Channel: srcCh},
		Dst:  graph.Port{Node: dst, Channel: dstCh},
	}
}

func newEngine(t *testing.T, factory plugin.Factory, edges func(id uint64) []graph.Edge) (*host.Engine, uint64) {
	t.Helper()
	e, _ := host.New(
		host.DefaultSettings(),
		host.WithFactories(factory),
		host.WithClock(func() time.Time { return start }),
	)
	result, err := e.ModifyGraph(host.ModifyGraphRequest{Add: []string{factory.Descriptor().ID}})
	require.NoError(t, err)
	id := result.Added[0].Unique
	_, err = e.ModifyGraph(host.ModifyGraphRequest{Connect: edges(id)})
	require.NoError(t, err)
	return e, id
}

func stereo(id uint64) []graph.Edge {
	return []graph.Edge{
		audio(graph.Input, 0, id, 0),
		audio(graph.Input, 1, id, 1),
		audio(id, 0, graph.Output, 0),
		audio(id, 1, graph.Output, 1),
	}
}

func TestRender(t *testing.T) {
	dir := t.TempDir()
	inPath, outPath := filepath.Join(dir, "in.wav"), filepath.Join(dir, "out.wav")
	generate(t, inPath, 1, 1000, signal.BitDepth16, 0.5)

	e, gain := newEngine(t, builtin.Gain(2), stereo)
	defer e.Close()
	require.NoError(t, e.SetParam(gain, builtin.GainParam, 0.5))
	thread, err := e.Activate(activation)
	require.NoError(t, err)

	source, err := wav.OpenPump(inPath)
	require.NoError(t, err)
	defer source.Close()
	sink, err := wav.CreateSink(outPath, sampleRate, 2, signal.BitDepth16)
	require.NoError(t, err)

	var notifications []host.Notification
	rendered, err := wav.Render(context.Background(), e, thread, source, sink, wav.RenderOptions{
		Tail:   100,
		Start:  start,
		Notify: func(n host.Notification) { notifications = append(notifications, n) },
	})
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	assert.Equal(t, int64(1100), rendered)
	assert.Empty(t, notifications)

	samples, channels := readAll(t, outPath)
	assert.Equal(t, 2, channels)
	require.Len(t, samples, 1100*2)
	for i, v := range samples {
		if i < 1000*2 {
			assert.InDelta(t, 0.25, v, 1e-3)
			continue
		}
		assert.Zero(t, v)
	}
}

func TestRenderNotes(t *testing.T) {
	e, _ := newEngine(t, builtin.Tone(2), func(id uint64) []graph.Edge {
		return []graph.Edge{
			{Type: graph.Note, Src: graph.Port{Node: graph.Input}, Dst: graph.Port{Node: id}},
			audio(id, 0, graph.Output, 0),
			audio(id, 1, graph.Output, 1),
		}
	})
	defer e.Close()
	thread, err := e.Activate(activation)
	require.NoError(t, err)
	require.True(t, thread.SendMIDI(midi.NoteOn(0, 69, 127)))

	outPath := filepath.Join(t.TempDir(), "out.wav")
	sink, err := wav.CreateSink(outPath, sampleRate, 2, signal.BitDepth16)
	require.NoError(t, err)
	rendered, err := wav.Render(context.Background(), e, thread, nil, sink, wav.RenderOptions{
		Frames: 441,
		Start:  start,
	})
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	assert.Equal(t, int64(441), rendered)

	samples, _ := readAll(t, outPath)
	require.Len(t, samples, 441*2)
	var peak float32
	for _, v := range samples {
		peak = max(peak, v)
	}
	assert.InDelta(t, 1, peak, 1e-2)
}

func TestRenderCrash(t *testing.T) {
	f := &mock.Factory{
		ID: "crash",
		Plugin: mock.Plugin{
			Ports:     mock.Stereo(),
			Processor: &mock.Processor{PanicOnCall: "boom"},
		},
	}
	e, _ := newEngine(t, f, stereo)
	defer e.Close()
	thread, err := e.Activate(activation)
	require.NoError(t, err)

	sink, err := wav.CreateSink(filepath.Join(t.TempDir(), "out.wav"), sampleRate, 2, signal.BitDepth16)
	require.NoError(t, err)
	defer sink.Close()
	rendered, err := wav.Render(context.Background(), e, thread, nil, sink, wav.RenderOptions{
		Frames: 1000,
		Start:  start,
	})
	var crash *host.CrashError
	assert.True(t, errors.As(err, &crash))
	assert.Equal(t, int64(64), rendered)
	assert.False(t, e.Active())
}

func TestRenderCancel(t *testing.T) {
	e, _ := newEngine(t, builtin.Gain(2), stereo)
	defer e.Close()
	thread, err := e.Activate(activation)
	require.NoError(t, err)

	sink, err := wav.CreateSink(filepath.Join(t.TempDir(), "out.wav"), sampleRate, 1, signal.BitDepth16)
	require.NoError(t, err)
	defer sink.Close()
	_, err = wav.Render(context.Background(), e, thread, nil, sink, wav.RenderOptions{Frames: 10, Start: start})
	assert.ErrorContains(t, err, "sink has 1 channels")

	sink, err = wav.CreateSink(filepath.Join(t.TempDir(), "out.wav"), sampleRate, 2, signal.BitDepth16)
	require.NoError(t, err)
	defer sink.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rendered, err := wav.Render(ctx, e, thread, nil, sink, wav.RenderOptions{Frames: 10, Start: start})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, rendered)
}
