package pluginhost_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pipelined.dev/host/collect"
	"pipelined.dev/host/event"
	"pipelined.dev/host/mock"
	"pipelined.dev/host/plugin"
	"pipelined.dev/host/pluginhost"
	"pipelined.dev/host/timer"
)

var (
	start    = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	settings = plugin.ActivateSettings{SampleRate: 44100, MinFrames: 1, MaxFrames: maxFrames}
)

func newHost(t *testing.T, c *collect.Collector, f *mock.Factory) (*pluginhost.Host, *timer.Wheel) {
	t.Helper()
	wheel := timer.NewWheel(start, time.Second, time.Minute)
	h, err := pluginhost.New(f, c.Handle(), pluginhost.Config{
		Timers: wheel,
		Now:    func() time.Time { return start },
	})
	assert.NoError(t, err)
	return h, wheel
}

// runCycle processes a cycle the way a schedule task does.
func runCycle(h *pluginhost.Host) bool {
	proc := h.Processor()
	defer proc.Release()
	info := plugin.ProcInfo{Frames: 4, ScheduleVersion: 1}
	buffers := plugin.ProcBuffers{}
	var io pluginhost.EventIO
	if proc.Get().Process(&info, &buffers, &io) {
		proc.Get().Drop()
		return true
	}
	return false
}

func TestHostLifecycle(t *testing.T) {
	c := collect.New()
	f := &mock.Factory{ID: "test", Plugin: mock.Plugin{Ports: mock.Stereo(), Params: 2}}
	h, _ := newHost(t, c, f)
	assert.Equal(t, "test", h.ID.Key)
	assert.NotEmpty(t, h.ID.UID)
	assert.Equal(t, 2, h.NumParams())
	assert.False(t, h.Active())
	assert.True(t, h.Processor().IsZero())
	assert.False(t, h.RequestDrop())

	assert.NoError(t, h.Activate(settings, c.Handle(), 1, 8))
	assert.ErrorIs(t, h.Activate(settings, c.Handle(), 1, 8), pluginhost.ErrAlreadyActive)
	assert.True(t, h.Active())
	assert.Equal(t, 1, f.Created[0].Activations)
	assert.Equal(t, settings, f.Created[0].Settings)

	assert.False(t, runCycle(h))
	assert.Equal(t, pluginhost.Active, h.Shared().ActiveState())

	assert.True(t, h.RequestDrop())
	assert.True(t, h.Dropping())
	// nothing changes until the audio goroutine handles the drop
	assert.False(t, h.Poll().Dropped)
	assert.True(t, runCycle(h))
	assert.True(t, h.Poll().Dropped)
	assert.False(t, h.Active())
	assert.Equal(t, 1, f.Created[0].Deactivations)
	assert.Equal(t, 1, f.Created[0].Processor.Stops)

	c.Collect()
	assert.Equal(t, 0, c.Live())
}

func TestHostParams(t *testing.T) {
	c := collect.New()
	f := &mock.Factory{
		ID: "test",
		Plugin: mock.Plugin{
			Params:    2,
			Processor: &mock.Processor{Record: true, Emit: []event.Event{{Kind: event.ParamValue, ParamID: 0, Value: 0.7}}},
		},
	}
	h, _ := newHost(t, c, f)
	assert.ErrorIs(t, h.SetParam(2, 1), pluginhost.ErrParamRange)
	_, err := h.Param(5)
	assert.ErrorIs(t, err, pluginhost.ErrParamRange)

	assert.NoError(t, h.Activate(settings, c.Handle(), 1, 8))
	assert.NoError(t, h.SetParam(1, 0.25))
	v, err := h.Param(1)
	assert.NoError(t, err)
	assert.Equal(t, 0.25, v)

	runCycle(h)
	assert.Equal(t, []event.Event{{Kind: event.ParamValue, ParamID: 1, Value: 0.25}}, f.Created[0].Processor.Received)

	changes := h.Poll()
	assert.Equal(t, []pluginhost.ParamValue{{ID: 0, Value: 0.7}}, changes.Params)
	v, _ = h.Param(0)
	assert.Equal(t, 0.7, v)
	assert.True(t, h.Poll().IsZero())
}

func TestHostRequests(t *testing.T) {
	c := collect.New()
	f := &mock.Factory{ID: "test", Plugin: mock.Plugin{TimerPeriod: 10 * time.Millisecond}}
	h, wheel := newHost(t, c, f)
	p := f.Created[0]
	assert.Equal(t, []plugin.TimerID{1}, p.TimerIDs)
	assert.Equal(t, 3, wheel.Len())
	assert.Equal(t, start.Add(10*time.Millisecond), wheel.NextExpectedTick())

	p.Host.RequestCallback()
	p.Host.RequestRestart()
	changes := h.Poll()
	assert.True(t, changes.RestartRequested)
	assert.Equal(t, 1, p.Callbacks)
	assert.True(t, h.Poll().IsZero())

	h.OnTimer(p.TimerIDs[0])
	assert.Equal(t, p.TimerIDs, p.Fired)

	p.Host.UnregisterTimer(p.TimerIDs[0])
	assert.Equal(t, 2, wheel.Len())
	_, err := p.Host.RegisterTimer(0)
	assert.Error(t, err)

	_, err = p.Host.RegisterTimer(time.Second)
	assert.NoError(t, err)
	h.Remove()
	assert.Equal(t, 2, wheel.Len())
}

func TestHostErrored(t *testing.T) {
	c := collect.New()
	startErr := errors.New("test")
	f := &mock.Factory{ID: "test", Plugin: mock.Plugin{Processor: &mock.Processor{ErrorOnStart: startErr}}}
	h, _ := newHost(t, c, f)
	assert.NoError(t, h.Activate(settings, c.Handle(), 1, 8))
	runCycle(h)
	changes := h.Poll()
	assert.True(t, changes.Errored)
	assert.ErrorIs(t, h.LastError(), startErr)

	// reactivation clears the error
	h.DropStopped()
	assert.True(t, h.Poll().Dropped)
	assert.NoError(t, h.Activate(settings, c.Handle(), 2, 8))
	assert.Nil(t, h.LastError())
	h.DropStopped()
	h.Deactivate()
	c.Collect()
	assert.Equal(t, 0, c.Live())
}

func TestHostActivateError(t *testing.T) {
	c := collect.New()
	f := &mock.Factory{ID: "test", Plugin: mock.Plugin{ErrorOnCall: plugin.ErrNotSupported}}
	h, _ := newHost(t, c, f)
	assert.ErrorIs(t, h.Activate(settings, c.Handle(), 1, 8), plugin.ErrNotSupported)
	assert.False(t, h.Active())

	f.ErrorOnCall = errors.New("test")
	_, err := pluginhost.New(f, c.Handle(), pluginhost.Config{})
	assert.Error(t, err)
}
