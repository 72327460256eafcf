// Package mock provides mocks for plugins and allows to execute
// integration tests of the engine.
package mock

import (
	"time"

	"pipelined.dev/host/buffer"
	"pipelined.dev/host/collect"
	"pipelined.dev/host/event"
	"pipelined.dev/host/plugin"
)

// Processor mocks a plugin.Processor interface. It fills output channels
// with Value or passes main input through. It's not thread-safe, so it
// should not be checked while audio goroutine is running.
type Processor struct {
	counter
	Value float32
	// Through copies main input port to main output port instead of
	// filling with Value.
	Through bool
	Status  plugin.Status
	// Emit events are written to output buffer every cycle.
	Emit           []event.Event
	EmitAutomation []event.AutomationIO

	// Record enables recording of input events.
	Record   bool
	Received []event.Event
	Flushed  []event.Event

	ErrorOnStart error
	PanicOnCall  any
	Hooks
}

// StartProcessing implements plugin.Processor.
func (m *Processor) StartProcessing() error {
	if m.ErrorOnStart != nil {
		return m.ErrorOnStart
	}
	m.Starts++
	m.Started = true
	return nil
}

// StopProcessing implements plugin.Processor.
func (m *Processor) StopProcessing() {
	m.Stops++
	m.Started = false
}

// Process implements plugin.Processor.
func (m *Processor) Process(info *plugin.ProcInfo, buffers *plugin.ProcBuffers, in, out *event.Buffer) plugin.Status {
	if m.PanicOnCall != nil {
		panic(m.PanicOnCall)
	}
	if m.Record {
		m.Received = append(m.Received, in.Events()...)
	}
	for i := range buffers.AudioOut {
		port := buffers.AudioOut[i]
		for c := 0; c < port.Channels(); c++ {
			ch := port.Channel(c)
			if m.Through && i == 0 && len(buffers.AudioIn) > 0 && c < buffers.AudioIn[0].Channels() {
				src := buffers.AudioIn[0].Channel(c)
				r := src.Borrow()
				w := ch.BorrowMut()
				copy(w.Slice()[:info.Frames], r.Slice()[:info.Frames])
				w.Release()
				r.Release()
				ch.SetConstant(src.IsConstant())
				continue
			}
			w := ch.BorrowMut()
			s := w.Slice()[:info.Frames]
			for j := range s {
				s[j] = m.Value
			}
			w.Release()
			ch.SetConstant(true)
		}
	}
	for _, e := range m.Emit {
		out.Push(e)
	}
	m.advance(info.Frames)
	return m.Status
}

// ProcessWithAutomationOut implements plugin.AutomationOutProcessor.
func (m *Processor) ProcessWithAutomationOut(info *plugin.ProcInfo, buffers *plugin.ProcBuffers, in, out *event.Buffer, automation buffer.RefMut[event.AutomationIO]) plugin.Status {
	automation.Append(m.EmitAutomation...)
	return m.Process(info, buffers, in, out)
}

// ParamFlush implements plugin.Processor.
func (m *Processor) ParamFlush(in, out *event.Buffer) {
	m.Flushes++
	if m.Record {
		m.Flushed = append(m.Flushed, in.Events()...)
	}
}

// Plugin mocks a plugin.MainThread interface.
type Plugin struct {
	Ports     plugin.AudioPortsExt
	Params    int
	Processor *Processor
	// TimerPeriod is registered on init if not zero.
	TimerPeriod time.Duration
	Host        plugin.HostRequest
	TimerIDs    []plugin.TimerID
	Fired       []plugin.TimerID
	Callbacks   int
	ErrorOnCall error

	Activations   int
	Deactivations int
	Settings      plugin.ActivateSettings
}

// Init implements plugin.MainThread.
func (m *Plugin) Init(host plugin.HostRequest) {
	m.Host = host
	if m.TimerPeriod == 0 {
		return
	}
	if id, err := host.RegisterTimer(m.TimerPeriod); err == nil {
		m.TimerIDs = append(m.TimerIDs, id)
	}
}

// Activate implements plugin.MainThread.
func (m *Plugin) Activate(settings plugin.ActivateSettings, h collect.Handle) (plugin.Activated, error) {
	if m.ErrorOnCall != nil {
		return plugin.Activated{}, m.ErrorOnCall
	}
	m.Activations++
	m.Settings = settings
	if m.Processor == nil {
		m.Processor = &Processor{}
	}
	return plugin.Activated{Processor: m.Processor}, nil
}

// Deactivate implements plugin.MainThread.
func (m *Plugin) Deactivate() {
	m.Deactivations++
}

// AudioPorts implements plugin.MainThread.
func (m *Plugin) AudioPorts() plugin.AudioPortsExt {
	return m.Ports
}

// NumParams implements plugin.MainThread.
func (m *Plugin) NumParams() int {
	return m.Params
}

// OnMainThread implements plugin.MainThread.
func (m *Plugin) OnMainThread() {
	m.Callbacks++
}

// OnTimer implements plugin.MainThread.
func (m *Plugin) OnTimer(id plugin.TimerID) {
	m.Fired = append(m.Fired, id)
}

// Factory mocks a plugin.Factory interface. Every created plugin is a
// copy of Plugin.
type Factory struct {
	ID          string
	Plugin      Plugin
	ErrorOnCall error
	Created     []*Plugin
}

// Descriptor implements plugin.Factory.
func (m *Factory) Descriptor() plugin.Descriptor {
	return plugin.Descriptor{
		ID:      m.ID,
		Name:    "mock " + m.ID,
		Version: "0.0.0",
		Vendor:  "mock",
	}
}

// New implements plugin.Factory.
func (m *Factory) New(host plugin.HostRequest, h collect.Handle) (plugin.MainThread, error) {
	if m.ErrorOnCall != nil {
		return nil, m.ErrorOnCall
	}
	p := m.Plugin
	if p.Processor != nil {
		proc := *p.Processor
		p.Processor = &proc
	}
	m.Created = append(m.Created, &p)
	return &p, nil
}

// Stereo returns ports with a single stereo input and output, main input
// is passed through when bypassed.
func Stereo() plugin.AudioPortsExt {
	return plugin.AudioPortsExt{
		Inputs:                  []plugin.PortInfo{{Name: "main", Channels: 2}},
		Outputs:                 []plugin.PortInfo{{Name: "main", Channels: 2}},
		MainThroughWhenBypassed: true,
	}
}

// Hooks allows to check calls of processor.
type Hooks struct {
	Started bool
	Starts  int
	Stops   int
	Flushes int
}

// counter counts cycles and frames.
type counter struct {
	cycles int
	frames int
}

func (c *counter) advance(frames int) {
	c.cycles++
	c.frames += frames
}

// Count returns cycles and frames metrics.
func (c *counter) Count() (int, int) {
	return c.cycles, c.frames
}
