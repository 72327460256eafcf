// Package builtin provides plugins that run in the host process.
package builtin

import (
	"pipelined.dev/host/collect"
	"pipelined.dev/host/plugin"
)

const vendor = "pipelined"

// Factories returns factories of all builtin plugins with provided number
// of channels.
func Factories(channels int) []plugin.Factory {
	return []plugin.Factory{
		Gain(channels),
		Tone(channels),
	}
}

// mainThread implements control side shared by builtin plugins. Builtin plugins
// don't use timers and callbacks.
type mainThread struct {
	host      plugin.HostRequest
	ports     plugin.AudioPortsExt
	numParams int
	activate  func(plugin.ActivateSettings) plugin.Processor
}

func (m *mainThread) Init(host plugin.HostRequest) {
	m.host = host
}

func (m *mainThread) Activate(settings plugin.ActivateSettings, _ collect.Handle) (plugin.Activated, error) {
	if settings.SampleRate == 0 {
		return plugin.Activated{}, plugin.ErrNotSupported
	}
	return plugin.Activated{Processor: m.activate(settings)}, nil
}

func (m *mainThread) Deactivate() {}

func (m *mainThread) AudioPorts() plugin.AudioPortsExt {
	return m.ports
}

func (m *mainThread) NumParams() int {
	return m.numParams
}

func (m *mainThread) OnMainThread() {}

func (m *mainThread) OnTimer(plugin.TimerID) {}

// factory creates main threads with the same ports.
type factory struct {
	descriptor plugin.Descriptor
	ports      plugin.AudioPortsExt
	numParams  int
	activate   func(plugin.ActivateSettings) plugin.Processor
}

func (f *factory) Descriptor() plugin.Descriptor {
	return f.descriptor
}

func (f *factory) New(plugin.HostRequest, collect.Handle) (plugin.MainThread, error) {
	return &mainThread{
		ports:     f.ports,
		numParams: f.numParams,
		activate:  f.activate,
	}, nil
}
