// Package plugin defines contracts between the host and plugin
// implementations.
//
// Every plugin has two sides. MainThread is owned by the control goroutine
// and manages activation. Processor is created on activation and is only
// used by the audio goroutine.
package plugin

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/xid"

	"pipelined.dev/host/buffer"
	"pipelined.dev/host/collect"
	"pipelined.dev/host/event"
)

// Status is reported by plugin after every process call.
type Status uint8

// Process statuses.
const (
	// Continue processing in the next cycle.
	Continue Status = iota
	// ContinueIfNotQuiet continues processing while inputs are not silent.
	ContinueIfNotQuiet
	// Tail means the plugin produces a tail and must be processed.
	Tail
	// Sleep stops processing until a note event arrives.
	Sleep
	// Error means the plugin has failed. It won't be processed until
	// it's reactivated.
	Error
)

func (s Status) String() string {
	switch s {
	case Continue:
		return "continue"
	case ContinueIfNotQuiet:
		return "continue if not quiet"
	case Tail:
		return "tail"
	case Sleep:
		return "sleep"
	case Error:
		return "error"
	}
	return "unknown"
}

// ErrNotSupported is returned by activation when plugin can't run with
// provided settings.
var ErrNotSupported = errors.New("settings not supported")

type (
	// Processor is the audio side of the plugin. All methods are called
	// from the audio goroutine and must not block or allocate.
	Processor interface {
		StartProcessing() error
		StopProcessing()
		Process(info *ProcInfo, buffers *ProcBuffers, in, out *event.Buffer) Status
		// ParamFlush applies parameter events while the plugin is not
		// processing.
		ParamFlush(in, out *event.Buffer)
	}

	// AutomationOutProcessor is implemented by plugins that emit
	// automation for downstream plugins.
	AutomationOutProcessor interface {
		Processor
		ProcessWithAutomationOut(info *ProcInfo, buffers *ProcBuffers, in, out *event.Buffer, automation buffer.RefMut[event.AutomationIO]) Status
	}

	// MainThread is the control side of the plugin.
	MainThread interface {
		// Init is called once after the plugin is created.
		Init(host HostRequest)
		// Activate prepares the plugin to process with provided
		// settings and returns its processor.
		Activate(settings ActivateSettings, h collect.Handle) (Activated, error)
		// Deactivate is called after the processor was dropped by the
		// audio goroutine.
		Deactivate()
		// AudioPorts returns port configuration. It's valid until the
		// next activation.
		AudioPorts() AudioPortsExt
		NumParams() int
		// OnMainThread is called when the plugin requested a callback.
		OnMainThread()
		// OnTimer is called when a registered timer fires.
		OnTimer(id TimerID)
	}

	// Factory creates plugin instances.
	Factory interface {
		Descriptor() Descriptor
		New(host HostRequest, h collect.Handle) (MainThread, error)
	}

	// HostRequest allows plugin main thread to request host actions.
	HostRequest interface {
		RegisterTimer(period time.Duration) (TimerID, error)
		UnregisterTimer(id TimerID)
		// RequestProcess wakes up a sleeping processor.
		RequestProcess()
		// RequestCallback schedules OnMainThread call.
		RequestCallback()
		// RequestRestart deactivates and activates the plugin.
		RequestRestart()
	}
)

// TimerID identifies a plugin timer.
type TimerID uint32

// Descriptor describes the plugin type.
type Descriptor struct {
	ID      string
	Name    string
	Version string
	Vendor  string
}

// ActivateSettings are passed to the plugin on activation.
type ActivateSettings struct {
	SampleRate uint32
	MinFrames  int
	MaxFrames  int
}

// Activated is returned by successful activation.
type Activated struct {
	Processor Processor
	// Opaque data passed back on deactivation.
	Data any
}

// PortInfo describes an audio port.
type PortInfo struct {
	Name     string
	Channels int
	Latency  uint32
}

// AudioPortsExt describes plugin ports.
type AudioPortsExt struct {
	Inputs  []PortInfo
	Outputs []PortInfo
	// MainThroughWhenBypassed passes the first input port to the first
	// output port while the plugin is bypassed.
	MainThroughWhenBypassed bool
	NoteIn                  bool
	NoteOut                 bool
	AutomationOut           bool
}

// TotalInChannels returns number of channels in all input ports.
func (p AudioPortsExt) TotalInChannels() int {
	var n int
	for _, port := range p.Inputs {
		n += port.Channels
	}
	return n
}

// TotalOutChannels returns number of channels in all output ports.
func (p AudioPortsExt) TotalOutChannels() int {
	var n int
	for _, port := range p.Outputs {
		n += port.Channels
	}
	return n
}

// Equal returns true if port configurations are the same.
func (p AudioPortsExt) Equal(other AudioPortsExt) bool {
	if len(p.Inputs) != len(other.Inputs) || len(p.Outputs) != len(other.Outputs) {
		return false
	}
	for i := range p.Inputs {
		if p.Inputs[i] != other.Inputs[i] {
			return false
		}
	}
	for i := range p.Outputs {
		if p.Outputs[i] != other.Outputs[i] {
			return false
		}
	}
	return p.MainThroughWhenBypassed == other.MainThroughWhenBypassed &&
		p.NoteIn == other.NoteIn &&
		p.NoteOut == other.NoteOut &&
		p.AutomationOut == other.AutomationOut
}

var instanceCounter atomic.Uint64

// InstanceID identifies a plugin instance within the engine. Unique is
// used by the audio goroutine to address automation events, UID is a
// globally unique identifier for logs and diagnostics.
type InstanceID struct {
	Unique uint64
	Key    string
	UID    string
}

// NewInstanceID returns a new identifier for a plugin of provided type.
func NewInstanceID(key string) InstanceID {
	return InstanceID{
		Unique: instanceCounter.Add(1),
		Key:    key,
		UID:    xid.New().String(),
	}
}

func (id InstanceID) String() string {
	return fmt.Sprintf("%s#%d", id.Key, id.Unique)
}
