// Package pluginhost drives a single plugin instance. Processor runs on the
// audio goroutine and Host manages the plugin from the control goroutine.
// They communicate through SharedState and ParamQueues only.
package pluginhost

import (
	"pipelined.dev/host/event"
	"pipelined.dev/host/plugin"
)

// State is the processing state of the plugin.
type State uint8

// Processing states.
const (
	WaitingForStart State = iota
	Started
	Stopped
	Errored
)

func (s State) String() string {
	switch s {
	case WaitingForStart:
		return "waiting for start"
	case Started:
		return "started"
	case Stopped:
		return "stopped"
	case Errored:
		return "errored"
	}
	return "unknown"
}

// ProcessorConfig holds processor parameters.
type ProcessorConfig struct {
	// Instance is used to filter automation addressed to other plugins.
	Instance  uint64
	NumParams int
	// ScheduleVersion is the first schedule version the processor is
	// compiled into.
	ScheduleVersion uint64
	// DeclickFrames is the length of bypass crossfade, must be positive.
	DeclickFrames int
	// EventCapacity is the capacity of input and output event buffers.
	// Default is three events per param plus the note capacity.
	EventCapacity int
}

// Processor runs the plugin on the audio goroutine. All methods except
// constructor must be called from the audio goroutine.
type Processor struct {
	plugin        plugin.Processor
	automationOut plugin.AutomationOutProcessor
	instance      uint64

	shared    *SharedState
	params    *ParamQueues
	in, out   *event.Buffer
	sanitizer *Sanitizer

	state           State
	status          plugin.Status
	scheduleVersion uint64
	dropped         bool
	startErr        error

	bypassed      bool
	declick       float32
	declickInc    float32
	declickFrames int
	declickLeft   int
}

// NewProcessor returns a processor in WaitingForStart state. Params may be
// nil if the plugin has no parameters.
func NewProcessor(p plugin.Processor, shared *SharedState, params *ParamQueues, cfg ProcessorConfig) *Processor {
	if cfg.DeclickFrames <= 0 {
		panic("pluginhost: non-positive declick frames")
	}
	if cfg.EventCapacity == 0 {
		cfg.EventCapacity = cfg.NumParams*3 + 128
	}
	bypassed := shared.Bypassed()
	var declick float32
	if bypassed {
		declick = 1
	}
	proc := Processor{
		plugin:          p,
		instance:        cfg.Instance,
		shared:          shared,
		params:          params,
		in:              event.NewBuffer(cfg.EventCapacity),
		out:             event.NewBuffer(cfg.EventCapacity),
		sanitizer:       NewSanitizer(cfg.NumParams),
		state:           WaitingForStart,
		scheduleVersion: cfg.ScheduleVersion,
		bypassed:        bypassed,
		declick:         declick,
		declickInc:      1 / float32(cfg.DeclickFrames),
		declickFrames:   cfg.DeclickFrames,
	}
	if a, ok := p.(plugin.AutomationOutProcessor); ok {
		proc.automationOut = a
	}
	return &proc
}

// State returns current processing state.
func (p *Processor) State() State {
	return p.state
}

// Status returns the last status reported by the plugin.
func (p *Processor) Status() plugin.Status {
	return p.status
}

// ScheduleVersion returns the schedule version the processor expects.
func (p *Processor) ScheduleVersion() uint64 {
	return p.scheduleVersion
}

// StartErr returns error returned by the plugin on start.
func (p *Processor) StartErr() error {
	return p.startErr
}

// Dropped returns true if processor was dropped.
func (p *Processor) Dropped() bool {
	return p.dropped
}

// Process runs a single cycle. True is returned if drop was requested,
// the caller must call Drop and remove the processor from the schedule.
func (p *Processor) Process(info *plugin.ProcInfo, buffers *plugin.ProcBuffers, io *EventIO) bool {
	io.ClearBeforeProcess()

	switch {
	case p.shared.ActiveState() == WaitingToDrop:
		if p.state == Started {
			p.plugin.StopProcessing()
			p.state = Stopped
		}
		buffers.ClearAllOutputs(info)
		return true
	case p.scheduleVersion > info.ScheduleVersion:
		// the schedule this processor is compiled into has not arrived yet
		buffers.ClearAllOutputs(info)
		return false
	case p.shared.takeProcessRequest():
		// errored plugin is only restarted by reactivation
		if p.state != Started && p.state != Errored {
			p.state = WaitingForStart
		}
	}

	if p.state == Errored {
		buffers.ClearAllOutputs(info)
		return false
	}

	p.in.Clear()
	var hasParam bool
	if p.params != nil {
		hasParam = p.params.consumeInto(p.in)
	}
	hasNote, wroteParam := io.WriteInputEvents(p.in, p.instance)
	hasParam = hasParam || wroteParam
	if e, ok := info.Transport.Event(); ok {
		p.in.Push(e)
	}

	if p.state == Started && p.status == plugin.ContinueIfNotQuiet &&
		!hasNote && buffers.AudioInputsSilent(info.Frames) {
		p.plugin.StopProcessing()
		p.state = Stopped
		buffers.ClearAllOutputs(info)
		p.flushParams(hasParam)
		return false
	}

	if p.state == Stopped || p.state == WaitingForStart {
		if p.state == Stopped && !hasNote {
			buffers.ClearAllOutputs(info)
			p.flushParams(hasParam)
			return false
		}
		if err := p.plugin.StartProcessing(); err != nil {
			p.startErr = err
			p.state = Errored
			p.shared.errored.Store(true)
			buffers.ClearAllOutputs(info)
			p.flushParams(hasParam)
			return false
		}
		p.shared.markActive()
	}

	p.out.Clear()
	var status plugin.Status
	if p.automationOut != nil && !io.AutomationOut.IsZero() {
		automation := io.AutomationOut.BorrowMut()
		status = p.automationOut.ProcessWithAutomationOut(info, buffers, p.in, p.out, automation)
		automation.Release()
	} else {
		status = p.plugin.Process(info, buffers, p.in, p.out)
	}

	io.ReadOutputEvents(p.out, p.params, p.sanitizer, info.Frames)

	p.status = status
	switch status {
	case plugin.Sleep:
		p.plugin.StopProcessing()
		p.state = Stopped
	case plugin.Error:
		buffers.ClearAllOutputs(info)
		p.state = Errored
		p.shared.errored.Store(true)
	default:
		p.state = Started
	}

	p.processBypass(info, buffers)
	return false
}

func (p *Processor) flushParams(hasParam bool) {
	if hasParam {
		p.out.Clear()
		p.plugin.ParamFlush(p.in, p.out)
	}
	p.in.Clear()
}

// Drop stops the plugin if it's started and signals the control goroutine
// that the plugin is ready to deactivate. Calling Drop more than once has
// no effect.
func (p *Processor) Drop() {
	if p.dropped {
		return
	}
	if p.state == Started {
		p.plugin.StopProcessing()
		p.state = Stopped
	}
	p.dropped = true
	p.shared.SetActiveState(DroppedAndReadyToDeactivate)
}
