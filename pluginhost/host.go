package pluginhost

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"pipelined.dev/host/collect"
	"pipelined.dev/host/log"
	"pipelined.dev/host/plugin"
	"pipelined.dev/host/timer"
)

var (
	// ErrNotActive is returned when operation requires active plugin.
	ErrNotActive = errors.New("plugin is not active")
	// ErrAlreadyActive is returned on activation of active plugin.
	ErrAlreadyActive = errors.New("plugin is already active")
	// ErrParamRange is returned when param id is out of range.
	ErrParamRange = errors.New("param id out of range")
	// ErrProcess is reported when plugin returned error status.
	ErrProcess = errors.New("plugin has failed to process")
	// ErrQueueFull is returned when param can't be sent to the audio
	// goroutine.
	ErrQueueFull = errors.New("param queue is full")
)

// Changes are reported by Poll.
type Changes struct {
	// Dropped is set when the processor was dropped by the audio goroutine
	// and the plugin was deactivated.
	Dropped bool
	// Errored is set once after processor has failed.
	Errored bool
	// RestartRequested is set when plugin asked to be reactivated.
	RestartRequested bool
	// Params modified by the plugin.
	Params []ParamValue
}

// IsZero returns true if nothing has changed.
func (c Changes) IsZero() bool {
	return !c.Dropped && !c.Errored && !c.RestartRequested && len(c.Params) == 0
}

// Config holds control side dependencies of the host.
type Config struct {
	// Timers is used to register plugin timers.
	Timers *timer.Wheel
	// Now returns current time, time.Now is used by default.
	Now    func() time.Time
	Logger log.Logger
	// ParamQueueCapacity in each direction. Default is 256.
	ParamQueueCapacity int
}

// Host manages plugin instance on the control goroutine. It implements
// plugin.HostRequest for the plugin main thread.
type Host struct {
	ID   plugin.InstanceID
	desc plugin.Descriptor
	main plugin.MainThread

	shared *SharedState
	params *ParamQueues
	values []float64

	ports     plugin.AudioPortsExt
	numParams int
	proc      collect.Shared[*Processor]
	data      any
	active    bool

	timers    *timer.Wheel
	now       func() time.Time
	timerIDs  plugin.TimerID
	logger    log.Logger
	callback  atomic.Bool
	restart   atomic.Bool
	modified  []ParamValue
	lastError error
}

// New creates a plugin instance using provided factory. The plugin is not
// activated.
func New(f plugin.Factory, h collect.Handle, cfg Config) (*Host, error) {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Silent
	}
	if cfg.ParamQueueCapacity == 0 {
		cfg.ParamQueueCapacity = 256
	}
	desc := f.Descriptor()
	host := Host{
		ID:     plugin.NewInstanceID(desc.ID),
		desc:   desc,
		shared: &SharedState{},
		params: NewParamQueues(cfg.ParamQueueCapacity),
		timers: cfg.Timers,
		now:    cfg.Now,
		logger: cfg.Logger,
	}
	main, err := f.New(&host, h)
	if err != nil {
		return nil, fmt.Errorf("error creating plugin %s: %w", desc.ID, err)
	}
	host.main = main
	main.Init(&host)
	host.numParams = main.NumParams()
	host.values = make([]float64, host.numParams)
	host.ports = main.AudioPorts()
	return &host, nil
}

// Descriptor returns plugin descriptor.
func (h *Host) Descriptor() plugin.Descriptor {
	return h.desc
}

// Ports returns audio ports of the last activation.
func (h *Host) Ports() plugin.AudioPortsExt {
	return h.ports
}

// NumParams returns number of plugin params.
func (h *Host) NumParams() int {
	return h.numParams
}

// Shared returns state shared with the processor.
func (h *Host) Shared() *SharedState {
	return h.shared
}

// Active returns true if plugin is activated.
func (h *Host) Active() bool {
	return h.active
}

// LastError returns the last error of the plugin.
func (h *Host) LastError() error {
	return h.lastError
}

// Activate activates the plugin. The processor expects to be compiled
// into a schedule with provided version.
func (h *Host) Activate(settings plugin.ActivateSettings, c collect.Handle, scheduleVersion uint64, declickFrames int) error {
	if h.active {
		return ErrAlreadyActive
	}
	activated, err := h.main.Activate(settings, c)
	if err != nil {
		h.lastError = err
		return fmt.Errorf("error activating plugin %v: %w", h.ID, err)
	}
	h.ports = h.main.AudioPorts()
	h.numParams = h.main.NumParams()
	if len(h.values) != h.numParams {
		h.values = make([]float64, h.numParams)
	}
	h.shared.SetActiveState(Inactive)
	h.shared.TakeErrored()
	proc := NewProcessor(activated.Processor, h.shared, h.params, ProcessorConfig{
		Instance:        h.ID.Unique,
		NumParams:       h.numParams,
		ScheduleVersion: scheduleVersion,
		DeclickFrames:   declickFrames,
	})
	h.proc = collect.NewShared(c, proc, nil)
	h.data = activated.Data
	h.active = true
	h.lastError = nil
	h.logger.Debug(fmt.Sprintf("plugin %v activated", h.ID))
	return nil
}

// Processor returns a new reference to the processor. Zero value is
// returned if plugin is not active.
func (h *Host) Processor() collect.Shared[*Processor] {
	if !h.active || h.proc.IsZero() {
		return collect.Shared[*Processor]{}
	}
	return h.proc.Clone()
}

// RequestDrop asks the audio goroutine to drop the processor. The plugin
// is deactivated by Poll once the processor is dropped.
func (h *Host) RequestDrop() bool {
	if !h.active {
		return false
	}
	return h.shared.RequestDrop()
}

// Dropping returns true if drop was requested but not completed yet.
func (h *Host) Dropping() bool {
	return h.active && h.shared.ActiveState() == WaitingToDrop
}

// Deactivate deactivates the plugin. It must only be called once the
// processor is dropped or the audio goroutine is stopped.
func (h *Host) Deactivate() {
	if !h.active {
		return
	}
	h.main.Deactivate()
	h.proc.Release()
	h.proc = collect.Shared[*Processor]{}
	h.data = nil
	h.active = false
	h.shared.SetActiveState(Inactive)
	h.logger.Debug(fmt.Sprintf("plugin %v deactivated", h.ID))
}

// Remove deactivates the plugin and unregisters its timers.
func (h *Host) Remove() {
	h.Deactivate()
	if h.timers != nil {
		h.timers.RemoveInstance(h.ID.Unique)
	}
}

// Poll handles requests of the plugin and state changes made by the audio
// goroutine. Params slice of result is valid until the next call.
func (h *Host) Poll() Changes {
	var c Changes
	if h.active && h.shared.ActiveState() == DroppedAndReadyToDeactivate {
		h.Deactivate()
		c.Dropped = true
	}
	if h.shared.TakeErrored() {
		c.Errored = true
		h.lastError = ErrProcess
		if h.active {
			if err := h.proc.Get().StartErr(); err != nil {
				h.lastError = fmt.Errorf("error starting plugin: %w", err)
			}
		}
		h.logger.Warn(fmt.Sprintf("plugin %v has failed: %v", h.ID, h.lastError))
	}
	c.RestartRequested = h.restart.Swap(false)
	if h.callback.Swap(false) {
		h.main.OnMainThread()
	}
	h.modified = h.modified[:0]
	h.params.DrainModified(func(v ParamValue) {
		if int(v.ID) < len(h.values) {
			h.values[v.ID] = v.Value
		}
		h.modified = append(h.modified, v)
	})
	c.Params = h.modified
	return c
}

// SetBypassed requests bypass state.
func (h *Host) SetBypassed(bypassed bool) {
	h.shared.SetBypassed(bypassed)
}

// Bypassed returns requested bypass state.
func (h *Host) Bypassed() bool {
	return h.shared.Bypassed()
}

// SetParam sends new param value to the processor.
func (h *Host) SetParam(id uint32, value float64) error {
	if int(id) >= h.numParams {
		return fmt.Errorf("plugin %v param %d: %w", h.ID, id, ErrParamRange)
	}
	if !h.params.Set(ParamValue{ID: id, Value: value}) {
		return fmt.Errorf("plugin %v param %d: %w", h.ID, id, ErrQueueFull)
	}
	h.values[id] = value
	h.shared.RequestProcess()
	return nil
}

// Param returns the last known param value.
func (h *Host) Param(id uint32) (float64, error) {
	if int(id) >= h.numParams {
		return 0, fmt.Errorf("plugin %v param %d: %w", h.ID, id, ErrParamRange)
	}
	return h.values[id], nil
}

// OnTimer passes timer callback to the plugin.
func (h *Host) OnTimer(id plugin.TimerID) {
	h.main.OnTimer(id)
}

// RegisterTimer implements plugin.HostRequest.
func (h *Host) RegisterTimer(period time.Duration) (plugin.TimerID, error) {
	if h.timers == nil {
		return 0, fmt.Errorf("plugin %v: timers are not supported", h.ID)
	}
	if period <= 0 {
		return 0, fmt.Errorf("plugin %v: invalid timer period %v", h.ID, period)
	}
	h.timerIDs++
	h.timers.Insert(timer.Key{
		Kind:     timer.PluginTimer,
		Instance: h.ID.Unique,
		Timer:    uint32(h.timerIDs),
	}, period, h.now())
	return h.timerIDs, nil
}

// UnregisterTimer implements plugin.HostRequest.
func (h *Host) UnregisterTimer(id plugin.TimerID) {
	if h.timers == nil {
		return
	}
	h.timers.Remove(timer.Key{
		Kind:     timer.PluginTimer,
		Instance: h.ID.Unique,
		Timer:    uint32(id),
	})
}

// RequestProcess implements plugin.HostRequest.
func (h *Host) RequestProcess() {
	h.shared.RequestProcess()
}

// RequestCallback implements plugin.HostRequest.
func (h *Host) RequestCallback() {
	h.callback.Store(true)
}

// RequestRestart implements plugin.HostRequest.
func (h *Host) RequestRestart() {
	h.restart.Store(true)
}

// DropStopped drops the processor on the control goroutine. It must only
// be called when the audio goroutine is not running.
func (h *Host) DropStopped() {
	if h.active && !h.proc.IsZero() {
		h.proc.Get().Drop()
	}
}
