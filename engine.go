package host

import (
	"errors"
	"fmt"
	"time"

	"pipelined.dev/host/collect"
	"pipelined.dev/host/graph"
	"pipelined.dev/host/log"
	"pipelined.dev/host/plugin"
	"pipelined.dev/host/pluginhost"
	"pipelined.dev/host/schedule"
	"pipelined.dev/host/signal"
	"pipelined.dev/host/timer"
)

// Settings are fixed for the lifetime of the engine.
type Settings struct {
	InChannels  int
	OutChannels int
	// NoteCapacity is the number of notes the audio thread can receive
	// between cycles.
	NoteCapacity int
	// EventCapacity is the capacity of event buffers between plugins.
	EventCapacity int
	// IdleInterval is the period of graph maintenance.
	IdleInterval time.Duration
	// GCInterval is the period of collection passes.
	GCInterval time.Duration
	// DeclickDuration is the length of bypass crossfade.
	DeclickDuration time.Duration
}

// DefaultSettings returns stereo settings.
func DefaultSettings() Settings {
	return Settings{
		InChannels:      2,
		OutChannels:     2,
		NoteCapacity:    256,
		EventCapacity:   512,
		IdleInterval:    16 * time.Millisecond,
		GCInterval:      3 * time.Second,
		DeclickDuration: 3 * time.Millisecond,
	}
}

// NotificationKind is the kind of engine notification.
type NotificationKind uint8

// Notification kinds.
const (
	// PluginRemoved is sent once the plugin is dropped by the audio thread
	// and removed from the graph.
	PluginRemoved NotificationKind = iota
	// PluginRestarted is sent once the plugin is reactivated on its own
	// request.
	PluginRestarted
	// PluginErrored is sent once the plugin has failed to start or
	// process.
	PluginErrored
	// ParamChanged is sent when the plugin changed its param.
	ParamChanged
	// EngineCrashed is sent when the engine was deactivated because of
	// crash.
	EngineCrashed
)

func (k NotificationKind) String() string {
	switch k {
	case PluginRemoved:
		return "plugin removed"
	case PluginRestarted:
		return "plugin restarted"
	case PluginErrored:
		return "plugin errored"
	case ParamChanged:
		return "param changed"
	case EngineCrashed:
		return "engine crashed"
	}
	return "unknown"
}

// Notification is returned by OnTimer.
type Notification struct {
	Kind   NotificationKind
	Plugin plugin.InstanceID
	Param  pluginhost.ParamValue
	Err    error
}

// PluginInfo describes plugin instance in the graph.
type PluginInfo struct {
	ID         plugin.InstanceID
	Descriptor plugin.Descriptor
	Ports      plugin.AudioPortsExt
	NumParams  int
	Active     bool
	Bypassed   bool
}

// ModifyGraphRequest is applied in order: plugins are added, removed,
// edges disconnected and connected. The schedule is compiled once.
type ModifyGraphRequest struct {
	// Add holds factory ids of new plugins.
	Add        []string
	Remove     []uint64
	Disconnect []graph.Edge
	Connect    []graph.Edge
}

// ModifyGraphResult holds results of successful modifications.
type ModifyGraphResult struct {
	Added []plugin.InstanceID
	// Removing are plugins waiting to be dropped by the audio thread.
	// They are reported with PluginRemoved notification.
	Removing []uint64
	// Removed are plugins removed immediately.
	Removed []uint64
}

// Engine manages the graph of plugins on the control goroutine. It's not
// safe for concurrent use, all methods must be called from the same
// goroutine. The audio goroutine interacts with engine only through
// AudioThread.
type Engine struct {
	settings  Settings
	logger    log.Logger
	factories map[string]plugin.Factory
	now       func() time.Time

	collector *collect.Collector
	timers    *timer.Wheel
	graph     *graph.Graph
	hosts     map[uint64]*pluginhost.Host
	// removing and restarting plugins wait for the drop handshake.
	removing   map[uint64]struct{}
	restarting map[uint64]struct{}

	activation    plugin.ActivateSettings
	declickFrames int
	cell          *collect.Cell[*schedule.Schedule]
	version       uint64
	thread        *AudioThread
	transport     plugin.Transport
	dirty         bool

	due []timer.Entry
	// notifications are collected between timer calls, returned slice is
	// kept until the next call.
	notifications []Notification
	returned      []Notification
}

// New returns a new inactive engine and the instant of its first timer
// tick.
func New(settings Settings, options ...Option) (*Engine, time.Time) {
	e := Engine{
		settings:   settings,
		logger:     log.Silent,
		factories:  make(map[string]plugin.Factory),
		now:        time.Now,
		collector:  collect.New(),
		graph:      graph.New(settings.InChannels, settings.OutChannels),
		hosts:      make(map[uint64]*pluginhost.Host),
		removing:   make(map[uint64]struct{}),
		restarting: make(map[uint64]struct{}),
	}
	for _, option := range options {
		option(&e)
	}
	e.timers = timer.NewWheel(e.now(), settings.IdleInterval, settings.GCInterval)
	return &e, e.timers.NextExpectedTick()
}

// Factories returns descriptors of registered plugin factories.
func (e *Engine) Factories() []plugin.Descriptor {
	result := make([]plugin.Descriptor, 0, len(e.factories))
	for _, f := range e.factories {
		result = append(result, f.Descriptor())
	}
	return result
}

// Graph returns the graph of the engine. It must not be modified
// directly.
func (e *Engine) Graph() *graph.Graph {
	return e.graph
}

// Active returns true if engine is activated.
func (e *Engine) Active() bool {
	return e.thread != nil
}

// Activation returns settings of the current activation.
func (e *Engine) Activation() (plugin.ActivateSettings, error) {
	if e.thread == nil {
		return plugin.ActivateSettings{}, ErrNotActive
	}
	return e.activation, nil
}

// Version returns the version of the last compiled schedule.
func (e *Engine) Version() uint64 {
	return e.version
}

// Live returns the number of engine allocations that were not collected
// yet.
func (e *Engine) Live() int {
	return e.collector.Live()
}

// Plugins returns plugins in order they were added.
func (e *Engine) Plugins() []PluginInfo {
	nodes := e.graph.Plugins()
	result := make([]PluginInfo, 0, len(nodes))
	for _, n := range nodes {
		result = append(result, pluginInfo(n.Host))
	}
	return result
}

// Plugin returns plugin by instance id.
func (e *Engine) Plugin(id uint64) (PluginInfo, error) {
	h, err := e.host(id)
	if err != nil {
		return PluginInfo{}, err
	}
	return pluginInfo(h), nil
}

func pluginInfo(h *pluginhost.Host) PluginInfo {
	return PluginInfo{
		ID:         h.ID,
		Descriptor: h.Descriptor(),
		Ports:      h.Ports(),
		NumParams:  h.NumParams(),
		Active:     h.Active(),
		Bypassed:   h.Bypassed(),
	}
}

// Activate activates all plugins, compiles the schedule and returns the
// audio thread. Plugins that fail to activate stay in the graph inactive
// and are reported with PluginErrored notification.
func (e *Engine) Activate(settings plugin.ActivateSettings) (*AudioThread, error) {
	if e.thread != nil {
		return nil, ErrAlreadyActive
	}
	if settings.MaxFrames <= 0 || settings.MinFrames > settings.MaxFrames {
		return nil, fmt.Errorf("invalid frames range [%d, %d]", settings.MinFrames, settings.MaxFrames)
	}
	e.activation = settings
	e.declickFrames = max(1, signal.FramesOf(int(settings.SampleRate), e.settings.DeclickDuration))
	for _, n := range e.graph.Plugins() {
		e.activatePlugin(n.Host)
	}
	s, err := e.compile(e.version + 1)
	if err != nil {
		e.deactivatePlugins()
		return nil, err
	}
	e.version++
	e.cell = collect.NewCell(s)
	e.thread = newAudioThread(e.cell, settings, e.settings)
	e.thread.SetTransport(e.transport)
	e.dirty = false
	e.logger.Info(fmt.Sprintf("engine activated: %d Hz, %d-%d frames", settings.SampleRate, settings.MinFrames, settings.MaxFrames))
	return e.thread, nil
}

// activatePlugin activates plugin for the next schedule version.
func (e *Engine) activatePlugin(h *pluginhost.Host) bool {
	if err := h.Activate(e.activation, e.collector.Handle(), e.version+1, e.declickFrames); err != nil {
		e.logger.Warn(err)
		e.notify(Notification{Kind: PluginErrored, Plugin: h.ID, Err: err})
		return false
	}
	if removed, err := e.graph.UpdatePorts(h.ID.Unique); err == nil && len(removed) > 0 {
		e.logger.Debug(fmt.Sprintf("plugin %v ports changed, removed edges: %v", h.ID, removed))
	}
	return true
}

func (e *Engine) compile(version uint64) (collect.Shared[*schedule.Schedule], error) {
	s, err := e.graph.Compile(version, e.collector.Handle(), graph.CompileConfig{
		MaxFrames:     e.activation.MaxFrames,
		EventCapacity: e.settings.EventCapacity,
	})
	if err != nil {
		return collect.Shared[*schedule.Schedule]{}, fmt.Errorf("error compiling schedule v%d: %w", version, err)
	}
	e.logger.Debug(s)
	return collect.NewShared(e.collector.Handle(), s, (*schedule.Schedule).Release), nil
}

// recompile publishes a new schedule. Plugins activated since the last
// compilation expect exactly this version.
func (e *Engine) recompile() error {
	s, err := e.compile(e.version + 1)
	if err != nil {
		return err
	}
	e.version++
	e.cell.Set(s)
	e.dirty = false
	return nil
}

// Deactivate stops the audio thread, deactivates all plugins and collects
// everything. Plugins stay in the graph. False is returned if engine was
// not active.
func (e *Engine) Deactivate() bool {
	if e.thread == nil {
		return false
	}
	e.thread.close()
	e.cell.Close()
	e.cell = nil
	e.thread = nil
	e.deactivatePlugins()
	e.logger.Info("engine deactivated")
	return true
}

func (e *Engine) deactivatePlugins() {
	for _, n := range e.graph.Plugins() {
		id := n.Host.ID.Unique
		n.Host.DropStopped()
		if _, ok := e.removing[id]; ok {
			e.removePlugin(n.Host)
			continue
		}
		n.Host.Deactivate()
		delete(e.restarting, id)
	}
	e.collector.Collect()
}

// Close deactivates the engine and removes every plugin.
func (e *Engine) Close() {
	e.Deactivate()
	for _, n := range e.graph.Plugins() {
		e.removePlugin(n.Host)
	}
	e.timers.Reset()
	e.collector.Collect()
}

func (e *Engine) removePlugin(h *pluginhost.Host) {
	h.Remove()
	if _, err := e.graph.RemovePlugin(h.ID.Unique); err != nil {
		e.logger.Error(err)
	}
	delete(e.hosts, h.ID.Unique)
	delete(e.removing, h.ID.Unique)
	delete(e.restarting, h.ID.Unique)
}

// ModifyGraph applies all modifications of the request and compiles a new
// schedule if engine is active. Failed modifications are skipped and
// their errors are returned together.
func (e *Engine) ModifyGraph(req ModifyGraphRequest) (ModifyGraphResult, error) {
	var (
		result ModifyGraphResult
		errs   execErrors
	)
	for _, id := range req.Add {
		h, err := e.addPlugin(id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		result.Added = append(result.Added, h.ID)
	}
	for _, id := range req.Remove {
		dropping, err := e.requestRemove(id)
		switch {
		case err != nil:
			errs = append(errs, err)
		case dropping:
			result.Removing = append(result.Removing, id)
		default:
			result.Removed = append(result.Removed, id)
		}
	}
	for _, edge := range req.Disconnect {
		if e.graph.RemoveEdge(edge) {
			e.dirty = true
			continue
		}
		errs = append(errs, fmt.Errorf("edge %v: %w", edge, ErrUnknownEdge))
	}
	for _, edge := range req.Connect {
		if err := e.checkEdge(edge); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := e.graph.Connect(edge); err != nil {
			errs = append(errs, err)
			continue
		}
		e.dirty = true
	}
	if e.thread != nil && e.dirty {
		if err := e.recompile(); err != nil {
			e.crash(err)
			errs = append(errs, err)
		}
	}
	return result, errs.ret()
}

func (e *Engine) addPlugin(factoryID string) (*pluginhost.Host, error) {
	f, ok := e.factories[factoryID]
	if !ok {
		return nil, fmt.Errorf("plugin %s: %w", factoryID, ErrUnknownFactory)
	}
	h, err := pluginhost.New(f, e.collector.Handle(), pluginhost.Config{
		Timers: e.timers,
		Now:    e.now,
		Logger: e.logger,
	})
	if err != nil {
		return nil, err
	}
	e.hosts[h.ID.Unique] = h
	e.graph.AddPlugin(h)
	if e.thread != nil && !e.activatePlugin(h) {
		e.removePlugin(h)
		return nil, fmt.Errorf("plugin %v: %w", h.ID, h.LastError())
	}
	e.dirty = true
	e.logger.Debug(fmt.Sprintf("plugin %v added", h.ID))
	return h, nil
}

// requestRemove disconnects the plugin immediately. Active plugin is
// removed once the audio thread drops it, true is returned in that case.
func (e *Engine) requestRemove(id uint64) (bool, error) {
	h, ok := e.hosts[id]
	if !ok {
		return false, fmt.Errorf("plugin %d: %w", id, ErrUnknownPlugin)
	}
	if _, ok := e.removing[id]; ok {
		return false, fmt.Errorf("plugin %v: %w", h.ID, ErrPluginRemoving)
	}
	e.graph.Disconnect(id)
	e.dirty = true
	if e.thread != nil && h.Active() {
		if h.RequestDrop() || h.Dropping() {
			e.removing[id] = struct{}{}
			return true, nil
		}
	}
	e.removePlugin(h)
	return false, nil
}

// checkEdge rejects edges to plugins that are being removed.
func (e *Engine) checkEdge(edge graph.Edge) error {
	for _, id := range []uint64{edge.Src.Node, edge.Dst.Node} {
		if _, ok := e.removing[id]; ok {
			return fmt.Errorf("edge %v: %w", edge, ErrPluginRemoving)
		}
	}
	return nil
}

func (e *Engine) host(id uint64) (*pluginhost.Host, error) {
	h, ok := e.hosts[id]
	if !ok {
		return nil, fmt.Errorf("plugin %d: %w", id, ErrUnknownPlugin)
	}
	return h, nil
}

// SetBypassed requests bypass state of the plugin. Audio is crossfaded by
// the audio thread.
func (e *Engine) SetBypassed(id uint64, bypassed bool) error {
	h, err := e.host(id)
	if err != nil {
		return err
	}
	h.SetBypassed(bypassed)
	return nil
}

// SetParam sends param value to the plugin.
func (e *Engine) SetParam(id uint64, param uint32, value float64) error {
	h, err := e.host(id)
	if err != nil {
		return err
	}
	return h.SetParam(param, value)
}

// Param returns the last known param value.
func (e *Engine) Param(id uint64, param uint32) (float64, error) {
	h, err := e.host(id)
	if err != nil {
		return 0, err
	}
	return h.Param(param)
}

// SetTransport updates transport of the audio thread. Position is kept.
func (e *Engine) SetTransport(playing bool, tempo float64) {
	e.transport.Playing = playing
	e.transport.Tempo = tempo
	if e.thread != nil {
		e.thread.SetTransport(e.transport)
	}
}

// OnTimer must be called by the control goroutine no later than the
// returned instant. It handles engine crash, polls plugins, compiles
// schedule, collects garbage and fires plugin timers. Notifications since
// the last call are returned, they are valid until the next call.
func (e *Engine) OnTimer(now time.Time) ([]Notification, time.Time) {
	if e.thread != nil {
		if err := e.thread.crashed(); err != nil {
			e.crash(err)
		}
	}
	e.due, _ = e.timers.Advance(now, e.due[:0])
	for _, entry := range e.due {
		switch entry.Kind {
		case timer.MainIdle:
			e.idle()
		case timer.GarbageCollect:
			if n := e.collector.Collect(); n > 0 {
				e.logger.Debug(fmt.Sprintf("collected %d allocations", n))
			}
		case timer.PluginTimer:
			if h, ok := e.hosts[entry.Instance]; ok {
				h.OnTimer(plugin.TimerID(entry.Timer))
			}
		}
	}
	result := e.notifications
	e.notifications, e.returned = e.returned[:0], result
	// plugins may register timers while handling due entries
	return result, e.timers.NextExpectedTick()
}

func (e *Engine) notify(n Notification) {
	e.notifications = append(e.notifications, n)
}

// crash deactivates the engine and reports the cause.
func (e *Engine) crash(err error) {
	var crash *CrashError
	if !errors.As(err, &crash) {
		crash = &CrashError{Cause: err}
	}
	e.logger.Error(crash)
	e.Deactivate()
	e.notify(Notification{Kind: EngineCrashed, Err: crash})
}

// idle polls every plugin, completes drop handshakes and compiles a new
// schedule if the graph has changed.
func (e *Engine) idle() {
	for _, n := range e.graph.Plugins() {
		h := n.Host
		id := h.ID.Unique
		c := h.Poll()
		if c.Dropped {
			if _, ok := e.removing[id]; ok {
				e.removePlugin(h)
				e.dirty = true
				e.notify(Notification{Kind: PluginRemoved, Plugin: h.ID})
				continue
			}
			if _, ok := e.restarting[id]; ok {
				delete(e.restarting, id)
				if e.thread != nil && e.activatePlugin(h) {
					e.notify(Notification{Kind: PluginRestarted, Plugin: h.ID})
				}
				e.dirty = true
			}
		}
		if c.Errored {
			e.notify(Notification{Kind: PluginErrored, Plugin: h.ID, Err: h.LastError()})
		}
		if c.RestartRequested {
			e.restart(h)
		}
		for _, v := range c.Params {
			e.notify(Notification{Kind: ParamChanged, Plugin: h.ID, Param: v})
		}
	}
	if e.thread != nil && e.dirty {
		if err := e.recompile(); err != nil {
			e.crash(err)
		}
	}
}

// restart drops the processor of active plugin, it's reactivated once the
// drop is completed.
func (e *Engine) restart(h *pluginhost.Host) {
	id := h.ID.Unique
	if _, ok := e.removing[id]; ok {
		return
	}
	if e.thread == nil || !h.Active() {
		// inactive plugin picks up changes on the next activation
		return
	}
	if h.RequestDrop() {
		e.restarting[id] = struct{}{}
	}
}
