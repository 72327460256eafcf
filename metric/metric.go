// Package metric exposes expvar counters of audio processing. Counters
// are grouped by component type and updated with atomic operations only,
// so meters are safe on the audio goroutine.
package metric

import (
	"expvar"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"pipelined.dev/host/signal"
)

const componentsLabel = "host.components"

// Counter names.
const (
	// CycleCounter measures number of processed cycles.
	CycleCounter = "Cycles"
	// FrameCounter measures number of processed frames.
	FrameCounter = "Frames"
	// LatencyCounter measures time between starts of the last two cycles.
	LatencyCounter = "Latency"
	// ProcessingCounter sums time spent processing cycles.
	ProcessingCounter = "Processing"
	// DurationCounter sums the duration of processed signal.
	DurationCounter = "Duration"
	// ComponentCounter counts number of metered components.
	ComponentCounter = "Components"
)

var (
	registry = struct {
		sync.Mutex
		groups map[string]*group
	}{groups: make(map[string]*group)}

	counterNames = []string{
		CycleCounter,
		FrameCounter,
		LatencyCounter,
		ProcessingCounter,
		DurationCounter,
		ComponentCounter,
	}
)

// group holds counters shared by all components of the same type.
type group struct {
	components *expvar.Int
	cycles     *expvar.Int
	frames     *expvar.Int
	latency    *duration
	processing *duration
	duration   *duration
}

func groupOf(componentType string) *group {
	registry.Lock()
	defer registry.Unlock()
	if g, ok := registry.groups[componentType]; ok {
		return g
	}
	g := &group{
		components: expvar.NewInt(key(componentType, ComponentCounter)),
		cycles:     expvar.NewInt(key(componentType, CycleCounter)),
		frames:     expvar.NewInt(key(componentType, FrameCounter)),
		latency:    &duration{},
		processing: &duration{},
		duration:   &duration{},
	}
	expvar.Publish(key(componentType, LatencyCounter), g.latency)
	expvar.Publish(key(componentType, ProcessingCounter), g.processing)
	expvar.Publish(key(componentType, DurationCounter), g.duration)
	registry.groups[componentType] = g
	return g
}

// Get returns counter values for provided component type.
func Get(component any) map[string]string {
	return values(typeOf(component))
}

// GetAll returns counter values of all metered component types.
func GetAll() map[string]map[string]string {
	registry.Lock()
	defer registry.Unlock()
	m := make(map[string]map[string]string, len(registry.groups))
	for componentType := range registry.groups {
		m[componentType] = values(componentType)
	}
	return m
}

func values(componentType string) map[string]string {
	m := make(map[string]string)
	for _, counter := range counterNames {
		if v := expvar.Get(key(componentType, counter)); v != nil {
			m[counter] = v.String()
		}
	}
	return m
}

// Meter captures counters of a single component. It must be used by one
// goroutine at a time.
type Meter struct {
	g          *group
	sampleRate int
	started    time.Time
	// frames and cycle cache the signal duration of the last cycle size.
	frames int64
	cycle  time.Duration
}

// NewMeter registers a component of the type of provided value.
func NewMeter(component any, sampleRate int) *Meter {
	g := groupOf(typeOf(component))
	g.components.Add(1)
	return &Meter{g: g, sampleRate: sampleRate}
}

// Start marks the beginning of a cycle.
func (m *Meter) Start() {
	now := time.Now()
	if !m.started.IsZero() {
		m.g.latency.set(now.Sub(m.started))
	}
	m.started = now
}

// Measure captures a processed cycle of provided size.
func (m *Meter) Measure(frames int64) {
	m.g.processing.add(time.Since(m.started))
	m.g.cycles.Add(1)
	m.g.frames.Add(frames)
	if m.frames != frames {
		m.frames = frames
		m.cycle = signal.DurationOf(m.sampleRate, frames)
	}
	m.g.duration.add(m.cycle)
}

func key(componentType, counter string) string {
	return fmt.Sprintf("%s.%s.%s", componentsLabel, componentType, counter)
}

func typeOf(component any) string {
	rv := reflect.ValueOf(component)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	return rv.Type().String()
}

// duration formats time.Duration counters.
type duration struct {
	d atomic.Int64
}

func (v *duration) String() string {
	return time.Duration(v.d.Load()).String()
}

func (v *duration) add(delta time.Duration) {
	v.d.Add(int64(delta))
}

func (v *duration) set(value time.Duration) {
	v.d.Store(int64(value))
}
