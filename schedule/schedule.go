// Package schedule defines compiled processing schedules executed by the
// audio goroutine.
package schedule

import (
	"fmt"
	"strings"

	"pipelined.dev/host/buffer"
	"pipelined.dev/host/collect"
	"pipelined.dev/host/event"
	"pipelined.dev/host/plugin"
	"pipelined.dev/host/pluginhost"
	"pipelined.dev/host/sum"
)

// Task is a single node of the schedule.
type Task interface {
	Process(info *plugin.ProcInfo)
}

type (
	// AudioSum merges audio channels.
	AudioSum struct {
		Sum sum.Audio[float32]
	}

	// NoteSum merges note buffers.
	NoteSum struct {
		Sum sum.Note
	}

	// AutomationSum merges automation buffers.
	AutomationSum struct {
		Sum sum.Automation
	}

	// PluginTask processes a single plugin instance.
	PluginTask struct {
		ID      plugin.InstanceID
		Proc    collect.Shared[*pluginhost.Processor]
		Buffers plugin.ProcBuffers
		Events  pluginhost.EventIO
	}
)

// Process implements Task.
func (t *AudioSum) Process(info *plugin.ProcInfo) {
	t.Sum.Process(info.Frames)
}

// Process implements Task.
func (t *NoteSum) Process(*plugin.ProcInfo) {
	t.Sum.Process()
}

// Process implements Task.
func (t *AutomationSum) Process(*plugin.ProcInfo) {
	t.Sum.Process()
}

// Process implements Task. Dropped processor keeps its outputs silent.
func (t *PluginTask) Process(info *plugin.ProcInfo) {
	p := t.Proc.Get()
	if p.Dropped() {
		t.Events.ClearBeforeProcess()
		t.Buffers.ClearAllOutputs(info)
		return
	}
	if p.Process(info, &t.Buffers, &t.Events) {
		p.Drop()
	}
}

type releaser interface {
	Release()
}

// Schedule is an ordered list of tasks. It's immutable once published
// and owns references to all its buffers and processors.
type Schedule struct {
	Version   uint64
	MaxFrames int
	Tasks     []Task
	// GraphIn buffers are written by the audio goroutine before tasks are
	// processed.
	GraphIn []buffer.Shared[float32]
	// GraphOut buffers are read by the audio goroutine after tasks are
	// processed.
	GraphOut []buffer.Shared[float32]
	// NoteIn is zero if no plugin receives graph notes.
	NoteIn buffer.Shared[event.NoteIO]

	owned []releaser
}

// Own makes the schedule responsible for releasing the reference.
func (s *Schedule) Own(r releaser) {
	s.owned = append(s.owned, r)
}

// Process runs all tasks in order. Schedule version of info is replaced
// with the version of the schedule.
func (s *Schedule) Process(info *plugin.ProcInfo) {
	info.ScheduleVersion = s.Version
	for _, t := range s.Tasks {
		t.Process(info)
	}
}

// Release drops all references owned by the schedule. It's called by
// collector once the schedule is not used by the audio goroutine.
func (s *Schedule) Release() {
	for _, r := range s.owned {
		r.Release()
	}
	s.owned = nil
	s.Tasks = nil
}

func (s *Schedule) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "schedule v%d\n", s.Version)
	fmt.Fprintf(&b, "  graph in: %v\n", ids(s.GraphIn))
	for _, t := range s.Tasks {
		switch t := t.(type) {
		case *AudioSum:
			fmt.Fprintf(&b, "  sum %v <- %v\n", t.Sum.Output.ID(), ids(t.Sum.Inputs))
		case *NoteSum:
			fmt.Fprintf(&b, "  note sum %v <- %v\n", t.Sum.Output.ID(), ids(t.Sum.Inputs))
		case *AutomationSum:
			fmt.Fprintf(&b, "  automation sum %v <- %v\n", t.Sum.Output.ID(), ids(t.Sum.Inputs))
		case *PluginTask:
			var in, out []buffer.ID
			for _, p := range t.Buffers.AudioIn {
				in = append(in, ids(p.Raw())...)
			}
			for _, p := range t.Buffers.AudioOut {
				out = append(out, ids(p.Raw())...)
			}
			fmt.Fprintf(&b, "  plugin %v in %v out %v\n", t.ID, in, out)
		}
	}
	fmt.Fprintf(&b, "  graph out: %v\n", ids(s.GraphOut))
	return b.String()
}

func ids[T comparable](buffers []buffer.Shared[T]) []buffer.ID {
	result := make([]buffer.ID, 0, len(buffers))
	for _, b := range buffers {
		result = append(result, b.ID())
	}
	return result
}
