package graph

import (
	"fmt"

	"pipelined.dev/host/buffer"
	"pipelined.dev/host/collect"
	"pipelined.dev/host/event"
	"pipelined.dev/host/plugin"
	"pipelined.dev/host/pluginhost"
	"pipelined.dev/host/schedule"
)

// CompileConfig holds buffer sizes of compiled schedule.
type CompileConfig struct {
	MaxFrames int
	// EventCapacity is capacity of note and automation buffers.
	EventCapacity int
}

// compiler allocates buffers of a single schedule.
type compiler struct {
	h      collect.Handle
	cfg    CompileConfig
	s      *schedule.Schedule
	silent buffer.Shared[float32]
	index  uint32

	audio      map[Port]buffer.Shared[float32]
	notes      map[uint64]buffer.Shared[event.NoteIO]
	automation map[uint64]buffer.Shared[event.AutomationIO]
}

// Compile turns the graph into a schedule with provided version. Output
// channels of every node get their own buffer. Inputs with multiple edges
// are merged by sum tasks, inputs without edges read a shared silent
// buffer. Inactive plugins are skipped and their outputs stay silent.
func (g *Graph) Compile(version uint64, h collect.Handle, cfg CompileConfig) (*schedule.Schedule, error) {
	nodes, err := g.sort()
	if err != nil {
		return nil, err
	}
	c := compiler{
		h:          h,
		cfg:        cfg,
		s:          &schedule.Schedule{Version: version, MaxFrames: cfg.MaxFrames},
		audio:      make(map[Port]buffer.Shared[float32]),
		notes:      make(map[uint64]buffer.Shared[event.NoteIO]),
		automation: make(map[uint64]buffer.Shared[event.AutomationIO]),
	}
	c.silent = c.newAudio(buffer.Audio32)

	for _, n := range nodes {
		c.allocateOutputs(n)
	}
	for _, n := range nodes {
		switch n.ID {
		case Input:
			for ch := 0; ch < n.AudioOut; ch++ {
				c.s.GraphIn = append(c.s.GraphIn, c.clone(c.audio[Port{Node: Input, Channel: ch}]))
			}
			if b, ok := c.notes[Input]; ok {
				c.s.NoteIn = c.cloneNotes(b)
			}
		case Output:
			c.s.GraphOut = c.audioInputs(g, n)
		default:
			if err := c.plugin(g, n); err != nil {
				c.s.Release()
				return nil, err
			}
		}
	}
	return c.s, nil
}

func (c *compiler) nextID(kind buffer.Kind) buffer.ID {
	id := buffer.ID{Index: c.index, Kind: kind}
	c.index++
	return id
}

func (c *compiler) newAudio(kind buffer.Kind) buffer.Shared[float32] {
	b := buffer.New[float32](c.h, c.cfg.MaxFrames, c.nextID(kind))
	b.Clear(c.cfg.MaxFrames)
	c.s.Own(b)
	return b
}

func (c *compiler) clone(b buffer.Shared[float32]) buffer.Shared[float32] {
	b = b.Clone()
	c.s.Own(b)
	return b
}

func (c *compiler) cloneNotes(b buffer.Shared[event.NoteIO]) buffer.Shared[event.NoteIO] {
	b = b.Clone()
	c.s.Own(b)
	return b
}

func (c *compiler) cloneAutomation(b buffer.Shared[event.AutomationIO]) buffer.Shared[event.AutomationIO] {
	b = b.Clone()
	c.s.Own(b)
	return b
}

func (c *compiler) newNotes() buffer.Shared[event.NoteIO] {
	b := buffer.WithCapacity[event.NoteIO](c.h, c.cfg.EventCapacity, c.nextID(buffer.Note))
	c.s.Own(b)
	return b
}

func (c *compiler) newAutomation() buffer.Shared[event.AutomationIO] {
	b := buffer.WithCapacity[event.AutomationIO](c.h, c.cfg.EventCapacity, c.nextID(buffer.Automation))
	c.s.Own(b)
	return b
}

func (c *compiler) allocateOutputs(n *Node) {
	if n.Host != nil && !n.Host.Active() {
		return
	}
	for ch := 0; ch < n.AudioOut; ch++ {
		c.audio[Port{Node: n.ID, Channel: ch}] = c.newAudio(buffer.Audio32)
	}
	if n.NoteOut {
		c.notes[n.ID] = c.newNotes()
	}
	if n.AutomationOut {
		c.automation[n.ID] = c.newAutomation()
	}
}

// audioInputs resolves every audio input channel of the node.
func (c *compiler) audioInputs(g *Graph, n *Node) []buffer.Shared[float32] {
	inputs := make([]buffer.Shared[float32], n.AudioIn)
	sources := make([][]buffer.Shared[float32], n.AudioIn)
	for _, e := range g.edges {
		if e.Type != Audio || e.Dst.Node != n.ID {
			continue
		}
		if src, ok := c.audio[e.Src]; ok {
			sources[e.Dst.Channel] = append(sources[e.Dst.Channel], src)
		}
	}
	for ch, srcs := range sources {
		switch len(srcs) {
		case 0:
			inputs[ch] = c.clone(c.silent)
		case 1:
			inputs[ch] = c.clone(srcs[0])
		default:
			task := schedule.AudioSum{}
			task.Sum.Output = c.newAudio(buffer.IntermediaryAudio32)
			for _, src := range srcs {
				task.Sum.Inputs = append(task.Sum.Inputs, c.clone(src))
			}
			c.s.Tasks = append(c.s.Tasks, &task)
			inputs[ch] = c.clone(task.Sum.Output)
		}
	}
	return inputs
}

// eventInputs resolves note and automation input of the node.
func (c *compiler) eventInputs(g *Graph, n *Node, io *pluginhost.EventIO) {
	var notes []buffer.Shared[event.NoteIO]
	var automation []buffer.Shared[event.AutomationIO]
	for _, e := range g.edges {
		if e.Dst.Node != n.ID {
			continue
		}
		switch e.Type {
		case Note:
			if src, ok := c.notes[e.Src.Node]; ok {
				notes = append(notes, src)
			}
		case Automation:
			if src, ok := c.automation[e.Src.Node]; ok {
				automation = append(automation, src)
			}
		}
	}
	switch len(notes) {
	case 0:
	case 1:
		io.NoteIn = c.cloneNotes(notes[0])
	default:
		task := schedule.NoteSum{}
		task.Sum.Output = c.newNotes()
		for _, src := range notes {
			task.Sum.Inputs = append(task.Sum.Inputs, c.cloneNotes(src))
		}
		c.s.Tasks = append(c.s.Tasks, &task)
		io.NoteIn = c.cloneNotes(task.Sum.Output)
	}
	switch len(automation) {
	case 0:
	case 1:
		io.AutomationIn = c.cloneAutomation(automation[0])
	default:
		task := schedule.AutomationSum{}
		task.Sum.Output = c.newAutomation()
		for _, src := range automation {
			task.Sum.Inputs = append(task.Sum.Inputs, c.cloneAutomation(src))
		}
		c.s.Tasks = append(c.s.Tasks, &task)
		io.AutomationIn = c.cloneAutomation(task.Sum.Output)
	}
}

func (c *compiler) plugin(g *Graph, n *Node) error {
	proc := n.Host.Processor()
	if proc.IsZero() {
		return nil
	}
	c.s.Own(proc)
	ports := n.Host.Ports()
	if ports.TotalInChannels() != n.AudioIn || ports.TotalOutChannels() != n.AudioOut {
		return fmt.Errorf("plugin %v: ports changed without graph update", n.Host.ID)
	}

	task := schedule.PluginTask{
		ID:   n.Host.ID,
		Proc: proc,
		Buffers: plugin.ProcBuffers{
			MainThrough: ports.MainThroughWhenBypassed,
		},
	}
	inputs := c.audioInputs(g, n)
	for _, port := range ports.Inputs {
		task.Buffers.AudioIn = append(task.Buffers.AudioIn, buffer.NewAudioPort(inputs[:port.Channels], port.Latency))
		inputs = inputs[port.Channels:]
	}
	ch := 0
	for _, port := range ports.Outputs {
		channels := make([]buffer.Shared[float32], port.Channels)
		for i := range channels {
			channels[i] = c.clone(c.audio[Port{Node: n.ID, Channel: ch}])
			ch++
		}
		task.Buffers.AudioOut = append(task.Buffers.AudioOut, buffer.NewAudioPortMut(channels, port.Latency))
	}
	c.eventInputs(g, n, &task.Events)
	if b, ok := c.notes[n.ID]; ok {
		task.Events.NoteOut = c.cloneNotes(b)
	}
	if b, ok := c.automation[n.ID]; ok {
		task.Events.AutomationOut = c.cloneAutomation(b)
	}
	c.s.Tasks = append(c.s.Tasks, &task)
	return nil
}
