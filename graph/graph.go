// Package graph holds the topology of plugins and compiles it into
// schedules.
package graph

import (
	"errors"
	"fmt"
	"math"

	"pipelined.dev/host/pluginhost"
)

// Graph nodes that represent engine inputs and outputs.
const (
	Input  uint64 = math.MaxUint64 - 1
	Output uint64 = math.MaxUint64
)

var (
	// ErrCycle is returned when connection creates a cycle.
	ErrCycle = errors.New("graph has a cycle")
	// ErrUnknownNode is returned when node is not in the graph.
	ErrUnknownNode = errors.New("unknown node")
	// ErrInvalidPort is returned when edge references port that node
	// doesn't have.
	ErrInvalidPort = errors.New("invalid port")
	// ErrDuplicateEdge is returned when edge already exists.
	ErrDuplicateEdge = errors.New("edge already exists")
)

// EdgeType is the type of data an edge carries.
type EdgeType uint8

// Edge types.
const (
	Audio EdgeType = iota
	Note
	Automation
)

func (t EdgeType) String() string {
	switch t {
	case Audio:
		return "audio"
	case Note:
		return "note"
	case Automation:
		return "automation"
	}
	return "unknown"
}

// Port addresses a node port. Channel is an index of audio channel across
// all audio ports of the node. It's zero for event edges.
type Port struct {
	Node    uint64
	Channel int
}

// Edge connects output of one node to input of another.
type Edge struct {
	Type EdgeType
	Src  Port
	Dst  Port
}

func (e Edge) String() string {
	return fmt.Sprintf("%v %d:%d -> %d:%d", e.Type, e.Src.Node, e.Src.Channel, e.Dst.Node, e.Dst.Channel)
}

// Node is a graph vertex. Host is nil for input and output nodes.
type Node struct {
	ID            uint64
	Host          *pluginhost.Host
	AudioIn       int
	AudioOut      int
	NoteIn        bool
	NoteOut       bool
	AutomationIn  bool
	AutomationOut bool
}

// Graph is the topology of the engine. It's only used by the control
// goroutine.
type Graph struct {
	nodes map[uint64]*Node
	order []uint64
	edges []Edge
}

// New returns a graph with input and output nodes.
func New(inChannels, outChannels int) *Graph {
	g := Graph{nodes: make(map[uint64]*Node)}
	g.add(&Node{ID: Input, AudioOut: inChannels, NoteOut: true})
	g.add(&Node{ID: Output, AudioIn: outChannels})
	return &g
}

func (g *Graph) add(n *Node) {
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
}

// AddPlugin adds plugin node. Ports are taken from the host.
func (g *Graph) AddPlugin(h *pluginhost.Host) *Node {
	n := &Node{ID: h.ID.Unique, Host: h}
	n.update()
	g.add(n)
	return n
}

func (n *Node) update() {
	ports := n.Host.Ports()
	n.AudioIn = ports.TotalInChannels()
	n.AudioOut = ports.TotalOutChannels()
	n.NoteIn = ports.NoteIn
	n.NoteOut = ports.NoteOut
	n.AutomationIn = n.Host.NumParams() > 0
	n.AutomationOut = ports.AutomationOut
}

// UpdatePorts reloads ports of the plugin node after reactivation. Edges
// that reference removed ports are deleted and returned.
func (g *Graph) UpdatePorts(id uint64) ([]Edge, error) {
	n, ok := g.nodes[id]
	if !ok || n.Host == nil {
		return nil, fmt.Errorf("node %d: %w", id, ErrUnknownNode)
	}
	n.update()
	var removed []Edge
	edges := g.edges[:0]
	for _, e := range g.edges {
		if g.validate(e) != nil {
			removed = append(removed, e)
			continue
		}
		edges = append(edges, e)
	}
	g.edges = edges
	return removed, nil
}

// RemovePlugin deletes node and all its edges. Removed edges are
// returned.
func (g *Graph) RemovePlugin(id uint64) ([]Edge, error) {
	n, ok := g.nodes[id]
	if !ok || n.Host == nil {
		return nil, fmt.Errorf("node %d: %w", id, ErrUnknownNode)
	}
	removed := g.Disconnect(id)
	delete(g.nodes, id)
	for i, v := range g.order {
		if v == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return removed, nil
}

// Disconnect deletes all edges of the node and returns them.
func (g *Graph) Disconnect(id uint64) []Edge {
	var removed []Edge
	edges := g.edges[:0]
	for _, e := range g.edges {
		if e.Src.Node == id || e.Dst.Node == id {
			removed = append(removed, e)
			continue
		}
		edges = append(edges, e)
	}
	g.edges = edges
	return removed
}

// Node returns node by id.
func (g *Graph) Node(id uint64) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Plugins returns plugin nodes in order they were added.
func (g *Graph) Plugins() []*Node {
	var result []*Node
	for _, id := range g.order {
		if n := g.nodes[id]; n.Host != nil {
			result = append(result, n)
		}
	}
	return result
}

// Edges returns a copy of all edges.
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// Connect adds an edge. Edges that create a cycle are rejected.
func (g *Graph) Connect(e Edge) error {
	if err := g.validate(e); err != nil {
		return err
	}
	for _, existing := range g.edges {
		if existing == e {
			return fmt.Errorf("edge %v: %w", e, ErrDuplicateEdge)
		}
	}
	g.edges = append(g.edges, e)
	if _, err := g.sort(); err != nil {
		g.edges = g.edges[:len(g.edges)-1]
		return fmt.Errorf("edge %v: %w", e, err)
	}
	return nil
}

// RemoveEdge deletes an edge. False is returned if edge doesn't exist.
func (g *Graph) RemoveEdge(e Edge) bool {
	for i, existing := range g.edges {
		if existing == e {
			g.edges = append(g.edges[:i], g.edges[i+1:]...)
			return true
		}
	}
	return false
}

func (g *Graph) validate(e Edge) error {
	src, ok := g.nodes[e.Src.Node]
	if !ok {
		return fmt.Errorf("edge %v source: %w", e, ErrUnknownNode)
	}
	dst, ok := g.nodes[e.Dst.Node]
	if !ok {
		return fmt.Errorf("edge %v destination: %w", e, ErrUnknownNode)
	}
	if src.ID == dst.ID {
		return fmt.Errorf("edge %v: %w", e, ErrCycle)
	}
	var valid bool
	switch e.Type {
	case Audio:
		valid = e.Src.Channel >= 0 && e.Src.Channel < src.AudioOut &&
			e.Dst.Channel >= 0 && e.Dst.Channel < dst.AudioIn
	case Note:
		valid = src.NoteOut && dst.NoteIn && e.Src.Channel == 0 && e.Dst.Channel == 0
	case Automation:
		valid = src.AutomationOut && dst.AutomationIn && e.Src.Channel == 0 && e.Dst.Channel == 0
	}
	if !valid {
		return fmt.Errorf("edge %v: %w", e, ErrInvalidPort)
	}
	return nil
}

// sort returns nodes in topological order. Nodes without dependencies
// keep the order they were added.
func (g *Graph) sort() ([]*Node, error) {
	indegree := make(map[uint64]int, len(g.nodes))
	deps := make(map[uint64][]uint64, len(g.nodes))
	for _, e := range g.edges {
		indegree[e.Dst.Node]++
		deps[e.Src.Node] = append(deps[e.Src.Node], e.Dst.Node)
	}
	result := make([]*Node, 0, len(g.nodes))
	done := make(map[uint64]bool, len(g.nodes))
	for len(result) < len(g.nodes) {
		progressed := false
		for _, id := range g.order {
			if done[id] || indegree[id] > 0 {
				continue
			}
			done[id] = true
			progressed = true
			result = append(result, g.nodes[id])
			for _, dst := range deps[id] {
				indegree[dst]--
			}
		}
		if !progressed {
			return nil, ErrCycle
		}
	}
	return result, nil
}
