package config

import (
	"fmt"

	"pipelined.dev/host"
	"pipelined.dev/host/graph"
	"pipelined.dev/host/plugin"
)

// Build adds configured plugins to the engine and connects them in series
// from the engine input to the engine output. Plugins with note input are
// connected to the engine notes. A plugin without audio input starts a new
// chain, so the signal before it is not routed to the output.
func (c *Config) Build(e *host.Engine) ([]plugin.InstanceID, error) {
	if len(c.Plugins) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(c.Plugins))
	for _, p := range c.Plugins {
		ids = append(ids, p.ID)
	}
	added, err := e.ModifyGraph(host.ModifyGraphRequest{Add: ids})
	if err != nil {
		return nil, fmt.Errorf("add plugins: %w", err)
	}

	var (
		edges    []graph.Edge
		prev     = graph.Input
		channels = c.Engine.InChannels
	)
	for _, id := range added.Added {
		info, err := e.Plugin(id.Unique)
		if err != nil {
			return nil, err
		}
		if info.Ports.NoteIn {
			edges = append(edges, graph.Edge{
				Type: graph.Note,
				Src:  graph.Port{Node: graph.Input},
				Dst:  graph.Port{Node: id.Unique},
			})
		}
		edges = connect(edges, prev, id.Unique, min(channels, info.Ports.TotalInChannels()))
		if out := info.Ports.TotalOutChannels(); out > 0 {
			prev, channels = id.Unique, out
		}
	}
	edges = connect(edges, prev, graph.Output, min(channels, c.Engine.OutChannels))
	if _, err := e.ModifyGraph(host.ModifyGraphRequest{Connect: edges}); err != nil {
		return added.Added, fmt.Errorf("connect plugins: %w", err)
	}

	for i, id := range added.Added {
		p := c.Plugins[i]
		if p.Bypassed {
			if err := e.SetBypassed(id.Unique, true); err != nil {
				return added.Added, err
			}
		}
		for param, value := range p.Params {
			if err := e.SetParam(id.Unique, param, value); err != nil {
				return added.Added, fmt.Errorf("plugin %s param %d: %w", p.ID, param, err)
			}
		}
	}
	return added.Added, nil
}

// connect appends audio edges between the first channels of two nodes.
func connect(edges []graph.Edge, src, dst uint64, channels int) []graph.Edge {
	for ch := 0; ch < channels; ch++ {
		edges = append(edges, graph.Edge{
			Type: graph.Audio,
			Src:  graph.Port{Node: src, Channel: ch},
			Dst:  graph.Port{Node: dst, Channel: ch},
		})
	}
	return edges
}
