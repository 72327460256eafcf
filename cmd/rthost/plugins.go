package main

import (
	"flag"
	"fmt"
	"io"
	"sort"

	"pipelined.dev/host/builtin"
	"pipelined.dev/host/plugin"
)

type pluginsCommand struct {
	channels int
}

func (cmd *pluginsCommand) Name() string {
	return "plugins"
}

func (cmd *pluginsCommand) Help() string {
	return "Show the list of available plugins"
}

func (cmd *pluginsCommand) Register(fs *flag.FlagSet) {
	fs.IntVar(&cmd.channels, "channels", 2, "number of plugin channels")
}

func (cmd *pluginsCommand) Run(stdout io.Writer) error {
	factories := builtin.Factories(cmd.channels)
	sort.Slice(factories, func(i, j int) bool {
		return factories[i].Descriptor().ID < factories[j].Descriptor().ID
	})
	fmt.Fprintln(stdout, "Available plugins:")
	for _, f := range factories {
		fmt.Fprintf(stdout, "\t%s\n", describe(f))
	}
	return nil
}

func describe(f plugin.Factory) string {
	d := f.Descriptor()
	return fmt.Sprintf("%s\t%s %s by %s", d.ID, d.Name, d.Version, d.Vendor)
}
