// Command rthost hosts builtin plugins. It renders audio files offline or
// plays the plugin chain in real time.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
)

type command interface {
	Name() string
	Help() string
	Run(stdout io.Writer) error
	Register(*flag.FlagSet)
}

const (
	successExitCode = 0
	errorExitCode   = 1
)

func commands() []command {
	return []command{
		&pluginsCommand{},
		&renderCommand{},
		&playCommand{},
	}
}

func run(args []string, stdout io.Writer) int {
	cmdName, args := parseArgs(args)
	if cmdName == "" {
		printUsage(stdout)
		return errorExitCode
	}

	for _, cmd := range commands() {
		if cmd.Name() != cmdName {
			continue
		}
		flags := flag.NewFlagSet(cmdName, flag.ContinueOnError)
		flags.SetOutput(stdout)
		cmd.Register(flags)
		if err := flags.Parse(args); err != nil {
			return errorExitCode
		}
		if err := cmd.Run(stdout); err != nil {
			fmt.Fprintf(stdout, "Command failed: %v\n", err)
			return errorExitCode
		}
		return successExitCode
	}
	fmt.Fprintf(stdout, "Unknown command: %s\n", cmdName)
	printUsage(stdout)
	return errorExitCode
}

func main() {
	os.Exit(run(os.Args, os.Stdout))
}

func parseArgs(args []string) (string, []string) {
	if len(args) < 2 {
		return "", nil
	}
	return args[1], args[2:]
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "rthost is a CLI real-time plugin host")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: rthost <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, cmd := range commands() {
		fmt.Fprintf(w, "\t%s\t%s\n", cmd.Name(), cmd.Help())
	}
}
