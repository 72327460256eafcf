package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"pipelined.dev/host/log"
	hostsignal "pipelined.dev/host/signal"
	"pipelined.dev/host/wav"
)

type renderCommand struct {
	config   string
	in       string
	out      string
	duration time.Duration
	tail     time.Duration
	bitDepth int
}

func (cmd *renderCommand) Name() string {
	return "render"
}

func (cmd *renderCommand) Help() string {
	return "Render audio file with configured plugins"
}

func (cmd *renderCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.config, "config", "", "yaml configuration of engine and plugins")
	fs.StringVar(&cmd.in, "in", "", "input wav file to process")
	fs.StringVar(&cmd.out, "out", "", "output wav file to save processed audio (required)")
	fs.DurationVar(&cmd.duration, "duration", time.Second, "duration to render without input file")
	fs.DurationVar(&cmd.tail, "tail", 0, "duration to render after input file")
	fs.IntVar(&cmd.bitDepth, "bits", 16, "bit depth of output file")
}

func (cmd *renderCommand) Validate() error {
	var message string
	if cmd.out == "" {
		message += "Missing -out required flag\n"
	}
	if cmd.in == "" && cmd.duration <= 0 {
		message += "Either -in or positive -duration is required\n"
	}
	if message != "" {
		return errors.New(message)
	}
	return nil
}

func (cmd *renderCommand) Run(stdout io.Writer) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	start := time.Now()
	e, cfg, _, err := setup(cmd.config, func() time.Time { return start })
	if err != nil {
		return err
	}
	defer e.Close()

	var source *wav.Pump
	if cmd.in != "" {
		if source, err = wav.OpenPump(cmd.in); err != nil {
			return err
		}
		defer source.Close()
		// file defines the sample rate
		cfg.Engine.SampleRate = uint32(source.SampleRate())
	}
	thread, err := e.Activate(cfg.Engine.Activation())
	if err != nil {
		return err
	}
	sampleRate := int(cfg.Engine.SampleRate)
	sink, err := wav.CreateSink(cmd.out, sampleRate, cfg.Engine.OutChannels, hostsignal.BitDepth(cmd.bitDepth))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	rendered, err := wav.Render(ctx, e, thread, source, sink, wav.RenderOptions{
		Frames: int64(hostsignal.FramesOf(sampleRate, cmd.duration)),
		Tail:   int64(hostsignal.FramesOf(sampleRate, cmd.tail)),
		Start:  start,
		Notify: notifier(log.GetLogger()),
	})
	if closeErr := sink.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Rendered %v (%d frames) to %s\n", hostsignal.DurationOf(sampleRate, rendered), rendered, cmd.out)
	return nil
}
