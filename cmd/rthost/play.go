package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"gitlab.com/gomidi/midi/v2"

	"pipelined.dev/host/log"
	"pipelined.dev/host/portaudio"
)

type playCommand struct {
	config   string
	duration time.Duration
	key      uint
	velocity uint
}

func (cmd *playCommand) Name() string {
	return "play"
}

func (cmd *playCommand) Help() string {
	return "Play configured plugins with the default device"
}

func (cmd *playCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.config, "config", "", "yaml configuration of engine and plugins")
	fs.DurationVar(&cmd.duration, "duration", 0, "stop after duration, runs until interrupted if zero")
	fs.UintVar(&cmd.key, "key", 0, "MIDI key of the note played at start, no note if zero")
	fs.UintVar(&cmd.velocity, "velocity", 100, "MIDI velocity of the note")
}

func (cmd *playCommand) Run(stdout io.Writer) error {
	if cmd.key > 127 || cmd.velocity > 127 {
		return fmt.Errorf("invalid note %d with velocity %d", cmd.key, cmd.velocity)
	}
	e, cfg, next, err := setup(cmd.config, time.Now)
	if err != nil {
		return err
	}
	defer e.Close()
	thread, err := e.Activate(cfg.Engine.Activation())
	if err != nil {
		return err
	}
	stream, err := portaudio.Open(thread)
	if err != nil {
		return err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return err
	}
	if cmd.key > 0 {
		thread.SendMIDI(midi.NoteOn(0, uint8(cmd.key), uint8(cmd.velocity)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if cmd.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.duration)
		defer cancel()
	}
	fmt.Fprintln(stdout, "Playing, press Ctrl+C to stop")
	err = e.Run(ctx, next, notifier(log.GetLogger()))
	if closeErr := stream.Close(); err == nil {
		err = closeErr
	}
	return err
}
