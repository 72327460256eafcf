// Package portaudio drives the audio thread by the default portaudio
// device.
package portaudio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"

	"pipelined.dev/host"
)

// Stream processes audio of the default device in the device callback.
type Stream struct {
	stream *portaudio.Stream
	thread *host.AudioThread
}

// Open initializes portaudio and opens the default stream with engine
// channels. Device buffer size is left to portaudio, the audio thread
// splits it into cycles.
func Open(thread *host.AudioThread) (*Stream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("error initializing portaudio: %w", err)
	}
	in, out := thread.Channels()
	s := Stream{thread: thread}
	stream, err := portaudio.OpenDefaultStream(in, out, float64(thread.SampleRate()), portaudio.FramesPerBufferUnspecified, s.process)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("error opening default stream: %w", err)
	}
	s.stream = stream
	return &s, nil
}

// process is the device callback.
func (s *Stream) process(in, out []float32) {
	s.thread.Process(in, out)
}

// Start starts the stream.
func (s *Stream) Start() error {
	return s.stream.Start()
}

// Close stops the stream and terminates portaudio.
func (s *Stream) Close() error {
	if err := s.stream.Stop(); err != nil {
		return err
	}
	if err := s.stream.Close(); err != nil {
		return err
	}
	return portaudio.Terminate()
}

// Devices returns names of available devices.
func Devices() ([]string, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	defer portaudio.Terminate()
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(devices))
	for _, d := range devices {
		names = append(names, fmt.Sprintf("%s (in: %d, out: %d, %v Hz)", d.Name, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate))
	}
	return names, nil
}
