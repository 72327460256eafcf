// Package wav allows to read and write interleaved float32 signals from
// and to wav files. It also provides offline rendering of the engine.
package wav

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"pipelined.dev/host/signal"
)

// pcmFormat is the wav audio format of integer PCM.
const pcmFormat = 1

// ErrUnsupportedBitDepth is returned when unsupported bit depth is used.
var ErrUnsupportedBitDepth = errors.New("only 16, 24 and 32 bit depth is supported")

// ErrInvalidFile is returned when file is not a valid wav file.
var ErrInvalidFile = errors.New("wav is not valid")

func supported(bitDepth signal.BitDepth) bool {
	switch bitDepth {
	case signal.BitDepth16, signal.BitDepth24, signal.BitDepth32:
		return true
	}
	return false
}

// Pump reads interleaved frames from wav file.
type Pump struct {
	file     *os.File
	decoder  *wav.Decoder
	bitDepth signal.BitDepth
	channels int
	ib       *audio.IntBuffer
	data     []int
}

// OpenPump opens wav file and reads its format.
func OpenPump(path string) (*Pump, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		if err := file.Close(); err != nil {
			return nil, fmt.Errorf("%w, failed to close the file %v: %v", ErrInvalidFile, path, err)
		}
		return nil, fmt.Errorf("%s: %w", path, ErrInvalidFile)
	}
	bitDepth := signal.BitDepth(decoder.BitDepth)
	if !supported(bitDepth) {
		file.Close()
		return nil, fmt.Errorf("%s has %d bits: %w", path, bitDepth, ErrUnsupportedBitDepth)
	}
	format := decoder.Format()
	return &Pump{
		file:     file,
		decoder:  decoder,
		bitDepth: bitDepth,
		channels: format.NumChannels,
		ib: &audio.IntBuffer{
			Format:         format,
			SourceBitDepth: int(bitDepth),
		},
	}, nil
}

// SampleRate returns sample rate of the file.
func (p *Pump) SampleRate() int {
	return int(p.decoder.SampleRate)
}

// Channels returns number of channels in the file.
func (p *Pump) Channels() int {
	return p.channels
}

// BitDepth returns bit depth of the file.
func (p *Pump) BitDepth() signal.BitDepth {
	return p.bitDepth
}

// Read fills dst with interleaved frames and returns the number of frames
// read. io.EOF is returned when there are no more frames.
func (p *Pump) Read(dst []float32) (int, error) {
	samples := len(dst) / p.channels * p.channels
	if cap(p.data) < samples {
		p.data = make([]int, samples)
	}
	p.ib.Data = p.data[:samples]
	n, err := p.decoder.PCMBuffer(p.ib)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	p.bitDepth.IntsToFloat32(dst, p.ib.Data[:n])
	return n / p.channels, nil
}

// Close closes the file.
func (p *Pump) Close() error {
	return p.file.Close()
}

// Sink writes interleaved frames to wav file.
type Sink struct {
	file     *os.File
	encoder  *wav.Encoder
	bitDepth signal.BitDepth
	channels int
	ib       *audio.IntBuffer
	data     []int
	frames   int64
}

// CreateSink creates wav file with provided format.
func CreateSink(path string, sampleRate, channels int, bitDepth signal.BitDepth) (*Sink, error) {
	if !supported(bitDepth) {
		return nil, ErrUnsupportedBitDepth
	}
	if channels <= 0 {
		return nil, fmt.Errorf("invalid number of channels: %d", channels)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Sink{
		file:     f,
		encoder:  wav.NewEncoder(f, sampleRate, int(bitDepth), channels, pcmFormat),
		bitDepth: bitDepth,
		channels: channels,
		ib: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: channels,
				SampleRate:  sampleRate,
			},
			SourceBitDepth: int(bitDepth),
		},
	}, nil
}

// Channels returns number of channels in the file.
func (s *Sink) Channels() int {
	return s.channels
}

// Frames returns number of written frames.
func (s *Sink) Frames() int64 {
	return s.frames
}

// Write encodes interleaved frames. Values are clipped to [-1, 1].
func (s *Sink) Write(src []float32) error {
	if cap(s.data) < len(src) {
		s.data = make([]int, len(src))
	}
	s.ib.Data = s.data[:len(src)]
	s.bitDepth.Float32ToInts(s.ib.Data, src)
	if err := s.encoder.Write(s.ib); err != nil {
		return err
	}
	s.frames += int64(len(src) / s.channels)
	return nil
}

// Close flushes encoder and closes the file.
func (s *Sink) Close() error {
	if err := s.encoder.Close(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
