// Package signal provides helpers to manipulate interleaved signals. It
// allows to:
//   - extract and fill channels of interleaved float32 data
//   - convert bit depth for int signals
package signal

import (
	"math"
	"time"
)

const (
	// BitDepth8 is 8 bit depth.
	BitDepth8 = BitDepth(8)
	// BitDepth16 is 16 bit depth.
	BitDepth16 = BitDepth(16)
	// BitDepth24 is 24 bit depth.
	BitDepth24 = BitDepth(24)
	// BitDepth32 is 32 bit depth.
	BitDepth32 = BitDepth(32)
)

// BitDepth contains values required for int-to-float and backward conversion.
type BitDepth int

// devider is used when int to float conversion is done.
func (bitDepth BitDepth) devider() float32 {
	switch bitDepth {
	case BitDepth8:
		return math.MaxInt8
	case BitDepth16:
		return math.MaxInt16
	case BitDepth24:
		return 1<<23 - 1
	case BitDepth32:
		return math.MaxInt32
	default:
		return 1
	}
}

// multiplier is used when float to int conversion is done.
func (bitDepth BitDepth) multiplier() float32 {
	switch bitDepth {
	case BitDepth8:
		return math.MaxInt8 - 1
	case BitDepth16:
		return math.MaxInt16 - 1
	case BitDepth24:
		return 1<<23 - 2
	case BitDepth32:
		return math.MaxInt32 - 1
	default:
		return 1
	}
}

// DurationOf returns time duration of passed samples for this sample rate.
func DurationOf(sampleRate int, samples int64) time.Duration {
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}

// FramesOf returns number of frames that fit into the duration. At least
// one frame is returned for positive durations.
func FramesOf(sampleRate int, d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return max(1, int(float64(sampleRate)*d.Seconds()))
}

// IntsToFloat32 converts interleaved ints into dst. Number of converted
// samples is returned.
func (bitDepth BitDepth) IntsToFloat32(dst []float32, src []int) int {
	n := min(len(dst), len(src))
	devider := bitDepth.devider()
	for i := 0; i < n; i++ {
		dst[i] = float32(src[i]) / devider
	}
	return n
}

// Float32ToInts converts interleaved floats into dst. Values out of
// [-1, 1] are clipped. Number of converted samples is returned.
func (bitDepth BitDepth) Float32ToInts(dst []int, src []float32) int {
	n := min(len(dst), len(src))
	multiplier := bitDepth.multiplier()
	for i := 0; i < n; i++ {
		dst[i] = int(max(-1, min(1, src[i])) * multiplier)
	}
	return n
}

// ReadChannel copies a single channel of interleaved src into dst.
// Number of copied frames is returned.
func ReadChannel(dst, src []float32, numChannels, channel int) int {
	frames := min(len(dst), len(src)/numChannels)
	for i := 0; i < frames; i++ {
		dst[i] = src[i*numChannels+channel]
	}
	return frames
}

// WriteChannel copies src into a single channel of interleaved dst.
// Number of copied frames is returned.
func WriteChannel(dst, src []float32, numChannels, channel int) int {
	frames := min(len(src), len(dst)/numChannels)
	for i := 0; i < frames; i++ {
		dst[i*numChannels+channel] = src[i]
	}
	return frames
}

// FillChannel sets a single channel of interleaved dst to the value.
func FillChannel(dst []float32, numChannels, channel int, value float32) {
	for i := channel; i < len(dst); i += numChannels {
		dst[i] = value
	}
}
