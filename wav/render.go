package wav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"pipelined.dev/host"
	"pipelined.dev/host/signal"
)

// RenderOptions configure offline rendering.
type RenderOptions struct {
	// Frames is rendered when there is no source, otherwise it's ignored.
	Frames int64
	// Tail is rendered after the source is done.
	Tail int64
	// Start is the clock instant of the engine. Engine timer is driven by
	// rendered frames starting at this instant.
	Start time.Time
	// Notify receives engine notifications.
	Notify func(host.Notification)
}

// Render runs the engine offline. Audio and control are driven by the
// calling goroutine, so rendering is deterministic. Source is optional,
// its channels are mapped to engine inputs. Number of rendered frames is
// returned. Rendering stops with CrashError if the engine crashes.
func Render(ctx context.Context, e *host.Engine, thread *host.AudioThread, source *Pump, sink *Sink, opts RenderOptions) (int64, error) {
	inChannels, outChannels := thread.Channels()
	if sink.Channels() != outChannels {
		return 0, fmt.Errorf("sink has %d channels, engine has %d outputs", sink.Channels(), outChannels)
	}
	var (
		block      = thread.MaxFrames()
		sampleRate = int(thread.SampleRate())
		in         = make([]float32, block*inChannels)
		out        = make([]float32, block*outChannels)
		read       []float32
		remaining  = opts.Frames
		rendered   int64
		next       = opts.Start
	)
	if source != nil {
		read = make([]float32, block*source.Channels())
		remaining = opts.Tail
	}

	for {
		if err := ctx.Err(); err != nil {
			return rendered, err
		}
		var (
			input  []float32
			frames int
		)
		if source != nil {
			n, err := source.Read(read)
			switch {
			case errors.Is(err, io.EOF):
				source = nil
			case err != nil:
				return rendered, fmt.Errorf("error reading source: %w", err)
			default:
				frames = n
				input = in[:n*inChannels]
				remap(input, inChannels, read[:n*source.Channels()], source.Channels())
			}
		}
		if source == nil {
			if remaining <= 0 {
				return rendered, nil
			}
			frames = int(min(int64(block), remaining))
			remaining -= int64(frames)
		}

		output := out[:frames*outChannels]
		thread.Process(input, output)
		if err := sink.Write(output); err != nil {
			return rendered, fmt.Errorf("error writing sink: %w", err)
		}
		rendered += int64(frames)

		now := opts.Start.Add(signal.DurationOf(sampleRate, rendered))
		if thread.Crashed() || !now.Before(next) {
			var notifications []host.Notification
			notifications, next = e.OnTimer(now)
			for _, n := range notifications {
				if opts.Notify != nil {
					opts.Notify(n)
				}
				if n.Kind == host.EngineCrashed {
					return rendered, n.Err
				}
			}
		}
	}
}

// remap copies interleaved src into dst with different number of
// channels. Mono source is copied into every channel, missing channels
// are silent.
func remap(dst []float32, dstChannels int, src []float32, srcChannels int) {
	if dstChannels == 0 {
		return
	}
	if dstChannels == srcChannels {
		copy(dst, src)
		return
	}
	frames := len(src) / srcChannels
	for i := 0; i < frames; i++ {
		for ch := 0; ch < dstChannels; ch++ {
			switch {
			case ch < srcChannels:
				dst[i*dstChannels+ch] = src[i*srcChannels+ch]
			case srcChannels == 1:
				dst[i*dstChannels+ch] = src[i]
			default:
				dst[i*dstChannels+ch] = 0
			}
		}
	}
}
