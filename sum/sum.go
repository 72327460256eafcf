// Package sum provides fan-in tasks that merge several buffers of the same
// kind into a single buffer.
package sum

import (
	"unsafe"

	"pipelined.dev/host/buffer"
	"pipelined.dev/host/event"
)

// Sample is a type of audio sample.
type Sample interface {
	~float32 | ~float64
}

// Machine epsilons of sample types.
const (
	epsilon32 = 1.1920929e-07
	epsilon64 = 2.220446049250313e-16
)

func isSilent[T Sample](v T) bool {
	if v < 0 {
		v = -v
	}
	if unsafe.Sizeof(v) == 4 {
		return v <= epsilon32
	}
	return v <= epsilon64
}

// Audio sums audio inputs into the output.
type Audio[T Sample] struct {
	Inputs []buffer.Shared[T]
	Output buffer.Shared[T]
}

// Process sums first frames of every input. Constant inputs are added as
// a scalar and silent constant inputs are skipped.
func (a *Audio[T]) Process(frames int) {
	out := a.Output.BorrowMut()
	o := out.Slice()[:frames]

	in0 := a.Inputs[0].Borrow()
	copy(o, in0.Slice()[:frames])
	in0.Release()
	constant := a.Inputs[0].IsConstant()

	for _, input := range a.Inputs[1:] {
		r := input.Borrow()
		in := r.Slice()[:frames]
		if input.IsConstant() {
			if isSilent(in[0]) {
				r.Release()
				continue
			}
			v := in[0]
			for i := range o {
				o[i] += v
			}
		} else {
			constant = false
			for i := range o {
				o[i] += in[i]
			}
		}
		r.Release()
	}
	out.Release()
	a.Output.SetConstant(constant)
}

// Events concatenates event inputs into the output. Order of inputs and
// order of events within every input are preserved.
type Events[T comparable] struct {
	Inputs []buffer.Shared[T]
	Output buffer.Shared[T]
}

// Process merges inputs. The output is cleared first.
func (e *Events[T]) Process() {
	out := e.Output.BorrowMut()
	out.Reset()
	for _, input := range e.Inputs {
		r := input.Borrow()
		out.Append(r.Slice()...)
		r.Release()
	}
	out.Release()
}

type (
	// Note merges note events.
	Note = Events[event.NoteIO]
	// Automation merges automation events.
	Automation = Events[event.AutomationIO]
)
