package sum_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pipelined.dev/host/buffer"
	"pipelined.dev/host/collect"
	"pipelined.dev/host/event"
	"pipelined.dev/host/sum"
)

type input struct {
	values   []float32
	constant bool
}

func TestAudio(t *testing.T) {
	tests := []struct {
		description string
		frames      int
		inputs      []input
		expected    []float32
		constant    bool
	}{
		{
			description: "constant silent and varying",
			frames:      4,
			inputs: []input{
				{values: []float32{2, 2, 2, 2}, constant: true},
				{values: []float32{0, 0, 0, 0}, constant: true},
				{values: []float32{3, 1, -1, 0.5}},
			},
			expected: []float32{5, 3, 1, 2.5},
			constant: false,
		},
		{
			description: "all silent",
			frames:      4,
			inputs: []input{
				{values: []float32{0, 0, 0, 0}, constant: true},
				{values: []float32{0, 0, 0, 0}, constant: true},
				{values: []float32{0, 0, 0, 0}, constant: true},
			},
			expected: []float32{0, 0, 0, 0},
			constant: true,
		},
		{
			description: "constant scalar",
			frames:      4,
			inputs: []input{
				{values: []float32{1, 2, 3, 4}},
				{values: []float32{0.5, 0.5, 0.5, 0.5}, constant: true},
			},
			expected: []float32{1.5, 2.5, 3.5, 4.5},
			constant: false,
		},
		{
			description: "partial cycle",
			frames:      2,
			inputs: []input{
				{values: []float32{1, 1, 9, 9}},
				{values: []float32{1, 1, 9, 9}},
			},
			expected: []float32{2, 2, 0, 0},
			constant: false,
		},
	}
	c := collect.New()
	for _, test := range tests {
		task := sum.Audio[float32]{
			Output: buffer.New[float32](c.Handle(), 4, buffer.ID{}),
		}
		for i, in := range test.inputs {
			b := buffer.New[float32](c.Handle(), 4, buffer.ID{Index: uint32(i)})
			w := b.BorrowMut()
			copy(w.Slice(), in.values)
			w.Release()
			b.SetConstant(in.constant)
			task.Inputs = append(task.Inputs, b)
		}
		task.Process(test.frames)

		r := task.Output.Borrow()
		assert.Equal(t, test.expected, r.Slice(), test.description)
		r.Release()
		assert.Equal(t, test.constant, task.Output.IsConstant(), test.description)

		task.Output.Release()
		for _, in := range task.Inputs {
			in.Release()
		}
	}
	c.Collect()
	assert.Equal(t, 0, c.Live())
}

func TestAudioFloat64(t *testing.T) {
	c := collect.New()
	in := buffer.New[float64](c.Handle(), 2, buffer.ID{Kind: buffer.Audio64})
	silent := buffer.New[float64](c.Handle(), 2, buffer.ID{Kind: buffer.Audio64})
	silent.Clear(2)
	in.Clear(2)
	task := sum.Audio[float64]{
		Inputs: []buffer.Shared[float64]{in, silent},
		Output: buffer.New[float64](c.Handle(), 2, buffer.ID{Kind: buffer.Audio64}),
	}
	task.Process(2)
	assert.True(t, task.Output.HasSilentHint())
}

func TestEvents(t *testing.T) {
	note := func(key uint8) event.NoteIO {
		return event.NoteIO{Event: event.Event{Kind: event.NoteOn, Key: key}}
	}
	c := collect.New()
	first := buffer.WithCapacity[event.NoteIO](c.Handle(), 4, buffer.ID{Kind: buffer.Note})
	second := buffer.WithCapacity[event.NoteIO](c.Handle(), 4, buffer.ID{Kind: buffer.Note})
	out := buffer.WithCapacity[event.NoteIO](c.Handle(), 8, buffer.ID{Kind: buffer.Note})

	w := first.BorrowMut()
	w.Append(note(1), note(2))
	w.Release()
	w = second.BorrowMut()
	w.Append(note(3))
	w.Release()
	w = out.BorrowMut()
	w.Append(note(99))
	w.Release()

	task := sum.Note{
		Inputs: []buffer.Shared[event.NoteIO]{first, second},
		Output: out,
	}
	task.Process()
	r := out.Borrow()
	assert.Equal(t, []event.NoteIO{note(1), note(2), note(3)}, r.Slice())
	r.Release()
}

func TestAutomation(t *testing.T) {
	param := func(id uint32, target uint64) event.AutomationIO {
		return event.AutomationIO{
			Event:  event.Event{Kind: event.ParamValue, ParamID: id},
			Target: target,
		}
	}
	c := collect.New()
	first := buffer.WithCapacity[event.AutomationIO](c.Handle(), 4, buffer.ID{Kind: buffer.Automation})
	second := buffer.WithCapacity[event.AutomationIO](c.Handle(), 4, buffer.ID{Kind: buffer.Automation})
	out := buffer.WithCapacity[event.AutomationIO](c.Handle(), 8, buffer.ID{Kind: buffer.Automation})
	w := first.BorrowMut()
	w.Append(param(5, 1))
	w.Release()
	w = second.BorrowMut()
	// same id twice is kept
	w.Append(param(1, 2), param(1, 2))
	w.Release()

	task := sum.Automation{
		Inputs: []buffer.Shared[event.AutomationIO]{first, second},
		Output: out,
	}
	task.Process()
	r := out.Borrow()
	assert.Equal(t, []event.AutomationIO{param(5, 1), param(1, 2), param(1, 2)}, r.Slice())
	r.Release()
}
