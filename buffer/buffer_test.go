package buffer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pipelined.dev/host/buffer"
	"pipelined.dev/host/collect"
)

func fill(b buffer.Shared[float32], v ...float32) {
	r := b.BorrowMut()
	copy(r.Slice(), v)
	r.Release()
	b.SetConstant(false)
}

func values(b buffer.Shared[float32]) []float32 {
	r := b.Borrow()
	defer r.Release()
	return append([]float32(nil), r.Slice()...)
}

func TestClear(t *testing.T) {
	tests := []struct {
		frames   int
		expected []float32
	}{
		{
			frames:   0,
			expected: []float32{1, 2, 3, 4},
		},
		{
			frames:   2,
			expected: []float32{0, 0, 3, 4},
		},
		{
			frames:   4,
			expected: []float32{0, 0, 0, 0},
		},
		{
			frames:   10,
			expected: []float32{0, 0, 0, 0},
		},
	}
	c := collect.New()
	for _, test := range tests {
		b := buffer.New[float32](c.Handle(), 4, buffer.ID{})
		fill(b, 1, 2, 3, 4)
		assert.False(t, b.IsConstant())

		b.Clear(test.frames)
		assert.True(t, b.IsConstant())
		assert.Equal(t, test.expected, values(b))
		b.Release()
	}
	c.Collect()
	assert.Equal(t, 0, c.Live())
}

func TestSilentHint(t *testing.T) {
	tests := []struct {
		description string
		values      []float32
		constant    bool
		expected    bool
	}{
		{
			description: "constant silent",
			values:      []float32{0, 0},
			constant:    true,
			expected:    true,
		},
		{
			description: "silent without hint",
			values:      []float32{0, 0},
			constant:    false,
			expected:    false,
		},
		{
			description: "constant non-silent",
			values:      []float32{0.5, 0.5},
			constant:    true,
			expected:    false,
		},
	}
	c := collect.New()
	for _, test := range tests {
		b := buffer.New[float32](c.Handle(), len(test.values), buffer.ID{})
		fill(b, test.values...)
		b.SetConstant(test.constant)
		assert.Equal(t, test.expected, b.HasSilentHint(), test.description)
		if b.HasSilentHint() {
			assert.True(t, b.IsConstant())
			assert.Zero(t, values(b)[0])
		}
		b.Release()
	}
	empty := buffer.WithCapacity[float32](c.Handle(), 4, buffer.ID{})
	empty.SetConstant(true)
	assert.False(t, empty.HasSilentHint())
	empty.Release()
}

func TestBorrowConflict(t *testing.T) {
	c := collect.New()
	b := buffer.New[float32](c.Handle(), 4, buffer.ID{Index: 3, Kind: buffer.Audio32})
	defer b.Release()

	r1 := b.Borrow()
	r2 := b.Borrow()
	assert.PanicsWithValue(t, buffer.BorrowError{ID: b.ID(), Mutable: true}, func() { b.BorrowMut() })
	r1.Release()
	r2.Release()

	w := b.BorrowMut()
	assert.PanicsWithValue(t, buffer.BorrowError{ID: b.ID()}, func() { b.Borrow() })
	assert.Panics(t, func() { b.BorrowMut() })
	w.Release()

	assert.NotPanics(t, func() { b.Clear(4) })
	assert.Equal(t, "fl(3)", b.ID().String())
}

func TestEvents(t *testing.T) {
	c := collect.New()
	b := buffer.WithCapacity[int](c.Handle(), 2, buffer.ID{Kind: buffer.Note})
	w := b.BorrowMut()
	assert.Equal(t, 2, w.Append(1, 2, 3))
	assert.Equal(t, []int{1, 2}, w.Slice())
	w.Release()

	b.Truncate()
	r := b.Borrow()
	assert.Empty(t, r.Slice())
	r.Release()
	b.Release()
	assert.Equal(t, 1, c.Collect())
}

func TestPort(t *testing.T) {
	c := collect.New()
	channels := []buffer.Shared[float32]{
		buffer.New[float32](c.Handle(), 4, buffer.ID{Index: 0}),
		buffer.New[float32](c.Handle(), 4, buffer.ID{Index: 1}),
	}
	out := buffer.NewAudioPortMut(channels, 16)
	in := buffer.NewAudioPort(channels, 16)
	assert.Equal(t, 2, in.Channels())
	assert.Equal(t, uint32(16), out.Latency())

	out.ClearAll(4)
	assert.True(t, in.HasSilentHint())
	assert.True(t, in.IsSilent(4))

	fill(channels[1], 0, 0, 0, 1)
	assert.False(t, out.HasSilentHint())
	// exact check is limited to frames
	assert.True(t, in.IsSilent(3))
	assert.False(t, in.IsSilent(4))

	// zero samples without hint are still silent
	fill(channels[1], 0, 0, 0, 0)
	assert.False(t, in.HasSilentHint())
	assert.True(t, out.IsSilent(4))

	for _, ch := range channels {
		ch.Release()
	}
	assert.Equal(t, 2, c.Collect())
}
