package pluginhost

import (
	"pipelined.dev/host/event"
	"pipelined.dev/host/internal/spsc"
)

// ParamValue is a parameter change passed between goroutines.
type ParamValue struct {
	ID    uint32
	Value float64
}

// ParamQueues carry parameter values from the control goroutine to the
// audio goroutine and modified values back.
type ParamQueues struct {
	toAudio *spsc.Ring[ParamValue]
	toMain  *spsc.Ring[ParamValue]
}

// NewParamQueues returns queues with provided capacity in each
// direction.
func NewParamQueues(capacity int) *ParamQueues {
	return &ParamQueues{
		toAudio: spsc.New[ParamValue](capacity),
		toMain:  spsc.New[ParamValue](capacity),
	}
}

// Set sends parameter value to the audio goroutine. False is returned if
// queue is full.
func (q *ParamQueues) Set(v ParamValue) bool {
	return q.toAudio.Push(v)
}

// DrainModified passes every value modified by the plugin to fn.
func (q *ParamQueues) DrainModified(fn func(ParamValue)) int {
	var n int
	for {
		v, ok := q.toMain.Pop()
		if !ok {
			return n
		}
		fn(v)
		n++
	}
}

// consumeInto moves pending values to the event buffer. Returns true if
// any event was added.
func (q *ParamQueues) consumeInto(b *event.Buffer) bool {
	var consumed bool
	for {
		v, ok := q.toAudio.Pop()
		if !ok {
			return consumed
		}
		b.Push(event.Event{
			Kind:    event.ParamValue,
			ParamID: v.ID,
			Value:   v.Value,
		})
		consumed = true
	}
}

// pushModified sends value changed by the plugin to the control
// goroutine. Value is dropped if queue is full.
func (q *ParamQueues) pushModified(e event.Event) {
	q.toMain.Push(ParamValue{ID: e.ParamID, Value: e.Value})
}
