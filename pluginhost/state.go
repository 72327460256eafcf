package pluginhost

import "sync/atomic"

// ActiveState coordinates activation between the control and the audio
// goroutines.
type ActiveState int32

// Active states.
const (
	// Inactive plugin is not processed yet.
	Inactive ActiveState = iota
	// Active plugin has started processing.
	Active
	// WaitingToDrop is set by the control goroutine to request the audio
	// goroutine to drop the processor.
	WaitingToDrop
	// DroppedAndReadyToDeactivate is set by the audio goroutine once the
	// processor is dropped.
	DroppedAndReadyToDeactivate
)

func (s ActiveState) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Active:
		return "active"
	case WaitingToDrop:
		return "waiting to drop"
	case DroppedAndReadyToDeactivate:
		return "dropped and ready to deactivate"
	}
	return "unknown"
}

// SharedState is shared between the control and the audio goroutines.
// It never blocks.
type SharedState struct {
	active           atomic.Int32
	bypassed         atomic.Bool
	processRequested atomic.Bool
	errored          atomic.Bool
}

// ActiveState returns current active state.
func (s *SharedState) ActiveState() ActiveState {
	return ActiveState(s.active.Load())
}

// SetActiveState stores the state unconditionally.
func (s *SharedState) SetActiveState(state ActiveState) {
	s.active.Store(int32(state))
}

// RequestDrop asks the audio goroutine to drop the processor. False is
// returned if drop was already requested or handled.
func (s *SharedState) RequestDrop() bool {
	for {
		current := s.active.Load()
		if current != int32(Inactive) && current != int32(Active) {
			return false
		}
		if s.active.CompareAndSwap(current, int32(WaitingToDrop)) {
			return true
		}
	}
}

// markActive is called by the audio goroutine after processing has
// started. Drop request is never overwritten.
func (s *SharedState) markActive() {
	s.active.CompareAndSwap(int32(Inactive), int32(Active))
}

// Bypassed returns the requested bypass state.
func (s *SharedState) Bypassed() bool {
	return s.bypassed.Load()
}

// SetBypassed requests bypass state. The change is declicked by the
// processor.
func (s *SharedState) SetBypassed(bypassed bool) {
	s.bypassed.Store(bypassed)
}

// RequestProcess wakes up the processor in the next cycle.
func (s *SharedState) RequestProcess() {
	s.processRequested.Store(true)
}

func (s *SharedState) takeProcessRequest() bool {
	return s.processRequested.Swap(false)
}

// TakeErrored returns true once after the processor has failed.
func (s *SharedState) TakeErrored() bool {
	return s.errored.Swap(false)
}
