package host

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAlreadyActive is returned on activation of active engine.
	ErrAlreadyActive = errors.New("engine is already active")
	// ErrNotActive is returned when operation requires active engine.
	ErrNotActive = errors.New("engine is not active")
	// ErrUnknownFactory is returned when plugin factory is not registered.
	ErrUnknownFactory = errors.New("unknown plugin factory")
	// ErrUnknownPlugin is returned when plugin instance is not in the
	// graph.
	ErrUnknownPlugin = errors.New("unknown plugin")
	// ErrUnknownEdge is returned when disconnected edge is not in the
	// graph.
	ErrUnknownEdge = errors.New("unknown edge")
	// ErrPluginRemoving is returned when plugin is waiting to be dropped.
	ErrPluginRemoving = errors.New("plugin is being removed")
)

// CrashError is reported when the engine has crashed and was deactivated.
// Cause is either a schedule compilation error or a value recovered from
// a plugin panic on the audio goroutine.
type CrashError struct {
	Cause error
}

func (e *CrashError) Error() string {
	return fmt.Sprintf("engine crashed: %v", e.Cause)
}

// Unwrap returns the cause of crash.
func (e *CrashError) Unwrap() error {
	return e.Cause
}

// execErrors wraps errors that might occure when multiple graph
// modifications are failing.
type execErrors []error

func (e execErrors) Error() string {
	s := []string{}
	for _, se := range e {
		s = append(s, se.Error())
	}
	return strings.Join(s, ",")
}

// Is checks if any of errors match provided sentinel error.
func (e execErrors) Is(err error) bool {
	for _, se := range e {
		if errors.Is(se, err) {
			return true
		}
	}
	return false
}

// ret returns untyped nil if error is list is empty.
func (e execErrors) ret() error {
	if len(e) > 0 {
		return e
	}
	return nil
}
