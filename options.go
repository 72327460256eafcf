package host

import (
	"time"

	"pipelined.dev/host/log"
	"pipelined.dev/host/plugin"
)

// Option configures the engine.
type Option func(*Engine)

// WithLogger sets the logger of the engine. Silent logger is used by
// default.
func WithLogger(logger log.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithFactories registers plugin factories. Factories are looked up by
// descriptor id.
func WithFactories(factories ...plugin.Factory) Option {
	return func(e *Engine) {
		for _, f := range factories {
			e.factories[f.Descriptor().ID] = f
		}
	}
}

// WithClock replaces the clock used to register timers.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}
