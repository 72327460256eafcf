package host

import (
	"context"
	"time"
)

// Run drives engine timers on the calling goroutine until the context is
// done. It must be used when audio thread is driven by a real-time
// device. Next is the instant returned by New or the last OnTimer call.
// Notifications are passed to notify, CrashError is returned if the
// engine crashes.
func (e *Engine) Run(ctx context.Context, next time.Time, notify func(Notification)) error {
	timer := time.NewTimer(next.Sub(e.now()))
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
		var notifications []Notification
		notifications, next = e.OnTimer(e.now())
		for _, n := range notifications {
			if notify != nil {
				notify(n)
			}
			if n.Kind == EngineCrashed {
				return n.Err
			}
		}
		timer.Reset(next.Sub(e.now()))
	}
}
