package syncsvc

import (
	"log/slog"
	"time"
)

// IdleGuard keeps the host device from idling or sleeping while a sync is
// in flight and requests extended execution time from the OS scheduler.
// OS-specific inhibitors implement this; the default only logs.
type IdleGuard interface {
	// Acquire takes the protection and returns its release func. Releasing
	// twice is harmless.
	Acquire(reason string) (release func(), err error)
}

// LogIdleGuard is the fallback guard for platforms without an inhibitor
// wired in. It records acquisition and release but prevents nothing.
type LogIdleGuard struct{}

func (LogIdleGuard) Acquire(reason string) (func(), error) {
	start := time.Now()
	slog.Info("idle guard acquired", "reason", reason)
	released := false
	return func() {
		if released {
			return
		}
		released = true
		slog.Info("idle guard released", "reason", reason, "held", time.Since(start).Round(time.Millisecond))
	}, nil
}
