package netio

import "time"

// Timer is a handle to a scheduled one-shot callback, mirroring
// time.Timer's Stop/Reset contract. §5 requires that "destroying a
// peer cancels the handle synchronously so no stale callback can fire
// after free" — callers must hold whatever lock guards the peer while
// calling Stop, the same discipline time.Timer itself requires.
type Timer interface {
	Stop() bool
	Reset(d time.Duration) bool
}

// Scheduler is the one-shot timer source described in §6 ("an
// event-loop providing... one-shot timer sources"). The peer engine
// asks it for exactly one live timer per peer, replacing the prior
// registration whenever it recomputes the next wake time (§4.3.4).
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// realScheduler backs Scheduler with the Go runtime's own timer wheel.
type realScheduler struct{}

// NewRealScheduler returns the production Scheduler.
func NewRealScheduler() Scheduler {
	return realScheduler{}
}

func (realScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
