package netio

import (
	"sync"
	"time"
)

// FakeScheduler is a manually-driven Scheduler for tests: AfterFunc
// never starts a real timer. Instead the test calls Fire to invoke
// the most recently scheduled callback for a given Timer, simulating
// the one-shot timer firing after its delay has elapsed.
type FakeScheduler struct {
	mu sync.Mutex
}

// NewFakeScheduler returns an empty FakeScheduler.
func NewFakeScheduler() *FakeScheduler {
	return &FakeScheduler{}
}

func (s *FakeScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return &fakeTimer{delay: d, fn: fn}
}

// fakeTimer records its last-armed delay/callback; Reset rearms it in
// place (exactly what the peer engine does every time it recomputes
// the next wake time), and Stop marks it dead so a late Fire is a
// no-op, mirroring time.Timer.Stop's semantics.
type fakeTimer struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasLive := !t.stopped
	t.stopped = true
	return wasLive
}

func (t *fakeTimer) Reset(d time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasLive := !t.stopped
	t.stopped = false
	t.delay = d
	return wasLive
}

// Delay returns the timer's currently armed delay, for test
// assertions about the engine's wake-time computation (§4.3.4).
func (t *fakeTimer) Delay() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.delay
}

// Fire invokes the timer's callback if it hasn't been stopped,
// regardless of the armed delay — the test drives time explicitly via
// FakeClock, so Fire just simulates "the delay has now elapsed".
func (t *fakeTimer) Fire() {
	t.mu.Lock()
	stopped := t.stopped
	fn := t.fn
	t.mu.Unlock()
	if !stopped && fn != nil {
		fn()
	}
}

// AsFakeTimer type-asserts a Timer back to *fakeTimer for test
// inspection (Delay/Fire). Panics if t wasn't created by a
// FakeScheduler — a programmer error in the test, not a runtime case.
func AsFakeTimer(t Timer) *fakeTimer {
	return t.(*fakeTimer)
}
