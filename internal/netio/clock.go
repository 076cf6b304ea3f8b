package netio

import "time"

// Clock abstracts "a monotonic-ish millisecond clock" (§6). Tests
// inject a FakeClock to drive RTT/RTO and liveness-timeout logic
// deterministically instead of sleeping in wall-clock time.
type Clock interface {
	NowMillis() int64
}

// systemClock is the production Clock, backed by the monotonic
// reading time.Since gives relative to a fixed reference instant.
type systemClock struct {
	start time.Time
}

// NewSystemClock returns a Clock backed by the system's monotonic clock,
// counting milliseconds from the moment it is called.
func NewSystemClock() Clock {
	return &systemClock{start: time.Now()}
}

func (c *systemClock) NowMillis() int64 {
	return time.Since(c.start).Milliseconds()
}

// FakeClock is a manually-advanced Clock for tests.
type FakeClock struct {
	millis int64
}

// NewFakeClock returns a FakeClock starting at the given millisecond
// value.
func NewFakeClock(startMillis int64) *FakeClock {
	return &FakeClock{millis: startMillis}
}

func (c *FakeClock) NowMillis() int64 {
	return c.millis
}

// Advance moves the clock forward by d and returns the new value.
func (c *FakeClock) Advance(d time.Duration) int64 {
	c.millis += d.Milliseconds()
	return c.millis
}

// Set pins the clock to an absolute millisecond value.
func (c *FakeClock) Set(millis int64) {
	c.millis = millis
}
