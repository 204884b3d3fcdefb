// Package clock keeps the simulation's three time bases consistent: the
// control step counter, the source video's frame cadence, and optional
// wall-clock pacing. The clock itself has no timing side effects; pacing is
// a separate advisory Throttle so the kernel stays fully unit-testable.
package clock

import (
	"time"
)

// SimClock is a monotonic step counter with the configured control interval.
// Mutated only by the owning episode.
type SimClock struct {
	step     int
	interval time.Duration
	anchor   time.Time
}

// NewSimClock creates a clock ticking at the given control rate.
func NewSimClock(controlFPS float64) *SimClock {
	return &SimClock{
		interval: time.Duration(float64(time.Second) / controlFPS),
	}
}

// Reset rewinds the step counter and re-anchors the wall clock.
func (c *SimClock) Reset() {
	c.step = 0
	c.anchor = time.Now()
}

// Tick advances the step counter by one and returns the new step number.
func (c *SimClock) Tick() int {
	c.step++
	return c.step
}

// Step returns the current step number (0 immediately after reset).
func (c *SimClock) Step() int {
	return c.step
}

// Interval returns the control interval (1 / control FPS).
func (c *SimClock) Interval() time.Duration {
	return c.interval
}

// Dt returns the control interval in seconds, the Δt fed to the integrator.
func (c *SimClock) Dt() float64 {
	return c.interval.Seconds()
}

// Elapsed returns wall time since the last reset.
func (c *SimClock) Elapsed() time.Duration {
	return time.Since(c.anchor)
}

// Throttle paces a caller-owned loop to a target cadence. Disabled mode is
// a no-op so offline/batch generation runs as fast as possible. The pacing
// is advisory: a late caller is never blocked to "catch up", the deadline
// just moves forward.
type Throttle struct {
	interval time.Duration
	next     time.Time
	disabled bool

	// sleep is swappable for tests.
	sleep func(time.Duration)
}

// NewThrottle creates a throttle for the given cadence. A non-positive FPS
// disables pacing.
func NewThrottle(fps float64) *Throttle {
	t := &Throttle{sleep: time.Sleep}
	if fps <= 0 {
		t.disabled = true
		return t
	}
	t.interval = time.Duration(float64(time.Second) / fps)
	return t
}

// Disabled reports whether the throttle is a no-op.
func (t *Throttle) Disabled() bool {
	return t.disabled
}

// Reset re-anchors the pacing deadline to now.
func (t *Throttle) Reset() {
	t.next = time.Now().Add(t.interval)
}

// Wait blocks until the next tick boundary, then advances the deadline.
// Returns immediately when disabled or when the deadline has already
// passed.
func (t *Throttle) Wait() {
	if t.disabled {
		return
	}
	if t.next.IsZero() {
		t.Reset()
		return
	}
	if d := time.Until(t.next); d > 0 {
		t.sleep(d)
	}
	t.next = t.next.Add(t.interval)
	if time.Until(t.next) < -t.interval {
		// Fell more than a full interval behind; re-anchor instead of
		// bursting to catch up.
		t.next = time.Now().Add(t.interval)
	}
}
