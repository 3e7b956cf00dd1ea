// Package clock abstracts time so retry delays and cache freshness can be
// driven deterministically in tests.
package clock

import (
	"sync"
	"time"
)

type (
	// Clock provides the current time and cancellable waits.
	Clock interface {
		// Now returns the current time.
		Now() time.Time
		// After delivers the current time once d has elapsed.
		After(d time.Duration) <-chan time.Time
	}

	// Real implements Clock using the system time.
	Real struct{}

	// Fake implements Clock with manually controlled time.
	// After fires immediately and advances the fake time by the requested
	// duration, so retry loops complete without sleeping. Every requested
	// duration is recorded for inspection.
	Fake struct {
		mu      sync.Mutex
		current time.Time
		waits   []time.Duration
		block   bool
	}
)

// Now returns the current system time.
func (Real) Now() time.Time {
	return time.Now()
}

// After returns a channel that receives the time after duration d.
func (Real) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// NewFake creates a Fake initialized to the given time.
// A zero time defaults to a fixed reference for reproducibility.
func NewFake(initial time.Time) *Fake {
	if initial.IsZero() {
		initial = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	return &Fake{current: initial}
}

// Now returns the current fake time.
func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.current
}

// After records d, advances the fake time by d and returns a channel that is
// already ready. When blocking is enabled the channel never fires.
func (c *Fake) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.waits = append(c.waits, d)

	ch := make(chan time.Time, 1)
	if c.block {
		return ch
	}

	c.current = c.current.Add(d)
	ch <- c.current

	return ch
}

// Advance moves the fake time forward by d.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.current.Add(d)
}

// Block makes subsequent After channels never fire, simulating a wait that
// only a cancelled context can interrupt.
func (c *Fake) Block() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.block = true
}

// Waits returns the durations requested through After so far.
func (c *Fake) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]time.Duration(nil), c.waits...)
}
