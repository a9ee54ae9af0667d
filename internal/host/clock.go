package host

import "sync/atomic"

// Clock is a monotonic logical clock. Render events and dispatches are
// stamped from it so traces order the same way on every run.
//
// Clock is safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0. The first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
