// Package testutil holds deterministic helpers shared by tests and the
// scenario harness.
package testutil

import "sync"

// DeterministicClock stamps harness trace events. Unlike host.Clock it can
// be reset, so a scenario run twice yields identical stamps. Safe for
// concurrent use.
type DeterministicClock struct {
	mu   sync.Mutex
	last int64
}

// NewDeterministicClock returns a clock whose first stamp is 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next advances the clock and returns the new stamp.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last++
	return c.last
}

// Current returns the last stamp handed out, or 0.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Reset rewinds the clock so the next stamp is 1 again.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = 0
}
