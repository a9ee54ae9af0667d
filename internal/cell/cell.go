// Package cell implements a shared value with selector subscriptions.
//
// A Cell holds one value of type T. Observers register a selector over
// that value; when the value is replaced each selector is recomputed and
// only observers whose selection is no longer equal to the last one they
// saw are notified. A consumer of one field therefore skips re-rendering
// when an unrelated field changes.
package cell

import (
	"sync"
)

// Cell holds a value and the observers selecting from it.
// The zero value is not usable; create cells with New.
type Cell[T any] struct {
	mu        sync.Mutex
	value     T
	version   uint64
	nextID    uint64
	observers []*observer[T]
}

// observer recomputes its selection for a new value and returns the
// notification to run, or nil when the selection is unchanged.
type observer[T any] struct {
	id    uint64
	check func(next T) func()
}

// New returns a cell holding initial.
func New[T any](initial T) *Cell[T] {
	return &Cell[T]{value: initial}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Version counts completed Set calls.
func (c *Cell[T]) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Len returns the number of registered observers.
func (c *Cell[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.observers)
}

// Set replaces the value and notifies observers whose selection changed,
// in registration order. Notification runs after the lock is released, so
// callbacks may read the cell or register and release observers. An
// observer released by an earlier callback in the same Set is skipped.
func (c *Cell[T]) Set(next T) {
	c.mu.Lock()
	c.value = next
	c.version++
	observers := make([]*observer[T], len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	for _, o := range observers {
		if !c.registered(o.id) {
			continue
		}
		if notify := o.check(next); notify != nil {
			notify()
		}
	}
}

// Select registers an observer that tracks selector(value). It returns the
// current selection and a release function that unregisters the observer;
// release is idempotent.
//
// On every Set the selector is recomputed; when equal reports the new
// selection differs from the last one observed, the stored selection is
// updated and onChange receives it.
func Select[T, V any](c *Cell[T], selector func(T) V, equal func(a, b V) bool, onChange func(V)) (V, func()) {
	var (
		mu   sync.Mutex
		last V
	)
	check := func(next T) func() {
		selected := selector(next)
		mu.Lock()
		if equal(last, selected) {
			mu.Unlock()
			return nil
		}
		last = selected
		mu.Unlock()
		return func() { onChange(selected) }
	}

	c.mu.Lock()
	last = selector(c.value)
	current := last
	c.nextID++
	id := c.nextID
	c.observers = append(c.observers, &observer[T]{id: id, check: check})
	c.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() { c.remove(id) })
	}
	return current, release
}

func (c *Cell[T]) registered(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range c.observers {
		if o.id == id {
			return true
		}
	}
	return false
}

func (c *Cell[T]) remove(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, o := range c.observers {
		if o.id == id {
			c.observers = append(c.observers[:i], c.observers[i+1:]...)
			return
		}
	}
}
