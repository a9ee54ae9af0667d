package store

import (
	"github.com/roach88/statebox/internal/cell"
	"github.com/roach88/statebox/internal/host"
	"github.com/roach88/statebox/internal/value"
)

// subscription is the hook slot a consumer keeps across renders.
type subscription struct {
	inst    *instance
	key     string
	release func()
}

func (sub *subscription) drop() {
	if sub.release != nil {
		sub.release()
		sub.release = nil
	}
	sub.inst = nil
}

func (s *Store) hookSlot(r *host.Render) *subscription {
	return r.Hook(func() any {
		sub := &subscription{}
		r.Node().OnUnmount(sub.drop)
		return sub
	}).(*subscription)
}

// UseStore returns the whole state and the action table of the nearest
// Provider. The consumer re-renders whenever the state reference changes.
// Outside a Provider it returns the initial state and actions that do
// nothing.
func (s *Store) UseStore(r *host.Render) (value.Object, Actions) {
	sub := s.hookSlot(r)
	inst := s.lookup(r.Node())
	if inst == nil {
		sub.drop()
		return s.defaults.State, s.defaults.Actions
	}

	if sub.inst != inst {
		sub.drop()
		node := r.Node()
		_, sub.release = cell.Select(inst.cell,
			func(snap Snapshot) Snapshot { return snap },
			Snapshot.Same,
			func(Snapshot) { node.Invalidate() },
		)
		sub.inst = inst
	}

	snap := inst.cell.Get()
	return snap.State, snap.Actions
}

// UseStoreProp returns state[key] and the action table of the nearest
// Provider. The consumer re-renders only when state[key] is no longer the
// same value; changes to other fields are ignored. A different key on a
// later render replaces the subscription.
//
// Outside a Provider it returns the initial value of key (nil when the
// initial state has no such field) and actions that do nothing.
func (s *Store) UseStoreProp(r *host.Render, key string) (value.Value, Actions) {
	sub := s.hookSlot(r)
	inst := s.lookup(r.Node())
	if inst == nil {
		sub.drop()
		return s.defaults.State[key], s.defaults.Actions
	}

	if sub.inst != inst || sub.key != key {
		sub.drop()
		node := r.Node()
		_, sub.release = cell.Select(inst.cell,
			func(snap Snapshot) value.Value { return snap.State[key] },
			value.Same,
			func(value.Value) { node.Invalidate() },
		)
		sub.inst = inst
		sub.key = key
	}

	snap := inst.cell.Get()
	return snap.State[key], snap.Actions
}
