package store

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/statebox/internal/cell"
	"github.com/roach88/statebox/internal/host"
	"github.com/roach88/statebox/internal/value"
)

// instance is the live state owned by one mounted Provider.
type instance struct {
	store *Store
	id    string
	root  *host.Root
	clock *host.Clock
	cell  *cell.Cell[Snapshot]

	mu        sync.Mutex
	state     value.Object
	actions   Actions
	published int64
	released  bool
}

// Provider returns a component that owns a fresh copy of the store's state
// for its subtree. Each mount starts from the initial state; unmounting
// discards it, after which captured actions do nothing.
func (s *Store) Provider(children ...host.Component) host.Component {
	return host.Component{
		Name: "Provider(" + s.name + ")",
		Setup: func(n *host.Node) {
			inst := s.newInstance(n.Root())
			n.Provide(s.key, inst)
			n.OnUnmount(inst.release)
		},
		Children: children,
	}
}

func (s *Store) newInstance(root *host.Root) *instance {
	inst := &instance{
		store: s,
		id:    s.ids.Generate(),
		root:  root,
		clock: host.NewClock(),
		state: s.initial,
	}
	inst.actions = newActions(s.name, s.names, inst.dispatch)
	inst.cell = cell.New(Snapshot{State: inst.state, Actions: inst.actions})

	s.logger.Debug("provider mounted", "provider", inst.id)
	return inst
}

func (inst *instance) release() {
	inst.mu.Lock()
	inst.released = true
	inst.mu.Unlock()
	inst.store.logger.Debug("provider unmounted", "provider", inst.id)
}

// dispatch runs the reducer synchronously and publishes a changed state to
// subscribers inside one host batch.
func (inst *instance) dispatch(a Action) error {
	s := inst.store

	if inst.isReleased() {
		s.logger.Debug("dispatch after unmount ignored", "provider", inst.id, "action", a.Type)
		return nil
	}

	ctx, span := s.tracer.Start(context.Background(), "statebox.dispatch",
		trace.WithAttributes(
			attribute.String("statebox.store", s.name),
			attribute.String("statebox.provider", inst.id),
			attribute.String("statebox.action", a.Type),
		))
	defer span.End()

	c, live, err := inst.commit(a)
	if !live {
		s.logger.Debug("dispatch after unmount ignored", "provider", inst.id, "action", a.Type)
		return nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Debug("dispatch rejected", "provider", inst.id, "action", a.Type, "error", err)
		return err
	}

	span.SetAttributes(
		attribute.Int64("statebox.seq", c.seq),
		attribute.Bool("statebox.noop", c.noop),
	)
	s.logger.Debug("dispatch", "provider", inst.id, "seq", c.seq, "action", a.Type, "noop", c.noop)

	var renderErr error
	if !c.noop {
		renderErr = inst.root.Batch(func() {
			inst.publish(c.seq)
		})
		if renderErr != nil {
			span.RecordError(renderErr)
			span.SetStatus(codes.Error, renderErr.Error())
		}
	}

	if s.recorder != nil {
		inst.record(ctx, c.seq, a, c.prev, c.next, c.noop)
	}
	return renderErr
}

// commitResult is one reducer step applied to the instance state.
type commitResult struct {
	prev, next value.Object
	seq        int64
	noop       bool
}

// commit applies a under mu. The lock is released even when a mutation
// panics. live is false once the Provider is unmounted.
func (inst *instance) commit(a Action) (c commitResult, live bool, err error) {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	if inst.released {
		return commitResult{}, false, nil
	}
	c.prev = inst.state
	c.next, err = inst.store.Reduce(c.prev, a)
	if err != nil {
		return c, true, err
	}
	c.seq = inst.clock.Next()
	c.noop = value.SameObject(c.prev, c.next)
	if !c.noop {
		inst.state = c.next
	}
	return c, true, nil
}

// publish pushes the committed state to the cell unless a later commit has
// already been published. Must run inside a host batch so subscribers only
// mark their nodes dirty.
func (inst *instance) publish(seq int64) {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	if seq <= inst.published {
		return
	}
	inst.published = seq
	inst.cell.Set(Snapshot{State: inst.state, Actions: inst.actions})
}

func (inst *instance) isReleased() bool {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.released
}

func (inst *instance) record(ctx context.Context, seq int64, a Action, prev, next value.Object, noop bool) {
	s := inst.store
	rec := DispatchRecord{
		Store:    s.name,
		Provider: inst.id,
		Seq:      seq,
		Action:   a.Type,
		Payload:  a.Payload,
		Noop:     noop,
	}
	if !noop {
		rec.Changed = value.ChangedKeys(prev, next)
	}
	fp, err := value.Fingerprint(next)
	if err != nil {
		s.logger.Warn("fingerprint failed", "provider", inst.id, "error", err)
	}
	rec.Fingerprint = fp

	if err := s.recorder.RecordDispatch(ctx, rec); err != nil {
		s.logger.Warn("record dispatch failed", "provider", inst.id, "seq", seq, "error", err)
	}
}

// lookup returns the nearest Provider instance of s above n, or nil.
func (s *Store) lookup(n *host.Node) *instance {
	if n == nil {
		return nil
	}
	v, ok := n.Lookup(s.key)
	if !ok {
		return nil
	}
	return v.(*instance)
}

// Dispatch sends a to the nearest Provider of s enclosing n. Unknown action
// types are reported as ErrCodeUnknownActionType errors; with no Provider a
// known action does nothing. A non-nil error may also carry render
// failures of the consumers that re-rendered.
func (s *Store) Dispatch(n *host.Node, a Action) error {
	inst := s.lookup(n)
	if inst == nil {
		return s.noop(a)
	}
	return inst.dispatch(a)
}

// Snapshot returns the state and actions visible from n: those of the
// nearest Provider, or Defaults when there is none.
func (s *Store) Snapshot(n *host.Node) Snapshot {
	inst := s.lookup(n)
	if inst == nil {
		return s.defaults
	}
	return inst.cell.Get()
}

// ProviderID returns the instance ID of the nearest Provider enclosing n.
func (s *Store) ProviderID(n *host.Node) (string, bool) {
	inst := s.lookup(n)
	if inst == nil {
		return "", false
	}
	return inst.id, true
}
