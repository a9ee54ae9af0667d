package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/statebox/internal/host"
	"github.com/roach88/statebox/internal/spec"
	"github.com/roach88/statebox/internal/store"
	"github.com/roach88/statebox/internal/testutil"
	"github.com/roach88/statebox/internal/value"
)

// Harness executes one scenario. It is the store.Recorder of every store
// it builds, which is how dispatch outcomes reach the trace.
type Harness struct {
	scenario  *Scenario
	stores    map[string]*store.Store
	root      *host.Root
	clock     *testutil.DeterministicClock
	logger    *slog.Logger
	consumers map[string]*consumerState
	result    *Result

	// pending indexes the dispatch event awaiting its record, or -1.
	pending int
}

type consumerState struct {
	def     Consumer
	store   *store.Store
	value   value.Value
	actions store.Actions
	seen    bool
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Load and build the store definitions the tree uses
//  2. Mount the tree
//  3. Execute the steps in order
//  4. Evaluate the assertions
//
// Step failures and assertion failures are recorded in the result. An
// error is returned only when the scenario cannot run at all.
func Run(scenario *Scenario) (*Result, error) {
	h := &Harness{
		scenario:  scenario,
		stores:    make(map[string]*store.Store),
		clock:     testutil.NewDeterministicClock(),
		logger:    testutil.DiscardLogger(),
		consumers: make(map[string]*consumerState),
		result:    NewResult(),
		pending:   -1,
	}

	if err := h.buildStores(); err != nil {
		return nil, err
	}

	h.root = host.NewRoot(host.WithLogger(h.logger))
	h.root.OnRender(h.onRender)

	h.mount()
	for i, step := range scenario.Steps {
		h.execute(i, step)
	}

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func (h *Harness) loadDefinitions() (*spec.LoadResult, error) {
	var (
		defs *spec.LoadResult
		errs []error
	)
	if h.scenario.Source != "" {
		defs, errs = spec.LoadSource(h.scenario.Name+".cue", h.scenario.Source, spec.LoadModeCollectAll)
	} else {
		defs, errs = spec.LoadDir(h.scenario.Specs, spec.LoadModeCollectAll)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("load store definitions: %w", errors.Join(errs...))
	}
	return defs, nil
}

func (h *Harness) buildStores() error {
	defs, err := h.loadDefinitions()
	if err != nil {
		return err
	}

	ids := testutil.NewSequentialIDs("provider")
	need := append([]string(nil), h.scenario.Tree.Providers...)
	for _, c := range h.scenario.Tree.Consumers {
		need = append(need, c.Store)
	}

	for _, name := range need {
		if _, ok := h.stores[name]; ok {
			continue
		}
		def := defs.Store(name)
		if def == nil {
			return fmt.Errorf("store %q is not defined", name)
		}
		s, err := def.Build(spec.WithStoreOptions(
			store.WithLogger(h.logger),
			store.WithRecorder(h),
			store.WithIDGenerator(ids),
		))
		if err != nil {
			return fmt.Errorf("build store %q: %w", name, err)
		}
		h.stores[name] = s
	}

	for _, c := range h.scenario.Tree.Consumers {
		h.consumers[c.Name] = &consumerState{def: c, store: h.stores[c.Store]}
		h.result.SameActions[c.Name] = true
		h.result.Renders[c.Name] = 0
	}
	return nil
}

// tree builds the components to mount: the composed providers around the
// inside consumers, plus a fragment of the outside ones.
func (h *Harness) tree() []host.Component {
	var inside, outside []host.Component
	for _, c := range h.scenario.Tree.Consumers {
		comp := h.consumerComponent(h.consumers[c.Name])
		if c.Outside {
			outside = append(outside, comp)
		} else {
			inside = append(inside, comp)
		}
	}

	providers := make([]*store.Store, len(h.scenario.Tree.Providers))
	for i, name := range h.scenario.Tree.Providers {
		providers[i] = h.stores[name]
	}

	comps := []host.Component{store.Compose(providers...)(inside...)}
	if len(outside) > 0 {
		comps = append(comps, host.Fragment(outside...))
	}
	return comps
}

func (h *Harness) consumerComponent(cs *consumerState) host.Component {
	return host.Component{
		Name: cs.def.Name,
		Render: func(r *host.Render) {
			var (
				v       value.Value
				actions store.Actions
			)
			if cs.def.Prop != "" {
				v, actions = cs.store.UseStoreProp(r, cs.def.Prop)
			} else {
				v, actions = cs.store.UseStore(r)
			}
			if v == nil {
				v = value.Null{}
			}

			if cs.seen && !cs.actions.Same(actions) {
				h.result.SameActions[cs.def.Name] = false
			}
			cs.value = v
			cs.actions = actions
			cs.seen = true
			r.Emit(v)
		},
	}
}

func (h *Harness) mount() {
	h.addEvent(TraceEvent{Type: EventMount})
	for _, c := range h.scenario.Tree.Consumers {
		h.consumers[c.Name].seen = false
	}
	for _, comp := range h.tree() {
		if _, err := h.root.Mount(comp); err != nil {
			h.result.AddError(fmt.Sprintf("mount %s: %v", comp.Name, err))
		}
	}
}

func (h *Harness) execute(i int, step Step) {
	switch {
	case step.Dispatch != nil:
		h.dispatch(i, step.Dispatch)
	case step.Unmount:
		h.root.Unmount()
		h.addEvent(TraceEvent{Type: EventUnmount})
	case step.Remount:
		h.root.Unmount()
		h.mount()
	}
}

func (h *Harness) dispatch(i int, d *DispatchStep) {
	cs := h.consumers[d.Consumer]

	args := make(value.Array, len(d.Args))
	for j, raw := range d.Args {
		v, err := value.FromAny(raw)
		if err != nil {
			h.result.AddError(fmt.Sprintf("steps[%d]: args[%d]: %v", i, j, err))
			return
		}
		args[j] = v
	}

	// Stays a noop unless the store records a change.
	h.pending = h.addEvent(TraceEvent{
		Type:     EventDispatch,
		Consumer: d.Consumer,
		Store:    cs.def.Store,
		Action:   d.Action,
		Args:     args,
		Noop:     true,
	})
	err := cs.actions.Call(d.Action, args...)
	idx := h.pending
	h.pending = -1

	var se *store.Error
	if errors.As(err, &se) {
		h.result.Trace[idx].Error = string(se.Code)
	}

	switch {
	case d.Error == "" && err != nil:
		h.result.AddError(fmt.Sprintf("steps[%d]: dispatch %s: %v", i, d.Action, err))
	case d.Error != "" && err == nil:
		h.result.AddError(fmt.Sprintf("steps[%d]: dispatch %s: expected error %s, got none", i, d.Action, d.Error))
	case d.Error != "" && (se == nil || string(se.Code) != d.Error):
		h.result.AddError(fmt.Sprintf("steps[%d]: dispatch %s: expected error %s, got %v", i, d.Action, d.Error, err))
	}
}

// RecordDispatch implements store.Recorder.
func (h *Harness) RecordDispatch(_ context.Context, rec store.DispatchRecord) error {
	if h.pending < 0 {
		return fmt.Errorf("unexpected dispatch %s on store %s", rec.Action, rec.Store)
	}
	ev := &h.result.Trace[h.pending]
	ev.Noop = rec.Noop
	ev.Changed = rec.Changed
	return nil
}

func (h *Harness) onRender(ev host.RenderEvent) {
	cs, ok := h.consumers[ev.Node.Name()]
	if !ok {
		return
	}
	h.result.Renders[cs.def.Name]++
	h.result.Values[cs.def.Name] = cs.value
	h.addEvent(TraceEvent{
		Type:     EventRender,
		Consumer: cs.def.Name,
		Renders:  h.result.Renders[cs.def.Name],
		Value:    cs.value,
	})
}

// addEvent stamps ev with the next sequence number and returns its index.
func (h *Harness) addEvent(ev TraceEvent) int {
	ev.Seq = h.clock.Next()
	h.result.Trace = append(h.result.Trace, ev)
	return len(h.result.Trace) - 1
}
