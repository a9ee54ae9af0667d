package store

import (
	"slices"

	"github.com/roach88/statebox/internal/value"
)

// Mutation computes a partial update from the current state and an action
// payload. A non-nil value.Object result is merged into the state; any
// other result (nil, Null, a scalar, an Array) leaves the state unchanged.
//
// Mutations must not modify state in place.
type Mutation func(state value.Object, args ...value.Value) value.Value

// Mutations maps action names to mutations.
type Mutations map[string]Mutation

// Action is one dispatch request.
type Action struct {
	Type    string
	Payload []value.Value
}

// ActionFunc dispatches one action type with the given payload. It returns
// nothing: dispatch is fire-and-forget.
type ActionFunc func(args ...value.Value)

// Actions is the table of action functions handed to consumers. Its keys
// are exactly the store's mutation names. Copies share one table, so Same
// reports whether two Actions came from the same Provider instance.
type Actions struct {
	t *actionTable
}

type actionTable struct {
	store string
	names []string
	funcs map[string]ActionFunc
	call  func(Action) error
}

func newActions(storeName string, names []string, call func(Action) error) Actions {
	t := &actionTable{
		store: storeName,
		names: names,
		funcs: make(map[string]ActionFunc, len(names)),
		call:  call,
	}
	for _, name := range names {
		t.funcs[name] = func(args ...value.Value) {
			_ = call(Action{Type: name, Payload: args})
		}
	}
	return Actions{t: t}
}

// Names returns the action names in sorted order.
func (a Actions) Names() []string {
	if a.t == nil {
		return nil
	}
	return slices.Clone(a.t.names)
}

// Len returns the number of actions.
func (a Actions) Len() int {
	if a.t == nil {
		return 0
	}
	return len(a.t.names)
}

// Has reports whether name is an action.
func (a Actions) Has(name string) bool {
	_, ok := a.Lookup(name)
	return ok
}

// Lookup returns the action function for name.
func (a Actions) Lookup(name string) (ActionFunc, bool) {
	if a.t == nil {
		return nil, false
	}
	fn, ok := a.t.funcs[name]
	return fn, ok
}

// Call dispatches name with args and reports an unknown name as an
// ErrCodeUnknownActionType error.
func (a Actions) Call(name string, args ...value.Value) error {
	if !a.Has(name) {
		storeName := ""
		if a.t != nil {
			storeName = a.t.store
		}
		return unknownAction(storeName, name)
	}
	return a.t.call(Action{Type: name, Payload: args})
}

// Must returns the action function for name. It panics with an
// ErrCodeUnknownActionType *Error when there is none.
func (a Actions) Must(name string) ActionFunc {
	fn, ok := a.Lookup(name)
	if !ok {
		storeName := ""
		if a.t != nil {
			storeName = a.t.store
		}
		panic(unknownAction(storeName, name))
	}
	return fn
}

// Same reports whether a and b are the same action table.
func (a Actions) Same(b Actions) bool {
	return a.t == b.t
}

// Snapshot is the value shared with consumers: the current state and the
// action table of the Provider instance that owns it.
type Snapshot struct {
	State   value.Object
	Actions Actions
}

// Same reports whether both snapshots hold the same state reference and
// the same action table.
func (s Snapshot) Same(other Snapshot) bool {
	return value.SameObject(s.State, other.State) && s.Actions.Same(other.Actions)
}
