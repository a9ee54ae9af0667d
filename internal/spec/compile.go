// Package spec loads store definitions written in CUE.
//
// A definition declares a store's initial state and its mutations:
//
//	store: counter: {
//		engine: "expr"
//		state: {count: 0, label: "idle", user: {name: "", age: 0}}
//		mutations: {
//			increment: expr: "{count: state.count + 1}"
//			setLabel: set: "label"
//			setUser: merge: "user"
//			flip: toggle: "on"
//		}
//	}
//
// Each mutation uses exactly one of expr, set, merge or toggle. An expr
// mutation may override the store's engine with its own engine field.
package spec

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/statebox/internal/eval"
	"github.com/roach88/statebox/internal/value"
)

// MutationKind selects how a declared mutation is built.
type MutationKind string

const (
	KindExpr   MutationKind = "expr"
	KindSet    MutationKind = "set"
	KindMerge  MutationKind = "merge"
	KindToggle MutationKind = "toggle"
)

var mutationKinds = []MutationKind{KindExpr, KindSet, KindMerge, KindToggle}

// StoreDef is a compiled store definition.
type StoreDef struct {
	Name      string
	Engine    string
	State     value.Object
	Mutations []MutationDef
	Pos       token.Pos
}

// MutationDef is one declared mutation. Arg holds the expression source
// for KindExpr and the field name for the other kinds.
type MutationDef struct {
	Name   string
	Kind   MutationKind
	Arg    string
	Engine string
	Pos    token.Pos
}

// Mutation returns the definition named name.
func (d *StoreDef) Mutation(name string) (MutationDef, bool) {
	for _, m := range d.Mutations {
		if m.Name == name {
			return m, true
		}
	}
	return MutationDef{}, false
}

// CompileStore parses a CUE value into a StoreDef.
//
// The value should be the store struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`store: counter: { ... }`)
//	def, err := CompileStore(v.LookupPath(cue.ParsePath("store.counter")))
func CompileStore(v cue.Value) (*StoreDef, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := &StoreDef{
		Engine: eval.DefaultEngine,
		State:  value.Object{},
		Pos:    v.Pos(),
	}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		def.Name = labels[len(labels)-1].String()
	}

	engineVal := v.LookupPath(cue.ParsePath("engine"))
	if engineVal.Exists() {
		engine, err := parseEngine(engineVal)
		if err != nil {
			return nil, err
		}
		def.Engine = engine
	}

	stateVal := v.LookupPath(cue.ParsePath("state"))
	if stateVal.Exists() {
		state, err := parseState(stateVal)
		if err != nil {
			return nil, err
		}
		def.State = state
	}

	mutationsVal := v.LookupPath(cue.ParsePath("mutations"))
	if mutationsVal.Exists() {
		iter, err := mutationsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			m, err := parseMutation(iter.Label(), iter.Value(), def)
			if err != nil {
				return nil, err
			}
			def.Mutations = append(def.Mutations, m)
		}
	}

	return def, nil
}

func parseEngine(v cue.Value) (string, error) {
	engine, err := v.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	if !eval.IsEngine(engine) {
		return "", &CompileError{
			Field:   "engine",
			Message: fmt.Sprintf("unknown engine %q, must be one of %v", engine, eval.Engines()),
			Pos:     v.Pos(),
		}
	}
	return engine, nil
}

// parseState decodes the concrete state struct through its JSON form so
// the value package's integer-only rules apply.
func parseState(v cue.Value) (value.Object, error) {
	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{
			Field:   "state",
			Message: "state must be a struct",
			Pos:     v.Pos(),
		}
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("state must be concrete: %v", err),
			Pos:     v.Pos(),
		}
	}
	data, err := v.MarshalJSON()
	if err != nil {
		return nil, formatCUEError(err)
	}
	parsed, err := value.Parse(data)
	if err != nil {
		return nil, &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("invalid state: %v (floats are forbidden)", err),
			Pos:     v.Pos(),
		}
	}
	return value.AsObject(parsed), nil
}

func parseMutation(name string, v cue.Value, def *StoreDef) (MutationDef, error) {
	m := MutationDef{Name: name, Pos: v.Pos()}

	var found []MutationKind
	for _, kind := range mutationKinds {
		if v.LookupPath(cue.ParsePath(string(kind))).Exists() {
			found = append(found, kind)
		}
	}
	if len(found) != 1 {
		return m, &CompileError{
			Field:   "mutation",
			Message: fmt.Sprintf("mutation %q must declare exactly one of expr, set, merge or toggle", name),
			Pos:     v.Pos(),
		}
	}
	m.Kind = found[0]

	argVal := v.LookupPath(cue.ParsePath(string(m.Kind)))
	arg, err := argVal.String()
	if err != nil {
		return m, formatCUEError(err)
	}
	if arg == "" {
		return m, &CompileError{
			Field:   "mutation",
			Message: fmt.Sprintf("mutation %q: %s must not be empty", name, m.Kind),
			Pos:     argVal.Pos(),
		}
	}
	m.Arg = arg

	engineVal := v.LookupPath(cue.ParsePath("engine"))
	if engineVal.Exists() {
		if m.Kind != KindExpr {
			return m, &CompileError{
				Field:   "mutation",
				Message: fmt.Sprintf("mutation %q: engine only applies to expr mutations", name),
				Pos:     engineVal.Pos(),
			}
		}
		engine, err := parseEngine(engineVal)
		if err != nil {
			return m, err
		}
		m.Engine = engine
	} else if m.Kind == KindExpr {
		m.Engine = def.Engine
	}

	if m.Kind == KindMerge {
		if initial, ok := def.State[arg]; ok && !value.IsObject(initial) {
			return m, &CompileError{
				Field:   "mutation",
				Message: fmt.Sprintf("mutation %q: merge target %q is not an object in state", name, arg),
				Pos:     argVal.Pos(),
			}
		}
	}

	return m, nil
}

// CompileError reports an invalid store definition.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
