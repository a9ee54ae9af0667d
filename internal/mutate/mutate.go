// Package mutate provides ready-made mutations for common field updates.
//
// The helpers only build store.Mutation values or plain state values; the
// reducer and Provider do not depend on them.
package mutate

import (
	"github.com/roach88/statebox/internal/store"
	"github.com/roach88/statebox/internal/value"
)

// Set returns a mutation that replaces the top-level field key with the
// first payload argument, or Null when the payload is empty.
//
//	Set("count")({count: 0, other: 1}, 5) == {count: 5, other: 1}
func Set(key string) store.Mutation {
	return func(state value.Object, args ...value.Value) value.Value {
		var v value.Value = value.Null{}
		if len(args) > 0 && args[0] != nil {
			v = args[0]
		}
		return state.With(key, v)
	}
}

// MergeState returns prev with key replaced by the merge of initial[key],
// prev[key] and partial, applied in that order so later sources win. Sub-
// fields missing from both the current value and the partial therefore
// fall back to their initial values. Operands that are not Objects count
// as empty.
func MergeState(key string, initial, prev, partial value.Object) value.Object {
	merged := value.Object{}
	merged = merged.Overlay(value.AsObject(initial[key]))
	merged = merged.Overlay(value.AsObject(prev[key]))
	merged = merged.Overlay(partial)
	return prev.With(key, merged)
}

// Merge returns a mutation that merges the first payload argument into the
// sub-object at key, using initial for defaults (see MergeState). A
// missing or non-object payload merges nothing but still fills defaults.
func Merge(key string, initial value.Object) store.Mutation {
	return func(state value.Object, args ...value.Value) value.Value {
		var partial value.Object
		if len(args) > 0 {
			partial = value.AsObject(args[0])
		}
		return MergeState(key, initial, state, partial)
	}
}

// Toggle returns a mutation that flips the boolean field key. A field that
// is absent or not a Bool is treated as false, so the first toggle sets it
// to true.
func Toggle(key string) store.Mutation {
	return func(state value.Object, _ ...value.Value) value.Value {
		cur, _ := state[key].(value.Bool)
		return value.Object{key: !cur}
	}
}
