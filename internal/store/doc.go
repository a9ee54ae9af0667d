// Package store implements the state container: a Store pairs an initial
// state with a fixed table of named mutations, and each mounted Provider
// of that store owns one live copy of the state.
//
// Consumers below a Provider read it through two hooks:
//
//   - UseStore returns the whole state and the action table, and
//     re-renders the consumer on every state change.
//   - UseStoreProp returns one top-level field and re-renders only when
//     that field is no longer the same value (reference identity).
//
// Dispatch is synchronous. An action runs its mutation with the current
// state and payload; a non-nil Object result is shallowly merged into the
// state, producing a new state reference, while any other result leaves
// the state untouched and notifies nobody.
//
// The action table is built once per Provider instance, so its identity is
// stable across renders and safe to capture.
package store
