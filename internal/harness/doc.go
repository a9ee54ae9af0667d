// Package harness runs YAML scenarios against live stores.
//
// A scenario names a set of store definitions, a component tree of
// providers and consumers, a sequence of steps and the assertions to check
// afterwards:
//
//	name: selective_render
//	description: Only consumers whose prop changed re-render
//	specs: ../specs
//	tree:
//	  providers: [counter]
//	  consumers:
//	    - {name: countView, store: counter, prop: count}
//	    - {name: labelView, store: counter, prop: label}
//	steps:
//	  - dispatch: {consumer: countView, action: increment}
//	assertions:
//	  - {type: render_count, consumer: labelView, count: 1}
//
// Providers are composed in the listed order, so the last one is the
// outermost. Consumers render through UseStore, or UseStoreProp when prop
// is set, and dispatch through the actions they last rendered with.
//
// # Determinism
//
// Every run uses:
//   - Fresh stores built from the definitions
//   - A resettable logical clock for trace sequence numbers
//     (testutil.DeterministicClock)
//   - Sequential provider IDs (testutil.SequentialIDs)
//   - Discarded logs
//
// The same scenario therefore produces a byte-identical canonical trace,
// which RunWithGolden compares against testdata/golden/<name>.golden.
//
// # Assertions
//
//   - render_count: a consumer rendered exactly count times
//   - value: a consumer's last rendered value equals expect
//   - trace_count: an action was dispatched exactly count times
//   - trace_order: actions were first dispatched in the given order
//   - same_ref: a consumer saw one action table across every render of a
//     mount
package harness
