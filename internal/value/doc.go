// Package value provides the structured value model that store state is
// built from.
//
// State is an Object (a map of named fields) whose fields are Values:
// Null, String, Int, Bool, Array or Object. Values are treated as
// immutable once published; every update builds a new top-level Object and
// reuses the untouched fields, so change detection can rely on identity
// (Same) instead of deep comparison.
//
// Key design constraints:
//   - NO float types. Integral floats coming from decoders or expression
//     engines are narrowed to Int; anything else is rejected, which keeps
//     fingerprints and golden traces deterministic.
//   - Same compares Objects and Arrays by the identity of their backing
//     storage and scalars by value.
//   - MarshalCanonical produces RFC 8785 canonical JSON (UTF-16 key order,
//     NFC strings, no HTML escaping). It is the only encoding used for
//     fingerprints, journals and golden files.
//
// This package imports nothing internal; every other package builds on it.
package value
