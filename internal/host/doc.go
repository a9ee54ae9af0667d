// Package host is a minimal component tree that stores render into.
//
// A Root mounts Components into Nodes. Each Node runs its Setup once, then
// its Render, then mounts its children depth-first. Nodes carry scoped
// context values (Provide/Lookup) and per-render hook slots, and they
// re-render individually when invalidated.
//
// Invalidation outside a batch re-renders the node immediately. Inside
// Batch the invalidations are coalesced and flushed once when the
// outermost batch returns, parents before children.
//
// Thread-safety model:
//   - Mount, Batch, Flush, Invalidate and rendering: one goroutine only
//   - Post: safe from any goroutine; tasks run on the Run goroutine
//   - Run: must be called from exactly one goroutine
package host
