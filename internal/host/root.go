package host

import (
	"context"
	"errors"
	"log/slog"
	"slices"
)

// RenderEvent describes one completed render.
type RenderEvent struct {
	Seq     int64
	Node    *Node
	Renders int
}

// Root owns a tree of mounted nodes.
type Root struct {
	logger *slog.Logger
	clock  *Clock
	queue  *taskQueue

	top       []*Node
	nextOrder int64

	batchDepth int
	dirty      map[*Node]struct{}
	flushing   bool

	listeners []func(RenderEvent)
}

// Option configures a Root.
type Option func(*Root)

// WithLogger sets the logger used for render diagnostics.
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Root) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock sets the clock that stamps render events.
func WithClock(c *Clock) Option {
	return func(r *Root) {
		if c != nil {
			r.clock = c
		}
	}
}

// NewRoot creates an empty root.
func NewRoot(opts ...Option) *Root {
	r := &Root{
		logger: slog.Default(),
		clock:  NewClock(),
		queue:  newTaskQueue(),
		dirty:  make(map[*Node]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Mount mounts c as a new top-level node. A panic in any Setup or Render
// of the subtree is returned as a *RenderError; the nodes that did mount
// stay mounted.
func (r *Root) Mount(c Component) (*Node, error) {
	n, err := r.mount(nil, c)
	if n != nil {
		r.top = append(r.top, n)
	}
	return n, err
}

// Nodes returns the mounted top-level nodes.
func (r *Root) Nodes() []*Node {
	out := make([]*Node, len(r.top))
	copy(out, r.top)
	return out
}

// Find searches every top-level node for name.
func (r *Root) Find(name string) *Node {
	for _, n := range r.top {
		if found := n.Find(name); found != nil {
			return found
		}
	}
	return nil
}

// Unmount unmounts every top-level node in reverse mount order.
func (r *Root) Unmount() {
	for i := len(r.top) - 1; i >= 0; i-- {
		r.top[i].Unmount()
	}
}

// OnRender registers a listener called after every render.
func (r *Root) OnRender(fn func(RenderEvent)) {
	r.listeners = append(r.listeners, fn)
}

// Batch runs fn with invalidations deferred. When the outermost batch
// returns, every invalidated node renders once. Render errors from the
// flush are joined into the returned error.
func (r *Root) Batch(fn func()) error {
	r.batchDepth++
	func() {
		defer func() { r.batchDepth-- }()
		fn()
	}()
	if r.batchDepth > 0 {
		return nil
	}
	return r.Flush()
}

// Flush renders every pending invalidated node, parents first. Renders
// triggered while flushing are picked up by the same flush.
func (r *Root) Flush() error {
	if r.flushing {
		return nil
	}
	r.flushing = true
	defer func() { r.flushing = false }()

	var errs []error
	for len(r.dirty) > 0 {
		pending := make([]*Node, 0, len(r.dirty))
		for n := range r.dirty {
			pending = append(pending, n)
		}
		clear(r.dirty)

		slices.SortFunc(pending, func(a, b *Node) int {
			if a.depth != b.depth {
				return a.depth - b.depth
			}
			switch {
			case a.order < b.order:
				return -1
			case a.order > b.order:
				return 1
			}
			return 0
		})

		for _, n := range pending {
			if !n.mounted {
				continue
			}
			if err := r.render(n); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Post submits a task to run on the Run goroutine. Safe from any goroutine.
// Returns false once the root is stopped.
func (r *Root) Post(task func()) bool {
	return r.queue.Enqueue(task)
}

// Run executes posted tasks in FIFO order until ctx is cancelled or Stop
// is called. Each task runs inside a Batch.
func (r *Root) Run(ctx context.Context) error {
	r.logger.Debug("host loop starting")

	for {
		task, ok := r.queue.TryDequeue()
		if ok {
			if err := r.Batch(task); err != nil {
				r.logger.Error("task render failed", "error", err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			r.logger.Debug("host loop stopping: context cancelled")
			r.queue.Close()
			return ctx.Err()

		case <-r.queue.Wait():
			if r.queue.Len() == 0 {
				r.logger.Debug("host loop stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the task queue; Run returns once queued tasks are drained.
func (r *Root) Stop() {
	r.queue.Close()
}

func (r *Root) mount(parent *Node, c Component) (*Node, error) {
	r.nextOrder++
	n := &Node{
		root:    r,
		parent:  parent,
		comp:    c,
		order:   r.nextOrder,
		mounted: true,
	}
	if parent != nil {
		n.depth = parent.depth + 1
	}

	var errs []error
	if c.Setup != nil {
		if err := r.guard(n, func() { c.Setup(n) }); err != nil {
			return n, err
		}
	}
	if err := r.render(n); err != nil {
		errs = append(errs, err)
	}
	for _, cc := range c.Children {
		child, err := r.mount(n, cc)
		if err != nil {
			errs = append(errs, err)
		}
		if child != nil {
			n.children = append(n.children, child)
		}
	}
	return n, errors.Join(errs...)
}

func (r *Root) render(n *Node) error {
	if n.comp.Render == nil {
		return nil
	}
	err := r.guard(n, func() {
		n.comp.Render(&Render{node: n})
	})
	if err != nil {
		return err
	}
	n.renders++

	ev := RenderEvent{Seq: r.clock.Next(), Node: n, Renders: n.renders}
	r.logger.Debug("render", "node", n.Path(), "seq", ev.Seq, "renders", ev.Renders)
	for _, fn := range r.listeners {
		fn(ev)
	}
	return nil
}

func (r *Root) guard(n *Node, fn func()) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &RenderError{Path: n.Path(), Cause: rec}
			r.logger.Error("render panicked", "node", n.Path(), "panic", rec)
		}
	}()
	fn()
	return nil
}

func (r *Root) invalidate(n *Node) {
	r.dirty[n] = struct{}{}
	if r.batchDepth == 0 && !r.flushing {
		if err := r.Flush(); err != nil {
			r.logger.Error("render failed", "error", err)
		}
	}
}

func (r *Root) forget(n *Node) {
	delete(r.dirty, n)
}
