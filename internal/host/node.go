package host

import (
	"strings"
)

// Component describes a node of the tree.
//
// Setup runs once when the node mounts, before the first Render; it is the
// place to Provide context values and register OnUnmount cleanups. Render
// runs on mount and on every re-render. Children are mounted after the
// node's first render. Any of the fields may be empty.
type Component struct {
	Name     string
	Setup    func(n *Node)
	Render   func(r *Render)
	Children []Component
}

// Fragment groups children under a single unnamed component.
func Fragment(children ...Component) Component {
	return Component{Name: "fragment", Children: children}
}

// Node is a mounted Component.
type Node struct {
	root     *Root
	parent   *Node
	comp     Component
	depth    int
	order    int64
	children []*Node

	values   map[any]any
	hooks    []any
	cleanups []func()

	renders int
	output  any
	mounted bool
}

// Name returns the component name.
func (n *Node) Name() string {
	return n.comp.Name
}

// Path returns the slash-separated names from the top-level node down to n.
func (n *Node) Path() string {
	var parts []string
	for cur := n; cur != nil; cur = cur.parent {
		parts = append(parts, cur.comp.Name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

// Parent returns the enclosing node, or nil for a top-level node.
func (n *Node) Parent() *Node {
	return n.parent
}

// Children returns the mounted children in mount order.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// Root returns the root the node is mounted in.
func (n *Node) Root() *Root {
	return n.root
}

// Provide publishes v under key for this node and its descendants.
// A descendant providing the same key shadows it for its own subtree.
func (n *Node) Provide(key, v any) {
	if n.values == nil {
		n.values = make(map[any]any)
	}
	n.values[key] = v
}

// Lookup returns the value provided under key by the nearest node, starting
// with n itself and walking towards the top.
func (n *Node) Lookup(key any) (any, bool) {
	for cur := n; cur != nil; cur = cur.parent {
		if v, ok := cur.values[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// OnUnmount registers fn to run when the node unmounts. Cleanups run in
// reverse registration order, after all children have unmounted.
func (n *Node) OnUnmount(fn func()) {
	n.cleanups = append(n.cleanups, fn)
}

// Invalidate schedules a re-render of this node only. Inside a batch the
// request is coalesced; outside one the node renders immediately.
func (n *Node) Invalidate() {
	if !n.mounted {
		return
	}
	n.root.invalidate(n)
}

// Renders returns how many times the node has rendered.
func (n *Node) Renders() int {
	return n.renders
}

// Output returns the value last emitted by Render.
func (n *Node) Output() any {
	return n.output
}

// Mounted reports whether the node is still part of the tree.
func (n *Node) Mounted() bool {
	return n.mounted
}

// Find returns the first node named name in depth-first order, starting
// with n itself.
func (n *Node) Find(name string) *Node {
	if n.comp.Name == name {
		return n
	}
	for _, c := range n.children {
		if found := c.Find(name); found != nil {
			return found
		}
	}
	return nil
}

// Append mounts c as the last child of n.
func (n *Node) Append(c Component) (*Node, error) {
	if !n.mounted {
		return nil, ErrNotMounted
	}
	child, err := n.root.mount(n, c)
	if child != nil {
		n.children = append(n.children, child)
	}
	return child, err
}

// Unmount removes n and its subtree. Children unmount in reverse order,
// then n's cleanups run in reverse registration order.
func (n *Node) Unmount() {
	if !n.mounted {
		return
	}
	n.unmount()
	if n.parent != nil {
		n.parent.children = removeNode(n.parent.children, n)
	} else {
		n.root.top = removeNode(n.root.top, n)
	}
}

func (n *Node) unmount() {
	for i := len(n.children) - 1; i >= 0; i-- {
		n.children[i].unmount()
	}
	n.children = nil
	n.mounted = false
	for i := len(n.cleanups) - 1; i >= 0; i-- {
		n.cleanups[i]()
	}
	n.cleanups = nil
	n.root.forget(n)
}

func removeNode(nodes []*Node, n *Node) []*Node {
	for i, c := range nodes {
		if c == n {
			return append(nodes[:i], nodes[i+1:]...)
		}
	}
	return nodes
}

// Render is the handle passed to a component's Render function.
type Render struct {
	node *Node
	hook int
}

// Node returns the node being rendered.
func (r *Render) Node() *Node {
	return r.node
}

// Lookup is Node().Lookup.
func (r *Render) Lookup(key any) (any, bool) {
	return r.node.Lookup(key)
}

// Emit records the render's output, readable through Node.Output.
func (r *Render) Emit(output any) {
	r.node.output = output
}

// Hook returns the state kept in the next hook slot. Slots are matched by
// call order, so a component must call Hook the same number of times in
// the same order on every render. init runs only on the first render.
func (r *Render) Hook(init func() any) any {
	n := r.node
	if r.hook == len(n.hooks) {
		n.hooks = append(n.hooks, init())
	}
	v := n.hooks[r.hook]
	r.hook++
	return v
}
