package store

import "github.com/roach88/statebox/internal/host"

// Compose returns a wrapper that nests the Providers of stores around its
// children. Stores are wrapped in the order given, so the first store is
// the innermost Provider and the last store is the outermost. Each store
// keeps its own state and dispatch.
//
// With no stores the wrapper returns a plain fragment of the children.
func Compose(stores ...*Store) func(children ...host.Component) host.Component {
	stores = append([]*Store(nil), stores...)
	return func(children ...host.Component) host.Component {
		if len(stores) == 0 {
			return host.Fragment(children...)
		}
		var wrapped host.Component
		inner := children
		for _, s := range stores {
			wrapped = s.Provider(inner...)
			inner = []host.Component{wrapped}
		}
		return wrapped
	}
}
