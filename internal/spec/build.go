package spec

import (
	"fmt"

	"github.com/roach88/statebox/internal/eval"
	"github.com/roach88/statebox/internal/mutate"
	"github.com/roach88/statebox/internal/store"
)

// BuildOption configures StoreDef.Build.
type BuildOption func(*buildConfig)

type buildConfig struct {
	storeOpts []store.Option
	evalOpts  []eval.Option
	mutOpts   []eval.MutationOption
}

// WithStoreOptions passes options through to store.New. The definition's
// name is applied first, so a WithName here overrides it.
func WithStoreOptions(opts ...store.Option) BuildOption {
	return func(c *buildConfig) {
		c.storeOpts = append(c.storeOpts, opts...)
	}
}

// WithEvalOptions configures the evaluators that compile expr mutations.
func WithEvalOptions(opts ...eval.Option) BuildOption {
	return func(c *buildConfig) {
		c.evalOpts = append(c.evalOpts, opts...)
	}
}

// WithMutationOptions configures every expression mutation.
func WithMutationOptions(opts ...eval.MutationOption) BuildOption {
	return func(c *buildConfig) {
		c.mutOpts = append(c.mutOpts, opts...)
	}
}

// Build compiles the definition into a live store. Expression sources are
// compiled here, so syntax errors surface as *eval.EvaluationError.
func (d *StoreDef) Build(opts ...BuildOption) (*store.Store, error) {
	var cfg buildConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	evaluators := make(map[string]eval.Evaluator)
	mutations := make(store.Mutations, len(d.Mutations))
	for _, m := range d.Mutations {
		switch m.Kind {
		case KindSet:
			mutations[m.Name] = mutate.Set(m.Arg)
		case KindMerge:
			mutations[m.Name] = mutate.Merge(m.Arg, d.State)
		case KindToggle:
			mutations[m.Name] = mutate.Toggle(m.Arg)
		case KindExpr:
			ev, ok := evaluators[m.Engine]
			if !ok {
				var err error
				ev, err = eval.New(m.Engine, cfg.evalOpts...)
				if err != nil {
					return nil, fmt.Errorf("store %s: mutation %s: %w", d.Name, m.Name, err)
				}
				evaluators[m.Engine] = ev
			}
			prog, err := ev.Compile(m.Arg)
			if err != nil {
				return nil, fmt.Errorf("store %s: mutation %s: %w", d.Name, m.Name, err)
			}
			mutations[m.Name] = eval.Mutation(prog, cfg.mutOpts...)
		default:
			return nil, fmt.Errorf("store %s: mutation %s: unknown kind %q", d.Name, m.Name, m.Kind)
		}
	}

	storeOpts := append([]store.Option{store.WithName(d.Name)}, cfg.storeOpts...)
	return store.New(d.State, mutations, storeOpts...)
}
