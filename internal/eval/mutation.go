package eval

import (
	"log/slog"

	"github.com/roach88/statebox/internal/store"
	"github.com/roach88/statebox/internal/value"
)

// MutationOption configures Mutation.
type MutationOption func(*mutationConfig)

type mutationConfig struct {
	onError func(error)
}

// WithErrorHandler receives every evaluation or conversion failure.
// Default: a slog warning.
func WithErrorHandler(fn func(error)) MutationOption {
	return func(c *mutationConfig) {
		if fn != nil {
			c.onError = fn
		}
	}
}

// Mutation adapts a compiled program to a store.Mutation. A program that
// fails, or whose result cannot be represented as a value (a fraction, a
// function), reports an *EvaluationError to the error handler and leaves
// the state unchanged.
func Mutation(p Program, opts ...MutationOption) store.Mutation {
	cfg := mutationConfig{
		onError: func(err error) {
			slog.Warn("expression mutation failed", "engine", p.Engine(), "error", err)
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return func(state value.Object, args ...value.Value) value.Value {
		plainState, _ := value.ToAny(state).(map[string]any)
		if plainState == nil {
			plainState = map[string]any{}
		}
		plainArgs := make([]any, len(args))
		for i, arg := range args {
			plainArgs[i] = value.ToAny(arg)
		}

		out, err := p.Run(plainState, plainArgs)
		if err != nil {
			cfg.onError(wrapEvaluationError(p.Engine(), p.Source(), err))
			return nil
		}
		result, err := value.FromAny(out)
		if err != nil {
			cfg.onError(wrapEvaluationError(p.Engine(), p.Source(), err))
			return nil
		}
		return result
	}
}
