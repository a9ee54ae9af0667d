package eval

import (
	"fmt"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

type celEvaluator struct {
	cache ProgramCache
}

// NewCELEvaluator constructs an Evaluator backed by cel-go.
func NewCELEvaluator(opts ...Option) Evaluator {
	cfg := applyOptions(opts)
	return &celEvaluator{cache: cfg.cache}
}

func (e *celEvaluator) Engine() string { return EngineCEL }

func (e *celEvaluator) Compile(source string) (Program, error) {
	if source == "" {
		return nil, wrapEvaluationError(EngineCEL, source, errEmptyExpression)
	}
	if e.cache != nil {
		if cached, ok := e.cache.Get(cacheKey(EngineCEL, source)); ok {
			if program, ok := cached.(celgo.Program); ok {
				return &celProgram{program: program, source: source}, nil
			}
		}
	}

	env, err := celgo.NewEnv(
		celgo.Variable("state", celgo.DynType),
		celgo.Variable("args", celgo.ListType(celgo.DynType)),
	)
	if err != nil {
		return nil, wrapEvaluationError(EngineCEL, source, err)
	}
	ast, issues := env.Parse(source)
	if issues != nil && issues.Err() != nil {
		return nil, wrapEvaluationError(EngineCEL, source, issues.Err())
	}
	checked, issues := env.Check(ast)
	if issues != nil && issues.Err() != nil {
		return nil, wrapEvaluationError(EngineCEL, source, issues.Err())
	}
	program, err := env.Program(checked)
	if err != nil {
		return nil, wrapEvaluationError(EngineCEL, source, err)
	}

	if e.cache != nil {
		e.cache.Set(cacheKey(EngineCEL, source), program)
	}
	return &celProgram{program: program, source: source}, nil
}

type celProgram struct {
	program celgo.Program
	source  string
}

func (p *celProgram) Engine() string { return EngineCEL }
func (p *celProgram) Source() string { return p.source }

func (p *celProgram) Run(state map[string]any, args []any) (any, error) {
	if args == nil {
		args = []any{}
	}
	out, _, err := p.program.Eval(map[string]any{
		"state": state,
		"args":  args,
	})
	if err != nil {
		return nil, wrapEvaluationError(EngineCEL, p.source, err)
	}
	native, err := celToNative(out)
	if err != nil {
		return nil, wrapEvaluationError(EngineCEL, p.source, err)
	}
	return native, nil
}

// celToNative converts a CEL result into plain Go values. Maps and lists
// built by CEL literals hold ref.Val elements, so they are walked
// recursively instead of relying on Value().
func celToNative(v ref.Val) (any, error) {
	if v == nil || v.Type() == types.NullType {
		return nil, nil
	}
	switch tv := v.(type) {
	case traits.Mapper:
		out := make(map[string]any)
		it := tv.Iterator()
		for it.HasNext() == types.True {
			k := it.Next()
			key, ok := k.Value().(string)
			if !ok {
				return nil, fmt.Errorf("map key must be a string, got %s", k.Type().TypeName())
			}
			elem, err := celToNative(tv.Get(k))
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", key, err)
			}
			out[key] = elem
		}
		return out, nil
	case traits.Lister:
		size, ok := tv.Size().(types.Int)
		if !ok {
			return nil, fmt.Errorf("list size is not an int")
		}
		out := make([]any, 0, int(size))
		for i := types.Int(0); i < size; i++ {
			elem, err := celToNative(tv.Get(i))
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out = append(out, elem)
		}
		return out, nil
	}
	return v.Value(), nil
}
