package eval

import (
	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

type exprEvaluator struct {
	cache ProgramCache
}

// NewExprEvaluator constructs an Evaluator backed by expr-lang/expr.
func NewExprEvaluator(opts ...Option) Evaluator {
	cfg := applyOptions(opts)
	return &exprEvaluator{cache: cfg.cache}
}

func (e *exprEvaluator) Engine() string { return EngineExpr }

func (e *exprEvaluator) Compile(source string) (Program, error) {
	if source == "" {
		return nil, wrapEvaluationError(EngineExpr, source, errEmptyExpression)
	}
	if e.cache != nil {
		if cached, ok := e.cache.Get(cacheKey(EngineExpr, source)); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return &exprProgram{program: program, source: source}, nil
			}
		}
	}

	program, err := exprlang.Compile(source,
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, wrapEvaluationError(EngineExpr, source, err)
	}
	if e.cache != nil {
		e.cache.Set(cacheKey(EngineExpr, source), program)
	}
	return &exprProgram{program: program, source: source}, nil
}

type exprProgram struct {
	program *exprvm.Program
	source  string
}

func (p *exprProgram) Engine() string { return EngineExpr }
func (p *exprProgram) Source() string { return p.source }

func (p *exprProgram) Run(state map[string]any, args []any) (any, error) {
	env := map[string]any{
		"state": state,
		"args":  args,
	}
	out, err := exprlang.Run(p.program, env)
	if err != nil {
		return nil, wrapEvaluationError(EngineExpr, p.source, err)
	}
	return out, nil
}
