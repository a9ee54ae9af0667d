package eval

import (
	"fmt"

	"github.com/dop251/goja"
)

type jsEvaluator struct {
	cache ProgramCache
}

// NewJSEvaluator constructs an Evaluator backed by goja. Each run gets a
// fresh runtime, so programs cannot leak state between dispatches.
func NewJSEvaluator(opts ...Option) Evaluator {
	cfg := applyOptions(opts)
	return &jsEvaluator{cache: cfg.cache}
}

func (e *jsEvaluator) Engine() string { return EngineJS }

func (e *jsEvaluator) Compile(source string) (Program, error) {
	if source == "" {
		return nil, wrapEvaluationError(EngineJS, source, errEmptyExpression)
	}
	if e.cache != nil {
		if cached, ok := e.cache.Get(cacheKey(EngineJS, source)); ok {
			if program, ok := cached.(*goja.Program); ok {
				return &jsProgram{program: program, source: source}, nil
			}
		}
	}

	program, err := goja.Compile("", wrapExpression(source), false)
	if err != nil {
		return nil, wrapEvaluationError(EngineJS, source, err)
	}
	if e.cache != nil {
		e.cache.Set(cacheKey(EngineJS, source), program)
	}
	return &jsProgram{program: program, source: source}, nil
}

func wrapExpression(source string) string {
	return fmt.Sprintf("(function(){ return (%s); })()", source)
}

type jsProgram struct {
	program *goja.Program
	source  string
}

func (p *jsProgram) Engine() string { return EngineJS }
func (p *jsProgram) Source() string { return p.source }

func (p *jsProgram) Run(state map[string]any, args []any) (any, error) {
	if args == nil {
		args = []any{}
	}
	vm := goja.New()
	if err := vm.Set("state", state); err != nil {
		return nil, wrapEvaluationError(EngineJS, p.source, err)
	}
	if err := vm.Set("args", args); err != nil {
		return nil, wrapEvaluationError(EngineJS, p.source, err)
	}
	out, err := vm.RunProgram(p.program)
	if err != nil {
		return nil, wrapEvaluationError(EngineJS, p.source, err)
	}
	return out.Export(), nil
}
