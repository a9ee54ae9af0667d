// Package eval compiles expression mutations for store definitions.
//
// An expression sees two variables: state, the current store state as
// plain Go values, and args, the action payload as a list. It evaluates to
// the partial update. Returning a map merges it into the state; returning
// anything else (null, a number, a list) leaves the state unchanged.
//
// Three engines are available: expr (github.com/expr-lang/expr), cel
// (github.com/google/cel-go) and js (github.com/dop251/goja).
package eval

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Engine names.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"

	DefaultEngine = EngineExpr
)

// ErrUnknownEngine is returned by New for an unsupported engine name.
var ErrUnknownEngine = errors.New("unknown expression engine")

// Evaluator compiles sources for one engine.
type Evaluator interface {
	Engine() string
	Compile(source string) (Program, error)
}

// Program is a compiled expression.
type Program interface {
	Engine() string
	Source() string
	Run(state map[string]any, args []any) (any, error)
}

// ProgramCache stores compiled programs. Keys combine the engine and the
// source, so one cache can serve every engine.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, program any)
}

func cacheKey(engine, source string) string {
	return engine + "\x00" + source
}

// Option configures an Evaluator.
type Option func(*config)

type config struct {
	cache ProgramCache
}

// WithProgramCache reuses compiled programs across Compile calls.
func WithProgramCache(cache ProgramCache) Option {
	return func(c *config) {
		c.cache = cache
	}
}

func applyOptions(opts []Option) config {
	var cfg config
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// Engines returns the supported engine names.
func Engines() []string {
	return []string{EngineCEL, EngineExpr, EngineJS}
}

// IsEngine reports whether name is a supported engine.
func IsEngine(name string) bool {
	return slices.Contains(Engines(), name)
}

// New returns the evaluator for engine. An empty name selects DefaultEngine.
func New(engine string, opts ...Option) (Evaluator, error) {
	switch engine {
	case "", EngineExpr:
		return NewExprEvaluator(opts...), nil
	case EngineCEL:
		return NewCELEvaluator(opts...), nil
	case EngineJS:
		return NewJSEvaluator(opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, engine)
	}
}

// MemoryCache is a ProgramCache backed by a map.
type MemoryCache struct {
	mu       sync.RWMutex
	programs map[string]any
}

// NewMemoryCache returns an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{programs: make(map[string]any)}
}

// Get implements ProgramCache.
func (c *MemoryCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.programs[key]
	return p, ok
}

// Set implements ProgramCache.
func (c *MemoryCache) Set(key string, program any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.programs[key] = program
}

// Len returns the number of cached programs.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.programs)
}
