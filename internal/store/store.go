package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/statebox/internal/value"
)

const tracerName = "github.com/roach88/statebox/internal/store"

// DefaultName is the store name used when WithName is not given.
const DefaultName = "store"

// Recorder observes completed dispatches. It cannot alter or cancel them.
// Errors are logged and otherwise ignored.
type Recorder interface {
	RecordDispatch(ctx context.Context, rec DispatchRecord) error
}

// DispatchRecord describes one dispatch handled by a Provider instance.
type DispatchRecord struct {
	Store    string
	Provider string
	Seq      int64
	Action   string
	Payload  []value.Value
	// Changed lists the top-level keys whose values were replaced.
	Changed     []string
	Fingerprint string
	Noop        bool
}

// IDGenerator generates Provider instance IDs.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// Store is a state container definition. It holds no live state itself:
// every mounted Provider owns its own copy, seeded from the initial state.
type Store struct {
	name      string
	initial   value.Object
	mutations Mutations
	names     []string
	defaults  Snapshot
	key       *contextKey

	logger   *slog.Logger
	tracer   trace.Tracer
	recorder Recorder
	ids      IDGenerator
}

// contextKey identifies a store's Provider in the host context. Each store
// allocates its own, so stores never see each other's providers.
type contextKey struct {
	name string
}

// Option configures a Store.
type Option func(*Store)

// WithName names the store in logs, spans and journal records.
func WithName(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.name = name
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracer sets the tracer used for dispatch spans.
// Default: the global OpenTelemetry tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(s *Store) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithRecorder reports every dispatch to r.
func WithRecorder(r Recorder) Option {
	return func(s *Store) {
		s.recorder = r
	}
}

// WithIDGenerator sets the Provider instance ID generator.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) {
		if g != nil {
			s.ids = g
		}
	}
}

// New creates a store from an initial state and its mutations.
//
// The mutation table is copied; later changes to m do not affect the
// store. A nil initial state is treated as an empty object. A nil mutation
// is rejected with an ErrCodeInvalidMutation error.
func New(initial value.Object, m Mutations, opts ...Option) (*Store, error) {
	s := &Store{
		name:   DefaultName,
		logger: slog.Default(),
		ids:    UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}

	if initial == nil {
		initial = value.Object{}
	}
	s.initial = initial

	s.mutations = make(Mutations, len(m))
	for name, fn := range m {
		if fn == nil {
			return nil, &Error{
				Code:    ErrCodeInvalidMutation,
				Message: fmt.Sprintf("mutation %q is nil", name),
				Store:   s.name,
				Action:  name,
			}
		}
		s.mutations[name] = fn
		s.names = append(s.names, name)
	}
	slices.Sort(s.names)

	s.key = &contextKey{name: s.name}
	s.defaults = Snapshot{
		State:   s.initial,
		Actions: newActions(s.name, s.names, s.noop),
	}
	s.logger = s.logger.With("store", s.name)

	return s, nil
}

// MustNew is New for statically known mutation tables. It panics on error.
func MustNew(initial value.Object, m Mutations, opts ...Option) *Store {
	s, err := New(initial, m, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the store name.
func (s *Store) Name() string {
	return s.name
}

// Initial returns the initial state every Provider is seeded with.
func (s *Store) Initial() value.Object {
	return s.initial
}

// Names returns the mutation names in sorted order.
func (s *Store) Names() []string {
	return slices.Clone(s.names)
}

// Has reports whether the store declares a mutation named name.
func (s *Store) Has(name string) bool {
	_, ok := s.mutations[name]
	return ok
}

// Defaults returns the snapshot seen outside any Provider: the initial
// state and actions that do nothing.
func (s *Store) Defaults() Snapshot {
	return s.defaults
}

// noop backs the default actions. Known names do nothing.
func (s *Store) noop(a Action) error {
	if !s.Has(a.Type) {
		return unknownAction(s.name, a.Type)
	}
	s.logger.Debug("dispatch outside provider ignored", "action", a.Type)
	return nil
}

// Reduce computes the state that follows prev after a.
//
// A non-nil Object result from the mutation is overlaid onto prev and the
// result is always a new reference, even when the partial update is empty.
// Any other result returns prev itself.
func (s *Store) Reduce(prev value.Object, a Action) (value.Object, error) {
	fn, ok := s.mutations[a.Type]
	if !ok {
		return prev, unknownAction(s.name, a.Type)
	}

	result := fn(prev, a.Payload...)
	if !value.IsObject(result) {
		return prev, nil
	}
	return prev.Overlay(value.AsObject(result)), nil
}
