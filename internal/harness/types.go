package harness

import "github.com/roach88/statebox/internal/value"

// Trace event types.
const (
	EventMount    = "mount"
	EventUnmount  = "unmount"
	EventDispatch = "dispatch"
	EventRender   = "render"
)

// TraceEvent is one entry in a run's trace. Which fields are set depends
// on Type.
type TraceEvent struct {
	Seq  int64
	Type string

	Consumer string
	Store    string

	// Dispatch fields.
	Action  string
	Args    value.Array
	Changed []string
	Noop    bool
	Error   string

	// Render fields.
	Renders int
	Value   value.Value
}

// toValue converts the event into the canonical trace form.
func (e TraceEvent) toValue() value.Object {
	obj := value.Object{
		"seq":  value.Int(e.Seq),
		"type": value.String(e.Type),
	}
	if e.Consumer != "" {
		obj["consumer"] = value.String(e.Consumer)
	}

	switch e.Type {
	case EventDispatch:
		obj["store"] = value.String(e.Store)
		obj["action"] = value.String(e.Action)
		args := e.Args
		if args == nil {
			args = value.Array{}
		}
		obj["args"] = args
		changed := make(value.Array, len(e.Changed))
		for i, k := range e.Changed {
			changed[i] = value.String(k)
		}
		obj["changed"] = changed
		obj["noop"] = value.Bool(e.Noop)
		if e.Error != "" {
			obj["error"] = value.String(e.Error)
		}
	case EventRender:
		obj["renders"] = value.Int(int64(e.Renders))
		v := e.Value
		if v == nil {
			v = value.Null{}
		}
		obj["value"] = v
	}
	return obj
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when no step or assertion failed.
	Pass bool

	Trace []TraceEvent

	Errors []string

	// Values holds each consumer's last rendered value.
	Values map[string]value.Value

	// Renders counts each consumer's renders across every mount.
	Renders map[string]int

	// SameActions reports, per consumer, whether every render within a
	// mount saw the same action table.
	SameActions map[string]bool
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:        true,
		Trace:       []TraceEvent{},
		Errors:      []string{},
		Values:      make(map[string]value.Value),
		Renders:     make(map[string]int),
		SameActions: make(map[string]bool),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
