package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines one harness run.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs is a directory of CUE store definitions, relative to the
	// scenario file. Exactly one of Specs and Source is set.
	Specs string `yaml:"specs,omitempty"`

	// Source holds CUE store definitions inline.
	Source string `yaml:"source,omitempty"`

	Tree Tree `yaml:"tree"`

	Steps []Step `yaml:"steps"`

	Assertions []Assertion `yaml:"assertions"`
}

// Tree is the component tree a scenario mounts.
type Tree struct {
	// Providers lists store names composed around the consumers.
	// The last one is the outermost.
	Providers []string `yaml:"providers"`

	Consumers []Consumer `yaml:"consumers"`
}

// Consumer is a component reading one store.
type Consumer struct {
	Name  string `yaml:"name"`
	Store string `yaml:"store"`

	// Prop selects one top-level field. Empty means the whole state.
	Prop string `yaml:"prop,omitempty"`

	// Outside mounts the consumer outside every provider.
	Outside bool `yaml:"outside,omitempty"`
}

// Step is one scenario action. Exactly one field is set.
type Step struct {
	Dispatch *DispatchStep `yaml:"dispatch,omitempty"`
	Unmount  bool          `yaml:"unmount,omitempty"`
	Remount  bool          `yaml:"remount,omitempty"`
}

// DispatchStep calls an action through a consumer's action table.
type DispatchStep struct {
	Consumer string `yaml:"consumer"`
	Action   string `yaml:"action"`
	Args     []any  `yaml:"args,omitempty"`

	// Error is the expected store error code, e.g. UNKNOWN_ACTION_TYPE.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the result of a run.
type Assertion struct {
	Type string `yaml:"type"`

	// Consumer is used by render_count, value and same_ref.
	Consumer string `yaml:"consumer,omitempty"`

	// Action is used by trace_count.
	Action string `yaml:"action,omitempty"`

	// Count is used by render_count and trace_count.
	Count int `yaml:"count,omitempty"`

	// Expect is used by value. Absent means null.
	Expect any `yaml:"expect,omitempty"`

	// Actions is used by trace_order.
	Actions []string `yaml:"actions,omitempty"`
}

// Assertion type constants.
const (
	AssertRenderCount = "render_count"
	AssertValue       = "value"
	AssertTraceCount  = "trace_count"
	AssertTraceOrder  = "trace_order"
	AssertSameRef     = "same_ref"
)

// LoadScenario reads and validates a scenario file. A relative Specs path
// is resolved against the file's directory. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if s.Specs != "" && !filepath.IsAbs(s.Specs) {
		s.Specs = filepath.Join(filepath.Dir(path), s.Specs)
	}
	if s.Specs != "" {
		if _, err := os.Stat(s.Specs); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: specs directory not found: %s", s.Specs)
		}
	}
	return s, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if (s.Specs == "") == (s.Source == "") {
		return fmt.Errorf("exactly one of specs and source is required")
	}
	if len(s.Tree.Consumers) == 0 {
		return fmt.Errorf("tree.consumers is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	providers := make(map[string]bool, len(s.Tree.Providers))
	for i, name := range s.Tree.Providers {
		if name == "" {
			return fmt.Errorf("tree.providers[%d]: store name is required", i)
		}
		providers[name] = true
	}

	consumers := make(map[string]bool, len(s.Tree.Consumers))
	for i, c := range s.Tree.Consumers {
		if c.Name == "" {
			return fmt.Errorf("tree.consumers[%d]: name is required", i)
		}
		if consumers[c.Name] {
			return fmt.Errorf("tree.consumers[%d]: duplicate name %q", i, c.Name)
		}
		consumers[c.Name] = true
		if c.Store == "" {
			return fmt.Errorf("tree.consumers[%d]: store is required", i)
		}
		if !c.Outside && !providers[c.Store] {
			return fmt.Errorf("tree.consumers[%d]: store %q has no provider (set outside: true to read defaults)", i, c.Store)
		}
	}

	for i, step := range s.Steps {
		kinds := 0
		if step.Dispatch != nil {
			kinds++
		}
		if step.Unmount {
			kinds++
		}
		if step.Remount {
			kinds++
		}
		if kinds != 1 {
			return fmt.Errorf("steps[%d]: exactly one of dispatch, unmount and remount is required", i)
		}
		if d := step.Dispatch; d != nil {
			if d.Action == "" {
				return fmt.Errorf("steps[%d].dispatch: action is required", i)
			}
			if !consumers[d.Consumer] {
				return fmt.Errorf("steps[%d].dispatch: unknown consumer %q", i, d.Consumer)
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, consumers); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion, consumers map[string]bool) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertRenderCount, AssertValue, AssertSameRef:
		if !consumers[a.Consumer] {
			return fmt.Errorf("assertions[%d]: unknown consumer %q for %s", index, a.Consumer, a.Type)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}
	return nil
}
