package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statebox/internal/value"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestScenariosPass(t *testing.T) {
	for _, name := range []string{"selective_render", "noop_results", "composed_stores", "remount"} {
		t.Run(name, func(t *testing.T) {
			result, err := Run(loadTestScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestGoldenTraces(t *testing.T) {
	for _, name := range []string{"selective_render", "noop_results", "remount"} {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, loadTestScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRunIsDeterministic(t *testing.T) {
	s := loadTestScenario(t, "composed_stores")

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := TraceSnapshot{ScenarioName: s.Name, Trace: first.Trace}.MarshalCanonical()
	require.NoError(t, err)
	b, err := TraceSnapshot{ScenarioName: s.Name, Trace: second.Trace}.MarshalCanonical()
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

const inlineScenario = `
name: inline
description: Inline definitions
source: |
  store: flag: {
    state: {on: false, hits: 0}
    mutations: {
      flip: toggle: "on"
      hit: {
        expr: "{\"hits\": state.hits + 1}"
        engine: "cel"
      }
    }
  }
tree:
  providers: [flag]
  consumers:
    - {name: onView, store: flag, prop: "on"}
    - {name: all, store: flag}
steps:
  - dispatch: {consumer: all, action: hit}
  - dispatch: {consumer: onView, action: flip}
assertions:
  - {type: value, consumer: onView, expect: true}
  - {type: value, consumer: all, expect: {on: true, hits: 1}}
  - {type: render_count, consumer: onView, count: 2}
  - {type: render_count, consumer: all, count: 3}
`

func TestInlineSource(t *testing.T) {
	s, err := ParseScenario([]byte(inlineScenario))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, value.Bool(true), result.Values["onView"])
}

func TestFailingAssertionsAreReported(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: wrong
description: Assertions that do not hold
source: |
  store: c: {
    state: {n: 0}
    mutations: inc: expr: "{n: state.n + 1}"
  }
tree:
  providers: [c]
  consumers:
    - {name: v, store: c, prop: n}
steps:
  - dispatch: {consumer: v, action: inc}
assertions:
  - {type: value, consumer: v, expect: 7}
  - {type: render_count, consumer: v, count: 1}
  - {type: trace_count, action: inc, count: 3}
  - {type: trace_order, actions: [dec]}
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "v = 7")
	assert.Contains(t, result.Errors[1], "2 renders")
	assert.Contains(t, result.Errors[2], "1 dispatches")
	assert.Contains(t, result.Errors[3], "missing action: dec")
}

func TestUnexpectedDispatchErrorFails(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: unknown
description: Unknown action without an expected error
source: |
  store: c: state: {n: 0}
tree:
  providers: [c]
  consumers:
    - {name: v, store: c}
steps:
  - dispatch: {consumer: v, action: nope}
assertions:
  - {type: trace_count, action: nope, count: 1}
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "UNKNOWN_ACTION_TYPE")
	assert.Equal(t, "UNKNOWN_ACTION_TYPE", result.Trace[len(result.Trace)-1].Error)
}

func TestRunUndefinedStore(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: undefined
description: Provider for a store with no definition
source: |
  store: c: state: {n: 0}
tree:
  providers: [missing]
  consumers:
    - {name: v, store: missing}
assertions:
  - {type: render_count, consumer: v, count: 1}
`))
	require.NoError(t, err)

	_, err = Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `store "missing" is not defined`)
}

func TestRunBadDefinitions(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: bad
description: Definitions that do not compile
source: |
  store: c: engine: "lua"
tree:
  providers: [c]
  consumers:
    - {name: v, store: c}
assertions:
  - {type: render_count, consumer: v, count: 1}
`))
	require.NoError(t, err)

	_, err = Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E103")
}

func TestParseScenarioValidation(t *testing.T) {
	base := "name: x\ndescription: y\nsource: 'store: c: state: {}'\n"
	consumers := "tree:\n  providers: [c]\n  consumers:\n    - {name: v, store: c}\n"
	assertions := "assertions:\n  - {type: render_count, consumer: v, count: 1}\n"

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", "description: y\nsource: s\n" + consumers + assertions, "name is required"},
		{"both sources", base + "specs: dir\n" + consumers + assertions, "exactly one of specs and source"},
		{"no consumers", base + "tree:\n  providers: [c]\n" + assertions, "tree.consumers is required"},
		{"no assertions", base + consumers, "assertions list is required"},
		{"unknown field", base + consumers + assertions + "extra: 1\n", "field extra not found"},
		{"consumer without provider", base + "tree:\n  consumers:\n    - {name: v, store: c}\n" + assertions, "has no provider"},
		{"duplicate consumer", base + "tree:\n  providers: [c]\n  consumers:\n    - {name: v, store: c}\n    - {name: v, store: c}\n" + assertions, "duplicate name"},
		{"step with two kinds", base + consumers + "steps:\n  - {unmount: true, remount: true}\n" + assertions, "exactly one of dispatch"},
		{"dispatch unknown consumer", base + consumers + "steps:\n  - dispatch: {consumer: w, action: a}\n" + assertions, `unknown consumer "w"`},
		{"unknown assertion", base + consumers + "assertions:\n  - {type: final_state}\n", "unknown assertion type"},
		{"negative count", base + consumers + "assertions:\n  - {type: trace_count, action: a, count: -1}\n", "non-negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenarioResolvesSpecsRelativeToFile(t *testing.T) {
	s := loadTestScenario(t, "selective_render")
	assert.Equal(t, filepath.Join("testdata", "specs"), s.Specs)
}

func TestLoadScenarioMissingSpecsDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: x
description: y
specs: nowhere
tree:
  providers: [c]
  consumers:
    - {name: v, store: c}
assertions:
  - {type: render_count, consumer: v, count: 1}
`), 0644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "specs directory not found")
}
