package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/statebox/internal/value"
)

// TraceSnapshot is the golden form of a run.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
}

// MarshalCanonical encodes the snapshot as canonical JSON.
func (s TraceSnapshot) MarshalCanonical() ([]byte, error) {
	trace := make(value.Array, len(s.Trace))
	for i, ev := range s.Trace {
		trace[i] = ev.toValue()
	}
	return value.MarshalCanonical(value.Object{
		"scenario_name": value.String(s.ScenarioName),
		"trace":         trace,
	})
}

// RunWithGolden executes a scenario and compares its canonical trace with
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result's trace against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := TraceSnapshot{ScenarioName: scenarioName, Trace: result.Trace}.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
