package harness

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/roach88/statebox/internal/value"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nDispatches:\n")
		for _, ev := range e.Trace {
			if ev.Type != EventDispatch {
				continue
			}
			data, _ := value.MarshalCanonical(ev.Args)
			fmt.Fprintf(&buf, "  [%d] %s.%s %s noop=%t\n", ev.Seq, ev.Store, ev.Action, data, ev.Noop)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns
// one message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertRenderCount:
		return assertRenderCount(result, a)
	case AssertValue:
		return assertValue(result, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	case AssertSameRef:
		return assertSameRef(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertRenderCount(result *Result, a Assertion) error {
	got := result.Renders[a.Consumer]
	if got != a.Count {
		return &AssertionError{
			Type:     AssertRenderCount,
			Expected: fmt.Sprintf("%s rendered %d times", a.Consumer, a.Count),
			Actual:   fmt.Sprintf("%d renders", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertValue compares canonical encodings, so key order and identity do
// not matter.
func assertValue(result *Result, a Assertion) error {
	want, err := value.FromAny(a.Expect)
	if err != nil {
		return fmt.Errorf("value assertion for %s: expect: %w", a.Consumer, err)
	}
	wantJSON, err := value.MarshalCanonical(want)
	if err != nil {
		return fmt.Errorf("value assertion for %s: %w", a.Consumer, err)
	}
	gotJSON, err := value.MarshalCanonical(result.Values[a.Consumer])
	if err != nil {
		return fmt.Errorf("value assertion for %s: %w", a.Consumer, err)
	}

	if !bytes.Equal(wantJSON, gotJSON) {
		return &AssertionError{
			Type:     AssertValue,
			Expected: fmt.Sprintf("%s = %s", a.Consumer, wantJSON),
			Actual:   fmt.Sprintf("%s = %s", a.Consumer, gotJSON),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Type == EventDispatch && ev.Action == a.Action {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d dispatches of %s", a.Count, a.Action),
			Actual:   fmt.Sprintf("%d dispatches", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks that the first dispatch of each action comes in
// the given order. Other dispatches may come between them.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, ev := range trace {
		if ev.Type != EventDispatch {
			continue
		}
		if _, seen := positions[ev.Action]; !seen {
			positions[ev.Action] = i + 1
		}
	}

	for _, action := range a.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions dispatched: %v", a.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Actions); i++ {
		prev, curr := a.Actions[i-1], a.Actions[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", a.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertSameRef(result *Result, a Assertion) error {
	if !result.SameActions[a.Consumer] {
		return &AssertionError{
			Type:     AssertSameRef,
			Expected: fmt.Sprintf("%s keeps one action table per mount", a.Consumer),
			Actual:   "action table changed between renders",
			Trace:    result.Trace,
		}
	}
	return nil
}
