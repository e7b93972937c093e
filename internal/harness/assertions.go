package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
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
		fmt.Fprintf(&buf, "\nFull trace:\n")
		buf.WriteString(renderTrace(e.Trace))
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns one message per
// failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertServerLiked:
		want := slices.Clone(a.Codes)
		slices.Sort(want)
		if !slices.Equal(want, result.ServerLiked) {
			return mismatch(a.Type, want, result.ServerLiked, result)
		}
	case AssertStoreKeys:
		got := make([]string, len(result.Store))
		for i, rec := range result.Store {
			got[i] = rec.Key
		}
		want := slices.Clone(a.Keys)
		slices.Sort(want)
		if !slices.Equal(want, got) {
			return mismatch(a.Type, want, got, result)
		}
	case AssertCalls:
		if !slices.Equal(a.Calls, result.Calls) {
			return mismatch(a.Type, a.Calls, result.Calls, result)
		}
	case AssertNotified:
		if a.Count != result.Notified {
			return mismatch(a.Type, a.Count, result.Notified, result)
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func mismatch(typ string, want, got any, result *Result) *AssertionError {
	return &AssertionError{
		Type:     typ,
		Expected: fmt.Sprintf("%v", want),
		Actual:   fmt.Sprintf("%v", got),
		Trace:    result.Trace,
	}
}
