package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Render formats a result as the golden trace text.
func Render(name string, result *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", name)
	b.WriteString(renderTrace(result.Trace))

	if len(result.Store) == 0 {
		b.WriteString("store: (empty)\n")
	} else {
		b.WriteString("store:\n")
		for _, rec := range result.Store {
			fmt.Fprintf(&b, "  %s %s code=%d\n", rec.Key, rec.State, rec.ServerCode)
		}
	}

	if len(result.ServerLiked) == 0 {
		b.WriteString("server: (none)\n")
	} else {
		codes := make([]string, len(result.ServerLiked))
		for i, c := range result.ServerLiked {
			codes[i] = fmt.Sprint(c)
		}
		fmt.Fprintf(&b, "server: %s\n", strings.Join(codes, " "))
	}
	return []byte(b.String())
}

func renderTrace(trace []TraceEvent) string {
	var b strings.Builder
	for _, e := range trace {
		switch e.Type {
		case EventStep:
			fmt.Fprintf(&b, "step %s\n", e.Text)
		case EventTransition:
			fmt.Fprintf(&b, "  %d %s\n", e.Seq, e.Text)
		case EventResult:
			fmt.Fprintf(&b, "  => %s\n", e.Text)
		default:
			fmt.Fprintf(&b, "  %s %s\n", e.Type, e.Text)
		}
	}
	return b.String()
}

// RunWithGolden executes a scenario and compares its trace against
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
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an already computed result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Render(name, result))
}
