package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarios runs every scenario under testdata/scenarios against its
// golden trace.
func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			assert.Equal(t, name, scenario.Name, "file name and scenario name must match")

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "scenario failed:\n%s", strings.Join(result.Errors, "\n"))
		})
	}
}

func TestRun_ExpectMismatch(t *testing.T) {
	code := int64(3)
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "expects the wrong code",
		User:        UserStep{ID: "u1"},
		Flow: []FlowStep{{
			Op:     OpToggle,
			Recipe: RecipeStep{Name: "잡채"},
			Expect: &ExpectClause{Outcome: "liked", Code: &code},
		}},
		Assertions: []Assertion{{Type: AssertNotified, Count: 1}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "step 1: code: expected 3, got 100", result.Errors[0])
	assert.Contains(t, result.Errors[1], "Assertion failed: notified")
}

func TestRun_UnexpectedError(t *testing.T) {
	empty := ""
	scenario := &Scenario{
		Name:        "unexpected",
		Description: "expects success while logged out",
		Token:       &empty,
		Flow: []FlowStep{{
			Op:     OpLike,
			Recipe: RecipeStep{Name: "잡채"},
			Expect: &ExpectClause{Outcome: "liked"},
		}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors, `step 1: error: expected "", got "UNAUTHENTICATED"`)
}

func TestRender(t *testing.T) {
	result := NewResult()
	result.add(EventStep, 0, "1: refresh")
	result.add(EventCall, 0, "GET /recipes/like")
	result.add(EventResult, 0, "error=NETWORK_FAILURE")
	result.ServerLiked = []int64{3, 8}

	assert.Equal(t, `scenario: demo
step 1: refresh
  call GET /recipes/like
  => error=NETWORK_FAILURE
store: (empty)
server: 3 8
`, string(Render("demo", result)))
}
