package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/recipesync/internal/store"
)

// Scenario defines one end-to-end run.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// User is the user the flow runs as. An empty id is the guest.
	User UserStep `yaml:"user,omitempty"`

	// Token is the bearer token the client holds. Nil means DefaultToken;
	// an explicit empty string means logged out.
	Token *string `yaml:"token,omitempty"`

	// FirstCode is the first code the fake API hands out. Defaults to 100.
	FirstCode int64 `yaml:"first_code,omitempty"`

	// Server lists recipes already liked on the server.
	Server []RecipeStep `yaml:"server,omitempty"`

	// Local lists records already in the local store.
	Local []RecordStep `yaml:"local,omitempty"`

	// Flow is executed in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// UserStep describes the current user.
type UserStep struct {
	ID    string `yaml:"id"`
	Tools int64  `yaml:"tools,omitempty"`
}

// RecipeStep identifies a recipe.
type RecipeStep struct {
	Name string `yaml:"name"`
	Time string `yaml:"time,omitempty"`
	Code int64  `yaml:"code,omitempty"`
	Type int64  `yaml:"type,omitempty"`
}

// RecordStep is a local record to seed.
type RecordStep struct {
	Key   string `yaml:"key"`
	Code  int64  `yaml:"code,omitempty"`
	State string `yaml:"state"`
}

// Step operations.
const (
	OpToggle  = "toggle"
	OpLike    = "like"
	OpUnlike  = "unlike"
	OpRefresh = "refresh"
)

var validOps = []string{OpToggle, OpLike, OpUnlike, OpRefresh}

// FlowStep is one operation of the flow.
type FlowStep struct {
	// Op is toggle, like, unlike or refresh.
	Op string `yaml:"op"`

	// Recipe is the recipe acted on. Ignored by refresh.
	Recipe RecipeStep `yaml:"recipe,omitempty"`

	// Fail makes the next request to a route fail during this step.
	Fail *FailStep `yaml:"fail,omitempty"`

	// Confirm answers the unlike prompt. Defaults to yes.
	Confirm *bool `yaml:"confirm,omitempty"`

	// Expect, when set, is checked against the step result.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// FailStep injects one failed response.
type FailStep struct {
	// Route is "METHOD /path", e.g. "POST /recipes/like".
	Route string `yaml:"route"`
	// Status 0 drops the connection.
	Status int    `yaml:"status"`
	Body   string `yaml:"body,omitempty"`
}

// ExpectClause specifies the expected step result. Empty fields are not
// checked, except Error: a step expected to succeed must not fail.
type ExpectClause struct {
	Outcome string `yaml:"outcome,omitempty"`
	State   string `yaml:"state,omitempty"`
	Code    *int64 `yaml:"code,omitempty"`
	Error   string `yaml:"error,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "server_liked": the server's liked codes equal Codes
	// - "store_keys": the local store holds exactly Keys
	// - "calls": the API received exactly Calls, in order
	// - "notified": exactly Count failure notices were shown
	Type string `yaml:"type"`

	Codes []int64  `yaml:"codes,omitempty"`
	Keys  []string `yaml:"keys,omitempty"`
	Calls []string `yaml:"calls,omitempty"`
	Count int      `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertServerLiked = "server_liked"
	AssertStoreKeys   = "store_keys"
	AssertCalls       = "calls"
	AssertNotified    = "notified"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, r := range s.Local {
		if r.Key == "" {
			return fmt.Errorf("local[%d]: key is required", i)
		}
		if !store.State(r.State).Valid() {
			return fmt.Errorf("local[%d]: unknown state %q", i, r.State)
		}
	}
	for i, r := range s.Server {
		if r.Name == "" {
			return fmt.Errorf("server[%d]: name is required", i)
		}
	}

	for i, step := range s.Flow {
		if !slices.Contains(validOps, step.Op) {
			return fmt.Errorf("flow[%d]: op %q must be one of %v", i, step.Op, validOps)
		}
		if step.Op != OpRefresh && step.Recipe.Name == "" {
			return fmt.Errorf("flow[%d]: recipe.name is required for %s", i, step.Op)
		}
		if step.Fail != nil && step.Fail.Route == "" {
			return fmt.Errorf("flow[%d]: fail.route is required", i)
		}
	}

	for i, a := range s.Assertions {
		switch a.Type {
		case AssertServerLiked, AssertStoreKeys, AssertCalls, AssertNotified:
		default:
			return fmt.Errorf("assertion[%d]: unknown type %q", i, a.Type)
		}
	}
	return nil
}
