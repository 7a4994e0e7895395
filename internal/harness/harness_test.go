package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func TestRun_InsertAndExpectations(t *testing.T) {
	scenario := &Scenario{
		Name:        "insert",
		Description: "insert shifts siblings",
		Seed: []SeedMessage{
			{Identifier: "1.1", Content: "A"},
			{Identifier: "1.1.1", Content: "B"},
		},
		Steps: []Step{
			{Op: "insert_message", Flow: "1", Identifier: "1.1.1", Content: "X"},
		},
		Expect: []string{"1.1=A", "1.1.1=X", "1.1.2=B"},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, OutcomeOK, result.Trace[0].Outcome)
	assert.Equal(t, "msg-0001", result.Trace[0].ID)
	assert.Equal(t, "seed-02", result.Final[2].ID)
}

func TestRun_UnexpectedOutcomeFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "root insert",
		Description: "generic insert at a root position",
		Steps: []Step{
			{Op: "insert_message", Flow: "1", Identifier: "1.1", Content: "X"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected outcome ok, got ROOT_FLOW_INSERT_NOT_ALLOWED")
}

func TestRun_CountAndMessageMismatch(t *testing.T) {
	scenario := &Scenario{
		Name:        "count",
		Description: "wrong expectations are reported",
		Seed: []SeedMessage{
			{Identifier: "1.1", Content: "A"},
		},
		Steps: []Step{
			{Op: "delete_messages_by_flow", Flow: "1", Expect: &StepExpect{Count: intPtr(3)}},
			{Op: "insert_main_flow", Flow: "1", Content: "R", Expect: &StepExpect{Message: "nope"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "expected count 3, got 1")
	assert.Contains(t, result.Errors[1], `expected message "nope", got "main flow 1.1 created"`)
}

func TestRun_VerifiesInvariantsAfterEachStep(t *testing.T) {
	scenario := &Scenario{
		Name:        "rename",
		Description: "rename leaves a duplicate",
		Seed: []SeedMessage{
			{Identifier: "1.1", Content: "R"},
			{Identifier: "1.1.1", Content: "A"},
			{Identifier: "1.1.2", Content: "B"},
		},
		Steps: []Step{
			{Op: "update_message", Flow: "1", Identifier: "1.1.1", NewIdentifier: "1.1.2"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, strings.Join(result.Errors, "\n"), "invariant violated")

	scenario.SkipVerify = true
	result, err = Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_FinalTreeMismatch(t *testing.T) {
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "final tree differs",
		Seed:        []SeedMessage{{Identifier: "1.1", Content: "A"}},
		Steps:       []Step{{Op: "delete_message", Flow: "1", Identifier: "1.1.4"}},
		Expect:      []string{"1.1=B"},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "final tree mismatch")
}

func TestRun_BadSeedIsAnError(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad seed",
		Description: "seed identifier does not parse",
		Seed:        []SeedMessage{{Identifier: "1..1", Content: "A"}},
		Steps:       []Step{{Op: "delete_main_flow", Flow: "1"}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load seed")
}

func TestRun_ScenarioFiles(t *testing.T) {
	files, err := FindScenarios("testdata/scenarios", "")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(file)
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}
