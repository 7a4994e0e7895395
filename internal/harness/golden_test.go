package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_Canonical(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "snap",
		Description: "snapshot shape",
		Seed:        []SeedMessage{{Identifier: "1.1", Content: map[string]any{"b": 1, "a": true}}},
		Steps:       []Step{{Op: "delete_messages_by_flow", Flow: "1"}},
	})
	require.NoError(t, err)

	data, err := Snapshot("snap", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"final":[],"scenario_name":"snap","trace":[{"args":{"flow":"1"},"count":1,"op":"delete_messages_by_flow","outcome":"ok","step":1}]}`,
		string(data))
}

func TestSnapshot_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/main_flow_lifecycle.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := Snapshot(scenario.Name, first)
	require.NoError(t, err)
	b, err := Snapshot(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}
