package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_Valid(t *testing.T) {
	path := writeScenario(t, `
name: basic
description: "basic insert"
seed:
  - identifier: "1.1"
    content: A
steps:
  - op: insert_message
    flow: "1"
    identifier: "1.1.1"
    content: X
    expect:
      code: ""
expect:
  - 1.1=A
  - 1.1.1=X
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "basic", s.Name)
	require.Len(t, s.Seed, 1)
	assert.Equal(t, "1.1", s.Seed[0].Identifier)
	require.Len(t, s.Steps, 1)
	assert.Equal(t, "insert_message", s.Steps[0].Op)
	assert.Equal(t, []string{"1.1=A", "1.1.1=X"}, s.Expect)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_RejectsUnknownFields(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: "typo in a step"
steps:
  - op: delete_main_flow
    flwo: "1"
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: "description: d\nsteps:\n  - op: delete_main_flow\n    flow: \"1\"\n",
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: "name: n\nsteps:\n  - op: delete_main_flow\n    flow: \"1\"\n",
			want: "description is required",
		},
		{
			name: "no steps",
			yaml: "name: n\ndescription: d\n",
			want: "steps list is required",
		},
		{
			name: "unknown op",
			yaml: "name: n\ndescription: d\nsteps:\n  - op: teleport\n",
			want: `unknown op "teleport"`,
		},
		{
			name: "exchange needs both flows",
			yaml: "name: n\ndescription: d\nsteps:\n  - op: exchange_flows\n    flow_a: \"1\"\n",
			want: "flow_a and flow_b are required",
		},
		{
			name: "message op needs identifier",
			yaml: "name: n\ndescription: d\nsteps:\n  - op: insert_message\n    flow: \"1\"\n",
			want: "flow and identifier are required",
		},
		{
			name: "count on wrong op",
			yaml: "name: n\ndescription: d\nsteps:\n  - op: delete_main_flow\n    flow: \"1\"\n    expect:\n      count: 1\n",
			want: "count only applies",
		},
		{
			name: "seed without identifier",
			yaml: "name: n\ndescription: d\nseed:\n  - content: A\nsteps:\n  - op: delete_main_flow\n    flow: \"1\"\n",
			want: "seed[0]: identifier is required",
		},
		{
			name: "unknown assertion",
			yaml: "name: n\ndescription: d\nsteps:\n  - op: delete_main_flow\n    flow: \"1\"\nassertions:\n  - type: vibes\n",
			want: `unknown assertion type "vibes"`,
		},
		{
			name: "total without count",
			yaml: "name: n\ndescription: d\nsteps:\n  - op: delete_main_flow\n    flow: \"1\"\nassertions:\n  - type: total\n",
			want: "count is required for total",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFindScenarios(t *testing.T) {
	files, err := FindScenarios("testdata/scenarios", "")
	require.NoError(t, err)
	assert.NotEmpty(t, files)

	filtered, err := FindScenarios("testdata/scenarios", "exchange*")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("testdata", "scenarios", "exchange_flows.yaml")}, filtered)

	_, err = FindScenarios("testdata/scenarios", "[")
	assert.Error(t, err)
}
