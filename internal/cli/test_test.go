package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: bump
description: Incrementing re-renders the subscriber
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
  - {type: value, consumer: v, expect: 1}
  - {type: render_count, consumer: v, count: 2}
`

const failingScenario = `name: wrong
description: An assertion that does not hold
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
  - {type: value, consumer: v, expect: 5}
`

func writeScenarios(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func runTestCmd(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func decodeSummary(t *testing.T, out string) TestSummary {
	t.Helper()
	var resp struct {
		Data TestSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp.Data
}

func TestTestCommandPasses(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"bump.yaml": passingScenario, "notes.txt": "ignored"})

	out, err := runTestCmd(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "\u2713 bump")
	assert.Contains(t, out, "1 passed, 0 failed")
}

func TestTestCommandFailure(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"bump.yaml": passingScenario, "wrong.yml": failingScenario})

	out, err := runTestCmd(t, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	summary := decodeSummary(t, out)
	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Results, 2)
	assert.Equal(t, "bump", summary.Results[0].Scenario)
	assert.Equal(t, "wrong", summary.Results[1].Scenario)
	assert.False(t, summary.Results[1].Pass)
	assert.NotEmpty(t, summary.Results[1].Errors)
}

func TestTestCommandFilter(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"bump.yaml": passingScenario, "wrong.yaml": failingScenario})

	out, err := runTestCmd(t, "json", dir, "--filter", "bu*")
	require.NoError(t, err)

	summary := decodeSummary(t, out)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, "bump", summary.Results[0].Scenario)
}

func TestTestCommandInvalidScenario(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"bad.yaml": "name: bad\nunknown: 1\n"})

	out, err := runTestCmd(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "\u2717 bad")
}

func TestTestCommandGoldenUpdateAndCompare(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"bump.yaml": passingScenario})
	goldenPath := filepath.Join(dir, "golden", "bump.golden")

	out, err := runTestCmd(t, "json", dir, "--update")
	require.NoError(t, err)
	assert.Equal(t, "updated", decodeSummary(t, out).Results[0].Golden)

	data, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario_name":"bump"`)

	out, err = runTestCmd(t, "json", dir)
	require.NoError(t, err)
	assert.Equal(t, "match", decodeSummary(t, out).Results[0].Golden)

	require.NoError(t, os.WriteFile(goldenPath, []byte(`{"scenario_name":"bump","trace":[]}`), 0o644))
	out, err = runTestCmd(t, "json", dir)
	require.Error(t, err)
	result := decodeSummary(t, out).Results[0]
	assert.Equal(t, "mismatch", result.Golden)
	assert.False(t, result.Pass)
}

func TestTestCommandGoldenDirFlag(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"bump.yaml": passingScenario})
	golden := filepath.Join(t.TempDir(), "fixtures")

	_, err := runTestCmd(t, "text", dir, "--golden", golden, "--update")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(golden, "bump.golden"))
}

func TestTestCommandMissingDirectory(t *testing.T) {
	_, err := runTestCmd(t, "text", filepath.Join(t.TempDir(), "none"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandBadFilter(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"bump.yaml": passingScenario})

	_, err := runTestCmd(t, "text", dir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
