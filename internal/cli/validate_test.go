package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidSpecs(t *testing.T) {
	dir := writeSpecs(t, counterCUE)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	require.NoError(t, cmd.Execute())
	output := buf.String()
	assert.Contains(t, output, "ok  counter (expr) state=[count, label] mutations=[add, increment, nothing, setLabel]")
	assert.Contains(t, output, "1 store(s) valid")
}

func TestValidateValidSpecsJSON(t *testing.T) {
	dir := writeSpecs(t, counterCUE)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	require.Len(t, resp.Data.Stores, 1)
	assert.Equal(t, "counter", resp.Data.Stores[0].Name)
}

func TestValidateNonExistentDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/directory/path"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E005")
	assert.Contains(t, buf.String(), "not found")
}

func TestValidateEmptyDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{t.TempDir()})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E003")
}

func TestValidateReportsBadDefinitions(t *testing.T) {
	dir := writeSpecs(t, `package specs

store: good: {
	state: {n: 0}
	mutations: bump: expr: "{n: state.n + 1}"
}

store: badEngine: {
	state: {n: 0}
	engine: "lua"
	mutations: bump: expr: "{n: 1}"
}

store: badExpr: {
	state: {n: 0}
	mutations: bump: expr: "{n: state.n +}"
}
`)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)

	codes := make([]string, 0, len(resp.Data.Errors))
	for _, e := range resp.Data.Errors {
		codes = append(codes, e.Code)
	}
	assert.ElementsMatch(t, []string{"E103", ErrCodeEvalFailed}, codes)

	require.Len(t, resp.Data.Stores, 1)
	assert.Equal(t, "good", resp.Data.Stores[0].Name)
}

func TestValidateTextListsErrors(t *testing.T) {
	dir := writeSpecs(t, `package specs

store: broken: {
	state: {n: 0}
	mutations: bump: expr: "{n: }"
}
`)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, buf.String(), "err [E201]")
	assert.NotContains(t, buf.String(), "valid\n")
}
