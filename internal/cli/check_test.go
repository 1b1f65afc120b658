package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudera/llama-sub000/internal/roles"
)

func runCheckCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	prev := checkStrict
	t.Cleanup(func() { checkStrict = prev })
	useRecordingRunner(t)

	cmd := newCheckCmd()
	stdout := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stdout)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestCheckStrictFailsOnInvalidConfig(t *testing.T) {
	dir := useWorkdir(t)
	writeFile(t, filepath.Join(dir, "installer.yaml"), "roles: [wizard]\n")

	out, err := runCheckCmd(t, "--strict")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check failed")
	assert.Contains(t, err.Error(), "config")
	assert.Contains(t, out, `role "wizard" is not a recognized role`)
}

func TestCheckWithoutStrictReportsOnly(t *testing.T) {
	dir := useWorkdir(t)
	writeFile(t, filepath.Join(dir, "installer.yaml"), "roles: [wizard]\n")

	out, err := runCheckCmd(t)
	require.NoError(t, err)
	assert.Contains(t, out, "wizard")
}

func TestCheckJSONReportsStateAndSlaves(t *testing.T) {
	dir := useWorkdir(t)
	outputJSON = true
	persistDefaultState(t, dir, roles.Slave)
	writeFile(t, filepath.Join(dir, "slaves"), "dn1\ndn2\n")

	out, err := runCheckCmd(t)
	require.NoError(t, err)

	var report checkReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, dir, report.Workdir)
	assert.Equal(t, "v1.0.0, 2 tool(s)", report.State)
	assert.Empty(t, report.StateError)
	assert.Equal(t, 2, report.Slaves)
	assert.NotEmpty(t, report.Binaries)
}

func TestCheckStrictFailsOnBrokenState(t *testing.T) {
	dir := useWorkdir(t)
	writeFile(t, filepath.Join(dir, ".installer", "state"), "not-a-state-file\n")

	_, err := runCheckCmd(t, "--strict")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state")
}
