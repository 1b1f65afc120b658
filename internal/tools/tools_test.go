package tools

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudera/llama-sub000/internal/runner"
)

type fakeRunner struct {
	outputs map[string]runner.Result
}

func (f fakeRunner) Run(_ context.Context, command string, _ []string, _ runner.Options) (runner.Result, error) {
	res, ok := f.outputs[command]
	if !ok {
		return runner.Result{}, errors.New("unexpected command " + command)
	}
	return res, nil
}

func TestMeetsMinimum(t *testing.T) {
	tests := []struct {
		version string
		minimum string
		want    bool
	}{
		{"8.9", "4.3", true},
		{"4.3", "4.3", true},
		{"4.2", "4.3", false},
		{"1.15", "1.15.1", false},
		{"1.30", "1.15", true},
		{"", "1.0", false},
		{"anything", "", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, meetsMinimum(tt.version, tt.minimum), "meetsMinimum(%q, %q)", tt.version, tt.minimum)
	}
}

func stubLookPath(t *testing.T, fn func(string) (string, error)) {
	t.Helper()
	orig := lookPath
	lookPath = fn
	t.Cleanup(func() { lookPath = orig })
}

func TestProbeReadsVersions(t *testing.T) {
	stubLookPath(t, func(file string) (string, error) {
		return "/usr/bin/" + file, nil
	})

	r := fakeRunner{outputs: map[string]runner.Result{
		"/usr/bin/ssh": {Stderr: []byte("OpenSSH_8.9p1 Ubuntu-3ubuntu0.6, OpenSSL 3.0.2 15 Mar 2022\n")},
		"/usr/bin/tar": {Stdout: []byte("tar (GNU tar) 1.34\nCopyright (C) 2021\n")},
	}}

	statuses := Probe(context.Background(), r)
	require.Len(t, statuses, 3)

	byName := map[string]Status{}
	for _, st := range statuses {
		byName[st.Tool] = st
	}
	assert.Equal(t, "8.9", byName["ssh"].Version)
	assert.True(t, byName["ssh"].Satisfied)
	assert.Equal(t, "1.34", byName["tar"].Version)
	assert.True(t, byName["tar"].Satisfied)
	assert.True(t, byName["scp"].Satisfied)
	assert.Equal(t, "/usr/bin/scp", byName["scp"].Path)
	assert.NoError(t, Missing(statuses))
}

func TestProbeMissingBinary(t *testing.T) {
	stubLookPath(t, func(file string) (string, error) {
		return "", &exec.Error{Name: file, Err: exec.ErrNotFound}
	})

	statuses := Probe(context.Background(), fakeRunner{}, "scp")
	require.Len(t, statuses, 1)
	assert.False(t, statuses[0].Satisfied)
	assert.Equal(t, "not found", statuses[0].Error)
	assert.NotEmpty(t, statuses[0].Hints)

	err := Missing(statuses)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scp: not found")
}

func TestProbeUnknownName(t *testing.T) {
	statuses := Probe(context.Background(), fakeRunner{}, "rsync")
	require.Len(t, statuses, 1)
	assert.False(t, statuses[0].Satisfied)
	assert.Equal(t, "unknown prerequisite", statuses[0].Error)
}
