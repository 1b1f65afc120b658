package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudera/llama-sub000/internal/config"
	"github.com/cloudera/llama-sub000/internal/remote"
	"github.com/cloudera/llama-sub000/internal/remotemgr"
	"github.com/cloudera/llama-sub000/internal/roles"
	"github.com/cloudera/llama-sub000/internal/state"
)

// fakeTransport fails every operation on the hosts in fail.
type fakeTransport struct {
	mu       sync.Mutex
	fail     map[string]bool
	commands []string
	copies   []string
}

func (f *fakeTransport) Exec(_ context.Context, _, host, command string) ([]string, int, error) {
	f.mu.Lock()
	f.commands = append(f.commands, host+": "+command)
	f.mu.Unlock()
	if f.fail[host] {
		return []string{"boom"}, 1, nil
	}
	return []string{"ok " + host}, 0, nil
}

func (f *fakeTransport) Copy(_ context.Context, _, _, host, remoteFile string) ([]string, int, error) {
	f.mu.Lock()
	f.copies = append(f.copies, host+":"+remoteFile)
	f.mu.Unlock()
	if f.fail[host] {
		return nil, remote.TransportFailure, errors.New("connection refused")
	}
	return nil, 0, nil
}

func (f *fakeTransport) commandsMatching(sub string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.commands {
		if strings.Contains(c, sub) {
			out = append(out, c)
		}
	}
	return out
}

func useFakeTransport(t *testing.T, ft *fakeTransport) {
	t.Helper()
	prevTransport, prevLocal := newTransport, newLocalHosts
	newTransport = func(config.Config) (remote.Transport, error) { return ft, nil }
	newLocalHosts = func() (*remotemgr.LocalHosts, error) { return nil, nil }
	t.Cleanup(func() {
		newTransport, newLocalHosts = prevTransport, prevLocal
	})
}

func useWorkdir(t *testing.T) string {
	t.Helper()
	prevDir, prevJSON, prevConfig := workDir, outputJSON, configPath
	workDir = t.TempDir()
	outputJSON = false
	configPath = ""
	t.Cleanup(func() {
		workDir, outputJSON, configPath = prevDir, prevJSON, prevConfig
	})
	return workDir
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitFatal, exitCode(errors.New("plain")))
	wrapped := errors.Join(errors.New("context"), degraded(errors.New("hosts failed")))
	assert.Equal(t, exitDegraded, exitCode(wrapped))
}

func TestSSHAllReportsEveryHost(t *testing.T) {
	useWorkdir(t)
	ft := &fakeTransport{fail: map[string]bool{"dn2": true}}
	useFakeTransport(t, ft)
	defer func() { sshallFlags = remoteFlags{} }()

	cmd := newSSHAllCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs([]string{"--hosts", "dn1,dn2,dn3", "--retries", "2", "--", "uptime"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, exitDegraded, exitCode(err))

	got := stdout.String()
	for _, want := range []string{"== dn1 (exit 0, 1 attempt(s))", "ok dn1", "== dn2 (exit 1, 2 attempt(s))", "== dn3 (exit 0"} {
		assert.Contains(t, got, want)
	}
	assert.Contains(t, stderr.String(), "manual remediation required on dn2")
	assert.Len(t, ft.commandsMatching("dn2: uptime"), 2)
}

func TestSSHAllJSON(t *testing.T) {
	useWorkdir(t)
	outputJSON = true
	useFakeTransport(t, &fakeTransport{})
	defer func() { sshallFlags = remoteFlags{} }()

	cmd := newSSHAllCmd()
	stdout := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--hosts", "dn1", "--", "hostname"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, stdout.String(), `"host": "dn1"`)
}

func TestSSHAllNeedsHosts(t *testing.T) {
	useWorkdir(t)
	useFakeTransport(t, &fakeTransport{})
	defer func() { sshallFlags = remoteFlags{} }()

	cmd := newSSHAllCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--", "true"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no hosts")
}

func TestSCPAllFailsWithHostList(t *testing.T) {
	dir := useWorkdir(t)
	ft := &fakeTransport{fail: map[string]bool{"dn1": true}}
	useFakeTransport(t, ft)
	defer func() { scpallFlags = remoteFlags{} }()

	writeFile(t, filepath.Join(dir, "hosts.conf"), "ntp.example.com\n")
	writeFile(t, filepath.Join(dir, "slaves"), "# fleet\ndn1\ndn2\n")

	cmd := newSCPAllCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs([]string{"--retries", "1", "hosts.conf", "/etc/hosts.conf"})

	err := cmd.Execute()
	var multi *remote.MultiHostCopyError
	require.ErrorAs(t, err, &multi)
	assert.Equal(t, []string{"dn1"}, multi.Hosts)
	assert.Equal(t, exitDegraded, exitCode(err))
	assert.Contains(t, stderr.String(), "manual remediation required on dn1")
	assert.Len(t, ft.copies, 2)
}

func TestPlanCommandMaster(t *testing.T) {
	prevRoles, prevJSON := planRoles, outputJSON
	defer func() { planRoles, outputJSON = prevRoles, prevJSON }()
	outputJSON = false

	cmd := newPlanCmd()
	stdout := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetArgs([]string{"--role", roles.Master})
	require.NoError(t, cmd.Execute())

	got := stdout.String()
	require.Contains(t, got, " 1. GlobalPrereq")
	pos := func(name string) int { return strings.Index(got, ". "+name) }
	for _, pair := range [][2]string{
		{roles.Hadoop, roles.Hive},
		{roles.Hadoop, roles.Pig},
		{roles.Portal, roles.Scribe},
		{roles.LogMover, roles.Scribe},
	} {
		assert.True(t, pos(pair[0]) >= 0 && pos(pair[0]) < pos(pair[1]), "expected %s before %s in:\n%s", pair[0], pair[1], got)
	}
}

func TestPlanCommandUnknownRole(t *testing.T) {
	prevRoles := planRoles
	defer func() { planRoles = prevRoles }()

	cmd := newPlanCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--role", "wizard"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wizard")
}

func TestRolesCommandJSON(t *testing.T) {
	prevJSON := outputJSON
	defer func() { outputJSON = prevJSON }()
	outputJSON = true

	cmd := newRolesCmd()
	stdout := &bytes.Buffer{}
	cmd.SetOut(stdout)
	require.NoError(t, cmd.Execute())
	got := stdout.String()
	assert.Contains(t, got, `"primitives"`)
	assert.Contains(t, got, `"name": "standalone"`)
}

func persistDefaultState(t *testing.T, dir string, roleNames ...string) {
	t.Helper()
	store := state.New(filepath.Join(dir, ".installer", "state"), nil)
	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path), 0o755))
	_, items, err := loadTools(newRegistry(), roles.Default(), store, roleNames)
	require.NoError(t, err)
	require.NoError(t, store.Persist(items))
}

func TestDeployCommandFromState(t *testing.T) {
	dir := useWorkdir(t)
	ft := &fakeTransport{}
	useFakeTransport(t, ft)
	defer func() { deployOpts, deployRoles = deployFlags{}, nil }()

	persistDefaultState(t, dir, roles.Master)
	writeFile(t, filepath.Join(dir, "dist", "installer.tar.gz"), "archive")

	cmd := newDeployCmd()
	stdout := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--hosts", "dn1,dn2", "--package", "dist/installer.tar.gz"})

	require.NoError(t, cmd.Execute())

	got := stdout.String()
	assert.Equal(t, 2, strings.Count(got, "installed"), "expected both hosts installed:\n%s", got)
	invocations := ft.commandsMatching("./installer")
	require.Len(t, invocations, 2)
	assert.Contains(t, invocations[0], "--unattend --as-slave")
	assert.Contains(t, invocations[0], "--role slave")
	require.Len(t, ft.copies, 2)
	assert.True(t, strings.HasSuffix(ft.copies[0], "/installer.tar.gz"), "copies = %v", ft.copies)
}

func TestDeployCommandDegraded(t *testing.T) {
	dir := useWorkdir(t)
	ft := &fakeTransport{fail: map[string]bool{"dn2": true}}
	useFakeTransport(t, ft)
	defer func() { deployOpts, deployRoles = deployFlags{}, nil }()

	persistDefaultState(t, dir, roles.Master)
	writeFile(t, filepath.Join(dir, "installer.tar.gz"), "archive")
	metrics := filepath.Join(dir, "metrics.prom")

	cmd := newDeployCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs([]string{"--hosts", "dn1,dn2", "--package", "installer.tar.gz", "--retries", "1", "--metrics-file", metrics})

	err := cmd.Execute()
	require.Equal(t, exitDegraded, exitCode(err), "expected degraded exit, got %v", err)
	assert.Contains(t, stdout.String(), "failed_at_mkdir")
	assert.Contains(t, stderr.String(), "manual remediation required on dn2")
	data, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), "installer_remote_failed_hosts_total")
}

func TestDeployCommandNeedsState(t *testing.T) {
	useWorkdir(t)
	useFakeTransport(t, &fakeTransport{})
	defer func() { deployOpts, deployRoles = deployFlags{}, nil }()

	cmd := newDeployCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--hosts", "dn1"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run install first")
}

func TestStateShow(t *testing.T) {
	dir := useWorkdir(t)
	persistDefaultState(t, dir, roles.Slave)

	cmd := newStateCmd()
	stdout := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetArgs([]string{"show"})
	require.NoError(t, cmd.Execute())
	got := stdout.String()
	assert.Contains(t, got, "(v1.0.0)")
	assert.Contains(t, got, "\nGlobalPrereq\n")
	assert.Contains(t, got, "\nHadoop\n")
}

func TestWorkspaceSlavesMergeSources(t *testing.T) {
	dir := useWorkdir(t)
	writeFile(t, filepath.Join(dir, "installer.yaml"), "slaves: [dn1, DN3]\n")
	writeFile(t, filepath.Join(dir, "slaves"), "dn2\ndn3\n")

	ws, err := openWorkspace()
	require.NoError(t, err)
	defer ws.Close()

	got, err := ws.slaves(nil, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"dn1", "dn3", "dn2"}, got)

	got, err = ws.slaves([]string{"x1", "x2"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"x1", "x2"}, got)

	_, err = ws.slaves(nil, "missing")
	assert.Error(t, err, "missing hosts file")
}
