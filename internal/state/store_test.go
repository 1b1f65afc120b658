package state

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudera/llama-sub000/internal/roles"
	"github.com/cloudera/llama-sub000/internal/tools"
)

type memTool struct {
	name     string
	deps     []string
	rec      tools.Record
	roles    []string
	version  string
	restored bool
}

func (m *memTool) Name() string                                  { return m.name }
func (m *memTool) Dependencies() []string                        { return m.deps }
func (m *memTool) Precheck(context.Context, *tools.Env) error    { return nil }
func (m *memTool) Configure(context.Context, *tools.Env) error   { return nil }
func (m *memTool) Install(context.Context, *tools.Env) error     { return nil }
func (m *memTool) PostInstall(context.Context, *tools.Env) error { return nil }
func (m *memTool) Verify(context.Context, *tools.Env) error      { return nil }
func (m *memTool) PreserveState() (tools.Record, error)          { return m.rec, nil }
func (m *memTool) RedeployArgs() []string                        { return nil }

func (m *memTool) RestoreState(rec tools.Record, rs []string, version string) error {
	m.rec = rec
	m.roles = rs
	m.version = version
	m.restored = true
	return nil
}

func newRegistry() *tools.Registry {
	reg := tools.NewRegistry()
	for _, name := range []string{roles.GlobalPrereq, roles.Hadoop, roles.Hive, roles.Pig, roles.Portal, roles.LogMover, roles.Scribe} {
		reg.RegisterFactory(name, func() tools.Tool { return &memTool{name: name, rec: tools.Record{}} })
	}
	return reg
}

func TestPersistAndRestoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta", "state")
	store := New(path, nil)

	items := []tools.Tool{
		&memTool{name: roles.GlobalPrereq, rec: tools.Record{"prefix": "/opt/dist", "user": "hadoop"}},
		&memTool{name: roles.Hadoop, rec: tools.Record{"master": "nn.example.com", "formatted": "true"}},
	}
	require.NoError(t, store.Persist(items))
	_, err := os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err), "temporary file left behind: %v", err)

	reg := newRegistry()
	got, err := store.Restore(reg, roles.Default(), []string{roles.Slave})
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i, want := range items {
		mt := got[i].(*memTool)
		assert.Equal(t, want.Name(), mt.name)
		assert.True(t, mt.restored, "%s was not restored", mt.name)
		assert.Equal(t, FormatVersion, mt.version)
		wantRec, _ := want.PreserveState()
		assert.Equal(t, wantRec, mt.rec)
		assert.Equal(t, []string{roles.DataNode, roles.TaskTracker}, mt.roles)
	}
}

func TestRestoreAddsToolsMissingFromState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")
	store := New(path, nil)
	require.NoError(t, store.Persist([]tools.Tool{&memTool{name: roles.GlobalPrereq}}))

	reg := newRegistry()
	got, err := store.Restore(reg, roles.Default(), []string{roles.HiveRole})
	require.NoError(t, err)
	names := make([]string, len(got))
	for i, tl := range got {
		names[i] = tl.Name()
	}
	require.Equal(t, []string{roles.GlobalPrereq, roles.Hadoop, roles.Hive}, names)
	assert.False(t, got[1].(*memTool).restored, "Hadoop was not persisted and should keep default state")
}

func TestPersistedFileLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")
	store := New(path, nil)
	require.NoError(t, store.Persist([]tools.Tool{&memTool{name: "Hadoop", rec: tools.Record{"b": "2", "a": "1"}}}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "installer-state v1.0.0\nHadoop\n{\"a\":\"1\",\"b\":\"2\"}\n", string(data))
}

func TestRestoreRejectsUnknownVersion(t *testing.T) {
	cases := map[string]string{
		"garbled":  "installer-stat v1.0.0\n",
		"newer":    "installer-state v1.4.0\n",
		"major":    "installer-state v2.0.0\n",
		"invalid":  "installer-state banana\n",
		"empty":    "",
		"no-field": "installer-state\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state")
			require.NoError(t, os.WriteFile(path, []byte(content+"Hadoop\n{}\n"), 0o644))
			reg := newRegistry()
			_, err := New(path, nil).Restore(reg, roles.Default(), []string{roles.Slave})
			var serr *SerializationError
			require.ErrorAs(t, err, &serr)
			assert.Empty(t, reg.List(), "registry should be untouched")
		})
	}
}

func TestRestoreRejectsUnknownTool(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")
	body := "installer-state v1.0.0\nGlobalPrereq\n{}\nMystery\n{}\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	reg := newRegistry()
	_, err := New(path, nil).Restore(reg, roles.Default(), []string{roles.Slave})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Mystery")
	assert.Empty(t, reg.List(), "registry should be untouched")
}

func TestDecodeMissingBlob(t *testing.T) {
	_, err := Decode(strings.NewReader("installer-state v1.0.0\nHadoop\n"))
	assert.Error(t, err, "missing blob")
	_, err = Decode(strings.NewReader("installer-state v1.0.0\nHadoop\n\n"))
	assert.Error(t, err, "empty blob")
}

func TestReadMissingFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent"), nil).Read()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCompatible(t *testing.T) {
	tests := []struct {
		version string
		want    bool
	}{
		{"v1.0.0", true},
		{"v0.9.0", false},
		{"v1.1.0", false},
		{"v2.0.0", false},
		{"1.0.0", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Compatible(tt.version), "Compatible(%q)", tt.version)
	}
}
