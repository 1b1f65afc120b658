package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudera/llama-sub000/internal/config"
)

func TestResolveUsesFlag(t *testing.T) {
	root := t.TempDir()
	wp, err := Resolve(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "installer.yaml"), wp.ConfigFile)
	assert.Equal(t, filepath.Join(root, ".installer", "state"), wp.StateFile)
}

func TestApplyConfigRelative(t *testing.T) {
	root := t.TempDir()
	wp := newWorkPaths(root)

	cfg := config.Config{SlavesFile: "conf/slaves", PropertiesFile: "install.properties"}
	applied := ApplyConfig(wp, cfg)

	assert.Equal(t, filepath.Join(root, "conf/slaves"), applied.SlavesFile)
	assert.Equal(t, filepath.Join(root, "install.properties"), applied.PropertiesFile)
}

func TestApplyConfigAbsolute(t *testing.T) {
	wp := newWorkPaths(t.TempDir())

	abs := filepath.Join(t.TempDir(), "slaves")
	applied := ApplyConfig(wp, config.Config{SlavesFile: abs})
	assert.Equal(t, abs, applied.SlavesFile)
	assert.Empty(t, applied.PropertiesFile, "properties file should stay unset")
}

func TestEnsureMetaDirs(t *testing.T) {
	wp := newWorkPaths(t.TempDir())
	require.NoError(t, wp.EnsureMetaDirs())
	for _, dir := range []string{wp.MetaDir, wp.PackagesDir, wp.LogsDir} {
		ok, err := DirExists(dir)
		require.NoError(t, err)
		assert.True(t, ok, "%s not created", dir)
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	ok, err := FileExists(path)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = FileExists(dir)
	assert.False(t, ok, "directory reported as file")

	ok, err = FileExists(filepath.Join(dir, "missing"))
	assert.NoError(t, err)
	assert.False(t, ok)
}
