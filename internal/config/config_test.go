package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRoles map[string]bool

func (f fakeRoles) IsPrimitive(name string) bool { return f[name] }
func (f fakeRoles) IsPseudo(name string) bool    { return name == "master" }

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "installer.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "hadoop", cfg.User)
	assert.Equal(t, 3, cfg.Remote.Retries)
	assert.Equal(t, TransportExec, cfg.Remote.Transport)
	assert.True(t, cfg.Package.S3.SSL(), "TLS by default")
}

func TestLoadAppliesDefaultsToPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "installer.yaml")
	body := `roles: [master]
hadoop_master: nn.example.com
remote:
  parallelism: 4
  command_timeout_s: 30
package:
  s3:
    use_ssl: false
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Remote.Parallelism)
	assert.Equal(t, 3, cfg.Remote.Retries)
	assert.Equal(t, 30*time.Second, cfg.Remote.CommandTimeout())
	assert.False(t, cfg.Package.S3.SSL(), "use_ssl false was overridden")
	assert.Equal(t, "nn.example.com", cfg.HadoopMaster)
	assert.Len(t, cfg.Roles, 1)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "installer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roles: [\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestMarshalWritesDefaults(t *testing.T) {
	cfg := Default()
	cfg.Roles = []string{"slave"}
	data, err := cfg.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "upload_prefix: /tmp/installer-upload")
}

func TestValidateStrict(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Roles = []string{"master", "datanode", "wizard"}
	cfg.Remote.Transport = "telnet"
	cfg.Remote.Retries = 0
	cfg.Remote.Insecure = true
	cfg.SlavesFile = filepath.Join(dir, "slaves")
	cfg.Package.Path = "s3://bucket/pkg.tgz"

	results := cfg.ValidateStrict(fakeRoles{"datanode": true})
	var errs, warns []string
	for _, r := range results {
		if r.Level == "error" {
			errs = append(errs, r.Message)
		} else {
			warns = append(warns, r.Message)
		}
	}
	wantErrs := []string{"wizard", "telnet", "retries", "slaves_file", "s3.endpoint"}
	require.Len(t, errs, len(wantErrs), "errors = %v", errs)
	for i, w := range wantErrs {
		assert.Contains(t, errs[i], w, "error %d", i)
	}
	assert.Len(t, warns, 2, "warnings = %v", warns)
	assert.True(t, HasErrors(results))
}

func TestValidateNativeNeedsIdentity(t *testing.T) {
	cfg := Default()
	cfg.Remote.Transport = TransportNative
	cfg.Package.Path = "s3://b/k"
	cfg.Package.S3.Endpoint = "s3.local"
	results := cfg.ValidateStrict(nil)
	assert.True(t, HasErrors(results), "expected identity error, got %v", results)
}

func TestPropertiesPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "install.properties")
	body := "install.prefix=/opt/dist\nhadoop.master=nn1\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv("INSTALLER_HADOOP_MASTER", "nn-env")

	p, err := LoadProperties(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/dist", p.GetProperty("install.prefix", "/usr"))
	assert.Equal(t, "nn-env", p.GetProperty("hadoop.master", ""), "env override")
	assert.Equal(t, "fallback", p.GetProperty("missing.key", "fallback"))

	p.Set("hadoop.master", "nn-flag")
	assert.Equal(t, "nn-flag", p.GetProperty("hadoop.master", ""), "explicit override")
}

func TestLoadPropertiesMissingFile(t *testing.T) {
	_, err := LoadProperties(filepath.Join(t.TempDir(), "none.properties"))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("INSTALLER_S3_ACCESS_KEY=from-dotenv\n"), 0o644))
	t.Setenv("INSTALLER_S3_ACCESS_KEY", "")
	os.Unsetenv("INSTALLER_S3_ACCESS_KEY")

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "absent.env"), path))
	cfg := Default()
	cfg.ApplyEnv()
	assert.Equal(t, "from-dotenv", cfg.Package.S3.AccessKey)
}
