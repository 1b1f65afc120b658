package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport names accepted in remote.transport.
const (
	TransportExec   = "exec"
	TransportNative = "native"
)

// Config captures the installation settings of a cluster.
type Config struct {
	Version        int           `yaml:"version"`
	Roles          []string      `yaml:"roles"`
	User           string        `yaml:"user"`
	IdentityFile   string        `yaml:"identity_file"`
	Prefix         string        `yaml:"prefix"`
	UploadPrefix   string        `yaml:"upload_prefix"`
	HadoopMaster   string        `yaml:"hadoop_master"`
	SlavesFile     string        `yaml:"slaves_file"`
	Slaves         []string      `yaml:"slaves"`
	PropertiesFile string        `yaml:"properties_file"`
	Remote         RemoteConfig  `yaml:"remote"`
	Package        PackageConfig `yaml:"package"`
}

// RemoteConfig tunes the fleet execution engine.
type RemoteConfig struct {
	Transport         string   `yaml:"transport"`
	Retries           int      `yaml:"retries"`
	Parallelism       int      `yaml:"parallelism"`
	CommandTimeoutSec int      `yaml:"command_timeout_s"`
	ConnectTimeoutSec int      `yaml:"connect_timeout_s"`
	Port              int      `yaml:"port"`
	SSHOptions        string   `yaml:"ssh_options"`
	KnownHosts        []string `yaml:"known_hosts"`
	Insecure          bool     `yaml:"insecure"`
}

// CommandTimeout bounds a single remote attempt.
func (r RemoteConfig) CommandTimeout() time.Duration {
	return time.Duration(r.CommandTimeoutSec) * time.Second
}

// ConnectTimeout bounds connection setup.
func (r RemoteConfig) ConnectTimeout() time.Duration {
	return time.Duration(r.ConnectTimeoutSec) * time.Second
}

// PackageConfig locates the installer archive pushed to slaves.
type PackageConfig struct {
	// Path is a local archive or an s3://bucket/key URL.
	Path string   `yaml:"path"`
	S3   S3Config `yaml:"s3"`
}

// S3Config holds object storage settings for s3:// package paths.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	UseSSL    *bool  `yaml:"use_ssl,omitempty"`
}

// SSL returns the effective TLS flag applying defaults.
func (s S3Config) SSL() bool {
	if s.UseSSL == nil {
		return true
	}
	return *s.UseSSL
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Version:      1,
		User:         "hadoop",
		Prefix:       "/usr/local/dist",
		UploadPrefix: "/tmp/installer-upload",
		Remote: RemoteConfig{
			Transport:         TransportExec,
			Retries:           3,
			Parallelism:       10,
			CommandTimeoutSec: 600,
			ConnectTimeoutSec: 10,
		},
		Package: PackageConfig{
			S3: S3Config{
				Region: "us-east-1",
				UseSSL: boolPtr(true),
			},
		},
	}
}

// Load reads the YAML configuration from disk if it exists, otherwise returns
// the default configuration.
func Load(path string) (Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			cfg.ApplyDefaults()
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults ensures fields fall back to defaults when the YAML omits
// them.
func (c *Config) ApplyDefaults() {
	defaults := Default()

	if c.Version == 0 {
		c.Version = defaults.Version
	}
	if c.User == "" {
		c.User = defaults.User
	}
	if c.Prefix == "" {
		c.Prefix = defaults.Prefix
	}
	if c.UploadPrefix == "" {
		c.UploadPrefix = defaults.UploadPrefix
	}
	if c.Remote.Transport == "" {
		c.Remote.Transport = defaults.Remote.Transport
	}
	if c.Remote.Retries == 0 {
		c.Remote.Retries = defaults.Remote.Retries
	}
	if c.Remote.Parallelism == 0 {
		c.Remote.Parallelism = defaults.Remote.Parallelism
	}
	if c.Remote.CommandTimeoutSec == 0 {
		c.Remote.CommandTimeoutSec = defaults.Remote.CommandTimeoutSec
	}
	if c.Remote.ConnectTimeoutSec == 0 {
		c.Remote.ConnectTimeoutSec = defaults.Remote.ConnectTimeoutSec
	}
	if c.Package.S3.Region == "" {
		c.Package.S3.Region = defaults.Package.S3.Region
	}
	if c.Package.S3.UseSSL == nil {
		c.Package.S3.UseSSL = boolPtr(true)
	}
}

// Marshal returns the YAML encoding of the configuration.
func (c Config) Marshal() ([]byte, error) {
	buf, err := yaml.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return buf, nil
}

func boolPtr(v bool) *bool {
	return &v
}
