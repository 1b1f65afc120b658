package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment variables that override properties.
const EnvPrefix = "INSTALLER"

// Properties resolves key/value settings for the installers from a Java
// style properties file, INSTALLER_* environment variables and explicit
// overrides, in increasing order of precedence.
type Properties struct {
	v *viper.Viper
}

// NewProperties returns properties backed only by the environment.
func NewProperties() *Properties {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return &Properties{v: v}
}

// LoadProperties reads the properties file at path. An empty path yields
// environment-only properties.
func LoadProperties(path string) (*Properties, error) {
	p := NewProperties()
	if strings.TrimSpace(path) == "" {
		return p, nil
	}
	p.v.SetConfigFile(path)
	p.v.SetConfigType("properties")
	if err := p.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("load properties %q: %w", path, err)
	}
	return p, nil
}

// GetProperty returns the value for key or def when it is unset.
func (p *Properties) GetProperty(key, def string) string {
	if p == nil || p.v == nil {
		return def
	}
	if !p.v.IsSet(key) {
		return def
	}
	return p.v.GetString(key)
}

// Set overrides key for the rest of the run.
func (p *Properties) Set(key, value string) {
	p.v.Set(key, value)
}

// SetIfNotEmpty overrides key only when value is non-empty.
func (p *Properties) SetIfNotEmpty(key, value string) {
	if strings.TrimSpace(value) != "" {
		p.Set(key, value)
	}
}

// Keys lists every known key, sorted.
func (p *Properties) Keys() []string {
	keys := p.v.AllKeys()
	sort.Strings(keys)
	return keys
}

// LoadDotEnv loads the given .env files into the process environment.
// Missing files are skipped; existing variables are not overwritten.
func LoadDotEnv(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat %s: %w", p, err)
		}
		existing = append(existing, p)
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// ApplyEnv fills secrets that are kept out of the YAML file from the
// environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvPrefix + "_S3_ACCESS_KEY"); v != "" {
		c.Package.S3.AccessKey = v
	}
	if v := os.Getenv(EnvPrefix + "_S3_SECRET_KEY"); v != "" {
		c.Package.S3.SecretKey = v
	}
	if v := os.Getenv(EnvPrefix + "_S3_ENDPOINT"); v != "" {
		c.Package.S3.Endpoint = v
	}
}
