package config

import (
	"fmt"
	"os"
	"strings"
)

// ValidationResult captures a single validation finding.
type ValidationResult struct {
	Level   string `json:"level"` // "error" or "warning"
	Message string `json:"message"`
}

// RoleChecker recognises role names.
type RoleChecker interface {
	IsPrimitive(name string) bool
	IsPseudo(name string) bool
}

// ValidateStrict runs all validations against the config and returns
// structured results.
func (c Config) ValidateStrict(roles RoleChecker) []ValidationResult {
	var results []ValidationResult
	results = append(results, c.validateRoles(roles)...)
	results = append(results, c.validateRemote()...)
	results = append(results, c.validateFiles()...)
	results = append(results, c.validateSlaves()...)
	results = append(results, c.validatePackage()...)
	return results
}

// HasErrors reports whether any result is an error.
func HasErrors(results []ValidationResult) bool {
	for _, r := range results {
		if r.Level == "error" {
			return true
		}
	}
	return false
}

func (c Config) validateRoles(roles RoleChecker) []ValidationResult {
	if roles == nil {
		return nil
	}
	var results []ValidationResult
	for _, name := range c.Roles {
		if !roles.IsPrimitive(name) && !roles.IsPseudo(name) {
			results = append(results, ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("role %q is not a recognized role", name),
			})
		}
	}
	return results
}

func (c Config) validateRemote() []ValidationResult {
	var results []ValidationResult
	r := c.Remote
	switch r.Transport {
	case TransportExec, TransportNative:
	default:
		results = append(results, ValidationResult{
			Level:   "error",
			Message: fmt.Sprintf("remote.transport %q must be %q or %q", r.Transport, TransportExec, TransportNative),
		})
	}
	if r.Retries < 1 {
		results = append(results, ValidationResult{Level: "error", Message: "remote.retries must be at least 1"})
	}
	if r.Parallelism < 1 {
		results = append(results, ValidationResult{Level: "error", Message: "remote.parallelism must be at least 1"})
	}
	if r.CommandTimeoutSec < 0 || r.ConnectTimeoutSec < 0 {
		results = append(results, ValidationResult{Level: "error", Message: "remote timeouts must not be negative"})
	}
	if r.Transport == TransportNative && strings.TrimSpace(c.IdentityFile) == "" {
		results = append(results, ValidationResult{Level: "error", Message: "remote.transport native requires identity_file"})
	}
	if r.Insecure {
		results = append(results, ValidationResult{Level: "warning", Message: "remote.insecure disables host key verification"})
	}
	return results
}

func (c Config) validateFiles() []ValidationResult {
	var results []ValidationResult
	check := func(field, path string) {
		if strings.TrimSpace(path) == "" {
			return
		}
		if _, err := os.Stat(path); err != nil {
			results = append(results, ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("%s %q not found", field, path),
			})
		}
	}
	check("identity_file", c.IdentityFile)
	check("slaves_file", c.SlavesFile)
	check("properties_file", c.PropertiesFile)
	for _, kh := range c.Remote.KnownHosts {
		check("remote.known_hosts", kh)
	}
	return results
}

func (c Config) validateSlaves() []ValidationResult {
	var results []ValidationResult
	if c.SlavesFile != "" && len(c.Slaves) > 0 {
		results = append(results, ValidationResult{
			Level:   "warning",
			Message: "both slaves and slaves_file are set; the lists are merged",
		})
	}
	hasSlaves := c.SlavesFile != "" || len(c.Slaves) > 0
	if hasSlaves && strings.TrimSpace(c.HadoopMaster) == "" {
		results = append(results, ValidationResult{
			Level:   "warning",
			Message: "hadoop_master is empty; slaves will point at localhost",
		})
	}
	return results
}

func (c Config) validatePackage() []ValidationResult {
	var results []ValidationResult
	path := strings.TrimSpace(c.Package.Path)
	switch {
	case path == "":
		results = append(results, ValidationResult{
			Level:   "warning",
			Message: "package.path is empty; fleet deployment will build a package from the running installer",
		})
	case strings.HasPrefix(path, "s3://"):
		if strings.TrimSpace(c.Package.S3.Endpoint) == "" {
			results = append(results, ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("package.path %q needs package.s3.endpoint", path),
			})
		}
	default:
		if _, err := os.Stat(path); err != nil {
			results = append(results, ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("package.path %q not found", path),
			})
		}
	}
	return results
}
