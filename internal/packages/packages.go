// Package packages holds the installers for the components of the
// distribution.
package packages

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cloudera/llama-sub000/internal/roles"
	"github.com/cloudera/llama-sub000/internal/runner"
	"github.com/cloudera/llama-sub000/internal/tools"
)

// Property keys shared by the installers.
const (
	PropPrefix       = "install.prefix"
	PropUser         = "install.user"
	PropHadoopMaster = "hadoop.master"
	PropReplication  = "hadoop.replication"
	PropTmpDir       = "hadoop.tmp.dir"

	DefaultPrefix = "/usr/local/dist"
	DefaultUser   = "hadoop"
)

// Factories returns the constructor of every installer keyed by tool name.
func Factories() map[string]tools.Factory {
	return map[string]tools.Factory{
		roles.GlobalPrereq: func() tools.Tool { return NewGlobalPrereq() },
		roles.Hadoop:       func() tools.Tool { return NewHadoop() },
		roles.Hive:         func() tools.Tool { return NewHive() },
		roles.Pig:          func() tools.Tool { return NewPig() },
		roles.Portal:       func() tools.Tool { return NewPortal() },
		roles.LogMover:     func() tools.Tool { return NewLogMover() },
		roles.Scribe:       func() tools.Tool { return NewScribe() },
	}
}

// RegisterFactories makes every installer constructible through reg.
func RegisterFactories(reg *tools.Registry) {
	for name, f := range Factories() {
		reg.RegisterFactory(name, f)
	}
}

var hostname = os.Hostname

// base carries the bookkeeping every installer shares.
type base struct {
	name    string
	deps    []string
	state   tools.Record
	roles   []string
	version string
}

func newBase(name string, deps ...string) base {
	return base{name: name, deps: deps, state: tools.Record{}}
}

func (b *base) Name() string           { return b.name }
func (b *base) Dependencies() []string { return b.deps }
func (b *base) RedeployArgs() []string { return nil }

func (b *base) Precheck(context.Context, *tools.Env) error    { return nil }
func (b *base) Configure(context.Context, *tools.Env) error   { return nil }
func (b *base) Install(context.Context, *tools.Env) error     { return nil }
func (b *base) PostInstall(context.Context, *tools.Env) error { return nil }
func (b *base) Verify(context.Context, *tools.Env) error      { return nil }

func (b *base) PreserveState() (tools.Record, error) {
	out := make(tools.Record, len(b.state))
	for k, v := range b.state {
		out[k] = v
	}
	return out, nil
}

func (b *base) RestoreState(rec tools.Record, primitives []string, version string) error {
	b.state = tools.Record{}
	for k, v := range rec {
		b.state[k] = v
	}
	b.roles = append([]string(nil), primitives...)
	b.version = version
	return nil
}

// StateVersion is the format version the state was restored from, empty for
// a fresh tool.
func (b *base) StateVersion() string { return b.version }

// hasRole checks the selected roles, falling back to the roles the state was
// restored for.
func (b *base) hasRole(env *tools.Env, name string) bool {
	if env.HasRole(name) {
		return true
	}
	for _, r := range b.roles {
		if r == name {
			return true
		}
	}
	return false
}

// setting resolves key from properties, then restored state, then def, and
// records the result.
func (b *base) setting(env *tools.Env, key, def string) string {
	if v := b.state.Get(key); v != "" {
		def = v
	}
	v := env.Property(key, def)
	b.state[key] = v
	return v
}

// masterSetting resolves the hadoop master. On the master itself a loopback
// value is replaced by the machine's hostname so slaves can reach it.
func (b *base) masterSetting(env *tools.Env) string {
	master := b.setting(env, PropHadoopMaster, "localhost")
	if env.AsSlave || !isLoopback(master) {
		return master
	}
	if name := publicMaster(master); name != master {
		b.state[PropHadoopMaster] = name
		return name
	}
	return master
}

// tarballArgs forwards the tarball location of key to a slave invocation.
func (b *base) tarballArgs(key string) []string {
	if v := b.state.Get(key); v != "" {
		return []string{"--set", key + "=" + v}
	}
	return nil
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// publicMaster maps a loopback master to this machine's hostname.
func publicMaster(master string) string {
	if !isLoopback(master) {
		return master
	}
	name, err := hostname()
	if err != nil || name == "" || isLoopback(name) {
		return master
	}
	return strings.ToLower(name)
}

func (b *base) log(env *tools.Env, phase string) *logrus.Entry {
	return env.Logger().WithFields(logrus.Fields{"tool": b.name, "phase": phase})
}

// run executes a command through the environment's runner.
func run(ctx context.Context, env *tools.Env, command string, args ...string) error {
	if env == nil || env.Runner == nil {
		return fmt.Errorf("no command runner configured")
	}
	res, err := env.Runner.Run(ctx, command, args, runner.Options{})
	if err != nil {
		msg := strings.TrimSpace(string(res.Stderr))
		if msg != "" {
			return fmt.Errorf("%s %s: %w: %s", command, strings.Join(args, " "), err, msg)
		}
		return fmt.Errorf("%s %s: %w", command, strings.Join(args, " "), err)
	}
	return nil
}

// unpack extracts tarball into dir.
func unpack(ctx context.Context, env *tools.Env, tarball, dir string) error {
	if tarball == "" {
		return fmt.Errorf("no tarball configured")
	}
	if err := run(ctx, env, "mkdir", "-p", dir); err != nil {
		return err
	}
	return run(ctx, env, "tar", "xzf", tarball, "-C", dir, "--strip-components=1")
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func requireFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	return nil
}
