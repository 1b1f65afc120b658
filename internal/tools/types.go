package tools

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/cloudera/llama-sub000/internal/runner"
)

// Tool is an installable component of the distribution. Implementations own
// their configuration and the layout of the state they preserve.
type Tool interface {
	Name() string
	Dependencies() []string

	Precheck(ctx context.Context, env *Env) error
	Configure(ctx context.Context, env *Env) error
	Install(ctx context.Context, env *Env) error
	PostInstall(ctx context.Context, env *Env) error
	Verify(ctx context.Context, env *Env) error

	PreserveState() (Record, error)
	RestoreState(rec Record, roles []string, version string) error

	// RedeployArgs lists the installer flags this tool contributes when the
	// installer is re-invoked on a slave.
	RedeployArgs() []string
}

// Factory constructs a tool with default state.
type Factory func() Tool

// PropertySource resolves configuration values for tools.
type PropertySource interface {
	GetProperty(key, def string) string
}

// Env carries the collaborators a tool needs during its phases.
type Env struct {
	Props    PropertySource
	Runner   runner.Runner
	Log      *logrus.Logger
	Out      io.Writer
	Roles    []string
	Unattend bool
	AsSlave  bool
}

// HasRole reports whether the primitive role is selected for this host.
func (e *Env) HasRole(name string) bool {
	if e == nil {
		return false
	}
	for _, r := range e.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// Property returns the named property or def.
func (e *Env) Property(key, def string) string {
	if e == nil || e.Props == nil {
		return def
	}
	return e.Props.GetProperty(key, def)
}

// Printf writes progress output when an output writer is configured.
func (e *Env) Printf(format string, args ...any) {
	if e == nil || e.Out == nil {
		return
	}
	fmt.Fprintf(e.Out, format, args...)
}

// Logger returns the configured logger or a discarding one.
func (e *Env) Logger() *logrus.Logger {
	if e != nil && e.Log != nil {
		return e.Log
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Record is the structured key/value state a tool preserves between
// installer invocations.
type Record map[string]string

// Get returns the value for key, or "".
func (r Record) Get(key string) string {
	if r == nil {
		return ""
	}
	return r[key]
}

// Bool parses key as a boolean, defaulting to false.
func (r Record) Bool(key string) bool {
	v, err := strconv.ParseBool(r.Get(key))
	return err == nil && v
}

// SetBool stores a boolean value.
func (r Record) SetBool(key string, v bool) {
	r[key] = strconv.FormatBool(v)
}
