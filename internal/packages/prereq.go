package packages

import (
	"context"
	"fmt"

	"github.com/cloudera/llama-sub000/internal/roles"
	"github.com/cloudera/llama-sub000/internal/tools"
)

// GlobalPrereq prepares the install prefix and checks the local binaries
// every other installer relies on.
type GlobalPrereq struct {
	base

	probe func(ctx context.Context, env *tools.Env) []tools.Status
}

func NewGlobalPrereq() *GlobalPrereq {
	return &GlobalPrereq{
		base: newBase(roles.GlobalPrereq),
		probe: func(ctx context.Context, env *tools.Env) []tools.Status {
			return tools.Probe(ctx, env.Runner, "ssh", "scp", "tar")
		},
	}
}

func (g *GlobalPrereq) Precheck(ctx context.Context, env *tools.Env) error {
	statuses := g.probe(ctx, env)
	for _, st := range statuses {
		g.log(env, "precheck").WithField("binary", st.Tool).WithField("version", st.Version).Debug("probed")
	}
	return tools.Missing(statuses)
}

func (g *GlobalPrereq) Configure(_ context.Context, env *tools.Env) error {
	prefix := g.setting(env, PropPrefix, DefaultPrefix)
	user := g.setting(env, PropUser, DefaultUser)
	if prefix == "" {
		return fmt.Errorf("%s: install prefix is empty", g.name)
	}
	env.Printf("Installing into %s as %s\n", prefix, user)
	return nil
}

func (g *GlobalPrereq) Install(ctx context.Context, env *tools.Env) error {
	g.log(env, "install").WithField("prefix", g.Prefix()).Info("creating prefix")
	return run(ctx, env, "mkdir", "-p", g.Prefix())
}

func (g *GlobalPrereq) Verify(_ context.Context, _ *tools.Env) error {
	return requireFile(g.Prefix())
}

func (g *GlobalPrereq) RedeployArgs() []string {
	var args []string
	if g.Prefix() != "" {
		args = append(args, "--prefix", g.Prefix())
	}
	if user := g.state.Get(PropUser); user != "" {
		args = append(args, "--set", PropUser+"="+user)
	}
	return args
}

// Prefix returns the configured install prefix.
func (g *GlobalPrereq) Prefix() string { return g.state.Get(PropPrefix) }
