package packages

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cloudera/llama-sub000/internal/roles"
	"github.com/cloudera/llama-sub000/internal/tools"
)

// component is an installer that unpacks one tarball below the prefix and
// optionally writes a configuration file next to it.
type component struct {
	base
	dir    string
	config func(c *component) (name string, data []byte)
}

func (c *component) tarballKey() string {
	return strings.ToLower(c.name) + ".tarball"
}

// Home is the installation directory of the component.
func (c *component) Home() string {
	return filepath.Join(c.state.Get(PropPrefix), c.dir)
}

func (c *component) Configure(_ context.Context, env *tools.Env) error {
	c.setting(env, PropPrefix, DefaultPrefix)
	c.masterSetting(env)
	c.setting(env, c.tarballKey(), "")
	return nil
}

func (c *component) RedeployArgs() []string {
	return c.tarballArgs(c.tarballKey())
}

func (c *component) Install(ctx context.Context, env *tools.Env) error {
	c.log(env, "install").WithField("home", c.Home()).Info("unpacking")
	if err := unpack(ctx, env, c.state.Get(c.tarballKey()), c.Home()); err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}
	if c.config == nil {
		return nil
	}
	name, data := c.config(c)
	return writeFile(filepath.Join(c.Home(), name), data)
}

func (c *component) Verify(_ context.Context, _ *tools.Env) error {
	if c.config != nil {
		name, _ := c.config(c)
		return requireFile(filepath.Join(c.Home(), name))
	}
	return requireFile(c.Home())
}

func hadoopHome(c *component) string {
	return filepath.Join(c.state.Get(PropPrefix), "hadoop")
}

func envFile(pairs ...string) []byte {
	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Fprintf(&b, "%s=%s\n", pairs[i], pairs[i+1])
	}
	return []byte(b.String())
}

// Hive is the SQL layer on top of Hadoop.
type Hive struct{ component }

func NewHive() *Hive {
	return &Hive{component{
		base: newBase(roles.Hive, roles.GlobalPrereq, roles.Hadoop),
		dir:  "hive",
		config: func(c *component) (string, []byte) {
			return "conf/hive-env.sh", envFile("HADOOP_HOME", hadoopHome(c), "HIVE_HOME", c.Home())
		},
	}}
}

// Pig is the dataflow language on top of Hadoop.
type Pig struct{ component }

func NewPig() *Pig {
	return &Pig{component{
		base: newBase(roles.Pig, roles.Hadoop, roles.GlobalPrereq),
		dir:  "pig",
		config: func(c *component) (string, []byte) {
			return "conf/pig.env", envFile("HADOOP_HOME", hadoopHome(c), "PIG_HOME", c.Home())
		},
	}}
}

// Portal is the cluster web portal.
type Portal struct{ component }

func NewPortal() *Portal {
	return &Portal{component{
		base: newBase(roles.Portal, roles.Hadoop),
		dir:  "portal",
		config: func(c *component) (string, []byte) {
			return "portal.env", envFile("HADOOP_HOME", hadoopHome(c), "HADOOP_MASTER", c.state.Get(PropHadoopMaster))
		},
	}}
}

// LogMover ships collected logs into the cluster.
type LogMover struct{ component }

func NewLogMover() *LogMover {
	return &LogMover{component{
		base: newBase(roles.LogMover, roles.GlobalPrereq),
		dir:  "logmover",
		config: func(c *component) (string, []byte) {
			return "logmover.env", envFile("LOGMOVER_HOME", c.Home(), "LOG_DIR", filepath.Join(c.Home(), "logs"))
		},
	}}
}

const scribePort = 1463

// Scribe aggregates logs on the master.
type Scribe struct{ component }

func NewScribe() *Scribe {
	return &Scribe{component{
		base: newBase(roles.Scribe, roles.Hadoop, roles.LogMover, roles.Portal),
		dir:  "scribe",
		config: func(c *component) (string, []byte) {
			conf := fmt.Sprintf("port=%d\n<store>\ncategory=default\ntype=network\nremote_host=%s\nremote_port=%d\n</store>\n",
				scribePort, c.state.Get(PropHadoopMaster), scribePort)
			return "scribe.conf", []byte(conf)
		},
	}}
}
