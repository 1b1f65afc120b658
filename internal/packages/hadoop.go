package packages

import (
	"context"
	"encoding/xml"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cloudera/llama-sub000/internal/roles"
	"github.com/cloudera/llama-sub000/internal/runner"
	"github.com/cloudera/llama-sub000/internal/tools"
)

const (
	hadoopTarball  = "hadoop.tarball"
	nameNodePort   = 9000
	jobTrackerPort = 9001
	formattedKey   = "namenode.formatted"
)

// Hadoop installs the core distribution and writes its site configuration.
type Hadoop struct {
	base
}

func NewHadoop() *Hadoop {
	return &Hadoop{base: newBase(roles.Hadoop, roles.GlobalPrereq)}
}

// Home is the installation directory of Hadoop.
func (h *Hadoop) Home() string {
	return filepath.Join(h.state.Get(PropPrefix), "hadoop")
}

// Master returns the host running the namenode and jobtracker.
func (h *Hadoop) Master() string { return h.state.Get(PropHadoopMaster) }

func (h *Hadoop) Configure(_ context.Context, env *tools.Env) error {
	h.setting(env, PropPrefix, DefaultPrefix)
	master := h.masterSetting(env)
	h.setting(env, PropReplication, "3")
	h.setting(env, PropTmpDir, "/tmp/hadoop-${user.name}")
	h.setting(env, hadoopTarball, "")
	if env.AsSlave && isLoopback(master) {
		return fmt.Errorf("%s: a slave needs --hadoop-master", h.name)
	}
	return nil
}

func (h *Hadoop) Install(ctx context.Context, env *tools.Env) error {
	log := h.log(env, "install")
	log.WithField("home", h.Home()).Info("unpacking hadoop")
	if err := unpack(ctx, env, h.state.Get(hadoopTarball), h.Home()); err != nil {
		return fmt.Errorf("%s: %w", h.name, err)
	}
	data, err := h.siteXML()
	if err != nil {
		return err
	}
	return writeFile(h.sitePath(), data)
}

func (h *Hadoop) PostInstall(ctx context.Context, env *tools.Env) error {
	if env.AsSlave || !h.hasRole(env, roles.NameNode) || h.state.Bool(formattedKey) {
		return nil
	}
	h.log(env, "postinstall").Info("formatting namenode")
	if env.Runner == nil {
		return fmt.Errorf("%s: no command runner configured", h.name)
	}
	bin := filepath.Join(h.Home(), "bin", "hadoop")
	if _, err := env.Runner.Run(ctx, bin, []string{"namenode", "-format"}, runner.Options{Stdin: strings.NewReader("Y\n")}); err != nil {
		return fmt.Errorf("%s: format namenode: %w", h.name, err)
	}
	h.state.SetBool(formattedKey, true)
	return nil
}

func (h *Hadoop) Verify(_ context.Context, _ *tools.Env) error {
	return requireFile(h.sitePath())
}

func (h *Hadoop) RedeployArgs() []string {
	var args []string
	if master := h.Master(); master != "" {
		args = append(args, "--hadoop-master", publicMaster(master))
	}
	return append(args, h.tarballArgs(hadoopTarball)...)
}

func (h *Hadoop) sitePath() string {
	return filepath.Join(h.Home(), "conf", "hadoop-site.xml")
}

type siteProperty struct {
	Name  string `xml:"name"`
	Value string `xml:"value"`
}

type siteConfiguration struct {
	XMLName    xml.Name       `xml:"configuration"`
	Properties []siteProperty `xml:"property"`
}

func (h *Hadoop) siteXML() ([]byte, error) {
	master := h.Master()
	conf := siteConfiguration{Properties: []siteProperty{
		{Name: "fs.default.name", Value: fmt.Sprintf("hdfs://%s:%d", master, nameNodePort)},
		{Name: "mapred.job.tracker", Value: fmt.Sprintf("%s:%d", master, jobTrackerPort)},
		{Name: "dfs.replication", Value: h.state.Get(PropReplication)},
		{Name: "hadoop.tmp.dir", Value: h.state.Get(PropTmpDir)},
	}}
	body, err := xml.MarshalIndent(conf, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%s: encode site config: %w", h.name, err)
	}
	out := []byte(xml.Header)
	out = append(out, body...)
	return append(out, '\n'), nil
}
