package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/cloudera/llama-sub000/internal/artifact"
	"github.com/cloudera/llama-sub000/internal/config"
	"github.com/cloudera/llama-sub000/internal/logx"
	"github.com/cloudera/llama-sub000/internal/paths"
	"github.com/cloudera/llama-sub000/internal/remote"
	"github.com/cloudera/llama-sub000/internal/remotemgr"
	"github.com/cloudera/llama-sub000/internal/runner"
	"github.com/cloudera/llama-sub000/pkg/hostlist"
)

const localHostCacheSize = 256

var (
	newRunner     = func() runner.Runner { return runner.CmdRunner{} }
	newTransport  = transportFor
	newLocalHosts = func() (*remotemgr.LocalHosts, error) { return remotemgr.NewLocalHosts(localHostCacheSize) }
)

// workspace bundles what every command loads from the working directory.
type workspace struct {
	paths  paths.WorkPaths
	cfg    config.Config
	log    *logrus.Logger
	closer io.Closer
}

func openWorkspace() (*workspace, error) {
	wp, err := paths.Resolve(workDir)
	if err != nil {
		return nil, err
	}
	if err := config.LoadDotEnv(wp.EnvFile); err != nil {
		return nil, err
	}

	cfgFile := wp.ConfigFile
	if configPath != "" {
		cfgFile = wp.Resolve(configPath)
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	wp = paths.ApplyConfig(wp, cfg)

	if err := wp.EnsureMetaDirs(); err != nil {
		return nil, err
	}
	log, closer, err := logx.New(wp, verboseLogs)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"workdir": wp.Root, "config": cfgFile}).Debug("workspace opened")
	return &workspace{paths: wp, cfg: cfg, log: log, closer: closer}, nil
}

func (w *workspace) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

// slaves merges the hosts named on the command line, in the config and in
// the slaves file, keeping first appearance order. An explicit hosts flag
// replaces the other sources.
func (w *workspace) slaves(flagHosts []string, hostsFile string) ([]string, error) {
	var sources [][]string
	if len(flagHosts) > 0 {
		hosts, err := hostlist.Split(strings.Join(flagHosts, ","))
		if err != nil {
			return nil, err
		}
		sources = append(sources, hosts)
	} else {
		sources = append(sources, w.cfg.Slaves)
		file := w.paths.SlavesFile
		if hostsFile != "" {
			file = w.paths.Resolve(hostsFile)
		}
		exists, err := paths.FileExists(file)
		if err != nil {
			return nil, err
		}
		if exists {
			hosts, err := hostlist.Load(file)
			if err != nil {
				return nil, err
			}
			sources = append(sources, hosts)
		} else if hostsFile != "" {
			return nil, fmt.Errorf("hosts file %s does not exist", file)
		}
	}

	seen := make(map[string]bool)
	var out []string
	for _, list := range sources {
		for _, h := range list {
			h = strings.ToLower(strings.TrimSpace(h))
			if h == "" || seen[h] {
				continue
			}
			seen[h] = true
			out = append(out, h)
		}
	}
	return out, nil
}

func (w *workspace) s3Config() artifact.S3Config {
	s3 := w.cfg.Package.S3
	return artifact.S3Config{
		Endpoint:  s3.Endpoint,
		Region:    s3.Region,
		AccessKey: s3.AccessKey,
		SecretKey: s3.SecretKey,
		UseSSL:    s3.SSL(),
	}
}

// packagePath returns a local path for the installer archive, downloading it
// when it lives in object storage.
func (w *workspace) packagePath(ctx context.Context, location string) (string, error) {
	if location == "" {
		location = w.cfg.Package.Path
	}
	if location == "" {
		return "", fmt.Errorf("no installer package: set package.path in %s or pass --package", w.paths.ConfigFile)
	}
	if _, isRemote, err := artifact.ParseURL(location); err != nil {
		return "", err
	} else if !isRemote {
		location = w.paths.Resolve(location)
	}
	return artifact.Resolve(ctx, location, w.paths.PackagesDir, w.s3Config())
}

func transportFor(cfg config.Config) (remote.Transport, error) {
	switch cfg.Remote.Transport {
	case config.TransportNative:
		t, err := remote.NewSSHTransport(remote.SSHConfig{
			IdentityFile: cfg.IdentityFile,
			KnownHosts:   cfg.Remote.KnownHosts,
			Insecure:     cfg.Remote.Insecure,
			Port:         cfg.Remote.Port,
			DialTimeout:  cfg.Remote.ConnectTimeout(),
		})
		if err != nil {
			return nil, err
		}
		return t, nil
	case "", config.TransportExec:
		t, err := remote.NewExecTransport(newRunner(), remote.ExecConfig{
			IdentityFile:   cfg.IdentityFile,
			Port:           cfg.Remote.Port,
			ConnectTimeout: cfg.Remote.ConnectTimeout(),
			ExtraOptions:   cfg.Remote.SSHOptions,
		})
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unknown remote transport %q", cfg.Remote.Transport)
	}
}

func (w *workspace) engine() (*remote.Engine, error) {
	t, err := newTransport(w.cfg)
	if err != nil {
		return nil, err
	}
	return remote.NewEngine(t, w.log), nil
}

// remoteFlags are shared by every command that talks to hosts.
type remoteFlags struct {
	hosts       []string
	hostsFile   string
	user        string
	retries     int
	parallelism int
	timeout     time.Duration
	metricsFile string
	noProgress  bool
}

func addHostFlags(fs *pflag.FlagSet, f *remoteFlags) {
	fs.StringSliceVar(&f.hosts, "hosts", nil, "Target hosts (comma separated or repeated); replaces the slaves file")
	fs.StringVar(&f.hostsFile, "hosts-file", "", "File listing target hosts, one per line (default: slaves file)")
}

func addRemoteFlags(fs *pflag.FlagSet, f *remoteFlags) {
	fs.StringVar(&f.user, "user", "", "Remote user (default: user from config)")
	fs.IntVar(&f.retries, "retries", 0, "Attempts per host (default: remote.retries from config)")
	fs.IntVar(&f.parallelism, "parallelism", 0, "Concurrent host partitions (default: remote.parallelism from config)")
	fs.DurationVar(&f.timeout, "timeout", 0, "Timeout per attempt (default: remote.command_timeout_s from config)")
	fs.StringVar(&f.metricsFile, "metrics-file", "", "Write remote execution metrics in Prometheus text format")
	fs.BoolVar(&f.noProgress, "no-progress", false, "Disable interactive progress output")
}

func (f remoteFlags) remoteUser(cfg config.Config) string {
	if f.user != "" {
		return f.user
	}
	return cfg.User
}

func (f remoteFlags) options(cfg config.Config) remote.Options {
	opts := remote.Options{
		Retries:     cfg.Remote.Retries,
		Parallelism: cfg.Remote.Parallelism,
		Timeout:     cfg.Remote.CommandTimeout(),
	}
	if f.retries > 0 {
		opts.Retries = f.retries
	}
	if f.parallelism > 0 {
		opts.Parallelism = f.parallelism
	}
	if f.timeout > 0 {
		opts.Timeout = f.timeout
	}
	return opts
}

func writeMetrics(engine *remote.Engine, path string, log *logrus.Logger) error {
	if path == "" {
		return nil
	}
	if err := engine.WriteMetrics(path); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	log.WithField("path", path).Debug("metrics written")
	return nil
}
