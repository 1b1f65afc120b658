// Package remotemgr pushes the packaged installer to slave hosts and runs it
// there.
package remotemgr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cloudera/llama-sub000/internal/remote"
	"github.com/cloudera/llama-sub000/internal/runner"
	"github.com/cloudera/llama-sub000/internal/tools"
)

// DefaultBinary is the installer executable name inside the package.
const DefaultBinary = "installer"

// Deployment describes one push of the installer to a fleet.
type Deployment struct {
	User        string
	Hosts       []string
	PackagePath string
	UploadPath  string
	// Command runs inside the unpacked tree on every host.
	Command string
	Options remote.Options
	// KeepLocal disables the exclusion of hosts that refer to this machine.
	KeepLocal bool
	// OnStep, if set, is called before each step that has hosts left.
	OnStep func(step Step, hosts []string)
}

// Manager runs deployments through a remote engine.
type Manager struct {
	engine *remote.Engine
	local  *LocalHosts
	log    *logrus.Logger
	newID  func() string
}

// NewManager returns a manager. local may be nil to disable local host
// exclusion; log may be nil.
func NewManager(engine *remote.Engine, local *LocalHosts, log *logrus.Logger) *Manager {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Manager{engine: engine, local: local, log: log, newID: uuid.NewString}
}

// DeployToFleet creates the upload directory, copies the package, unpacks it
// and runs the installer on every host. A host that fails a step skips the
// remaining ones; the other hosts carry on. The returned error is a
// *DegradedError when any host failed.
func (m *Manager) DeployToFleet(ctx context.Context, d Deployment) (Report, error) {
	report := Report{RunID: m.newID()}
	if d.PackagePath == "" {
		return report, errors.New("deployment requires a package")
	}
	if d.UploadPath == "" {
		return report, errors.New("deployment requires an upload path")
	}
	if d.Command == "" {
		return report, errors.New("deployment requires an installer command")
	}

	hosts := d.Hosts
	if m.local != nil && !d.KeepLocal {
		var skipped []string
		hosts, skipped = m.local.Filter(ctx, d.Hosts)
		report.Skipped = skipped
		for _, h := range skipped {
			m.log.WithFields(logrus.Fields{"run": report.RunID, "host": h}).Info("skipping local host")
		}
	}
	log := m.log.WithFields(logrus.Fields{"run": report.RunID, "hosts": len(hosts)})
	log.Info("fleet deployment started")

	states := make(map[string]HostReport, len(hosts))
	for _, h := range hosts {
		states[h] = HostReport{Host: h, State: StatePending}
	}

	archive := path.Base(filepath.ToSlash(d.PackagePath))
	remoteArchive := path.Join(d.UploadPath, archive)

	active := hosts
	active = m.step(log, d.OnStep, states, active, StepMkdir, StatePending, func(hs []string) []remote.Result {
		return m.engine.RunOnHosts(ctx, d.User, hs, "mkdir -p "+remote.ShellQuote(d.UploadPath), d.Options)
	})
	active = m.step(log, d.OnStep, states, active, StepCopy, StateUploaded, func(hs []string) []remote.Result {
		results, err := m.engine.CopyToHosts(ctx, d.PackagePath, d.User, hs, remoteArchive, d.Options)
		if err != nil {
			log.WithError(err).Warn("package copy incomplete")
		}
		return results
	})
	unpack := fmt.Sprintf("cd %s && tar xzf %s", remote.ShellQuote(d.UploadPath), remote.ShellQuote(archive))
	active = m.step(log, d.OnStep, states, active, StepUnpack, StateUnpacked, func(hs []string) []remote.Result {
		return m.engine.RunOnHosts(ctx, d.User, hs, unpack, d.Options)
	})
	m.step(log, d.OnStep, states, active, StepInvoke, StateInstalled, func(hs []string) []remote.Result {
		return m.engine.RunOnHosts(ctx, d.User, hs, d.Command, d.Options)
	})

	for _, h := range hosts {
		report.Hosts = append(report.Hosts, states[h])
	}
	if failed := report.Failed(); len(failed) > 0 {
		log.WithField("failed", len(failed)).Warn("fleet deployment degraded")
		return report, &DegradedError{RunID: report.RunID, Hosts: failed}
	}
	log.Info("fleet deployment finished")
	return report, nil
}

// step runs one stage on the active hosts and returns the hosts that passed.
func (m *Manager) step(log *logrus.Entry, onStep func(Step, []string), states map[string]HostReport, active []string, step Step, next HostState, run func([]string) []remote.Result) []string {
	if len(active) == 0 {
		return nil
	}
	if onStep != nil {
		onStep(step, active)
	}
	log.WithField("step", step).Debug("running step")
	byHost := remote.ByHost(run(active))

	var passed []string
	for _, h := range active {
		res, ok := byHost[h]
		if !ok {
			res = remote.Result{Host: h, ExitStatus: remote.TransportFailure, Err: fmt.Errorf("no result for %s", h)}
		}
		if res.OK() {
			hr := hostReport(h, next, res)
			states[h] = hr
			passed = append(passed, h)
			continue
		}
		hr := hostReport(h, FailedAt(step), res)
		hr.FailedStep = step
		states[h] = hr
		log.WithFields(logrus.Fields{"host": h, "step": step}).WithError(res.Err).Warn("host failed")
	}
	return passed
}

// SlaveInvocation builds the command that runs the installer on a slave from
// inside the unpacked package.
func SlaveInvocation(uploadPath, binary string, items []tools.Tool) string {
	if binary == "" {
		binary = DefaultBinary
	}
	args := []string{"./" + binary, "install", "--role", "slave", "--unattend", "--as-slave"}
	for _, t := range items {
		args = append(args, t.RedeployArgs()...)
	}
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = remote.ShellQuote(a)
	}
	dir := path.Join(uploadPath, binary)
	return "cd " + remote.ShellQuote(dir) + " && " + strings.Join(quoted, " ")
}

// BuildPackage archives files below dir into the gzipped tarball out.
func BuildPackage(ctx context.Context, r runner.Runner, dir, out string, files []string) error {
	if len(files) == 0 {
		files = []string{DefaultBinary}
	}
	args := append([]string{"czf", out, "-C", dir}, files...)
	res, err := r.Run(ctx, "tar", args, runner.Options{})
	if err != nil {
		msg := strings.TrimSpace(string(res.Stderr))
		if msg != "" {
			return fmt.Errorf("tar %s: %w: %s", out, err, msg)
		}
		return fmt.Errorf("tar %s: %w", out, err)
	}
	return nil
}
