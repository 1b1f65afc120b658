package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cloudera/llama-sub000/internal/remote"
	"github.com/cloudera/llama-sub000/internal/remotemgr"
	"github.com/cloudera/llama-sub000/internal/tools"
	"github.com/cloudera/llama-sub000/internal/tui"
)

const builtPackageName = "installer.tar.gz"

// deployFlags configure a fleet deployment.
type deployFlags struct {
	remoteFlags
	pkg        string
	packageDir string
	keepLocal  bool
}

func addDeployFlags(cmd *cobra.Command, f *deployFlags) {
	addHostFlags(cmd.Flags(), &f.remoteFlags)
	addRemoteFlags(cmd.Flags(), &f.remoteFlags)
	cmd.Flags().StringVar(&f.pkg, "package", "", "Installer archive or s3://bucket/key URL (default: package.path from config)")
	cmd.Flags().StringVar(&f.packageDir, "package-dir", "", "Build the archive from this directory, which must contain installer/")
	cmd.Flags().BoolVar(&f.keepLocal, "keep-local", false, "Do not drop hosts that refer to this machine")
}

// withHostProgress runs work under a live host table when the mode allows
// it. work receives a nil reporter otherwise.
func withHostProgress(out io.Writer, mode tui.OutputMode, title string, hosts []string, work func(rep *tui.HostReporter) error) error {
	if mode != tui.ModeTUI {
		return work(nil)
	}
	model := tui.NewHostModel(title, hosts)
	return tui.RunWithWork(out, model, func(send func(tea.Msg)) error {
		return work(tui.NewHostReporter(send))
	})
}

// deployFleet pushes the installer to the slaves and re-runs it there with
// the redeploy arguments of items.
func deployFleet(cmd *cobra.Command, ws *workspace, items []tools.Tool, f deployFlags) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	hosts, err := ws.slaves(f.hosts, f.hostsFile)
	if err != nil {
		return err
	}
	if len(hosts) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "no slaves configured; skipping fleet deployment")
		ws.log.Info("no slaves configured")
		return nil
	}

	pkg, err := resolvePackage(cmd, ws, f)
	if err != nil {
		return err
	}

	engine, err := ws.engine()
	if err != nil {
		return err
	}
	local, err := newLocalHosts()
	if err != nil {
		return err
	}
	mgr := remotemgr.NewManager(engine, local, ws.log)

	d := remotemgr.Deployment{
		User:        f.remoteUser(ws.cfg),
		Hosts:       hosts,
		PackagePath: pkg,
		UploadPath:  ws.cfg.UploadPrefix,
		Command:     remotemgr.SlaveInvocation(ws.cfg.UploadPrefix, remotemgr.DefaultBinary, items),
		Options:     f.options(ws.cfg),
		KeepLocal:   f.keepLocal,
	}
	ws.log.WithFields(logrus.Fields{"hosts": len(hosts), "package": pkg}).Info("deploying to fleet")

	mode := tui.DetectMode(out, f.noProgress, outputJSON)
	var (
		report    remotemgr.Report
		deployErr error
	)
	err = withHostProgress(out, mode, "Deploying to "+strconv.Itoa(len(hosts))+" host(s)", hosts, func(rep *tui.HostReporter) error {
		if rep != nil {
			d.Options.Reporter = rep
			d.OnStep = func(step remotemgr.Step, _ []string) { rep.SetStep(string(step)) }
		}
		report, deployErr = mgr.DeployToFleet(ctx, d)
		if rep != nil {
			for _, h := range report.Skipped {
				rep.Settle(h, "skipped", "local host")
			}
			for _, h := range report.Hosts {
				rep.Settle(h.Host, string(h.State), "")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := writeMetrics(engine, f.metricsFile, ws.log); err != nil {
		return err
	}

	switch mode {
	case tui.ModeJSON:
		if err := report.WriteJSON(out); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
	case tui.ModePlain:
		writeReportTable(out, report)
	}

	var degradedErr *remotemgr.DegradedError
	if errors.As(deployErr, &degradedErr) {
		printRemediation(cmd.ErrOrStderr(), degradedErr.Hosts)
		return degraded(deployErr)
	}
	return deployErr
}

func resolvePackage(cmd *cobra.Command, ws *workspace, f deployFlags) (string, error) {
	if f.packageDir == "" {
		return ws.packagePath(cmd.Context(), f.pkg)
	}
	dir := ws.paths.Resolve(f.packageDir)
	out := filepath.Join(ws.paths.PackagesDir, builtPackageName)
	if err := remotemgr.BuildPackage(cmd.Context(), newRunner(), dir, out, nil); err != nil {
		return "", err
	}
	ws.log.WithField("package", out).Info("package built")
	return out, nil
}

func writeReportTable(w io.Writer, report remotemgr.Report) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "HOST\tSTATE\tATTEMPTS\tEXIT\tDETAIL")
	for _, h := range report.Hosts {
		detail := h.Error
		if detail == "" && len(h.Output) > 0 {
			detail = h.Output[len(h.Output)-1]
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", h.Host, h.State, h.Attempts, h.ExitStatus, tui.NonEmptyOrDash(firstLine(detail)))
	}
	for _, h := range report.Skipped {
		fmt.Fprintf(tw, "%s\tskipped\t0\t0\tlocal host\n", h)
	}
	tw.Flush()
	fmt.Fprintf(w, "\nRun %s: %d host(s), %d failed, %d skipped\n", report.RunID, len(report.Hosts), len(report.Failed()), len(report.Skipped))
}

// printRemediation lists every failed host with the step it stopped at.
func printRemediation(w io.Writer, hosts []remotemgr.HostReport) {
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	for _, h := range hosts {
		reason := h.Error
		if reason == "" {
			reason = "exit status " + strconv.Itoa(h.ExitStatus)
		}
		fmt.Fprintf(w, "%s %s: %s after %d attempt(s): %s\n", red.Render("✗"), h.Host, h.State, h.Attempts, firstLine(reason))
		fmt.Fprintf(w, "  manual remediation required on %s\n", h.Host)
	}
}

// printFailedResults is the engine-level counterpart of printRemediation.
func printFailedResults(w io.Writer, results []remote.Result) {
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	for _, res := range results {
		reason := "exit status " + strconv.Itoa(res.ExitStatus)
		if res.Err != nil {
			reason = firstLine(res.Err.Error())
		}
		fmt.Fprintf(w, "%s %s: %s after %d attempt(s)\n", red.Render("✗"), res.Host, reason, res.Attempts)
		fmt.Fprintf(w, "  manual remediation required on %s\n", res.Host)
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
