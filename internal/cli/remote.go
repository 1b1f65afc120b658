package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cloudera/llama-sub000/internal/remote"
	"github.com/cloudera/llama-sub000/internal/tui"
)

var (
	sshallFlags remoteFlags
	scpallFlags remoteFlags
)

func newSSHAllCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sshall [flags] -- command [args...]",
		Short: "Run a shell command on every host",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSSHAll,
	}
	addHostFlags(cmd.Flags(), &sshallFlags)
	addRemoteFlags(cmd.Flags(), &sshallFlags)
	return cmd
}

func newSCPAllCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scpall [flags] LOCAL_FILE REMOTE_PATH",
		Short: "Copy a file to every host",
		Args:  cobra.ExactArgs(2),
		RunE:  runSCPAll,
	}
	addHostFlags(cmd.Flags(), &scpallFlags)
	addRemoteFlags(cmd.Flags(), &scpallFlags)
	return cmd
}

func runSSHAll(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	hosts, err := targetHosts(ws, sshallFlags)
	if err != nil {
		return err
	}
	engine, err := ws.engine()
	if err != nil {
		return err
	}
	command := strings.Join(args, " ")
	ws.log.WithFields(logrus.Fields{"hosts": len(hosts), "command": command}).Info("sshall")

	out := cmd.OutOrStdout()
	mode := tui.DetectMode(out, sshallFlags.noProgress, outputJSON)
	opts := sshallFlags.options(ws.cfg)
	var results []remote.Result
	err = withHostProgress(out, mode, "sshall: "+command, hosts, func(rep *tui.HostReporter) error {
		if rep != nil {
			opts.Reporter = rep
		}
		results = engine.RunOnHosts(cmd.Context(), sshallFlags.remoteUser(ws.cfg), hosts, command, opts)
		return nil
	})
	if err != nil {
		return err
	}
	if err := writeMetrics(engine, sshallFlags.metricsFile, ws.log); err != nil {
		return err
	}

	if mode == tui.ModeJSON {
		if err := writeResultsJSON(out, hosts, results); err != nil {
			return err
		}
	} else {
		writeHostOutput(out, hosts, results)
	}

	failed := remote.Failed(hosts, results)
	if len(failed) == 0 {
		return nil
	}
	printFailedResults(cmd.ErrOrStderr(), failed)
	return degraded(fmt.Errorf("%d of %d host(s) failed", len(failed), len(hosts)))
}

func runSCPAll(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	hosts, err := targetHosts(ws, scpallFlags)
	if err != nil {
		return err
	}
	engine, err := ws.engine()
	if err != nil {
		return err
	}
	localFile := ws.paths.Resolve(args[0])
	remoteFile := args[1]
	ws.log.WithFields(logrus.Fields{"hosts": len(hosts), "file": localFile}).Info("scpall")

	out := cmd.OutOrStdout()
	mode := tui.DetectMode(out, scpallFlags.noProgress, outputJSON)
	opts := scpallFlags.options(ws.cfg)
	var (
		results []remote.Result
		copyErr error
	)
	err = withHostProgress(out, mode, "scpall: "+remoteFile, hosts, func(rep *tui.HostReporter) error {
		if rep != nil {
			opts.Reporter = rep
		}
		results, copyErr = engine.CopyToHosts(cmd.Context(), localFile, scpallFlags.remoteUser(ws.cfg), hosts, remoteFile, opts)
		return nil
	})
	if err != nil {
		return err
	}
	if err := writeMetrics(engine, scpallFlags.metricsFile, ws.log); err != nil {
		return err
	}

	switch mode {
	case tui.ModeJSON:
		if err := writeResultsJSON(out, hosts, results); err != nil {
			return err
		}
	case tui.ModePlain:
		writeHostOutput(out, hosts, results)
	}

	var multi *remote.MultiHostCopyError
	if errors.As(copyErr, &multi) {
		printFailedResults(cmd.ErrOrStderr(), remote.Failed(hosts, results))
		return degraded(copyErr)
	}
	return copyErr
}

func targetHosts(ws *workspace, f remoteFlags) ([]string, error) {
	hosts, err := ws.slaves(f.hosts, f.hostsFile)
	if err != nil {
		return nil, err
	}
	if len(hosts) == 0 {
		return nil, errors.New("no hosts: pass --hosts, --hosts-file or configure slaves")
	}
	return hosts, nil
}

// writeHostOutput prints results in the order hosts were given.
func writeHostOutput(w io.Writer, hosts []string, results []remote.Result) {
	byHost := remote.ByHost(results)
	for _, h := range hosts {
		res, ok := byHost[h]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "== %s (exit %d, %d attempt(s))\n", h, res.ExitStatus, res.Attempts)
		for _, line := range res.Output {
			fmt.Fprintf(w, "%s\n", line)
		}
	}
}

type hostResultJSON struct {
	Host       string   `json:"host"`
	ExitStatus int      `json:"exit_status"`
	Attempts   int      `json:"attempts"`
	Output     []string `json:"output,omitempty"`
	Error      string   `json:"error,omitempty"`
}

func writeResultsJSON(w io.Writer, hosts []string, results []remote.Result) error {
	byHost := remote.ByHost(results)
	payload := make([]hostResultJSON, 0, len(results))
	for _, h := range hosts {
		res, ok := byHost[h]
		if !ok {
			continue
		}
		item := hostResultJSON{Host: h, ExitStatus: res.ExitStatus, Attempts: res.Attempts, Output: res.Output}
		if res.Err != nil {
			item.Error = res.Err.Error()
		}
		payload = append(payload, item)
	}
	return writeJSON(w, struct {
		Results []hostResultJSON `json:"results"`
	}{payload})
}
