package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	workDir     string
	configPath  string
	outputJSON  bool
	verboseLogs bool
)

// Exit statuses of the installer binary.
const (
	exitFatal    = 1
	exitDegraded = 2
)

// exitError carries a non-default process exit status.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func degraded(err error) error {
	return &exitError{code: exitDegraded, err: err}
}

// Execute runs the root cobra command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFatal
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "installer",
		Short:         "Install the Hadoop distribution on a master and its slaves",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&workDir, "workdir", "", "Installer working directory (default: current directory)")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to installer.yaml (default: <workdir>/installer.yaml)")
	cmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output machine-readable JSON")
	cmd.PersistentFlags().BoolVarP(&verboseLogs, "verbose", "v", false, "Mirror debug logs to stderr")

	cmd.AddCommand(newInstallCmd())
	cmd.AddCommand(newDeployCmd())
	cmd.AddCommand(newSSHAllCmd())
	cmd.AddCommand(newSCPAllCmd())
	cmd.AddCommand(newPlanCmd())
	cmd.AddCommand(newRolesCmd())
	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newStateCmd())

	return cmd
}
