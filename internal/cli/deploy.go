package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloudera/llama-sub000/internal/installplan"
	"github.com/cloudera/llama-sub000/internal/paths"
	"github.com/cloudera/llama-sub000/internal/roles"
	"github.com/cloudera/llama-sub000/internal/state"
)

var (
	deployRoles []string
	deployOpts  deployFlags
)

func newDeployCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Push the installer to the slaves using the persisted install state",
		Args:  cobra.NoArgs,
		RunE:  runDeploy,
	}

	cmd.Flags().StringSliceVar(&deployRoles, "role", nil, "Roles whose redeploy arguments are passed on (default: roles from config)")
	addDeployFlags(cmd, &deployOpts)

	return cmd
}

func runDeploy(cmd *cobra.Command, _ []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	exists, err := paths.FileExists(ws.paths.StateFile)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("no install state at %s; run install first", ws.paths.StateFile)
	}

	roleNames := deployRoles
	if len(roleNames) == 0 {
		roleNames = ws.cfg.Roles
	}
	if len(roleNames) == 0 {
		roleNames = []string{roles.Master}
	}

	store := state.New(ws.paths.StateFile, ws.log)
	_, items, err := loadTools(newRegistry(), roles.Default(), store, roleNames)
	if err != nil {
		return err
	}
	ordered, err := installplan.New(items...).InstallItems()
	if err != nil {
		return err
	}
	return deployFleet(cmd, ws, ordered, deployOpts)
}
