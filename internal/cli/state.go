package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/cloudera/llama-sub000/internal/state"
)

func newStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect the persisted install state",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the tools and settings recorded in the state file",
		Args:  cobra.NoArgs,
		RunE:  runStateShow,
	})
	return cmd
}

func runStateShow(cmd *cobra.Command, _ []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	file, err := state.New(ws.paths.StateFile, ws.log).Read()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		return writeJSON(out, file)
	}

	fmt.Fprintf(out, "State: %s (%s)\n", ws.paths.StateFile, file.Version)
	for _, e := range file.Entries {
		fmt.Fprintf(out, "\n%s\n", e.Name)
		keys := make([]string, 0, len(e.Record))
		for k := range e.Record {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(out, "  %s = %s\n", k, e.Record[k])
		}
	}
	return nil
}
