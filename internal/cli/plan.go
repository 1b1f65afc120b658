package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cloudera/llama-sub000/internal/installplan"
	"github.com/cloudera/llama-sub000/internal/roles"
	"github.com/cloudera/llama-sub000/internal/tools"
)

var planRoles []string

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the install order for a set of roles",
		Args:  cobra.NoArgs,
		RunE:  runPlan,
	}
	cmd.Flags().StringSliceVar(&planRoles, "role", nil, "Roles to plan, comma separated")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func newRolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "List the primitive and pseudo roles",
		Args:  cobra.NoArgs,
		RunE:  runRoles,
	}
}

type planToolJSON struct {
	Name         string   `json:"name"`
	Dependencies []string `json:"dependencies"`
}

func runPlan(cmd *cobra.Command, _ []string) error {
	catalog := roles.Default()
	reg := newRegistry()
	prims, names, err := catalog.Resolve(planRoles)
	if err != nil {
		return err
	}
	items := make([]tools.Tool, 0, len(names))
	for _, name := range names {
		t, err := reg.Ensure(name)
		if err != nil {
			return err
		}
		items = append(items, t)
	}
	ordered, err := installplan.New(items...).InstallItems()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		payload := struct {
			Roles []string       `json:"roles"`
			Tools []planToolJSON `json:"tools"`
		}{Roles: prims}
		for _, t := range ordered {
			deps := t.Dependencies()
			if deps == nil {
				deps = []string{}
			}
			payload.Tools = append(payload.Tools, planToolJSON{Name: t.Name(), Dependencies: deps})
		}
		return writeJSON(out, payload)
	}

	fmt.Fprintf(out, "Roles: %s\n\n", strings.Join(prims, ", "))
	for i, t := range ordered {
		line := fmt.Sprintf("%2d. %s", i+1, t.Name())
		if deps := t.Dependencies(); len(deps) > 0 {
			line += " (after " + strings.Join(deps, ", ") + ")"
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

func runRoles(cmd *cobra.Command, _ []string) error {
	catalog := roles.Default()
	out := cmd.OutOrStdout()

	if outputJSON {
		return writeJSON(out, struct {
			Primitives []roles.Primitive `json:"primitives"`
			Pseudos    []roles.Pseudo    `json:"pseudos"`
		}{catalog.Primitives(), catalog.Pseudos()})
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROLE\tKIND\tMEMBERS")
	for _, p := range catalog.Primitives() {
		fmt.Fprintf(tw, "%s\tprimitive\t%s\n", p.Name, strings.Join(p.Tools, ", "))
	}
	for _, p := range catalog.Pseudos() {
		fmt.Fprintf(tw, "%s\tpseudo\t%s\n", p.Name, strings.Join(p.Roles, ", "))
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
