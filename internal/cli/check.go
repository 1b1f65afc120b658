package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/cloudera/llama-sub000/internal/config"
	"github.com/cloudera/llama-sub000/internal/paths"
	"github.com/cloudera/llama-sub000/internal/roles"
	"github.com/cloudera/llama-sub000/internal/state"
	"github.com/cloudera/llama-sub000/internal/tools"
)

var checkStrict bool

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check local prerequisites, configuration, state and slave list",
		Args:  cobra.NoArgs,
		RunE:  runCheck,
	}

	cmd.Flags().BoolVar(&checkStrict, "strict", false, "fail when any check fails")

	return cmd
}

type checkReport struct {
	Workdir     string                    `json:"workdir"`
	Binaries    []tools.Status            `json:"binaries"`
	Validations []config.ValidationResult `json:"validations,omitempty"`
	State       string                    `json:"state"`
	StateError  string                    `json:"state_error,omitempty"`
	Slaves      int                       `json:"slaves"`
	SlavesError string                    `json:"slaves_error,omitempty"`
}

func (r checkReport) failures() []string {
	var out []string
	for _, st := range r.Binaries {
		if !st.Satisfied {
			out = append(out, st.Tool)
		}
	}
	if config.HasErrors(r.Validations) {
		out = append(out, "config")
	}
	if r.StateError != "" {
		out = append(out, "state")
	}
	if r.SlavesError != "" {
		out = append(out, "slaves")
	}
	return out
}

func runCheck(cmd *cobra.Command, _ []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	report := checkReport{
		Workdir:     ws.paths.Root,
		Binaries:    tools.Probe(cmd.Context(), newRunner()),
		Validations: ws.cfg.ValidateStrict(roles.Default()),
		State:       "absent",
	}
	for _, st := range report.Binaries {
		ws.log.WithField("binary", st.Tool).WithField("satisfied", st.Satisfied).Debug("probed")
	}

	if exists, err := paths.FileExists(ws.paths.StateFile); err != nil {
		report.StateError = err.Error()
	} else if exists {
		file, err := state.New(ws.paths.StateFile, ws.log).Read()
		if err != nil {
			report.StateError = err.Error()
		} else {
			report.State = fmt.Sprintf("%s, %d tool(s)", file.Version, len(file.Entries))
		}
	}

	if hosts, err := ws.slaves(nil, ""); err != nil {
		report.SlavesError = err.Error()
	} else {
		report.Slaves = len(hosts)
	}

	if outputJSON {
		if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	} else {
		printCheckResult(cmd, report)
	}

	if failures := report.failures(); checkStrict && len(failures) > 0 {
		return errors.New("check failed: " + strings.Join(failures, ", "))
	}
	return nil
}

func printCheckResult(cmd *cobra.Command, r checkReport) {
	bold := lipgloss.NewStyle().Bold(true)
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	faint := lipgloss.NewStyle().Faint(true)

	ok := func(name, detail string) {
		cmd.Println(green.Render("✓") + " " + bold.Render(name) + faint.Render(detail))
	}
	bad := func(name, detail string) {
		cmd.Println(red.Render("✗") + " " + bold.Render(name) + red.Render(" ("+detail+")"))
	}

	cmd.Println(bold.Render("Workdir:") + " " + r.Workdir)
	cmd.Println()

	for _, st := range r.Binaries {
		if st.Satisfied {
			detail := ""
			if st.Version != "" {
				detail = " v" + st.Version
			}
			if st.Path != "" {
				detail += " · " + st.Path
			}
			ok(st.Tool, detail)
			continue
		}
		bad(st.Tool, st.Error)
		for _, hint := range st.Hints {
			cmd.Println(faint.Render("  " + hint))
		}
	}
	cmd.Println()

	if config.HasErrors(r.Validations) {
		bad("config", "invalid")
	} else {
		ok("config", "")
	}
	for _, v := range r.Validations {
		style := yellow
		if v.Level == "error" {
			style = red
		}
		cmd.Println(style.Render("  "+v.Level+": ") + v.Message)
	}

	if r.StateError != "" {
		bad("state", r.StateError)
	} else {
		ok("state", " "+r.State)
	}

	if r.SlavesError != "" {
		bad("slaves", r.SlavesError)
	} else {
		ok("slaves", fmt.Sprintf(" %d host(s)", r.Slaves))
	}
}
