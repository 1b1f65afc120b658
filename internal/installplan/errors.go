package installplan

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingDependency = errors.New("unsatisfied dependency")
	ErrCycle             = errors.New("circular dependency")
	ErrDuplicateTool     = errors.New("duplicate tool")
	ErrUnknownRole       = errors.New("unknown role")
)

// PlanningError reports why tools or roles could not be resolved into an
// installation order.
type PlanningError struct {
	Kind    error
	Tool    string
	Missing []string
	Path    []string
	Msg     string
}

func (e *PlanningError) Error() string {
	if e == nil {
		return ""
	}
	var msg string
	switch {
	case e.Msg != "":
		msg = e.Msg
	case len(e.Missing) > 0:
		msg = fmt.Sprintf("%s depends on %s, which cannot be satisfied", e.Tool, strings.Join(e.Missing, ", "))
	case len(e.Path) > 0:
		msg = strings.Join(e.Path, " -> ")
	default:
		msg = e.Tool
	}
	if msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), msg)
}

func (e *PlanningError) Unwrap() error { return e.Kind }

// UnknownRole builds the planning error for a role name that is neither
// primitive nor pseudo.
func UnknownRole(name string) error {
	return &PlanningError{Kind: ErrUnknownRole, Msg: fmt.Sprintf("%q is not a recognized role", name)}
}

func missingDependencies(tool string, missing []string) error {
	return &PlanningError{Kind: ErrMissingDependency, Tool: tool, Missing: missing}
}

func cycleError(path []string) error {
	tool := ""
	if len(path) > 0 {
		tool = path[0]
	}
	return &PlanningError{Kind: ErrCycle, Tool: tool, Path: path}
}

func duplicateTool(name string) error {
	return &PlanningError{Kind: ErrDuplicateTool, Tool: name, Msg: fmt.Sprintf("more than one tool named %q", name)}
}
