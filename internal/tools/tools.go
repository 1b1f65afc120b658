package tools

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/cloudera/llama-sub000/internal/runner"
)

// Status captures availability and version details for a prerequisite binary.
type Status struct {
	Tool      string   `json:"tool"`
	Path      string   `json:"path,omitempty"`
	Version   string   `json:"version,omitempty"`
	Minimum   string   `json:"minimum,omitempty"`
	Satisfied bool     `json:"satisfied"`
	Error     string   `json:"error,omitempty"`
	Hints     []string `json:"hints,omitempty"`
}

var lookPath = exec.LookPath

// Probe discovers the prerequisite binaries named, or all known ones when
// names is empty.
func Probe(ctx context.Context, r runner.Runner, names ...string) []Status {
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if r == nil {
		r = runner.CmdRunner{}
	}
	if len(names) == 0 {
		names = KnownBinaries()
	}

	statuses := make([]Status, 0, len(names))
	for _, name := range names {
		def, ok := BinaryDef(name)
		if !ok {
			statuses = append(statuses, Status{Tool: name, Error: "unknown prerequisite"})
			continue
		}
		statuses = append(statuses, probeOne(ctx, r, def))
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Tool < statuses[j].Tool })
	return statuses
}

func probeOne(ctx context.Context, r runner.Runner, def BinaryDefinition) Status {
	status := Status{Tool: def.Name, Minimum: def.MinimumVersion}

	path, err := lookPath(def.Executable)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			status.Error = "not found"
		} else {
			status.Error = err.Error()
		}
		status.Hints = installHints(def.Name)
		return status
	}
	status.Path = path

	if def.VersionSwitch == "" {
		status.Satisfied = true
		return status
	}

	version, err := readVersion(ctx, r, def, path)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Version = version
	status.Satisfied = meetsMinimum(version, def.MinimumVersion)
	if !status.Satisfied {
		status.Error = fmt.Sprintf("version %s below minimum %s", version, def.MinimumVersion)
		status.Hints = installHints(def.Name)
	}
	return status
}

// Missing returns an error naming every unsatisfied prerequisite.
func Missing(statuses []Status) error {
	var problems []string
	for _, st := range statuses {
		if st.Satisfied {
			continue
		}
		msg := st.Tool
		if st.Error != "" {
			msg += ": " + st.Error
		}
		problems = append(problems, msg)
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("missing prerequisites: %s", strings.Join(problems, "; "))
}
