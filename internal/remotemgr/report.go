package remotemgr

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/cloudera/llama-sub000/internal/remote"
)

// Step is one stage of a fleet deployment.
type Step string

const (
	StepMkdir  Step = "mkdir"
	StepCopy   Step = "copy"
	StepUnpack Step = "unpack"
	StepInvoke Step = "invoke"
)

// HostState tracks how far a host got.
type HostState string

const (
	StatePending   HostState = "pending"
	StateUploaded  HostState = "uploaded"
	StateUnpacked  HostState = "unpacked"
	StateInstalled HostState = "installed"
)

// FailedAt is the terminal state of a host that failed step.
func FailedAt(step Step) HostState {
	return HostState("failed_at_" + string(step))
}

// Failed reports whether the state is a failure state.
func (s HostState) Failed() bool {
	return strings.HasPrefix(string(s), "failed_at_")
}

// HostReport is the deployment outcome of one host.
type HostReport struct {
	Host       string    `json:"host"`
	State      HostState `json:"state"`
	FailedStep Step      `json:"failed_step,omitempty"`
	ExitStatus int       `json:"exit_status"`
	Attempts   int       `json:"attempts"`
	Output     []string  `json:"output,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Report summarizes a deployment. Hosts follow the requested order.
type Report struct {
	RunID   string       `json:"run_id"`
	Hosts   []HostReport `json:"hosts"`
	Skipped []string     `json:"skipped_local,omitempty"`
}

// Degraded reports whether any host failed any step.
func (r Report) Degraded() bool {
	return len(r.Failed()) > 0
}

// Failed returns the hosts that need manual follow-up.
func (r Report) Failed() []HostReport {
	var out []HostReport
	for _, h := range r.Hosts {
		if h.State.Failed() {
			out = append(out, h)
		}
	}
	return out
}

// WriteJSON writes the report as indented JSON.
func (r Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// DegradedError is returned when a deployment finished with failed hosts.
type DegradedError struct {
	RunID string
	Hosts []HostReport
}

func (e *DegradedError) Error() string {
	parts := make([]string, len(e.Hosts))
	for i, h := range e.Hosts {
		parts[i] = fmt.Sprintf("%s (%s)", h.Host, h.State)
	}
	return fmt.Sprintf("deployment %s degraded: %d host(s) need manual remediation: %s",
		e.RunID, len(e.Hosts), strings.Join(parts, ", "))
}

func hostReport(host string, state HostState, res remote.Result) HostReport {
	hr := HostReport{
		Host:       host,
		State:      state,
		ExitStatus: res.ExitStatus,
		Attempts:   res.Attempts,
		Output:     res.Output,
	}
	if res.Err != nil {
		hr.Error = res.Err.Error()
	}
	return hr
}
