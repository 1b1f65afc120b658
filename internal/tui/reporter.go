package tui

import (
	"strconv"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cloudera/llama-sub000/internal/remote"
)

// HostReporter adapts bubbletea message sending to remote.ProgressReporter.
// The current step label is set by the caller between engine calls; worker
// goroutines read it when they report.
type HostReporter struct {
	send func(tea.Msg)

	mu   sync.Mutex
	step string
}

// NewHostReporter returns a reporter that forwards updates through send.
func NewHostReporter(send func(tea.Msg)) *HostReporter {
	return &HostReporter{send: send}
}

// SetStep changes the STEP label used for subsequent host updates.
func (r *HostReporter) SetStep(step string) {
	r.mu.Lock()
	r.step = step
	r.mu.Unlock()
	r.send(StepMsg{Step: step})
}

func (r *HostReporter) currentStep(op string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.step != "" {
		return r.step
	}
	return op
}

// HostStart implements remote.ProgressReporter.
func (r *HostReporter) HostStart(op, host string) {
	status := "running"
	if op == remote.OpCopy {
		status = "copying"
	}
	r.send(RowUpdateMsg{
		Key: host,
		Fields: map[string]string{
			"STEP":   r.currentStep(op),
			"STATUS": status,
		},
	})
}

// HostDone implements remote.ProgressReporter.
func (r *HostReporter) HostDone(res remote.Result) {
	status := "ok"
	if !res.OK() {
		status = "failed"
	}
	r.send(RowUpdateMsg{
		Key:    res.Host,
		Fields: ResultFields(res, status),
	})
}

// Settle records a host's final state once the whole operation is over.
func (r *HostReporter) Settle(host, state, detail string) {
	fields := map[string]string{"STATUS": state}
	if detail != "" {
		fields["DETAIL"] = detail
	}
	r.send(RowUpdateMsg{Key: host, Fields: fields})
}

// ResultFields maps an engine result onto the host table columns.
func ResultFields(res remote.Result, status string) map[string]string {
	return map[string]string{
		"STATUS":   status,
		"ATTEMPTS": strconv.Itoa(res.Attempts),
		"DETAIL":   Detail(res),
	}
}

// Detail is a one-line summary of a result: the error for failures, else the
// last line of output.
func Detail(res remote.Result) string {
	if res.Err != nil {
		return firstLine(res.Err.Error())
	}
	for i := len(res.Output) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(res.Output[i]); line != "" {
			return line
		}
	}
	return "-"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
