package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func update(t *testing.T, m ProgressModel, msg tea.Msg) (ProgressModel, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	next, ok := updated.(ProgressModel)
	require.True(t, ok, "Update returned %T", updated)
	return next, cmd
}

func TestRowUpdateMsg(t *testing.T) {
	m := NewHostModel("deploy", []string{"dn1", "dn2"})
	m, _ = update(t, m, RowUpdateMsg{
		Key:    "dn1",
		Fields: map[string]string{"STEP": "copy", "STATUS": "copying"},
	})

	assert.Equal(t, "copy", m.rows[0].Fields[1])
	assert.Equal(t, "copying", m.rows[0].Fields[2])
	assert.Equal(t, "pending", m.rows[1].Fields[2])
}

func TestRowUpdateMsgUnknownKey(t *testing.T) {
	m := NewHostModel("deploy", []string{"dn1"})
	m, _ = update(t, m, RowUpdateMsg{Key: "dn9", Fields: map[string]string{"STATUS": "ok"}})
	assert.Equal(t, "pending", m.rows[0].Fields[2])
}

func TestAddRowIgnoresDuplicateKey(t *testing.T) {
	m := NewHostModel("deploy", []string{"dn1", "dn1"})
	assert.Len(t, m.rows, 1)
}

func TestWorkDoneAndErrorQuit(t *testing.T) {
	m, cmd := update(t, NewHostModel("deploy", nil), WorkDoneMsg{})
	assert.True(t, m.Done())
	assert.NotNil(t, cmd, "tea.Quit")

	m, cmd = update(t, NewHostModel("deploy", nil), ErrorMsg{Err: tea.ErrProgramKilled})
	assert.True(t, m.Done())
	assert.Error(t, m.Err())
	assert.NotNil(t, cmd, "tea.Quit")
	assert.Contains(t, m.View(), "Error:")

	m, cmd = update(t, NewHostModel("deploy", nil), tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.True(t, m.Done(), "ctrl+c")
	assert.NotNil(t, cmd, "tea.Quit")
}

func TestView(t *testing.T) {
	m := NewHostModel("deploy", []string{"dn1.example.com", "dn2.example.com"})
	m, _ = update(t, m, RowUpdateMsg{
		Key:    "dn2.example.com",
		Fields: map[string]string{"STATUS": "failed_at_copy", "DETAIL": "connection refused"},
	})

	view := m.View()
	for _, want := range []string{"HOST", "STEP", "STATUS", "ATTEMPTS", "DETAIL", "dn1.example.com", "pending", "failed_at_copy", "connection refused"} {
		assert.Contains(t, view, want)
	}
}

func TestFooterFollowsStepUntilDone(t *testing.T) {
	m := NewHostModel("deploy", []string{"dn1"})
	m, _ = update(t, m, StepMsg{Step: "unpack"})
	assert.Contains(t, m.View(), "unpack: 0/1 hosts settled")

	m, _ = update(t, m, WorkDoneMsg{})
	assert.NotContains(t, m.View(), "hosts settled")
}

func TestProgressCounts(t *testing.T) {
	m := NewHostModel("deploy", []string{"a", "b", "c", "d"})
	for key, status := range map[string]string{"b": "running", "c": "installed", "d": "failed_at_unpack"} {
		m, _ = update(t, m, RowUpdateMsg{Key: key, Fields: map[string]string{"STATUS": status}})
	}

	settled, total := m.progressCounts()
	assert.Equal(t, 4, total)
	assert.Equal(t, 2, settled)
}

func TestSpinnerStopsTickingWhenDone(t *testing.T) {
	m := NewHostModel("deploy", []string{"dn1"})
	m, cmd := update(t, m, m.spinner.Tick())
	assert.NotNil(t, cmd, "next tick")

	m, _ = update(t, m, WorkDoneMsg{})
	_, cmd = update(t, m, m.spinner.Tick())
	assert.Nil(t, cmd, "tick after done")
}

func TestCellHelpers(t *testing.T) {
	for in, want := range map[string]string{"": "-", "  ": "-", "hello": "hello", " hello ": "hello"} {
		assert.Equal(t, want, NonEmptyOrDash(in), "NonEmptyOrDash(%q)", in)
	}

	tests := []struct {
		input string
		max   int
		want  string
	}{
		{"short", 10, "short"},
		{"a longer string here", 10, "a longe..."},
		{"abc", 3, "abc"},
		{"abcd", 3, "abc"},
		{"", 5, ""},
		{"hello", 0, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TruncateWithEllipsis(tt.input, tt.max), "TruncateWithEllipsis(%q, %d)", tt.input, tt.max)
	}
}

func TestStatusStyleFailedSteps(t *testing.T) {
	fail := StatusStyle("failed")
	assert.Equal(t, fail.GetForeground(), StatusStyle("failed_at_invoke").GetForeground())
	assert.NotEqual(t, fail.GetForeground(), StatusStyle("unknown").GetForeground(), "unknown status should be unstyled")
}

func TestDetectMode(t *testing.T) {
	var b strings.Builder
	assert.Equal(t, ModeJSON, DetectMode(&b, false, true))
	assert.Equal(t, ModePlain, DetectMode(&b, false, false))
	assert.Equal(t, ModePlain, DetectMode(&b, true, false))
}
