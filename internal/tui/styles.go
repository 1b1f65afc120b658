package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// HeaderStyle styles the column header row.
	HeaderStyle = lipgloss.NewStyle().Bold(true)

	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	pendingStyle = lipgloss.NewStyle().Faint(true)

	statusStyles = map[string]lipgloss.Style{
		// Terminal states
		"ok":        okStyle,
		"uploaded":  okStyle,
		"unpacked":  okStyle,
		"installed": okStyle,

		// Active states
		"running":  activeStyle,
		"copying":  activeStyle,
		"retrying": activeStyle,

		"skipped": warnStyle,
		"local":   warnStyle,

		"failed": failStyle,
		"error":  failStyle,

		"pending": pendingStyle,
	}
)

// StatusStyle returns the lipgloss style for the given status string. Every
// failed_at_<step> state shares the failure colour.
func StatusStyle(status string) lipgloss.Style {
	if s, ok := statusStyles[status]; ok {
		return s
	}
	if strings.HasPrefix(status, "failed_at_") {
		return failStyle
	}
	return lipgloss.NewStyle()
}
