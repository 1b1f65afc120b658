package hostlist

import (
	"strconv"
	"strings"
)

// ValidationError describes one bad line of a host list.
type ValidationError struct {
	Line    int
	Host    string
	Message string
}

func (e ValidationError) Error() string {
	parts := []string{formatLine(e.Line)}
	if e.Host != "" {
		parts = append(parts, strconv.Quote(e.Host))
	}
	parts = append(parts, e.Message)
	return strings.TrimSpace(strings.Join(parts, " "))
}

// ValidationErrors aggregates the problems found in one host list.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 0 {
		return "host list validation failed"
	}
	messages := make([]string, len(errs))
	for i, err := range errs {
		messages[i] = err.Error()
	}
	return strings.Join(messages, "; ")
}

// Issues returns a copy of the underlying validation errors.
func (errs ValidationErrors) Issues() []ValidationError {
	return append([]ValidationError(nil), errs...)
}

func formatLine(line int) string {
	if line <= 0 {
		return "line"
	}
	return "line " + strconv.Itoa(line)
}
