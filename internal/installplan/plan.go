// Package installplan orders tools so that every tool is installed after the
// tools it depends on.
package installplan

import (
	"github.com/cloudera/llama-sub000/internal/tools"
)

// Plan accumulates tools and sequences them by dependency. Tools are compared
// by identity, so implementations should be pointer types.
type Plan struct {
	unordered []tools.Tool
	ordered   []tools.Tool
}

// New returns a plan holding items.
func New(items ...tools.Tool) *Plan {
	p := &Plan{}
	for _, t := range items {
		p.Add(t)
	}
	return p
}

// Add queues t for ordering. A tool that is already ordered is ignored.
func (p *Plan) Add(t tools.Tool) {
	if t == nil || indexOf(p.ordered, t) >= 0 {
		return
	}
	p.unordered = append(p.unordered, t)
}

// InstallItems verifies the plan and returns the tools in install order.
func (p *Plan) InstallItems() ([]tools.Tool, error) {
	if err := p.VerifyDependencies(); err != nil {
		return nil, err
	}
	return append([]tools.Tool(nil), p.ordered...), nil
}

// VerifyDependencies sequences every queued tool. Previously ordered tools
// keep their positions; queued tools are inserted depth-first, each after its
// dependencies, in the order they were added. On failure the plan is left as
// it was.
func (p *Plan) VerifyDependencies() error {
	if len(p.unordered) == 0 {
		return nil
	}

	available := make([]tools.Tool, 0, len(p.ordered)+len(p.unordered))
	available = append(available, p.ordered...)
	for _, t := range p.unordered {
		if indexOf(available, t) < 0 {
			available = append(available, t)
		}
	}

	seen := make(map[string]struct{}, len(available))
	for _, t := range available {
		if _, dup := seen[t.Name()]; dup {
			return duplicateTool(t.Name())
		}
		seen[t.Name()] = struct{}{}
	}

	s := &sorter{
		available: available,
		ordered:   append([]tools.Tool(nil), p.ordered...),
		marks:     make([]mark, len(available)),
	}
	for i := range p.ordered {
		s.marks[i] = markDone
	}
	for i := range available {
		if err := s.insert(i, nil); err != nil {
			return err
		}
	}

	p.ordered = s.ordered
	p.unordered = nil
	return nil
}

type mark int

const (
	markUnvisited mark = iota
	markInProgress
	markDone
)

type sorter struct {
	available []tools.Tool
	ordered   []tools.Tool
	marks     []mark
}

func (s *sorter) insert(i int, path []string) error {
	t := s.available[i]
	switch s.marks[i] {
	case markDone:
		return nil
	case markInProgress:
		return cycleError(cyclePath(path, t.Name()))
	}

	s.marks[i] = markInProgress
	path = append(append([]string(nil), path...), t.Name())

	var missing []string
	for _, name := range s.outstanding(t) {
		j := s.find(name)
		if j < 0 {
			missing = append(missing, name)
			continue
		}
		if err := s.insert(j, path); err != nil {
			return err
		}
	}
	if len(missing) > 0 {
		return missingDependencies(t.Name(), missing)
	}

	s.ordered = append(s.ordered, t)
	s.marks[i] = markDone
	return nil
}

// outstanding returns the declared dependencies of t that are not ordered yet.
func (s *sorter) outstanding(t tools.Tool) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, dep := range t.Dependencies() {
		if _, dup := seen[dep]; dup {
			continue
		}
		seen[dep] = struct{}{}
		if s.isOrdered(dep) {
			continue
		}
		out = append(out, dep)
	}
	return out
}

func (s *sorter) isOrdered(name string) bool {
	for _, t := range s.ordered {
		if t.Name() == name {
			return true
		}
	}
	return false
}

func (s *sorter) find(name string) int {
	for i, t := range s.available {
		if t.Name() == name {
			return i
		}
	}
	return -1
}

func cyclePath(path []string, name string) []string {
	start := 0
	for i, p := range path {
		if p == name {
			start = i
			break
		}
	}
	out := append([]string(nil), path[start:]...)
	return append(out, name)
}

func indexOf(list []tools.Tool, t tools.Tool) int {
	for i, item := range list {
		if item == t {
			return i
		}
	}
	return -1
}

// Names returns the names of items in order.
func Names(items []tools.Tool) []string {
	names := make([]string, len(items))
	for i, t := range items {
		names[i] = t.Name()
	}
	return names
}
