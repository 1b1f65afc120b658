package tools

import (
	"fmt"
	"sort"
)

// Registry holds the tools of one installation run together with the
// factories that can construct them by name.
type Registry struct {
	tools     map[string]Tool
	order     []string
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:     make(map[string]Tool),
		factories: make(map[string]Factory),
	}
}

// Register adds t. A tool registered under an existing name replaces the
// previous one but keeps its position in List.
func (r *Registry) Register(t Tool) {
	name := t.Name()
	if _, ok := r.tools[name]; !ok {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns every registered tool in registration order.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// RegisterFactory makes name constructible through New.
func (r *Registry) RegisterFactory(name string, f Factory) {
	r.factories[name] = f
}

// CanBuild reports whether name has a factory.
func (r *Registry) CanBuild(name string) bool {
	_, ok := r.factories[name]
	return ok
}

// Known returns the names that have a factory, sorted.
func (r *Registry) Known() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New constructs a fresh tool through its factory and registers it.
func (r *Registry) New(name string) (Tool, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
	t := f()
	if t == nil {
		return nil, fmt.Errorf("factory for %s returned nil", name)
	}
	if t.Name() != name {
		return nil, fmt.Errorf("factory for %s built tool named %s", name, t.Name())
	}
	r.Register(t)
	return t, nil
}

// Ensure returns the registered tool for name, constructing it when absent.
func (r *Registry) Ensure(name string) (Tool, error) {
	if t, ok := r.Lookup(name); ok {
		return t, nil
	}
	return r.New(name)
}

// Require looks up dep on behalf of tool, failing with a contextual error
// when dep was never configured.
func (r *Registry) Require(tool, dep string) (Tool, error) {
	t, ok := r.Lookup(dep)
	if !ok {
		return nil, fmt.Errorf("%s depends on %s, but %s is not configured", tool, dep, dep)
	}
	return t, nil
}
