// Package roles maps the role names users select to the tools a host needs.
package roles

import (
	"fmt"
	"strings"

	"github.com/cloudera/llama-sub000/internal/installplan"
)

// Tool names of the distribution.
const (
	GlobalPrereq = "GlobalPrereq"
	Hadoop       = "Hadoop"
	Hive         = "Hive"
	Pig          = "Pig"
	Portal       = "Portal"
	LogMover     = "LogMover"
	Scribe       = "Scribe"
)

// Role names of the default catalog.
const (
	NameNode          = "namenode"
	SecondaryNameNode = "secondary_namenode"
	JobTracker        = "jobtracker"
	DataNode          = "datanode"
	TaskTracker       = "tasktracker"
	ScribeMaster      = "scribe_master"
	PortalRole        = "portal"
	LogMoverRole      = "logmover"
	HiveRole          = "hive"
	PigRole           = "pig"

	HadoopMaster = "hadoop_master"
	Master       = "master"
	Slave        = "slave"
	Standalone   = "standalone"
)

// Primitive is a role that installs tools directly.
type Primitive struct {
	Name  string   `json:"name"`
	Tools []string `json:"tools"`
}

// Pseudo is a role that stands for other roles.
type Pseudo struct {
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

// Catalog is the static role table. It is read-only once built.
type Catalog struct {
	primitives []Primitive
	pseudos    []Pseudo
	primIndex  map[string]int
	pseudoIdx  map[string]int
}

// New validates the definitions and builds a catalog. Pseudo-roles must only
// reference known roles and must not refer back to themselves.
func New(primitives []Primitive, pseudos []Pseudo) (*Catalog, error) {
	c := &Catalog{
		primIndex: make(map[string]int, len(primitives)),
		pseudoIdx: make(map[string]int, len(pseudos)),
	}
	for _, p := range primitives {
		if p.Name == "" {
			return nil, fmt.Errorf("primitive role with empty name")
		}
		if c.known(p.Name) {
			return nil, fmt.Errorf("role %q defined twice", p.Name)
		}
		c.primIndex[p.Name] = len(c.primitives)
		c.primitives = append(c.primitives, Primitive{Name: p.Name, Tools: append([]string(nil), p.Tools...)})
	}
	for _, p := range pseudos {
		if p.Name == "" {
			return nil, fmt.Errorf("pseudo role with empty name")
		}
		if c.known(p.Name) {
			return nil, fmt.Errorf("role %q defined twice", p.Name)
		}
		c.pseudoIdx[p.Name] = len(c.pseudos)
		c.pseudos = append(c.pseudos, Pseudo{Name: p.Name, Roles: append([]string(nil), p.Roles...)})
	}

	for _, p := range c.pseudos {
		for _, member := range p.Roles {
			if !c.known(member) {
				return nil, fmt.Errorf("pseudo role %q: %w", p.Name, installplan.UnknownRole(member))
			}
		}
	}
	state := make(map[string]int, len(c.pseudos))
	for _, p := range c.pseudos {
		if err := c.checkCycle(p.Name, state, nil); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Default returns the catalog of the stock distribution.
func Default() *Catalog {
	c, err := New(DefaultPrimitives(), DefaultPseudos())
	if err != nil {
		panic(err)
	}
	return c
}

// DefaultPrimitives lists the primitive roles in declaration order.
func DefaultPrimitives() []Primitive {
	return []Primitive{
		{Name: NameNode, Tools: []string{GlobalPrereq, Hadoop}},
		{Name: SecondaryNameNode, Tools: []string{GlobalPrereq, Hadoop}},
		{Name: JobTracker, Tools: []string{GlobalPrereq, Hadoop}},
		{Name: DataNode, Tools: []string{GlobalPrereq, Hadoop}},
		{Name: TaskTracker, Tools: []string{GlobalPrereq, Hadoop}},
		{Name: ScribeMaster, Tools: []string{GlobalPrereq, Hadoop, Scribe, Portal, LogMover}},
		{Name: PortalRole, Tools: []string{GlobalPrereq, Hadoop, Portal}},
		{Name: LogMoverRole, Tools: []string{GlobalPrereq, LogMover}},
		{Name: HiveRole, Tools: []string{GlobalPrereq, Hadoop, Hive}},
		{Name: PigRole, Tools: []string{GlobalPrereq, Hadoop, Pig}},
	}
}

// DefaultPseudos lists the pseudo roles in declaration order.
func DefaultPseudos() []Pseudo {
	return []Pseudo{
		{Name: HadoopMaster, Roles: []string{NameNode, SecondaryNameNode, JobTracker}},
		{Name: Master, Roles: []string{HadoopMaster, ScribeMaster, PortalRole, LogMoverRole, HiveRole, PigRole}},
		{Name: Slave, Roles: []string{DataNode, TaskTracker}},
		{Name: Standalone, Roles: []string{Master, Slave}},
	}
}

// IsPrimitive reports whether name installs tools directly.
func (c *Catalog) IsPrimitive(name string) bool {
	_, ok := c.primIndex[name]
	return ok
}

// IsPseudo reports whether name stands for other roles.
func (c *Catalog) IsPseudo(name string) bool {
	_, ok := c.pseudoIdx[name]
	return ok
}

// Primitives returns the primitive role definitions.
func (c *Catalog) Primitives() []Primitive {
	return append([]Primitive(nil), c.primitives...)
}

// Pseudos returns the pseudo role definitions.
func (c *Catalog) Pseudos() []Pseudo {
	return append([]Pseudo(nil), c.pseudos...)
}

// Expand resolves names to primitive roles. The result holds every primitive
// once, in catalog declaration order.
func (c *Catalog) Expand(names []string) ([]string, error) {
	selected := make(map[string]bool)
	visited := make(map[string]bool)
	for _, name := range names {
		if err := c.expandInto(name, selected, visited); err != nil {
			return nil, err
		}
	}
	out := make([]string, 0, len(selected))
	for _, p := range c.primitives {
		if selected[p.Name] {
			out = append(out, p.Name)
		}
	}
	return out, nil
}

func (c *Catalog) expandInto(name string, selected, visited map[string]bool) error {
	if c.IsPrimitive(name) {
		selected[name] = true
		return nil
	}
	idx, ok := c.pseudoIdx[name]
	if !ok {
		return installplan.UnknownRole(name)
	}
	if visited[name] {
		return nil
	}
	visited[name] = true
	for _, member := range c.pseudos[idx].Roles {
		if err := c.expandInto(member, selected, visited); err != nil {
			return err
		}
	}
	return nil
}

// ToolsFor returns the tools needed by the primitive roles, deduplicated, in
// the order they first appear.
func (c *Catalog) ToolsFor(primitives []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, name := range primitives {
		idx, ok := c.primIndex[name]
		if !ok {
			return nil, installplan.UnknownRole(name)
		}
		for _, tool := range c.primitives[idx].Tools {
			if seen[tool] {
				continue
			}
			seen[tool] = true
			out = append(out, tool)
		}
	}
	return out, nil
}

// Resolve expands names and returns the primitive roles and their tools.
func (c *Catalog) Resolve(names []string) ([]string, []string, error) {
	prims, err := c.Expand(names)
	if err != nil {
		return nil, nil, err
	}
	toolNames, err := c.ToolsFor(prims)
	if err != nil {
		return nil, nil, err
	}
	return prims, toolNames, nil
}

func (c *Catalog) known(name string) bool {
	return c.IsPrimitive(name) || c.IsPseudo(name)
}

const (
	visiting = 1
	finished = 2
)

func (c *Catalog) checkCycle(name string, state map[string]int, path []string) error {
	idx, ok := c.pseudoIdx[name]
	if !ok {
		return nil
	}
	path = append(append([]string(nil), path...), name)
	switch state[name] {
	case finished:
		return nil
	case visiting:
		return &installplan.PlanningError{Kind: installplan.ErrCycle, Tool: name, Path: path, Msg: "pseudo role refers back to itself: " + strings.Join(path, " -> ")}
	}
	state[name] = visiting
	for _, member := range c.pseudos[idx].Roles {
		if err := c.checkCycle(member, state, path); err != nil {
			return err
		}
	}
	state[name] = finished
	return nil
}
