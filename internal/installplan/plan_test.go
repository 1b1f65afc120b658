package installplan

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudera/llama-sub000/internal/tools"
)

type fakeTool struct {
	name string
	deps []string
}

func tool(name string, deps ...string) *fakeTool {
	return &fakeTool{name: name, deps: deps}
}

func (f *fakeTool) Name() string                                      { return f.name }
func (f *fakeTool) Dependencies() []string                            { return f.deps }
func (f *fakeTool) Precheck(context.Context, *tools.Env) error        { return nil }
func (f *fakeTool) Configure(context.Context, *tools.Env) error       { return nil }
func (f *fakeTool) Install(context.Context, *tools.Env) error         { return nil }
func (f *fakeTool) PostInstall(context.Context, *tools.Env) error     { return nil }
func (f *fakeTool) Verify(context.Context, *tools.Env) error          { return nil }
func (f *fakeTool) PreserveState() (tools.Record, error)              { return tools.Record{}, nil }
func (f *fakeTool) RestoreState(tools.Record, []string, string) error { return nil }
func (f *fakeTool) RedeployArgs() []string                            { return nil }

func assertTopological(t *testing.T, ordered []tools.Tool) {
	t.Helper()
	pos := make(map[string]int, len(ordered))
	for i, item := range ordered {
		_, dup := pos[item.Name()]
		require.False(t, dup, "%s appears twice", item.Name())
		pos[item.Name()] = i
	}
	for i, item := range ordered {
		for _, dep := range item.Dependencies() {
			j, ok := pos[dep]
			require.True(t, ok, "%s depends on %s which is not in the plan", item.Name(), dep)
			assert.Less(t, j, i, "%s must come before %s", dep, item.Name())
		}
	}
}

func TestInstallItemsOrdersDependenciesFirst(t *testing.T) {
	hive := tool("Hive", "GlobalPrereq", "Hadoop")
	hadoop := tool("Hadoop", "GlobalPrereq")
	prereq := tool("GlobalPrereq")

	items, err := New(hive, hadoop, prereq).InstallItems()
	require.NoError(t, err)
	assert.Equal(t, []string{"GlobalPrereq", "Hadoop", "Hive"}, Names(items))
}

func TestRandomDAGsAreTopologicallyValid(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		n := 1 + rng.Intn(12)
		all := make([]tools.Tool, n)
		for i := 0; i < n; i++ {
			var deps []string
			for j := 0; j < i; j++ {
				if rng.Intn(3) == 0 {
					deps = append(deps, fmt.Sprintf("t%d", j))
				}
			}
			all[i] = tool(fmt.Sprintf("t%d", i), deps...)
		}
		rng.Shuffle(len(all), func(a, b int) { all[a], all[b] = all[b], all[a] })

		items, err := New(all...).InstallItems()
		require.NoError(t, err, "round %d", round)
		require.Len(t, items, n)
		assertTopological(t, items)
	}
}

func TestCycleIsReported(t *testing.T) {
	a := tool("A", "B")
	b := tool("B", "A")

	_, err := New(a, b).InstallItems()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCycle))

	var perr *PlanningError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, []string{"A", "B", "A"}, perr.Path)
}

func TestSelfDependencyIsACycle(t *testing.T) {
	_, err := New(tool("A", "A")).InstallItems()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCycle))
}

func TestMissingDependencyNamesToolAndDependency(t *testing.T) {
	_, err := New(tool("A", "Z", "Y")).InstallItems()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingDependency))

	var perr *PlanningError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "A", perr.Tool)
	assert.Equal(t, []string{"Z", "Y"}, perr.Missing)
	assert.Contains(t, err.Error(), "A")
	assert.Contains(t, err.Error(), "Z")
}

func TestVerifyIsMemoized(t *testing.T) {
	p := New(tool("B", "A"), tool("A"))
	first, err := p.InstallItems()
	require.NoError(t, err)

	require.NoError(t, p.VerifyDependencies())
	second, err := p.InstallItems()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAddAfterVerifyKeepsExistingOrder(t *testing.T) {
	a := tool("A")
	b := tool("B", "A")
	p := New(b, a)
	_, err := p.InstallItems()
	require.NoError(t, err)

	p.Add(a)
	p.Add(tool("C", "B"))
	items, err := p.InstallItems()
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, Names(items))
}

func TestSameInstanceTwiceIsTolerated(t *testing.T) {
	a := tool("A")
	items, err := New(a, a, tool("B", "A"), a).InstallItems()
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, Names(items))
}

func TestDuplicateNamesAreRejected(t *testing.T) {
	_, err := New(tool("A"), tool("A")).InstallItems()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateTool))
}

func TestFailureLeavesPlanUntouched(t *testing.T) {
	p := New(tool("A"))
	before, err := p.InstallItems()
	require.NoError(t, err)

	p.Add(tool("B", "missing"))
	require.Error(t, p.VerifyDependencies())
	assert.Equal(t, before, p.ordered)
}

func TestEmptyPlan(t *testing.T) {
	items, err := New().InstallItems()
	require.NoError(t, err)
	assert.Empty(t, items)
}
