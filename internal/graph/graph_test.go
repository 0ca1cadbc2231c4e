package graph_test

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/junioryono/wirekit/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engine interface{ Start() }
type gearbox interface{ Shift() }
type chassis struct{}

var (
	engineType  = reflect.TypeOf((*engine)(nil)).Elem()
	gearboxType = reflect.TypeOf((*gearbox)(nil)).Elem()
	chassisType = reflect.TypeOf(chassis{})
)

func key(t reflect.Type, name string) graph.NodeKey {
	return graph.NodeKey{Type: t, Name: name}
}

func TestDependencyGraph_AddNode(t *testing.T) {
	g := graph.NewDependencyGraph()
	a := key(engineType, "v8")
	b := key(gearboxType, "manual")

	g.AddNode(a, []graph.NodeKey{b})

	assert.Equal(t, 2, g.Size(), "dependency should be created as a leaf")
	assert.Equal(t, []graph.NodeKey{b}, g.GetDependencies(a))
	assert.Equal(t, []graph.NodeKey{a}, g.GetDependents(b))

	// Replacing a node replaces its edges
	g.AddNode(a, nil)
	assert.Empty(t, g.GetDependencies(a))
	assert.Empty(t, g.GetDependents(b))
	assert.Nil(t, g.GetDependencies(key(chassisType, "")), "unknown node")
}

func TestDependencyGraph_TopologicalSort(t *testing.T) {
	g := graph.NewDependencyGraph()
	a := key(engineType, "v8")
	b := key(gearboxType, "manual")
	c := key(chassisType, "")

	// a -> b -> c, a -> c
	g.AddNode(a, []graph.NodeKey{b, c})
	g.AddNode(b, []graph.NodeKey{c})

	sorted, err := g.TopologicalSort()
	require.NoError(t, err)
	require.Len(t, sorted, 3)

	position := make(map[graph.NodeKey]int)
	for i, n := range sorted {
		position[n.Key] = i
	}

	assert.Less(t, position[c], position[b])
	assert.Less(t, position[b], position[a])

	// Cached result is returned as a copy
	again, err := g.TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, sorted, again)
}

func TestDependencyGraph_Cycles(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(g *graph.DependencyGraph)
		expectCycle bool
		cycleLen    int
	}{
		{
			name: "self-cycle",
			setup: func(g *graph.DependencyGraph) {
				g.AddNode(key(engineType, "v8"), []graph.NodeKey{key(engineType, "v8")})
			},
			expectCycle: true,
			cycleLen:    1,
		},
		{
			name: "two-node-cycle",
			setup: func(g *graph.DependencyGraph) {
				g.AddNode(key(engineType, "v8"), []graph.NodeKey{key(gearboxType, "auto")})
				g.AddNode(key(gearboxType, "auto"), []graph.NodeKey{key(engineType, "v8")})
			},
			expectCycle: true,
			cycleLen:    2,
		},
		{
			name: "diamond-no-cycle",
			setup: func(g *graph.DependencyGraph) {
				d := key(chassisType, "")
				g.AddNode(key(gearboxType, "b"), []graph.NodeKey{d})
				g.AddNode(key(gearboxType, "c"), []graph.NodeKey{d})
				g.AddNode(key(engineType, "a"), []graph.NodeKey{key(gearboxType, "b"), key(gearboxType, "c")})
			},
			expectCycle: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := graph.NewDependencyGraph()
			tt.setup(g)

			err := g.DetectCycles()
			if !tt.expectCycle {
				assert.NoError(t, err)
				_, sortErr := g.TopologicalSort()
				assert.NoError(t, sortErr)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, graph.ErrCircularDependency))

			var cycleErr *graph.CircularDependencyError
			require.True(t, errors.As(err, &cycleErr))
			assert.Len(t, cycleErr.Path, tt.cycleLen)
			assert.Contains(t, err.Error(), "(cycle)")

			_, sortErr := g.TopologicalSort()
			assert.Error(t, sortErr)
		})
	}
}

func TestDependencyGraph_ConcurrentOperations(t *testing.T) {
	g := graph.NewDependencyGraph()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			name := string(rune('a' + idx))
			var deps []graph.NodeKey
			if idx > 0 {
				deps = []graph.NodeKey{key(engineType, string(rune('a'+idx-1)))}
			}
			g.AddNode(key(engineType, name), deps)
		}(i)
	}

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Size()
			_ = g.DetectCycles()
		}()
	}

	wg.Wait()

	assert.Equal(t, 10, g.Size())
	assert.NoError(t, g.DetectCycles())
}

func TestNodeKey_String(t *testing.T) {
	assert.Equal(t, "graph_test.engine[v8]", key(engineType, "v8").String())
	assert.Equal(t, "graph_test.chassis", key(chassisType, "").String())
}
