package graph

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// DependencyGraph records which instances depend on which other instances.
// It provides cycle detection, topological sorting, and direct dependency
// queries over (plugin type, instance name) nodes.
type DependencyGraph struct {
	mu    sync.RWMutex
	nodes map[NodeKey]*Node
	edges map[NodeKey][]NodeKey // adjacency list representation

	// Cache for performance
	sortedNodes      []*Node
	sortedNodesDirty bool
}

// NodeKey uniquely identifies a node in the graph
type NodeKey struct {
	Type reflect.Type
	Name string
}

// Node represents an instance in the dependency graph
type Node struct {
	Key NodeKey

	// Graph metadata
	InDegree  int // number of dependents
	OutDegree int // number of dependencies

	// Dependency information
	Dependencies []NodeKey // instances this node depends on
	Dependents   []NodeKey // instances that depend on this node
}

// NewDependencyGraph creates a new dependency graph
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes:            make(map[NodeKey]*Node),
		edges:            make(map[NodeKey][]NodeKey),
		sortedNodesDirty: true,
	}
}

// AddNode adds a node and its outgoing edges. Adding a node twice replaces
// its edges. Unknown dependency nodes are created as leaves.
func (g *DependencyGraph) AddNode(key NodeKey, dependencies []NodeKey) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ensureNode(key)

	deps := make([]NodeKey, len(dependencies))
	copy(deps, dependencies)
	for _, dep := range deps {
		g.ensureNode(dep)
	}

	g.edges[key] = deps
	g.updateDegrees()
	g.sortedNodesDirty = true
}

func (g *DependencyGraph) ensureNode(key NodeKey) {
	if _, exists := g.nodes[key]; !exists {
		g.nodes[key] = &Node{Key: key}
	}
}

// updateDegrees recalculates in/out degrees for all nodes
func (g *DependencyGraph) updateDegrees() {
	for _, node := range g.nodes {
		node.InDegree = 0
		node.OutDegree = 0
		node.Dependencies = nil
		node.Dependents = nil
	}

	for from, tos := range g.edges {
		fromNode, exists := g.nodes[from]
		if !exists {
			continue
		}

		fromNode.OutDegree = len(tos)
		fromNode.Dependencies = make([]NodeKey, len(tos))
		copy(fromNode.Dependencies, tos)

		for _, to := range tos {
			if toNode, exists := g.nodes[to]; exists {
				toNode.InDegree++
				toNode.Dependents = append(toNode.Dependents, from)
			}
		}
	}
}

// TopologicalSort returns nodes in dependency order (dependencies first).
func (g *DependencyGraph) TopologicalSort() ([]*Node, error) {
	g.mu.RLock()
	if !g.sortedNodesDirty && g.sortedNodes != nil {
		result := make([]*Node, len(g.sortedNodes))
		copy(result, g.sortedNodes)
		g.mu.RUnlock()
		return result, nil
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	// Kahn's algorithm on the reversed edges: a node is ready once all of
	// its dependencies have been emitted.
	remaining := make(map[NodeKey]int, len(g.nodes))
	for key, node := range g.nodes {
		remaining[key] = node.OutDegree
	}

	queue := make([]NodeKey, 0)
	for _, key := range g.sortedKeys() {
		if remaining[key] == 0 {
			queue = append(queue, key)
		}
	}

	result := make([]*Node, 0, len(g.nodes))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		node := g.nodes[current]
		result = append(result, node)

		for _, dependent := range node.Dependents {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(result) != len(g.nodes) {
		return nil, fmt.Errorf("circular dependency detected: graph contains %d nodes but only %d could be sorted",
			len(g.nodes), len(result))
	}

	g.sortedNodes = result
	g.sortedNodesDirty = false

	resultCopy := make([]*Node, len(result))
	copy(resultCopy, result)
	return resultCopy, nil
}

// DetectCycles checks if the graph contains any cycles and returns the first
// one found, in a stable order.
func (g *DependencyGraph) DetectCycles() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := make(map[NodeKey]bool, len(g.nodes))
	for _, key := range g.sortedKeys() {
		if visited[key] {
			continue
		}
		if err := g.detectCyclesFrom(key, visited); err != nil {
			return err
		}
	}

	return nil
}

// detectCyclesFrom performs DFS cycle detection from a specific node. The
// current path doubles as the cycle report.
func (g *DependencyGraph) detectCyclesFrom(start NodeKey, visited map[NodeKey]bool) error {
	onPath := make(map[NodeKey]int)
	path := make([]NodeKey, 0)

	var visit func(current NodeKey) error
	visit = func(current NodeKey) error {
		if idx, ok := onPath[current]; ok {
			cycle := make([]NodeKey, len(path)-idx)
			copy(cycle, path[idx:])
			return &CircularDependencyError{Node: current, Path: cycle}
		}
		if visited[current] {
			return nil
		}

		onPath[current] = len(path)
		path = append(path, current)

		for _, dep := range g.edges[current] {
			if err := visit(dep); err != nil {
				return err
			}
		}

		path = path[:len(path)-1]
		delete(onPath, current)
		visited[current] = true
		return nil
	}

	return visit(start)
}

// sortedKeys returns node keys in a deterministic order (must be called with lock held).
func (g *DependencyGraph) sortedKeys() []NodeKey {
	keys := make([]NodeKey, 0, len(g.nodes))
	for key := range g.nodes {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

// GetDependencies returns the direct dependencies of a node
func (g *DependencyGraph) GetDependencies(key NodeKey) []NodeKey {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if node, exists := g.nodes[key]; exists {
		result := make([]NodeKey, len(node.Dependencies))
		copy(result, node.Dependencies)
		return result
	}

	return nil
}

// GetDependents returns nodes that depend on the given node
func (g *DependencyGraph) GetDependents(key NodeKey) []NodeKey {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if node, exists := g.nodes[key]; exists {
		result := make([]NodeKey, len(node.Dependents))
		copy(result, node.Dependents)
		return result
	}

	return nil
}

// Size returns the number of nodes in the graph
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.nodes)
}

// String returns a string representation of the node key
func (k NodeKey) String() string {
	if k.Name != "" {
		return fmt.Sprintf("%v[%s]", k.Type, k.Name)
	}
	return fmt.Sprintf("%v", k.Type)
}
