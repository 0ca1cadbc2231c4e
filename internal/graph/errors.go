package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCircularDependency is matched by every CircularDependencyError.
var ErrCircularDependency = errors.New("circular dependency detected")

// CircularDependencyError represents a cycle between instances. Path holds
// the nodes of the cycle in dependency order, starting at Node.
type CircularDependencyError struct {
	Node NodeKey
	Path []NodeKey
}

func (e CircularDependencyError) Error() string {
	var b strings.Builder
	b.WriteString("circular dependency detected:\n\n")

	if len(e.Path) == 0 {
		b.WriteString(fmt.Sprintf("    %s\n", e.Node.String()))
		b.WriteString("      ↓\n")
		b.WriteString(fmt.Sprintf("    %s (cycle)\n", e.Node.String()))
	} else {
		for i, node := range e.Path {
			b.WriteString(fmt.Sprintf("    %s\n", node.String()))
			if i < len(e.Path)-1 {
				b.WriteString("      ↓\n")
			}
		}
		b.WriteString("      ↓\n")
		b.WriteString(fmt.Sprintf("    %s (cycle)\n", e.Path[0].String()))
	}

	b.WriteString("\nTo resolve this:\n")
	b.WriteString("  • Bind one side of the cycle to a different instance\n")
	b.WriteString("  • Resolve the dependency lazily from the build session inside a constructor\n")
	b.WriteString("  • Restructure to remove the circular relationship\n")

	return b.String()
}

// Is reports whether target is ErrCircularDependency.
func (e CircularDependencyError) Is(target error) bool {
	return target == ErrCircularDependency
}

// Names returns the cycle as "Type[name]" strings.
func (e CircularDependencyError) Names() []string {
	names := make([]string, len(e.Path))
	for i, node := range e.Path {
		names[i] = node.String()
	}
	return names
}
