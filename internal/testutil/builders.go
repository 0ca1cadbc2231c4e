package testutil

import (
	"testing"

	"github.com/junioryono/wirekit"
	"github.com/stretchr/testify/require"
)

// MustInstance fails the test when creating an instance failed.
func MustInstance(t *testing.T, inst *wirekit.Instance, err error) *wirekit.Instance {
	t.Helper()
	require.NoError(t, err)
	return inst
}

// NewGraph builds and seals a graph from modules.
func NewGraph(t *testing.T, modules ...wirekit.Module) *wirekit.PluginGraph {
	t.Helper()
	g, err := wirekit.Build(modules...)
	require.NoError(t, err)
	return g
}

// NewContainer creates a container over modules, closed when the test ends.
func NewContainer(t *testing.T, modules []wirekit.Module, opts ...wirekit.Option) *wirekit.Container {
	t.Helper()
	c, err := wirekit.New(NewGraph(t, modules...), opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = c.Close()
	})
	return c
}

// EngineModule registers a Singleton V8 default with 8 cylinders and a
// "v6" instance with 6.
func EngineModule() wirekit.Module {
	return wirekit.NewModule("engines",
		wirekit.Use[Engine](NewV8,
			wirekit.Named("v8"),
			wirekit.ParamNames("cylinders"),
			wirekit.With("cylinders", 8),
			wirekit.WithLifecycle(wirekit.Singleton),
		),
		wirekit.Use[Engine](NewV6,
			wirekit.Named("v6"),
			wirekit.ParamNames("cylinders"),
			wirekit.With("cylinders", 6),
		),
	)
}
