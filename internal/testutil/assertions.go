package testutil

import (
	"errors"
	"fmt"
	"testing"

	"github.com/junioryono/wirekit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertResolvable checks that T resolves to a non-nil object.
func AssertResolvable[T any](t *testing.T, c *wirekit.Container) T {
	t.Helper()
	obj, err := wirekit.Resolve[T](c)
	require.NoError(t, err, "failed to resolve %T", *new(T))
	require.NotNil(t, obj, "resolved object is nil")
	return obj
}

// AssertNamedResolvable checks that the named instance of T resolves.
func AssertNamedResolvable[T any](t *testing.T, c *wirekit.Container, name string) T {
	t.Helper()
	obj, err := wirekit.ResolveNamed[T](c, name)
	require.NoError(t, err, "failed to resolve %T named %q", *new(T), name)
	require.NotNil(t, obj, "resolved object is nil")
	return obj
}

// AssertMissing checks that resolving T fails with a missing instance.
func AssertMissing[T any](t *testing.T, c *wirekit.Container) {
	t.Helper()
	_, err := wirekit.Resolve[T](c)
	require.Error(t, err)
	assert.True(t, wirekit.IsMissing(err), "expected missing instance error, got: %v", err)
}

// AssertCyclic checks that err reports a cycle through the given number of
// instances and returns it.
func AssertCyclic(t *testing.T, err error, length int) *wirekit.CyclicDependencyError {
	t.Helper()
	require.Error(t, err)
	require.True(t, wirekit.IsCyclic(err), "expected cyclic dependency error, got: %v", err)

	var cycle *wirekit.CyclicDependencyError
	require.True(t, errors.As(err, &cycle))
	assert.Len(t, cycle.Path, length)
	return cycle
}

// AssertChain checks that err carries a resolution chain naming instances
// in order and returns it.
func AssertChain(t *testing.T, err error, instances ...string) []wirekit.Frame {
	t.Helper()
	frames, ok := wirekit.ChainOf(err)
	require.True(t, ok, "error has no resolution chain: %v", err)

	names := make([]string, len(frames))
	for i, f := range frames {
		names[i] = f.Instance
	}
	assert.Equal(t, instances, names)
	return frames
}

// AssertPanicsContaining checks that f panics with a message containing
// substr.
func AssertPanicsContaining(t *testing.T, substr string, f func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		require.NotNil(t, r, "function did not panic")
		assert.Contains(t, fmt.Sprint(r), substr)
	}()
	f()
}
