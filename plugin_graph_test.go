package wirekit_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/junioryono/wirekit"
	"github.com/junioryono/wirekit/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func v8Instance(t *testing.T, opts ...wirekit.InstanceOption) *wirekit.Instance {
	t.Helper()
	inst, err := wirekit.FromFunc(testutil.NewV8, append([]wirekit.InstanceOption{wirekit.With("arg0", 8)}, opts...)...)
	return testutil.MustInstance(t, inst, err)
}

func v6Instance(t *testing.T, opts ...wirekit.InstanceOption) *wirekit.Instance {
	t.Helper()
	inst, err := wirekit.FromFunc(testutil.NewV6, append([]wirekit.InstanceOption{wirekit.With("arg0", 6)}, opts...)...)
	return testutil.MustInstance(t, inst, err)
}

func TestPluginGraph_Register(t *testing.T) {
	t.Run("first instance is the default", func(t *testing.T) {
		g := wirekit.NewPluginGraph()
		require.NoError(t, g.Register(engineType, v8Instance(t, wirekit.Named("v8"))))
		require.NoError(t, g.Register(engineType, v6Instance(t, wirekit.Named("v6"))))

		inst, err := g.Find(engineType, "")
		require.NoError(t, err)
		assert.Equal(t, "v8", inst.Name())
		assert.Len(t, g.FindAll(engineType), 2)
		assert.True(t, g.Has(engineType))
		assert.False(t, g.Has(carType))
	})

	t.Run("same name and concrete type replaces", func(t *testing.T) {
		g := wirekit.NewPluginGraph()
		first := v8Instance(t, wirekit.Named("main"))
		second := v8Instance(t, wirekit.Named("main"))

		require.NoError(t, g.Register(engineType, first))
		require.NoError(t, g.Register(engineType, second))

		all := g.FindAll(engineType)
		require.Len(t, all, 1)
		assert.Same(t, second, all[0])
	})

	t.Run("same name with another concrete type", func(t *testing.T) {
		g := wirekit.NewPluginGraph()
		require.NoError(t, g.Register(engineType, v8Instance(t, wirekit.Named("main"))))

		err := g.Register(engineType, v6Instance(t, wirekit.Named("main")))
		require.ErrorIs(t, err, wirekit.ErrDuplicateName)

		var dup wirekit.DuplicateNameError
		require.True(t, errors.As(err, &dup))
		assert.Equal(t, "main", dup.Name)

		require.NoError(t, g.Replace(engineType, v6Instance(t, wirekit.Named("main"))))
		inst, err := g.Find(engineType, "main")
		require.NoError(t, err)
		assert.Equal(t, "*V6Engine(arg0)", inst.Description())
	})

	t.Run("concrete type must implement the plugin type", func(t *testing.T) {
		g := wirekit.NewPluginGraph()

		err := g.Register(carType, v8Instance(t))
		var mismatch wirekit.TypeMismatchError
		require.True(t, errors.As(err, &mismatch))
		assert.Equal(t, "registration", mismatch.Context)

		assert.ErrorIs(t, g.Register(nil, v8Instance(t)), wirekit.ErrPluginTypeNil)
		assert.ErrorIs(t, g.Register(engineType, nil), wirekit.ErrInstanceNil)
	})

	t.Run("sealed graph rejects mutation", func(t *testing.T) {
		g := wirekit.NewPluginGraph().Seal()
		assert.True(t, g.Sealed())

		assert.ErrorIs(t, g.Register(engineType, v8Instance(t)), wirekit.ErrGraphSealed)
		assert.ErrorIs(t, g.SetLifecycle(engineType, wirekit.Singleton), wirekit.ErrGraphSealed)
		assert.ErrorIs(t, g.AddProfile("economy", engineType, "v6"), wirekit.ErrGraphSealed)
		assert.ErrorIs(t, g.SetActiveProfile("economy"), wirekit.ErrGraphSealed)
	})

	t.Run("default name must exist", func(t *testing.T) {
		g := wirekit.NewPluginGraph()
		require.NoError(t, g.Register(engineType, v8Instance(t, wirekit.Named("v8"))))

		err := g.SetDefaultName(engineType, "v12")
		assert.True(t, wirekit.IsMissing(err))

		err = g.SetDefaultName(carType, "any")
		assert.True(t, wirekit.IsMissing(err))
	})
}

func TestPluginGraph_Clone(t *testing.T) {
	g := testutil.NewGraph(t,
		testutil.EngineModule(),
		wirekit.Profile[testutil.Engine]("economy", "v6"),
	)

	clone := g.Clone()
	assert.False(t, clone.Sealed())
	assert.Equal(t, g.Profiles(), clone.Profiles())

	require.NoError(t, clone.SetDefaultName(engineType, "v6"))

	original, err := g.Find(engineType, "")
	require.NoError(t, err)
	assert.Equal(t, "v8", original.Name())

	changed, err := clone.Find(engineType, "")
	require.NoError(t, err)
	assert.Equal(t, "v6", changed.Name())
}

func TestPluginGraph_Families(t *testing.T) {
	g := testutil.NewGraph(t,
		testutil.EngineModule(),
		wirekit.Use[*testutil.Car](testutil.NewCar),
		wirekit.LifecycleOf[*testutil.Car](wirekit.Unique),
	)

	assert.Equal(t, []reflect.Type{engineType, carType}, g.PluginTypes())

	families := g.Families()
	require.Len(t, families, 2)
	assert.Equal(t, "", families[0].Lifecycle)
	assert.Equal(t, "Unique", families[1].Lifecycle)
	assert.Equal(t, "Unique", families[1].Instances[0].Lifecycle)
}

func TestModule(t *testing.T) {
	t.Run("errors name the module", func(t *testing.T) {
		_, err := wirekit.Build(wirekit.NewModule("cars",
			wirekit.DefaultTo[testutil.Engine]("v12"),
		))

		var modErr wirekit.ModuleError
		require.True(t, errors.As(err, &modErr))
		assert.Equal(t, "cars", modErr.Module)
		assert.True(t, wirekit.IsMissing(err))
	})

	t.Run("nested modules and nil entries", func(t *testing.T) {
		g, err := wirekit.Build(
			wirekit.NewModule("app", testutil.EngineModule(), nil),
			nil,
			wirekit.DefaultTo[testutil.Engine]("v6"),
		)
		require.NoError(t, err)
		assert.True(t, g.Sealed())

		inst, err := g.Find(engineType, "")
		require.NoError(t, err)
		assert.Equal(t, "v6", inst.Name())
	})

	t.Run("invalid constructor", func(t *testing.T) {
		_, err := wirekit.Build(wirekit.Use[testutil.Engine]("not a function"))
		assert.Error(t, err)

		_, err = wirekit.Build(wirekit.Use[testutil.Engine](func() {}))
		assert.Error(t, err)
	})
}
