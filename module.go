package wirekit

import (
	"reflect"
)

// Module is a group of registrations applied to a PluginGraph.
type Module func(g *PluginGraph) error

// NewModule creates a named module from other modules. Modules are a way to
// group related registrations together.
//
// Example:
//
//	var EngineModule = wirekit.NewModule("engines",
//	    wirekit.Use[Engine](NewV8, wirekit.WithLifecycle(wirekit.Singleton)),
//	    wirekit.Use[Engine](NewV6, wirekit.Named("v6")),
//	)
//
//	var AppModule = wirekit.NewModule("app",
//	    EngineModule,
//	    wirekit.Use[*Car](NewCar),
//	    wirekit.Profile[Engine]("economy", "v6"),
//	)
func NewModule(name string, modules ...Module) Module {
	return func(g *PluginGraph) error {
		for _, m := range modules {
			if m == nil {
				continue
			}

			if err := m(g); err != nil {
				return ModuleError{Module: name, Cause: err}
			}
		}

		return nil
	}
}

// Use registers a FromFunc instance of fn under the plugin type T.
func Use[T any](fn any, opts ...InstanceOption) Module {
	return func(g *PluginGraph) error {
		inst, err := FromFunc(fn, opts...)
		if err != nil {
			return err
		}
		return g.Register(reflect.TypeFor[T](), inst)
	}
}

// UseInstance registers an already created instance under the plugin type T.
func UseInstance[T any](inst *Instance) Module {
	return func(g *PluginGraph) error {
		return g.Register(reflect.TypeFor[T](), inst)
	}
}

// UseObject registers a pre-built object under the plugin type T.
func UseObject[T any](obj T, opts ...InstanceOption) Module {
	return func(g *PluginGraph) error {
		inst, err := Object(obj, opts...)
		if err != nil {
			return err
		}
		return g.Register(reflect.TypeFor[T](), inst)
	}
}

// DefaultTo makes the named instance the default of T.
func DefaultTo[T any](name string) Module {
	return func(g *PluginGraph) error {
		return g.SetDefaultName(reflect.TypeFor[T](), name)
	}
}

// LifecycleOf sets the family lifecycle of T.
func LifecycleOf[T any](lifecycle Lifecycle) Module {
	return func(g *PluginGraph) error {
		return g.SetLifecycle(reflect.TypeFor[T](), lifecycle)
	}
}

// Profile makes the named instance the default of T under profile.
func Profile[T any](profile, name string) Module {
	return func(g *PluginGraph) error {
		return g.AddProfile(profile, reflect.TypeFor[T](), name)
	}
}

// Build creates a graph from modules and seals it.
func Build(modules ...Module) (*PluginGraph, error) {
	g := NewPluginGraph()
	if err := g.Include(modules...); err != nil {
		return nil, err
	}
	return g.Seal(), nil
}
