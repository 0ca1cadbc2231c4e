// Package wirekit provides an inversion-of-control container for Go
// applications. Registrations map a plugin type to one or more instances;
// the container compiles each instance into a build plan once and then
// builds, caches and shares objects according to their lifecycles.
//
// # Overview
//
// wirekit provides:
//   - A PluginGraph registry of plugin types, named instances and defaults
//   - Build plans compiled once per instance, with cycle detection
//   - Lifecycles: Transient (per request), Unique, Singleton, and custom caches
//   - Explicit arguments that override the graph for a single request
//   - Profiles that switch the defaults of several plugin types at once
//   - Injection of pre-built objects into a running container
//   - Validation of the whole configuration without building anything
//
// # Basic Usage
//
// Register instances, seal the graph, create a container and resolve:
//
//	g, err := wirekit.Build(
//	    wirekit.Use[Engine](NewV8, wirekit.WithLifecycle(wirekit.Singleton)),
//	    wirekit.Use[Engine](NewV6, wirekit.Named("v6")),
//	    wirekit.Use[*Car](NewCar),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	container, err := wirekit.New(g, wirekit.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer container.Close()
//
//	car, err := wirekit.Resolve[*Car](container)
//
// # Lifecycles
//
//   - Transient: one object per top-level request; every dependency on the
//     instance within that request shares it. This is the default.
//   - Unique: a new object every time it is needed.
//   - Singleton: one object per container, built once even under concurrent
//     first requests.
//
// NewCachedLifecycle and NewBoundedLifecycle plug in other storage.
//
// # Instances and Dependency Sources
//
// Constructor arguments and setter values come from a DependencySource:
//
//	inst, err := wirekit.FromFunc(NewEngine,
//	    wirekit.ParamNames("cylinders"),
//	    wirekit.With("cylinders", 8),
//	)
//
//   - Literal: a fixed value
//   - Nested: an anonymous instance built in place
//   - Lookup, Ref, Default: another instance, through its lifecycle
//   - All: every instance of a plugin type
//   - Intercept: another source passed through an Interceptor
//
// Arguments that are not bound are auto-wired from the default instance of
// their type.
//
// # Parameter Objects (In)
//
// Constructors taking a struct that embeds wirekit.In get one named
// parameter per field:
//
//	type EngineParams struct {
//	    wirekit.In
//
//	    Cylinders int    `name:"cylinders" default:"8"`
//	    Logger    Logger `optional:"true"`
//	}
//
// # Explicit Arguments
//
// ResolveWith builds a fresh object with some arguments replaced. Named
// values apply to the requested instance; typed values apply everywhere in
// the request. Objects shared with other requests are never built from
// explicit values.
//
//	engine, err := wirekit.ResolveWith[Engine](container,
//	    wirekit.NewArgs().With("cylinders", 12))
//
// # Errors
//
// Failures carry the chain of instances being built:
//
//	_, err := wirekit.Resolve[*Car](container)
//	if frames, ok := wirekit.ChainOf(err); ok {
//	    for _, f := range frames {
//	        fmt.Println(f)
//	    }
//	}
//
// Use errors.Is with the Err* sentinels, or errors.As with the typed errors,
// to inspect them.
//
// # Configuration
//
// Lifecycles, defaults and profiles can be adjusted from YAML or the
// environment:
//
//	cfg, err := wirekit.ConfigFromEnv()
//	g, err := wirekit.Build(AppModule, wirekit.WithConfig(cfg))
package wirekit
