package wirekit

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/junioryono/wirekit/internal/graph"
	"github.com/junioryono/wirekit/internal/lifetime"
)

const tracerName = "github.com/junioryono/wirekit"

// Container resolves objects from a sealed PluginGraph.
//
// Every change to the graph (Inject, SetDefault, Configure, SetProfile,
// Reset) installs a new state; resolutions already running finish against
// the state they started with. Singletons survive every change except Reset,
// apart from the instances a change replaced.
type Container struct {
	id     string
	opts   options
	logger *zap.Logger
	tracer trace.Tracer

	mu        sync.RWMutex
	state     *containerState
	observers []func()

	closed atomic.Bool
}

// containerState is an immutable snapshot used by resolutions.
type containerState struct {
	container  *Container
	graph      *PluginGraph
	profile    string
	planner    *planner
	singletons *lifetime.Shared
}

// New creates a container over a sealed graph.
func New(g *PluginGraph, opts ...Option) (*Container, error) {
	if g == nil {
		return nil, ErrGraphNil
	}
	if !g.Sealed() {
		return nil, GraphNotSealedError{Operation: "create container"}
	}

	c := &Container{id: uuid.NewString()}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(&c.opts)
		}
	}

	c.logger = c.opts.logger
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.logger = c.logger.With(zap.String("container", c.id))

	tp := c.opts.tracerProvider
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	c.tracer = tp.Tracer(tracerName)

	profile := g.ActiveProfile()
	if c.opts.profileSet {
		profile = c.opts.profile
	}
	if err := checkProfile(g, profile); err != nil {
		return nil, err
	}

	c.state = c.newState(g, profile, lifetime.NewShared())

	c.logger.Debug("container created",
		zap.Int("plugin_types", len(g.PluginTypes())),
		zap.String("profile", profile))

	return c, nil
}

func checkProfile(g *PluginGraph, profile string) error {
	if profile == "" {
		return nil
	}
	for _, p := range g.Profiles() {
		if p == profile {
			return nil
		}
	}
	return ProfileNotFoundError{Profile: profile, Available: g.Profiles()}
}

func (c *Container) newState(g *PluginGraph, profile string, singletons *lifetime.Shared) *containerState {
	st := &containerState{
		container:  c,
		graph:      g,
		profile:    profile,
		singletons: singletons,
	}
	st.planner = newPlanner(g, profile, st.compiled)
	return st
}

func (c *Container) current() *containerState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (st *containerState) find(pluginType reflect.Type, name string) (*Instance, error) {
	return st.graph.find(pluginType, name, st.profile)
}

func (st *containerState) compiled(plan *BuildPlan) {
	c := st.container
	c.opts.metrics.compiled()
	if ce := c.logger.Check(zap.DebugLevel, "plan compiled"); ce != nil {
		ce.Write(
			zap.String("plugin_type", formatType(plan.key.PluginType)),
			zap.String("instance", plan.key.Instance),
			zap.String("lifecycle", plan.lifecycle.String()),
			zap.Int("dependencies", len(plan.deps)))
	}
}

func (st *containerState) built(plan *BuildPlan, d time.Duration) {
	c := st.container
	c.opts.metrics.built(formatType(plan.key.PluginType), plan.lifecycle.String())
	if ce := c.logger.Check(zap.DebugLevel, "object built"); ce != nil {
		ce.Write(
			zap.String("plugin_type", formatType(plan.key.PluginType)),
			zap.String("instance", plan.key.Instance),
			zap.String("lifecycle", plan.lifecycle.String()),
			zap.Duration("duration", d))
	}
}

func (st *containerState) cacheHit(plan *BuildPlan) {
	st.container.opts.metrics.hit(plan.lifecycle.String())
}

// ID returns the unique identifier of the container.
func (c *Container) ID() string {
	return c.id
}

// Profile returns the active profile.
func (c *Container) Profile() string {
	return c.current().profile
}

// Graph returns the current sealed graph.
func (c *Container) Graph() *PluginGraph {
	return c.current().graph
}

// Resolve returns the default object of pluginType.
func (c *Container) Resolve(pluginType reflect.Type) (any, error) {
	return c.resolve(context.Background(), pluginType, "", nil)
}

// ResolveNamed returns the object of the named instance of pluginType.
func (c *Container) ResolveNamed(pluginType reflect.Type, name string) (any, error) {
	return c.resolve(context.Background(), pluginType, name, nil)
}

// ResolveContext is ResolveNamed with a context. The context carries trace
// information only; resolution is not cancellable.
func (c *Container) ResolveContext(ctx context.Context, pluginType reflect.Type, name string) (any, error) {
	return c.resolve(ctx, pluginType, name, nil)
}

// ResolveWith builds the default object of pluginType with explicit
// arguments. The result is never cached, and objects shared beyond this
// request are never built from the explicit values.
func (c *Container) ResolveWith(pluginType reflect.Type, args *ExplicitArgs) (any, error) {
	return c.resolve(context.Background(), pluginType, "", args)
}

// ResolveNamedWith is ResolveWith for a named instance.
func (c *Container) ResolveNamedWith(pluginType reflect.Type, name string, args *ExplicitArgs) (any, error) {
	return c.resolve(context.Background(), pluginType, name, args)
}

// ResolveAll returns an object for every instance of pluginType, in
// registration order, built in one session.
func (c *Container) ResolveAll(pluginType reflect.Type) ([]any, error) {
	if pluginType == nil {
		return nil, ErrPluginTypeNil
	}
	if c.closed.Load() {
		return nil, ErrContainerClosed
	}

	st := c.current()
	ctx, span := c.startSpan(context.Background(), "wirekit.ResolveAll", pluginType, "", st.profile)
	start := time.Now()

	out, err := newSession(ctx, st, nil).ResolveAll(pluginType)

	c.finish(span, pluginType, out, err, time.Since(start))
	return out, err
}

// ResolveInstance builds inst as pluginType against the container's graph
// without registering it. The instance's lifecycle applies.
func (c *Container) ResolveInstance(pluginType reflect.Type, inst *Instance) (any, error) {
	if err := checkAssignable(pluginType, inst); err != nil {
		return nil, err
	}
	if c.closed.Load() {
		return nil, ErrContainerClosed
	}

	st := c.current()
	ctx, span := c.startSpan(context.Background(), "wirekit.ResolveInstance", pluginType, inst.name, st.profile)
	start := time.Now()

	obj, err := func() (any, error) {
		plan, err := st.planner.planOnce(pluginType, inst)
		if err != nil {
			return nil, err
		}
		return newSession(ctx, st, nil).resolveRoot(plan)
	}()

	c.finish(span, pluginType, obj, err, time.Since(start))
	return obj, err
}

// Plan returns the compiled plan of the named instance of pluginType.
func (c *Container) Plan(pluginType reflect.Type, name string) (*BuildPlan, error) {
	st := c.current()

	inst, err := st.find(pluginType, name)
	if err != nil {
		return nil, err
	}
	return st.planner.planFor(pluginType, inst)
}

func (c *Container) resolve(ctx context.Context, pluginType reflect.Type, name string, args *ExplicitArgs) (any, error) {
	if pluginType == nil {
		return nil, ErrPluginTypeNil
	}
	if c.closed.Load() {
		return nil, ErrContainerClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	st := c.current()
	ctx, span := c.startSpan(ctx, "wirekit.Resolve", pluginType, name, st.profile)
	start := time.Now()

	obj, err := func() (any, error) {
		inst, err := st.find(pluginType, name)
		if err != nil {
			return nil, err
		}

		plan, err := st.planner.planFor(pluginType, inst)
		if err != nil {
			return nil, err
		}

		return newSession(ctx, st, args).resolveRoot(plan)
	}()

	c.finish(span, pluginType, obj, err, time.Since(start))
	return obj, err
}

func (c *Container) startSpan(ctx context.Context, op string, pluginType reflect.Type, name, profile string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("wirekit.plugin_type", pluginType.String()),
		attribute.String("wirekit.instance", name),
		attribute.String("wirekit.profile", profile),
	))
}

func (c *Container) finish(span trace.Span, pluginType reflect.Type, obj any, err error, d time.Duration) {
	defer span.End()

	c.opts.metrics.resolved(formatType(pluginType), err, d)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolution failed")

		c.logger.Debug("resolution failed",
			zap.String("plugin_type", formatType(pluginType)),
			zap.Duration("duration", d),
			zap.Error(err))

		if c.opts.onError != nil {
			c.opts.onError(pluginType, err)
		}
		return
	}

	span.SetStatus(codes.Ok, "")
	if c.opts.onResolved != nil {
		c.opts.onResolved(pluginType, obj, d)
	}
}

// Inject makes obj the default of pluginType. With a name, obj replaces the
// instance of that name; otherwise it is added under a generated name. While
// a profile is active obj also becomes that profile's default.
func (c *Container) Inject(pluginType reflect.Type, obj any, name ...string) error {
	var opts []InstanceOption
	if len(name) > 0 && name[0] != "" {
		opts = append(opts, Named(name[0]))
	}

	inst, err := Object(obj, opts...)
	if err != nil {
		return err
	}

	return c.replaceGraph("inject", func(g *PluginGraph, profile string) error {
		if err := g.SetDefault(pluginType, inst); err != nil {
			return err
		}
		return setProfileDefault(g, profile, pluginType, inst.name)
	})
}

// SetDefault makes inst the default of pluginType, registering it if needed.
// While a profile is active inst also becomes that profile's default.
func (c *Container) SetDefault(pluginType reflect.Type, inst *Instance) error {
	return c.replaceGraph("set default", func(g *PluginGraph, profile string) error {
		if err := g.SetDefault(pluginType, inst); err != nil {
			return err
		}
		return setProfileDefault(g, profile, pluginType, inst.name)
	})
}

// SetDefaultName makes the named, already registered instance the default
// of pluginType, in the active profile too.
func (c *Container) SetDefaultName(pluginType reflect.Type, name string) error {
	return c.replaceGraph("set default name", func(g *PluginGraph, profile string) error {
		if err := g.SetDefaultName(pluginType, name); err != nil {
			return err
		}
		return setProfileDefault(g, profile, pluginType, name)
	})
}

func setProfileDefault(g *PluginGraph, profile string, pluginType reflect.Type, name string) error {
	if profile == "" {
		return nil
	}
	return g.AddProfile(profile, pluginType, name)
}

// Configure applies fn to a copy of the graph and switches to it when fn
// succeeds.
func (c *Container) Configure(fn func(g *PluginGraph) error) error {
	if fn == nil {
		return ErrConfigureNil
	}
	return c.replaceGraph("configure", func(g *PluginGraph, _ string) error {
		return fn(g)
	})
}

func (c *Container) replaceGraph(op string, mutate func(g *PluginGraph, profile string) error) error {
	if c.closed.Load() {
		return ErrContainerClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.state
	g := old.graph.Clone()
	if err := mutate(g, old.profile); err != nil {
		return err
	}
	g.Seal()

	profile := old.profile
	if checkProfile(g, profile) != nil {
		profile = ""
	}

	evicted := evictReplaced(old.graph, g, old.singletons)
	c.state = c.newState(g, profile, old.singletons)

	c.logger.Info("plugin graph replaced",
		zap.String("operation", op),
		zap.Int("evicted", evicted))
	return nil
}

// evictReplaced drops singletons whose instance is gone or changed, and
// every singleton of a plugin type whose lifecycle changed. It returns how
// many cached objects were dropped.
func evictReplaced(old, next *PluginGraph, cache *lifetime.Shared) int {
	evicted := 0
	for _, t := range old.PluginTypes() {
		if !sameLifecycle(old.typeLifecycle(t), next.typeLifecycle(t)) {
			evicted += cache.EvictType(t)
			continue
		}

		for _, inst := range old.FindAll(t) {
			replacement, err := next.Find(t, inst.name)
			if err == nil && replacement == inst {
				continue
			}
			if cache.Evict(CacheKey{PluginType: t, Instance: inst.name, Owner: inst}) {
				evicted++
			}
		}
	}
	return evicted
}

func sameLifecycle(a, b Lifecycle) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// SetProfile switches the defaults to those of profile. An empty profile
// restores the graph's own defaults.
func (c *Container) SetProfile(profile string) error {
	if c.closed.Load() {
		return ErrContainerClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := checkProfile(c.state.graph, profile); err != nil {
		return err
	}

	old := c.state
	c.state = c.newState(old.graph, profile, old.singletons)

	c.logger.Info("profile switched",
		zap.String("from", old.profile),
		zap.String("to", profile))
	return nil
}

// Reset replaces the graph and drops every singleton, closing those that
// implement io.Closer. Observers registered with OnReset run afterwards.
func (c *Container) Reset(g *PluginGraph) error {
	if g == nil {
		return ErrGraphNil
	}
	if !g.Sealed() {
		return GraphNotSealedError{Operation: "reset container"}
	}
	if c.closed.Load() {
		return ErrContainerClosed
	}

	c.mu.Lock()
	old := c.state

	profile := old.profile
	if checkProfile(g, profile) != nil {
		profile = g.ActiveProfile()
	}

	c.state = c.newState(g, profile, lifetime.NewShared())
	observers := make([]func(), len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	err := old.singletons.Close()

	c.logger.Info("container reset", zap.String("profile", profile))

	for _, fn := range observers {
		fn()
	}

	if err != nil {
		return fmt.Errorf("failed to close singletons: %w", err)
	}
	return nil
}

// OnReset registers fn to run after every Reset.
func (c *Container) OnReset(fn func()) {
	if fn == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// WhatDoIHave describes every plugin type of the current graph, with the
// defaults of the active profile. Instances that compile list the instances
// they look up and the instances looking them up.
func (c *Container) WhatDoIHave() []FamilyInfo {
	st := c.current()
	infos := st.graph.familyInfos(st.profile)
	deps, _, _ := st.dependencyGraph()

	for i := range infos {
		f := &infos[i]
		for j := range f.Instances {
			inst := &f.Instances[j]
			node := graph.NodeKey{Type: f.PluginType, Name: inst.Name}
			inst.DependsOn = nodeNames(deps.GetDependencies(node))
			inst.UsedBy = nodeNames(deps.GetDependents(node))
		}
	}
	return infos
}

func nodeNames(keys []graph.NodeKey) []string {
	if len(keys) == 0 {
		return nil
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	return names
}

// dependencyGraph compiles every registered instance and records which
// instances each one looks up. Plans are returned in registration order,
// compile failures alongside.
func (st *containerState) dependencyGraph() (*graph.DependencyGraph, []*BuildPlan, []error) {
	deps := graph.NewDependencyGraph()
	var plans []*BuildPlan
	var errs []error

	for _, t := range st.graph.PluginTypes() {
		for _, inst := range st.graph.FindAll(t) {
			plan, err := st.planner.planFor(t, inst)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			plans = append(plans, plan)

			edges := make([]graph.NodeKey, len(plan.deps))
			for i, d := range plan.deps {
				edges[i] = graph.NodeKey{Type: d.PluginType, Name: d.Instance}
			}
			deps.AddNode(graph.NodeKey{Type: t, Name: inst.name}, edges)
		}
	}
	return deps, plans, errs
}

// Validate compiles every registered instance without building anything
// and reports all failures at once as a ConfigurationValidationError.
func (c *Container) Validate() error {
	st := c.current()

	deps, plans, errs := st.dependencyGraph()

	seen := make(map[string]bool)
	for _, plan := range plans {
		for _, missing := range plan.unresolved {
			key := missing.Instance + "/" + missing.Parameter
			if !seen[key] {
				seen[key] = true
				errs = append(errs, missing)
			}
		}
	}

	for _, p := range st.graph.Profiles() {
		for _, d := range st.graph.profileDefaults(p) {
			if _, err := st.graph.Find(d.pluginType, d.name); err != nil {
				errs = append(errs, fmt.Errorf("profile %q: %w", p, err))
			}
		}
	}

	if err := deps.DetectCycles(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return ConfigurationValidationError{Errors: errs}
	}

	c.logger.Debug("configuration valid", zap.Int("instances", deps.Size()))
	return nil
}

// WarmUp builds every Singleton instance of the current graph, dependencies
// first, so later requests find them cached. It stops at the first failure
// and before each build once ctx is done.
func (c *Container) WarmUp(ctx context.Context) error {
	if c.closed.Load() {
		return ErrContainerClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	st := c.current()
	deps, plans, errs := st.dependencyGraph()
	if len(errs) > 0 {
		return ConfigurationValidationError{Errors: errs}
	}

	sorted, err := deps.TopologicalSort()
	if err != nil {
		return err
	}

	byNode := make(map[graph.NodeKey]*BuildPlan, len(plans))
	for _, plan := range plans {
		byNode[graph.NodeKey{Type: plan.pluginType, Name: plan.instance.name}] = plan
	}

	ctx, span := c.tracer.Start(ctx, "wirekit.WarmUp", trace.WithAttributes(
		attribute.String("wirekit.profile", st.profile),
	))
	defer span.End()

	built := 0
	for _, node := range sorted {
		plan, ok := byNode[node.Key]
		if !ok || plan.lifecycle != Lifecycle(Singleton) {
			continue
		}
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "warm up cancelled")
			return err
		}

		if _, err := newSession(ctx, st, nil).resolveRoot(plan); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "warm up failed")
			return err
		}
		built++
	}

	c.logger.Info("singletons warmed",
		zap.Int("built", built),
		zap.Int("cached", st.singletons.Len()))
	return nil
}

// Close closes every singleton implementing io.Closer, in reverse creation
// order. The container cannot be used afterwards.
func (c *Container) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	st := c.current()
	return st.singletons.Close()
}
