package wirekit

import (
	"context"
	"fmt"
	"reflect"
	"runtime/debug"
	"time"

	"github.com/junioryono/wirekit/internal/graph"
	"github.com/junioryono/wirekit/internal/resolver"
)

// Session is the state of one top-level resolution: its transient cache,
// the chain of instances being built, and any explicit arguments. A session
// is confined to the goroutine that made the request.
type Session struct {
	ctx       context.Context
	state     *containerState
	transient sessionCache
	stack     resolver.Stack
	explicit  *ExplicitArgs
	root      *Instance
}

func newSession(ctx context.Context, state *containerState, explicit *ExplicitArgs) *Session {
	if explicit.empty() {
		explicit = nil
	}
	return &Session{ctx: ctx, state: state, explicit: explicit}
}

func (s *Session) transientCache() ObjectCache {
	if s.transient == nil {
		s.transient = make(sessionCache)
	}
	return s.transient
}

// Context returns the context of the top-level request.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Profile returns the profile the session resolves against.
func (s *Session) Profile() string {
	return s.state.profile
}

// Chain returns the instances currently being built, outermost first.
func (s *Session) Chain() []Frame {
	return s.stack.Frames()
}

// Resolve returns the default object of pluginType within this session.
// Constructors and interceptors use it to resolve collaborators lazily.
func (s *Session) Resolve(pluginType reflect.Type) (any, error) {
	return s.ResolveNamed(pluginType, "")
}

// ResolveNamed returns the named object of pluginType within this session.
func (s *Session) ResolveNamed(pluginType reflect.Type, name string) (any, error) {
	inst, err := s.state.find(pluginType, name)
	if err != nil {
		return nil, resolver.Wrap(err, s.stack.Frames())
	}

	plan, err := s.state.planner.planFor(pluginType, inst)
	if err != nil {
		return nil, resolver.Within(err, s.stack.Frames())
	}

	return s.fetch(plan)
}

// ResolveAll returns every object of pluginType within this session.
func (s *Session) ResolveAll(pluginType reflect.Type) ([]any, error) {
	instances := s.state.graph.FindAll(pluginType)
	out := make([]any, 0, len(instances))

	for _, inst := range instances {
		plan, err := s.state.planner.planFor(pluginType, inst)
		if err != nil {
			return nil, resolver.Within(err, s.stack.Frames())
		}
		obj, err := s.fetch(plan)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}

	return out, nil
}

// resolveRoot builds the requested object. With explicit arguments the
// requested object is always built fresh and never cached.
func (s *Session) resolveRoot(plan *BuildPlan) (any, error) {
	s.root = plan.instance

	if s.explicit == nil {
		if len(plan.unresolved) > 0 {
			return nil, resolver.Wrap(plan.unresolved[0], []Frame{plan.frame()})
		}
		return s.fetch(plan)
	}

	s.stack.Push(plan.frame(), plan.key)
	defer s.stack.Pop()

	obj, err := s.build(plan)
	if err != nil {
		return nil, resolver.Wrap(err, s.stack.Frames())
	}
	return obj, nil
}

// fetch returns the object for plan through its lifecycle.
func (s *Session) fetch(plan *BuildPlan) (any, error) {
	if v, ok := s.explicit.typed(plan.pluginType); ok {
		return v, nil
	}

	if idx := s.stack.IndexOf(plan.key); idx >= 0 {
		return nil, resolver.Wrap(s.cycleAt(idx, plan), s.stack.Frames())
	}

	s.stack.Push(plan.frame(), plan.key)
	defer s.stack.Pop()

	obj, err := s.fetchCached(plan)
	if err != nil {
		return nil, resolver.Wrap(err, s.stack.Frames())
	}
	return obj, nil
}

func (s *Session) fetchCached(plan *BuildPlan) (any, error) {
	cache := plan.lifecycle.FindCache(s)
	if cache == nil {
		return s.build(plan)
	}

	// Explicit arguments must not leak into objects other sessions share.
	if s.explicit != nil && !isSessionScoped(cache) {
		if v, ok := cache.FindObject(plan.key); ok {
			s.state.cacheHit(plan)
			return v, nil
		}
		return s.build(plan)
	}

	if atomic, ok := cache.(AtomicCache); ok {
		built := false
		obj, err := atomic.FindOrBuild(plan.key, func() (any, error) {
			built = true
			return s.build(plan)
		})
		if err == nil && !built {
			s.state.cacheHit(plan)
		}
		return obj, err
	}

	if v, ok := cache.FindObject(plan.key); ok {
		s.state.cacheHit(plan)
		return v, nil
	}

	obj, err := s.build(plan)
	if err != nil {
		return nil, err
	}
	cache.Store(plan.key, obj)
	return obj, nil
}

func (s *Session) build(plan *BuildPlan) (any, error) {
	start := time.Now()

	obj, err := plan.construct(s)
	if err != nil {
		return nil, err
	}

	s.state.built(plan, time.Since(start))
	return obj, nil
}

// cycleAt reports a cycle found while building: the instance on top of the
// stack at idx was requested again.
func (s *Session) cycleAt(idx int, plan *BuildPlan) error {
	frames := s.stack.Frames()[idx:]
	path := make([]graph.NodeKey, len(frames))
	for i, f := range frames {
		path[i] = graph.NodeKey{Type: f.PluginType, Name: f.Instance}
	}
	return &CyclicDependencyError{
		Node: graph.NodeKey{Type: plan.key.PluginType, Name: plan.key.Instance},
		Path: path,
	}
}

// override returns the explicit value for an argument: by name for the
// requested instance, by type for any instance.
func (s *Session) override(inst *Instance, prm Param) (any, bool) {
	if s.explicit == nil {
		return nil, false
	}
	if inst == s.root {
		if v, ok := s.explicit.named[prm.Name]; ok {
			return v, true
		}
	}
	return s.explicit.typed(prm.Type)
}

// invoke runs user construction code, turning errors and panics into
// ConstructionError.
func (s *Session) invoke(inst *Instance, stepName string, fn func() (any, error)) (obj any, err error) {
	defer func() {
		if r := recover(); r != nil {
			obj = nil
			err = ConstructionError{
				Instance: inst.name,
				Concrete: inst.concrete,
				Step:     stepName,
				Panic:    r,
				Stack:    debug.Stack(),
			}
		}
	}()

	obj, err = fn()
	if err != nil {
		return nil, ConstructionError{
			Instance: inst.name,
			Concrete: inst.concrete,
			Step:     stepName,
			Cause:    err,
		}
	}
	return obj, nil
}

// intercept passes obj through interceptors in order.
func (s *Session) intercept(inst *Instance, interceptors []Interceptor, obj any) (any, error) {
	for _, ic := range interceptors {
		current := obj
		next, err := s.invoke(inst, fmt.Sprintf("interceptor %s", ic.Description()), func() (any, error) {
			return ic.Intercept(s, current)
		})
		if err != nil {
			return nil, err
		}
		obj = next
	}
	return obj, nil
}

// ExplicitArgs supplies values for one resolution, overriding the graph.
// Values set with With replace the requested instance's constructor
// arguments of that name; values set with WithType replace every argument
// and lookup of that type while the request is built.
type ExplicitArgs struct {
	named  map[string]any
	byType map[reflect.Type]any
}

// NewArgs creates an empty set of explicit arguments.
func NewArgs() *ExplicitArgs {
	return &ExplicitArgs{
		named:  make(map[string]any),
		byType: make(map[reflect.Type]any),
	}
}

// With sets the constructor argument name of the requested instance.
func (a *ExplicitArgs) With(name string, value any) *ExplicitArgs {
	a.named[name] = value
	return a
}

// WithType supplies value wherever pluginType is needed.
func (a *ExplicitArgs) WithType(pluginType reflect.Type, value any) *ExplicitArgs {
	a.byType[pluginType] = value
	return a
}

// WithTyped supplies value wherever T is needed.
func WithTyped[T any](a *ExplicitArgs, value T) *ExplicitArgs {
	return a.WithType(reflect.TypeFor[T](), value)
}

func (a *ExplicitArgs) typed(t reflect.Type) (any, bool) {
	if a == nil || t == nil {
		return nil, false
	}
	v, ok := a.byType[t]
	return v, ok
}

func (a *ExplicitArgs) empty() bool {
	return a == nil || (len(a.named) == 0 && len(a.byType) == 0)
}
