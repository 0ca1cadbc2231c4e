package wirekit

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/junioryono/wirekit/internal/graph"
	"github.com/junioryono/wirekit/internal/reflection"
	"github.com/junioryono/wirekit/internal/resolver"
)

// step produces one value during a build.
type step func(s *Session) (any, error)

// BuildPlan is the compiled recipe for building objects of one instance.
// Plans are compiled once per instance and reused by every build.
type BuildPlan struct {
	pluginType reflect.Type
	instance   *Instance
	lifecycle  Lifecycle
	key        CacheKey
	nested     bool

	construct step

	// direct lookups, nested plans flattened in
	deps []CacheKey

	// unresolved arguments of this plan and everything it looks up
	unresolved []UnresolvedArgumentError
}

// PluginType returns the plugin type the plan builds for.
func (p *BuildPlan) PluginType() reflect.Type {
	return p.pluginType
}

// Instance returns the instance the plan was compiled from.
func (p *BuildPlan) Instance() *Instance {
	return p.instance
}

// Lifecycle returns the effective lifecycle of the plan.
func (p *BuildPlan) Lifecycle() Lifecycle {
	return p.lifecycle
}

// Dependencies returns the instances the plan looks up through their
// lifecycles.
func (p *BuildPlan) Dependencies() []CacheKey {
	out := make([]CacheKey, len(p.deps))
	copy(out, p.deps)
	return out
}

// Unresolved returns the arguments no source could be found for. Building
// the plan fails unless explicit arguments supply them.
func (p *BuildPlan) Unresolved() []UnresolvedArgumentError {
	out := make([]UnresolvedArgumentError, len(p.unresolved))
	copy(out, p.unresolved)
	return out
}

// Build constructs a new object without consulting the plan's lifecycle.
// Dependencies are still fetched through theirs.
func (p *BuildPlan) Build(s *Session) (any, error) {
	return p.construct(s)
}

func (p *BuildPlan) frame() Frame {
	return Frame{PluginType: p.key.PluginType, Instance: p.key.Instance, Lifecycle: p.lifecycle.String()}
}

type planKey struct {
	pluginType reflect.Type
	instance   *Instance
}

// planner compiles and caches plans for one sealed graph and profile. Only
// one compilation runs at a time; compiled plans are immutable and run
// without locking.
type planner struct {
	graph   *PluginGraph
	profile string

	mu       sync.Mutex
	plans    map[planKey]*BuildPlan
	visiting map[*Instance]int
	path     []graph.NodeKey

	onCompile func(*BuildPlan)
}

func newPlanner(g *PluginGraph, profile string, onCompile func(*BuildPlan)) *planner {
	return &planner{
		graph:     g,
		profile:   profile,
		plans:     make(map[planKey]*BuildPlan),
		visiting:  make(map[*Instance]int),
		onCompile: onCompile,
	}
}

// planFor returns the plan for inst registered as pluginType, compiling it
// and everything it depends on the first time.
func (p *planner) planFor(pluginType reflect.Type, inst *Instance) (*BuildPlan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.compile(pluginType, inst)
}

// planOnce compiles a plan for an instance that is not part of the graph.
// Its own plan is not kept; its dependencies' plans are.
func (p *planner) planOnce(pluginType reflect.Type, inst *Instance) (*BuildPlan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := planKey{pluginType, inst}
	_, existed := p.plans[key]

	plan, err := p.compile(pluginType, inst)
	if err == nil && !existed {
		delete(p.plans, key)
	}
	return plan, err
}

// fail annotates a compile error with the compile path.
func (p *planner) fail(err error) error {
	frames := make([]Frame, len(p.path))
	for i, n := range p.path {
		frames[i] = Frame{PluginType: n.Type, Instance: n.Name}
	}
	return resolver.Wrap(err, frames)
}

// compile must be called with p.mu held. A nil pluginType compiles inst as
// a nested instance.
func (p *planner) compile(pluginType reflect.Type, inst *Instance) (*BuildPlan, error) {
	if inst == nil {
		return nil, p.fail(ErrInstanceNil)
	}

	key := planKey{pluginType, inst}
	if plan, ok := p.plans[key]; ok {
		return plan, nil
	}

	nodeType := pluginType
	if nodeType == nil {
		nodeType = inst.concrete
	}
	node := graph.NodeKey{Type: nodeType, Name: inst.name}

	if idx, ok := p.visiting[inst]; ok {
		cycle := make([]graph.NodeKey, len(p.path)-idx)
		copy(cycle, p.path[idx:])
		return nil, p.fail(&CyclicDependencyError{Node: node, Path: cycle})
	}

	p.visiting[inst] = len(p.path)
	p.path = append(p.path, node)
	defer func() {
		p.path = p.path[:len(p.path)-1]
		delete(p.visiting, inst)
	}()

	plan := &BuildPlan{
		pluginType: pluginType,
		instance:   inst,
		key:        CacheKey{PluginType: nodeType, Instance: inst.name, Owner: inst},
		nested:     pluginType == nil,
	}
	if plan.nested {
		plan.lifecycle = Unique
	} else {
		plan.lifecycle = lifecycleOf(inst, p.graph.typeLifecycle(pluginType))
	}

	construct, err := p.constructStep(plan)
	if err != nil {
		return nil, err
	}
	plan.construct = construct

	p.plans[key] = plan
	if p.onCompile != nil {
		p.onCompile(plan)
	}
	return plan, nil
}

func (p *planner) constructStep(plan *BuildPlan) (step, error) {
	inst := plan.instance

	if inst.isObject {
		obj := inst.object
		interceptors := inst.interceptors
		return func(s *Session) (any, error) {
			return s.intercept(inst, interceptors, obj)
		}, nil
	}

	params := inst.params
	args := make([]step, len(params))
	for i, prm := range params {
		st, err := p.argStep(plan, prm)
		if err != nil {
			return nil, err
		}
		args[i] = st
	}

	type setterStep struct {
		name  string
		value step
		apply func(target, value any) error
	}
	setters := make([]setterStep, len(inst.setters))
	for i, st := range inst.setters {
		value, err := p.sourceStep(plan, st.source)
		if err != nil {
			return nil, err
		}
		setters[i] = setterStep{name: st.name, value: value, apply: st.apply}
	}

	concrete := inst.concrete
	ctor := inst.ctor
	interceptors := inst.interceptors

	return func(s *Session) (any, error) {
		values := make([]any, len(args))
		for i, arg := range args {
			v, err := arg(s)
			if err != nil {
				return nil, err
			}
			values[i] = v
		}

		obj, err := s.invoke(inst, "constructor", func() (any, error) {
			return ctor(Arguments{session: s, params: params, values: values})
		})
		if err != nil {
			return nil, err
		}
		if obj != nil && !reflect.TypeOf(obj).AssignableTo(concrete) {
			return nil, ConstructionError{
				Instance: inst.name,
				Concrete: concrete,
				Step:     "constructor",
				Cause:    TypeMismatchError{Expected: concrete, Actual: reflect.TypeOf(obj), Context: "constructor result"},
			}
		}

		for _, st := range setters {
			v, err := st.value(s)
			if err != nil {
				return nil, err
			}
			if _, err := s.invoke(inst, "setter "+st.name, func() (any, error) {
				return nil, st.apply(obj, v)
			}); err != nil {
				return nil, err
			}
		}

		return s.intercept(inst, interceptors, obj)
	}, nil
}

// argStep compiles one constructor argument. Explicit arguments of the
// session take precedence over whatever the argument is bound to.
func (p *planner) argStep(plan *BuildPlan, prm Param) (step, error) {
	inst := plan.instance

	var inner step
	var err error

	src, bound := inst.bindings[prm.Name]
	switch {
	case bound:
		if err := checkSource(inst, prm, src); err != nil {
			return nil, p.fail(err)
		}
		inner, err = p.sourceStep(plan, src)

	case prm.Type != nil && p.graph.hasDefault(prm.Type, p.profile):
		inner, err = p.sourceStep(plan, Default(prm.Type))

	case prm.Type != nil && prm.Type.Kind() == reflect.Slice && p.graph.Has(prm.Type.Elem()):
		inner, err = p.sourceStep(plan, All(prm.Type.Elem()))

	case prm.HasDefault:
		value := prm.Default
		inner = func(*Session) (any, error) { return value, nil }

	default:
		missing := UnresolvedArgumentError{
			Instance:  inst.name,
			Concrete:  inst.concrete,
			Parameter: prm.Name,
			Type:      prm.Type,
		}
		plan.unresolved = append(plan.unresolved, missing)
		inner = func(*Session) (any, error) { return nil, missing }
	}
	if err != nil {
		return nil, err
	}

	return func(s *Session) (any, error) {
		if v, ok := s.override(inst, prm); ok {
			return v, nil
		}
		return inner(s)
	}, nil
}

func (p *planner) sourceStep(plan *BuildPlan, src DependencySource) (step, error) {
	switch src := src.(type) {
	case literalSource:
		value := src.value
		return func(*Session) (any, error) { return value, nil }, nil

	case nestedSource:
		child, err := p.compile(nil, src.instance)
		if err != nil {
			return nil, err
		}
		plan.deps = append(plan.deps, child.deps...)
		plan.unresolved = append(plan.unresolved, child.unresolved...)
		return child.construct, nil

	case lookupSource:
		if err := checkAssignable(src.pluginType, src.instance); err != nil {
			return nil, p.fail(err)
		}
		return p.lookupStep(plan, src.pluginType, src.instance)

	case refSource:
		inst, err := p.graph.find(src.pluginType, src.name, p.profile)
		if err != nil {
			return nil, p.fail(err)
		}
		return p.lookupStep(plan, src.pluginType, inst)

	case allSource:
		if src.pluginType == nil {
			return nil, p.fail(ErrPluginTypeNil)
		}
		instances := p.graph.FindAll(src.pluginType)
		children := make([]*BuildPlan, len(instances))
		for i, inst := range instances {
			child, err := p.compile(src.pluginType, inst)
			if err != nil {
				return nil, err
			}
			plan.deps = append(plan.deps, child.key)
			plan.unresolved = append(plan.unresolved, child.unresolved...)
			children[i] = child
		}
		sliceType := reflect.SliceOf(src.pluginType)
		return func(s *Session) (any, error) {
			out := reflect.MakeSlice(sliceType, len(children), len(children))
			for i, child := range children {
				v, err := s.fetch(child)
				if err != nil {
					return nil, err
				}
				if v != nil {
					out.Index(i).Set(reflect.ValueOf(v))
				}
			}
			return out.Interface(), nil
		}, nil

	case interceptSource:
		if src.interceptor == nil || src.inner == nil {
			return nil, p.fail(fmt.Errorf("intercept source of %s: inner source and interceptor are required", plan.instance.name))
		}
		inner, err := p.sourceStep(plan, src.inner)
		if err != nil {
			return nil, err
		}
		inst := plan.instance
		interceptors := []Interceptor{src.interceptor}
		return func(s *Session) (any, error) {
			v, err := inner(s)
			if err != nil {
				return nil, err
			}
			return s.intercept(inst, interceptors, v)
		}, nil
	}

	return nil, p.fail(fmt.Errorf("unsupported dependency source %T", src))
}

func (p *planner) lookupStep(plan *BuildPlan, pluginType reflect.Type, inst *Instance) (step, error) {
	child, err := p.compile(pluginType, inst)
	if err != nil {
		return nil, err
	}
	plan.deps = append(plan.deps, child.key)
	plan.unresolved = append(plan.unresolved, child.unresolved...)

	return func(s *Session) (any, error) {
		return s.fetch(child)
	}, nil
}

// checkSource verifies a bound source can produce the parameter's type.
func checkSource(inst *Instance, prm Param, src DependencySource) error {
	if prm.Type == nil {
		return nil
	}
	if n, ok := src.(nestedSource); ok && n.instance == nil {
		return ErrInstanceNil
	}

	actual := sourceType(src)
	if actual == nil {
		return nil
	}

	if actual.AssignableTo(prm.Type) || reflection.Convertible(actual, prm.Type) {
		return nil
	}
	if actual.Kind() == reflect.Slice && prm.Type.Kind() == reflect.Slice &&
		actual.Elem().AssignableTo(prm.Type.Elem()) {
		return nil
	}

	return TypeMismatchError{
		Expected: prm.Type,
		Actual:   actual,
		Context:  fmt.Sprintf("argument %q of instance %q", prm.Name, inst.name),
	}
}
