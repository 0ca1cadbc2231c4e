package wirekit

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Constructor builds the object of an Instance from its resolved arguments.
type Constructor func(args Arguments) (any, error)

// Param declares one constructor argument. Type is used for type checks and
// auto-wiring; a nil Type accepts any value and is never auto-wired.
type Param struct {
	Name       string
	Type       reflect.Type
	Default    any
	HasDefault bool
}

// ParamOf declares a parameter named name of type T.
func ParamOf[T any](name string) Param {
	return Param{Name: name, Type: reflect.TypeFor[T]()}
}

// OptionalParam declares a parameter of type T that falls back to def when
// nothing else supplies a value.
func OptionalParam[T any](name string, def T) Param {
	return Param{Name: name, Type: reflect.TypeFor[T](), Default: def, HasDefault: true}
}

// Instance describes how to obtain one object of a plugin type: either a
// constructor with its argument bindings and setters, or a pre-built object.
// An Instance is immutable once created.
type Instance struct {
	name      string
	generated bool

	concrete reflect.Type
	ctor     Constructor
	object   any
	isObject bool

	params       []Param
	bindings     map[string]DependencySource
	setters      []setter
	lifecycle    Lifecycle
	interceptors []Interceptor
	description  string
}

type setter struct {
	name   string
	source DependencySource
	apply  func(target, value any) error
}

// NewInstance creates an instance built by ctor. concrete is the type ctor
// produces; it is checked against the plugin type on registration.
func NewInstance(concrete reflect.Type, ctor Constructor, opts ...InstanceOption) (*Instance, error) {
	if concrete == nil {
		return nil, ErrPluginTypeNil
	}
	if ctor == nil {
		return nil, ErrConstructorNil
	}

	inst := &Instance{
		concrete: concrete,
		ctor:     ctor,
		bindings: make(map[string]DependencySource),
	}

	if err := inst.apply(opts); err != nil {
		return nil, err
	}

	return inst, nil
}

// Construct creates an instance from a typed constructor.
func Construct[T any](ctor func(args Arguments) (T, error), opts ...InstanceOption) (*Instance, error) {
	if ctor == nil {
		return nil, ErrConstructorNil
	}

	return NewInstance(reflect.TypeFor[T](), func(args Arguments) (any, error) {
		return ctor(args)
	}, opts...)
}

// Object creates an instance that always yields obj. Unless another
// lifecycle is given it is a Singleton, so interceptors run once per
// container.
func Object(obj any, opts ...InstanceOption) (*Instance, error) {
	if obj == nil {
		return nil, ErrInstanceNil
	}

	inst := &Instance{
		concrete:  reflect.TypeOf(obj),
		object:    obj,
		isObject:  true,
		bindings:  make(map[string]DependencySource),
		lifecycle: Singleton,
	}

	if err := inst.apply(opts); err != nil {
		return nil, err
	}

	if len(inst.params) > 0 || len(inst.bindings) > 0 || len(inst.setters) > 0 {
		return nil, fmt.Errorf("object instance of %s cannot declare arguments or setters", formatType(inst.concrete))
	}

	return inst, nil
}

func (i *Instance) apply(opts []InstanceOption) error {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyInstance(i); err != nil {
			return err
		}
	}

	seen := make(map[string]bool, len(i.params))
	for _, p := range i.params {
		if p.Name == "" {
			return errors.New("parameter name cannot be empty")
		}
		if seen[p.Name] {
			return fmt.Errorf("parameter %q declared twice", p.Name)
		}
		seen[p.Name] = true
	}

	// Bindings for undeclared names become untyped parameters, in the order
	// they were bound.
	for _, name := range i.bindingOrder() {
		if !seen[name] {
			i.params = append(i.params, Param{Name: name})
			seen[name] = true
		}
	}

	if i.name == "" {
		i.name = uuid.NewString()
		i.generated = true
	}

	return nil
}

// bindingOrder returns bound names not covered by declared params, sorted so
// the argument order is stable.
func (i *Instance) bindingOrder() []string {
	names := make([]string, 0, len(i.bindings))
	for name := range i.bindings {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Name returns the instance name, generated when none was given.
func (i *Instance) Name() string {
	return i.name
}

// HasGeneratedName reports whether the name was generated.
func (i *Instance) HasGeneratedName() bool {
	return i.generated
}

// Concrete returns the type of object this instance produces.
func (i *Instance) Concrete() reflect.Type {
	return i.concrete
}

// Lifecycle returns the lifecycle set on the instance, or nil when it
// inherits its plugin type's.
func (i *Instance) Lifecycle() Lifecycle {
	return i.lifecycle
}

// Params returns the declared constructor parameters in order.
func (i *Instance) Params() []Param {
	out := make([]Param, len(i.params))
	copy(out, i.params)
	return out
}

// IsObject reports whether the instance wraps a pre-built object.
func (i *Instance) IsObject() bool {
	return i.isObject
}

// Description returns a human readable summary of the instance.
func (i *Instance) Description() string {
	if i.description != "" {
		return i.description
	}
	if i.isObject {
		return fmt.Sprintf("Object<%s>", formatType(i.concrete))
	}

	var b strings.Builder
	b.WriteString(formatType(i.concrete))
	b.WriteString("(")
	for idx, p := range i.params {
		if idx > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
	}
	b.WriteString(")")
	return b.String()
}

func (i *Instance) String() string {
	return fmt.Sprintf("%s[%s]", i.Description(), i.name)
}

// InstanceOption configures an Instance at creation.
type InstanceOption interface {
	applyInstance(*Instance) error
}

type instanceOptionFunc func(*Instance) error

func (f instanceOptionFunc) applyInstance(i *Instance) error {
	return f(i)
}

// Named sets the instance name. Names are unique within a plugin type.
func Named(name string) InstanceOption {
	return instanceOptionFunc(func(i *Instance) error {
		if strings.TrimSpace(name) == "" {
			return errors.New("instance name cannot be empty")
		}
		i.name = name
		return nil
	})
}

// WithLifecycle overrides the plugin type's lifecycle for this instance.
func WithLifecycle(l Lifecycle) InstanceOption {
	return instanceOptionFunc(func(i *Instance) error {
		if l == nil {
			return ErrLifecycleNil
		}
		if lt, ok := l.(Lifetime); ok && !lt.IsValid() {
			return fmt.Errorf("invalid lifetime %v", lt)
		}
		i.lifecycle = l
		return nil
	})
}

// Params declares constructor parameters in argument order.
func Params(params ...Param) InstanceOption {
	return instanceOptionFunc(func(i *Instance) error {
		i.params = append(i.params, params...)
		return nil
	})
}

// ParamNames renames the declared parameters positionally. It is mostly
// useful with FromFunc, whose parameters are named arg0, arg1, ...
func ParamNames(names ...string) InstanceOption {
	return instanceOptionFunc(func(i *Instance) error {
		if len(names) > len(i.params) {
			return fmt.Errorf("%d parameter names given for %d parameters", len(names), len(i.params))
		}
		for idx, name := range names {
			i.params[idx].Name = name
		}
		return nil
	})
}

// Arg binds the constructor argument name to src.
func Arg(name string, src DependencySource) InstanceOption {
	return instanceOptionFunc(func(i *Instance) error {
		if src == nil {
			return fmt.Errorf("argument %q: source cannot be nil", name)
		}
		i.bindings[name] = src
		return nil
	})
}

// With binds the constructor argument name to a literal value.
func With(name string, value any) InstanceOption {
	return Arg(name, Literal(value))
}

// Setter applies src to the built object through apply, after construction.
// Setters run in the order they were declared.
func Setter(name string, src DependencySource, apply func(target, value any) error) InstanceOption {
	return instanceOptionFunc(func(i *Instance) error {
		if src == nil || apply == nil {
			return fmt.Errorf("setter %q: source and apply function are required", name)
		}
		i.setters = append(i.setters, setter{name: name, source: src, apply: apply})
		return nil
	})
}

// Set is a typed Setter.
func Set[T, V any](name string, src DependencySource, apply func(target T, value V)) InstanceOption {
	return Setter(name, src, func(target, value any) error {
		t, ok := target.(T)
		if !ok {
			return TypeMismatchError{Expected: reflect.TypeFor[T](), Actual: reflect.TypeOf(target), Context: "setter target"}
		}
		v, ok := value.(V)
		if !ok && value != nil {
			return TypeMismatchError{Expected: reflect.TypeFor[V](), Actual: reflect.TypeOf(value), Context: "setter value"}
		}
		apply(t, v)
		return nil
	})
}

// WithInterceptor adds an interceptor run on every object this instance
// builds, after setters. Interceptors run in the order they were added.
func WithInterceptor(interceptors ...Interceptor) InstanceOption {
	return instanceOptionFunc(func(i *Instance) error {
		for _, ic := range interceptors {
			if ic == nil {
				return errors.New("interceptor cannot be nil")
			}
		}
		i.interceptors = append(i.interceptors, interceptors...)
		return nil
	})
}

// Describe sets the description reported by diagnostics.
func Describe(description string) InstanceOption {
	return instanceOptionFunc(func(i *Instance) error {
		i.description = description
		return nil
	})
}

// Arguments holds the resolved constructor arguments of one build.
type Arguments struct {
	session *Session
	params  []Param
	values  []any
}

// Lookup returns the argument named name.
func (a Arguments) Lookup(name string) (any, bool) {
	for idx, p := range a.params {
		if p.Name == name {
			return a.values[idx], true
		}
	}
	return nil, false
}

// Get returns the argument named name, or nil.
func (a Arguments) Get(name string) any {
	v, _ := a.Lookup(name)
	return v
}

// At returns the argument at position idx.
func (a Arguments) At(idx int) any {
	return a.values[idx]
}

// Len returns the number of arguments.
func (a Arguments) Len() int {
	return len(a.values)
}

// Names returns the argument names in order.
func (a Arguments) Names() []string {
	names := make([]string, len(a.params))
	for idx, p := range a.params {
		names[idx] = p.Name
	}
	return names
}

// Session returns the build session, for constructors that resolve lazily.
func (a Arguments) Session() *Session {
	return a.session
}

// ArgOf returns the argument named name as T, or the zero value when it is
// missing or of another type.
func ArgOf[T any](a Arguments, name string) T {
	v, _ := a.Get(name).(T)
	return v
}
