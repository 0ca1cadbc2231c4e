package wirekit

import (
	"fmt"
	"reflect"
)

// DependencySource describes where one constructor argument or setter value
// comes from. The set of sources is closed: Literal, Nested, Lookup, Ref,
// Default, All and Intercept.
type DependencySource interface {
	Description() string
	isSource()
}

type literalSource struct {
	value any
}

type nestedSource struct {
	instance *Instance
}

type lookupSource struct {
	pluginType reflect.Type
	instance   *Instance
}

type refSource struct {
	pluginType reflect.Type
	name       string
}

type allSource struct {
	pluginType reflect.Type
}

type interceptSource struct {
	inner       DependencySource
	interceptor Interceptor
}

// Literal supplies a fixed value.
func Literal(value any) DependencySource {
	return literalSource{value: value}
}

// Nested builds inst in place as an anonymous part of its parent. The nested
// instance's lifecycle is not consulted.
func Nested(inst *Instance) DependencySource {
	return nestedSource{instance: inst}
}

// Lookup builds inst as pluginType through its lifecycle, so it can be shared
// with other requests for the same instance.
func Lookup(pluginType reflect.Type, inst *Instance) DependencySource {
	return lookupSource{pluginType: pluginType, instance: inst}
}

// Ref looks up the instance registered under pluginType with the given name
// when the plan is compiled. An empty name selects the default instance.
func Ref(pluginType reflect.Type, name string) DependencySource {
	return refSource{pluginType: pluginType, name: name}
}

// Default looks up the default instance of pluginType.
func Default(pluginType reflect.Type) DependencySource {
	return refSource{pluginType: pluginType}
}

// RefTo is Ref for the plugin type T.
func RefTo[T any](name string) DependencySource {
	return Ref(reflect.TypeFor[T](), name)
}

// DefaultOf is Default for the plugin type T.
func DefaultOf[T any]() DependencySource {
	return Default(reflect.TypeFor[T]())
}

// All supplies every instance of pluginType, in registration order, as a
// slice.
func All(pluginType reflect.Type) DependencySource {
	return allSource{pluginType: pluginType}
}

// Intercept passes the value produced by inner through interceptor.
func Intercept(inner DependencySource, interceptor Interceptor) DependencySource {
	return interceptSource{inner: inner, interceptor: interceptor}
}

func (literalSource) isSource()   {}
func (nestedSource) isSource()    {}
func (lookupSource) isSource()    {}
func (refSource) isSource()       {}
func (allSource) isSource()       {}
func (interceptSource) isSource() {}

func (s literalSource) Description() string {
	return fmt.Sprintf("Literal(%v)", s.value)
}

func (s nestedSource) Description() string {
	if s.instance == nil {
		return "Nested(<nil>)"
	}
	return fmt.Sprintf("Nested(%s)", s.instance.Description())
}

func (s lookupSource) Description() string {
	if s.instance == nil {
		return fmt.Sprintf("Lookup(%s, <nil>)", formatType(s.pluginType))
	}
	return fmt.Sprintf("Lookup(%s, %s)", formatType(s.pluginType), s.instance.Name())
}

func (s refSource) Description() string {
	if s.name == "" {
		return fmt.Sprintf("Default(%s)", formatType(s.pluginType))
	}
	return fmt.Sprintf("Ref(%s, %s)", formatType(s.pluginType), s.name)
}

func (s allSource) Description() string {
	return fmt.Sprintf("All(%s)", formatType(s.pluginType))
}

func (s interceptSource) Description() string {
	desc := "<nil>"
	if s.interceptor != nil {
		desc = s.interceptor.Description()
	}
	if s.inner == nil {
		return fmt.Sprintf("Intercept(<nil>, %s)", desc)
	}
	return fmt.Sprintf("Intercept(%s, %s)", s.inner.Description(), desc)
}

// sourceType returns the type a source is known to produce at compile time,
// or nil when it cannot be known.
func sourceType(src DependencySource) reflect.Type {
	switch s := src.(type) {
	case literalSource:
		if s.value == nil {
			return nil
		}
		return reflect.TypeOf(s.value)
	case nestedSource:
		return s.instance.Concrete()
	case lookupSource:
		return s.pluginType
	case refSource:
		return s.pluginType
	case allSource:
		return reflect.SliceOf(s.pluginType)
	}
	return nil
}
