package wirekit

import (
	"context"
	"fmt"
	"reflect"
)

// Resolve returns the default object of T.
//
// Example:
//
//	engine, err := wirekit.Resolve[Engine](container)
func Resolve[T any](c *Container) (T, error) {
	return ResolveNamed[T](c, "")
}

// ResolveNamed returns the object of the named instance of T.
func ResolveNamed[T any](c *Container, name string) (T, error) {
	return ResolveContext[T](context.Background(), c, name)
}

// ResolveContext returns the named object of T, tracing under ctx.
func ResolveContext[T any](ctx context.Context, c *Container, name string) (T, error) {
	var zero T
	if c == nil {
		return zero, ErrContainerNil
	}

	obj, err := c.ResolveContext(ctx, reflect.TypeFor[T](), name)
	if err != nil {
		return zero, err
	}
	return cast[T](obj)
}

// ResolveWith returns a new T built with explicit arguments.
//
// Example:
//
//	engine, err := wirekit.ResolveWith[Engine](container, wirekit.NewArgs().With("cylinders", 12))
func ResolveWith[T any](c *Container, args *ExplicitArgs) (T, error) {
	var zero T
	if c == nil {
		return zero, ErrContainerNil
	}

	obj, err := c.ResolveWith(reflect.TypeFor[T](), args)
	if err != nil {
		return zero, err
	}
	return cast[T](obj)
}

// ResolveAll returns an object of every instance of T.
func ResolveAll[T any](c *Container) ([]T, error) {
	if c == nil {
		return nil, ErrContainerNil
	}

	objs, err := c.ResolveAll(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}

	out := make([]T, len(objs))
	for i, obj := range objs {
		if out[i], err = cast[T](obj); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// MustResolve is Resolve that panics on error.
func MustResolve[T any](c *Container) T {
	obj, err := Resolve[T](c)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve %s: %v", formatType(reflect.TypeFor[T]()), err))
	}
	return obj
}

// MustResolveNamed is ResolveNamed that panics on error.
func MustResolveNamed[T any](c *Container, name string) T {
	obj, err := ResolveNamed[T](c, name)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve %s[%s]: %v", formatType(reflect.TypeFor[T]()), name, err))
	}
	return obj
}

// Inject makes obj the default of T.
func Inject[T any](c *Container, obj T, name ...string) error {
	if c == nil {
		return ErrContainerNil
	}
	return c.Inject(reflect.TypeFor[T](), obj, name...)
}

// SetDefault makes inst the default of T.
func SetDefault[T any](c *Container, inst *Instance) error {
	if c == nil {
		return ErrContainerNil
	}
	return c.SetDefault(reflect.TypeFor[T](), inst)
}

// IsRegistered reports whether T has any instance in the container's graph.
func IsRegistered[T any](c *Container) bool {
	if c == nil {
		return false
	}
	return c.Graph().Has(reflect.TypeFor[T]())
}

func cast[T any](obj any) (T, error) {
	var zero T
	if obj == nil {
		return zero, nil
	}

	typed, ok := obj.(T)
	if !ok {
		return zero, TypeMismatchError{
			Expected: reflect.TypeFor[T](),
			Actual:   reflect.TypeOf(obj),
			Context:  "type assertion",
		}
	}
	return typed, nil
}
