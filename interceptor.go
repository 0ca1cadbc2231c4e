package wirekit

import (
	"fmt"
	"reflect"
)

// Interceptor post-processes an object after it is built. It may return the
// same object, or a replacement such as a decorator or proxy.
type Interceptor interface {
	Description() string
	Intercept(s *Session, obj any) (any, error)
}

type funcInterceptor struct {
	description string
	fn          func(s *Session, obj any) (any, error)
}

func (i *funcInterceptor) Description() string {
	return i.description
}

func (i *funcInterceptor) Intercept(s *Session, obj any) (any, error) {
	return i.fn(s, obj)
}

// Transform returns an interceptor running fn with the session, for
// interceptors that resolve collaborators of their own.
func Transform(description string, fn func(s *Session, obj any) (any, error)) Interceptor {
	return &funcInterceptor{description: description, fn: fn}
}

// Enrich returns an interceptor that replaces a T with the result of fn,
// typically a decorator wrapping it.
func Enrich[T any](fn func(T) (T, error)) Interceptor {
	return &funcInterceptor{
		description: fmt.Sprintf("Enrich<%s>", formatType(reflect.TypeFor[T]())),
		fn: func(_ *Session, obj any) (any, error) {
			target, ok := obj.(T)
			if !ok {
				return nil, TypeMismatchError{Expected: reflect.TypeFor[T](), Actual: reflect.TypeOf(obj), Context: "enrich"}
			}
			return fn(target)
		},
	}
}

// OnCreation returns an interceptor that calls fn with the new object and
// keeps the object itself.
func OnCreation[T any](fn func(T) error) Interceptor {
	return &funcInterceptor{
		description: fmt.Sprintf("OnCreation<%s>", formatType(reflect.TypeFor[T]())),
		fn: func(_ *Session, obj any) (any, error) {
			target, ok := obj.(T)
			if !ok {
				return nil, TypeMismatchError{Expected: reflect.TypeFor[T](), Actual: reflect.TypeOf(obj), Context: "activation"}
			}
			if err := fn(target); err != nil {
				return nil, err
			}
			return obj, nil
		},
	}
}
