package wirekit

import (
	"reflect"

	"go.uber.org/dig"
)

var errorType = reflect.TypeFor[error]()

// FromDig creates an instance whose objects are produced by invoking an
// existing dig container for t. It lets a graph reuse providers already
// wired with dig; dig's own caching still applies, so the object is shared
// by dig even when the instance's lifecycle is Unique.
func FromDig(c *dig.Container, t reflect.Type, opts ...InstanceOption) (*Instance, error) {
	if c == nil {
		return nil, ErrContainerNil
	}
	if t == nil {
		return nil, ErrPluginTypeNil
	}

	fnType := reflect.FuncOf([]reflect.Type{t}, []reflect.Type{errorType}, false)

	ctor := func(Arguments) (any, error) {
		var result any
		fn := reflect.MakeFunc(fnType, func(args []reflect.Value) []reflect.Value {
			result = args[0].Interface()
			return []reflect.Value{reflect.Zero(errorType)}
		})

		if err := c.Invoke(fn.Interface()); err != nil {
			return nil, err
		}
		return result, nil
	}

	return NewInstance(t, ctor, append([]InstanceOption{Describe("Dig<" + formatType(t) + ">")}, opts...)...)
}

// UseDig registers a FromDig instance under the plugin type T.
func UseDig[T any](c *dig.Container, opts ...InstanceOption) Module {
	return func(g *PluginGraph) error {
		inst, err := FromDig(c, reflect.TypeFor[T](), opts...)
		if err != nil {
			return err
		}
		return g.Register(reflect.TypeFor[T](), inst)
	}
}
