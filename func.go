package wirekit

import (
	"github.com/junioryono/wirekit/internal/reflection"
)

// In marks a parameter struct for FromFunc. Each exported field becomes a
// named constructor parameter: the name is taken from the `name` tag or the
// field name with a lowercase first letter. `default:"..."` supplies a
// fallback for scalar fields, `optional:"true"` falls back to the zero
// value, and `inject:"-"` skips the field.
//
//	type EngineParams struct {
//	    wirekit.In
//
//	    Cylinders int    `name:"cylinders" default:"8"`
//	    Logger    Logger `optional:"true"`
//	}
type In = reflection.In

var analyzer = reflection.New()

// FromFunc creates an instance from a plain Go constructor of the form
// func(A, B, ...) T or func(A, B, ...) (T, error). Positional parameters are
// named arg0, arg1, ... unless renamed with ParamNames; a single In struct
// parameter yields one named parameter per field. Parameters are auto-wired
// by type when nothing is bound to them.
func FromFunc(fn any, opts ...InstanceOption) (*Instance, error) {
	info, err := analyzer.Analyze(fn)
	if err != nil {
		return nil, err
	}

	params := make([]Param, len(info.Parameters))
	for i, p := range info.Parameters {
		params[i] = Param{Name: p.Name, Type: p.Type}

		switch {
		case p.HasValue:
			def, err := reflection.ParseDefault(p.Default, p.Type)
			if err != nil {
				return nil, ConfigError{Source: "tag", Field: p.Name, Cause: err}
			}
			params[i].Default = def
			params[i].HasDefault = true
		case p.Optional:
			params[i].HasDefault = true
		}
	}

	ctor := func(args Arguments) (any, error) {
		// Declared parameters come first, so match by position; ParamNames
		// may have renamed them.
		values := make([]any, len(info.Parameters))
		for i := range values {
			values[i] = args.At(i)
		}
		return info.Invoke(values)
	}

	return NewInstance(info.Result, ctor, append([]InstanceOption{Params(params...)}, opts...)...)
}
