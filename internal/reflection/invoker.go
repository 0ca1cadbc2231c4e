package reflection

import (
	"fmt"
	"reflect"
	"strconv"
)

// Invoke calls the analyzed function with the given arguments, one per
// parameter in order. Nil arguments become zero values; other values are
// converted to the parameter type when assignable or convertible.
func (info *FuncInfo) Invoke(args []any) (any, error) {
	if len(args) != len(info.Parameters) {
		return nil, fmt.Errorf("expected %d arguments, got %d", len(info.Parameters), len(args))
	}

	var in []reflect.Value
	if info.ParamObject != nil {
		obj := reflect.New(info.ParamObject).Elem()
		for i, p := range info.Parameters {
			v, err := Coerce(args[i], p.Type)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", p.Name, err)
			}
			obj.Field(p.Index).Set(v)
		}
		in = []reflect.Value{obj}
	} else {
		in = make([]reflect.Value, len(args))
		for i, p := range info.Parameters {
			v, err := Coerce(args[i], p.Type)
			if err != nil {
				return nil, fmt.Errorf("argument %s: %w", p.Name, err)
			}
			in[i] = v
		}
	}

	results := info.Value.Call(in)

	if info.HasErrorReturn {
		if errVal := results[1]; !errVal.IsNil() {
			return nil, errVal.Interface().(error)
		}
	}

	result := results[0]
	if isNilable(result.Kind()) && result.IsNil() {
		return nil, nil
	}
	return result.Interface(), nil
}

// Coerce converts value to a reflect.Value of type t.
func Coerce(value any, t reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(t), nil
	}

	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(t) {
		return v, nil
	}

	// Slices of interfaces, as produced for enumerated dependencies.
	if v.Kind() == reflect.Slice && t.Kind() == reflect.Slice {
		out := reflect.MakeSlice(t, v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			elem, err := Coerce(v.Index(i).Interface(), t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).Set(elem)
		}
		return out, nil
	}

	if Convertible(v.Type(), t) {
		return v.Convert(t), nil
	}

	return reflect.Value{}, fmt.Errorf("cannot use %v as %v", v.Type(), t)
}

// ParseDefault converts a default:"..." tag value to t.
func ParseDefault(raw string, t reflect.Type) (any, error) {
	v := reflect.New(t).Elem()

	switch t.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, t.Bits())
		if err != nil {
			return nil, err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, t.Bits())
		if err != nil {
			return nil, err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, t.Bits())
		if err != nil {
			return nil, err
		}
		v.SetFloat(f)
	default:
		return nil, fmt.Errorf("default values are not supported for %v", t)
	}

	return v.Interface(), nil
}

func isNilable(k reflect.Kind) bool {
	switch k {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

// Convertible reports whether Coerce converts values of type from to type
// to.
func Convertible(from, to reflect.Type) bool {
	return from.ConvertibleTo(to) && convertible(from.Kind(), to.Kind())
}

// convertible limits conversion to numeric widening or narrowing and
// named types of the same kind.
func convertible(from, to reflect.Kind) bool {
	if from == to {
		return true
	}
	return isNumeric(from) && isNumeric(to)
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
