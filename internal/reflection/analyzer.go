package reflection

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"
)

// In marks a struct whose exported fields are constructor parameters. A
// constructor taking a single struct that embeds In receives one named
// parameter per field.
type In struct{}

var (
	inType  = reflect.TypeOf((*In)(nil)).Elem()
	errType = reflect.TypeOf((*error)(nil)).Elem()
)

// Analyzer performs reflection-based analysis of constructor functions.
// It caches analysis results per function.
type Analyzer struct {
	mu    sync.RWMutex
	cache map[uintptr]*FuncInfo
}

// FuncInfo contains analyzed information about a constructor function.
type FuncInfo struct {
	Type           reflect.Type
	Value          reflect.Value
	Parameters     []ParameterInfo
	Result         reflect.Type
	HasErrorReturn bool // returns error as last value

	// ParamObject is the In struct type when the constructor takes one.
	ParamObject reflect.Type
}

// ParameterInfo describes a constructor parameter or a field of an In struct.
type ParameterInfo struct {
	Type     reflect.Type
	Name     string
	Index    int // parameter index or field index
	Optional bool
	HasValue bool
	Default  string // from default:"..." tag
}

// TagInfo contains parsed struct tag information.
type TagInfo struct {
	Name     string
	Optional bool
	Default  string
	HasValue bool
	Ignore   bool
}

// New creates a new Analyzer.
func New() *Analyzer {
	return &Analyzer{
		cache: make(map[uintptr]*FuncInfo),
	}
}

// Analyze analyzes a constructor function. The function must return one
// value, optionally followed by an error.
func (a *Analyzer) Analyze(constructor any) (*FuncInfo, error) {
	if constructor == nil {
		return nil, fmt.Errorf("constructor cannot be nil")
	}

	val := reflect.ValueOf(constructor)
	typ := val.Type()

	if typ.Kind() != reflect.Func {
		return nil, fmt.Errorf("constructor must be a function, got %v", typ)
	}
	if val.IsNil() {
		return nil, fmt.Errorf("constructor cannot be nil")
	}
	if typ.IsVariadic() {
		return nil, fmt.Errorf("constructor %v cannot be variadic", typ)
	}

	cacheKey := val.Pointer()

	a.mu.RLock()
	if cached, ok := a.cache[cacheKey]; ok && cached.Type == typ {
		a.mu.RUnlock()
		return cached, nil
	}
	a.mu.RUnlock()

	info := &FuncInfo{
		Type:  typ,
		Value: val,
	}

	if err := a.analyzeReturns(info); err != nil {
		return nil, err
	}

	if err := a.analyzeParameters(info); err != nil {
		return nil, fmt.Errorf("failed to analyze parameters: %w", err)
	}

	a.mu.Lock()
	a.cache[cacheKey] = info
	a.mu.Unlock()

	return info, nil
}

// analyzeParameters analyzes function parameters or In struct fields.
func (a *Analyzer) analyzeParameters(info *FuncInfo) error {
	fnType := info.Type

	if fnType.NumIn() == 1 && hasEmbeddedIn(fnType.In(0)) {
		return a.analyzeParamObject(info, fnType.In(0))
	}

	info.Parameters = make([]ParameterInfo, fnType.NumIn())
	for i := 0; i < fnType.NumIn(); i++ {
		info.Parameters[i] = ParameterInfo{
			Type:  fnType.In(i),
			Name:  fmt.Sprintf("arg%d", i),
			Index: i,
		}
	}

	return nil
}

// analyzeParamObject analyzes an In struct's fields.
func (a *Analyzer) analyzeParamObject(info *FuncInfo, structType reflect.Type) error {
	if structType.Kind() == reflect.Pointer {
		return fmt.Errorf("In parameter must be passed by value, got %v", structType)
	}

	info.ParamObject = structType
	params := make([]ParameterInfo, 0, structType.NumField())
	seen := make(map[string]bool)

	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)

		if field.Anonymous && field.Type == inType {
			continue
		}
		if !field.IsExported() {
			continue
		}

		tag := ParseTags(field.Tag)
		if tag.Ignore {
			continue
		}

		name := tag.Name
		if name == "" {
			name = lowerFirst(field.Name)
		}
		if seen[name] {
			return fmt.Errorf("field %s: parameter %q declared twice", field.Name, name)
		}
		seen[name] = true

		params = append(params, ParameterInfo{
			Type:     field.Type,
			Name:     name,
			Index:    i,
			Optional: tag.Optional,
			HasValue: tag.HasValue,
			Default:  tag.Default,
		})
	}

	info.Parameters = params
	return nil
}

// analyzeReturns checks the function returns (T) or (T, error).
func (a *Analyzer) analyzeReturns(info *FuncInfo) error {
	fnType := info.Type

	switch fnType.NumOut() {
	case 1:
		if fnType.Out(0) == errType {
			return fmt.Errorf("constructor %v only returns error", fnType)
		}
	case 2:
		if fnType.Out(1) != errType {
			return fmt.Errorf("constructor %v: second result must be error", fnType)
		}
		info.HasErrorReturn = true
	default:
		return fmt.Errorf("constructor %v must return a value and an optional error", fnType)
	}

	info.Result = fnType.Out(0)
	return nil
}

// ParseTags parses struct field tags for parameter annotations.
func ParseTags(tag reflect.StructTag) TagInfo {
	info := TagInfo{}

	if val, ok := tag.Lookup("optional"); ok {
		info.Optional = val == "true"
	}

	if val, ok := tag.Lookup("name"); ok {
		info.Name = val
	}

	if val, ok := tag.Lookup("default"); ok {
		info.Default = val
		info.HasValue = true
	}

	if val, ok := tag.Lookup("inject"); ok && val == "-" {
		info.Ignore = true
	}

	return info
}

// CacheSize returns the number of cached analyses.
func (a *Analyzer) CacheSize() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.cache)
}

// hasEmbeddedIn checks if a struct type embeds In.
func hasEmbeddedIn(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return false
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous && field.Type == inType {
			return true
		}
	}

	return false
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// String describes the parameter for diagnostics.
func (p ParameterInfo) String() string {
	var b strings.Builder
	b.WriteString(p.Name)
	b.WriteString(" ")
	b.WriteString(p.Type.String())
	if p.Optional {
		b.WriteString(" (optional)")
	}
	return b.String()
}
