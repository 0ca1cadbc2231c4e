package wirekit

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/junioryono/wirekit/internal/graph"
	"github.com/junioryono/wirekit/internal/resolver"
)

// ========================================
// Core Error Values (Sentinel Errors)
// ========================================
// Typed errors below match these through errors.Is, so callers can test the
// kind of a failure without unpacking it.

var (
	// Graph state errors.
	ErrGraphNotSealed = errors.New("plugin graph has not been sealed")
	ErrGraphSealed    = errors.New("plugin graph is sealed")

	// Lookup errors.
	ErrMissingInstance = errors.New("instance not found")
	ErrDuplicateName   = errors.New("duplicate instance name")

	// Build errors.
	ErrCyclicDependency   = graph.ErrCircularDependency
	ErrUnresolvedArgument = errors.New("unresolved constructor argument")
	ErrConstruction       = errors.New("construction failed")

	// Validation errors.
	ErrConfigurationInvalid = errors.New("configuration is invalid")

	// Argument errors.
	ErrPluginTypeNil  = errors.New("plugin type cannot be nil")
	ErrInstanceNil    = errors.New("instance cannot be nil")
	ErrConstructorNil = errors.New("constructor cannot be nil")
	ErrConfigureNil   = errors.New("configure function cannot be nil")
	ErrGraphNil       = errors.New("plugin graph cannot be nil")
	ErrContainerNil   = errors.New("container cannot be nil")
	ErrLifecycleNil   = errors.New("lifecycle cannot be nil")

	// Container errors.
	ErrContainerClosed = errors.New("container has been closed")
	ErrProfileNotFound = errors.New("profile not found")
)

var (
	_ error = GraphNotSealedError{}
	_ error = GraphSealedError{}
	_ error = MissingInstanceError{}
	_ error = DuplicateNameError{}
	_ error = UnresolvedArgumentError{}
	_ error = ConstructionError{}
	_ error = ConfigurationValidationError{}
	_ error = TypeMismatchError{}
	_ error = ModuleError{}
	_ error = ConfigError{}
	_ error = ProfileNotFoundError{}
	_ error = (*CyclicDependencyError)(nil)
	_ error = (*ResolutionError)(nil)
)

// ========================================
// Typed Errors for Rich Context
// ========================================

// CyclicDependencyError reports an instance that transitively depends on
// itself. Path lists the instances of the cycle in dependency order.
type CyclicDependencyError = graph.CircularDependencyError

// ResolutionError wraps a failure with the chain of (plugin type, instance)
// frames that led to it, outermost first.
type ResolutionError = resolver.ResolutionError

// Frame is one level of a resolution chain.
type Frame = resolver.Frame

// GraphNotSealedError indicates a resolution was attempted against a graph
// that has not been sealed.
type GraphNotSealedError struct {
	Operation string
}

func (e GraphNotSealedError) Error() string {
	return fmt.Sprintf("cannot %s: plugin graph has not been sealed (call Seal first)", e.Operation)
}

func (e GraphNotSealedError) Is(target error) bool {
	return target == ErrGraphNotSealed
}

// GraphSealedError indicates a mutation of a sealed graph.
type GraphSealedError struct {
	Operation  string
	PluginType reflect.Type
}

func (e GraphSealedError) Error() string {
	if e.PluginType != nil {
		return fmt.Sprintf("cannot %s %s: plugin graph is sealed", e.Operation, formatType(e.PluginType))
	}
	return fmt.Sprintf("cannot %s: plugin graph is sealed", e.Operation)
}

func (e GraphSealedError) Is(target error) bool {
	return target == ErrGraphSealed
}

// MissingInstanceError indicates no instance matched the requested plugin
// type and name. An empty Name means the default instance was requested.
type MissingInstanceError struct {
	PluginType reflect.Type
	Name       string
	Available  []string // names registered under PluginType, for suggestions
}

func (e MissingInstanceError) Error() string {
	var b strings.Builder

	if e.Name != "" {
		b.WriteString(fmt.Sprintf("no instance named %q registered for %s", e.Name, formatType(e.PluginType)))
	} else {
		b.WriteString(fmt.Sprintf("no default instance registered for %s", formatType(e.PluginType)))
	}

	if len(e.Available) > 0 {
		b.WriteString(fmt.Sprintf(" (available: %s)", strings.Join(e.Available, ", ")))
	}

	return b.String()
}

func (e MissingInstanceError) Is(target error) bool {
	return target == ErrMissingInstance
}

// DuplicateNameError indicates two different concrete types were registered
// under the same explicit name for one plugin type.
type DuplicateNameError struct {
	PluginType reflect.Type
	Name       string
	Existing   reflect.Type
	Incoming   reflect.Type
}

func (e DuplicateNameError) Error() string {
	return fmt.Sprintf("instance %q of %s is already registered as %s, cannot register %s (use Replace to override)",
		e.Name, formatType(e.PluginType), formatType(e.Existing), formatType(e.Incoming))
}

func (e DuplicateNameError) Is(target error) bool {
	return target == ErrDuplicateName
}

// UnresolvedArgumentError indicates a declared constructor parameter had no
// binding, no default, and no registered plugin type to auto-wire from.
type UnresolvedArgumentError struct {
	Instance  string
	Concrete  reflect.Type
	Parameter string
	Type      reflect.Type
}

func (e UnresolvedArgumentError) Error() string {
	if e.Type != nil {
		return fmt.Sprintf("instance %q (%s): no value for constructor argument %q of type %s",
			e.Instance, formatType(e.Concrete), e.Parameter, formatType(e.Type))
	}
	return fmt.Sprintf("instance %q (%s): no value for constructor argument %q",
		e.Instance, formatType(e.Concrete), e.Parameter)
}

func (e UnresolvedArgumentError) Is(target error) bool {
	return target == ErrUnresolvedArgument
}

// ConstructionError wraps an error returned, or a panic raised, by user
// construction code: constructors, setters, and interceptors.
type ConstructionError struct {
	Instance string
	Concrete reflect.Type
	Step     string // "constructor", "setter Name", "interceptor ..."
	Cause    error
	Panic    any
	Stack    []byte
}

func (e ConstructionError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s of instance %q (%s) failed", e.Step, e.Instance, formatType(e.Concrete)))

	if e.Panic != nil {
		b.WriteString(fmt.Sprintf(": panic: %v", e.Panic))
		if len(e.Stack) > 0 {
			b.WriteString("\n\nStack trace:\n")
			b.Write(e.Stack)
		}
		return b.String()
	}

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	return b.String()
}

func (e ConstructionError) Unwrap() error {
	return e.Cause
}

func (e ConstructionError) Is(target error) bool {
	return target == ErrConstruction
}

// ConfigurationValidationError aggregates every failure found by Validate.
type ConfigurationValidationError struct {
	Errors []error
}

func (e ConfigurationValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration is invalid: %v", e.Errors[0])
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration is invalid with %d errors:", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("\n  %d. %s", i+1, indent(err.Error())))
	}
	return sb.String()
}

func (e ConfigurationValidationError) Unwrap() []error {
	return e.Errors
}

func (e ConfigurationValidationError) Is(target error) bool {
	return target == ErrConfigurationInvalid
}

// TypeMismatchError indicates a concrete type or object that cannot be used
// as the plugin type it was registered or requested as.
type TypeMismatchError struct {
	Expected reflect.Type
	Actual   reflect.Type
	Context  string // "registration", "type assertion", ...
}

func (e TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Context, formatType(e.Expected), formatType(e.Actual))
}

// ModuleError wraps errors from module registration.
type ModuleError struct {
	Module string
	Cause  error
}

func (e ModuleError) Error() string {
	return fmt.Sprintf("module %q: %v", e.Module, e.Cause)
}

func (e ModuleError) Unwrap() error {
	return e.Cause
}

// ConfigError wraps errors from loading or applying a Config.
type ConfigError struct {
	Source string // file path, "env", "reader"
	Field  string
	Cause  error
}

func (e ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config %s: %s: %v", e.Source, e.Field, e.Cause)
	}
	return fmt.Sprintf("config %s: %v", e.Source, e.Cause)
}

func (e ConfigError) Unwrap() error {
	return e.Cause
}

// ProfileNotFoundError indicates a profile no registration mentions.
type ProfileNotFoundError struct {
	Profile   string
	Available []string
}

func (e ProfileNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("profile %q not found (no profiles defined)", e.Profile)
	}
	return fmt.Sprintf("profile %q not found (available: %s)", e.Profile, strings.Join(e.Available, ", "))
}

func (e ProfileNotFoundError) Is(target error) bool {
	return target == ErrProfileNotFound
}

// IsMissing reports whether err was caused by a missing instance.
func IsMissing(err error) bool {
	return errors.Is(err, ErrMissingInstance)
}

// IsCyclic reports whether err was caused by a dependency cycle.
func IsCyclic(err error) bool {
	return errors.Is(err, ErrCyclicDependency)
}

// ChainOf returns the resolution chain attached to err, if any.
func ChainOf(err error) ([]Frame, bool) {
	return resolver.ChainOf(err)
}

func indent(s string) string {
	return strings.ReplaceAll(s, "\n", "\n     ")
}

// formatType formats a reflect.Type for error messages.
func formatType(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	switch t.Kind() {
	case reflect.Pointer:
		// Format pointers as *Type instead of *package.Type
		elem := t.Elem()
		if elem.PkgPath() != "" && elem.Name() != "" {
			return "*" + elem.Name()
		}
		return t.String()
	case reflect.Slice:
		elem := t.Elem()
		if elem.PkgPath() != "" && elem.Name() != "" {
			return "[]" + elem.Name()
		}
		return t.String()
	case reflect.Func:
		return t.String()
	default:
		if t.Name() != "" {
			return t.Name()
		}
		return t.String()
	}
}
