package resolver

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ResolutionError annotates a failure with the chain of instances that were
// being built when it happened, outermost first.
type ResolutionError struct {
	PluginType reflect.Type
	Instance   string
	Cause      error
	Chain      []Frame
}

// Frame represents one level of the resolution chain.
type Frame struct {
	PluginType reflect.Type
	Instance   string
	Lifecycle  string
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	var msg strings.Builder

	if e.Instance != "" {
		msg.WriteString(fmt.Sprintf("failed to resolve %v[%s]", e.PluginType, e.Instance))
	} else {
		msg.WriteString(fmt.Sprintf("failed to resolve %v", e.PluginType))
	}

	if e.Cause != nil {
		msg.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Chain) > 0 {
		msg.WriteString("\n\nResolution chain:")
		for i, frame := range e.Chain {
			msg.WriteString(fmt.Sprintf("\n  %d. %s", i+1, frame.String()))
		}
	}

	return msg.String()
}

// Unwrap returns the underlying cause.
func (e *ResolutionError) Unwrap() error {
	return e.Cause
}

// String formats a resolution frame.
func (f Frame) String() string {
	if f.Lifecycle == "" {
		return fmt.Sprintf("%v[%s]", f.PluginType, f.Instance)
	}
	return fmt.Sprintf("%v[%s] (%s)", f.PluginType, f.Instance, f.Lifecycle)
}

// Wrap annotates cause with the chain unless it already carries one. The
// innermost failure point sees the longest chain, so the first wrap wins.
func Wrap(cause error, chain []Frame) error {
	if cause == nil {
		return nil
	}

	var existing *ResolutionError
	if errors.As(cause, &existing) {
		return cause
	}

	frames := make([]Frame, len(chain))
	copy(frames, chain)

	err := &ResolutionError{Cause: cause, Chain: frames}
	if len(frames) > 0 {
		last := frames[len(frames)-1]
		err.PluginType = last.PluginType
		err.Instance = last.Instance
	}

	return err
}

// Within annotates a failure of a resolution started while outer was being
// built. An existing chain is extended with outer in front; otherwise cause
// is wrapped with outer.
func Within(cause error, outer []Frame) error {
	if cause == nil || len(outer) == 0 {
		return cause
	}

	var existing *ResolutionError
	if !errors.As(cause, &existing) {
		return Wrap(cause, outer)
	}

	frames := make([]Frame, 0, len(outer)+len(existing.Chain))
	frames = append(frames, outer...)
	frames = append(frames, existing.Chain...)

	return &ResolutionError{
		PluginType: existing.PluginType,
		Instance:   existing.Instance,
		Cause:      existing.Cause,
		Chain:      frames,
	}
}

// ChainOf extracts the resolution chain from an error if available.
func ChainOf(err error) ([]Frame, bool) {
	var resErr *ResolutionError
	if errors.As(err, &resErr) {
		return resErr.Chain, true
	}
	return nil, false
}
