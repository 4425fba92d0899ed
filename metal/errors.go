package metal

import (
	"errors"
	"fmt"
)

var (
	// ErrUndefinedProperty is returned by Set when the target of a set cannot
	// be resolved. TrySet ignores those targets instead.
	ErrUndefinedProperty = errors.New("metal: undefined property")

	// ErrDestroyed is an ErrUndefinedProperty raised for destroyed objects.
	ErrDestroyed = fmt.Errorf("%w: object is destroyed", ErrUndefinedProperty)

	ErrReadOnly = errors.New("metal: cannot set read-only property")

	ErrInvalidDescriptor = errors.New("metal: invalid property descriptor")
)

// ListenerInvocationError wraps a failure inside one listener. Dispatch
// continues with the next listener.
type ListenerInvocationError struct {
	Event  string
	Target any
	Method string
	Err    error
	// Panic holds the recovered value when the listener panicked.
	Panic any
}

func (e *ListenerInvocationError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("metal: listener %q for %q panicked: %v", e.Method, e.Event, e.Panic)
	}
	return fmt.Sprintf("metal: listener %q for %q failed: %v", e.Method, e.Event, e.Err)
}

func (e *ListenerInvocationError) Unwrap() error { return e.Err }
