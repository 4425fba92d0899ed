package metal

import (
	"errors"
	"fmt"
	"slices"
)

// EventFunc handles an event sent to sender. target is the target the
// listener was registered with, or sender when none was given.
type EventFunc func(target any, sender *Object, args ...any) error

type listenerFlags uint8

const (
	fOnce listenerFlags = 1 << iota
	fSuspended
)

type listenerEntry struct {
	target any
	method string
	fn     EventFunc
	flags  listenerFlags
}

func (l *listenerEntry) matches(target any, method string) bool {
	return l.method == method && identical(l.target, target)
}

type ListenerOption func(*listenerEntry)

// Once removes the listener before its first invocation.
func Once() ListenerOption {
	return func(l *listenerEntry) {
		l.flags |= fOnce
	}
}

// ListenerRef identifies a registered listener.
type ListenerRef struct {
	Target any
	Method string
}

// AddListener registers fn for eventName on obj. A listener is identified
// by target and method; adding the same pair twice keeps the first.
func AddListener(obj *Object, eventName string, target any, method string, fn EventFunc, opts ...ListenerOption) {
	if obj == nil || fn == nil {
		return
	}
	m := MetaFor(obj)
	list := m.writableListeners(eventName)
	for _, l := range list {
		if l.matches(target, method) {
			return
		}
	}
	entry := &listenerEntry{target: target, method: method, fn: fn}
	for _, opt := range opts {
		opt(entry)
	}
	m.setListeners(eventName, append(list, entry))
}

// RemoveListener unregisters target+method. With a nil target and an empty
// method every listener for eventName is removed.
func RemoveListener(obj *Object, eventName string, target any, method string) {
	if PeekMeta(obj) == nil {
		return
	}
	m := MetaFor(obj)
	list := m.writableListeners(eventName)
	if target == nil && method == "" {
		m.setListeners(eventName, nil)
		return
	}
	i := slices.IndexFunc(list, func(l *listenerEntry) bool { return l.matches(target, method) })
	if i < 0 {
		return
	}
	m.setListeners(eventName, slices.Delete(slices.Clone(list), i, i+1))
}

// HasListeners reports whether any listener is registered for eventName.
func HasListeners(obj *Object, eventName string) bool {
	m := PeekMeta(obj)
	return m != nil && len(m.matchingListeners(eventName)) > 0
}

// ListenersFor lists listeners for eventName in firing order.
func ListenersFor(obj *Object, eventName string) []ListenerRef {
	m := PeekMeta(obj)
	if m == nil {
		return nil
	}
	list := m.matchingListeners(eventName)
	refs := make([]ListenerRef, 0, len(list))
	for _, l := range list {
		refs = append(refs, ListenerRef{Target: l.target, Method: l.method})
	}
	return refs
}

// WatchedEvents lists, sorted, the event names obj has listeners for.
func WatchedEvents(obj *Object) []string {
	m := PeekMeta(obj)
	if m == nil {
		return nil
	}
	names := m.listenerEventNames().ToSlice()
	slices.Sort(names)
	return names
}

// SendEvent synchronously invokes every non-suspended listener for
// eventName in registration order. A failing listener does not stop the
// others; its error goes through the system's error hook and whatever the
// hook returns is joined into the result.
func SendEvent(obj *Object, eventName string, args ...any) error {
	m := PeekMeta(obj)
	if m == nil {
		return nil
	}
	return sendEventTo(obj, eventName, args, m.matchingListeners(eventName))
}

func sendEventTo(obj *Object, eventName string, args []any, actions []*listenerEntry) error {
	if len(actions) == 0 {
		return nil
	}
	actions = slices.Clone(actions)
	var errs []error
	for _, l := range actions {
		if l.flags&fSuspended != 0 {
			continue
		}
		if l.flags&fOnce != 0 {
			RemoveListener(obj, eventName, l.target, l.method)
		}
		target := l.target
		if target == nil {
			target = obj
		}
		if err := obj.sys.invoke(eventName, l, target, obj, args); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *System) invoke(eventName string, l *listenerEntry, target any, sender *Object, args []any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = s.handleError(&ListenerInvocationError{
				Event:  eventName,
				Target: l.target,
				Method: l.method,
				Err:    fmt.Errorf("panic: %v", r),
				Panic:  r,
			})
		}
	}()
	if callErr := l.fn(target, sender, args...); callErr != nil {
		return s.handleError(&ListenerInvocationError{
			Event:  eventName,
			Target: l.target,
			Method: l.method,
			Err:    callErr,
		})
	}
	return nil
}

// SuspendListener keeps target+method from firing for eventName while fn
// runs. The listener is restored even when fn fails or panics.
func SuspendListener(obj *Object, eventName string, target any, method string, fn func() error) error {
	return SuspendListeners(obj, []string{eventName}, target, method, fn)
}

// SuspendListeners is SuspendListener for several events at once.
func SuspendListeners(obj *Object, eventNames []string, target any, method string, fn func() error) error {
	var suspended []*listenerEntry
	if PeekMeta(obj) != nil {
		m := MetaFor(obj)
		for _, eventName := range eventNames {
			for _, l := range m.writableListeners(eventName) {
				if l.matches(target, method) && l.flags&fSuspended == 0 {
					l.flags |= fSuspended
					suspended = append(suspended, l)
				}
			}
		}
	}
	defer func() {
		for _, l := range suspended {
			l.flags &^= fSuspended
		}
	}()
	return fn()
}

// accumulateListeners appends to dst the listeners for eventName that are
// not already in it and returns the ones it added. Entries are snapshots: a
// listener suspended when the change happened stays suspended at flush.
func accumulateListeners(obj *Object, eventName string, dst *[]*listenerEntry) []*listenerEntry {
	m := PeekMeta(obj)
	if m == nil {
		return nil
	}
	var added []*listenerEntry
	for _, l := range m.matchingListeners(eventName) {
		if slices.ContainsFunc(*dst, func(o *listenerEntry) bool { return o.matches(l.target, l.method) }) {
			continue
		}
		snapshot := *l
		*dst = append(*dst, &snapshot)
		added = append(added, &snapshot)
	}
	return added
}
