package metal

import (
	"errors"

	mapset "github.com/deckarep/golang-set/v2"
)

// PropertyWillChange announces that key of obj is about to change. Callers
// that mutate storage directly must pair it with PropertyDidChange.
func PropertyWillChange(obj *Object, key string) error {
	if obj == nil || obj.prototype {
		return nil
	}
	m := PeekMeta(obj)
	if m == nil || m.peekWatching(key) == 0 {
		return nil
	}
	var errs []error
	if m.hasDeps(key) {
		errs = append(errs, dependentKeysWillChange(obj, key, m))
	}
	errs = append(errs, chainsWillChange(obj, key))
	errs = append(errs, notifyBeforeObservers(obj, key))
	return errors.Join(errs...)
}

// PropertyDidChange announces that key of obj changed: computed caches
// depending on it are evicted, chains through it are re-rooted, and
// observers are notified (or queued when a batch is open).
func PropertyDidChange(obj *Object, key string) error {
	if obj == nil || obj.prototype {
		return nil
	}
	if !IsPath(key) {
		if d := obj.descriptor(key); d != nil {
			d.didChange(obj, key)
		}
	}
	m := PeekMeta(obj)
	if m == nil || m.peekWatching(key) == 0 {
		return nil
	}
	var errs []error
	if m.hasDeps(key) {
		errs = append(errs, dependentKeysDidChange(obj, key, m))
	}
	errs = append(errs, chainsDidChange(obj, key))
	errs = append(errs, notifyObservers(obj, key))
	return errors.Join(errs...)
}

func chainsWillChange(obj *Object, key string) error {
	if obj.meta == nil || obj.meta.chainWatchers == nil {
		return nil
	}
	return obj.meta.chainWatchers.notify(key, false, PropertyWillChange)
}

func chainsDidChange(obj *Object, key string) error {
	if obj.meta == nil || obj.meta.chainWatchers == nil {
		return nil
	}
	return obj.meta.chainWatchers.notify(key, true, PropertyDidChange)
}

func dependentKeysWillChange(obj *Object, depKey string, m *Meta) error {
	if obj.destroying {
		return nil
	}
	s := obj.sys
	top := s.willSeen == nil
	if top {
		s.willSeen = map[*Object]mapset.Set[string]{}
		defer func() { s.willSeen = nil }()
	}
	return iterDeps(PropertyWillChange, obj, depKey, s.willSeen, m)
}

func dependentKeysDidChange(obj *Object, depKey string, m *Meta) error {
	if obj.destroying {
		return nil
	}
	s := obj.sys
	top := s.didSeen == nil
	if top {
		s.didSeen = map[*Object]mapset.Set[string]{}
		defer func() { s.didSeen = nil }()
	}
	return iterDeps(PropertyDidChange, obj, depKey, s.didSeen, m)
}

// iterDeps applies method to every key depending on depKey, visiting each
// (object, depKey) pair once per top-level change so dependency cycles end.
func iterDeps(method func(*Object, string) error, obj *Object, depKey string, seen map[*Object]mapset.Set[string], m *Meta) error {
	current, ok := seen[obj]
	if !ok {
		current = mapset.NewThreadUnsafeSet[string]()
		seen[obj] = current
	}
	if current.Contains(depKey) {
		return nil
	}
	current.Add(depKey)

	var errs []error
	for _, key := range m.depsOf(depKey) {
		if cp, ok := obj.descriptor(key).(*ComputedProperty); ok && cp.suspended == obj {
			continue
		}
		if err := method(obj, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BeginPropertyChanges opens a batch. Change observers are deferred until
// the matching EndPropertyChanges closes the outermost batch.
func (s *System) BeginPropertyChanges() {
	s.changeDepth++
}

// EndPropertyChanges closes a batch. Closing the outermost one notifies
// each changed (object, key) exactly once.
func (s *System) EndPropertyChanges() error {
	if s.changeDepth == 0 {
		s.invariant("EndPropertyChanges without BeginPropertyChanges")
		return nil
	}
	s.changeDepth--
	if s.changeDepth > 0 {
		return nil
	}
	s.beforeObservers.clear()
	pending := s.observers.len()
	err := s.observers.flush()
	if pending > 0 {
		s.logger.Debug("metal: flushed property changes", "observations", pending)
	}
	return err
}

// ChangeProperties runs fn inside a batch. The batch is closed even when fn
// fails; errors from fn and from the flush are joined.
func (s *System) ChangeProperties(fn func() error) (err error) {
	s.BeginPropertyChanges()
	defer func() {
		if endErr := s.EndPropertyChanges(); endErr != nil {
			err = errors.Join(err, endErr)
		}
	}()
	return fn()
}

// InBatch reports whether a batch is open.
func (s *System) InBatch() bool { return s.changeDepth > 0 }

// BeginPropertyChanges opens a batch on Default.
func BeginPropertyChanges() { Default.BeginPropertyChanges() }

// EndPropertyChanges closes a batch on Default.
func EndPropertyChanges() error { return Default.EndPropertyChanges() }

func ChangeProperties(fn func() error) error { return Default.ChangeProperties(fn) }
