package metal

import (
	"errors"
	"fmt"
)

type Getter func(obj *Object, key string) any

// Setter receives the value being set and the currently cached value (nil
// when nothing is cached). Its result becomes the cached value.
type Setter func(obj *Object, key string, value, cached any) (any, error)

// ComputedProperty derives a value from other keys of the same object.
//
// Cacheable properties compute on first read and keep the result until a
// change reaches one of their dependent keys. While a value is cached, or
// while the key itself is watched, the dependent keys are watched so
// changes along them, including through replaced intermediate objects,
// evict the cache.
type ComputedProperty struct {
	getter        Getter
	setter        Setter
	dependentKeys []string
	volatile      bool
	readOnly      bool
	meta          map[string]any

	// object whose setter is running; its own change must not evict the
	// value the setter is about to cache
	suspended *Object
	err       error
}

// Computed builds a cacheable computed property. Dependent keys may use
// brace expansion ("name.{first,last}").
func Computed(getter Getter, dependentKeys ...string) *ComputedProperty {
	cp := &ComputedProperty{getter: getter}
	return cp.Property(dependentKeys...)
}

// Property replaces the dependent keys.
func (cp *ComputedProperty) Property(dependentKeys ...string) *ComputedProperty {
	var keys []string
	var errs []error
	for _, pattern := range dependentKeys {
		expanded, err := ExpandProperties(pattern)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		keys = append(keys, expanded...)
	}
	cp.dependentKeys = keys
	cp.err = errors.Join(errs...)
	return cp
}

// Volatile disables caching; every read calls the getter.
func (cp *ComputedProperty) Volatile() *ComputedProperty {
	cp.volatile = true
	return cp
}

func (cp *ComputedProperty) ReadOnly() *ComputedProperty {
	cp.readOnly = true
	return cp
}

func (cp *ComputedProperty) WithSetter(setter Setter) *ComputedProperty {
	cp.setter = setter
	return cp
}

// Meta attaches arbitrary metadata to the property.
func (cp *ComputedProperty) Meta(meta map[string]any) *ComputedProperty {
	cp.meta = meta
	return cp
}

func (cp *ComputedProperty) MetaValue() map[string]any { return cp.meta }

func (cp *ComputedProperty) DependentKeys() []string {
	return append([]string(nil), cp.dependentKeys...)
}

func (cp *ComputedProperty) cacheable() bool { return !cp.volatile }

func (cp *ComputedProperty) get(obj *Object, key string) any {
	if cp.volatile || obj.destroyed {
		return cp.getter(obj, key)
	}
	m := MetaFor(obj)
	if v, ok := m.cached(key); ok {
		return v
	}
	v := cp.getter(obj, key)
	m.writeCache(key, v)
	if m.chainWatchers != nil {
		m.chainWatchers.revalidate(key)
	}
	addDependentKeys(cp.dependentKeys, obj, key, m)
	return v
}

func (cp *ComputedProperty) set(obj *Object, key string, value any) (any, error) {
	if cp.readOnly {
		return nil, fmt.Errorf("%w: %q on %s", ErrReadOnly, key, Inspect(obj))
	}
	if cp.setter == nil {
		return cp.clobberSet(obj, key, value)
	}
	if cp.volatile {
		return cp.setter(obj, key, value, nil)
	}
	prev := cp.suspended
	cp.suspended = obj
	defer func() { cp.suspended = prev }()
	return cp.setAndCache(obj, key, value)
}

// clobberSet replaces a setter-less computed property with a plain value.
func (cp *ComputedProperty) clobberSet(obj *Object, key string, value any) (any, error) {
	cached, _ := CacheFor(obj, key)
	if err := DefineProperty(obj, key, nil, cached); err != nil {
		return nil, err
	}
	return Set(obj, key, value)
}

func (cp *ComputedProperty) setAndCache(obj *Object, key string, value any) (any, error) {
	m := MetaFor(obj)
	cached, found := m.cached(key)
	ret, err := cp.setter(obj, key, value, cached)
	if err != nil {
		return nil, err
	}
	if found && identical(ret, cached) {
		return ret, nil
	}
	willErr := PropertyWillChange(obj, key)
	if !found {
		addDependentKeys(cp.dependentKeys, obj, key, m)
	}
	m.writeCache(key, ret)
	didErr := PropertyDidChange(obj, key)
	return ret, errors.Join(willErr, didErr)
}

func (cp *ComputedProperty) setup(obj *Object, key string) {
	if cp.volatile {
		return
	}
	if m := PeekMeta(obj); m != nil && m.peekWatching(key) > 0 {
		addDependentKeys(cp.dependentKeys, obj, key, MetaFor(obj))
	}
}

func (cp *ComputedProperty) teardown(obj *Object, key string) {
	if cp.volatile {
		return
	}
	m := MetaFor(obj)
	if m.evict(key) {
		removeDependentKeys(cp.dependentKeys, obj, key, m)
	}
	if m.peekWatching(key) > 0 {
		removeDependentKeys(cp.dependentKeys, obj, key, m)
	}
}

func (cp *ComputedProperty) didChange(obj *Object, key string) {
	if cp.volatile || cp.suspended == obj {
		return
	}
	m := obj.meta
	if m == nil {
		return
	}
	if m.evict(key) {
		removeDependentKeys(cp.dependentKeys, obj, key, m)
	}
}

func (cp *ComputedProperty) willWatch(obj *Object, key string) {
	if cp.volatile {
		return
	}
	addDependentKeys(cp.dependentKeys, obj, key, MetaFor(obj))
}

func (cp *ComputedProperty) didUnwatch(obj *Object, key string) {
	if cp.volatile {
		return
	}
	removeDependentKeys(cp.dependentKeys, obj, key, MetaFor(obj))
}

// CacheFor returns the cached value of a computed property without
// computing it.
func CacheFor(obj *Object, key string) (any, bool) {
	if obj == nil || obj.meta == nil {
		return nil, false
	}
	return obj.meta.cached(key)
}

func addDependentKeys(depKeys []string, obj *Object, key string, m *Meta) {
	for _, depKey := range depKeys {
		m.writeDeps(depKey, key, m.peekDeps(depKey, key)+1)
		Watch(obj, depKey)
	}
}

func removeDependentKeys(depKeys []string, obj *Object, key string, m *Meta) {
	for _, depKey := range depKeys {
		n := m.peekDeps(depKey, key) - 1
		if n < 0 {
			obj.sys.invariant("dependent key %q of %q released more than added", depKey, key)
			n = 0
		}
		m.writeDeps(depKey, key, n)
		Unwatch(obj, depKey)
	}
}
