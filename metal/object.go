package metal

import (
	"sort"

	"github.com/delaneyj/metalkv/runloop"
)

// Props is a set of initial property values. Descriptor values are
// installed with DefineProperty.
type Props map[string]any

// UnknownGetter answers reads of keys that have no value.
type UnknownGetter func(obj *Object, key string) any

// UnknownSetter answers writes to keys that do not exist yet.
type UnknownSetter func(obj *Object, key string, value any) error

// Object is an observable property bag.
type Object struct {
	sys   *System
	guid  uint64
	proto *Object
	props map[string]any

	meta        *Meta
	metaDeleted bool

	prototype  bool
	destroying bool
	destroyed  bool

	// Inherited through the prototype chain like any other key.
	UnknownProperty    UnknownGetter
	SetUnknownProperty UnknownSetter
}

func (o *Object) System() *System { return o.sys }
func (o *Object) GUID() uint64    { return o.guid }
func (o *Object) Proto() *Object  { return o.proto }

func (o *Object) IsPrototype() bool  { return o.prototype }
func (o *Object) IsDestroying() bool { return o.destroying }
func (o *Object) IsDestroyed() bool  { return o.destroyed }

func (o *Object) Get(path string) any { return Get(o, path) }

func (o *Object) Set(path string, value any) (any, error) { return Set(o, path, value) }

// Keys lists own keys in sorted order.
func (o *Object) Keys() []string {
	return sortedKeys(o.props)
}

// HasOwn reports whether key is defined on o itself.
func (o *Object) HasOwn(key string) bool {
	_, ok := o.props[key]
	return ok
}

// lookup walks the prototype chain.
func (o *Object) lookup(key string) (any, bool) {
	for cur := o; cur != nil; cur = cur.proto {
		if v, ok := cur.props[key]; ok {
			return v, true
		}
	}
	return nil, false
}

func (o *Object) descriptor(key string) Descriptor {
	v, _ := o.lookup(key)
	d, _ := v.(Descriptor)
	return d
}

func (o *Object) unknownGetter() UnknownGetter {
	for cur := o; cur != nil; cur = cur.proto {
		if cur.UnknownProperty != nil {
			return cur.UnknownProperty
		}
	}
	return nil
}

func (o *Object) unknownSetter() UnknownSetter {
	for cur := o; cur != nil; cur = cur.proto {
		if cur.SetUnknownProperty != nil {
			return cur.SetUnknownProperty
		}
	}
	return nil
}

// Destroy marks o as destroying and tears down its meta on the run loop's
// destroy queue. Pending observer flushes skip destroying objects.
func (o *Object) Destroy() error {
	if o.destroying || o.destroyed {
		return nil
	}
	o.destroying = true
	return o.sys.schedule(runloop.Destroy, o, func() error {
		if o.destroyed {
			return nil
		}
		Destroy(o)
		o.destroyed = true
		o.sys.logger.Debug("metal: destroyed", "object", Inspect(o))
		return nil
	})
}

func (o *Object) String() string { return Inspect(o) }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
