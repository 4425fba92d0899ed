package metal

import (
	"fmt"
	"strings"
)

// Descriptor is a property that computes its own reads and writes.
// ComputedProperty and AliasedProperty are the implementations.
type Descriptor interface {
	get(obj *Object, key string) any
	set(obj *Object, key string, value any) (any, error)

	// setup runs after the descriptor is installed, teardown before it is
	// replaced.
	setup(obj *Object, key string)
	teardown(obj *Object, key string)

	didChange(obj *Object, key string)
	willWatch(obj *Object, key string)
	didUnwatch(obj *Object, key string)

	// cacheable descriptors are read from the cache by chains instead of
	// being recomputed.
	cacheable() bool
}

// DefineProperty installs desc on obj under key, or the plain value when
// desc is nil. Any previous descriptor is torn down first so its dependent
// keys stop being watched. When key is watched, chains that pass through it
// are revalidated against the new definition.
func DefineProperty(obj *Object, key string, desc Descriptor, value any) error {
	if obj == nil {
		return fmt.Errorf("%w: cannot define %q on nil object", ErrInvalidDescriptor, key)
	}
	if obj.destroyed {
		return fmt.Errorf("%w: cannot define %q on destroyed %s", ErrInvalidDescriptor, key, Inspect(obj))
	}
	if key == "" || strings.IndexByte(key, '.') >= 0 {
		return fmt.Errorf("%w: %q is not a valid key", ErrInvalidDescriptor, key)
	}
	if err := validateDescriptor(key, desc); err != nil {
		return err
	}
	if desc == nil {
		if _, ok := value.(Descriptor); ok {
			return fmt.Errorf("%w: %q passed as a value", ErrInvalidDescriptor, key)
		}
	}

	m := MetaFor(obj)
	watching := m.peekWatching(key) > 0

	if existing := obj.descriptor(key); existing != nil {
		existing.teardown(obj, key)
	}

	if desc != nil {
		obj.props[key] = desc
		desc.setup(obj, key)
	} else {
		obj.props[key] = value
	}

	if watching {
		OverrideChains(obj, key)
	}
	return nil
}

func validateDescriptor(key string, desc Descriptor) error {
	switch d := desc.(type) {
	case nil:
		return nil
	case *ComputedProperty:
		if d == nil {
			return fmt.Errorf("%w: nil computed property for %q", ErrInvalidDescriptor, key)
		}
		if d.err != nil {
			return fmt.Errorf("%w: %q: %w", ErrInvalidDescriptor, key, d.err)
		}
		for _, dep := range d.dependentKeys {
			if dep == key || strings.HasPrefix(dep, key+".") {
				return fmt.Errorf("%w: computed %q depends on itself", ErrInvalidDescriptor, key)
			}
		}
	case *AliasedProperty:
		if d == nil {
			return fmt.Errorf("%w: nil alias for %q", ErrInvalidDescriptor, key)
		}
		if d.altKey == key || strings.HasPrefix(d.altKey, key+".") {
			return fmt.Errorf("%w: alias %q points at itself", ErrInvalidDescriptor, key)
		}
	}
	return nil
}
