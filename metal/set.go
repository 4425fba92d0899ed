package metal

import (
	"errors"
	"fmt"
	"strings"
)

// Set writes value to a key or dotted path and returns the value that was
// stored. Watched keys announce the change only when the value differs.
func Set(obj *Object, path string, value any) (any, error) {
	target, key, err := resolveSetTarget(obj, path)
	if err != nil {
		return nil, err
	}
	return setKey(target, key, value)
}

// TrySet is Set that ignores targets which cannot be resolved: a nil or
// destroyed object, an empty key, or a path whose parent is missing. Errors
// raised once the value is stored, such as failing observers, are returned.
func TrySet(obj *Object, path string, value any) (any, error) {
	target, key, err := resolveSetTarget(obj, path)
	if err != nil {
		return nil, nil
	}
	return setKey(target, key, value)
}

// resolveSetTarget finds the object and key a Set on path writes to.
func resolveSetTarget(obj *Object, path string) (*Object, string, error) {
	if obj == nil {
		return nil, "", fmt.Errorf("%w: cannot set %q on nil object", ErrUndefinedProperty, path)
	}
	target, key := obj, path
	if obj.sys.path(path).isPath() {
		i := strings.LastIndexByte(path, '.')
		key = path[i+1:]
		parentPath := path[:i]
		if key == "" {
			return nil, "", fmt.Errorf("%w: property set failed, empty key in path %q", ErrUndefinedProperty, path)
		}
		if parentPath != "this" {
			target, _ = Get(obj, parentPath).(*Object)
		}
		if target == nil || target.destroyed {
			return nil, "", fmt.Errorf("%w: object in path %q could not be found or was destroyed", ErrUndefinedProperty, parentPath)
		}
	}
	if key == "" {
		return nil, "", fmt.Errorf("%w: empty key", ErrUndefinedProperty)
	}
	if target.destroyed {
		return nil, "", fmt.Errorf("%w: cannot set %q on %s", ErrDestroyed, key, Inspect(target))
	}
	return target, key, nil
}

func setKey(obj *Object, key string, value any) (any, error) {
	if _, ok := value.(Descriptor); ok {
		return nil, fmt.Errorf("%w: use DefineProperty to install %q", ErrInvalidDescriptor, key)
	}

	current, has := obj.lookup(key)
	if d, ok := current.(Descriptor); ok {
		return d.set(obj, key, value)
	}
	if !has {
		if unknown := obj.unknownSetter(); unknown != nil {
			if err := unknown(obj, key, value); err != nil {
				return nil, err
			}
			return value, nil
		}
	}

	m := PeekMeta(obj)
	if m == nil || m.peekWatching(key) == 0 {
		obj.props[key] = value
		return value, nil
	}
	if has && identical(current, value) {
		return value, nil
	}
	willErr := PropertyWillChange(obj, key)
	obj.props[key] = value
	didErr := PropertyDidChange(obj, key)
	return value, errors.Join(willErr, didErr)
}

// SetProperties sets every key inside a single change batch, so observers
// fire once per key after all values are in place.
func SetProperties(obj *Object, props Props) error {
	if obj == nil {
		return fmt.Errorf("%w: cannot set properties on nil object", ErrUndefinedProperty)
	}
	return obj.sys.ChangeProperties(func() error {
		var errs []error
		for _, key := range sortedKeys(props) {
			if _, err := Set(obj, key, props[key]); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
