package metal

import (
	"errors"
	"fmt"
)

// ObserverDef is an observer declared inside a Mixin. It is registered
// under the mixin key it is stored at, with the object itself as target.
type ObserverDef struct {
	paths  []string
	fn     ObserverFunc
	before bool
}

func Observer(fn ObserverFunc, paths ...string) *ObserverDef {
	return &ObserverDef{paths: paths, fn: fn}
}

func BeforeObserver(fn ObserverFunc, paths ...string) *ObserverDef {
	return &ObserverDef{paths: paths, fn: fn, before: true}
}

func (d *ObserverDef) Paths() []string { return append([]string(nil), d.paths...) }

// Mixin is a named bundle of values, computed properties and observers.
// A mixin is applied to a given object at most once, including through the
// object's prototypes.
type Mixin struct {
	name  string
	props Props
}

func NewMixin(name string, props Props) *Mixin {
	return &Mixin{name: name, props: props}
}

func (mx *Mixin) Name() string { return mx.name }

// Detect reports whether mx was applied to obj or one of its prototypes.
func (mx *Mixin) Detect(obj *Object) bool {
	m := PeekMeta(obj)
	return m != nil && m.peekMixin(mx.name)
}

// Apply installs the mixin's properties on obj in key order and finishes
// obj's chains.
func (mx *Mixin) Apply(obj *Object) error {
	if obj == nil {
		return fmt.Errorf("%w: cannot apply mixin %q to nil object", ErrInvalidDescriptor, mx.name)
	}
	m := MetaFor(obj)
	if m.peekMixin(mx.name) {
		return nil
	}
	m.writeMixin(mx.name)

	var errs []error
	for _, key := range sortedKeys(mx.props) {
		switch v := mx.props[key].(type) {
		case *ObserverDef:
			for _, path := range v.paths {
				var err error
				if v.before {
					err = AddBeforeObserver(obj, path, nil, key, v.fn)
				} else {
					err = AddObserver(obj, path, nil, key, v.fn)
				}
				if err != nil {
					errs = append(errs, fmt.Errorf("mixin %q observer %q: %w", mx.name, key, err))
				}
			}
		case Descriptor:
			if err := DefineProperty(obj, key, v, nil); err != nil {
				errs = append(errs, fmt.Errorf("mixin %q: %w", mx.name, err))
			}
		default:
			if err := DefineProperty(obj, key, nil, v); err != nil {
				errs = append(errs, fmt.Errorf("mixin %q: %w", mx.name, err))
			}
		}
	}
	FinishChains(obj)
	return errors.Join(errs...)
}

// ApplyMixins applies each mixin in order.
func ApplyMixins(obj *Object, mixins ...*Mixin) error {
	var errs []error
	for _, mx := range mixins {
		if err := mx.Apply(obj); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
