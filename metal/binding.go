package metal

import (
	"errors"
	"fmt"

	"github.com/delaneyj/metalkv/runloop"
)

type bindingDirection uint8

const (
	dirNone bindingDirection = iota
	dirForward
	dirBack
)

// Binding keeps the value at path "to" in sync with path "from" on the
// same object. Changes are copied on the run loop's sync queue; a forward
// change wins over a backward one scheduled in the same loop.
type Binding struct {
	to, from  string
	oneWay    bool
	direction bindingDirection
	obj       *Object
}

func NewBinding(to, from string) *Binding {
	return &Binding{to: to, from: from}
}

// OneWay stops changes at "to" from flowing back to "from".
func (b *Binding) OneWay() *Binding {
	b.oneWay = true
	return b
}

func (b *Binding) String() string {
	arrow := "<->"
	if b.oneWay {
		arrow = "<-"
	}
	return fmt.Sprintf("<Binding %s %s %s>", b.to, arrow, b.from)
}

// Connect copies from into to immediately and starts observing both paths.
func (b *Binding) Connect(obj *Object) error {
	if obj == nil {
		return fmt.Errorf("%w: cannot connect %s to nil object", ErrUndefinedProperty, b)
	}
	if b.obj != nil {
		return fmt.Errorf("%w: %s is already connected", ErrInvalidDescriptor, b)
	}
	b.obj = obj
	_, err := TrySet(obj, b.to, Get(obj, b.from))
	errs := []error{err}
	errs = append(errs, AddObserver(obj, b.from, b, "fromDidChange", func(any, *Object, string) error {
		return b.scheduleSync(dirForward)
	}))
	if !b.oneWay {
		errs = append(errs, AddObserver(obj, b.to, b, "toDidChange", func(any, *Object, string) error {
			return b.scheduleSync(dirBack)
		}))
	}
	return errors.Join(errs...)
}

func (b *Binding) Disconnect() error {
	if b.obj == nil {
		return nil
	}
	obj := b.obj
	errs := []error{RemoveObserver(obj, b.from, b, "fromDidChange")}
	if !b.oneWay {
		errs = append(errs, RemoveObserver(obj, b.to, b, "toDidChange"))
	}
	b.obj = nil
	b.direction = dirNone
	return errors.Join(errs...)
}

func (b *Binding) scheduleSync(dir bindingDirection) error {
	existing := b.direction
	if existing == dirBack && dir == dirForward {
		b.direction = dirForward
	}
	if existing != dirNone {
		return nil
	}
	b.direction = dir
	return b.obj.sys.schedule(runloop.Sync, b, b.sync)
}

func (b *Binding) sync() error {
	obj := b.obj
	dir := b.direction
	b.direction = dirNone
	if obj == nil || obj.destroying || obj.destroyed {
		return nil
	}
	switch dir {
	case dirForward:
		value := Get(obj, b.from)
		if b.oneWay {
			_, err := TrySet(obj, b.to, value)
			return err
		}
		return SuspendObserver(obj, b.to, b, "toDidChange", func() error {
			_, err := TrySet(obj, b.to, value)
			return err
		})
	case dirBack:
		value := Get(obj, b.to)
		return SuspendObserver(obj, b.from, b, "fromDidChange", func() error {
			_, err := TrySet(obj, b.from, value)
			return err
		})
	}
	return nil
}

// Bind connects a two-way binding between two paths of obj.
func Bind(obj *Object, to, from string) (*Binding, error) {
	b := NewBinding(to, from)
	if err := b.Connect(obj); err != nil {
		return nil, err
	}
	return b, nil
}
