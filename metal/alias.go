package metal

import "fmt"

// AliasedProperty reads and writes another key or path of the same object.
type AliasedProperty struct {
	altKey   string
	readOnly bool
	oneWay   bool
}

// Alias makes key a view of altKey. While the alias is watched, changes to
// altKey notify observers of the alias.
func Alias(altKey string) *AliasedProperty {
	return &AliasedProperty{altKey: altKey}
}

func (a *AliasedProperty) ReadOnly() *AliasedProperty {
	a.readOnly = true
	return a
}

// OneWay makes a set replace the alias with a plain value instead of
// writing through to the aliased key.
func (a *AliasedProperty) OneWay() *AliasedProperty {
	a.oneWay = true
	return a
}

func (a *AliasedProperty) AltKey() string { return a.altKey }

func (a *AliasedProperty) cacheable() bool { return false }

func (a *AliasedProperty) get(obj *Object, _ string) any {
	return Get(obj, a.altKey)
}

func (a *AliasedProperty) set(obj *Object, key string, value any) (any, error) {
	switch {
	case a.readOnly:
		return nil, fmt.Errorf("%w: alias %q on %s", ErrReadOnly, key, Inspect(obj))
	case a.oneWay:
		if err := DefineProperty(obj, key, nil, nil); err != nil {
			return nil, err
		}
		return Set(obj, key, value)
	}
	return Set(obj, a.altKey, value)
}

func (a *AliasedProperty) setup(obj *Object, key string) {
	if m := PeekMeta(obj); m != nil && m.peekWatching(key) > 0 {
		addDependentKeys([]string{a.altKey}, obj, key, MetaFor(obj))
	}
}

func (a *AliasedProperty) teardown(obj *Object, key string) {
	if m := PeekMeta(obj); m != nil && m.peekWatching(key) > 0 {
		removeDependentKeys([]string{a.altKey}, obj, key, MetaFor(obj))
	}
}

func (a *AliasedProperty) didChange(*Object, string) {}

func (a *AliasedProperty) willWatch(obj *Object, key string) {
	addDependentKeys([]string{a.altKey}, obj, key, MetaFor(obj))
}

func (a *AliasedProperty) didUnwatch(obj *Object, key string) {
	removeDependentKeys([]string{a.altKey}, obj, key, MetaFor(obj))
}
