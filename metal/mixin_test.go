package metal_test

import (
	"fmt"
	"testing"

	"github.com/delaneyj/metalkv/metal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func personMixin(changes *[]string) *metal.Mixin {
	return metal.NewMixin("person", metal.Props{
		"first": "Ada",
		"last":  "Lovelace",
		"full": metal.Computed(func(obj *metal.Object, _ string) any {
			return fmt.Sprintf("%v %v", metal.Get(obj, "first"), metal.Get(obj, "last"))
		}, "{first,last}"),
		"fullChanged": metal.Observer(func(_ any, obj *metal.Object, key string) error {
			*changes = append(*changes, fmt.Sprintf("%s=%v", key, metal.Get(obj, key)))
			return nil
		}, "full"),
	})
}

func TestMixinApply(t *testing.T) {
	sys := newSystem(t)
	var changes []string
	mx := personMixin(&changes)
	obj := sys.NewObject(nil, nil)

	require.NoError(t, mx.Apply(obj))
	assert.True(t, mx.Detect(obj))
	assert.Equal(t, "person", mx.Name())
	assert.Equal(t, "Ada Lovelace", metal.Get(obj, "full"))

	_, err := metal.Set(obj, "first", "Augusta")
	require.NoError(t, err)
	assert.Equal(t, []string{"full=Augusta Lovelace"}, changes)

	refs := metal.ObserversFor(obj, "full")
	require.Len(t, refs, 1)
	assert.Nil(t, refs[0].Target)
	assert.Equal(t, "fullChanged", refs[0].Method)
}

func TestMixinAppliedOnce(t *testing.T) {
	sys := newSystem(t)
	var changes []string
	mx := personMixin(&changes)
	proto := sys.NewPrototype(nil, nil)
	require.NoError(t, metal.ApplyMixins(proto, mx, mx))
	assert.Len(t, metal.ObserversFor(proto, "full"), 1)

	obj := sys.NewObject(proto, nil)
	assert.True(t, mx.Detect(obj))
	require.NoError(t, mx.Apply(obj))
	assert.Len(t, metal.ObserversFor(obj, "full"), 1)

	_, err := metal.Set(obj, "last", "King")
	require.NoError(t, err)
	assert.Equal(t, []string{"full=Ada King"}, changes)

	other := sys.NewObject(nil, nil)
	assert.False(t, mx.Detect(other))
}

func TestMixinBeforeObserver(t *testing.T) {
	sys := newSystem(t)
	var before []any
	mx := metal.NewMixin("counter", metal.Props{
		"count": 0,
		"countWillChange": metal.BeforeObserver(func(_ any, obj *metal.Object, key string) error {
			before = append(before, metal.Get(obj, key))
			return nil
		}, "count"),
	})
	obj := sys.NewObject(nil, nil)
	require.NoError(t, mx.Apply(obj))

	_, err := metal.Set(obj, "count", 1)
	require.NoError(t, err)
	assert.Equal(t, []any{0}, before)
	assert.Len(t, metal.BeforeObserversFor(obj, "count"), 1)
}

func TestMixinErrors(t *testing.T) {
	sys := newSystem(t)
	bad := metal.NewMixin("bad", metal.Props{
		"loop": metal.Computed(func(*metal.Object, string) any { return nil }, "loop"),
		"ok":   1,
	})
	obj := sys.NewObject(nil, nil)
	err := bad.Apply(obj)
	assert.ErrorIs(t, err, metal.ErrInvalidDescriptor)
	assert.Contains(t, err.Error(), `mixin "bad"`)
	// the rest of the mixin still applied
	assert.Equal(t, 1, metal.Get(obj, "ok"))

	assert.ErrorIs(t, bad.Apply(nil), metal.ErrInvalidDescriptor)
}
