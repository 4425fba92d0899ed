package metal_test

import (
	"errors"
	"testing"

	"github.com/delaneyj/metalkv/metal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	sys := newSystem(t)
	inner := sys.NewObject(nil, metal.Props{"name": "inner"})
	obj := sys.NewObject(nil, metal.Props{
		"inner": inner,
		"nilv":  nil,
		"num":   42,
		"m":     map[string]any{"deep": metal.Props{"x": 1}},
	})

	for _, tc := range []struct {
		path string
		want any
	}{
		{"num", 42},
		{"inner.name", "inner"},
		{"m.deep.x", 1},
		{"nilv", nil},
		{"nilv.x", nil},
		{"missing", nil},
		{"missing.deeper", nil},
		{"num.x", nil},
		{"", nil},
	} {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.want, metal.Get(obj, tc.path))
		})
	}
	assert.Nil(t, metal.Get(nil, "num"))
	assert.Equal(t, 42, obj.Get("num"))
}

func TestGetInheritsFromPrototype(t *testing.T) {
	sys := newSystem(t)
	proto := sys.NewPrototype(nil, metal.Props{"kind": "base", "shared": 1})
	child := sys.NewObject(proto, metal.Props{"kind": "child"})

	assert.Equal(t, "child", metal.Get(child, "kind"))
	assert.Equal(t, 1, metal.Get(child, "shared"))
	assert.True(t, child.HasOwn("kind"))
	assert.False(t, child.HasOwn("shared"))
	assert.Equal(t, []string{"kind"}, child.Keys())
	assert.Same(t, proto, child.Proto())
	assert.True(t, proto.IsPrototype())
}

func TestGetWithDefaultAndProperties(t *testing.T) {
	sys := newSystem(t)
	obj := sys.NewObject(nil, metal.Props{"a": 1, "b": 2})
	assert.Equal(t, 1, metal.GetWithDefault(obj, "a", 9))
	assert.Equal(t, 9, metal.GetWithDefault(obj, "z", 9))
	assert.Equal(t, metal.Props{"a": 1, "z": nil}, metal.GetProperties(obj, "a", "z"))
}

func TestUnknownProperty(t *testing.T) {
	sys := newSystem(t)
	proto := sys.NewPrototype(nil, nil)
	var stored []string
	proto.UnknownProperty = func(_ *metal.Object, key string) any {
		return "unknown:" + key
	}
	proto.SetUnknownProperty = func(_ *metal.Object, key string, _ any) error {
		stored = append(stored, key)
		return nil
	}
	obj := sys.NewObject(proto, metal.Props{"known": 1})

	assert.Equal(t, 1, metal.Get(obj, "known"))
	assert.Equal(t, "unknown:ghost", metal.Get(obj, "ghost"))

	v, err := metal.Set(obj, "ghost", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, v)
	assert.Equal(t, []string{"ghost"}, stored)
	assert.False(t, obj.HasOwn("ghost"))

	_, err = metal.Set(obj, "known", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, metal.Get(obj, "known"))
	assert.Equal(t, []string{"ghost"}, stored)
}

func TestSetErrors(t *testing.T) {
	sys := newSystem(t)
	obj := sys.NewObject(nil, metal.Props{"inner": nil})

	_, err := metal.Set(nil, "a", 1)
	assert.ErrorIs(t, err, metal.ErrUndefinedProperty)

	_, err = metal.Set(obj, "", 1)
	assert.ErrorIs(t, err, metal.ErrUndefinedProperty)

	_, err = metal.Set(obj, "inner.x", 1)
	assert.ErrorIs(t, err, metal.ErrUndefinedProperty)
	assert.Contains(t, err.Error(), `"inner"`)

	_, err = metal.Set(obj, "inner.", 1)
	assert.ErrorIs(t, err, metal.ErrUndefinedProperty)

	v, err := metal.TrySet(obj, "inner.x", 1)
	assert.NoError(t, err)
	assert.Nil(t, v)
}

func TestTrySetReturnsObserverErrors(t *testing.T) {
	sys := metal.NewSystem()
	obj := sys.NewObject(nil, metal.Props{"x": 0})
	require.NoError(t, metal.AddObserver(obj, "x", nil, "forward", func(_ any, o *metal.Object, _ string) error {
		_, err := metal.Set(o, "missing.y", 1)
		return err
	}))

	v, err := metal.TrySet(obj, "x", 5)
	assert.ErrorIs(t, err, metal.ErrUndefinedProperty)
	var lerr *metal.ListenerInvocationError
	assert.ErrorAs(t, err, &lerr)
	assert.Equal(t, 5, v)
	assert.Equal(t, 5, metal.Get(obj, "x"))

	destroyed := sys.NewObject(nil, nil)
	require.NoError(t, destroyed.Destroy())
	v, err = metal.TrySet(destroyed, "x", 1)
	assert.NoError(t, err)
	assert.Nil(t, v)
}

func TestSetThis(t *testing.T) {
	sys := newSystem(t)
	obj := sys.NewObject(nil, nil)
	_, err := metal.Set(obj, "this.x", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, metal.Get(obj, "x"))
}

func TestSetSkipsIdenticalValues(t *testing.T) {
	sys := newSystem(t)
	list := []int{1, 2}
	m := map[string]any{"k": 1}
	obj := sys.NewObject(nil, metal.Props{"n": 1, "list": list, "m": m})
	n := observePath(t, obj, "n")
	l := observePath(t, obj, "list")
	mm := observePath(t, obj, "m")

	_, err := metal.Set(obj, "n", 1)
	require.NoError(t, err)
	_, err = metal.Set(obj, "list", list)
	require.NoError(t, err)
	_, err = metal.Set(obj, "m", m)
	require.NoError(t, err)
	assert.Empty(t, *n)
	assert.Empty(t, *l)
	assert.Empty(t, *mm)

	// equal contents in new storage is a change
	_, err = metal.Set(obj, "list", []int{1, 2})
	require.NoError(t, err)
	assert.Len(t, *l, 1)
}

func TestSetOnWatchedNewKey(t *testing.T) {
	sys := newSystem(t)
	obj := sys.NewObject(nil, nil)
	seen := observePath(t, obj, "fresh")

	_, err := metal.Set(obj, "fresh", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{nil}, *seen)
}

func TestSetListenerErrorStillStores(t *testing.T) {
	sys := metal.NewSystem()
	obj := sys.NewObject(nil, metal.Props{"v": 0})
	boom := errors.New("boom")
	require.NoError(t, metal.AddObserver(obj, "v", nil, "fails", func(any, *metal.Object, string) error {
		return boom
	}))

	v, err := obj.Set("v", 1)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, metal.Get(obj, "v"))
}
