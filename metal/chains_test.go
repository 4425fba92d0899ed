package metal_test

import (
	"testing"

	"github.com/delaneyj/metalkv/metal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chainFixture struct {
	root, a, b *metal.Object
}

func newChainFixture(sys *metal.System) chainFixture {
	b := sys.NewObject(nil, metal.Props{"c": 1})
	a := sys.NewObject(nil, metal.Props{"b": b})
	root := sys.NewObject(nil, metal.Props{"a": a})
	return chainFixture{root: root, a: a, b: b}
}

func TestChainLeafChange(t *testing.T) {
	sys := newSystem(t)
	f := newChainFixture(sys)
	seen := observePath(t, f.root, "a.b.c")

	_, err := metal.Set(f.b, "c", 3)
	require.NoError(t, err)
	assert.Equal(t, []any{3}, *seen)

	// same value, no notification
	_, err = metal.Set(f.b, "c", 3)
	require.NoError(t, err)
	assert.Len(t, *seen, 1)
}

func TestChainSetThroughPath(t *testing.T) {
	sys := newSystem(t)
	f := newChainFixture(sys)
	seen := observePath(t, f.root, "a.b.c")

	_, err := metal.Set(f.root, "a.b.c", 3)
	require.NoError(t, err)
	assert.Equal(t, []any{3}, *seen)
	assert.Equal(t, 3, metal.Get(f.b, "c"))
}

func TestChainReroot(t *testing.T) {
	sys := newSystem(t)
	f := newChainFixture(sys)
	seen := observePath(t, f.root, "a.b.c")

	b2 := sys.NewObject(nil, metal.Props{"c": 2})
	_, err := metal.Set(f.a, "b", b2)
	require.NoError(t, err)
	assert.Equal(t, []any{2}, *seen)

	// the replaced object is no longer part of the chain
	assert.False(t, metal.IsWatching(f.b, "c"))
	assert.True(t, metal.IsWatching(b2, "c"))
	_, err = metal.Set(f.b, "c", 10)
	require.NoError(t, err)
	assert.Equal(t, []any{2}, *seen)

	_, err = metal.Set(b2, "c", 5)
	require.NoError(t, err)
	assert.Equal(t, []any{2, 5}, *seen)
}

func TestChainRerootAtTop(t *testing.T) {
	sys := newSystem(t)
	f := newChainFixture(sys)
	seen := observePath(t, f.root, "a.b.c")

	a2 := sys.NewObject(nil, metal.Props{
		"b": sys.NewObject(nil, metal.Props{"c": "deep"}),
	})
	_, err := metal.Set(f.root, "a", a2)
	require.NoError(t, err)
	assert.Equal(t, []any{"deep"}, *seen)
	assert.False(t, metal.IsWatching(f.a, "b"))
	assert.False(t, metal.IsWatching(f.b, "c"))
}

func TestChainNilIntermediate(t *testing.T) {
	sys := newSystem(t)
	a := sys.NewObject(nil, metal.Props{"b": nil})
	root := sys.NewObject(nil, metal.Props{"a": a})
	seen := observePath(t, root, "a.b.c")
	assert.Nil(t, metal.Get(root, "a.b.c"))

	b := sys.NewObject(nil, metal.Props{"c": "late"})
	_, err := metal.Set(a, "b", b)
	require.NoError(t, err)
	assert.Equal(t, []any{"late"}, *seen)

	// the chain attached to the new object
	_, err = metal.Set(b, "c", "later")
	require.NoError(t, err)
	assert.Equal(t, []any{"late", "later"}, *seen)

	_, err = metal.Set(a, "b", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"late", "later", nil}, *seen)
	assert.False(t, metal.IsWatching(b, "c"))
}

func TestChainUnwatchReleasesEverything(t *testing.T) {
	sys := newSystem(t)
	f := newChainFixture(sys)

	metal.Watch(f.root, "a.b.c")
	metal.Watch(f.root, "a.b.c")
	assert.Equal(t, 2, metal.WatcherCount(f.root, "a.b.c"))
	// the path is chained once however often it is watched
	assert.Equal(t, 1, metal.MetaFor(f.root).Chains().Child("a").Count())

	metal.Unwatch(f.root, "a.b.c")
	assert.True(t, metal.IsWatching(f.b, "c"))

	metal.Unwatch(f.root, "a.b.c")
	assert.False(t, metal.IsWatching(f.root, "a.b.c"))
	assert.False(t, metal.IsWatching(f.root, "a"))
	assert.False(t, metal.IsWatching(f.a, "b"))
	assert.False(t, metal.IsWatching(f.b, "c"))
	assert.Nil(t, metal.MetaFor(f.root).Chains().Child("a"))
}

func TestChainSharedPrefix(t *testing.T) {
	sys := newSystem(t)
	f := newChainFixture(sys)
	_, err := metal.Set(f.a, "d", 1)
	require.NoError(t, err)

	deep := observePath(t, f.root, "a.b.c")
	shallow := observePath(t, f.root, "a.d")

	node := metal.MetaFor(f.root).Chains().Child("a")
	require.NotNil(t, node)
	assert.Equal(t, 2, node.Count())
	assert.Equal(t, 1, node.Child("b").Count())

	_, err = metal.Set(f.a, "d", 2)
	require.NoError(t, err)
	assert.Empty(t, *deep)
	assert.Equal(t, []any{2}, *shallow)

	require.NoError(t, metal.RemoveObserver(f.root, "a.d", nil, "record"))
	assert.Equal(t, 1, node.Count())
	assert.True(t, metal.IsWatching(f.b, "c"))
}

func TestChainSameObjectTwice(t *testing.T) {
	sys := newSystem(t)
	shared := sys.NewObject(nil, metal.Props{"v": 1})
	root := sys.NewObject(nil, metal.Props{"x": shared, "y": shared})
	x := observePath(t, root, "x.v")
	y := observePath(t, root, "y.v")
	assert.Equal(t, 2, metal.WatcherCount(shared, "v"))

	_, err := metal.Set(shared, "v", 2)
	require.NoError(t, err)
	assert.Equal(t, []any{2}, *x)
	assert.Equal(t, []any{2}, *y)
}

func TestChainReadsMaps(t *testing.T) {
	sys := newSystem(t)
	root := sys.NewObject(nil, metal.Props{"m": map[string]any{"k": "v"}})
	seen := observePath(t, root, "m.k")
	assert.Equal(t, "v", metal.Get(root, "m.k"))

	_, err := metal.Set(root, "m", map[string]any{"k": "w"})
	require.NoError(t, err)
	assert.Equal(t, []any{"w"}, *seen)
}

func TestChainInheritedFromPrototype(t *testing.T) {
	sys := newSystem(t)
	var fired []*metal.Object
	proto := sys.NewPrototype(nil, nil)
	mx := metal.NewMixin("watchesAB", metal.Props{
		"abChanged": metal.Observer(func(target any, obj *metal.Object, key string) error {
			assert.Equal(t, "a.b", key)
			assert.Same(t, target, obj)
			fired = append(fired, obj)
			return nil
		}, "a.b"),
	})
	require.NoError(t, mx.Apply(proto))

	a1 := sys.NewObject(nil, metal.Props{"b": 1})
	a2 := sys.NewObject(nil, metal.Props{"b": 1})
	one := sys.NewObject(proto, metal.Props{"a": a1})
	two := sys.NewObject(proto, metal.Props{"a": a2})

	_, err := metal.Set(a1, "b", 2)
	require.NoError(t, err)
	require.Len(t, fired, 1)
	assert.Same(t, one, fired[0])

	_, err = metal.Set(a2, "b", 2)
	require.NoError(t, err)
	require.Len(t, fired, 2)
	assert.Same(t, two, fired[1])

	// the prototype's own chain never resolves past "a"
	assert.Equal(t, 1, metal.WatcherCount(a1, "b"))
	assert.NotSame(t, metal.MetaFor(one).Chains(), metal.MetaFor(proto).Chains())
}

func TestChainDestroyedRootReleasesIntermediates(t *testing.T) {
	sys := newSystem(t)
	f := newChainFixture(sys)
	observePath(t, f.root, "a.b.c")
	require.True(t, metal.IsWatching(f.b, "c"))

	require.NoError(t, f.root.Destroy())
	assert.True(t, f.root.IsDestroyed())
	assert.False(t, metal.IsWatching(f.a, "b"))
	assert.False(t, metal.IsWatching(f.b, "c"))
	assert.Nil(t, metal.PeekMeta(f.root))
}

func TestChainSkipsDestroyedIntermediate(t *testing.T) {
	sys := newSystem(t)
	f := newChainFixture(sys)
	assert.Equal(t, 1, metal.Get(f.root, "a.b.c"))

	require.NoError(t, f.b.Destroy())
	assert.Nil(t, metal.Get(f.root, "a.b.c"))
	_, err := metal.Set(f.root, "a.b.c", 2)
	assert.ErrorIs(t, err, metal.ErrUndefinedProperty)
}
