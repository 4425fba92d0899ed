package metal_test

import (
	"testing"

	"github.com/delaneyj/metalkv/metal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathHelpers(t *testing.T) {
	for _, tc := range []struct {
		path       string
		isPath     bool
		global     bool
		globalPath bool
		first      string
		tail       string
	}{
		{"a", false, false, false, "a", ""},
		{"a.b", true, false, false, "a", "b"},
		{"a.b.c", true, false, false, "a", "b.c"},
		{"App", false, true, false, "App", ""},
		{"App.settings.theme", true, true, true, "App", "settings.theme"},
		{"$el.x", true, true, true, "$el", "x"},
		{"", false, false, false, "", ""},
	} {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.isPath, metal.IsPath(tc.path))
			assert.Equal(t, tc.global, metal.IsGlobal(tc.path))
			assert.Equal(t, tc.globalPath, metal.IsGlobalPath(tc.path))
			assert.Equal(t, tc.first, metal.FirstKey(tc.path))
			assert.Equal(t, tc.tail, metal.TailPath(tc.path))
		})
	}
}

func TestPathCacheLimit(t *testing.T) {
	sys := metal.NewSystem(metal.WithPathCacheSize(1))
	obj := sys.NewObject(nil, metal.Props{
		"a": sys.NewObject(nil, metal.Props{"b": 1}),
		"c": sys.NewObject(nil, metal.Props{"d": 2}),
	})
	// paths beyond the cache limit still resolve
	for range 3 {
		assert.Equal(t, 1, metal.Get(obj, "a.b"))
		assert.Equal(t, 2, metal.Get(obj, "c.d"))
	}
}

func TestExpandProperties(t *testing.T) {
	for _, tc := range []struct {
		pattern string
		want    []string
	}{
		{"a", []string{"a"}},
		{"a.b.c", []string{"a.b.c"}},
		{"a.{b,c}", []string{"a.b", "a.c"}},
		{"{a,b}.c", []string{"a.c", "b.c"}},
		{"{a,b}.{c,d}", []string{"a.c", "a.d", "b.c", "b.d"}},
		{"user.{first,last}Name", []string{"user.firstName", "user.lastName"}},
		{"a.{b}", []string{"a.b"}},
	} {
		t.Run(tc.pattern, func(t *testing.T) {
			got, err := metal.ExpandProperties(tc.pattern)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExpandPropertiesRejects(t *testing.T) {
	for _, pattern := range []string{
		"a b",
		"a.{b,c",
		"a.b,c}",
		"a.}b{",
		"a.{b,{c,d}}",
	} {
		t.Run(pattern, func(t *testing.T) {
			_, err := metal.ExpandProperties(pattern)
			assert.ErrorIs(t, err, metal.ErrInvalidDescriptor)
		})
	}
}

func TestGuidForAndInspect(t *testing.T) {
	sys := newSystem(t)
	proto := sys.NewPrototype(nil, nil)
	obj := sys.NewObject(proto, metal.Props{"b": 2, "a": "x"})

	assert.Equal(t, metal.GuidFor(obj), metal.GuidFor(obj))
	assert.NotEqual(t, metal.GuidFor(obj), metal.GuidFor(proto))
	assert.Equal(t, metal.GuidFor("same"), metal.GuidFor("same"))
	assert.NotEqual(t, metal.GuidFor("same"), metal.GuidFor("other"))
	assert.Equal(t, "(true)", metal.GuidFor(true))
	assert.Equal(t, "nu12", metal.GuidFor(12))
	assert.Equal(t, "(nil)", metal.GuidFor(nil))

	assert.Equal(t, "<Object:"+metal.GuidFor(obj)+" {a: x, b: 2}>", metal.Inspect(obj))
	assert.Equal(t, "<Object:"+metal.GuidFor(proto)+" prototype>", proto.String())
	assert.Equal(t, "<nil>", metal.Inspect(nil))
}
