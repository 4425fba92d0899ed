package metal_test

import (
	"testing"

	"github.com/delaneyj/metalkv/metal"
	"github.com/stretchr/testify/assert"
)

func newSystem(t *testing.T) *metal.System {
	t.Helper()
	return metal.NewSystem(
		metal.WithDebug(true),
		metal.WithOnError(func(err error) error {
			assert.FailNow(t, err.Error())
			return err
		}),
	)
}

// observePath records the value at path every time its observer fires.
func observePath(t *testing.T, obj *metal.Object, path string) *[]any {
	t.Helper()
	seen := &[]any{}
	err := metal.AddObserver(obj, path, nil, "record", func(_ any, o *metal.Object, key string) error {
		*seen = append(*seen, metal.Get(o, key))
		return nil
	})
	assert.NoError(t, err)
	return seen
}
