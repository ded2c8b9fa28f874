package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/rnvm/values"
)

func TestHashNameIsDeterministicAndDistinct(t *testing.T) {
	a := HashName("math/add")
	b := HashName("math/add")
	c := HashName("math/sub")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestInstanceHashCombinesTypeAndMethodatDeterministically(t *testing.T) {
	typeHash := HashName("mymodule::Vec2")
	method := HashName("length")
	ih1 := InstanceHash(typeHash, method)
	ih2 := InstanceHash(typeHash, method)
	assert.Equal(t, ih1, ih2)

	other := InstanceHash(HashName("mymodule::Vec3"), method)
	assert.NotEqual(t, ih1, other)
}

func TestProtocolHashIsCachedAndStable(t *testing.T) {
	h1 := ProtocolAdd.Hash()
	h2 := ProtocolAdd.Hash()
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, ProtocolSub.Hash())
}

func TestContextRegisterAndLookupFunction(t *testing.T) {
	ctx := NewContext()
	called := false
	ctx.RegisterFunction("math/double", 1, func(stack interface{}, argc int) error {
		called = true
		return nil
	})

	entry, ok := ctx.LookupFunction(HashName("math/double"))
	require.True(t, ok)
	assert.Equal(t, 1, entry.Arity)

	require.NoError(t, entry.Handler(nil, 1))
	assert.True(t, called)

	_, ok = ctx.LookupFunction(HashName("math/triple"))
	assert.False(t, ok)
}

func TestContextRegisterInstanceFunctionAndProtocol(t *testing.T) {
	ctx := NewContext()
	typeHash := HashName("mymodule::Vec2")

	ctx.RegisterInstanceFunction(typeHash, "length", 0, func(stack interface{}, argc int) error { return nil })
	_, ok := ctx.LookupInstanceFunction(InstanceHash(typeHash, HashName("length")))
	assert.True(t, ok)

	ctx.RegisterProtocol(typeHash, ProtocolAdd, 1, func(stack interface{}, argc int) error { return nil })
	entry, ok := ctx.LookupProtocol(typeHash, ProtocolAdd)
	require.True(t, ok)
	assert.Equal(t, string(ProtocolAdd), entry.Name)

	_, ok = ctx.LookupProtocol(typeHash, ProtocolSub)
	assert.False(t, ok)
}

func TestContextRegisterType(t *testing.T) {
	ctx := NewContext()
	rtti := &values.RTTI{TypeHash: HashName("mymodule::Vec2"), Name: "Vec2", Shape: values.ShapeStruct, FieldKeys: []string{"x", "y"}}
	ctx.RegisterType(rtti)

	got, ok := ctx.LookupType(rtti.TypeHash)
	require.True(t, ok)
	assert.Equal(t, "Vec2", got.Name)
}

func TestContextSealPreventsFurtherRegistration(t *testing.T) {
	ctx := NewContext()
	ctx.Seal()
	assert.Panics(t, func() {
		ctx.RegisterFunction("math/double", 1, func(stack interface{}, argc int) error { return nil })
	})
}

type fakeExtension struct {
	name string
	fn   func(ctx *Context) error
}

func (f *fakeExtension) Name() string               { return f.name }
func (f *fakeExtension) Register(ctx *Context) error { return f.fn(ctx) }

func TestInstallRunsExtensionsInOrderAndStopsOnError(t *testing.T) {
	ctx := NewContext()
	var order []string

	ok1 := &fakeExtension{name: "one", fn: func(ctx *Context) error {
		order = append(order, "one")
		return nil
	}}
	failing := &fakeExtension{name: "two", fn: func(ctx *Context) error {
		order = append(order, "two")
		return assert.AnError
	}}
	neverRuns := &fakeExtension{name: "three", fn: func(ctx *Context) error {
		order = append(order, "three")
		return nil
	}}

	err := Install(ctx, ok1, failing, neverRuns)
	require.Error(t, err)
	assert.Equal(t, []string{"one", "two"}, order)
}
