package values

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wudi/rnvm/heap"
)

func TestInlineScalarConstructors(t *testing.T) {
	assert.True(t, Unit.IsUnit())

	b := NewBool(true)
	v, ok := b.AsBool()
	assert.True(t, ok)
	assert.True(t, v)

	i := NewInteger(42)
	iv, ok := i.AsInteger()
	assert.True(t, ok)
	assert.Equal(t, int64(42), iv)

	f := NewFloat(3.5)
	fv, ok := f.AsFloat()
	assert.True(t, ok)
	assert.Equal(t, 3.5, fv)
}

func TestHandleKindRoundTrip(t *testing.T) {
	store := heap.NewStore()
	h := store.Allocate(&VecData{Items: []Value{NewInteger(1), NewInteger(2)}})
	v := NewVecHandle(h)

	assert.True(t, v.Kind.IsHandleKind())
	got, ok := v.Handle()
	assert.True(t, ok)
	assert.Equal(t, h, got)

	payload, ok := store.Payload(got)
	assert.True(t, ok)
	vec := payload.(*VecData)
	assert.Len(t, vec.Items, 2)
}

func TestObjectDataPreservesInsertionOrder(t *testing.T) {
	o := NewObjectData([]string{"a", "b"}, []Value{NewInteger(1), NewInteger(2)})
	o.Set("c", NewInteger(3))

	assert.Len(t, o.Entries, 3)
	assert.Equal(t, "a", o.Entries[0].Key)
	assert.Equal(t, "c", o.Entries[2].Key)

	val, ok := o.Get("b")
	assert.True(t, ok)
	iv, _ := val.AsInteger()
	assert.Equal(t, int64(2), iv)
}

func TestNonHandleKindRejectsHandle(t *testing.T) {
	v := NewInteger(7)
	_, ok := v.Handle()
	assert.False(t, ok)
}
