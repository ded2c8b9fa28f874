package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/rnvm/registry"
	"github.com/wudi/rnvm/stack"
	"github.com/wudi/rnvm/values"
)

func TestCallInstanceProtocolInvokesRegisteredHandler(t *testing.T) {
	ctx := registry.NewContext()
	vec2Hash := registry.HashName("builtin/integer")
	ctx.RegisterProtocol(vec2Hash, registry.ProtocolAdd, 1, func(s interface{}, argc int) error {
		st := s.(*stack.Stack)
		rhs, _ := st.Pop()
		lhs, _ := st.Pop()
		lv, _ := lhs.AsInteger()
		rv, _ := rhs.AsInteger()
		st.Push(values.NewInteger(lv + rv))
		return nil
	})

	caller := NewCaller(ctx)
	s := stack.New(4)
	s.Push(values.NewInteger(3))
	s.Push(values.NewInteger(4))

	result, err := caller.CallInstanceProtocol(s, registry.ProtocolAdd, 1)
	require.NoError(t, err)
	iv, _ := result.AsInteger()
	assert.Equal(t, int64(7), iv)
}

func TestCallInstanceProtocolUnsupportedWhenNoHandler(t *testing.T) {
	ctx := registry.NewContext()
	caller := NewCaller(ctx)
	s := stack.New(4)
	s.Push(values.NewInteger(3))
	s.Push(values.NewInteger(4))

	_, err := caller.CallInstanceProtocol(s, registry.ProtocolAdd, 1)
	require.Error(t, err)
	var unsupported *Unsupported
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, registry.ProtocolAdd, unsupported.Protocol)

	// Stack must be untouched on Unsupported.
	assert.Equal(t, 2, s.Len())
}

func TestCallFieldProtocolUsesFieldScopedHandler(t *testing.T) {
	ctx := registry.NewContext()
	typeHash := registry.HashName("mymodule::Vec2")
	fieldHash := registry.HashName("x")
	ctx.RegisterFieldProtocol(typeHash, "x", registry.ProtocolGet, 0, func(s interface{}, argc int) error {
		st := s.(*stack.Stack)
		st.Pop() // receiver
		st.Push(values.NewInteger(99))
		return nil
	})

	caller := NewCaller(ctx)
	s := stack.New(4)
	s.Push(values.NewType(typeHash))

	result, err := caller.CallFieldProtocol(s, registry.ProtocolGet, fieldHash, 0)
	require.NoError(t, err)
	iv, _ := result.AsInteger()
	assert.Equal(t, int64(99), iv)
}
