package stack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/rnvm/values"
)

func TestPushPopRoundTrip(t *testing.T) {
	s := New(4)
	s.Push(values.NewInteger(1))
	s.Push(values.NewInteger(2))

	v, ok := s.Pop()
	require.True(t, ok)
	i, _ := v.AsInteger()
	assert.Equal(t, int64(2), i)
	assert.Equal(t, 1, s.Len())
}

func TestFrameIsolation(t *testing.T) {
	s := New(4)
	s.Push(values.NewInteger(100)) // caller local, must stay hidden from callee
	s.Push(values.NewInteger(1))   // arg
	s.Push(values.NewInteger(2))   // arg

	prevBottom := s.PushFrame(42, 2)
	assert.Equal(t, 0, prevBottom)
	assert.Equal(t, 2, s.Len(), "callee must see exactly its arguments")

	_, ok := s.AtOffset(5) // would be caller's local at absolute index 0
	assert.False(t, ok, "callee must not reach below its frame bottom")

	s.Push(values.NewInteger(3)) // return value
	popped, ok := s.PopFrame()
	require.True(t, ok)
	assert.Equal(t, 42, popped.ReturnIP)
	require.True(t, popped.HasValue)
	rv, _ := popped.ReturnValue.AsInteger()
	assert.Equal(t, int64(3), rv)

	// caller's original local plus the single preserved return value
	assert.Equal(t, 2, s.Len())
	top, _ := s.Peek()
	topI, _ := top.AsInteger()
	assert.Equal(t, int64(3), topI)
}

func TestAtOffsetFromTopLocatesReceiver(t *testing.T) {
	s := New(4)
	s.Push(values.NewInteger(9))  // receiver
	s.Push(values.NewInteger(1))  // arg0
	s.Push(values.NewInteger(2))  // arg1

	recv, ok := s.AtOffsetFromTop(2)
	require.True(t, ok)
	v, _ := recv.AsInteger()
	assert.Equal(t, int64(9), v)
}

func TestDrainReturnsOldestFirst(t *testing.T) {
	s := New(4)
	s.Push(values.NewInteger(1))
	s.Push(values.NewInteger(2))
	s.Push(values.NewInteger(3))

	drained, ok := s.Drain(2)
	require.True(t, ok)
	a, _ := drained[0].AsInteger()
	b, _ := drained[1].AsInteger()
	assert.Equal(t, int64(2), a)
	assert.Equal(t, int64(3), b)
	assert.Equal(t, 1, s.Len())
}
