package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/rnvm/heap"
	"github.com/wudi/rnvm/opcodes"
	"github.com/wudi/rnvm/registry"
	"github.com/wudi/rnvm/stack"
	"github.com/wudi/rnvm/unit"
	"github.com/wudi/rnvm/values"
)

// counterState is the host-side object a Counter Any value wraps: an
// internal i64 native methods mutate directly (spec §8 scenario 3).
type counterState struct {
	n int64
}

// TestInstanceMethodDispatchOnExternalType exercises spec §8 scenario 3
// end to end: a host type "Counter" with registered instance methods
// inc(self, n) and value(self), dispatched through OpCallInstance via the
// combined (type hash, method hash) lookup (spec §4.4 "Instance
// dispatch"). The script-equivalent sequence is:
//
//	c.inc(3); c.inc(4); c.value()
//
// which this test builds directly as an instruction stream, since the
// compiler that would normally emit it is out of scope (spec §1).
func TestInstanceMethodDispatchOnExternalType(t *testing.T) {
	store := heap.NewStore()
	ctx := registry.NewContext()

	counterType := registry.HashName("mymodule::Counter")
	ctx.RegisterType(&values.RTTI{TypeHash: counterType, Name: "Counter", Shape: values.ShapeTuple})

	ctx.RegisterInstanceFunction(counterType, "inc", 2, func(vmStack interface{}, argc int) error {
		s := vmStack.(*stack.Stack)
		args, ok := s.Drain(argc)
		if !ok || len(args) != 2 {
			t.Fatalf("inc: expected 2 args, got %d (ok=%v)", len(args), ok)
		}
		recvHandle, ok := args[0].Handle()
		require.True(t, ok)
		payload, ok := s.Store().Payload(recvHandle)
		require.True(t, ok)
		counter := payload.(*values.AnyData).Object.(*counterState)
		delta, ok := args[1].AsInteger()
		require.True(t, ok)
		counter.n += delta
		s.Push(values.Unit)
		return nil
	})

	ctx.RegisterInstanceFunction(counterType, "value", 1, func(vmStack interface{}, argc int) error {
		s := vmStack.(*stack.Stack)
		args, ok := s.Drain(argc)
		if !ok || len(args) != 1 {
			t.Fatalf("value: expected 1 arg, got %d (ok=%v)", len(args), ok)
		}
		recvHandle, ok := args[0].Handle()
		require.True(t, ok)
		payload, ok := s.Store().Payload(recvHandle)
		require.True(t, ok)
		counter := payload.(*values.AnyData).Object.(*counterState)
		s.Push(values.NewInteger(counter.n))
		return nil
	})
	ctx.Seal()

	state := &counterState{}
	recvHandle := store.Allocate(&values.AnyData{TypeHash: counterType, Object: state})
	receiver := values.NewAnyHandle(recvHandle)

	incHash := registry.HashName("inc")
	valueHash := registry.HashName("value")

	u := unit.New()
	u.Instructions = []opcodes.Instruction{
		// Stack discipline per spec §4.4 "Instance dispatch": the receiver
		// sits argc slots below the top when CallInstance runs.
		{Op: opcodes.OpCopy, A: 0},                       // push receiver again (c)
		{Op: opcodes.OpPushLiteral, Literal: values.NewInteger(3)},
		{Op: opcodes.OpCallInstance, Hash: incHash, A: 1}, // c.inc(3) -> Unit
		{Op: opcodes.OpPop},

		{Op: opcodes.OpCopy, A: 0},
		{Op: opcodes.OpPushLiteral, Literal: values.NewInteger(4)},
		{Op: opcodes.OpCallInstance, Hash: incHash, A: 1}, // c.inc(4) -> Unit
		{Op: opcodes.OpPop},

		{Op: opcodes.OpCopy, A: 0},
		{Op: opcodes.OpCallInstance, Hash: valueHash, A: 0}, // c.value() -> Integer
		{Op: opcodes.OpReturn},
	}

	stk := stack.New(16)
	stk.BindStore(store)
	stk.Push(receiver)
	stk.PushFrame(-1, 1)

	vmi := New(u, store, ctx, stk, 0)
	res, err := vmi.Run(nil)
	require.NoError(t, err)
	assert.Equal(t, HaltExited, res.Halt)

	n, ok := res.Value.AsInteger()
	require.True(t, ok)
	assert.Equal(t, int64(7), n)
	assert.Equal(t, int64(7), state.n)
}
