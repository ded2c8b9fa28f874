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

func newTestVm(u *unit.Unit, args []values.Value, offset int) (*Vm, *stack.Stack) {
	store := heap.NewStore()
	ctx := registry.NewContext()
	ctx.Seal()
	stk := stack.New(8 + len(args))
	stk.BindStore(store)
	for _, a := range args {
		stk.Push(a)
	}
	stk.PushFrame(-1, len(args))
	return New(u, store, ctx, stk, offset), stk
}

// TestDispatchAddition exercises the "a + 10" scenario: two integers
// pushed as arguments, summed, and returned.
func TestDispatchAddition(t *testing.T) {
	u := unit.New()
	u.Instructions = []opcodes.Instruction{
		{Op: opcodes.OpAdd},
		{Op: opcodes.OpReturn},
	}
	vmi, _ := newTestVm(u, []values.Value{values.NewInteger(33), values.NewInteger(10)}, 0)

	res, err := vmi.Run(nil)
	require.NoError(t, err)
	assert.Equal(t, HaltExited, res.Halt)
	n, ok := res.Value.AsInteger()
	require.True(t, ok)
	assert.Equal(t, int64(43), n)
}

// TestDispatchTryOkUnwraps exercises Try(Ok(5)) short-circuiting to the
// wrapped value rather than propagating.
func TestDispatchTryOkUnwraps(t *testing.T) {
	u := unit.New()
	u.Instructions = []opcodes.Instruction{
		{Op: opcodes.OpTry},
		{Op: opcodes.OpAdd},
		{Op: opcodes.OpReturn},
	}
	store := heap.NewStore()
	ctx := registry.NewContext()
	ctx.Seal()
	okVal := values.NewInteger(5)
	h := store.Allocate(&values.ResultData{Ok: &okVal})
	stk := stack.New(8)
	stk.BindStore(store)
	stk.Push(values.NewResultHandle(h))
	stk.Push(values.NewInteger(1))
	stk.PushFrame(-1, 2)
	vmi := New(u, store, ctx, stk, 0)

	res, err := vmi.Run(nil)
	require.NoError(t, err)
	assert.Equal(t, HaltExited, res.Halt)
	n, _ := res.Value.AsInteger()
	assert.Equal(t, int64(6), n)
}

// TestDispatchTryErrPropagates exercises Try(Err("nope")) propagating the
// whole Result value as this frame's return instead of continuing.
func TestDispatchTryErrPropagates(t *testing.T) {
	u := unit.New()
	u.Instructions = []opcodes.Instruction{
		{Op: opcodes.OpTry},
		{Op: opcodes.OpAdd}, // never reached
		{Op: opcodes.OpReturn},
	}
	store := heap.NewStore()
	ctx := registry.NewContext()
	ctx.Seal()
	errVal := values.NewStaticString(0)
	u.StringPool = []string{"nope"}
	h := store.Allocate(&values.ResultData{Err: &errVal})
	stk := stack.New(8)
	stk.BindStore(store)
	stk.Push(values.NewResultHandle(h))
	stk.PushFrame(-1, 1)
	vmi := New(u, store, ctx, stk, 0)

	res, err := vmi.Run(nil)
	require.NoError(t, err)
	assert.Equal(t, HaltExited, res.Halt)
	assert.Equal(t, values.KindResult, res.Value.Kind)
	rh, ok := res.Value.Handle()
	require.True(t, ok)
	payload, ok := store.Payload(rh)
	require.True(t, ok)
	rd := payload.(*values.ResultData)
	require.False(t, rd.IsOk())
	assert.Equal(t, errVal, *rd.Err)
}

// TestMaxCallDepthEnforced verifies pushCallFrame refuses to push another
// frame once the configured ceiling is reached, instead of recursing the
// host process into unbounded stack growth.
func TestMaxCallDepthEnforced(t *testing.T) {
	u := unit.New()
	fn := &unit.FunctionDescriptor{
		Name:     "recurse",
		Hash:     registry.HashName("recurse"),
		Arity:    0,
		IsOffset: true,
		Offset:   0,
		Style:    values.CallDirect,
	}
	u.FunctionTable[fn.Hash] = fn
	u.Instructions = []opcodes.Instruction{
		{Op: opcodes.OpCall, Hash: fn.Hash, A: 0},
		{Op: opcodes.OpReturnUnit},
	}
	vmi, _ := newTestVm(u, nil, 0)
	vmi.BindMaxDepth(2)

	_, err := vmi.Run(nil)
	require.Error(t, err)
}

// TestCooperativeBudgetYieldsLimited verifies a zero-instruction budget
// returns HaltLimited without consuming the triggering instruction, so a
// subsequent Run call resumes cleanly from the same IP.
func TestCooperativeBudgetYieldsLimited(t *testing.T) {
	u := unit.New()
	u.Instructions = []opcodes.Instruction{
		{Op: opcodes.OpAdd},
		{Op: opcodes.OpReturn},
	}
	vmi, _ := newTestVm(u, []values.Value{values.NewInteger(1), values.NewInteger(2)}, 0)

	budget := 0
	res, err := vmi.Run(&budget)
	require.NoError(t, err)
	assert.Equal(t, HaltLimited, res.Halt)
	assert.Equal(t, 0, vmi.IP())

	budget = 10
	res, err = vmi.Run(&budget)
	require.NoError(t, err)
	assert.Equal(t, HaltExited, res.Halt)
	n, _ := res.Value.AsInteger()
	assert.Equal(t, int64(3), n)
}
