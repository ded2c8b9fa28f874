package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/rnvm/opcodes"
	"github.com/wudi/rnvm/registry"
	"github.com/wudi/rnvm/unit"
	"github.com/wudi/rnvm/values"
)

func newFn(hash uint64, offset, arity int, style values.CallStyle) *unit.FunctionDescriptor {
	return &unit.FunctionDescriptor{
		Hash:     hash,
		Arity:    arity,
		IsOffset: true,
		Offset:   offset,
		Style:    style,
	}
}

// TestAsyncCallAwaitTwice builds a unit where the entrypoint calls an
// async-style "fetch" function twice, Awaiting each result, and sums them
// (spec §8 scenario 4).
func TestAsyncCallAwaitTwice(t *testing.T) {
	u := unit.New()
	mainHash := registry.HashName("main")
	fetchHash := registry.HashName("fetch")

	u.FunctionTable[mainHash] = newFn(mainHash, 0, 0, values.CallDirect)
	u.FunctionTable[fetchHash] = newFn(fetchHash, 6, 0, values.CallAsync)

	u.Instructions = []opcodes.Instruction{
		{Op: opcodes.OpCall, Hash: fetchHash, A: 0}, // 0
		{Op: opcodes.OpAwait},                       // 1
		{Op: opcodes.OpCall, Hash: fetchHash, A: 0}, // 2
		{Op: opcodes.OpAwait},                       // 3
		{Op: opcodes.OpAdd},                          // 4
		{Op: opcodes.OpReturn},                       // 5
		{Op: opcodes.OpPushLiteral, Literal: values.NewInteger(1)}, // 6: fetch body
		{Op: opcodes.OpReturn},                                     // 7
	}

	ctx := registry.NewContext()
	ctx.Seal()
	d := New(u, ctx)

	val, err := d.Call(context.Background(), "main", nil)
	require.NoError(t, err)
	n, ok := val.AsInteger()
	require.True(t, ok)
	assert.Equal(t, int64(2), n)
}

// TestGeneratorStepping builds a generator-style function that yields
// twice before completing, reached through a direct-call entrypoint that
// invokes it (spec §4.4 step 3: only a Call instruction resolves a
// CallGenerator-style function into a live Generator handle — calling the
// generator function as a top-level entrypoint directly would run its
// body inline and hit ErrYieldOutsideGenerator). Steps it via
// driver.Vm.Step (spec §8 scenario 5: "Yielded, Yielded, Complete").
func TestGeneratorStepping(t *testing.T) {
	u := unit.New()
	mainHash := registry.HashName("main")
	genHash := registry.HashName("gen")

	u.FunctionTable[mainHash] = newFn(mainHash, 0, 0, values.CallDirect)
	u.FunctionTable[genHash] = newFn(genHash, 2, 0, values.CallGenerator)

	u.Instructions = []opcodes.Instruction{
		{Op: opcodes.OpCall, Hash: genHash, A: 0}, // 0: -> Generator handle
		{Op: opcodes.OpReturn},                    // 1
		{Op: opcodes.OpPushLiteral, Literal: values.NewInteger(1)}, // 2: gen body
		{Op: opcodes.OpYield},                                      // 3
		{Op: opcodes.OpPushLiteral, Literal: values.NewInteger(2)}, // 4
		{Op: opcodes.OpYield},                                      // 5
		{Op: opcodes.OpPushLiteral, Literal: values.NewInteger(3)}, // 6
		{Op: opcodes.OpReturn},                                     // 7
	}

	ctx := registry.NewContext()
	ctx.Seal()
	d := New(u, ctx)

	genVal, err := d.Call(context.Background(), "main", nil)
	require.NoError(t, err)
	assert.Equal(t, values.KindGenerator, genVal.Kind)

	state1, err := d.Step(genVal)
	require.NoError(t, err)
	assert.False(t, state1.Done)
	n1, _ := state1.Value.AsInteger()
	assert.Equal(t, int64(1), n1)

	state2, err := d.Step(genVal)
	require.NoError(t, err)
	assert.False(t, state2.Done)
	n2, _ := state2.Value.AsInteger()
	assert.Equal(t, int64(2), n2)

	state3, err := d.Step(genVal)
	require.NoError(t, err)
	assert.True(t, state3.Done)
	n3, _ := state3.Value.AsInteger()
	assert.Equal(t, int64(3), n3)
}
