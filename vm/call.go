package vm

import (
	"github.com/wudi/rnvm/opcodes"
	"github.com/wudi/rnvm/registry"
	"github.com/wudi/rnvm/unit"
	"github.com/wudi/rnvm/values"
	"github.com/wudi/rnvm/vmerrors"
)

// callOutcome tells the dispatch loop how the instruction pointer stands
// after a call opcode ran: a plain native/constructor call leaves IP where
// it was (the loop advances past it normally), a direct VM-offset call
// jumps IP into the callee itself, and a non-direct call style (async/
// generator/stream) halts so the driver can spawn the nested Vm it needs.
type callOutcome int

const (
	callContinue callOutcome = iota
	callJumped
	callHalted
)

// callOp handles the Call family (spec §4.4 "Dispatch of a call
// instruction" / "Instance dispatch").
func (v *Vm) callOp(inst opcodes.Instruction) (callOutcome, Result, error) {
	switch inst.Op {
	case opcodes.OpCall:
		return v.opCall(inst.Hash, inst.A)
	case opcodes.OpCallInstance:
		return v.opCallInstance(inst.Hash, inst.A)
	case opcodes.OpCallFn:
		return v.opCallFn(inst.A)
	case opcodes.OpLoadInstanceFn:
		return callContinue, Result{}, v.opLoadInstanceFn(inst.Hash, inst.A)
	}
	return callContinue, Result{}, nil
}

// opCall dispatches Call(hash, argc): resolve in the Unit's function
// table first, then the runtime context (spec §4.4 step 1).
func (v *Vm) opCall(hash uint64, argc int) (callOutcome, Result, error) {
	if fd, ok := v.Unit.Function(hash); ok {
		return v.invokeDescriptor(fd, argc)
	}
	if entry, ok := v.Ctx.LookupFunction(hash); ok {
		if entry.Arity != argc {
			return callContinue, Result{}, &vmerrors.BadArgumentCount{Hash: hash, Expected: entry.Arity, Actual: argc}
		}
		if err := entry.Handler(v.Stack, argc); err != nil {
			return callContinue, Result{}, err
		}
		return callContinue, Result{}, nil
	}
	return callContinue, Result{}, &vmerrors.MissingFunction{Hash: hash}
}

// opCallInstance dispatches CallInstance(hash, argc): hash is the bare
// method-name hash; the receiver's type hash is read from the stack
// (sitting argc slots below the top) and combined via InstanceHash before
// lookup (spec §4.4 "Instance dispatch").
func (v *Vm) opCallInstance(methodHash uint64, argc int) (callOutcome, Result, error) {
	receiver, ok := v.Stack.AtOffsetFromTop(argc)
	if !ok {
		return callContinue, Result{}, vmerrors.ErrBoundsCheck
	}
	typeHash := v.typeHashForDispatch(receiver)
	combined := registry.InstanceHash(typeHash, methodHash)

	if fd, ok := v.Unit.Function(combined); ok {
		return v.invokeDescriptor(fd, argc+1)
	}
	if entry, ok := v.Ctx.LookupInstanceFunction(combined); ok {
		if entry.Arity != argc+1 {
			return callContinue, Result{}, &vmerrors.BadArgumentCount{Hash: combined, Expected: entry.Arity, Actual: argc + 1}
		}
		if err := entry.Handler(v.Stack, argc+1); err != nil {
			return callContinue, Result{}, err
		}
		return callContinue, Result{}, nil
	}
	return callContinue, Result{}, &vmerrors.MissingFunction{Hash: combined}
}

// typeHashForDispatch picks the receiver type hash for call-instance
// lookups: Record receivers dispatch by their RTTI type hash, Variant
// receivers by their enum's hash, Any receivers by their embedder-assigned
// type hash, everything else by HashName("builtin/" + Kind.String()) (e.g.
// "builtin/Integer"). These per-kind hashes are not the lowercase ones
// protocol.typeHashOf uses for protocol lookups.
func (v *Vm) typeHashForDispatch(val values.Value) uint64 {
	h, ok := val.Handle()
	if !ok {
		return registry.HashName("builtin/" + val.Kind.String())
	}
	payload, ok := v.Store.Payload(h)
	if !ok {
		return registry.HashName("builtin/" + val.Kind.String())
	}
	switch p := payload.(type) {
	case *values.RecordData:
		return p.RTTI.TypeHash
	case *values.VariantData:
		return p.RTTI.EnumHash
	case *values.AnyData:
		return p.TypeHash
	default:
		return registry.HashName("builtin/" + val.Kind.String())
	}
}

// opCallFn dispatches CallFn(argc): the callee Function value sits argc
// slots below the top (pushed by an earlier LoadFn/Closure/variable load),
// exactly like a receiver in instance dispatch.
func (v *Vm) opCallFn(argc int) (callOutcome, Result, error) {
	callee, ok := v.Stack.AtOffsetFromTop(argc)
	if !ok {
		return callContinue, Result{}, vmerrors.ErrBoundsCheck
	}
	h, ok := callee.Handle()
	if !ok || callee.Kind != values.KindFunction {
		return callContinue, Result{}, &vmerrors.MissingFunction{}
	}
	payload, ok := v.Store.Payload(h)
	if !ok {
		return callContinue, Result{}, vmerrors.ErrInvalidHandle
	}
	fn := payload.(*values.FunctionData)

	// Remove the callee from underneath its arguments before invoking, so
	// native handlers and VM frames alike see a clean argc-sized window.
	args, ok := v.Stack.Drain(argc)
	if !ok {
		return callContinue, Result{}, vmerrors.ErrStackUnderflow
	}
	v.Stack.Pop() // discard the callee itself
	if fn.IsClosure {
		for _, captured := range fn.Env {
			v.Stack.Push(captured)
		}
	}
	for _, a := range args {
		v.Stack.Push(a)
	}
	effectiveArgc := argc
	if fn.IsClosure {
		effectiveArgc += len(fn.Env)
	}

	if fn.Native != nil {
		if err := fn.Native(v.Stack, effectiveArgc); err != nil {
			return callContinue, Result{}, err
		}
		return callContinue, Result{}, nil
	}
	if fn.ConstructorRTTI != nil {
		items, ok := v.Stack.Drain(effectiveArgc)
		if !ok {
			return callContinue, Result{}, vmerrors.ErrStackUnderflow
		}
		rh := v.Store.Allocate(&values.RecordData{RTTI: fn.ConstructorRTTI, Positional: items})
		v.Stack.Push(values.NewRecordHandle(rh))
		return callContinue, Result{}, nil
	}
	if fn.VariantRTTI != nil {
		items, ok := v.Stack.Drain(effectiveArgc)
		if !ok {
			return callContinue, Result{}, vmerrors.ErrStackUnderflow
		}
		rh := v.Store.Allocate(&values.VariantData{RTTI: fn.VariantRTTI, Positional: items})
		v.Stack.Push(values.NewVariantHandle(rh))
		return callContinue, Result{}, nil
	}
	if fn.IsOffset {
		return v.pushCallFrame(fn.Offset, effectiveArgc, fn.Style)
	}
	return callContinue, Result{}, &vmerrors.MissingFunction{}
}

func (v *Vm) opLoadInstanceFn(methodHash uint64, receiverOffset int) error {
	receiver, ok := v.Stack.AtOffset(receiverOffset)
	if !ok {
		return vmerrors.ErrBoundsCheck
	}
	typeHash := v.typeHashForDispatch(receiver)
	combined := registry.InstanceHash(typeHash, methodHash)

	if fd, ok := v.Unit.Function(combined); ok {
		fn := functionDataFromDescriptor(fd)
		h := v.Store.Allocate(fn)
		v.Stack.Push(values.NewFunctionHandle(h))
		return nil
	}
	if entry, ok := v.Ctx.LookupInstanceFunction(combined); ok {
		fn := &values.FunctionData{Name: entry.Name, Native: entry.Handler}
		h := v.Store.Allocate(fn)
		v.Stack.Push(values.NewFunctionHandle(h))
		return nil
	}
	return &vmerrors.MissingFunction{Hash: combined}
}

// invokeDescriptor dispatches a Unit-table function descriptor per its
// call style (spec §4.4 step 3). Only CallDirect is handled inline;
// CallAsync/CallGenerator/CallStream halt so the driver can spawn the
// nested Vm those styles need (this package has no notion of that).
func (v *Vm) invokeDescriptor(fd *unit.FunctionDescriptor, argc int) (callOutcome, Result, error) {
	if fd.IsConstructor {
		items, ok := v.Stack.Drain(argc)
		if !ok {
			return callContinue, Result{}, vmerrors.ErrStackUnderflow
		}
		if fd.VariantRTTI != nil {
			h := v.Store.Allocate(&values.VariantData{RTTI: fd.VariantRTTI, Positional: items})
			v.Stack.Push(values.NewVariantHandle(h))
		} else {
			h := v.Store.Allocate(&values.RecordData{RTTI: fd.ConstructorRTTI, Positional: items})
			v.Stack.Push(values.NewRecordHandle(h))
		}
		return callContinue, Result{}, nil
	}
	if fd.Arity != argc {
		return callContinue, Result{}, &vmerrors.BadArgumentCount{Hash: fd.Hash, Expected: fd.Arity, Actual: argc}
	}
	return v.pushCallFrame(fd.Offset, argc, fd.Style)
}

// pushCallFrame implements the direct call style inline by pushing a new
// frame and jumping IP into the callee. Non-direct styles halt with the
// pending-call fields filled in so the driver can construct the
// appropriate Future/Generator/Stream cell and resume this Vm's caller
// with it pushed in the callee's place (spec §4.4 step 3).
func (v *Vm) pushCallFrame(offset, argc int, style values.CallStyle) (callOutcome, Result, error) {
	if style != values.CallDirect {
		// Advance past this Call before halting, matching every other
		// suspension site (opAwait, opSelect, opYield): resuming must land
		// on the instruction after Call with the driver's substituted
		// Future/Generator/Stream value on top of the stack, not
		// re-dispatch the same Call instruction against that value.
		v.ip++
		return callHalted, Result{
			Halt:              HaltPendingCall,
			PendingCallOffset: offset,
			PendingCallArgc:   argc,
			PendingCallStyle:  style,
		}, nil
	}
	if v.maxDepth > 0 && v.Stack.Depth() >= v.maxDepth {
		return callContinue, Result{}, vmerrors.ErrStackOverflow
	}
	v.Stack.PushFrame(v.ip+1, argc)
	v.ip = offset
	return callJumped, Result{}, nil
}
