package vm

import (
	"github.com/wudi/rnvm/heap"
	"github.com/wudi/rnvm/opcodes"
	"github.com/wudi/rnvm/protocol"
	"github.com/wudi/rnvm/registry"
	"github.com/wudi/rnvm/values"
	"github.com/wudi/rnvm/vmerrors"
)

// opAwait handles the Await instruction (spec §4.4 "Suspension", §4.6): it
// pops a Future value and halts the loop so the driver package can poll it.
// The dispatch loop advances ip past Await before halting, so resumption
// (the driver pushing the resolved value and calling Run again) lands on
// the instruction after Await with that value on top of the stack.
func (v *Vm) opAwait() (bool, Result, error) {
	top, ok := v.Stack.Pop()
	if !ok {
		return false, Result{}, vmerrors.ErrStackUnderflow
	}
	h, ok := top.Handle()
	if !ok || top.Kind != values.KindFuture {
		return false, Result{}, &vmerrors.UnsupportedAwaitOperand{Type: top.Kind.String()}
	}
	return true, Result{Halt: HaltAwaited, AwaitedFuture: h}, nil
}

// opSelect handles Select(n) (spec §4.4/§4.6): it drains n Future values
// (pushed in branch order) and halts so the driver can poll all of them,
// pushing back (branch_index, value) as a Tuple2 on the first completion.
func (v *Vm) opSelect(inst opcodes.Instruction) (bool, Result, error) {
	n := inst.A
	items, ok := v.Stack.Drain(n)
	if !ok {
		return false, Result{}, vmerrors.ErrStackUnderflow
	}
	handles := make([]heap.Handle, 0, n)
	for _, it := range items {
		h, ok := it.Handle()
		if !ok || it.Kind != values.KindFuture {
			return false, Result{}, &vmerrors.UnsupportedAwaitOperand{Type: it.Kind.String()}
		}
		handles = append(handles, h)
	}
	return true, Result{Halt: HaltAwaitedSelect, AwaitedSelect: handles}, nil
}

// opIterNext handles IterNext(offset, jump) (spec §4.4 "Iteration"): it
// calls the NEXT protocol on the iterator sitting at the given frame
// offset, pushing the produced value and advancing past the instruction
// when the protocol returns Some(v), or jumping to inst.Jump without
// pushing anything when it returns None (loop exit).
func (v *Vm) opIterNext(inst opcodes.Instruction) error {
	iterVal, ok := v.Stack.AtOffset(inst.A)
	if !ok {
		return vmerrors.ErrBoundsCheck
	}
	v.Stack.Push(iterVal)
	result, err := v.caller.CallInstanceProtocol(v.Stack, registry.ProtocolNext, 0)
	if err != nil {
		var unsupported *protocol.Unsupported
		if isUnsupported(err, &unsupported) {
			return &vmerrors.UnsupportedIterNextOperand{Type: iterVal.Kind.String()}
		}
		return err
	}
	if result.Kind != values.KindOption {
		return &vmerrors.UnsupportedIterNextOperand{Type: iterVal.Kind.String()}
	}
	h, _ := result.Handle()
	payload, ok := v.Store.Payload(h)
	if !ok {
		return vmerrors.ErrInvalidHandle
	}
	opt, ok := payload.(*values.OptionData)
	if !ok {
		return &vmerrors.UnsupportedIterNextOperand{Type: iterVal.Kind.String()}
	}
	if opt.IsSome() {
		v.Stack.Push(*opt.Value)
		v.ip++
		return nil
	}
	v.ip = inst.Jump
	return nil
}

// opTry handles Try(addr, clean, preserve) (spec §4.4 "Faults", §7): Ok/Some
// unwraps to its inner value and execution continues; Err/None propagates
// the whole Option/Result value as this frame's return, exactly like an
// explicit Return instruction. The operand is read from frame offset addr
// (inst.A) and left in place; clean and preserve are not used.
func (v *Vm) opTry(inst opcodes.Instruction) (bool, Result, error) {
	top, ok := v.Stack.AtOffset(inst.A)
	if !ok {
		return false, Result{}, vmerrors.ErrBoundsCheck
	}
	h, ok := top.Handle()
	if !ok {
		return false, Result{}, &vmerrors.UnsupportedTryOperand{Type: top.Kind.String()}
	}
	payload, ok := v.Store.Payload(h)
	if !ok {
		return false, Result{}, vmerrors.ErrInvalidHandle
	}
	switch top.Kind {
	case values.KindOption:
		opt := payload.(*values.OptionData)
		if opt.IsSome() {
			v.Stack.Push(*opt.Value)
			return false, Result{}, nil
		}
		return v.tryPropagate(top)
	case values.KindResult:
		res := payload.(*values.ResultData)
		if res.IsOk() {
			v.Stack.Push(*res.Ok)
			return false, Result{}, nil
		}
		return v.tryPropagate(top)
	default:
		return false, Result{}, &vmerrors.UnsupportedTryOperand{Type: top.Kind.String()}
	}
}

// tryPropagate returns val as the current frame's result, identically to
// how OpReturn pops a frame and preserves one return value.
func (v *Vm) tryPropagate(val values.Value) (bool, Result, error) {
	v.Stack.Push(val)
	popped, hasFrame := v.Stack.PopFrame()
	if !hasFrame || popped.ReturnIP < 0 {
		return true, Result{Halt: HaltExited, Value: val}, nil
	}
	// Point at the caller's Call instruction; the dispatch loop's ip++
	// after a non-halting Try then resumes at ReturnIP, as OpReturn does.
	v.ip = popped.ReturnIP - 1
	return false, Result{}, nil
}
