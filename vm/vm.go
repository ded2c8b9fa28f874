// Package vm implements the bytecode dispatch loop (spec §4.4): a single
// flat switch over opcodes.Opcode that advances one VM instance by one
// instruction at a time. The switch-per-opcode shape, and the convention
// of delegating each instruction family to its own file
// (arithmetic/construction/call/match/suspend), is carried over from the
// teacher's vm/vm.go dispatch switch + vm/arithmetic_executor.go,
// vm/instruction_executor.go split, generalized from PHP zend opcodes to
// this core's instruction set.
package vm

import (
	"fmt"

	"github.com/wudi/rnvm/heap"
	"github.com/wudi/rnvm/internal/telemetry"
	"github.com/wudi/rnvm/opcodes"
	"github.com/wudi/rnvm/protocol"
	"github.com/wudi/rnvm/registry"
	"github.com/wudi/rnvm/stack"
	"github.com/wudi/rnvm/unit"
	"github.com/wudi/rnvm/values"
	"github.com/wudi/rnvm/vmerrors"
)

// Halt identifies why Step/Run returned control to its caller (spec §4.6).
type Halt byte

const (
	// HaltExited means the function at the bottom of the call chain
	// returned; Result.Value holds the returned value.
	HaltExited Halt = iota
	// HaltLimited means the cooperative budget ran out mid-instruction
	// stream; re-entry continues exactly where it left off.
	HaltLimited
	// HaltAwaited means an Await instruction suspended on a Future cell;
	// Result.AwaitedFuture names which one.
	HaltAwaited
	// HaltAwaitedSelect means a Select instruction suspended on several
	// Future cells; Result.AwaitedSelect names them.
	HaltAwaitedSelect
	// HaltYielded means a Yield instruction produced a value to the
	// enclosing Generator/Stream driver; Result.Value holds it.
	HaltYielded
	// HaltPendingCall means a Call resolved to a non-direct call style
	// (async/generator/stream); the driver package is the one that knows
	// how to spawn the Future/Generator/Stream cell this needs, so the
	// dispatch loop stops short of doing it itself (spec §4.4 step 3,
	// §4.6). Result.PendingCall* carries what the driver needs to do it.
	HaltPendingCall
)

func (h Halt) String() string {
	switch h {
	case HaltExited:
		return "exited"
	case HaltLimited:
		return "limited"
	case HaltAwaited:
		return "awaited"
	case HaltAwaitedSelect:
		return "awaited-select"
	case HaltYielded:
		return "yielded"
	case HaltPendingCall:
		return "pending-call"
	default:
		return "unknown"
	}
}

// Result is what one call to Run hands back to the driver.
type Result struct {
	Halt          Halt
	Value         values.Value
	AwaitedFuture heap.Handle
	AwaitedSelect []heap.Handle

	// PendingCall* are populated on HaltPendingCall (spec §4.4 step 3): the
	// callee's VM offset, how many argument values are sitting on top of
	// the stack awaiting drain, and which non-direct call style to spawn.
	PendingCallOffset int
	PendingCallArgc   int
	PendingCallStyle  values.CallStyle
}

// Vm is one instance of the dispatch loop: an instruction pointer, an
// operand stack, and shared, read-only references to the compiled Unit,
// the heap cell store, and the Runtime Context. Multiple Vm instances may
// share the same Unit, Store and Context concurrently (spec §5); only the
// IP and Stack are private to one Vm.
type Vm struct {
	Unit  *unit.Unit
	Store *heap.Store
	Ctx   *registry.Context

	Stack  *stack.Stack
	caller *protocol.Caller

	ip int

	// telemetry is nil unless the embedder opts in via BindTelemetry; the
	// dispatch loop's per-instruction Observe call is a no-op when it is
	// nil, so plain execution pays nothing for it by default.
	telemetry *telemetry.Recorder

	// maxDepth bounds the number of nested call frames pushCallFrame will
	// allow (vmconfig.Config.MaxCallDepth); 0 means unbounded. Guards
	// against unbounded script recursion exhausting the host process's
	// memory the way an unchecked operand stack growth would.
	maxDepth int
}

// BindMaxDepth sets the call-frame depth ceiling this Vm enforces on
// direct calls (spec §3.5 frames, vmconfig.Config.MaxCallDepth). 0 (the
// zero value) means unbounded.
func (v *Vm) BindMaxDepth(n int) { v.maxDepth = n }

// New constructs a Vm ready to execute u starting at ip, against the
// given heap store and runtime context. The caller is responsible for
// pushing the initial arguments onto stk before the first Run call, the
// same contract a freshly-constructed call frame has.
func New(u *unit.Unit, store *heap.Store, ctx *registry.Context, stk *stack.Stack, ip int) *Vm {
	return &Vm{
		Unit:   u,
		Store:  store,
		Ctx:    ctx,
		Stack:  stk,
		caller: protocol.NewCaller(ctx),
		ip:     ip,
	}
}

// IP returns the current instruction pointer, for diagnostics.
func (v *Vm) IP() int { return v.ip }

// BindTelemetry attaches a telemetry.Recorder that the dispatch loop
// reports per-instruction counts and stack depth to. Optional; a Vm with
// no Recorder bound skips these observations entirely.
func (v *Vm) BindTelemetry(r *telemetry.Recorder) { v.telemetry = r }

// Run drives the dispatch loop until a halt condition is observed or an
// error occurs. budget is a pointer to the cooperative instruction
// counter (spec §4.6); it is decremented before every instruction and the
// loop returns HaltLimited without consuming the triggering instruction
// once it reaches zero, so a subsequent Run call resumes cleanly.
func (v *Vm) Run(budget *int) (Result, error) {
	for {
		if budget != nil {
			if *budget <= 0 {
				return Result{Halt: HaltLimited}, nil
			}
			*budget--
		}

		inst, err := v.fetch()
		if err != nil {
			return Result{}, err
		}
		if v.telemetry != nil {
			v.telemetry.Observe(v.ip, inst.Op)
			v.telemetry.ObserveStackDepth(v.Stack.Len())
		}

		halt, result, err := v.dispatch(inst)
		if err != nil {
			return Result{}, err
		}
		if halt {
			return result, nil
		}
	}
}

func (v *Vm) fetch() (opcodes.Instruction, error) {
	if v.ip < 0 || v.ip >= len(v.Unit.Instructions) {
		return opcodes.Instruction{}, &vmerrors.IPOutOfBounds{IP: v.ip, Len: len(v.Unit.Instructions)}
	}
	return v.Unit.Instructions[v.ip], nil
}

// dispatch executes one instruction. halt is true when Run should return
// result to its caller instead of continuing the loop.
func (v *Vm) dispatch(inst opcodes.Instruction) (halt bool, result Result, err error) {
	switch inst.Op {

	// --- Stack shuffle ---
	case opcodes.OpPushLiteral:
		lit, ok := inst.Literal.(values.Value)
		if !ok {
			lit = values.Unit
		}
		v.Stack.Push(lit)
		v.ip++

	case opcodes.OpPop:
		if _, ok := v.Stack.Pop(); !ok {
			return true, Result{}, vmerrors.ErrStackUnderflow
		}
		v.ip++

	case opcodes.OpPopN:
		if !v.Stack.PopN(inst.A) {
			return true, Result{}, vmerrors.ErrStackUnderflow
		}
		v.ip++

	case opcodes.OpDup:
		top, ok := v.Stack.Peek()
		if !ok {
			return true, Result{}, vmerrors.ErrStackUnderflow
		}
		v.Stack.Push(top)
		v.ip++

	case opcodes.OpCopy:
		val, ok := v.Stack.AtOffset(inst.A)
		if !ok {
			return true, Result{}, vmerrors.ErrBoundsCheck
		}
		v.Stack.Push(val)
		v.ip++

	case opcodes.OpMove:
		val, ok := v.Stack.AtOffset(inst.A)
		if !ok {
			return true, Result{}, vmerrors.ErrBoundsCheck
		}
		v.Stack.SetAtOffset(inst.A, values.Unit)
		v.Stack.Push(val)
		v.ip++

	case opcodes.OpDrop:
		if !v.Stack.SetAtOffset(inst.A, values.Unit) {
			return true, Result{}, vmerrors.ErrBoundsCheck
		}
		v.ip++

	case opcodes.OpReplace:
		val, ok := v.Stack.Pop()
		if !ok {
			return true, Result{}, vmerrors.ErrStackUnderflow
		}
		if !v.Stack.SetAtOffset(inst.A, val) {
			return true, Result{}, vmerrors.ErrBoundsCheck
		}
		v.ip++

	case opcodes.OpClean:
		top, ok := v.Stack.Pop()
		if !ok {
			return true, Result{}, vmerrors.ErrStackUnderflow
		}
		if !v.Stack.PopN(inst.A) {
			return true, Result{}, vmerrors.ErrStackUnderflow
		}
		v.Stack.Push(top)
		v.ip++

	// --- Control flow ---
	case opcodes.OpJump:
		v.ip = inst.Jump

	case opcodes.OpJumpIf:
		cond, ok := v.Stack.Pop()
		if !ok {
			return true, Result{}, vmerrors.ErrStackUnderflow
		}
		if truthy(cond) {
			v.ip = inst.Jump
		} else {
			v.ip++
		}

	case opcodes.OpJumpIfOrPop:
		cond, ok := v.Stack.Peek()
		if !ok {
			return true, Result{}, vmerrors.ErrStackUnderflow
		}
		if truthy(cond) {
			v.ip = inst.Jump
		} else {
			v.Stack.Pop()
			v.ip++
		}

	case opcodes.OpJumpIfNotOrPop:
		cond, ok := v.Stack.Peek()
		if !ok {
			return true, Result{}, vmerrors.ErrStackUnderflow
		}
		if !truthy(cond) {
			v.ip = inst.Jump
		} else {
			v.Stack.Pop()
			v.ip++
		}

	case opcodes.OpJumpIfBranch:
		branch, ok := v.Stack.Pop()
		if !ok {
			return true, Result{}, vmerrors.ErrStackUnderflow
		}
		n, _ := branch.AsInteger()
		if int(n) == inst.A {
			v.ip = inst.Jump
		} else {
			v.ip++
		}

	case opcodes.OpPopAndJumpIfNot:
		cond, ok := v.Stack.Pop()
		if !ok {
			return true, Result{}, vmerrors.ErrStackUnderflow
		}
		if !truthy(cond) {
			v.ip = inst.Jump
		} else {
			v.ip++
		}

	case opcodes.OpReturn, opcodes.OpReturnUnit:
		var retVal values.Value
		if inst.Op == opcodes.OpReturnUnit {
			retVal = values.Unit
		} else {
			popped, ok := v.Stack.Pop()
			if !ok {
				return true, Result{}, vmerrors.ErrStackUnderflow
			}
			retVal = popped
		}
		v.Stack.Push(retVal)
		popped, hasFrame := v.Stack.PopFrame()
		if !hasFrame || popped.ReturnIP < 0 {
			return true, Result{Halt: HaltExited, Value: retVal}, nil
		}
		v.ip = popped.ReturnIP

	// --- Arithmetic / bitwise / comparison ---
	case opcodes.OpAdd, opcodes.OpSub, opcodes.OpMul, opcodes.OpDiv, opcodes.OpRem,
		opcodes.OpBitAnd, opcodes.OpBitOr, opcodes.OpBitXor, opcodes.OpShl, opcodes.OpShr,
		opcodes.OpLt, opcodes.OpLte, opcodes.OpGt, opcodes.OpGte, opcodes.OpEq, opcodes.OpNeq,
		opcodes.OpAnd, opcodes.OpOr:
		if err := v.binaryOp(inst.Op); err != nil {
			return true, Result{}, err
		}
		v.ip++

	case opcodes.OpIs, opcodes.OpIsNot:
		if err := v.opIs(inst.Op); err != nil {
			return true, Result{}, err
		}
		v.ip++

	case opcodes.OpNeg, opcodes.OpNot:
		if err := v.unaryOp(inst.Op); err != nil {
			return true, Result{}, err
		}
		v.ip++

	case opcodes.OpAddAssign, opcodes.OpSubAssign, opcodes.OpMulAssign, opcodes.OpDivAssign,
		opcodes.OpRemAssign, opcodes.OpBitAndAssign, opcodes.OpBitOrAssign, opcodes.OpBitXorAssign,
		opcodes.OpShlAssign, opcodes.OpShrAssign:
		if err := v.assignOp(inst); err != nil {
			return true, Result{}, err
		}
		v.ip++

	// --- Indexing ---
	case opcodes.OpIndexGet, opcodes.OpIndexSet, opcodes.OpTupleIndexGet, opcodes.OpTupleIndexSet,
		opcodes.OpTupleIndexGetAt, opcodes.OpObjectIndexGet, opcodes.OpObjectIndexSet,
		opcodes.OpObjectIndexGetAt:
		if err := v.indexOp(inst); err != nil {
			return true, Result{}, err
		}
		v.ip++

	// --- Construction ---
	case opcodes.OpVec, opcodes.OpTuple, opcodes.OpTuple1, opcodes.OpTuple2, opcodes.OpTuple3,
		opcodes.OpTuple4, opcodes.OpPushTuple, opcodes.OpObject, opcodes.OpRange,
		opcodes.OpUnitStruct, opcodes.OpStruct, opcodes.OpUnitVariant, opcodes.OpStructVariant,
		opcodes.OpString, opcodes.OpBytes, opcodes.OpStringConcat, opcodes.OpFormat,
		opcodes.OpLoadFn, opcodes.OpClosure:
		if err := v.constructOp(inst); err != nil {
			return true, Result{}, err
		}
		v.ip++

	// --- Call ---
	// callOp advances v.ip itself (either past this instruction for a
	// native/constructor call, or into the callee for a VM-offset frame
	// push), since a successful direct call must land on the callee's
	// first instruction rather than the one after Call.
	case opcodes.OpCall, opcodes.OpCallInstance, opcodes.OpCallFn, opcodes.OpLoadInstanceFn:
		outcome, res, err := v.callOp(inst)
		if err != nil {
			return true, Result{}, err
		}
		switch outcome {
		case callHalted:
			return true, res, nil
		case callJumped:
			// v.ip already points at the callee's first instruction.
		default:
			v.ip++
		}

	// --- Matching ---
	case opcodes.OpMatchSequence, opcodes.OpMatchType, opcodes.OpMatchVariant, opcodes.OpMatchBuiltIn,
		opcodes.OpMatchObject, opcodes.OpIsUnit, opcodes.OpEqByte, opcodes.OpEqChar,
		opcodes.OpEqInteger, opcodes.OpEqBool, opcodes.OpEqString, opcodes.OpEqBytes:
		if err := v.matchOp(inst); err != nil {
			return true, Result{}, err
		}
		v.ip++

	// --- Sum-type sugar ---
	case opcodes.OpVariantSome, opcodes.OpVariantNone, opcodes.OpVariantOk, opcodes.OpVariantErr:
		if err := v.variantOp(inst); err != nil {
			return true, Result{}, err
		}
		v.ip++

	// --- Suspension ---
	case opcodes.OpAwait:
		h, res, err := v.opAwait()
		if err != nil {
			return true, Result{}, err
		}
		v.ip++
		if h {
			return true, res, nil
		}

	case opcodes.OpSelect:
		h, res, err := v.opSelect(inst)
		if err != nil {
			return true, Result{}, err
		}
		v.ip++
		if h {
			return true, res, nil
		}

	case opcodes.OpYield:
		val, ok := v.Stack.Pop()
		if !ok {
			return true, Result{}, vmerrors.ErrStackUnderflow
		}
		v.ip++
		return true, Result{Halt: HaltYielded, Value: val}, nil

	case opcodes.OpYieldUnit:
		v.ip++
		return true, Result{Halt: HaltYielded, Value: values.Unit}, nil

	// --- Iteration ---
	// opIterNext manages v.ip itself: it advances past the instruction on
	// a produced value, or jumps to inst.Jump when the iterator is
	// exhausted, so the dispatch loop must not also advance unconditionally.
	case opcodes.OpIterNext:
		if err := v.opIterNext(inst); err != nil {
			return true, Result{}, err
		}

	// --- Faults ---
	case opcodes.OpTry:
		h, res, err := v.opTry(inst)
		if err != nil {
			return true, Result{}, err
		}
		if h {
			return true, res, nil
		}
		v.ip++

	case opcodes.OpPanic:
		reason, _ := v.Stack.Pop()
		return true, Result{}, &vmerrors.Panic{Reason: reason}

	default:
		return true, Result{}, fmt.Errorf("vm: unhandled opcode %s", inst.Op)
	}

	return false, Result{}, nil
}

// truthy extracts the boolean condition a control-flow instruction
// branches on. Only Bool values are valid conditions; anything else is a
// loader-contract violation the dispatch loop treats as false rather than
// panicking, since recovering from a malformed Unit is the embedder's
// call, not this loop's.
func truthy(v values.Value) bool {
	b, ok := v.AsBool()
	return ok && b
}
