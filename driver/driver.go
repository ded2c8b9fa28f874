// Package driver implements the execution driver (spec §4.6, §6.4): the
// embedder-facing entry points (Vm.Execute/Call/AsyncCall/SendExecute) that
// drive the vm package's single-step dispatch loop to completion, spawning
// a goroutine per nested Future/Generator/Stream the loop halts on. This is
// the "async without an async runtime" layer the low-level vm package
// deliberately knows nothing about.
//
// The goroutine-per-suspension shape is grounded in the teacher's
// runtime/concurrency.go GoroutineManager.ExecuteGoroutine: a plain `go
// func(){ defer recover(); ...; close(done) }()` launch, generalized from
// PHP's go()/goid() builtin to the Future/Generator/Stream call styles this
// runtime's Call instruction can halt on.
package driver

import (
	"context"
	"fmt"

	"github.com/wudi/rnvm/heap"
	"github.com/wudi/rnvm/internal/telemetry"
	"github.com/wudi/rnvm/registry"
	"github.com/wudi/rnvm/stack"
	"github.com/wudi/rnvm/unit"
	"github.com/wudi/rnvm/values"
	"github.com/wudi/rnvm/vmconfig"
	"github.com/wudi/rnvm/vmerrors"
)

// Vm is the embedder-facing handle combining a Unit, a heap Store and a
// Runtime Context (spec §6.4 "Vm::new"). Unlike vm.Vm, which is a cheap,
// single-execution dispatch loop, a driver.Vm is meant to live for the
// process's lifetime and spawn many executions against the same Unit.
type Vm struct {
	unit  *unit.Unit
	store *heap.Store
	ctx   *registry.Context

	cfg       vmconfig.Config
	telemetry *telemetry.Recorder
}

// New constructs an embedder Vm over a sealed Runtime Context and a
// compiled Unit (spec §6.4 "Vm::new"). The Context must already be sealed
// (registry.Context.Seal); Execute/Call/AsyncCall never mutate it. Tuning
// defaults to vmconfig.Default(); call BindConfig to override it.
func New(u *unit.Unit, ctx *registry.Context) *Vm {
	return &Vm{unit: u, store: heap.NewStore(), ctx: ctx, cfg: vmconfig.Default()}
}

// BindConfig overrides this Vm's tuning (spec §4.6 budgeting, §3.4 stack
// sizing). Safe to call at any point before an execution starts; not
// safe to call concurrently with one in flight, the same restriction
// mutating any other driver.Vm field under active use would carry.
func (d *Vm) BindConfig(cfg vmconfig.Config) { d.cfg = cfg }

// BindTelemetry attaches a telemetry.Recorder that every vm.Vm this
// driver spawns (top-level and nested Future/Generator/Stream alike)
// reports its per-instruction counts and stack depth to.
func (d *Vm) BindTelemetry(r *telemetry.Recorder) { d.telemetry = r }

// Store exposes the heap store backing this Vm's executions, so an
// embedder holding a returned handle-kind Value (String/Bytes/Vec/...)
// has a way to dereference its payload.
func (d *Vm) Store() *heap.Store { return d.store }

// newStack constructs an operand stack sized per this Vm's bound config
// and bound to its heap store, the one piece of per-execution setup every
// stack.New call site in this package needs.
func (d *Vm) newStack(argc int) *stack.Stack {
	capacityHint := d.cfg.InitialStackCapacity
	if capacityHint <= 0 {
		capacityHint = vmconfig.Default().InitialStackCapacity
	}
	stk := stack.New(capacityHint + argc)
	stk.BindStore(d.store)
	return stk
}

// executionContext applies this Vm's ExecutionTimeout on top of ctx, when
// one is configured.
func (d *Vm) executionContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.cfg.ExecutionTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.cfg.ExecutionTimeout)
}

// budget returns a fresh copy of the configured cooperative budget for
// runToCompletion to decrement, or nil to fall back to the driver
// package's own default (spec §4.6: 0 means "no override").
func (d *Vm) budget() *int {
	if d.cfg.CooperativeBudget <= 0 {
		return nil
	}
	b := d.cfg.CooperativeBudget
	return &b
}

// resolveEntrypoint accepts either a function name (hashed via
// registry.HashName) or a raw hash, matching spec §6.4's
// "entrypoint_name_or_hash".
func (d *Vm) resolveEntrypoint(entrypoint interface{}) (*unit.FunctionDescriptor, error) {
	var hash uint64
	switch e := entrypoint.(type) {
	case string:
		hash = registry.HashName(e)
	case uint64:
		hash = e
	default:
		return nil, fmt.Errorf("driver: entrypoint must be a string or uint64 hash, got %T", entrypoint)
	}
	fd, ok := d.unit.Function(hash)
	if !ok {
		return nil, &vmerrors.MissingFunction{Hash: hash}
	}
	return fd, nil
}

// Execute runs entrypoint to completion synchronously, driving any nested
// Future/Generator/Stream suspensions the call style requires (spec §6.4
// "Vm::execute"). It is the general-purpose entry point; Call and
// AsyncCall below are thin conveniences over it for the common direct/
// async top-level cases.
func (d *Vm) Execute(ctx context.Context, entrypoint interface{}, args []values.Value) (values.Value, error) {
	fd, err := d.resolveEntrypoint(entrypoint)
	if err != nil {
		return values.Value{}, err
	}
	if fd.Arity != len(args) {
		return values.Value{}, &vmerrors.BadArgumentCount{Hash: fd.Hash, Expected: fd.Arity, Actual: len(args)}
	}
	ctx, cancel := d.executionContext(ctx)
	defer cancel()
	stk := d.newStack(len(args))
	for _, a := range args {
		stk.Push(a)
	}
	stk.PushFrame(-1, len(args))
	return d.runToCompletion(ctx, stk, fd.Offset, d.budget())
}

// Call is the synchronous convenience entry point (spec §6.4 "Vm::call"):
// entrypoint must resolve to a CallDirect-style function; Awaits
// encountered along the way are driven to completion internally before
// Call returns (this is what "consumes a guard to borrowed args" buys the
// original: from the caller's perspective nothing is left suspended).
func (d *Vm) Call(ctx context.Context, entrypoint interface{}, args []values.Value) (values.Value, error) {
	return d.Execute(ctx, entrypoint, args)
}

// AsyncCall resolves entrypoint and immediately returns a Future handle
// instead of blocking for the result (spec §6.4 "Vm::async_call"): the
// Future's Poll goroutine drives the same runToCompletion machinery Call
// uses, on its own goroutine.
func (d *Vm) AsyncCall(ctx context.Context, entrypoint interface{}, args []values.Value) (values.Value, error) {
	fd, err := d.resolveEntrypoint(entrypoint)
	if err != nil {
		return values.Value{}, err
	}
	if fd.Arity != len(args) {
		return values.Value{}, &vmerrors.BadArgumentCount{Hash: fd.Hash, Expected: fd.Arity, Actual: len(args)}
	}
	ctx, cancel := d.executionContext(ctx)
	return d.spawnFuture(ctx, func() (values.Value, error) {
		defer cancel()
		stk := d.newStack(len(args))
		for _, a := range args {
			stk.Push(a)
		}
		stk.PushFrame(-1, len(args))
		return d.runToCompletion(ctx, stk, fd.Offset, d.budget())
	}), nil
}

// SendExecution is a handle to an execution started with an empty operand
// stack (spec §6.4 "Vm::send_execute"), the shape a message-passing
// embedder uses to hand a fresh, caller-owned stack to the VM rather than
// pre-pushed arguments.
type SendExecution struct {
	d      *Vm
	stk    *stack.Stack
	offset int
}

// SendExecute begins an execution whose operand stack must be empty at
// call time (spec §6.4). The caller populates stk however its protocol
// requires (e.g. pushing a message envelope) before calling Run.
func (d *Vm) SendExecute(entrypoint interface{}, stk *stack.Stack) (*SendExecution, error) {
	if stk.Len() != 0 {
		return nil, vmerrors.ErrEmptyStackRequired
	}
	fd, err := d.resolveEntrypoint(entrypoint)
	if err != nil {
		return nil, err
	}
	return &SendExecution{d: d, stk: stk, offset: fd.Offset}, nil
}

// Run drives a SendExecution to completion, after the caller has pushed
// whatever arguments/frame it needs onto the stack it supplied.
func (se *SendExecution) Run(ctx context.Context) (values.Value, error) {
	return se.d.runToCompletion(ctx, se.stk, se.offset, nil)
}

// Step advances a Generator or Stream value by one yield (spec §8
// scenario 5: "stepping the resulting Generator value"). It is the
// embedder-facing counterpart of the script-level Yield instruction: a
// Generator/Stream is not otherwise iterable from Go code, since its
// body runs on the nested goroutine spawnCoroutine started.
func (d *Vm) Step(val values.Value) (values.GeneratorStateData, error) {
	h, ok := val.Handle()
	if !ok {
		return values.GeneratorStateData{}, fmt.Errorf("driver: Step requires a Generator or Stream value, got %s", val.Kind)
	}
	payload, ok := d.store.Payload(h)
	if !ok {
		return values.GeneratorStateData{}, vmerrors.ErrInvalidHandle
	}
	switch val.Kind {
	case values.KindGenerator:
		g := payload.(*values.GeneratorData)
		if g.Done {
			return values.GeneratorStateData{Done: true, Value: values.Unit}, nil
		}
		state, err := g.Step()
		if err != nil {
			return values.GeneratorStateData{}, err
		}
		g.Done = state.Done
		return state, nil
	case values.KindStream:
		s := payload.(*values.StreamData)
		if s.Done {
			return values.GeneratorStateData{Done: true, Value: values.Unit}, nil
		}
		state, err := s.Step()
		if err != nil {
			return values.GeneratorStateData{}, err
		}
		s.Done = state.Done
		return state, nil
	default:
		return values.GeneratorStateData{}, fmt.Errorf("driver: Step requires a Generator or Stream value, got %s", val.Kind)
	}
}
