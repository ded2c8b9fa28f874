package driver

import (
	"context"

	"github.com/wudi/rnvm/heap"
	"github.com/wudi/rnvm/stack"
	"github.com/wudi/rnvm/values"
	"github.com/wudi/rnvm/vm"
	"github.com/wudi/rnvm/vmerrors"
)

// defaultBudget is the cooperative instruction budget refilled between
// Run calls when the caller did not supply one via vmconfig. It bounds
// how much work a single Step burns before yielding control back to this
// loop, not the total work an execution may do; HaltLimited is handled
// below by simply refilling and continuing, so only a context
// cancellation ever truly stops a runaway script.
const defaultBudget = 1 << 16

// runToCompletion drives one vm.Vm from offset with stk as its initial
// operand stack until it reaches HaltExited, a cancelled context, or an
// unrecoverable error (spec §4.6). It is runUntilYieldOrExit specialised
// to the case where a HaltYielded is never expected: top-level and
// CallAsync executions have no Yield instruction reachable from their
// entrypoint's own frame (a yield inside a CallGenerator/CallStream body
// halts that nested Vm, not this one).
func (d *Vm) runToCompletion(ctx context.Context, stk *stack.Stack, offset int, budget *int) (values.Value, error) {
	vmi := vm.New(d.unit, d.store, d.ctx, stk, offset)
	vmi.BindMaxDepth(d.cfg.MaxCallDepth)
	if d.telemetry != nil {
		vmi.BindTelemetry(d.telemetry)
	}
	res, err := d.runUntilYieldOrExit(ctx, vmi, stk, budget)
	if err != nil {
		return values.Value{}, err
	}
	if res.Halt == vm.HaltYielded {
		return values.Value{}, vmerrors.ErrYieldOutsideGenerator
	}
	return res.Value, nil
}

// runUntilYieldOrExit drives vmi forward, handling every suspension Halt
// that does not itself require returning control to the caller
// (HaltLimited by refilling the budget, HaltPendingCall by spawning the
// nested Future/Generator/Stream cell asked for, HaltAwaited/
// HaltAwaitedSelect by polling those cells to completion), and returns as
// soon as the loop halts with HaltExited or HaltYielded so the caller
// (runToCompletion for a plain call, the coroutine stepper for a
// Generator/Stream body) can interpret that outcome itself.
func (d *Vm) runUntilYieldOrExit(ctx context.Context, vmi *vm.Vm, stk *stack.Stack, budget *int) (vm.Result, error) {
	b := defaultBudget
	if budget != nil {
		b = *budget
	}
	for {
		if err := ctx.Err(); err != nil {
			return vm.Result{}, err
		}
		remaining := b
		res, err := vmi.Run(&remaining)
		if err != nil {
			return vm.Result{}, err
		}
		switch res.Halt {
		case vm.HaltExited, vm.HaltYielded:
			return res, nil

		case vm.HaltLimited:
			continue

		case vm.HaltPendingCall:
			if err := d.handlePendingCall(ctx, stk, res); err != nil {
				return vm.Result{}, err
			}

		case vm.HaltAwaited:
			val, err := d.awaitOne(ctx, res.AwaitedFuture)
			if err != nil {
				return vm.Result{}, err
			}
			stk.Push(val)

		case vm.HaltAwaitedSelect:
			branch, val, err := d.awaitSelect(ctx, res.AwaitedSelect)
			if err != nil {
				return vm.Result{}, err
			}
			pair := d.store.Allocate(&values.TupleData{Items: []values.Value{values.NewInteger(int64(branch)), val}})
			stk.Push(values.NewTupleHandle(pair))

		default:
			return vm.Result{}, vmerrors.ErrSyncAwait
		}
	}
}

// handlePendingCall spawns the Future/Generator/Stream cell a non-direct
// Call instruction asked for, pushing the resulting handle in place of
// the callee+arguments the dispatch loop left untouched on the stack
// (spec §4.4 step 3, §4.6).
func (d *Vm) handlePendingCall(ctx context.Context, stk *stack.Stack, res vm.Result) error {
	args, ok := stk.Drain(res.PendingCallArgc)
	if !ok {
		return vmerrors.ErrStackUnderflow
	}
	offset := res.PendingCallOffset

	switch res.PendingCallStyle {
	case values.CallAsync:
		future := d.spawnFuture(ctx, func() (values.Value, error) {
			sub := stack.New(len(args) + 8)
			sub.BindStore(d.store)
			for _, a := range args {
				sub.Push(a)
			}
			sub.PushFrame(-1, len(args))
			return d.runToCompletion(ctx, sub, offset, nil)
		})
		stk.Push(future)
		return nil

	case values.CallGenerator:
		h := d.spawnCoroutine(ctx, offset, args, false)
		stk.Push(values.NewGeneratorHandle(h))
		return nil

	case values.CallStream:
		h := d.spawnCoroutine(ctx, offset, args, true)
		stk.Push(values.NewStreamHandle(h))
		return nil
	}
	return vmerrors.ErrSyncAwait
}

// spawnFuture launches fn on its own goroutine and returns a Future
// handle immediately, grounded in the teacher's
// GoroutineManager.ExecuteGoroutine launch shape (go func(){ defer
// recover(); ...; close(done) }()): fn's result is latched the first
// time Poll is called rather than re-run, so repeated Awaits on the same
// handle (e.g. from a Select that didn't win) observe one execution.
func (d *Vm) spawnFuture(ctx context.Context, fn func() (values.Value, error)) values.Value {
	done := make(chan struct{})
	var result values.Value
	var resultErr error

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultErr = &vmerrors.Panic{Reason: r}
			}
			close(done)
		}()
		result, resultErr = fn()
	}()

	fd := values.NewFutureData(func() (values.Value, error) {
		select {
		case <-done:
			return result, resultErr
		case <-ctx.Done():
			return values.Value{}, ctx.Err()
		}
	})
	h := d.store.Allocate(fd)
	return values.NewFutureHandle(h)
}

// awaitOne polls a single Future cell to completion, caching its outcome
// on the cell so a second Await on the same handle (legal per spec §3.1's
// reference-counted sharing) doesn't re-run Poll.
func (d *Vm) awaitOne(ctx context.Context, h heap.Handle) (values.Value, error) {
	payload, ok := d.store.Payload(h)
	if !ok {
		return values.Value{}, vmerrors.ErrInvalidHandle
	}
	fd := payload.(*values.FutureData)
	if v, err, resolved := fd.Resolved(); resolved {
		return v, err
	}
	v, err := fd.Poll()
	fd.SetResolved(v, err)
	return v, err
}

// awaitSelect races every Future in handles and returns the branch index
// and value of whichever resolves first (spec §4.4 Select). The losing
// Futures' background goroutines are left running to completion and
// their results simply never observed; this is an accepted resource
// trade-off, the same shape as the reference-counted heap's own
// accepted closure-cycle leak.
func (d *Vm) awaitSelect(ctx context.Context, handles []heap.Handle) (int, values.Value, error) {
	type outcome struct {
		branch int
		value  values.Value
		err    error
	}
	resultCh := make(chan outcome, len(handles))
	for i, h := range handles {
		i, h := i, h
		go func() {
			v, err := d.awaitOne(ctx, h)
			resultCh <- outcome{branch: i, value: v, err: err}
		}()
	}
	select {
	case o := <-resultCh:
		return o.branch, o.value, o.err
	case <-ctx.Done():
		return 0, values.Value{}, ctx.Err()
	}
}
