// Package stack implements the operand stack and call-frame manager
// (spec §3.4, §3.5, §4.3): a single flat slice of values with a bottom
// pointer per active call frame, bounds-checked against the current
// frame's bottom rather than absolute zero so a callee can never observe
// or mutate its caller's locals.
//
// Structurally this mirrors the teacher's CallStackManager
// (vm/call_stack.go, a frames []*CallFrame slice with push/pop/current),
// adapted to carry the operand values themselves rather than delegate to a
// PHP-specific ExecutionContext.
package stack

import (
	"github.com/wudi/rnvm/heap"
	"github.com/wudi/rnvm/values"
)

// Frame records where execution was before a call: the return IP and the
// stack index that was the top immediately before the callee's arguments
// were pushed (spec §3.5).
type Frame struct {
	ReturnIP int
	Bottom   int
}

// Stack is the VM's operand stack plus its active frame chain.
type Stack struct {
	values []values.Value
	frames []Frame
	store  *heap.Store
}

// New constructs an empty stack. capacityHint is a starting allocation
// size; the stack grows past it like any Go slice.
func New(capacityHint int) *Stack {
	return &Stack{
		values: make([]values.Value, 0, capacityHint),
		frames: make([]Frame, 0, 8),
	}
}

// BindStore associates store with this stack so native handlers invoked
// through it (spec §6.1) can allocate heap cells for the values they
// return, without widening the uniform NativeHandler signature itself
// (spec §6.1 hands a handler only the stack and an argument count). The
// driver package binds this once per execution stack it constructs.
func (s *Stack) BindStore(store *heap.Store) { s.store = store }

// Store returns the heap cell store bound to this stack, or nil if none
// was bound (e.g. a stack built directly in a test that never calls a
// store-allocating native handler).
func (s *Stack) Store() *heap.Store { return s.store }

// bottom is the current frame's stack bottom, or 0 if no frame is active
// (top-level execution).
func (s *Stack) bottom() int {
	if len(s.frames) == 0 {
		return 0
	}
	return s.frames[len(s.frames)-1].Bottom
}

// Len returns the number of values visible to the current frame.
func (s *Stack) Len() int {
	return len(s.values) - s.bottom()
}

// Push appends a value to the top of the stack.
func (s *Stack) Push(v values.Value) {
	s.values = append(s.values, v)
}

// Pop removes and returns the top value. ok is false if the current
// frame's stack is empty (spec invariant 1: never read below the bottom).
func (s *Stack) Pop() (values.Value, bool) {
	if s.Len() <= 0 {
		return values.Value{}, false
	}
	idx := len(s.values) - 1
	v := s.values[idx]
	s.values = s.values[:idx]
	return v, true
}

// PopN discards the top n values without returning them.
func (s *Stack) PopN(n int) bool {
	if s.Len() < n {
		return false
	}
	s.values = s.values[:len(s.values)-n]
	return true
}

// Peek returns the top value without removing it.
func (s *Stack) Peek() (values.Value, bool) {
	if s.Len() <= 0 {
		return values.Value{}, false
	}
	return s.values[len(s.values)-1], true
}

// Drain removes and returns the top n values, in push order (oldest
// first), used by Vec(n)/Tuple(n)/Object(n)-style construction opcodes.
func (s *Stack) Drain(n int) ([]values.Value, bool) {
	if n < 0 || s.Len() < n {
		return nil, false
	}
	start := len(s.values) - n
	out := make([]values.Value, n)
	copy(out, s.values[start:])
	s.values = s.values[:start]
	return out, true
}

// AtOffset returns the value at index i relative to the current frame's
// bottom (spec §4.3 at_offset).
func (s *Stack) AtOffset(i int) (values.Value, bool) {
	if i < 0 || i >= s.Len() {
		return values.Value{}, false
	}
	return s.values[s.bottom()+i], true
}

// SetAtOffset writes the value at frame-relative index i.
func (s *Stack) SetAtOffset(i int, v values.Value) bool {
	if i < 0 || i >= s.Len() {
		return false
	}
	s.values[s.bottom()+i] = v
	return true
}

// AtOffsetFromTop returns the value i slots below the current top (spec
// §4.3 at_offset_from_top), used by instance dispatch to locate the
// receiver underneath its arguments.
func (s *Stack) AtOffsetFromTop(i int) (values.Value, bool) {
	idx := s.Len() - 1 - i
	return s.AtOffset(idx)
}

// PushFrame records ip as the return address and sets the new frame's
// bottom so that exactly argCount values already pushed are visible to the
// callee as its initial stack contents. Returns the previous bottom so the
// caller never needs to track it separately.
func (s *Stack) PushFrame(returnIP, argCount int) int {
	prevBottom := s.bottom()
	newBottom := len(s.values) - argCount
	s.frames = append(s.frames, Frame{ReturnIP: returnIP, Bottom: newBottom})
	return prevBottom
}

// PoppedFrame is what PopFrame hands back to the dispatch loop so it can
// restore IP and push the single surviving return value.
type PoppedFrame struct {
	ReturnIP    int
	ReturnValue values.Value
	HasValue    bool
}

// PopFrame restores the previous frame, truncating the stack above the
// popped frame's bottom while preserving one top value if present (spec
// §3.5: "everything above that bottom is discarded except a single return
// value that is preserved by swapping").
func (s *Stack) PopFrame() (PoppedFrame, bool) {
	if len(s.frames) == 0 {
		return PoppedFrame{}, false
	}
	frame := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]

	var popped PoppedFrame
	popped.ReturnIP = frame.ReturnIP
	if len(s.values) > frame.Bottom {
		popped.ReturnValue = s.values[len(s.values)-1]
		popped.HasValue = true
	}
	s.values = s.values[:frame.Bottom]
	if popped.HasValue {
		s.values = append(s.values, popped.ReturnValue)
	}
	return popped, true
}

// Depth reports the number of active call frames.
func (s *Stack) Depth() int { return len(s.frames) }

// Clear empties the stack and frame chain. The driver does not call it:
// SendExecute rejects a non-empty stack instead (spec §6.4).
func (s *Stack) Clear() {
	s.values = s.values[:0]
	s.frames = s.frames[:0]
}
