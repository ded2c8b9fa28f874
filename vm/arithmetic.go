package vm

import (
	"math"

	"github.com/wudi/rnvm/opcodes"
	"github.com/wudi/rnvm/protocol"
	"github.com/wudi/rnvm/registry"
	"github.com/wudi/rnvm/values"
	"github.com/wudi/rnvm/vmerrors"
)

// opInfo binds one arithmetic/bitwise/comparison opcode to its protocol
// name and typed fast paths, following the binary-operator semantics
// template: try the inline fast path first, fall back to the protocol
// registry, and raise UnsupportedBinaryOperation if neither applies.
type opInfo struct {
	name      string
	protocol  registry.Protocol
	intOp     func(a, b int64) (int64, error)
	floatOp   func(a, b float64) float64
	boolOp    func(a, b bool) bool
}

var binaryOps = map[opcodes.Opcode]opInfo{
	opcodes.OpAdd: {name: "ADD", protocol: registry.ProtocolAdd, intOp: checkedAdd, floatOp: func(a, b float64) float64 { return a + b }},
	opcodes.OpSub: {name: "SUB", protocol: registry.ProtocolSub, intOp: checkedSub, floatOp: func(a, b float64) float64 { return a - b }},
	opcodes.OpMul: {name: "MUL", protocol: registry.ProtocolMul, intOp: checkedMul, floatOp: func(a, b float64) float64 { return a * b }},
	opcodes.OpDiv: {name: "DIV", protocol: registry.ProtocolDiv, intOp: checkedDiv, floatOp: func(a, b float64) float64 { return a / b }},
	opcodes.OpRem: {name: "REM", protocol: registry.ProtocolRem, intOp: checkedRem, floatOp: math.Mod},

	opcodes.OpBitAnd: {name: "BIT_AND", protocol: registry.ProtocolBitAnd, intOp: infallible(func(a, b int64) int64 { return a & b }), boolOp: func(a, b bool) bool { return a && b }},
	opcodes.OpBitOr:  {name: "BIT_OR", protocol: registry.ProtocolBitOr, intOp: infallible(func(a, b int64) int64 { return a | b }), boolOp: func(a, b bool) bool { return a || b }},
	opcodes.OpBitXor: {name: "BIT_XOR", protocol: registry.ProtocolBitXor, intOp: infallible(func(a, b int64) int64 { return a ^ b }), boolOp: func(a, b bool) bool { return a != b }},
	opcodes.OpShl:    {name: "SHL", protocol: registry.ProtocolShl, intOp: infallible(func(a, b int64) int64 { return a << uint64(b) })},
	opcodes.OpShr:    {name: "SHR", protocol: registry.ProtocolShr, intOp: infallible(func(a, b int64) int64 { return a >> uint64(b) })},

	opcodes.OpLt:  {name: "LT", protocol: registry.ProtocolLt, intOp: cmpOp(func(a, b int64) bool { return a < b }), floatOp: cmpFloat(func(a, b float64) bool { return a < b })},
	opcodes.OpLte: {name: "LTE", protocol: registry.ProtocolLte, intOp: cmpOp(func(a, b int64) bool { return a <= b }), floatOp: cmpFloat(func(a, b float64) bool { return a <= b })},
	opcodes.OpGt:  {name: "GT", protocol: registry.ProtocolGt, intOp: cmpOp(func(a, b int64) bool { return a > b }), floatOp: cmpFloat(func(a, b float64) bool { return a > b })},
	opcodes.OpGte: {name: "GTE", protocol: registry.ProtocolGte, intOp: cmpOp(func(a, b int64) bool { return a >= b }), floatOp: cmpFloat(func(a, b float64) bool { return a >= b })},
	opcodes.OpEq:  {name: "EQ", protocol: registry.ProtocolEq, intOp: cmpOp(func(a, b int64) bool { return a == b }), floatOp: cmpFloat(func(a, b float64) bool { return a == b })},
	opcodes.OpNeq: {name: "EQ", protocol: registry.ProtocolEq, intOp: cmpOp(func(a, b int64) bool { return a != b }), floatOp: cmpFloat(func(a, b float64) bool { return a != b })},

	opcodes.OpAnd: {name: "AND", boolOp: func(a, b bool) bool { return a && b }},
	opcodes.OpOr:  {name: "OR", boolOp: func(a, b bool) bool { return a || b }},
}

// cmpOp/cmpFloat wrap a comparison predicate into the int/float operation
// shape expected by opInfo, pushing 1/0 rather than true/false so the same
// table serves arithmetic and comparison opcodes; binaryOp converts back.
func cmpOp(pred func(a, b int64) bool) func(int64, int64) (int64, error) {
	return func(a, b int64) (int64, error) {
		if pred(a, b) {
			return 1, nil
		}
		return 0, nil
	}
}

func cmpFloat(pred func(a, b float64) bool) func(float64, float64) float64 {
	return func(a, b float64) float64 {
		if pred(a, b) {
			return 1
		}
		return 0
	}
}

func infallible(f func(a, b int64) int64) func(int64, int64) (int64, error) {
	return func(a, b int64) (int64, error) { return f(a, b), nil }
}

func checkedAdd(a, b int64) (int64, error) {
	r := a + b
	if (b > 0 && r < a) || (b < 0 && r > a) {
		return 0, &vmerrors.Overflow{Op: "add"}
	}
	return r, nil
}

func checkedSub(a, b int64) (int64, error) {
	r := a - b
	if (b < 0 && r < a) || (b > 0 && r > a) {
		return 0, &vmerrors.Underflow{Op: "sub"}
	}
	return r, nil
}

func checkedMul(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if a == math.MinInt64 && b == -1 {
		return 0, &vmerrors.Overflow{Op: "mul"}
	}
	r := a * b
	if r/b != a {
		return 0, &vmerrors.Overflow{Op: "mul"}
	}
	return r, nil
}

func checkedDiv(a, b int64) (int64, error) {
	if b == 0 {
		return 0, &vmerrors.DivideByZero{Op: "div"}
	}
	// Go defines MinInt64 / -1 as silently wrapping back to MinInt64
	// (two's-complement truncation) rather than panicking; the spec's
	// checked-arithmetic invariant requires this surface as Overflow
	// instead (spec §8: "Dividing INT_MIN by -1 -> Overflow").
	if a == math.MinInt64 && b == -1 {
		return 0, &vmerrors.Overflow{Op: "div"}
	}
	return a / b, nil
}

func checkedRem(a, b int64) (int64, error) {
	if b == 0 {
		return 0, &vmerrors.DivideByZero{Op: "rem"}
	}
	if a == math.MinInt64 && b == -1 {
		return 0, &vmerrors.Overflow{Op: "rem"}
	}
	return a % b, nil
}

// isComparison reports whether op's result must be surfaced as a Bool
// rather than the raw Integer/Float the table's int/float ops compute in.
func isComparison(op opcodes.Opcode) bool {
	switch op {
	case opcodes.OpLt, opcodes.OpLte, opcodes.OpGt, opcodes.OpGte, opcodes.OpEq, opcodes.OpNeq:
		return true
	default:
		return false
	}
}

func (v *Vm) binaryOp(op opcodes.Opcode) error {
	info := binaryOps[op]

	rhs, ok := v.Stack.Pop()
	if !ok {
		return vmerrors.ErrStackUnderflow
	}
	lhs, ok := v.Stack.Pop()
	if !ok {
		return vmerrors.ErrStackUnderflow
	}

	if info.intOp != nil {
		if li, ok := lhs.AsInteger(); ok {
			if ri, ok := rhs.AsInteger(); ok {
				r, err := info.intOp(li, ri)
				if err != nil {
					return err
				}
				v.Stack.Push(intResult(op, r))
				return nil
			}
		}
	}
	if info.floatOp != nil {
		if lf, ok := lhs.AsFloat(); ok {
			if rf, ok := rhs.AsFloat(); ok {
				r := info.floatOp(lf, rf)
				v.Stack.Push(floatResult(op, r))
				return nil
			}
		}
	}
	if info.boolOp != nil {
		if lb, ok := lhs.AsBool(); ok {
			if rb, ok := rhs.AsBool(); ok {
				v.Stack.Push(values.NewBool(info.boolOp(lb, rb)))
				return nil
			}
		}
	}

	if info.protocol == "" {
		return &vmerrors.UnsupportedBinaryOperation{Op: info.name, LHSType: lhs.Kind.String(), RHSType: rhs.Kind.String()}
	}

	v.Stack.Push(lhs)
	v.Stack.Push(rhs)
	_, err := v.caller.CallInstanceProtocol(v.Stack, info.protocol, 1)
	if err != nil {
		var unsupported *protocol.Unsupported
		if isUnsupported(err, &unsupported) {
			return &vmerrors.UnsupportedBinaryOperation{Op: info.name, LHSType: lhs.Kind.String(), RHSType: rhs.Kind.String()}
		}
		return err
	}
	return nil
}

func isUnsupported(err error, target **protocol.Unsupported) bool {
	u, ok := err.(*protocol.Unsupported)
	if ok {
		*target = u
	}
	return ok
}

func intResult(op opcodes.Opcode, r int64) values.Value {
	if isComparison(op) {
		return values.NewBool(r != 0)
	}
	return values.NewInteger(r)
}

func floatResult(op opcodes.Opcode, r float64) values.Value {
	if isComparison(op) {
		return values.NewBool(r != 0)
	}
	return values.NewFloat(r)
}

// opIs handles Is/IsNot: structural type-hash equality, not a protocol
// call, since "is" asks whether two values share a type, not whether one
// can be combined with the other.
func (v *Vm) opIs(op opcodes.Opcode) error {
	rhs, ok := v.Stack.Pop()
	if !ok {
		return vmerrors.ErrStackUnderflow
	}
	lhs, ok := v.Stack.Pop()
	if !ok {
		return vmerrors.ErrStackUnderflow
	}
	same := lhs.Kind == rhs.Kind
	if op == opcodes.OpIsNot {
		same = !same
	}
	v.Stack.Push(values.NewBool(same))
	return nil
}

// unaryOp handles Neg/Not.
func (v *Vm) unaryOp(op opcodes.Opcode) error {
	operand, ok := v.Stack.Pop()
	if !ok {
		return vmerrors.ErrStackUnderflow
	}

	switch op {
	case opcodes.OpNeg:
		if i, ok := operand.AsInteger(); ok {
			if i == math.MinInt64 {
				return &vmerrors.Overflow{Op: "neg"}
			}
			v.Stack.Push(values.NewInteger(-i))
			return nil
		}
		if f, ok := operand.AsFloat(); ok {
			v.Stack.Push(values.NewFloat(-f))
			return nil
		}
		v.Stack.Push(operand)
		_, err := v.caller.CallInstanceProtocol(v.Stack, registry.ProtocolNeg, 0)
		if err != nil {
			var unsupported *protocol.Unsupported
			if isUnsupported(err, &unsupported) {
				return &vmerrors.UnsupportedBinaryOperation{Op: "NEG", LHSType: operand.Kind.String(), RHSType: "()"}
			}
			return err
		}
		return nil

	case opcodes.OpNot:
		if b, ok := operand.AsBool(); ok {
			v.Stack.Push(values.NewBool(!b))
			return nil
		}
		if i, ok := operand.AsInteger(); ok {
			v.Stack.Push(values.NewInteger(^i))
			return nil
		}
		v.Stack.Push(operand)
		_, err := v.caller.CallInstanceProtocol(v.Stack, registry.ProtocolNot, 0)
		if err != nil {
			var unsupported *protocol.Unsupported
			if isUnsupported(err, &unsupported) {
				return &vmerrors.UnsupportedBinaryOperation{Op: "NOT", LHSType: operand.Kind.String(), RHSType: "()"}
			}
			return err
		}
		return nil
	}
	return nil
}

var assignProtocols = map[opcodes.Opcode]registry.Protocol{
	opcodes.OpAddAssign:    registry.ProtocolAddAssign,
	opcodes.OpSubAssign:    registry.ProtocolSubAssign,
	opcodes.OpMulAssign:    registry.ProtocolMulAssign,
	opcodes.OpDivAssign:    registry.ProtocolDivAssign,
	opcodes.OpRemAssign:    registry.ProtocolRemAssign,
	opcodes.OpBitAndAssign: registry.ProtocolBitAndAssign,
	opcodes.OpBitOrAssign:  registry.ProtocolBitOrAssign,
	opcodes.OpBitXorAssign: registry.ProtocolBitXorAssign,
	opcodes.OpShlAssign:    registry.ProtocolShlAssign,
	opcodes.OpShrAssign:    registry.ProtocolShrAssign,
}

var baseOpForAssign = map[opcodes.Opcode]opcodes.Opcode{
	opcodes.OpAddAssign:    opcodes.OpAdd,
	opcodes.OpSubAssign:    opcodes.OpSub,
	opcodes.OpMulAssign:    opcodes.OpMul,
	opcodes.OpDivAssign:    opcodes.OpDiv,
	opcodes.OpRemAssign:    opcodes.OpRem,
	opcodes.OpBitAndAssign: opcodes.OpBitAnd,
	opcodes.OpBitOrAssign:  opcodes.OpBitOr,
	opcodes.OpBitXorAssign: opcodes.OpBitXor,
	opcodes.OpShlAssign:    opcodes.OpShl,
	opcodes.OpShrAssign:    opcodes.OpShr,
}

// assignOp handles the ten compound-assign opcodes against an
// opcodes.AssignTarget (spec §4.4's Target-specifier instructions):
// rhs is always popped first, then the in-place target is resolved per
// Target.Kind, mirroring the original runtime's target_value! macro
// (rhs popped, then lhs resolved, with a fast path for Offset and a
// fallback through tuple/object field lookup for the others).
func (v *Vm) assignOp(inst opcodes.Instruction) error {
	rhs, ok := v.Stack.Pop()
	if !ok {
		return vmerrors.ErrStackUnderflow
	}
	base := baseOpForAssign[inst.Op]

	switch inst.Target.Kind {
	case opcodes.TargetOffset:
		lhs, ok := v.Stack.AtOffset(inst.Target.Offset)
		if !ok {
			return vmerrors.ErrBoundsCheck
		}
		v.Stack.Push(lhs)
		v.Stack.Push(rhs)
		if err := v.binaryOp(base); err != nil {
			return err
		}
		result, _ := v.Stack.Pop()
		v.Stack.SetAtOffset(inst.Target.Offset, result)
		return nil

	case opcodes.TargetTupleField:
		lhs, ok := v.Stack.Pop()
		if !ok {
			return vmerrors.ErrStackUnderflow
		}
		h, ok := lhs.Handle()
		if !ok {
			return &vmerrors.UnsupportedBinaryOperation{Op: string(assignProtocols[inst.Op]), LHSType: lhs.Kind.String(), RHSType: rhs.Kind.String()}
		}
		payload, ok := v.Store.Payload(h)
		if !ok {
			return vmerrors.ErrInvalidHandle
		}
		if tup, ok := payload.(*values.TupleData); ok && inst.Target.FieldIndex >= 0 && inst.Target.FieldIndex < len(tup.Items) {
			v.Stack.Push(tup.Items[inst.Target.FieldIndex])
			v.Stack.Push(rhs)
			if err := v.binaryOp(base); err != nil {
				return err
			}
			result, _ := v.Stack.Pop()
			tup.Items[inst.Target.FieldIndex] = result
			return nil
		}
		return &vmerrors.MissingIndex{Target: lhs.Kind.String(), Index: int64(inst.Target.FieldIndex)}

	case opcodes.TargetObjectField:
		lhs, ok := v.Stack.Pop()
		if !ok {
			return vmerrors.ErrStackUnderflow
		}
		field, ok := v.Unit.String(inst.Target.NameSlot)
		if !ok {
			return vmerrors.ErrMissingEntry
		}
		h, ok := lhs.Handle()
		if !ok {
			return &vmerrors.MissingField{Target: lhs.Kind.String(), Field: field}
		}
		payload, ok := v.Store.Payload(h)
		if !ok {
			return vmerrors.ErrInvalidHandle
		}
		if obj, ok := payload.(*values.ObjectData); ok {
			cur, ok := obj.Get(field)
			if !ok {
				return &vmerrors.MissingField{Target: lhs.Kind.String(), Field: field}
			}
			v.Stack.Push(cur)
			v.Stack.Push(rhs)
			if err := v.binaryOp(base); err != nil {
				return err
			}
			result, _ := v.Stack.Pop()
			obj.Set(field, result)
			return nil
		}
		return &vmerrors.MissingField{Target: lhs.Kind.String(), Field: field}
	}
	return nil
}
