package vm

import (
	"strconv"
	"strings"

	"github.com/wudi/rnvm/opcodes"
	"github.com/wudi/rnvm/protocol"
	"github.com/wudi/rnvm/registry"
	"github.com/wudi/rnvm/unit"
	"github.com/wudi/rnvm/values"
	"github.com/wudi/rnvm/vmerrors"
)

// constructOp handles the Construction family (spec §4.4): opcodes that
// build a new heap-cell value out of operands already on the stack, plus
// the record/variant/closure constructors that also consult the Unit's
// constant pools.
func (v *Vm) constructOp(inst opcodes.Instruction) error {
	switch inst.Op {
	case opcodes.OpVec:
		items, ok := v.Stack.Drain(inst.A)
		if !ok {
			return vmerrors.ErrStackUnderflow
		}
		h := v.Store.Allocate(&values.VecData{Items: items})
		v.Stack.Push(values.NewVecHandle(h))

	case opcodes.OpTuple:
		items, ok := v.Stack.Drain(inst.A)
		if !ok {
			return vmerrors.ErrStackUnderflow
		}
		h := v.Store.Allocate(&values.TupleData{Items: items})
		v.Stack.Push(values.NewTupleHandle(h))

	case opcodes.OpTuple1, opcodes.OpTuple2, opcodes.OpTuple3, opcodes.OpTuple4:
		n := tupleArity(inst.Op)
		items, ok := v.Stack.Drain(n)
		if !ok {
			return vmerrors.ErrStackUnderflow
		}
		h := v.Store.Allocate(&values.TupleData{Items: items})
		v.Stack.Push(values.NewTupleHandle(h))

	case opcodes.OpPushTuple:
		container, ok := v.Stack.Pop()
		if !ok {
			return vmerrors.ErrStackUnderflow
		}
		tup, err := v.tupleData(container)
		if err != nil {
			return err
		}
		for _, item := range tup.Items {
			v.Stack.Push(item)
		}

	case opcodes.OpObject:
		keys, ok := v.Unit.ObjectKeys(inst.A)
		if !ok {
			return &vmerrors.MissingStaticObjectKeys{Slot: inst.A}
		}
		vals, ok := v.Stack.Drain(len(keys))
		if !ok {
			return vmerrors.ErrStackUnderflow
		}
		h := v.Store.Allocate(values.NewObjectData(keys, vals))
		v.Stack.Push(values.NewObjectHandle(h))

	case opcodes.OpRange:
		return v.opRange(inst)

	case opcodes.OpUnitStruct:
		return v.constructRecord(inst.Hash, 0, false)

	case opcodes.OpStruct:
		return v.constructStruct(inst)

	case opcodes.OpUnitVariant:
		return v.constructVariant(inst.Hash, 0, false)

	case opcodes.OpStructVariant:
		return v.constructVariantStruct(inst)

	case opcodes.OpString:
		s, ok := v.Unit.String(inst.A)
		if !ok {
			return vmerrors.ErrMissingEntry
		}
		h := v.Store.Allocate(&values.StringData{Bytes: []byte(s)})
		v.Stack.Push(values.NewStringHandle(h))

	case opcodes.OpBytes:
		b, ok := v.Unit.Bytes(inst.A)
		if !ok {
			return vmerrors.ErrMissingEntry
		}
		cp := make([]byte, len(b))
		copy(cp, b)
		h := v.Store.Allocate(&values.BytesData{Bytes: cp})
		v.Stack.Push(values.NewBytesHandle(h))

	case opcodes.OpStringConcat:
		return v.opStringConcat(inst.A)

	case opcodes.OpFormat:
		spec, _ := v.Unit.String(inst.A)
		val, ok := v.Stack.Pop()
		if !ok {
			return vmerrors.ErrStackUnderflow
		}
		v.Stack.Push(values.NewFormat(val, values.FormatSpec{Spec: spec}))

	case opcodes.OpLoadFn:
		return v.opLoadFn(inst.Hash)

	case opcodes.OpClosure:
		return v.opClosure(inst)
	}
	return nil
}

func tupleArity(op opcodes.Opcode) int {
	switch op {
	case opcodes.OpTuple1:
		return 1
	case opcodes.OpTuple2:
		return 2
	case opcodes.OpTuple3:
		return 3
	case opcodes.OpTuple4:
		return 4
	}
	return 0
}

func (v *Vm) opRange(inst opcodes.Instruction) error {
	var start, end *values.Value
	if inst.B != 0 {
		val, ok := v.Stack.Pop()
		if !ok {
			return vmerrors.ErrStackUnderflow
		}
		end = &val
	}
	if inst.A != 0 {
		val, ok := v.Stack.Pop()
		if !ok {
			return vmerrors.ErrStackUnderflow
		}
		start = &val
	}
	v.Stack.Push(values.NewRange(start, end, inst.C != 0))
	return nil
}

// constructRecord builds a unit or tuple struct from the Unit's RTTI
// table, consuming argc positional values.
func (v *Vm) constructRecord(hash uint64, argc int, hasArgc bool) error {
	rtti, ok := v.Unit.RTTI(hash)
	if !ok {
		if r, ok := v.Ctx.LookupType(hash); ok {
			rtti = r
		} else {
			return &vmerrors.MissingRTTI{Hash: hash}
		}
	}
	var positional []values.Value
	if hasArgc {
		items, ok := v.Stack.Drain(argc)
		if !ok {
			return vmerrors.ErrStackUnderflow
		}
		positional = items
	}
	h := v.Store.Allocate(&values.RecordData{RTTI: rtti, Positional: positional})
	v.Stack.Push(values.NewRecordHandle(h))
	return nil
}

func (v *Vm) constructStruct(inst opcodes.Instruction) error {
	rtti, ok := v.Unit.RTTI(inst.Hash)
	if !ok {
		if r, ok := v.Ctx.LookupType(inst.Hash); ok {
			rtti = r
		} else {
			return &vmerrors.MissingRTTI{Hash: inst.Hash}
		}
	}
	if rtti.Shape == values.ShapeTuple {
		return v.constructRecord(inst.Hash, inst.A, true)
	}
	keys, ok := v.Unit.ObjectKeys(inst.B)
	if !ok {
		return &vmerrors.MissingStaticObjectKeys{Slot: inst.B}
	}
	vals, ok := v.Stack.Drain(len(keys))
	if !ok {
		return vmerrors.ErrStackUnderflow
	}
	h := v.Store.Allocate(&values.RecordData{RTTI: rtti, Keyed: values.NewObjectData(keys, vals)})
	v.Stack.Push(values.NewRecordHandle(h))
	return nil
}

func (v *Vm) constructVariant(hash uint64, argc int, hasArgc bool) error {
	vrtti, ok := v.Unit.VariantRTTI(hash)
	if !ok {
		return &vmerrors.MissingRTTI{Hash: hash}
	}
	var positional []values.Value
	if hasArgc {
		items, ok := v.Stack.Drain(argc)
		if !ok {
			return vmerrors.ErrStackUnderflow
		}
		positional = items
	}
	h := v.Store.Allocate(&values.VariantData{RTTI: vrtti, Positional: positional})
	v.Stack.Push(values.NewVariantHandle(h))
	return nil
}

func (v *Vm) constructVariantStruct(inst opcodes.Instruction) error {
	vrtti, ok := v.Unit.VariantRTTI(inst.Hash)
	if !ok {
		return &vmerrors.MissingRTTI{Hash: inst.Hash}
	}
	if vrtti.Shape == values.ShapeTuple {
		return v.constructVariant(inst.Hash, inst.A, true)
	}
	keys, ok := v.Unit.ObjectKeys(inst.B)
	if !ok {
		return &vmerrors.MissingStaticObjectKeys{Slot: inst.B}
	}
	vals, ok := v.Stack.Drain(len(keys))
	if !ok {
		return vmerrors.ErrStackUnderflow
	}
	h := v.Store.Allocate(&values.VariantData{RTTI: vrtti, Keyed: values.NewObjectData(keys, vals)})
	v.Stack.Push(values.NewVariantHandle(h))
	return nil
}

// opStringConcat renders n values via the STRING_DISPLAY protocol (or a
// built-in fast path for strings/inline scalars) and joins them.
func (v *Vm) opStringConcat(n int) error {
	items, ok := v.Stack.Drain(n)
	if !ok {
		return vmerrors.ErrStackUnderflow
	}
	var b strings.Builder
	for _, item := range items {
		s, err := v.displayValue(item)
		if err != nil {
			return err
		}
		b.WriteString(s)
	}
	h := v.Store.Allocate(&values.StringData{Bytes: []byte(b.String())})
	v.Stack.Push(values.NewStringHandle(h))
	return nil
}

// displayValue renders a value to its textual form, trying inline fast
// paths before falling back to the STRING_DISPLAY protocol (spec §4.4
// "Binary-operator semantics template" pattern applied to display).
func (v *Vm) displayValue(val values.Value) (string, error) {
	switch val.Kind {
	case values.KindUnit:
		return "()", nil
	case values.KindBool:
		b, _ := val.AsBool()
		return strconv.FormatBool(b), nil
	case values.KindInteger:
		i, _ := val.AsInteger()
		return strconv.FormatInt(i, 10), nil
	case values.KindFloat:
		f, _ := val.AsFloat()
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	case values.KindString, values.KindStaticString:
		s, err := stringOperand(v, val)
		if err != nil {
			return "", err
		}
		return s, nil
	}

	v.Stack.Push(val)
	_, err := v.caller.CallInstanceProtocol(v.Stack, registry.ProtocolStringDisplay, 0)
	if err != nil {
		var unsupported *protocol.Unsupported
		if isUnsupported(err, &unsupported) {
			return "", &vmerrors.FormatError{Reason: "no STRING_DISPLAY handler for " + val.Kind.String()}
		}
		return "", err
	}
	result, _ := v.Stack.Pop()
	s, err := stringOperand(v, result)
	if err != nil {
		return "", &vmerrors.FormatError{Reason: "STRING_DISPLAY handler did not return a string"}
	}
	return s, nil
}

// opLoadFn pushes a Function value for a Unit-table or registry function,
// without calling it (spec §4.4 "Construction": LoadFn(hash)).
func (v *Vm) opLoadFn(hash uint64) error {
	if fd, ok := v.Unit.Function(hash); ok {
		fn := functionDataFromDescriptor(fd)
		h := v.Store.Allocate(fn)
		v.Stack.Push(values.NewFunctionHandle(h))
		return nil
	}
	if entry, ok := v.Ctx.LookupFunction(hash); ok {
		fn := &values.FunctionData{Name: entry.Name, Native: entry.Handler}
		h := v.Store.Allocate(fn)
		v.Stack.Push(values.NewFunctionHandle(h))
		return nil
	}
	return &vmerrors.MissingFunction{Hash: hash}
}

func functionDataFromDescriptor(fd *unit.FunctionDescriptor) *values.FunctionData {
	return &values.FunctionData{
		Name:            fd.Name,
		IsOffset:        fd.IsOffset,
		Offset:          fd.Offset,
		Arity:           fd.Arity,
		Style:           fd.Style,
		ConstructorRTTI: fd.ConstructorRTTI,
		VariantRTTI:     fd.VariantRTTI,
	}
}

// opClosure pops n captured values and combines them with the function
// descriptor named by hash into a closure cell (spec §4.4 "Closure
// construction").
func (v *Vm) opClosure(inst opcodes.Instruction) error {
	env, ok := v.Stack.Drain(inst.B)
	if !ok {
		return vmerrors.ErrStackUnderflow
	}
	fd, ok := v.Unit.Function(inst.Hash)
	if !ok {
		return &vmerrors.MissingFunction{Hash: inst.Hash}
	}
	fn := functionDataFromDescriptor(fd)
	fn.IsClosure = true
	fn.Env = env
	h := v.Store.Allocate(fn)
	v.Stack.Push(values.NewFunctionHandle(h))
	return nil
}
