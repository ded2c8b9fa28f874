package vm

import (
	"github.com/wudi/rnvm/opcodes"
	"github.com/wudi/rnvm/values"
	"github.com/wudi/rnvm/vmerrors"
)

// matchOp handles the Matching family (spec §4.4): structural tests used
// by compiled pattern-match arms. Every variant here pops its subject and
// pushes a Bool verdict, so match arms compose with JumpIf/JumpIfNotOrPop
// without any special-casing in the control-flow opcodes.
func (v *Vm) matchOp(inst opcodes.Instruction) error {
	switch inst.Op {
	case opcodes.OpMatchSequence:
		return v.matchSequence(inst)
	case opcodes.OpMatchType:
		return v.matchType(inst.Hash)
	case opcodes.OpMatchVariant:
		return v.matchVariant(inst)
	case opcodes.OpMatchBuiltIn:
		return v.matchBuiltIn(inst.Check)
	case opcodes.OpMatchObject:
		return v.matchObject(inst)
	case opcodes.OpIsUnit:
		return v.pushMatch(func(val values.Value) bool { return val.IsUnit() })
	case opcodes.OpEqByte:
		return v.eqScalar(func(a, b values.Value) bool {
			ab, aok := a.Data.(byte)
			bb, bok := b.Data.(byte)
			return aok && bok && a.Kind == values.KindByte && b.Kind == values.KindByte && ab == bb
		})
	case opcodes.OpEqChar:
		return v.eqScalar(func(a, b values.Value) bool {
			ar, aok := a.Data.(rune)
			br, bok := b.Data.(rune)
			return aok && bok && a.Kind == values.KindChar && b.Kind == values.KindChar && ar == br
		})
	case opcodes.OpEqInteger:
		return v.eqScalar(func(a, b values.Value) bool {
			ai, aok := a.AsInteger()
			bi, bok := b.AsInteger()
			return aok && bok && ai == bi
		})
	case opcodes.OpEqBool:
		return v.eqScalar(func(a, b values.Value) bool {
			ab, aok := a.AsBool()
			bb, bok := b.AsBool()
			return aok && bok && ab == bb
		})
	case opcodes.OpEqString:
		return v.eqString()
	case opcodes.OpEqBytes:
		return v.eqBytes()
	}
	return nil
}

func (v *Vm) pushMatch(pred func(values.Value) bool) error {
	val, ok := v.Stack.Pop()
	if !ok {
		return vmerrors.ErrStackUnderflow
	}
	v.Stack.Push(values.NewBool(pred(val)))
	return nil
}

func (v *Vm) eqScalar(pred func(a, b values.Value) bool) error {
	b, ok := v.Stack.Pop()
	if !ok {
		return vmerrors.ErrStackUnderflow
	}
	a, ok := v.Stack.Pop()
	if !ok {
		return vmerrors.ErrStackUnderflow
	}
	v.Stack.Push(values.NewBool(pred(a, b)))
	return nil
}

func (v *Vm) eqString() error {
	b, ok := v.Stack.Pop()
	if !ok {
		return vmerrors.ErrStackUnderflow
	}
	a, ok := v.Stack.Pop()
	if !ok {
		return vmerrors.ErrStackUnderflow
	}
	// Static strings compare by pool index (spec §4.4: "Equality by index
	// is how the dispatch loop implements cheap static-string
	// comparisons"); anything else falls back to byte comparison.
	if a.Kind == values.KindStaticString && b.Kind == values.KindStaticString {
		ai, _ := a.Data.(int)
		bi, _ := b.Data.(int)
		v.Stack.Push(values.NewBool(ai == bi))
		return nil
	}
	as, err := stringOperand(v, a)
	if err != nil {
		v.Stack.Push(values.NewBool(false))
		return nil
	}
	bs, err := stringOperand(v, b)
	if err != nil {
		v.Stack.Push(values.NewBool(false))
		return nil
	}
	v.Stack.Push(values.NewBool(as == bs))
	return nil
}

func (v *Vm) eqBytes() error {
	b, ok := v.Stack.Pop()
	if !ok {
		return vmerrors.ErrStackUnderflow
	}
	a, ok := v.Stack.Pop()
	if !ok {
		return vmerrors.ErrStackUnderflow
	}
	ah, aok := a.Handle()
	bh, bok := b.Handle()
	if !aok || !bok {
		v.Stack.Push(values.NewBool(false))
		return nil
	}
	ap, _ := v.Store.Payload(ah)
	bp, _ := v.Store.Payload(bh)
	abytes, aok := ap.(*values.BytesData)
	bbytes, bok := bp.(*values.BytesData)
	if !aok || !bok || len(abytes.Bytes) != len(bbytes.Bytes) {
		v.Stack.Push(values.NewBool(false))
		return nil
	}
	for i := range abytes.Bytes {
		if abytes.Bytes[i] != bbytes.Bytes[i] {
			v.Stack.Push(values.NewBool(false))
			return nil
		}
	}
	v.Stack.Push(values.NewBool(true))
	return nil
}

// matchSequence tests that the subject is a Vec/Tuple of a given length,
// exact meaning no extra trailing elements are tolerated (inst.B != 0) vs.
// at-least-len (inst.B == 0, used by slice-rest patterns).
func (v *Vm) matchSequence(inst opcodes.Instruction) error {
	val, ok := v.Stack.Pop()
	if !ok {
		return vmerrors.ErrStackUnderflow
	}
	var length int
	matches := false
	switch inst.Check {
	case opcodes.TypeCheckVec:
		if h, ok := val.Handle(); ok && val.Kind == values.KindVec {
			if payload, ok := v.Store.Payload(h); ok {
				length = len(payload.(*values.VecData).Items)
				matches = true
			}
		}
	case opcodes.TypeCheckTuple:
		if h, ok := val.Handle(); ok && val.Kind == values.KindTuple {
			if payload, ok := v.Store.Payload(h); ok {
				length = len(payload.(*values.TupleData).Items)
				matches = true
			}
		}
	}
	if !matches {
		v.Stack.Push(values.NewBool(false))
		return nil
	}
	if inst.B != 0 {
		v.Stack.Push(values.NewBool(length == inst.A))
	} else {
		v.Stack.Push(values.NewBool(length >= inst.A))
	}
	return nil
}

func (v *Vm) matchType(hash uint64) error {
	val, ok := v.Stack.Pop()
	if !ok {
		return vmerrors.ErrStackUnderflow
	}
	matched := false
	if h, ok := val.Handle(); ok {
		if payload, ok := v.Store.Payload(h); ok {
			if rec, ok := payload.(*values.RecordData); ok {
				matched = rec.RTTI.TypeHash == hash
			}
		}
	}
	v.Stack.Push(values.NewBool(matched))
	return nil
}

func (v *Vm) matchVariant(inst opcodes.Instruction) error {
	val, ok := v.Stack.Pop()
	if !ok {
		return vmerrors.ErrStackUnderflow
	}
	matched := false
	if h, ok := val.Handle(); ok {
		if payload, ok := v.Store.Payload(h); ok {
			if variant, ok := payload.(*values.VariantData); ok {
				matched = variant.RTTI.EnumHash == inst.Hash && variant.RTTI.VariantHash == uint64(inst.A)
			}
		}
	}
	v.Stack.Push(values.NewBool(matched))
	return nil
}

func (v *Vm) matchBuiltIn(check opcodes.TypeCheck) error {
	val, ok := v.Stack.Pop()
	if !ok {
		return vmerrors.ErrStackUnderflow
	}
	matched := false
	switch check {
	case opcodes.TypeCheckTuple:
		matched = val.Kind == values.KindTuple
	case opcodes.TypeCheckVec:
		matched = val.Kind == values.KindVec
	case opcodes.TypeCheckObject:
		matched = val.Kind == values.KindObject
	case opcodes.TypeCheckString:
		matched = val.Kind == values.KindString || val.Kind == values.KindStaticString
	case opcodes.TypeCheckBytes:
		matched = val.Kind == values.KindBytes
	case opcodes.TypeCheckOption:
		matched = val.Kind == values.KindOption
	case opcodes.TypeCheckResult:
		matched = val.Kind == values.KindResult
	}
	v.Stack.Push(values.NewBool(matched))
	return nil
}

// matchObject tests that the subject is an Object carrying (at least, or
// exactly, depending on exact) the static key set named by the key-slot,
// mirroring matchSequence's exact/at-least split.
func (v *Vm) matchObject(inst opcodes.Instruction) error {
	val, ok := v.Stack.Pop()
	if !ok {
		return vmerrors.ErrStackUnderflow
	}
	keys, ok := v.Unit.ObjectKeys(inst.A)
	if !ok {
		return &vmerrors.MissingStaticObjectKeys{Slot: inst.A}
	}
	if val.Kind != values.KindObject {
		v.Stack.Push(values.NewBool(false))
		return nil
	}
	h, _ := val.Handle()
	payload, ok := v.Store.Payload(h)
	if !ok {
		v.Stack.Push(values.NewBool(false))
		return nil
	}
	obj := payload.(*values.ObjectData)
	for _, k := range keys {
		if _, ok := obj.Get(k); !ok {
			v.Stack.Push(values.NewBool(false))
			return nil
		}
	}
	if inst.B != 0 && len(obj.Entries) != len(keys) {
		v.Stack.Push(values.NewBool(false))
		return nil
	}
	v.Stack.Push(values.NewBool(true))
	return nil
}

// variantOp handles the Sum-type sugar family: Some/None/Ok/Err
// construction.
func (v *Vm) variantOp(inst opcodes.Instruction) error {
	switch inst.Op {
	case opcodes.OpVariantSome:
		val, ok := v.Stack.Pop()
		if !ok {
			return vmerrors.ErrStackUnderflow
		}
		h := v.Store.Allocate(&values.OptionData{Value: &val})
		v.Stack.Push(values.NewOptionHandle(h))
	case opcodes.OpVariantNone:
		h := v.Store.Allocate(&values.OptionData{})
		v.Stack.Push(values.NewOptionHandle(h))
	case opcodes.OpVariantOk:
		val, ok := v.Stack.Pop()
		if !ok {
			return vmerrors.ErrStackUnderflow
		}
		h := v.Store.Allocate(&values.ResultData{Ok: &val})
		v.Stack.Push(values.NewResultHandle(h))
	case opcodes.OpVariantErr:
		val, ok := v.Stack.Pop()
		if !ok {
			return vmerrors.ErrStackUnderflow
		}
		h := v.Store.Allocate(&values.ResultData{Err: &val})
		v.Stack.Push(values.NewResultHandle(h))
	}
	return nil
}
