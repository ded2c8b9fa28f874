package vm

import (
	"github.com/wudi/rnvm/opcodes"
	"github.com/wudi/rnvm/protocol"
	"github.com/wudi/rnvm/registry"
	"github.com/wudi/rnvm/values"
	"github.com/wudi/rnvm/vmerrors"
)

// indexOp handles the Indexing family (spec §4.4): generic value-keyed
// Index(Get|Set) plus the specialized Tuple/Object field accessors that
// avoid a hash lookup when the compiler already knows the field's static
// position.
func (v *Vm) indexOp(inst opcodes.Instruction) error {
	switch inst.Op {
	case opcodes.OpIndexGet:
		return v.indexGet()
	case opcodes.OpIndexSet:
		return v.indexSet()
	case opcodes.OpTupleIndexGet:
		return v.tupleIndexGet(inst.A)
	case opcodes.OpTupleIndexSet:
		return v.tupleIndexSet(inst.A)
	case opcodes.OpTupleIndexGetAt:
		return v.tupleIndexGetAt(inst.A, inst.B)
	case opcodes.OpObjectIndexGet:
		return v.objectIndexGet(inst.A)
	case opcodes.OpObjectIndexSet:
		return v.objectIndexSet(inst.A)
	case opcodes.OpObjectIndexGetAt:
		return v.objectIndexGetAt(inst.A, inst.B)
	}
	return nil
}

func (v *Vm) indexGet() error {
	idx, ok := v.Stack.Pop()
	if !ok {
		return vmerrors.ErrStackUnderflow
	}
	container, ok := v.Stack.Pop()
	if !ok {
		return vmerrors.ErrStackUnderflow
	}

	if container.Kind == values.KindVec {
		h, _ := container.Handle()
		payload, ok := v.Store.Payload(h)
		if !ok {
			return vmerrors.ErrInvalidHandle
		}
		vec := payload.(*values.VecData)
		i, ok := idx.AsInteger()
		if !ok || i < 0 || int(i) >= len(vec.Items) {
			return &vmerrors.MissingIndex{Target: "vec", Index: i}
		}
		v.Stack.Push(vec.Items[i])
		return nil
	}
	if container.Kind == values.KindObject {
		h, _ := container.Handle()
		payload, ok := v.Store.Payload(h)
		if !ok {
			return vmerrors.ErrInvalidHandle
		}
		obj := payload.(*values.ObjectData)
		key, err := stringOperand(v, idx)
		if err != nil {
			return err
		}
		val, ok := obj.Get(key)
		if !ok {
			return &vmerrors.MissingField{Target: "object", Field: key}
		}
		v.Stack.Push(val)
		return nil
	}

	v.Stack.Push(container)
	v.Stack.Push(idx)
	_, err := v.caller.CallInstanceProtocol(v.Stack, registry.ProtocolIndexGet, 1)
	if err != nil {
		var unsupported *protocol.Unsupported
		if isUnsupported(err, &unsupported) {
			return &vmerrors.MissingIndex{Target: container.Kind.String(), Index: 0}
		}
		return err
	}
	return nil
}

func (v *Vm) indexSet() error {
	val, ok := v.Stack.Pop()
	if !ok {
		return vmerrors.ErrStackUnderflow
	}
	idx, ok := v.Stack.Pop()
	if !ok {
		return vmerrors.ErrStackUnderflow
	}
	container, ok := v.Stack.Pop()
	if !ok {
		return vmerrors.ErrStackUnderflow
	}

	if container.Kind == values.KindVec {
		h, _ := container.Handle()
		payload, ok := v.Store.Payload(h)
		if !ok {
			return vmerrors.ErrInvalidHandle
		}
		vec := payload.(*values.VecData)
		i, ok := idx.AsInteger()
		if !ok || i < 0 || int(i) >= len(vec.Items) {
			return &vmerrors.MissingIndex{Target: "vec", Index: i}
		}
		vec.Items[i] = val
		return nil
	}
	if container.Kind == values.KindObject {
		h, _ := container.Handle()
		payload, ok := v.Store.Payload(h)
		if !ok {
			return vmerrors.ErrInvalidHandle
		}
		obj := payload.(*values.ObjectData)
		key, err := stringOperand(v, idx)
		if err != nil {
			return err
		}
		obj.Set(key, val)
		return nil
	}

	v.Stack.Push(container)
	v.Stack.Push(idx)
	v.Stack.Push(val)
	_, err := v.caller.CallInstanceProtocol(v.Stack, registry.ProtocolIndexSet, 2)
	if err != nil {
		var unsupported *protocol.Unsupported
		if isUnsupported(err, &unsupported) {
			return &vmerrors.MissingIndex{Target: container.Kind.String(), Index: 0}
		}
		return err
	}
	v.Stack.Pop() // IndexSet protocol handlers still leave a () result; discard it
	return nil
}

// stringOperand extracts a Go string from a KindString/KindStaticString
// value used as an object key.
func stringOperand(v *Vm, val values.Value) (string, error) {
	if val.Kind == values.KindStaticString {
		idx, _ := val.Data.(int)
		s, ok := v.Unit.String(idx)
		if !ok {
			return "", vmerrors.ErrMissingEntry
		}
		return s, nil
	}
	h, ok := val.Handle()
	if !ok {
		return "", &vmerrors.MissingField{Target: val.Kind.String(), Field: "<non-string key>"}
	}
	payload, ok := v.Store.Payload(h)
	if !ok {
		return "", vmerrors.ErrInvalidHandle
	}
	sd, ok := payload.(*values.StringData)
	if !ok {
		return "", &vmerrors.MissingField{Target: val.Kind.String(), Field: "<non-string key>"}
	}
	return sd.String(), nil
}

func (v *Vm) tupleData(container values.Value) (*values.TupleData, error) {
	h, ok := container.Handle()
	if !ok {
		return nil, &vmerrors.MissingIndex{Target: container.Kind.String(), Index: 0}
	}
	payload, ok := v.Store.Payload(h)
	if !ok {
		return nil, vmerrors.ErrInvalidHandle
	}
	tup, ok := payload.(*values.TupleData)
	if !ok {
		return nil, &vmerrors.MissingIndex{Target: container.Kind.String(), Index: 0}
	}
	return tup, nil
}

func (v *Vm) objectData(container values.Value) (*values.ObjectData, error) {
	h, ok := container.Handle()
	if !ok {
		return nil, &vmerrors.MissingField{Target: container.Kind.String()}
	}
	payload, ok := v.Store.Payload(h)
	if !ok {
		return nil, vmerrors.ErrInvalidHandle
	}
	obj, ok := payload.(*values.ObjectData)
	if !ok {
		return nil, &vmerrors.MissingField{Target: container.Kind.String()}
	}
	return obj, nil
}

func (v *Vm) tupleIndexGet(field int) error {
	container, ok := v.Stack.Pop()
	if !ok {
		return vmerrors.ErrStackUnderflow
	}
	tup, err := v.tupleData(container)
	if err != nil {
		return err
	}
	if field < 0 || field >= len(tup.Items) {
		return &vmerrors.MissingIndex{Target: "tuple", Index: int64(field)}
	}
	v.Stack.Push(tup.Items[field])
	return nil
}

func (v *Vm) tupleIndexSet(field int) error {
	val, ok := v.Stack.Pop()
	if !ok {
		return vmerrors.ErrStackUnderflow
	}
	container, ok := v.Stack.Pop()
	if !ok {
		return vmerrors.ErrStackUnderflow
	}
	tup, err := v.tupleData(container)
	if err != nil {
		return err
	}
	if field < 0 || field >= len(tup.Items) {
		return &vmerrors.MissingIndex{Target: "tuple", Index: int64(field)}
	}
	tup.Items[field] = val
	return nil
}

func (v *Vm) tupleIndexGetAt(offset, field int) error {
	container, ok := v.Stack.AtOffset(offset)
	if !ok {
		return vmerrors.ErrBoundsCheck
	}
	tup, err := v.tupleData(container)
	if err != nil {
		return err
	}
	if field < 0 || field >= len(tup.Items) {
		return &vmerrors.MissingIndex{Target: "tuple", Index: int64(field)}
	}
	v.Stack.Push(tup.Items[field])
	return nil
}

func (v *Vm) objectIndexGet(nameSlot int) error {
	container, ok := v.Stack.Pop()
	if !ok {
		return vmerrors.ErrStackUnderflow
	}
	field, ok := v.Unit.String(nameSlot)
	if !ok {
		return vmerrors.ErrMissingEntry
	}
	obj, err := v.objectData(container)
	if err != nil {
		return err
	}
	val, ok := obj.Get(field)
	if !ok {
		return &vmerrors.MissingField{Target: "object", Field: field}
	}
	v.Stack.Push(val)
	return nil
}

func (v *Vm) objectIndexSet(nameSlot int) error {
	val, ok := v.Stack.Pop()
	if !ok {
		return vmerrors.ErrStackUnderflow
	}
	container, ok := v.Stack.Pop()
	if !ok {
		return vmerrors.ErrStackUnderflow
	}
	field, ok := v.Unit.String(nameSlot)
	if !ok {
		return vmerrors.ErrMissingEntry
	}
	obj, err := v.objectData(container)
	if err != nil {
		return err
	}
	obj.Set(field, val)
	return nil
}

func (v *Vm) objectIndexGetAt(offset, nameSlot int) error {
	container, ok := v.Stack.AtOffset(offset)
	if !ok {
		return vmerrors.ErrBoundsCheck
	}
	field, ok := v.Unit.String(nameSlot)
	if !ok {
		return vmerrors.ErrMissingEntry
	}
	obj, err := v.objectData(container)
	if err != nil {
		return err
	}
	val, ok := obj.Get(field)
	if !ok {
		return &vmerrors.MissingField{Target: "object", Field: field}
	}
	v.Stack.Push(val)
	return nil
}
