// Package internal holds the small value <-> Go conversions shared by the
// nativemodule/{db,crypto,ids} extensions. A native handler only receives
// the operand stack and an argument count (spec §6.1); these helpers pop
// argc values off it and turn them into the Go types the underlying
// third-party driver (database/sql, edwards25519, uuid) actually wants,
// then push the handler's single return value back.
//
// This mirrors the teacher's builtin implementations (e.g.
// compiler/stdlib/*.go) pulling *values.Value arguments off a call frame
// and converting them to Go primitives before calling into a standard
// library function, generalized from the teacher's PHP value shape to
// this VM's heap-handle-based one.
package internal

import (
	"fmt"

	"github.com/wudi/rnvm/heap"
	"github.com/wudi/rnvm/stack"
	"github.com/wudi/rnvm/values"
)

// Args pops exactly argc values off s, in push order, and binds the heap
// store the stack was constructed with (driver.Vm always binds one; a
// nil store means this handler is being exercised directly in a unit test
// that doesn't need to allocate, and callers should handle that case).
func Args(s *stack.Stack, argc int) ([]values.Value, *heap.Store, error) {
	args, ok := s.Drain(argc)
	if !ok {
		return nil, nil, fmt.Errorf("nativemodule: expected %d arguments, stack underflowed", argc)
	}
	return args, s.Store(), nil
}

// AsString extracts the Go string behind a String-kind value. Static
// strings are not supported here since a native handler has no Unit pool
// to resolve them against (spec §6.1); the compiler is expected to
// materialize a String cell before calling a native function with one.
func AsString(store *heap.Store, v values.Value) (string, error) {
	switch v.Kind {
	case values.KindString:
		h, _ := v.Handle()
		payload, ok := store.Payload(h)
		if !ok {
			return "", fmt.Errorf("nativemodule: stale string handle")
		}
		return payload.(*values.StringData).String(), nil
	default:
		return "", fmt.Errorf("nativemodule: expected a string value, got %s", v.Kind)
	}
}

// AsBytes extracts the raw bytes behind a Bytes-kind value.
func AsBytes(store *heap.Store, v values.Value) ([]byte, error) {
	switch v.Kind {
	case values.KindBytes:
		h, _ := v.Handle()
		payload, ok := store.Payload(h)
		if !ok {
			return nil, fmt.Errorf("nativemodule: stale bytes handle")
		}
		return payload.(*values.BytesData).Bytes, nil
	default:
		return nil, fmt.Errorf("nativemodule: expected a bytes value, got %s", v.Kind)
	}
}

// AsVec extracts the item slice behind a Vec-kind value, used for
// variadic-argument lists (spec §6.1's "args...").
func AsVec(store *heap.Store, v values.Value) ([]values.Value, error) {
	if v.Kind != values.KindVec {
		return nil, fmt.Errorf("nativemodule: expected a vec value, got %s", v.Kind)
	}
	h, _ := v.Handle()
	payload, ok := store.Payload(h)
	if !ok {
		return nil, fmt.Errorf("nativemodule: stale vec handle")
	}
	return payload.(*values.VecData).Items, nil
}

// PushString allocates a new String cell holding s and pushes it.
func PushString(store *heap.Store, stk *stack.Stack, s string) {
	h := store.Allocate(&values.StringData{Bytes: []byte(s)})
	stk.Push(values.NewStringHandle(h))
}

// PushBytes allocates a new Bytes cell holding b and pushes it.
func PushBytes(store *heap.Store, stk *stack.Stack, b []byte) {
	h := store.Allocate(&values.BytesData{Bytes: b})
	stk.Push(values.NewBytesHandle(h))
}

// ToDisplayValue converts an arbitrary driver-returned column value
// (the interface{} database/sql.Rows.Scan produces) into a Value, so
// db.query's row objects are plain script-visible data.
func ToDisplayValue(store *heap.Store, raw interface{}) values.Value {
	switch x := raw.(type) {
	case nil:
		h := store.Allocate(&values.OptionData{})
		return values.NewOptionHandle(h)
	case int64:
		return values.NewInteger(x)
	case float64:
		return values.NewFloat(x)
	case bool:
		return values.NewBool(x)
	case []byte:
		h := store.Allocate(&values.BytesData{Bytes: x})
		return values.NewBytesHandle(h)
	case string:
		h := store.Allocate(&values.StringData{Bytes: []byte(x)})
		return values.NewStringHandle(h)
	default:
		h := store.Allocate(&values.StringData{Bytes: []byte(fmt.Sprintf("%v", x))})
		return values.NewStringHandle(h)
	}
}
