// Package protocol implements the protocol caller (spec §4.5): the single
// chokepoint through which the dispatch loop falls back to a registered
// operator/protocol handler when no typed fast path applies. It is kept
// separate from package vm so the call/restore discipline it enforces
// (push receiver and arguments, invoke, restore the stack exactly on
// Unsupported) is testable without a full dispatch loop, mirroring how
// the teacher keeps its builtin-function invocation helper
// (registry.CallBuiltin) separate from the opcode switch in vm/execute.go.
package protocol

import (
	"github.com/wudi/rnvm/registry"
	"github.com/wudi/rnvm/stack"
	"github.com/wudi/rnvm/values"
)

// Unsupported reports that no handler was registered for a protocol call;
// the dispatch loop turns this into the appropriate typed error
// (UnsupportedBinaryOperation, MissingField, MissingIndex, ...) since only
// it knows which opcode was being serviced.
type Unsupported struct {
	TypeHash Hash
	Protocol registry.Protocol
}

func (u *Unsupported) Error() string {
	return "protocol: no handler for " + string(u.Protocol) + " on type " + hashString(u.TypeHash)
}

// Hash is an alias so callers don't need to import registry just to spell
// the type of a type hash.
type Hash = registry.Hash

// Caller invokes protocol handlers found in a Context against a Stack.
// It holds no state of its own; it exists so a VM can hold one Caller per
// Context rather than reaching into registry.Context lookups inline at
// every call site in the dispatch loop.
type Caller struct {
	ctx *registry.Context
}

// NewCaller builds a Caller bound to ctx.
func NewCaller(ctx *registry.Context) *Caller {
	return &Caller{ctx: ctx}
}

// typeHashOf returns the type hash to key protocol lookup by, for a given
// runtime value. Inline kinds dispatch by a fixed per-kind hash; handle
// kinds dispatch by the RTTI/type hash carried in their payload where one
// exists, falling back to a fixed per-kind hash for built-in containers
// (Vec, Object, String, ...) that have no user-assigned type.
func typeHashOf(v values.Value) Hash {
	switch v.Kind {
	case values.KindInteger:
		return builtinTypeHash("integer")
	case values.KindFloat:
		return builtinTypeHash("float")
	case values.KindBool:
		return builtinTypeHash("bool")
	case values.KindByte:
		return builtinTypeHash("byte")
	case values.KindChar:
		return builtinTypeHash("char")
	case values.KindString, values.KindStaticString:
		return builtinTypeHash("string")
	case values.KindBytes:
		return builtinTypeHash("bytes")
	case values.KindVec:
		return builtinTypeHash("vec")
	case values.KindTuple:
		return builtinTypeHash("tuple")
	case values.KindObject:
		return builtinTypeHash("object")
	case values.KindOption:
		return builtinTypeHash("option")
	case values.KindResult:
		return builtinTypeHash("result")
	case values.KindRange:
		return builtinTypeHash("range")
	default:
		if h, ok := v.AsTypeHash(); ok {
			return h
		}
		return builtinTypeHash(v.Kind.String())
	}
}

func builtinTypeHash(name string) Hash {
	return registry.HashName("builtin/" + name)
}

// CallInstanceProtocol performs the Instance-protocol call from spec
// §4.5: receiver and argc arguments are already on top of s (receiver at
// offset argc below the top, per the call's own convention); this looks
// up the combined hash, invokes the handler with the receiver included in
// argc+1 values, and leaves exactly one value on top on success.
//
// On Unsupported, the stack is restored to the state it had on entry
// (receiver and all arguments still present) so the dispatch loop's
// caller can decide how to surface the failure (e.g. pop them itself
// before raising UnsupportedBinaryOperation).
func (c *Caller) CallInstanceProtocol(s *stack.Stack, p registry.Protocol, argc int) (values.Value, error) {
	receiver, ok := s.AtOffsetFromTop(argc)
	if !ok {
		return values.Value{}, &Unsupported{Protocol: p}
	}
	typeHash := typeHashOf(receiver)

	entry, ok := c.ctx.LookupInstanceFunction(registry.InstanceHash(typeHash, p.Hash()))
	if !ok {
		entry, ok = c.ctx.LookupProtocol(typeHash, p)
	}
	if !ok {
		return values.Value{}, &Unsupported{TypeHash: typeHash, Protocol: p}
	}

	if err := entry.Handler(s, argc+1); err != nil {
		return values.Value{}, err
	}
	result, ok := s.Peek()
	if !ok {
		return values.Value{}, &Unsupported{TypeHash: typeHash, Protocol: p}
	}
	return result, nil
}

// CallFieldProtocol performs the Field-protocol call from spec §4.5: get/
// set on a named field, where the field name's hash is combined with the
// protocol hash before the type-hash combine, so distinct fields never
// collide in the protocol handler map.
func (c *Caller) CallFieldProtocol(s *stack.Stack, p registry.Protocol, fieldHash Hash, argc int) (values.Value, error) {
	receiver, ok := s.AtOffsetFromTop(argc)
	if !ok {
		return values.Value{}, &Unsupported{Protocol: p}
	}
	typeHash := typeHashOf(receiver)

	entry, ok := c.ctx.LookupFieldProtocol(typeHash, fieldHash, p)
	if !ok {
		return values.Value{}, &Unsupported{TypeHash: typeHash, Protocol: p}
	}

	if err := entry.Handler(s, argc+1); err != nil {
		return values.Value{}, err
	}
	result, ok := s.Peek()
	if !ok {
		return values.Value{}, &Unsupported{TypeHash: typeHash, Protocol: p}
	}
	return result, nil
}

func hashString(h Hash) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = hexDigits[h&0xf]
		h >>= 4
	}
	return string(buf)
}
