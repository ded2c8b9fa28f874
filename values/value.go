// Package values implements the tagged value union described in spec
// §3.1: a Value is a small, cheap-to-copy discriminant plus payload, where
// every non-inline variant is a handle into the heap cell store (package
// heap) rather than a pointer, so the value type itself never aliases VM
// memory directly.
//
// The struct shape (Kind + an interface{} payload) is carried over from
// the teacher's PHP Value (Type ValueType; Data interface{}), generalized
// from a PHP-specific type list to the Rune-shaped one in spec §3.1.
package values

import "github.com/wudi/rnvm/heap"

// Kind is the value discriminant.
type Kind byte

const (
	KindUnit Kind = iota
	KindBool
	KindByte
	KindChar
	KindInteger
	KindFloat
	KindType         // handle equal to a 64-bit type hash
	KindStaticString // index into the Unit's interned string pool
	KindString       // heap cell: growable UTF-8 text
	KindBytes        // heap cell: growable byte sequence
	KindVec          // heap cell: ordered sequence
	KindTuple        // heap cell: fixed-arity ordered sequence
	KindObject       // heap cell: string-keyed mapping
	KindRecord       // heap cell: RTTI + positional/keyed payload
	KindVariant      // heap cell: enum-tagged Record
	KindOption       // heap cell: Some(Value) | None
	KindResult       // heap cell: Ok(Value) | Err(Value)
	KindFunction     // handle to a callable (see FunctionData)
	KindFuture        // heap cell: suspendable computation
	KindGenerator     // heap cell: stepped suspendable computation
	KindStream        // heap cell: async generator
	KindGeneratorState // heap cell: a generator step's Yielded(v)/Complete(v) outcome
	KindFormat        // pair of a value and a format-spec record
	KindRange         // optional start/end plus inclusivity flag
	KindAny           // heap cell: opaque host object + vtable
)

func (k Kind) String() string {
	switch k {
	case KindUnit:
		return "Unit"
	case KindBool:
		return "Bool"
	case KindByte:
		return "Byte"
	case KindChar:
		return "Char"
	case KindInteger:
		return "Integer"
	case KindFloat:
		return "Float"
	case KindType:
		return "Type"
	case KindStaticString:
		return "StaticString"
	case KindString:
		return "String"
	case KindBytes:
		return "Bytes"
	case KindVec:
		return "Vec"
	case KindTuple:
		return "Tuple"
	case KindObject:
		return "Object"
	case KindRecord:
		return "Record"
	case KindVariant:
		return "Variant"
	case KindOption:
		return "Option"
	case KindResult:
		return "Result"
	case KindFunction:
		return "Function"
	case KindFuture:
		return "Future"
	case KindGenerator:
		return "Generator"
	case KindStream:
		return "Stream"
	case KindGeneratorState:
		return "GeneratorState"
	case KindFormat:
		return "Format"
	case KindRange:
		return "Range"
	case KindAny:
		return "Any"
	default:
		return "Unknown"
	}
}

// IsHandleKind reports whether values of this kind carry a heap.Handle
// payload (as opposed to an inline scalar or a plain index).
func (k Kind) IsHandleKind() bool {
	switch k {
	case KindString, KindBytes, KindVec, KindTuple, KindObject, KindRecord,
		KindVariant, KindOption, KindResult, KindFunction, KindFuture,
		KindGenerator, KindStream, KindGeneratorState, KindAny:
		return true
	default:
		return false
	}
}

// Value is the uniform tagged union every operand stack slot, frame local,
// and native-function argument/return is an instance of.
type Value struct {
	Kind Kind
	// Data holds the inline scalar (bool, byte, rune, int64, float64,
	// uint64 type-hash, int static-string-pool-index) for scalar kinds, a
	// heap.Handle for handle kinds (Function included), or a
	// *FormatData/*RangeData for the composite-but-inline Format/Range kinds.
	Data interface{}
}

// Unit is the singleton no-information value.
var Unit = Value{Kind: KindUnit}

func NewBool(b bool) Value    { return Value{Kind: KindBool, Data: b} }
func NewByte(b byte) Value    { return Value{Kind: KindByte, Data: b} }
func NewChar(c rune) Value    { return Value{Kind: KindChar, Data: c} }
func NewInteger(i int64) Value { return Value{Kind: KindInteger, Data: i} }
func NewFloat(f float64) Value { return Value{Kind: KindFloat, Data: f} }
func NewType(hash uint64) Value { return Value{Kind: KindType, Data: hash} }
func NewStaticString(poolIndex int) Value {
	return Value{Kind: KindStaticString, Data: poolIndex}
}

func newHandleValue(k Kind, h heap.Handle) Value {
	return Value{Kind: k, Data: h}
}

func NewStringHandle(h heap.Handle) Value  { return newHandleValue(KindString, h) }
func NewBytesHandle(h heap.Handle) Value   { return newHandleValue(KindBytes, h) }
func NewVecHandle(h heap.Handle) Value     { return newHandleValue(KindVec, h) }
func NewTupleHandle(h heap.Handle) Value   { return newHandleValue(KindTuple, h) }
func NewObjectHandle(h heap.Handle) Value  { return newHandleValue(KindObject, h) }
func NewRecordHandle(h heap.Handle) Value  { return newHandleValue(KindRecord, h) }
func NewVariantHandle(h heap.Handle) Value { return newHandleValue(KindVariant, h) }
func NewOptionHandle(h heap.Handle) Value  { return newHandleValue(KindOption, h) }
func NewResultHandle(h heap.Handle) Value  { return newHandleValue(KindResult, h) }
func NewFutureHandle(h heap.Handle) Value  { return newHandleValue(KindFuture, h) }
func NewGeneratorHandle(h heap.Handle) Value {
	return newHandleValue(KindGenerator, h)
}
func NewStreamHandle(h heap.Handle) Value { return newHandleValue(KindStream, h) }
func NewAnyHandle(h heap.Handle) Value    { return newHandleValue(KindAny, h) }
func NewFunctionHandle(h heap.Handle) Value {
	return newHandleValue(KindFunction, h)
}
func NewGeneratorStateHandle(h heap.Handle) Value {
	return newHandleValue(KindGeneratorState, h)
}

// Handle extracts the heap handle carried by a handle-kind value. The
// second return is false for non-handle kinds.
func (v Value) Handle() (heap.Handle, bool) {
	if !v.Kind.IsHandleKind() {
		return heap.Handle{}, false
	}
	h, ok := v.Data.(heap.Handle)
	return h, ok
}

func (v Value) IsUnit() bool { return v.Kind == KindUnit }

func (v Value) AsBool() (bool, bool) {
	b, ok := v.Data.(bool)
	return b, ok && v.Kind == KindBool
}

func (v Value) AsInteger() (int64, bool) {
	i, ok := v.Data.(int64)
	return i, ok && v.Kind == KindInteger
}

func (v Value) AsFloat() (float64, bool) {
	f, ok := v.Data.(float64)
	return f, ok && v.Kind == KindFloat
}

func (v Value) AsTypeHash() (uint64, bool) {
	h, ok := v.Data.(uint64)
	return h, ok && v.Kind == KindType
}
