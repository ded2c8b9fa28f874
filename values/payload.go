package values

// This file defines the concrete payload types stored behind each
// handle-kind Value. The growable byte-vector/string containers
// themselves are out of scope (spec §1 non-goals); StringData/BytesData
// wrap a plain Go []byte, which already gives length+capacity growth
// semantics without a bespoke container.

// StringData is the payload of a KindString heap cell: growable UTF-8
// text. Cells holding it are allocated through the caller's heap.Store;
// this package only defines the shape.
type StringData struct {
	Bytes []byte
}

func (s *StringData) String() string { return string(s.Bytes) }

// BytesData is the payload of a KindBytes heap cell.
type BytesData struct {
	Bytes []byte
}

// VecData is the payload of a KindVec heap cell: an ordered, growable
// sequence of values.
type VecData struct {
	Items []Value
}

// TupleData is the payload of a KindTuple heap cell: a fixed-arity
// ordered sequence.
type TupleData struct {
	Items []Value
}

// ObjectEntry is one key/value pair of an Object, in insertion order.
type ObjectEntry struct {
	Key   string
	Value Value
}

// ObjectData is the payload of a KindObject heap cell: a string-keyed
// mapping that preserves insertion order (matching the Unit's
// object-key-lists, which are themselves ordered).
type ObjectData struct {
	Entries []ObjectEntry
	index   map[string]int
}

// NewObjectData builds an ObjectData from parallel key/value slices (as
// produced by the Object(key-slot) construction opcode).
func NewObjectData(keys []string, vals []Value) *ObjectData {
	o := &ObjectData{
		Entries: make([]ObjectEntry, len(keys)),
		index:   make(map[string]int, len(keys)),
	}
	for i, k := range keys {
		o.Entries[i] = ObjectEntry{Key: k, Value: vals[i]}
		o.index[k] = i
	}
	return o
}

func (o *ObjectData) Get(key string) (Value, bool) {
	i, ok := o.index[key]
	if !ok {
		return Value{}, false
	}
	return o.Entries[i].Value, true
}

func (o *ObjectData) Set(key string, v Value) {
	if i, ok := o.index[key]; ok {
		o.Entries[i].Value = v
		return
	}
	if o.index == nil {
		o.index = make(map[string]int)
	}
	o.index[key] = len(o.Entries)
	o.Entries = append(o.Entries, ObjectEntry{Key: key, Value: v})
}

// RecordShape distinguishes a Record/Variant's payload shape.
type RecordShape byte

const (
	ShapeUnit RecordShape = iota
	ShapeTuple
	ShapeStruct
)

// RTTI describes a struct-like (or unit-like / tuple-like) record type:
// its type hash, display name, and field-key list when struct-shaped.
// Populated from the Unit's RTTI table (spec §3.6) or an embedder type
// registration (spec §3.7).
type RTTI struct {
	TypeHash  uint64
	Name      string
	Shape     RecordShape
	FieldKeys []string // meaningful when Shape == ShapeStruct
}

// VariantRTTI describes one variant of an enum: the enclosing enum's hash,
// this variant's own hash, its display name, and its payload shape.
type VariantRTTI struct {
	EnumHash    uint64
	VariantHash uint64
	Name        string
	Shape       RecordShape
	FieldKeys   []string
}

// RecordData is the payload of a KindRecord heap cell.
type RecordData struct {
	RTTI       *RTTI
	Positional []Value // Shape == ShapeTuple
	Keyed      *ObjectData // Shape == ShapeStruct
}

// VariantData is the payload of a KindVariant heap cell: like RecordData
// but additionally tagged with the enclosing enum's hash.
type VariantData struct {
	RTTI       *VariantRTTI
	Positional []Value
	Keyed      *ObjectData
}

// OptionData is the payload of a KindOption heap cell: Some(v) when Value
// is non-nil, None otherwise.
type OptionData struct {
	Value *Value
}

func (o *OptionData) IsSome() bool { return o.Value != nil }

// ResultData is the payload of a KindResult heap cell: exactly one of Ok
// or Err is set.
type ResultData struct {
	Ok  *Value
	Err *Value
}

func (r *ResultData) IsOk() bool { return r.Ok != nil }

// CallStyle distinguishes how a function-shaped value's VM offset should
// be driven by the dispatch loop (spec §4.4 "Dispatch of a call
// instruction").
type CallStyle byte

const (
	CallDirect CallStyle = iota
	CallAsync
	CallGenerator
	CallStream
)

// NativeHandler is the uniform native-function signature (spec §6.1): pop
// exactly argc values from the stack, push exactly one, return an error on
// failure. The stack type itself is supplied opaquely (as `interface{}`)
// to avoid an import cycle between values and stack; the vm package
// narrows it back to *stack.Stack before invoking.
type NativeHandler func(vmStack interface{}, argc int) error

// FunctionData is the payload of a KindFunction heap cell. Exactly one of
// the constructor shapes below is populated, matching spec §3.1's "handle
// to a callable: either a VM offset+arity+call style..., a native
// handler..., a tuple/unit constructor bound to RTTI..., or a closure".
type FunctionData struct {
	Name string

	// VM-offset function (direct/async/generator/stream).
	IsOffset bool
	Offset   int
	Arity    int
	Style    CallStyle

	// Native handler, registered by the embedder.
	Native NativeHandler

	// Tuple/unit constructor bound to RTTI (struct or enum variant).
	ConstructorRTTI *RTTI
	VariantRTTI     *VariantRTTI

	// Closure: a VM-offset function plus its captured environment,
	// pushed ahead of the arguments into the new frame (spec §4.4
	// "Closure construction").
	IsClosure bool
	Env       []Value
}

// GeneratorStateData is the payload of a KindGeneratorState heap cell: the
// outcome of stepping a Generator or Stream once (spec §8 scenario 5).
type GeneratorStateData struct {
	Done  bool
	Value Value
}

// FutureData is the payload of a KindFuture heap cell (spec §4.6, §6.4):
// an in-flight CallAsync invocation. Poll is called at most once by the
// driver package's event loop; once it returns, the driver records its
// outcome with SetResolved, and Resolved reports that value, error and a
// true flag so a second Await on the same handle doesn't re-run it. Poll
// itself is left in place.
type FutureData struct {
	Poll     func() (Value, error)
	resolved bool
	value    Value
	err      error
}

func NewFutureData(poll func() (Value, error)) *FutureData {
	return &FutureData{Poll: poll}
}

func (f *FutureData) Resolved() (Value, error, bool) {
	return f.value, f.err, f.resolved
}

func (f *FutureData) SetResolved(v Value, err error) {
	f.resolved = true
	f.value = v
	f.err = err
}

// GeneratorData is the payload of a KindGenerator heap cell (spec §4.6,
// §8 scenario 5): a suspended CallGenerator invocation. Step advances it
// by one Yield (or to completion); the driver serializes calls to Step
// through the same goroutine+channel handoff it uses for Futures.
type GeneratorData struct {
	Step func() (GeneratorStateData, error)
	Done bool
}

func NewGeneratorData(step func() (GeneratorStateData, error)) *GeneratorData {
	return &GeneratorData{Step: step}
}

// StreamData is the payload of a KindStream heap cell: the async
// counterpart of GeneratorData, whose Step itself resolves like a Future
// (spec §4.6 "Stream" call style).
type StreamData struct {
	Step func() (GeneratorStateData, error)
	Done bool
}

func NewStreamData(step func() (GeneratorStateData, error)) *StreamData {
	return &StreamData{Step: step}
}

// FormatSpec controls how Format renders its value (width/precision/fill
// are left as a free-form spec string here; the display protocol handler
// interprets it).
type FormatSpec struct {
	Spec string
}

// FormatData is the payload of a KindFormat value: a value paired with a
// format-spec record.
type FormatData struct {
	Value Value
	Spec  FormatSpec
}

func NewFormat(v Value, spec FormatSpec) Value {
	return Value{Kind: KindFormat, Data: &FormatData{Value: v, Spec: spec}}
}

// RangeData is the payload of a KindRange value: optional start/end plus
// an inclusivity flag.
type RangeData struct {
	Start     *Value
	End       *Value
	Inclusive bool
}

func NewRange(start, end *Value, inclusive bool) Value {
	return Value{Kind: KindRange, Data: &RangeData{Start: start, End: end, Inclusive: inclusive}}
}

// AnyData is the payload of a KindAny heap cell: an opaque host-provided
// object plus its type hash and a virtual-dispatch table with clone/drop/
// display hooks (spec §3.1).
type AnyVTable struct {
	Clone   func(obj interface{}) interface{}
	Drop    func(obj interface{})
	Display func(obj interface{}) string
}

type AnyData struct {
	TypeHash uint64
	Object   interface{}
	VTable   *AnyVTable
}

