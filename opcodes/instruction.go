package opcodes

// TypeCheck identifies a built-in shape MatchBuiltIn/MatchSequence compares
// against (spec §4.4 "Matching").
type TypeCheck byte

const (
	TypeCheckTuple TypeCheck = iota
	TypeCheckVec
	TypeCheckObject
	TypeCheckString
	TypeCheckBytes
	TypeCheckOption
	TypeCheckResult
)

// AssignTarget identifies where a compound-assign / index-set instruction
// writes its result: a stack offset, a tuple-field index, or an
// object-field name (by string-pool slot).
type AssignTarget struct {
	Kind       AssignTargetKind
	Offset     int // Kind == TargetOffset
	FieldIndex int // Kind == TargetTupleField
	NameSlot   int // Kind == TargetObjectField (static-string pool index)
}

type AssignTargetKind byte

const (
	TargetOffset AssignTargetKind = iota
	TargetTupleField
	TargetObjectField
)

// VariantSelector identifies which sum-type sugar opcode to run.
type VariantSelector byte

const (
	VariantSome VariantSelector = iota
	VariantNone
	VariantOk
	VariantErr
)

// Instruction is one opcode+operand record. Not every field is meaningful
// for every Opcode; see the per-family comments in opcodes.go for which
// operands a given Op consumes.
type Instruction struct {
	Op Opcode

	// Generic integer operands: meaning depends on Op (offset, count,
	// slot index, branch id, etc.)
	A int
	B int
	C int

	// Jump targets are absolute IP indices (spec §6.2 chooses absolute
	// over relative so a disassembler never needs instruction lengths).
	Jump int

	Hash   uint64 // function/type/protocol/variant hash operand
	Target AssignTarget
	Check  TypeCheck
	Variant VariantSelector

	// Literal payload for PushLiteral (inline scalar only; handle-kind
	// literals are always constructed via a dedicated opcode such as
	// OpString/OpBytes/OpVec so the Unit loader never has to embed a
	// pre-built heap cell).
	Literal interface{}

	Args []int // variadic operand list; shown by debuginfo, not read by the dispatch loop
}
