// Package opcodes enumerates the VM's instruction set, grouped into the
// families described in spec §4.4. The byte-sized Opcode plus categorized
// iota blocks is the same layout style the teacher uses for its PHP
// bytecode (opcodes/opcodes.go), generalized from PHP's zend-derived
// opcode list to the Rune-shaped families this core executes.
package opcodes

// Opcode identifies the operation an Instruction performs.
type Opcode byte

// Stack shuffle (0-19)
const (
	OpPushLiteral Opcode = iota
	OpPop
	OpPopN
	OpDup
	OpCopy  // push a copy of the value at frame offset N
	OpMove  // move the value at frame offset N to the top, leaving Unit behind
	OpDrop  // drop the value at frame offset N
	OpReplace
	OpClean // pop N values but preserve the top
)

// Control flow (20-49)
const (
	OpJump Opcode = iota + 20
	OpJumpIf
	OpJumpIfOrPop
	OpJumpIfNotOrPop
	OpJumpIfBranch
	OpPopAndJumpIfNot
	OpReturn
	OpReturnUnit
)

// Arithmetic / bitwise (50-79)
const (
	OpAdd Opcode = iota + 50
	OpSub
	OpMul
	OpDiv
	OpRem
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpShr
	OpNeg
	OpNot

	// compound-assign variants, same operator semantics against a target
	// specifier (see Instruction.Target)
	OpAddAssign
	OpSubAssign
	OpMulAssign
	OpDivAssign
	OpRemAssign
	OpBitAndAssign
	OpBitOrAssign
	OpBitXorAssign
	OpShlAssign
	OpShrAssign
)

// Comparison (80-99)
const (
	OpLt Opcode = iota + 80
	OpLte
	OpGt
	OpGte
	OpEq
	OpNeq
	OpAnd
	OpOr
	OpIs
	OpIsNot
)

// Indexing (100-119)
const (
	OpIndexGet Opcode = iota + 100
	OpIndexSet
	OpTupleIndexGet
	OpTupleIndexSet
	OpTupleIndexGetAt
	OpObjectIndexGet
	OpObjectIndexSet
	OpObjectIndexGetAt
)

// Construction (120-159)
const (
	OpVec Opcode = iota + 120
	OpTuple
	OpTuple1
	OpTuple2
	OpTuple3
	OpTuple4
	OpPushTuple
	OpObject
	OpRange
	OpUnitStruct
	OpStruct
	OpUnitVariant
	OpStructVariant
	OpString
	OpBytes
	OpStringConcat
	OpFormat
	OpLoadFn
	OpClosure
)

// Call (160-179)
const (
	OpCall Opcode = iota + 160
	OpCallInstance
	OpCallFn
	OpLoadInstanceFn
)

// Matching (180-209)
const (
	OpMatchSequence Opcode = iota + 180
	OpMatchType
	OpMatchVariant
	OpMatchBuiltIn
	OpMatchObject
	OpIsUnit
	OpEqByte
	OpEqChar
	OpEqInteger
	OpEqBool
	OpEqString
	OpEqBytes
)

// Sum-type sugar (210-219)
const (
	OpVariantSome Opcode = iota + 210
	OpVariantNone
	OpVariantOk
	OpVariantErr
)

// Suspension (220-229)
const (
	OpAwait Opcode = iota + 220
	OpSelect
	OpYield
	OpYieldUnit
)

// Iteration (230-234)
const (
	OpIterNext Opcode = iota + 230
)

// Faults (235-239)
const (
	OpTry Opcode = iota + 235
	OpPanic
)

var names = map[Opcode]string{
	OpPushLiteral: "push-literal", OpPop: "pop", OpPopN: "pop-n", OpDup: "dup",
	OpCopy: "copy", OpMove: "move", OpDrop: "drop", OpReplace: "replace", OpClean: "clean",
	OpJump: "jump", OpJumpIf: "jump-if", OpJumpIfOrPop: "jump-if-or-pop",
	OpJumpIfNotOrPop: "jump-if-not-or-pop", OpJumpIfBranch: "jump-if-branch",
	OpPopAndJumpIfNot: "pop-and-jump-if-not", OpReturn: "return", OpReturnUnit: "return-unit",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpRem: "rem",
	OpBitAnd: "bit-and", OpBitOr: "bit-or", OpBitXor: "bit-xor", OpShl: "shl", OpShr: "shr",
	OpNeg: "neg", OpNot: "not",
	OpAddAssign: "add-assign", OpSubAssign: "sub-assign", OpMulAssign: "mul-assign",
	OpDivAssign: "div-assign", OpRemAssign: "rem-assign", OpBitAndAssign: "bit-and-assign",
	OpBitOrAssign: "bit-or-assign", OpBitXorAssign: "bit-xor-assign", OpShlAssign: "shl-assign",
	OpShrAssign: "shr-assign",
	OpLt: "lt", OpLte: "lte", OpGt: "gt", OpGte: "gte", OpEq: "eq", OpNeq: "neq",
	OpAnd: "and", OpOr: "or", OpIs: "is", OpIsNot: "is-not",
	OpIndexGet: "index-get", OpIndexSet: "index-set",
	OpTupleIndexGet: "tuple-index-get", OpTupleIndexSet: "tuple-index-set",
	OpTupleIndexGetAt: "tuple-index-get-at", OpObjectIndexGet: "object-index-get",
	OpObjectIndexSet: "object-index-set", OpObjectIndexGetAt: "object-index-get-at",
	OpVec: "vec", OpTuple: "tuple", OpTuple1: "tuple1", OpTuple2: "tuple2",
	OpTuple3: "tuple3", OpTuple4: "tuple4", OpPushTuple: "push-tuple", OpObject: "object",
	OpRange: "range", OpUnitStruct: "unit-struct", OpStruct: "struct",
	OpUnitVariant: "unit-variant", OpStructVariant: "struct-variant",
	OpString: "string", OpBytes: "bytes", OpStringConcat: "string-concat",
	OpFormat: "format", OpLoadFn: "load-fn", OpClosure: "closure",
	OpCall: "call", OpCallInstance: "call-instance", OpCallFn: "call-fn",
	OpLoadInstanceFn: "load-instance-fn",
	OpMatchSequence: "match-sequence", OpMatchType: "match-type", OpMatchVariant: "match-variant",
	OpMatchBuiltIn: "match-builtin", OpMatchObject: "match-object", OpIsUnit: "is-unit",
	OpEqByte: "eq-byte", OpEqChar: "eq-char", OpEqInteger: "eq-integer", OpEqBool: "eq-bool",
	OpEqString: "eq-string", OpEqBytes: "eq-bytes",
	OpVariantSome: "variant-some", OpVariantNone: "variant-none", OpVariantOk: "variant-ok",
	OpVariantErr: "variant-err",
	OpAwait: "await", OpSelect: "select", OpYield: "yield", OpYieldUnit: "yield-unit",
	OpIterNext: "iter-next",
	OpTry:      "try", OpPanic: "panic",
}

func (op Opcode) String() string {
	if n, ok := names[op]; ok {
		return n
	}
	return "unknown"
}
