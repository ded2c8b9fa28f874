// Package unit defines the compiled artifact the VM consumes (spec §3.6):
// a read-only bundle of instructions and constant pools produced by an
// external compiler (out of scope here; see spec §1). The VM only ever
// reads a Unit, never mutates it, so multiple VM instances may share one
// Unit concurrently (spec §5).
package unit

import (
	"fmt"

	"github.com/wudi/rnvm/opcodes"
	"github.com/wudi/rnvm/values"
)

// CallStyle mirrors values.CallStyle at the function-table level, before a
// VM-offset function has been turned into a live FunctionData.
type CallStyle = values.CallStyle

// FunctionDescriptor is one entry of the Unit's function table (spec
// §3.6): either a VM-offset function or a tuple/unit constructor bound to
// RTTI.
type FunctionDescriptor struct {
	Name  string
	Hash  uint64
	Arity int

	// VM-offset function.
	IsOffset bool
	Offset   int
	Style    CallStyle

	// Constructor function (unit struct / tuple struct / unit variant /
	// tuple variant).
	IsConstructor   bool
	ConstructorRTTI *values.RTTI
	VariantRTTI     *values.VariantRTTI
}

// DebugInfo is optional instruction -> source mapping and frame-local
// names (spec §3.6); the VM never reads it itself, it only carries it
// through to embedder-facing diagnostics.
type DebugInfo struct {
	// SourceLines maps an instruction index to a 1-based source line, when
	// known.
	SourceLines map[int]int
	// FrameLocalNames maps a frame-relative stack offset to the source
	// name of the local stored there, per function offset.
	FrameLocalNames map[int]map[int]string
	// BuildID is a stable identifier for this compiled artifact, useful
	// for correlating crash reports across embedder runs.
	BuildID string
}

// Unit is the read-only compiled artifact consumed by the VM.
type Unit struct {
	Instructions []opcodes.Instruction

	// StringPool holds interned static strings addressed by pool index;
	// KindStaticString values carry an index into this slice. Equality by
	// index is how the dispatch loop implements cheap static-string
	// comparisons (OpEqString).
	StringPool []string

	// BytePool holds static byte-literal constants.
	BytePool [][]byte

	// ObjectKeyLists holds ordered key tuples used by Object(key-slot) and
	// MatchObject(key-slot) instructions.
	ObjectKeyLists [][]string

	// FunctionTable maps a function hash to its descriptor.
	FunctionTable map[uint64]*FunctionDescriptor

	// RTTITable maps a struct type hash to its record metadata.
	RTTITable map[uint64]*values.RTTI

	// VariantRTTITable maps a variant hash to its variant metadata.
	VariantRTTITable map[uint64]*values.VariantRTTI

	Debug *DebugInfo
}

// New constructs an empty, writable Unit for a loader (or a test/demo
// harness building one programmatically) to populate before treating it as
// read-only.
func New() *Unit {
	return &Unit{
		FunctionTable:    make(map[uint64]*FunctionDescriptor),
		RTTITable:        make(map[uint64]*values.RTTI),
		VariantRTTITable: make(map[uint64]*values.VariantRTTI),
	}
}

// Validate checks the loader-level contract from spec §6.2: all pool
// indices referenced by an instruction must be in range, and the IP range
// is 0..len(Instructions). It is meant to run once after a Unit is fully
// populated, before it is handed to a VM.
func (u *Unit) Validate() error {
	n := len(u.Instructions)
	for ip, inst := range u.Instructions {
		if inst.Jump != 0 || instructionHasJump(inst.Op) {
			if inst.Jump < 0 || inst.Jump > n {
				return fmt.Errorf("unit: instruction %d: jump target %d out of range [0,%d]", ip, inst.Jump, n)
			}
		}
	}
	return nil
}

func instructionHasJump(op opcodes.Opcode) bool {
	switch op {
	case opcodes.OpJump, opcodes.OpJumpIf, opcodes.OpJumpIfOrPop, opcodes.OpJumpIfNotOrPop,
		opcodes.OpJumpIfBranch, opcodes.OpPopAndJumpIfNot:
		return true
	default:
		return false
	}
}

// String returns the interned string at index i, validating the pool
// bound (spec §6.2: "Pool indices are 0-based and must all be valid").
func (u *Unit) String(i int) (string, bool) {
	if i < 0 || i >= len(u.StringPool) {
		return "", false
	}
	return u.StringPool[i], true
}

// Bytes returns the byte literal at index i.
func (u *Unit) Bytes(i int) ([]byte, bool) {
	if i < 0 || i >= len(u.BytePool) {
		return nil, false
	}
	return u.BytePool[i], true
}

// ObjectKeys returns the ordered key list at slot i.
func (u *Unit) ObjectKeys(i int) ([]string, bool) {
	if i < 0 || i >= len(u.ObjectKeyLists) {
		return nil, false
	}
	return u.ObjectKeyLists[i], true
}

// Function looks up a function descriptor by hash.
func (u *Unit) Function(hash uint64) (*FunctionDescriptor, bool) {
	fd, ok := u.FunctionTable[hash]
	return fd, ok
}

// RTTI looks up struct metadata by type hash.
func (u *Unit) RTTI(hash uint64) (*values.RTTI, bool) {
	r, ok := u.RTTITable[hash]
	return r, ok
}

// VariantRTTI looks up variant metadata by variant hash.
func (u *Unit) VariantRTTI(hash uint64) (*values.VariantRTTI, bool) {
	r, ok := u.VariantRTTITable[hash]
	return r, ok
}
