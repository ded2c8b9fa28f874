// Package debuginfo renders a Unit's instruction stream and type tables in
// human-readable form for the demo host's "disasm" command. The
// per-instruction dump style (address, mnemonic, operands, one line each)
// follows the teacher's compiler/jit/debug.go DumpMachineCode/
// DisassembleMachineCode pair, generalized from that file's raw x86-64 byte
// stream to this VM's already-named opcodes.Opcode stream, so there is no
// decoding step to get wrong the way a real disassembler has.
package debuginfo

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/exp/maps"

	"github.com/wudi/rnvm/opcodes"
	"github.com/wudi/rnvm/unit"
)

// Disassemble renders every instruction in u, one per line, prefixed with
// its source line when u.Debug.SourceLines has an entry for it.
func Disassemble(u *unit.Unit) string {
	var b strings.Builder
	for ip, inst := range u.Instructions {
		line := sourceLineFor(u, ip)
		fmt.Fprintf(&b, "%6d %-20s %s\n", ip, line, formatInstruction(inst))
	}
	return b.String()
}

func sourceLineFor(u *unit.Unit, ip int) string {
	if u.Debug == nil || u.Debug.SourceLines == nil {
		return ""
	}
	if n, ok := u.Debug.SourceLines[ip]; ok {
		return fmt.Sprintf("L%d", n)
	}
	return ""
}

func formatInstruction(inst opcodes.Instruction) string {
	var ops []string
	if inst.A != 0 || inst.B != 0 || inst.C != 0 {
		ops = append(ops, fmt.Sprintf("a=%d b=%d c=%d", inst.A, inst.B, inst.C))
	}
	if inst.Jump != 0 {
		ops = append(ops, fmt.Sprintf("jump=%d", inst.Jump))
	}
	if inst.Hash != 0 {
		ops = append(ops, fmt.Sprintf("hash=%#x", inst.Hash))
	}
	if inst.Literal != nil {
		ops = append(ops, fmt.Sprintf("literal=%v", inst.Literal))
	}
	if len(inst.Args) > 0 {
		ops = append(ops, fmt.Sprintf("args=%v", inst.Args))
	}
	if len(ops) == 0 {
		return inst.Op.String()
	}
	return inst.Op.String() + " " + strings.Join(ops, " ")
}

// DumpTypes renders u's struct and variant RTTI tables in a stable order.
// The tables are plain Go maps keyed by hash, so without an explicit sort
// two dumps of the same Unit could print types in different orders between
// runs; golang.org/x/exp/maps.Keys plus a numeric sort is the cheapest way
// to pin that order down for a diffable debug report.
func DumpTypes(u *unit.Unit) string {
	var b strings.Builder

	structHashes := maps.Keys(u.RTTITable)
	sort.Slice(structHashes, func(i, j int) bool { return structHashes[i] < structHashes[j] })
	for _, h := range structHashes {
		r := u.RTTITable[h]
		fmt.Fprintf(&b, "struct %#x %s shape=%v fields=%v\n", h, r.Name, r.Shape, r.FieldKeys)
	}

	variantHashes := maps.Keys(u.VariantRTTITable)
	sort.Slice(variantHashes, func(i, j int) bool { return variantHashes[i] < variantHashes[j] })
	for _, h := range variantHashes {
		v := u.VariantRTTITable[h]
		fmt.Fprintf(&b, "variant %#x %s of enum %#x shape=%v fields=%v\n", h, v.Name, v.EnumHash, v.Shape, v.FieldKeys)
	}

	return b.String()
}
