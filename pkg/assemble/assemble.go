// Package assemble implements spec §4.4.1's assembler: it flattens a
// tac.Program's per-function instruction lists into one packed 32-bit word
// stream and resolves load_f's function-table index into an absolute
// instruction address, the one forward reference codegen leaves unresolved.
package assemble

import (
	"fmt"

	"lamvm/pkg/consttab"
	"lamvm/pkg/symtab"
	"lamvm/pkg/tac"
)

// FuncMeta is the arity a called function's address resolves to — the VM's
// gen_ap needs it at runtime since a closure record on the heap carries no
// arity of its own (spec §3's closure record is just [func addr, captures...]).
type FuncMeta struct {
	NumFreeVars int
	NumParams   int
}

// Program is the assembled, address-resolved form of a tac.Program, ready
// for pkg/vm to execute.
type Program struct {
	Code      []uint32
	EntryAddr uint32
	FuncAddr  []uint32 // source function index -> absolute address, kept for disassembly labels
	FuncMeta  map[uint32]FuncMeta
	Table     *consttab.Table
	Symbols   *symtab.SymbolTable
}

// wordLen is the number of 32-bit words op's encoding occupies: two for
// RI-form (opcode word + a full-width immediate word), one otherwise. This
// mirrors pkg/codegen's wordLen/wordLenOf exactly — codegen's jump offsets
// are computed assuming this same expansion.
func wordLen(op tac.Op) int {
	if op.Form() == tac.FormRI {
		return 2
	}
	return 1
}

// packWord lays out opcode and up to three 5-bit register operands in a
// single word: opcode(6) | r0(5) | r1(5) | r2(5) | unused(11). Exact bit
// placement is implementation-defined per spec §6, as long as the decoder
// (pkg/vm) agrees.
func packWord(op tac.Op, r0, r1, r2 uint8) uint32 {
	return uint32(op)<<26 | uint32(r0)<<21 | uint32(r1)<<16 | uint32(r2)<<11
}

// DecodeOp, DecodeR0/R1/R2 invert packWord; pkg/vm's fetch-decode step and
// the disassembler both use these.
func DecodeOp(word uint32) tac.Op { return tac.Op(word >> 26) }
func DecodeR0(word uint32) uint8  { return uint8((word >> 21) & 0x1f) }
func DecodeR1(word uint32) uint8  { return uint8((word >> 16) & 0x1f) }
func DecodeR2(word uint32) uint8  { return uint8((word >> 11) & 0x1f) }

// Assemble runs the two passes spec §4.4.1 describes: first compute every
// function's absolute start address by summing encoded word lengths, then
// emit the final word stream, rewriting each load_f's function-index Imm
// into the absolute address its pass-one table just computed.
func Assemble(prog *tac.Program, table *consttab.Table, symbols *symtab.SymbolTable) (*Program, error) {
	if len(prog.Functions) == 0 {
		return nil, fmt.Errorf("assemble: empty program")
	}

	funcAddr := make([]uint32, len(prog.Functions))
	addr := uint32(0)
	for i, fn := range prog.Functions {
		funcAddr[i] = addr
		for _, ins := range fn.Code {
			addr += uint32(wordLen(ins.Op))
		}
	}

	code := make([]uint32, 0, addr)
	meta := make(map[uint32]FuncMeta, len(prog.Functions))
	for i, fn := range prog.Functions {
		meta[funcAddr[i]] = FuncMeta{NumFreeVars: fn.NumFreeVars, NumParams: fn.NumParams}
		for _, ins := range fn.Code {
			imm := ins.Imm
			if ins.Op == tac.OpLoadF {
				idx := int(imm)
				if idx < 0 || idx >= len(funcAddr) {
					return nil, fmt.Errorf("assemble: load_f in %q references unknown function index %d", fn.Name, idx)
				}
				imm = int32(funcAddr[idx])
			}
			code = append(code, packWord(ins.Op, ins.R0, ins.R1, ins.R2))
			if wordLen(ins.Op) == 2 {
				code = append(code, uint32(imm))
			}
		}
	}

	return &Program{
		Code:      code,
		EntryAddr: funcAddr[0],
		FuncAddr:  funcAddr,
		FuncMeta:  meta,
		Table:     table,
		Symbols:   symbols,
	}, nil
}
