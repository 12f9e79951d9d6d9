package tac

import "fmt"

// Reg is a virtual register index within a function's 32-register frame.
type Reg = uint8

// Instruction is one TAC operation. Not every field is meaningful for
// every Op — R0/R1/R2 for RRR/RR/R forms, R0+Imm for RI forms — mirroring
// spec §6's packed-word layout one level up from bits.
type Instruction struct {
	Op   Op
	R0   Reg
	R1   Reg
	R2   Reg
	Imm  int32 // literal value, const-table address, function index, or jump offset
}

func (ins Instruction) String() string {
	switch ins.Op.Form() {
	case FormR:
		return fmt.Sprintf("%-12s r%d", ins.Op, ins.R0)
	case FormRR:
		return fmt.Sprintf("%-12s r%d, r%d", ins.Op, ins.R0, ins.R1)
	case FormRI:
		return fmt.Sprintf("%-12s r%d, #%d", ins.Op, ins.R0, ins.Imm)
	default:
		return fmt.Sprintf("%-12s r%d, r%d, r%d", ins.Op, ins.R0, ins.R1, ins.R2)
	}
}

// Function is one compiled function: a flat TAC listing plus the frame
// shape the assembler and VM need — how many registers the frame needs,
// and how many of its leading registers are captures vs. params (spec
// §4.3's "captured values occupy 0..f-1, params occupy f..f+p-1").
type Function struct {
	Name        string // empty for anonymous lambdas; kept for disassembly only
	NumFreeVars int
	NumParams   int
	NumRegs     int
	Code        []Instruction
}

// Program is the assembler's input: a list of function bodies, index 0
// is the entry point (spec §3).
type Program struct {
	Functions []*Function
}
