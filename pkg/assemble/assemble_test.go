package assemble

import (
	"strings"
	"testing"

	"lamvm/pkg/consttab"
	"lamvm/pkg/symtab"
	"lamvm/pkg/tac"
)

func TestAssembleResolvesLoadF(t *testing.T) {
	// fn0 (entry): load_f r0, #1 ; ret r0   -- references fn1 by index
	// fn1: ret r0 (param already in r0)
	fn0 := &tac.Function{Code: []tac.Instruction{
		{Op: tac.OpLoadF, R0: 0, Imm: 1},
		{Op: tac.OpRet, R0: 0},
	}}
	fn1 := &tac.Function{NumParams: 1, Code: []tac.Instruction{
		{Op: tac.OpRet, R0: 0},
	}}
	prog := &tac.Program{Functions: []*tac.Function{fn0, fn1}}

	asm, err := Assemble(prog, consttab.New(), symtab.New())
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if asm.EntryAddr != 0 {
		t.Fatalf("entry addr = %d, want 0", asm.EntryAddr)
	}
	// fn0 is load_f (2 words: RI-form) + ret (1 word) = 3 words.
	wantFn1Addr := uint32(3)
	if asm.FuncAddr[1] != wantFn1Addr {
		t.Fatalf("fn1 addr = %d, want %d", asm.FuncAddr[1], wantFn1Addr)
	}
	loadFImm := int32(asm.Code[1])
	if uint32(loadFImm) != wantFn1Addr {
		t.Fatalf("load_f immediate = %d, want resolved address %d", loadFImm, wantFn1Addr)
	}
	if meta, ok := asm.FuncMeta[wantFn1Addr]; !ok || meta.NumParams != 1 {
		t.Fatalf("FuncMeta[%d] = %+v, want NumParams=1", wantFn1Addr, meta)
	}
}

func TestAssembleRejectsUnknownFunctionIndex(t *testing.T) {
	fn0 := &tac.Function{Code: []tac.Instruction{
		{Op: tac.OpLoadF, R0: 0, Imm: 99},
		{Op: tac.OpRet, R0: 0},
	}}
	prog := &tac.Program{Functions: []*tac.Function{fn0}}
	if _, err := Assemble(prog, consttab.New(), symtab.New()); err == nil {
		t.Fatal("expected an error for an out-of-range load_f index")
	}
}

func TestPackDecodeRoundTrip(t *testing.T) {
	word := packWord(tac.OpAdd, 3, 5, 7)
	if DecodeOp(word) != tac.OpAdd {
		t.Fatalf("op = %v, want add", DecodeOp(word))
	}
	if DecodeR0(word) != 3 || DecodeR1(word) != 5 || DecodeR2(word) != 7 {
		t.Fatalf("decoded fields = (%d,%d,%d), want (3,5,7)", DecodeR0(word), DecodeR1(word), DecodeR2(word))
	}
}

func TestDisassembleProducesOneLinePerInstruction(t *testing.T) {
	fn0 := &tac.Function{Code: []tac.Instruction{
		{Op: tac.OpLoadI, R0: 0, Imm: 7},
		{Op: tac.OpRet, R0: 0},
	}}
	prog := &tac.Program{Functions: []*tac.Function{fn0}}
	asm, err := Assemble(prog, consttab.New(), symtab.New())
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	out := Disassemble(asm)
	if out == "" {
		t.Fatal("expected non-empty disassembly")
	}
	// One label line for fn0, then one line per instruction.
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 || lines[0] != "fn0:" {
		t.Fatalf("want fn0 label plus 2 instruction lines, got %q", out)
	}
}
