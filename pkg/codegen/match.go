package codegen

import (
	"lamvm/pkg/nst"
	"lamvm/pkg/tac"
)

// compileMatch lowers a Match atom (spec §4.3.2) into:
//
//	load_i  rP, patAddr
//	match   rSubject, rP, rCaptureStart
//	<jump table: one jmp per branch>
//	<branch 0 trampoline>
//	...
//	<branch n-1 trampoline>
//
// Each branch is itself compiled as a separate function, exactly like a
// Lambda (pkg/nst's doc comment on MatchBranch), and its trampoline here is
// just: stage the captured values as call args, then call/gen_ap (or the
// tail forms, when the match itself sits in tail position) into dest, then
// jmp past the remaining branches. Offsets are computed in word units via
// wordLenOf so they stay correct once the assembler expands RI-form
// instructions to two words.
func (f *fnCtx) compileMatch(m nst.Match, dest Register, tail bool) error {
	n := len(m.Branches)

	captureStart, err := f.ra.ReserveHigh(m.MaxCaptures)
	if err != nil {
		return err
	}
	subjReg, err := regOf(f, m.Subject)
	if err != nil {
		return err
	}

	// Branch values (bare functions or boxed closures) are constructed
	// before the dispatch itself, same as any other Lambda-shaped atom.
	branchFnReg := make([]Register, n)
	branchDirect := make([]bool, n)
	matchedCount := make([]int, n)
	for i, a := range m.Branches {
		mb := a.Value.(nst.MatchBranch)
		matchedCount[i] = len(mb.MatchedVars)
		r, direct, err := f.compileMatchBranchValue(mb)
		if err != nil {
			return err
		}
		branchFnReg[i] = r
		branchDirect[i] = direct
	}

	rP, err := f.ra.Alloc()
	if err != nil {
		return err
	}
	f.emit(tac.Instruction{Op: tac.OpLoadI, R0: reg8(rP), Imm: int32(m.PatAddr)})
	// With no capturing patterns ReserveHigh's placeholder (MaxRegisters)
	// does not fit a 5-bit operand; the VM writes no captures then, so r0
	// stands in.
	capReg := captureStart
	if m.MaxCaptures == 0 {
		capReg = 0
	}
	f.emit(tac.Instruction{Op: tac.OpMatch, R0: reg8(subjReg), R1: reg8(rP), R2: reg8(capReg)})

	branchCode := make([][]tac.Instruction, n)
	for i := 0; i < n; i++ {
		branchCode[i] = f.buildBranchTrampoline(matchedCount[i], captureStart, branchFnReg[i], branchDirect[i], dest, tail)
	}

	// Lay the jump table out first (each jmp is RI-form: 2 words), then
	// the branch bodies back to back, so every offset can be computed
	// before anything is actually emitted.
	tableWords := n * 2
	branchStart := make([]int, n)
	pos := tableWords
	for i := 0; i < n; i++ {
		branchStart[i] = pos
		pos += wordLenOf(branchCode[i])
	}
	convergeTarget := pos

	for i := 0; i < n; i++ {
		entryNextPos := (i + 1) * 2
		f.emit(tac.Instruction{Op: tac.OpJmp, Imm: int32(branchStart[i] - entryNextPos)})
	}

	cursor := tableWords
	for i := 0; i < n; i++ {
		code := branchCode[i]
		if !tail {
			last := len(code) - 1
			nextPos := cursor + wordLenOf(code)
			code[last].Imm = int32(convergeTarget - nextPos)
		}
		for _, ins := range code {
			f.emit(ins)
			cursor += wordLen(ins)
		}
	}
	return nil
}

// buildBranchTrampoline builds one branch's code in isolation (not yet
// appended to f.fn.Code) so compileMatch can measure its word length before
// laying out the jump table. The trailing convergence jmp (non-tail case)
// is left as a zero-offset placeholder for compileMatch to patch once the
// full layout is known.
func (f *fnCtx) buildBranchTrampoline(k int, captureStart, fnReg Register, direct bool, dest Register, tail bool) []tac.Instruction {
	var code []tac.Instruction
	for j := 0; j < k; j++ {
		code = append(code, tac.Instruction{
			Op: tac.OpSetArg,
			R0: uint8(j),
			R1: uint8(int(captureStart) + j),
			R2: uint8(k - 1 - j),
		})
	}
	switch {
	case tail && direct:
		code = append(code, tac.Instruction{Op: tac.OpTailCall, R0: reg8(fnReg), R1: uint8(k)})
	case tail:
		code = append(code, tac.Instruction{Op: tac.OpTailGenAp, R0: reg8(fnReg), R1: uint8(k)})
	case direct:
		code = append(code, tac.Instruction{Op: tac.OpCall, R0: reg8(dest), R1: reg8(fnReg), R2: uint8(k)})
		code = append(code, tac.Instruction{Op: tac.OpJmp})
	default:
		code = append(code, tac.Instruction{Op: tac.OpGenAp, R0: reg8(dest), R1: reg8(fnReg), R2: uint8(k)})
		code = append(code, tac.Instruction{Op: tac.OpJmp})
	}
	return code
}

// compileMatchBranchValue compiles a match arm's body as its own function
// (captures occupy the low registers, then matched vars, same layout as
// Lambda) and materializes it as a callable value in the enclosing frame.
func (f *fnCtx) compileMatchBranchValue(mb nst.MatchBranch) (Register, bool, error) {
	child := f.gen.newFunc("<branch>")
	funcIdx := len(f.gen.funcs) - 1

	if _, err := child.ra.Reserve(len(mb.FreeVars) + len(mb.MatchedVars)); err != nil {
		return 0, false, err
	}
	for i, fv := range mb.FreeVars {
		r := Register(i)
		child.vars.set(fv.Name, r)
		child.ra.Pin(r)
	}
	for i, name := range mb.MatchedVars {
		r := Register(len(mb.FreeVars) + i)
		if name != "_" {
			child.vars.set(name, r)
		}
		child.ra.Pin(r)
	}
	if err := child.compileFunctionBody(mb.Body); err != nil {
		return 0, false, err
	}
	child.fn.NumFreeVars = len(mb.FreeVars)
	child.fn.NumParams = len(mb.MatchedVars)
	child.fn.NumRegs = child.ra.MaxRegs()

	dest, err := f.ra.Alloc()
	if err != nil {
		return 0, false, err
	}
	direct, err := f.emitClosureValue(funcIdx, mb.FreeVars, dest)
	if err != nil {
		return 0, false, err
	}
	if !direct && mb.SelfSlot >= 0 {
		f.emit(tac.Instruction{Op: tac.OpSetClVal, R0: reg8(dest), R1: reg8(dest), R2: uint8(mb.SelfSlot)})
	}
	return dest, direct, nil
}
