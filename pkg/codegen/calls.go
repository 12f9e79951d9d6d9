package codegen

import (
	"lamvm/pkg/nst"
	"lamvm/pkg/tac"
)

// stageArgs emits the set_arg sequence spec §4.3.1 describes for every
// application form: one set_arg per argument, in order, each carrying the
// "remaining count" hint in its third operand (spec §9's open question —
// implemented as a genuine count; the VM never reads it, and make_cl takes
// its capture count from its own third operand).
func (f *fnCtx) stageArgs(args []nst.Var) error {
	n := len(args)
	for i, a := range args {
		r, err := regOf(f, a)
		if err != nil {
			return err
		}
		f.emit(tac.Instruction{Op: tac.OpSetArg, R0: uint8(i), R1: reg8(r), R2: uint8(n - 1 - i)})
	}
	return nil
}

// compileApply lowers a saturated FunAp (spec §4.3.1): stage args, then
// choose call/gen_ap/tail_call/tail_gen_ap by whether the callee register
// is known at compile time to hold a bare function address
// (directCallRegs) and whether this application is in tail position.
func (f *fnCtx) compileApply(fn nst.Var, args []nst.Var, tail int, dest Register) error {
	fnReg, err := regOf(f, fn)
	if err != nil {
		return err
	}
	if err := f.stageArgs(args); err != nil {
		return err
	}
	direct := f.directCallRegs[fnReg]
	n := uint8(len(args))

	switch {
	case direct && tail == tailTail:
		f.emit(tac.Instruction{Op: tac.OpTailCall, R0: reg8(fnReg), R1: n})
	case !direct && tail == tailTail:
		f.emit(tac.Instruction{Op: tac.OpTailGenAp, R0: reg8(fnReg), R1: n})
	case direct:
		f.emit(tac.Instruction{Op: tac.OpCall, R0: reg8(dest), R1: reg8(fnReg), R2: n})
	default:
		f.emit(tac.Instruction{Op: tac.OpGenAp, R0: reg8(dest), R1: reg8(fnReg), R2: n})
	}
	return nil
}

// emitClosureValue materializes a just-compiled child function as a callable
// value in dest: a bare function address (load_f) when it captures nothing,
// or a boxed closure (set_arg* + load_f + make_cl) when it does. Shared by
// compileLambda and match-branch lowering (spec §4.3.1, §4.3.2) since a
// MatchBranch is "compiled exactly like a lambda" (pkg/nst's doc comment on
// MatchBranch) once its body function exists.
func (f *fnCtx) emitClosureValue(funcIdx int, freeVars []nst.Var, dest Register) (direct bool, err error) {
	if len(freeVars) == 0 {
		f.emit(tac.Instruction{Op: tac.OpLoadF, R0: reg8(dest), Imm: int32(funcIdx)})
		return true, nil
	}
	n := len(freeVars)
	for i, fv := range freeVars {
		srcReg, err := regOf(f, fv)
		if err != nil {
			return false, err
		}
		f.emit(tac.Instruction{Op: tac.OpSetArg, R0: uint8(i), R1: reg8(srcReg), R2: uint8(n - 1 - i)})
	}
	f.emit(tac.Instruction{Op: tac.OpLoadF, R0: reg8(dest), Imm: int32(funcIdx)})
	f.emit(tac.Instruction{Op: tac.OpMakeCl, R0: reg8(dest), R1: reg8(dest), R2: uint8(n)})
	return false, nil
}

// compilePartAp lowers PartAp (spec §4.3.1): always produces a genuine
// partial-application value, so even in tail position it needs a result
// register to ret — there's no "tail part_ap" form in the opcode table.
func (f *fnCtx) compilePartAp(p nst.PartAp, dest Register, haveDest bool) error {
	fnReg, err := regOf(f, p.Fn)
	if err != nil {
		return err
	}
	if err := f.stageArgs(p.Args); err != nil {
		return err
	}
	if !haveDest {
		dest, err = f.ra.Alloc()
		if err != nil {
			return err
		}
	}
	f.emit(tac.Instruction{Op: tac.OpPartAp, R0: reg8(dest), R1: reg8(fnReg), R2: uint8(len(p.Args))})
	if !haveDest {
		f.emit(tac.Instruction{Op: tac.OpRet, R0: reg8(dest)})
	}
	return nil
}
