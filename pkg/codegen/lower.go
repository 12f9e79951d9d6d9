package codegen

import (
	"lamvm/pkg/nst"
	"lamvm/pkg/tac"
)

// compileFunctionBody lowers one function/lambda/match-branch body (an
// NST Let-chain ending in an Atom) into this fnCtx's code. Bound lets
// compile in non-tail position; the trailing atom compiles in tail
// position, which for FunAp/Match means a genuine tail_call/tail_gen_ap/
// tail-branch with no subsequent code in this frame (spec §4.3's tail-call
// rules), for PartAp means part_ap into a fresh register followed by ret
// (there is no tail form of part_ap), and for every other atom kind means
// "compute into a fresh register, then ret it".
func (f *fnCtx) compileFunctionBody(expr nst.Expr) error {
	for {
		let, ok := expr.(nst.Let)
		if !ok {
			break
		}
		dest, err := f.ra.Alloc()
		if err != nil {
			return err
		}
		if err := f.compileAtomInto(let.Atom.Value, dest); err != nil {
			return err
		}
		f.vars.set(let.Var.Name, dest)
		if lam, isLambda := let.Atom.Value.(nst.Lambda); isLambda && len(lam.FreeVars) == 0 {
			f.directCallRegs[dest] = true
		}
		expr = let.Body
	}
	atom := expr.(nst.Atom).Value
	return f.compileAtomTail(atom)
}

// compileAtomTail compiles expr as the final atom of a function body.
func (f *fnCtx) compileAtomTail(av nst.AtomValue) error {
	switch a := av.(type) {
	case nst.FunAp:
		return f.compileApply(a.Fn, a.Args, tailTail, 0)
	case nst.PartAp:
		return f.compilePartAp(a, 0, false)
	case nst.Match:
		return f.compileMatch(a, 0, true)
	default:
		dest, err := f.ra.Alloc()
		if err != nil {
			return err
		}
		if err := f.compileAtomInto(av, dest); err != nil {
			return err
		}
		f.emit(tac.Instruction{Op: tac.OpRet, R0: reg8(dest)})
		return nil
	}
}

const (
	tailNone = 0
	tailTail = 1
)

// compileAtomInto computes av's value into dest (spec §4.3.1's per-atom
// emission rules), used for every non-tail-position atom and every
// tail-position atom that isn't itself a call/match form.
func (f *fnCtx) compileAtomInto(av nst.AtomValue, dest Register) error {
	switch a := av.(type) {
	case nst.Number:
		f.emit(tac.Instruction{Op: tac.OpLoadI, R0: reg8(dest), Imm: int32(a.Value)})
		return nil

	case nst.PlainSymbol:
		f.emit(tac.Instruction{Op: tac.OpLoadPS, R0: reg8(dest), Imm: int32(a.SymbolID)})
		return nil

	case nst.String:
		f.emit(tac.Instruction{Op: tac.OpLoadC, R0: reg8(dest), Imm: int32(a.Addr)})
		return nil

	case nst.CompoundSymbol:
		return f.compileCompoundSymbol(a, dest)

	case nst.PrimOp:
		return f.compilePrimOp(a, dest)

	case nst.VarRef:
		return f.compileVarRef(a.V, dest)

	case nst.Lambda:
		return f.compileLambda(a, dest)

	case nst.FunAp:
		return f.compileApply(a.Fn, a.Args, tailNone, dest)

	case nst.PartAp:
		return f.compilePartAp(a, dest, true)

	case nst.Match:
		return f.compileMatch(a, dest, false)

	case nst.Module:
		return f.compileModule(a, dest)

	case nst.ModuleLookup:
		return f.compileModuleLookup(a, dest)

	default:
		return fmtErr("codegen: unhandled NST atom %T", av)
	}
}

// compileVarRef implements spec §4.3.1's "Var dispatch": every var kind
// reaching codegen (LocalVar, FunParam, DynamicFreeVar — ConstantFreeVar
// is already resolved away by the normalizer's hoisting, see
// pkg/normalize/atomize.go's atomizeVar) is just a register the current
// frame already holds; emit a move, propagating the direct-call flag so
// a rebound alias of a known function stays call-able without gen_ap.
func (f *fnCtx) compileVarRef(v nst.Var, dest Register) error {
	src, err := regOf(f, v)
	if err != nil {
		return err
	}
	if src != dest {
		f.emit(tac.Instruction{Op: tac.OpMove, R0: reg8(dest), R1: reg8(src)})
	}
	if f.directCallRegs[src] {
		f.directCallRegs[dest] = true
	}
	return nil
}

var primOpcode = map[string]tac.Op{
	"+": tac.OpAdd, "-": tac.OpSub, "*": tac.OpMul, "/": tac.OpDiv,
	"<": tac.OpLt, ">": tac.OpGt, "==": tac.OpEq,
	"||": tac.OpOr, "&&": tac.OpAnd,
}

func (f *fnCtx) compilePrimOp(p nst.PrimOp, dest Register) error {
	if p.Op == "!" {
		src, err := regOf(f, p.Args[0])
		if err != nil {
			return err
		}
		f.emit(tac.Instruction{Op: tac.OpNot, R0: reg8(dest), R1: reg8(src)})
		return nil
	}
	op, ok := primOpcode[p.Op]
	if !ok {
		return fmtErr("codegen: unknown primitive operator %q", p.Op)
	}
	lhs, err := regOf(f, p.Args[0])
	if err != nil {
		return err
	}
	rhs, err := regOf(f, p.Args[1])
	if err != nil {
		return err
	}
	f.emit(tac.Instruction{Op: op, R0: reg8(dest), R1: reg8(lhs), R2: reg8(rhs)})
	return nil
}

// compileCompoundSymbol implements spec §4.3.1: a fully-static symbol is
// just a const-table reference (load_cs); one with dynamic slot fills is
// copied onto the heap (copy_sym) and then patched field by field.
func (f *fnCtx) compileCompoundSymbol(cs nst.CompoundSymbol, dest Register) error {
	if len(cs.SlotFills) == 0 {
		f.emit(tac.Instruction{Op: tac.OpLoadCS, R0: reg8(dest), Imm: int32(cs.Addr)})
		return nil
	}
	f.emit(tac.Instruction{Op: tac.OpCopySym, R0: reg8(dest), Imm: int32(cs.Addr)})
	for _, fill := range cs.SlotFills {
		valReg, err := regOf(f, fill.Var)
		if err != nil {
			return err
		}
		f.emit(tac.Instruction{Op: tac.OpSetSymField, R0: reg8(dest), R1: reg8(valReg), R2: uint8(fill.SlotIndex)})
	}
	return nil
}

// compileLambda implements spec §4.3.1's two Lambda rules. A zero-capture
// lambda compiles to a bare function value (load_f, no make_cl boxing); a
// capturing lambda
// stages its free vars via set_arg, loads the function address, boxes it
// with make_cl, and patches its own self-reference slot if it has one.
func (f *fnCtx) compileLambda(lam nst.Lambda, dest Register) error {
	child := f.gen.newFunc(lam.Name)
	funcIdx := len(f.gen.funcs) - 1

	if _, err := child.ra.Reserve(len(lam.FreeVars) + len(lam.Params)); err != nil {
		return err
	}
	for i, fv := range lam.FreeVars {
		r := Register(i)
		child.vars.set(fv.Name, r)
		child.ra.Pin(r)
	}
	for i, p := range lam.Params {
		r := Register(len(lam.FreeVars) + i)
		child.vars.set(p, r)
		child.ra.Pin(r)
	}
	if err := child.compileFunctionBody(lam.Body); err != nil {
		return err
	}
	child.fn.NumFreeVars = len(lam.FreeVars)
	child.fn.NumParams = len(lam.Params)
	child.fn.NumRegs = child.ra.MaxRegs()

	if lam.SelfSlot >= 0 {
		// The self capture is staged from dest before the closure exists;
		// set_cl_val below overwrites that slot with the finished closure.
		f.vars.set(lam.FreeVars[lam.SelfSlot].Name, dest)
	}
	direct, err := f.emitClosureValue(funcIdx, lam.FreeVars, dest)
	if err != nil {
		return err
	}
	if !direct && lam.SelfSlot >= 0 {
		f.emit(tac.Instruction{Op: tac.OpSetClVal, R0: reg8(dest), R1: reg8(dest), R2: uint8(lam.SelfSlot)})
	}
	return nil
}
