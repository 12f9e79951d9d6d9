package normalize

import "lamvm/pkg/nst"

// pendingLet is one hoisted binding accumulated by an emitter, in the
// order it must appear in the final Let chain.
type pendingLet struct {
	v    nst.Var
	atom nst.AtomValue
}

// emitter accumulates the Let-bindings a single function/match-branch
// scope hoists during A-normalization (spec §4.2's "continuation
// discipline", expressed here as accumulate-then-nest rather than true
// CPS — equivalent for a scope whose bindings form a straight-line chain).
type emitter struct {
	ctx     *context
	pending []pendingLet
}

func newEmitter(ctx *context) *emitter { return &emitter{ctx: ctx} }

// hoist binds a fresh temporary to atom and returns its Var.
func (e *emitter) hoist(atom nst.AtomValue, isConst bool) nst.Var {
	return e.hoistNamed(e.ctx.fresh("t"), atom, isConst)
}

// hoistNamed binds name (a user-chosen name, or a synthetic "$locconst:"
// name) to atom.
func (e *emitter) hoistNamed(name string, atom nst.AtomValue, isConst bool) nst.Var {
	v := e.ctx.bindDirect(name, nst.LocalVar, isConst, atom)
	e.pending = append(e.pending, pendingLet{v: v, atom: atom})
	return v
}

// ensureVar returns av's Var directly if it already is one (spec §4.2.2:
// "if the resolved var is FunParam, LocalVar, or DynamicFreeVar, emit it
// directly"), otherwise hoists a fresh temporary for it.
func (e *emitter) ensureVar(av nst.AtomValue, isConst bool) nst.Var {
	if ref, ok := av.(nst.VarRef); ok {
		return ref.V
	}
	return e.hoist(av, isConst)
}

// finish wraps the accumulated pending lets around tail, innermost last.
func (e *emitter) finish(tail nst.AtomValue) nst.Expr {
	var expr nst.Expr = nst.Atom{Value: tail}
	for i := len(e.pending) - 1; i >= 0; i-- {
		p := e.pending[i]
		expr = nst.Let{Var: p.v, Atom: nst.Atom{Value: p.atom}, Body: expr}
	}
	return expr
}

// isConstantAtom classifies an atom as a compile-time constant per spec §3:
// a plain literal, a plain symbol, a constant (fully-static) compound
// symbol, or a non-closure (zero free var) lambda.
func isConstantAtom(av nst.AtomValue) bool {
	switch a := av.(type) {
	case nst.Number, nst.PlainSymbol:
		return true
	case nst.CompoundSymbol:
		return len(a.SlotFills) == 0
	case nst.Lambda:
		return len(a.FreeVars) == 0
	default:
		return false
	}
}
