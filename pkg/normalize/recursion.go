package normalize

import (
	coreerr "lamvm/pkg/errors"
	"lamvm/pkg/nst"
)

// frame tracks one enclosing Lambda/MatchBranch while resolveRecursion
// walks the finished NST. name is the lambda's own `val` binding (""  for
// an anonymous lambda or any MatchBranch — neither can ever own a
// RecursiveVar). extra accumulates the additional free-var captures this
// frame picks up as recursive references are discovered beneath it.
type frame struct {
	name      string
	extra     []nst.Var
	extraSeen map[string]bool
}

func newFrame(name string) *frame {
	return &frame{name: name, extraSeen: make(map[string]bool)}
}

// resolveRecursion implements spec §4.2.4: pass 1 leaves every reference
// to a lambda's own name as a bare RecursiveVar atom, deferring the
// decision of how far out a self-reference capture must be threaded until
// the whole body is visible. This pass walks the finished NST, and for
// every RecursiveVar it finds, locates the innermost enclosing frame whose
// name matches and rewrites the reference to an ordinary DynamicFreeVar —
// registering that capture in every frame from the reference site up to
// and including the owning lambda (which needs it as a self-patch slot,
// written via set_cl_val right after its own closure is allocated) or
// the resolver can't place the reference, the caller's pass-1 bookkeeping
// is wrong and this is an internal error, not a code error.
func resolveRecursion(root nst.Expr) (nst.Expr, error) {
	return rewriteExpr(root, nil)
}

func rewriteExpr(expr nst.Expr, stack []*frame) (nst.Expr, error) {
	switch e := expr.(type) {
	case nst.Let:
		newAtom, err := rewriteAtomValue(e.Atom.Value, stack)
		if err != nil {
			return nil, err
		}
		newBody, err := rewriteExpr(e.Body, stack)
		if err != nil {
			return nil, err
		}
		return nst.Let{Var: e.Var, Atom: nst.Atom{Value: newAtom}, Body: newBody}, nil
	case nst.Atom:
		newAtom, err := rewriteAtomValue(e.Value, stack)
		if err != nil {
			return nil, err
		}
		return nst.Atom{Value: newAtom}, nil
	default:
		panic("normalize: unknown nst.Expr in resolveRecursion")
	}
}

// rewriteVar resolves a RecursiveVar against stack, registering the
// capture in every frame from the innermost up to and including the
// owner. Any other kind passes through unchanged.
func rewriteVar(v nst.Var, stack []*frame) (nst.Var, bool) {
	if v.Kind != nst.RecursiveVar {
		return v, true
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].name == v.Name {
			for j := i; j < len(stack); j++ {
				fr := stack[j]
				if !fr.extraSeen[v.Name] {
					fr.extraSeen[v.Name] = true
					fr.extra = append(fr.extra, nst.Var{Name: v.Name, Kind: nst.DynamicFreeVar})
				}
			}
			return nst.Var{Name: v.Name, Kind: nst.DynamicFreeVar}, true
		}
	}
	return v, false
}

func rewriteVars(vars []nst.Var, stack []*frame) ([]nst.Var, error) {
	out := make([]nst.Var, len(vars))
	for i, v := range vars {
		rv, ok := rewriteVar(v, stack)
		if !ok {
			return nil, internalErr(coreerr.Position{}, "recursive reference to unbound name: "+v.Name)
		}
		out[i] = rv
	}
	return out, nil
}

func rewriteVar1(v nst.Var, stack []*frame) (nst.Var, error) {
	rv, ok := rewriteVar(v, stack)
	if !ok {
		return nst.Var{}, internalErr(coreerr.Position{}, "recursive reference to unbound name: "+v.Name)
	}
	return rv, nil
}

func rewriteAtomValue(av nst.AtomValue, stack []*frame) (nst.AtomValue, error) {
	switch a := av.(type) {

	case nst.Number, nst.PlainSymbol, nst.String:
		return a, nil

	case nst.CompoundSymbol:
		if len(a.SlotFills) == 0 {
			return a, nil
		}
		fills := make([]nst.SlotFill, len(a.SlotFills))
		for i, f := range a.SlotFills {
			v, err := rewriteVar1(f.Var, stack)
			if err != nil {
				return nil, err
			}
			fills[i] = nst.SlotFill{SlotIndex: f.SlotIndex, Var: v}
		}
		return nst.CompoundSymbol{Addr: a.Addr, SlotFills: fills}, nil

	case nst.PrimOp:
		args, err := rewriteVars(a.Args, stack)
		if err != nil {
			return nil, err
		}
		return nst.PrimOp{Op: a.Op, Args: args}, nil

	case nst.VarRef:
		v, err := rewriteVar1(a.V, stack)
		if err != nil {
			return nil, err
		}
		return nst.VarRef{V: v}, nil

	case nst.Lambda:
		fr := newFrame(a.Name)
		newStack := append(append([]*frame{}, stack...), fr)
		body, err := rewriteExpr(a.Body, newStack)
		if err != nil {
			return nil, err
		}
		freeVars := append(append([]nst.Var{}, a.FreeVars...), fr.extra...)
		selfSlot := -1
		if a.Name != "" && fr.extraSeen[a.Name] {
			for idx, v := range freeVars {
				if v.Name == a.Name {
					selfSlot = idx
					break
				}
			}
		}
		return nst.Lambda{Name: a.Name, FreeVars: freeVars, Params: a.Params, Body: body, SelfSlot: selfSlot}, nil

	case nst.MatchBranch:
		fr := newFrame("")
		newStack := append(append([]*frame{}, stack...), fr)
		body, err := rewriteExpr(a.Body, newStack)
		if err != nil {
			return nil, err
		}
		freeVars := append(append([]nst.Var{}, a.FreeVars...), fr.extra...)
		return nst.MatchBranch{FreeVars: freeVars, MatchedVars: a.MatchedVars, Body: body, SelfSlot: -1}, nil

	case nst.FunAp:
		fn, err := rewriteVar1(a.Fn, stack)
		if err != nil {
			return nil, err
		}
		args, err := rewriteVars(a.Args, stack)
		if err != nil {
			return nil, err
		}
		return nst.FunAp{Fn: fn, Args: args}, nil

	case nst.PartAp:
		fn, err := rewriteVar1(a.Fn, stack)
		if err != nil {
			return nil, err
		}
		args, err := rewriteVars(a.Args, stack)
		if err != nil {
			return nil, err
		}
		return nst.PartAp{Fn: fn, Args: args}, nil

	case nst.Match:
		subj, err := rewriteVar1(a.Subject, stack)
		if err != nil {
			return nil, err
		}
		branches := make([]nst.Atom, len(a.Branches))
		for i, br := range a.Branches {
			v, err := rewriteAtomValue(br.Value, stack)
			if err != nil {
				return nil, err
			}
			branches[i] = nst.Atom{Value: v}
		}
		return nst.Match{MaxCaptures: a.MaxCaptures, Subject: subj, PatAddr: a.PatAddr, Branches: branches}, nil

	case nst.Module:
		fields := make([]nst.ModuleField, len(a.Fields))
		for i, f := range a.Fields {
			v, err := rewriteVar1(f.Value, stack)
			if err != nil {
				return nil, err
			}
			fields[i] = nst.ModuleField{Name: f.Name, SymbolID: f.SymbolID, Value: v}
		}
		return nst.Module{Fields: fields}, nil

	case nst.ModuleLookup:
		modVar, err := rewriteVar1(a.ModVar, stack)
		if err != nil {
			return nil, err
		}
		symVar, err := rewriteVar1(a.SymVar, stack)
		if err != nil {
			return nil, err
		}
		return nst.ModuleLookup{ModVar: modVar, SymVar: symVar}, nil

	default:
		panic("normalize: unknown nst.AtomValue in resolveRecursion")
	}
}
