package normalize

import (
	"lamvm/pkg/ast"
	"lamvm/pkg/nst"
	"lamvm/pkg/symtab"
)

// atomizeApply lowers a function application, recognizing saturated
// primitive operators and deciding saturated/partial/over-saturated
// FunAp/PartAp shape for user functions (spec §4.2.2).
func (n *Normalizer) atomizeApply(e *emitter, ex *ast.Apply) (nst.AtomValue, error) {
	if fnVar, ok := ex.Fn.(*ast.Var); ok {
		if arity, isPrim := primArity[fnVar.Name]; isPrim && arity == len(ex.Args) {
			args, err := n.atomizeArgs(e, ex.Args)
			if err != nil {
				return nil, err
			}
			return nst.PrimOp{Op: fnVar.Name, Args: args}, nil
		}
	}

	fnAtom, err := n.atomize(e, ex.Fn)
	if err != nil {
		return nil, err
	}
	fnResolved := e.ensureVar(fnAtom, isConstantAtom(fnAtom))

	args, err := n.atomizeArgs(e, ex.Args)
	if err != nil {
		return nil, err
	}

	var arity *symtab.Arity
	if fnVar, ok := ex.Fn.(*ast.Var); ok {
		if a, found := n.Arities.Get(fnVar.Name); found {
			arity = &a
		}
	}

	if arity == nil {
		return nst.FunAp{Fn: fnResolved, Args: args}, nil
	}

	switch {
	case len(args) == arity.NumParams:
		return nst.FunAp{Fn: fnResolved, Args: args}, nil
	case len(args) < arity.NumParams:
		if arity.NumFreeVars > 0 {
			return nil, internalErr(ex.Pos(), "partial application of a closure has no static encoding")
		}
		return nst.PartAp{Fn: fnResolved, Args: args}, nil
	default:
		first := args[:arity.NumParams]
		rest := args[arity.NumParams:]
		result := e.hoist(nst.FunAp{Fn: fnResolved, Args: first}, false)
		return nst.FunAp{Fn: result, Args: rest}, nil
	}
}

func (n *Normalizer) atomizeArgs(e *emitter, exprs []ast.Expr) ([]nst.Var, error) {
	args := make([]nst.Var, len(exprs))
	for i, a := range exprs {
		atom, err := n.atomize(e, a)
		if err != nil {
			return nil, err
		}
		args[i] = e.ensureVar(atom, isConstantAtom(atom))
	}
	return args, nil
}
