package normalize

import (
	"lamvm/pkg/ast"
	"lamvm/pkg/consttab"
	coreerr "lamvm/pkg/errors"
	"lamvm/pkg/nst"
	"lamvm/pkg/symtab"
	"lamvm/pkg/values"
)

// primArity is the fixed arity of each recognized primitive operator
// (spec §4.2.2).
var primArity = map[string]int{
	"+": 2, "-": 2, "*": 2, "/": 2,
	"<": 2, ">": 2, "==": 2,
	"||": 2, "&&": 2, "!": 1,
}

// Normalizer holds the compile-time tables threaded through normalization:
// the const-table being built, the symbol-name table, and the arity table
// used to decide function-application saturation.
type Normalizer struct {
	Table    *consttab.Table
	Symbols  *symtab.SymbolTable
	Arities  *symtab.ArityTable
}

func newNormalizer() *Normalizer {
	return &Normalizer{
		Table:   consttab.New(),
		Symbols: symtab.New(),
		Arities: symtab.NewArityTable(),
	}
}

func internalErr(pos coreerr.Position, msg string) error {
	return &coreerr.InternalCompilerError{Position: pos, Msg: msg}
}

func codeErr(pos coreerr.Position, msg string) error {
	return &coreerr.CodeError{Position: pos, Msg: msg}
}

// atomize reduces expr to a single atom, hoisting any non-trivial
// sub-expression into a fresh Let binding via e (spec §4.2.2).
func (n *Normalizer) atomize(e *emitter, expr ast.Expr) (nst.AtomValue, error) {
	switch ex := expr.(type) {

	case *ast.Number:
		if !values.NumberInRange(ex.Value) {
			return nil, codeErr(ex.Pos(), "integer literal out of 28-bit range")
		}
		return nst.Number{Value: ex.Value}, nil

	case *ast.PlainSymbol:
		return nst.PlainSymbol{SymbolID: n.Symbols.Intern(ex.Name)}, nil

	case *ast.StringLit:
		return nst.String{Addr: n.Table.AddString(ex.Value)}, nil

	case *ast.CompoundSymbol:
		return n.atomizeCompoundSymbol(e, ex)

	case *ast.Var:
		return n.atomizeVar(e, ex)

	case *ast.Let:
		return n.atomizeLet(e, ex)

	case *ast.Lambda:
		return n.atomizeLambda(e, ex)

	case *ast.Apply:
		return n.atomizeApply(e, ex)

	case *ast.Match:
		return n.atomizeMatch(e, ex)

	case *ast.Module:
		return n.atomizeModule(e, ex)

	case *ast.ModuleLookup:
		return n.atomizeModuleLookup(e, ex)

	default:
		return nil, internalErr(expr.Pos(), "normalize: unhandled AST node")
	}
}

func (n *Normalizer) atomizeVar(e *emitter, ex *ast.Var) (nst.AtomValue, error) {
	if v, ok := e.ctx.constMemo[ex.Name]; ok {
		return nst.VarRef{V: v}, nil
	}
	r, err := e.ctx.lookup(ex.Name)
	if err != nil {
		return nil, codeErr(ex.Pos(), err.Error())
	}
	switch r.kind {
	case nst.ConstantFreeVar:
		local := e.hoistNamed("$locconst:"+ex.Name, r.constAtom, true)
		e.ctx.constMemo[ex.Name] = local
		return nst.VarRef{V: local}, nil
	default:
		return nst.VarRef{V: nst.Var{Name: ex.Name, Kind: r.kind}}, nil
	}
}

func (n *Normalizer) atomizeLet(e *emitter, ex *ast.Let) (nst.AtomValue, error) {
	if lam, ok := ex.Value.(*ast.Lambda); ok && lam.Name == "" {
		named := *lam
		named.Name = ex.Name
		ex = &ast.Let{Name: ex.Name, Value: &named, Body: ex.Body}
	}
	valAtom, err := n.atomize(e, ex.Value)
	if err != nil {
		return nil, err
	}
	e.hoistNamed(ex.Name, valAtom, isConstantAtom(valAtom))
	return n.atomize(e, ex.Body)
}

// tryStatic attempts to fully const-table-encode expr without touching
// the emitter, per spec §4.2.2's syntactic definition of "static": a
// number, a plain symbol, or a compound symbol whose every argument is
// itself static. A bare variable reference is never static by this rule,
// even one bound to a constant.
func (n *Normalizer) tryStatic(expr ast.Expr) (values.Value, bool) {
	switch ex := expr.(type) {
	case *ast.Number:
		if !values.NumberInRange(ex.Value) {
			return 0, false
		}
		return values.Number(int32(ex.Value)), true
	case *ast.PlainSymbol:
		return values.PlainSymbol(n.Symbols.Intern(ex.Name)), true
	case *ast.CompoundSymbol:
		args := make([]values.Value, len(ex.Args))
		for i, a := range ex.Args {
			v, ok := n.tryStatic(a)
			if !ok {
				return 0, false
			}
			args[i] = v
		}
		addr := n.Table.AddCompoundSymbol(n.Symbols.Intern(ex.Tag), args)
		return values.CompoundSymbol(addr), true
	default:
		return 0, false
	}
}

func (n *Normalizer) atomizeCompoundSymbol(e *emitter, ex *ast.CompoundSymbol) (nst.AtomValue, error) {
	if v, ok := n.tryStatic(ex); ok {
		return nst.CompoundSymbol{Addr: v.Addr()}, nil
	}
	template := make([]values.Value, len(ex.Args))
	var fills []nst.SlotFill
	for i, a := range ex.Args {
		if v, ok := n.tryStatic(a); ok {
			template[i] = v
			continue
		}
		atom, err := n.atomize(e, a)
		if err != nil {
			return nil, err
		}
		v := e.ensureVar(atom, isConstantAtom(atom))
		template[i] = values.Number(0)
		fills = append(fills, nst.SlotFill{SlotIndex: i, Var: v})
	}
	addr := n.Table.AddCompoundSymbol(n.Symbols.Intern(ex.Tag), template)
	return nst.CompoundSymbol{Addr: addr, SlotFills: fills}, nil
}

func (n *Normalizer) atomizeLambda(e *emitter, ex *ast.Lambda) (nst.AtomValue, error) {
	child := newContext(e.ctx, ex.Name)
	for _, p := range ex.Params {
		child.bindDirect(p, nst.FunParam, false, nil)
	}
	childEmitter := newEmitter(child)
	bodyTail, err := n.atomize(childEmitter, ex.Body)
	if err != nil {
		return nil, err
	}
	body := childEmitter.finish(bodyTail)

	if ex.Name != "" {
		n.Arities.Set(ex.Name, symtab.Arity{NumFreeVars: len(child.freeVars), NumParams: len(ex.Params)})
	}

	// SelfSlot is never known at this point: pass 1 resolves a reference to
	// ex.Name inside Body as a bare RecursiveVar without registering it as
	// a capture anywhere. The recursion resolver (recursion.go) walks the
	// finished NST afterward, decides which lambdas actually need a
	// self-reference capture, and fills SelfSlot in then.
	return nst.Lambda{Name: ex.Name, FreeVars: child.freeVars, Params: ex.Params, Body: body, SelfSlot: -1}, nil
}

func (n *Normalizer) atomizeModule(e *emitter, ex *ast.Module) (nst.AtomValue, error) {
	fields := make([]nst.ModuleField, len(ex.Fields))
	for i, f := range ex.Fields {
		atom, err := n.atomize(e, f.Value)
		if err != nil {
			return nil, err
		}
		v := e.ensureVar(atom, isConstantAtom(atom))
		fields[i] = nst.ModuleField{Name: f.Name, SymbolID: n.Symbols.Intern(f.Name), Value: v}
	}
	return nst.Module{Fields: fields}, nil
}

func (n *Normalizer) atomizeModuleLookup(e *emitter, ex *ast.ModuleLookup) (nst.AtomValue, error) {
	modAtom, err := n.atomize(e, ex.Module)
	if err != nil {
		return nil, err
	}
	modVar := e.ensureVar(modAtom, isConstantAtom(modAtom))
	symVar := e.hoist(nst.PlainSymbol{SymbolID: n.Symbols.Intern(ex.Name)}, true)
	return nst.ModuleLookup{ModVar: modVar, SymVar: symVar}, nil
}
