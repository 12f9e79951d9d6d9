package normalize

import (
	"testing"

	"lamvm/pkg/ast"
	"lamvm/pkg/errors"
	"lamvm/pkg/nst"
)

func pos() errors.Position { return errors.Position{Line: 1, Column: 1} }

func num(v int64) *ast.Number { return ast.NewNumber(pos(), v) }
func v(name string) *ast.Var  { return ast.NewVar(pos(), name) }

// countLets walks a normalized Expr and counts the Let chain length, the
// way a reader would eyeball how much hoisting a case produced.
func countLets(e nst.Expr) int {
	n := 0
	for {
		l, ok := e.(nst.Let)
		if !ok {
			return n
		}
		n++
		e = l.Body
	}
}

func tailAtom(e nst.Expr) nst.AtomValue {
	for {
		if l, ok := e.(nst.Let); ok {
			e = l.Body
			continue
		}
		return e.(nst.Atom).Value
	}
}

func TestNormalizeLiteralNumber(t *testing.T) {
	res, err := Normalize(num(42))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	tail := tailAtom(res.Expr)
	n, ok := tail.(nst.Number)
	if !ok || n.Value != 42 {
		t.Fatalf("want Number{42}, got %#v", tail)
	}
}

func TestNormalizeLetBindingHoists(t *testing.T) {
	// val x = 1 + 2; x
	program := &ast.Let{
		Name:  "x",
		Value: &ast.Apply{Fn: v("+"), Args: []ast.Expr{num(1), num(2)}},
		Body:  v("x"),
	}
	res, err := Normalize(program)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	// Both literal operands are hoisted into their own lets (PrimOp takes
	// vars), followed by the let for x itself.
	if got := countLets(res.Expr); got != 3 {
		t.Fatalf("want two hoisted operand lets plus x, got %d: %#v", got, res.Expr)
	}
	xLet := res.Expr.(nst.Let).Body.(nst.Let).Body.(nst.Let)
	if xLet.Var.Name != "x" || xLet.Var.Kind != nst.LocalVar {
		t.Fatalf("want LocalVar x, got %#v", xLet.Var)
	}
	prim, ok := xLet.Atom.Value.(nst.PrimOp)
	if !ok || prim.Op != "+" {
		t.Fatalf("want PrimOp +, got %#v", xLet.Atom.Value)
	}
	tail := tailAtom(res.Expr)
	ref, ok := tail.(nst.VarRef)
	if !ok || ref.V.Name != "x" || ref.V.Kind != nst.LocalVar {
		t.Fatalf("want VarRef to local x, got %#v", tail)
	}
}

func TestNormalizeClosureOverConstantRematerializes(t *testing.T) {
	// val k = 10; val f = (n) = n + k; f 5
	program := &ast.Let{
		Name:  "k",
		Value: num(10),
		Body: &ast.Let{
			Name: "f",
			Value: &ast.Lambda{
				Name:   "f",
				Params: []string{"n"},
				Body:   &ast.Apply{Fn: v("+"), Args: []ast.Expr{v("n"), v("k")}},
			},
			Body: &ast.Apply{Fn: v("f"), Args: []ast.Expr{num(5)}},
		},
	}
	res, err := Normalize(program)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	var lam nst.Lambda
	found := false
	for e := res.Expr; ; {
		l, ok := e.(nst.Let)
		if !ok {
			break
		}
		if lv, ok := l.Atom.Value.(nst.Lambda); ok {
			lam, found = lv, true
		}
		e = l.Body
	}
	if !found {
		t.Fatalf("lambda not found in %#v", res.Expr)
	}
	if len(lam.FreeVars) != 0 {
		t.Fatalf("closure over a constant must capture nothing, got %#v", lam.FreeVars)
	}
	// k must be rematerialized inside the lambda body via a $locconst: let,
	// not captured.
	body := lam.Body
	sawLocconst := false
	for {
		l, ok := body.(nst.Let)
		if !ok {
			break
		}
		if l.Var.Name == "$locconst:k" {
			sawLocconst = true
		}
		body = l.Body
	}
	if !sawLocconst {
		t.Fatalf("expected a $locconst: rematerialization of k inside the lambda body")
	}
}

func TestNormalizeDynamicClosureCaptures(t *testing.T) {
	// val mk = (x) = (y) = x + y; mk 1
	inner := &ast.Lambda{Params: []string{"y"}, Body: &ast.Apply{Fn: v("+"), Args: []ast.Expr{v("x"), v("y")}}}
	outer := &ast.Let{
		Name:  "mk",
		Value: &ast.Lambda{Name: "mk", Params: []string{"x"}, Body: inner},
		Body:  &ast.Apply{Fn: v("mk"), Args: []ast.Expr{num(1)}},
	}
	res, err := Normalize(outer)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	var outerLam nst.Lambda
	for e := res.Expr; ; {
		l, ok := e.(nst.Let)
		if !ok {
			break
		}
		if lv, ok := l.Atom.Value.(nst.Lambda); ok {
			outerLam = lv
		}
		e = l.Body
	}
	// the inner lambda is the tail atom of outer's body.
	innerAtom := tailAtom(outerLam.Body)
	innerLam, ok := innerAtom.(nst.Lambda)
	if !ok {
		t.Fatalf("want inner Lambda as outer's body tail, got %#v", innerAtom)
	}
	if len(innerLam.FreeVars) != 1 || innerLam.FreeVars[0].Name != "x" || innerLam.FreeVars[0].Kind != nst.DynamicFreeVar {
		t.Fatalf("want inner lambda to dynamically capture x, got %#v", innerLam.FreeVars)
	}
}

func TestNormalizeRecursionAddsSelfCapture(t *testing.T) {
	// val fact = (n) = match n { 0 = 1, m = n * (fact (n - 1)) }
	body := &ast.Match{
		Subject: v("n"),
		Branches: []ast.MatchBranch{
			{Pattern: ast.PatNumber{Value: 0}, Body: num(1)},
			{
				Pattern: ast.PatVar{Name: "m"},
				Body: &ast.Apply{Fn: v("*"), Args: []ast.Expr{
					v("n"),
					&ast.Apply{Fn: v("fact"), Args: []ast.Expr{
						&ast.Apply{Fn: v("-"), Args: []ast.Expr{v("n"), num(1)}},
					}},
				}},
			},
		},
	}
	program := &ast.Let{
		Name:  "fact",
		Value: &ast.Lambda{Name: "fact", Params: []string{"n"}, Body: body},
		Body:  &ast.Apply{Fn: v("fact"), Args: []ast.Expr{num(5)}},
	}
	res, err := Normalize(program)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	first := res.Expr.(nst.Let)
	lam, ok := first.Atom.Value.(nst.Lambda)
	if !ok {
		t.Fatalf("want top-level Lambda, got %#v", first.Atom.Value)
	}
	if lam.SelfSlot < 0 {
		t.Fatalf("recursive lambda must have a self-reference slot assigned, got SelfSlot=%d", lam.SelfSlot)
	}
	if lam.FreeVars[lam.SelfSlot].Name != "fact" {
		t.Fatalf("self slot must capture fact, got %#v", lam.FreeVars[lam.SelfSlot])
	}

	// the recursive call lives inside the match's second branch; its Fn
	// reference must have been rewritten from RecursiveVar to
	// DynamicFreeVar, and that branch's FreeVars must include it too (the
	// capture threads from the lambda's own self slot through the branch).
	matchAtom := tailAtom(lam.Body)
	m, ok := matchAtom.(nst.Match)
	if !ok {
		t.Fatalf("want Match as lambda body tail, got %#v", matchAtom)
	}
	branch1 := m.Branches[1].Value.(nst.MatchBranch)
	sawFactCapture := false
	for _, fv := range branch1.FreeVars {
		if fv.Name == "fact" && fv.Kind == nst.DynamicFreeVar {
			sawFactCapture = true
		}
	}
	if !sawFactCapture {
		t.Fatalf("match branch calling fact recursively must capture it as a dynamic free var, got %#v", branch1.FreeVars)
	}
}

func TestNormalizePartialApplication(t *testing.T) {
	// val add3 = (a, b, c) = a; add3 1
	program := &ast.Let{
		Name:  "add3",
		Value: &ast.Lambda{Name: "add3", Params: []string{"a", "b", "c"}, Body: v("a")},
		Body:  &ast.Apply{Fn: v("add3"), Args: []ast.Expr{num(1)}},
	}
	res, err := Normalize(program)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	tail := tailAtom(res.Expr)
	pa, ok := tail.(nst.PartAp)
	if !ok || len(pa.Args) != 1 {
		t.Fatalf("want PartAp with one arg, got %#v", tail)
	}
}

func TestNormalizePartialApplicationOfClosureIsCompileError(t *testing.T) {
	// val mk = (x) = ( val f = (a, b) = a + b + x; f 1 ); mk 10
	//
	// f is a named lambda that dynamically captures x from mk's scope, so
	// its tracked arity has NumFreeVars > 0; applying it to fewer args
	// than its formal arity has no static closure encoding (spec §4.2.2)
	// and must be rejected rather than silently mis-lowered.
	fBody := &ast.Apply{Fn: v("+"), Args: []ast.Expr{
		&ast.Apply{Fn: v("+"), Args: []ast.Expr{v("a"), v("b")}},
		v("x"),
	}}
	mkBody := &ast.Let{
		Name:  "f",
		Value: &ast.Lambda{Params: []string{"a", "b"}, Body: fBody},
		Body:  &ast.Apply{Fn: v("f"), Args: []ast.Expr{num(1)}},
	}
	program := &ast.Let{
		Name:  "mk",
		Value: &ast.Lambda{Params: []string{"x"}, Body: mkBody},
		Body:  &ast.Apply{Fn: v("mk"), Args: []ast.Expr{num(10)}},
	}
	_, err := Normalize(program)
	if err == nil {
		t.Fatalf("want a compile error for partial application of a closure")
	}
}

func TestNormalizeOverSaturatedApplication(t *testing.T) {
	// val f = (a) = (b) = a + b; f 1 2
	program := &ast.Let{
		Name: "f",
		Value: &ast.Lambda{Name: "f", Params: []string{"a"}, Body: &ast.Lambda{
			Params: []string{"b"},
			Body:   &ast.Apply{Fn: v("+"), Args: []ast.Expr{v("a"), v("b")}},
		}},
		Body: &ast.Apply{Fn: v("f"), Args: []ast.Expr{num(1), num(2)}},
	}
	res, err := Normalize(program)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	// Over-saturation lowers to a FunAp of the first-arity slice hoisted
	// into a temp, applied again to the rest.
	found := false
	for e := res.Expr; ; {
		l, ok := e.(nst.Let)
		if !ok {
			break
		}
		if fa, ok := l.Atom.Value.(nst.FunAp); ok && len(fa.Args) == 1 {
			found = true
		}
		e = l.Body
	}
	tail := tailAtom(res.Expr)
	if _, ok := tail.(nst.FunAp); !ok {
		t.Fatalf("want a final FunAp applying the result to the remaining arg, got %#v", tail)
	}
	if !found {
		t.Fatalf("want an intermediate saturated FunAp hoisted as a temp")
	}
}

func TestNormalizeStaticCompoundSymbol(t *testing.T) {
	// :pair 1 2
	program := &ast.CompoundSymbol{Tag: "pair", Args: []ast.Expr{num(1), num(2)}}
	res, err := Normalize(program)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	tail := tailAtom(res.Expr)
	cs, ok := tail.(nst.CompoundSymbol)
	if !ok || len(cs.SlotFills) != 0 {
		t.Fatalf("want a fully-static CompoundSymbol, got %#v", tail)
	}
	symID, arity := res.Table.DecodeCompoundSymbolHeader(cs.Addr)
	if arity != 2 {
		t.Fatalf("want arity 2, got %d", arity)
	}
	name := res.Symbols.Name(symID)
	if name != "pair" {
		t.Fatalf("want tag pair, got %s", name)
	}
}

func TestNormalizeDynamicCompoundSymbol(t *testing.T) {
	// val x = 1; :pair x 2
	program := &ast.Let{
		Name:  "x",
		Value: num(1),
		Body:  &ast.CompoundSymbol{Tag: "pair", Args: []ast.Expr{v("x"), num(2)}},
	}
	res, err := Normalize(program)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	tail := tailAtom(res.Expr)
	cs, ok := tail.(nst.CompoundSymbol)
	if !ok || len(cs.SlotFills) != 1 {
		t.Fatalf("want one dynamic slot fill, got %#v", tail)
	}
	if cs.SlotFills[0].SlotIndex != 0 {
		t.Fatalf("want the dynamic slot at index 0, got %d", cs.SlotFills[0].SlotIndex)
	}
}

func TestNormalizeUnknownVariableIsCompileError(t *testing.T) {
	_, err := Normalize(v("nope"))
	if err == nil {
		t.Fatalf("want a compile error for an unresolved variable")
	}
}

func TestNormalizeMatchWildcardSkipsBinding(t *testing.T) {
	// match 1 { _ = 2 }
	program := &ast.Match{
		Subject: num(1),
		Branches: []ast.MatchBranch{
			{Pattern: ast.PatWildcard{}, Body: num(2)},
		},
	}
	res, err := Normalize(program)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	tail := tailAtom(res.Expr)
	m, ok := tail.(nst.Match)
	if !ok {
		t.Fatalf("want Match, got %#v", tail)
	}
	branch := m.Branches[0].Value.(nst.MatchBranch)
	if branch.MatchedVars[0] != "_" {
		t.Fatalf("want wildcard recorded as _, got %v", branch.MatchedVars)
	}
}
