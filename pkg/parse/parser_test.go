package parse

import (
	"testing"

	"lamvm/pkg/assemble"
	"lamvm/pkg/codegen"
	"lamvm/pkg/normalize"
	"lamvm/pkg/values"
	"lamvm/pkg/vm"
)

func runVM(prog *assemble.Program) (values.Value, error) {
	return vm.New(prog).Run()
}

// run parses src and drives it all the way through normalize -> codegen ->
// assemble -> vm.Run, mirroring pkg/vm/vm_test.go's run() helper but
// starting from source text instead of a hand-built ast.Expr.
func run(t *testing.T, src string) values.Value {
	t.Helper()
	program, errs := ParseProgram(src)
	if len(errs) != 0 {
		t.Fatalf("parse %q: %v", src, errs)
	}
	res, err := normalize.Normalize(program)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	tacProg, err := codegen.Generate(res.Expr, res.Table, res.Symbols)
	if err != nil {
		t.Fatalf("codegen: %v", err)
	}
	asmProg, err := assemble.Assemble(tacProg, res.Table, res.Symbols)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	result, err := runVM(asmProg)
	if err != nil {
		t.Fatalf("vm: %v", err)
	}
	return result
}

func TestNumberLiteral(t *testing.T) {
	got := run(t, "42")
	if got.AsNumber() != 42 {
		t.Fatalf("got %v, want 42", got)
	}
}

func TestPlainSymbolLiteral(t *testing.T) {
	got := run(t, ":ok")
	if got.Tag() != values.TagPlainSymbol {
		t.Fatalf("got %v, want a plain symbol", got)
	}
}

func TestValAndAdd(t *testing.T) {
	src := `
val x = 5
val y = 3
+ x y
`
	got := run(t, src)
	if got.AsNumber() != 8 {
		t.Fatalf("got %v, want 8", got)
	}
}

func TestArithmeticPrimitives(t *testing.T) {
	cases := []struct {
		src  string
		want int32
	}{
		{"+ 10 3", 13},
		{"- 10 3", 7},
		{"* 10 3", 30},
		{"/ 10 3", 3},
	}
	for _, c := range cases {
		got := run(t, c.src)
		if got.AsNumber() != c.want {
			t.Errorf("%q = %v, want %d", c.src, got, c.want)
		}
	}
}

func TestComparisonAndBooleanPrimitives(t *testing.T) {
	truthy := run(t, "< 3 10")
	if truthy.AsSymbolID() != 1 {
		t.Fatalf("3<10 = %v, want true", truthy)
	}
	falsy := run(t, "> 3 10")
	if falsy.AsSymbolID() != 0 {
		t.Fatalf("3>10 = %v, want false", falsy)
	}
	and := run(t, "&& (< 1 2) (> 5 1)")
	if and.AsSymbolID() != 1 {
		t.Fatalf("and = %v, want true", and)
	}
	not := run(t, "! (== 1 2)")
	if not.AsSymbolID() != 1 {
		t.Fatalf("not(1==2) = %v, want true", not)
	}
}

// TestMakeAdder mirrors the nested-closure scenario: a lambda returning a
// lambda that captures its outer parameter.
func TestMakeAdder(t *testing.T) {
	src := `
val make-adder (x) = (y) = + x y
val add5 = make-adder 5
add5 3
`
	got := run(t, src)
	if got.AsNumber() != 8 {
		t.Fatalf("make-adder(5)(3) = %v, want 8", got)
	}
}

// TestMakeSubFourParams mirrors a 4-parameter nested-subtraction scenario:
// two levels of capture, arithmetic threaded through both.
func TestMakeSubFourParams(t *testing.T) {
	src := `
val make-sub (a b) = (c d) = - (- a b) (- c d)
val sub1 = make-sub 20 5
sub1 3 1
`
	// (20-5) - (3-1) = 15 - 2 = 13
	got := run(t, src)
	if got.AsNumber() != 13 {
		t.Fatalf("make-sub(20,5)(3,1) = %v, want 13", got)
	}
}

// TestDeepNestedClosureCapture chains three levels of lambda, each
// capturing the enclosing parameter.
func TestDeepNestedClosureCapture(t *testing.T) {
	src := `
val f (x) = (y) = (z) = + (+ x y) z
f 1 2 3
`
	got := run(t, src)
	if got.AsNumber() != 6 {
		t.Fatalf("f(1)(2)(3) = %v, want 6", got)
	}
}

// TestRecursiveCountdown exercises self-reference resolution and the
// tail-call path via match, using a parenthesized application as the
// recursive call's argument.
func TestRecursiveCountdown(t *testing.T) {
	src := `
val countdown (n) = match n {
	0 -> 0,
	m -> countdown (- m 1),
}
countdown 50000
`
	got := run(t, src)
	if got.AsNumber() != 0 {
		t.Fatalf("countdown(50000) = %v, want 0", got)
	}
}

// TestPartialApplication exercises a static under-saturated call producing
// a closure value that's later applied to the remaining argument.
func TestPartialApplication(t *testing.T) {
	src := `
val add3 (a b c) = + (+ a b) c
val add-to-10 = add3 4 6
add-to-10 7
`
	got := run(t, src)
	if got.AsNumber() != 17 {
		t.Fatalf("add3(4,6)(7) = %v, want 17", got)
	}
}

// TestCompoundSymbolMatch exercises tagged-symbol construction and
// destructuring via match, including a dynamic (non-static) field.
func TestCompoundSymbolMatch(t *testing.T) {
	src := `
val n = 7
val pair = :pair(n, 9)
match pair {
	:pair(a, b) -> + a b,
}
`
	got := run(t, src)
	if got.AsNumber() != 16 {
		t.Fatalf("pair match sum = %v, want 16", got)
	}
}

func TestDivisionByZeroTraps(t *testing.T) {
	program, errs := ParseProgram("/ 1 0")
	if len(errs) != 0 {
		t.Fatalf("parse: %v", errs)
	}
	res, err := normalize.Normalize(program)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	tacProg, err := codegen.Generate(res.Expr, res.Table, res.Symbols)
	if err != nil {
		t.Fatalf("codegen: %v", err)
	}
	asmProg, err := assemble.Assemble(tacProg, res.Table, res.Symbols)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if _, err := runVM(asmProg); err == nil {
		t.Fatal("expected a runtime trap for division by zero")
	}
}

func TestLambdaAsBareCallArgument(t *testing.T) {
	// The lambda-header backtrack must fire even when the `(` is a bare
	// function-call argument, not just at a val-binding/body position.
	src := `
val apply-twice (f x) = f (f x)
apply-twice ((y) = + y 1) 5
`
	got := run(t, src)
	if got.AsNumber() != 7 {
		t.Fatalf("apply-twice(+1, 5) = %v, want 7", got)
	}
}

func TestModuleLookup(t *testing.T) {
	src := `
val m = module { a = 1, b = 2 }
+ m.a m.b
`
	got := run(t, src)
	if got.AsNumber() != 3 {
		t.Fatalf("m.a + m.b = %v, want 3", got)
	}
}

func TestParseErrorsAccumulate(t *testing.T) {
	_, errs := ParseProgram("val = 1")
	if len(errs) == 0 {
		t.Fatal("expected a parse error for a missing binding name")
	}
}
