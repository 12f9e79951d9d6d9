// Package normalize implements spec §4.2: lowering parsed AST into the
// normalized (A-normal-form) NST, alongside the const-table and
// symbol-name table built up as a side effect of encoding literals.
package normalize

import (
	"lamvm/pkg/ast"
	"lamvm/pkg/consttab"
	"lamvm/pkg/nst"
	"lamvm/pkg/symtab"
)

// Result is everything codegen needs out of normalization.
type Result struct {
	Expr    nst.Expr
	Table   *consttab.Table
	Symbols *symtab.SymbolTable
	Arities *symtab.ArityTable
}

// Normalize lowers a top-level program expression to NST. It runs pass 1
// (atomize, building the const/symbol tables as literals are encountered)
// followed by the recursion-resolution post-pass (recursion.go).
func Normalize(program ast.Expr) (*Result, error) {
	n := newNormalizer()
	root := newContext(nil, "")
	e := newEmitter(root)

	tail, err := n.atomize(e, program)
	if err != nil {
		return nil, err
	}
	expr := e.finish(tail)

	resolved, err := resolveRecursion(expr)
	if err != nil {
		return nil, err
	}

	return &Result{Expr: resolved, Table: n.Table, Symbols: n.Symbols, Arities: n.Arities}, nil
}
