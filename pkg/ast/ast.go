// Package ast defines the AST node set the normalizer (spec §4.2) takes as
// input. Producing this tree is an external collaborator's job (the lexer
// and parser are explicitly out of scope — spec §1); this package exists
// only so the normalizer has a concrete Go type to consume and so tests
// can build fixtures by hand without a parser.
package ast

import "lamvm/pkg/errors"

// Expr is any AST expression node.
type Expr interface {
	exprNode()
	Pos() errors.Position
}

// Base carries the source position every exported AST node embeds; it is
// exported so other packages (the parser) can set it via a keyed
// composite literal.
type Base struct {
	Position errors.Position
}

func (b Base) Pos() errors.Position { return b.Position }

// Number is an integer literal.
type Number struct {
	Base
	Value int64
}

// PlainSymbol is a bare `:name` literal.
type PlainSymbol struct {
	Base
	Name string
}

// CompoundSymbol is a tagged symbol with a payload, `:name(a1, a2, ...)`.
type CompoundSymbol struct {
	Base
	Tag  string
	Args []Expr
}

// StringLit is a string literal.
type StringLit struct {
	Base
	Value string
}

// Var is a bare identifier reference.
type Var struct {
	Base
	Name string
}

// Let is `val Name = Value` followed by Body (the rest of the enclosing
// block, nested as the tail of the Let chain). A source block with no
// trailing bindings is represented with Body being the final expression.
type Let struct {
	Base
	Name  string
	Value Expr
	Body  Expr
}

// Lambda is `(params) = body`. Name, when non-empty, is the name of the
// enclosing `val` binding this lambda was defined under — the normalizer
// needs it to detect self-recursive references (spec §4.2.4).
type Lambda struct {
	Base
	Name   string
	Params []string
	Body   Expr
}

// Apply is function application `fn arg1 arg2 ...`. Includes primitive
// operator uses (`+ a b`); the normalizer decides whether the head
// names a primitive, a known-arity function, or an unknown callee.
type Apply struct {
	Base
	Fn   Expr
	Args []Expr
}

// Match is a pattern-match expression over Subject.
type Match struct {
	Base
	Subject  Expr
	Branches []MatchBranch
}

// MatchBranch pairs a pattern with the expression to evaluate when it
// fires.
type MatchBranch struct {
	Pattern Pattern
	Body    Expr
}

// Module groups named bound expressions (spec §4.2.2's Module atom).
type Module struct {
	Base
	Fields []ModuleField
}

// ModuleField is one `name = value` pair inside a Module literal.
type ModuleField struct {
	Name  string
	Value Expr
}

// ModuleLookup is the qualified-name form `mod.name`.
type ModuleLookup struct {
	Base
	Module Expr
	Name   string
}

func (Number) exprNode()         {}
func (PlainSymbol) exprNode()    {}
func (CompoundSymbol) exprNode() {}
func (StringLit) exprNode()      {}
func (Var) exprNode()            {}
func (Let) exprNode()            {}
func (Lambda) exprNode()         {}
func (Apply) exprNode()          {}
func (Match) exprNode()          {}
func (Module) exprNode()         {}
func (ModuleLookup) exprNode()   {}

// NewNumber, NewVar, etc. are small constructors used by hand-built test
// fixtures (see pkg/normalize's tests) and by pkg/parse — a keyed literal
// can't reach Position directly since it lives on the embedded Base, so
// every node gets a position-carrying constructor.
func NewNumber(pos errors.Position, v int64) *Number { return &Number{Base{pos}, v} }
func NewVar(pos errors.Position, name string) *Var   { return &Var{Base{pos}, name} }

func NewPlainSymbol(pos errors.Position, name string) *PlainSymbol {
	return &PlainSymbol{Base{pos}, name}
}

func NewCompoundSymbol(pos errors.Position, tag string, args []Expr) *CompoundSymbol {
	return &CompoundSymbol{Base{pos}, tag, args}
}

func NewStringLit(pos errors.Position, v string) *StringLit { return &StringLit{Base{pos}, v} }

func NewLet(pos errors.Position, name string, value, body Expr) *Let {
	return &Let{Base{pos}, name, value, body}
}

func NewLambda(pos errors.Position, name string, params []string, body Expr) *Lambda {
	return &Lambda{Base{pos}, name, params, body}
}

func NewApply(pos errors.Position, fn Expr, args []Expr) *Apply {
	return &Apply{Base{pos}, fn, args}
}

func NewMatch(pos errors.Position, subject Expr, branches []MatchBranch) *Match {
	return &Match{Base{pos}, subject, branches}
}

func NewModule(pos errors.Position, fields []ModuleField) *Module {
	return &Module{Base{pos}, fields}
}

func NewModuleLookup(pos errors.Position, module Expr, name string) *ModuleLookup {
	return &ModuleLookup{Base{pos}, module, name}
}

// Pattern is any match-pattern node (spec §4.2.3).
type Pattern interface {
	patternNode()
}

type PatNumber struct{ Value int64 }
type PatSymbol struct {
	Tag  string
	Args []Pattern
}
type PatVar struct{ Name string }
type PatWildcard struct{}

func (PatNumber) patternNode()  {}
func (PatSymbol) patternNode()  {}
func (PatVar) patternNode()     {}
func (PatWildcard) patternNode() {}
