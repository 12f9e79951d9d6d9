// Package nst defines the normalized intermediate representation (spec
// §3, §4.2): A-normal-form expressions over classified variables.
package nst

// VarKind classifies an NstVar's binding (spec §3).
type VarKind int

const (
	LocalVar VarKind = iota
	FunParam
	DynamicFreeVar
	ConstantFreeVar
	RecursiveVar
)

func (k VarKind) String() string {
	switch k {
	case LocalVar:
		return "local"
	case FunParam:
		return "param"
	case DynamicFreeVar:
		return "dynamic-free"
	case ConstantFreeVar:
		return "constant-free"
	case RecursiveVar:
		return "recursive"
	default:
		return "?"
	}
}

// Var is a classified variable reference.
type Var struct {
	Name string
	Kind VarKind
}

// Expr is a normalized expression: either a Let or a bare Atom.
type Expr interface{ exprNode() }

// Let binds Atom's value under Var for the remainder of Body.
type Let struct {
	Var  Var
	Atom Atom
	Body Expr
}

// Atom is a terminal expression: the normalized form ends in one.
type Atom struct {
	Value AtomValue
}

func (Let) exprNode()  {}
func (Atom) exprNode() {}

// AtomValue is one of the atom variants from spec §3.
type AtomValue interface{ atomNode() }

type Number struct{ Value int64 }
type PlainSymbol struct{ SymbolID uint32 }

// SlotFill pairs a dynamic argument's register-bearing Var with the slot
// index it fills in a compound-symbol template.
type SlotFill struct {
	SlotIndex int
	Var       Var
}

// CompoundSymbol references a const-table cell at Addr; SlotFills is empty
// for a fully-static symbol, or carries the dynamic args to splice in via
// copy_sym/set_sym_field (spec §4.2.2, §4.3.1).
type CompoundSymbol struct {
	Addr      uint32
	SlotFills []SlotFill
}

type String struct{ Addr uint32 }

// PrimOp is a saturated use of a built-in operator.
type PrimOp struct {
	Op   string
	Args []Var
}

type VarRef struct{ V Var }

// Lambda is a (possibly closed-over) function literal. FreeVars lists the
// outer-scope names it captures, in declared capture order; SelfSlot is
// the index within FreeVars of its own self-reference capture, or -1.
// Name is the enclosing `val` binding's name ("" if anonymous) — the
// recursion resolver (spec §4.2.4) uses it to recognize which lambda owns
// a RecursiveVar reference, and codegen uses it to name the lambda's
// compiled function.
type Lambda struct {
	Name     string
	FreeVars []Var
	Params   []string
	Body     Expr
	SelfSlot int
}

// MatchBranch is a match arm's body, compiled exactly like a lambda whose
// params are its matched vars (spec §4.2.2).
type MatchBranch struct {
	FreeVars    []Var
	MatchedVars []string
	Body        Expr
	SelfSlot    int
}

type FunAp struct {
	Fn   Var
	Args []Var
}

type PartAp struct {
	Fn   Var
	Args []Var
}

// Match is a pattern dispatch: PatAddr is the const-table address of its
// match-data cell, MaxCaptures the widest matched-var count across
// Branches.
type Match struct {
	MaxCaptures int
	Subject     Var
	PatAddr     uint32
	Branches    []Atom // each wraps a MatchBranch
}

type ModuleField struct {
	Name     string
	SymbolID uint32
	Value    Var
}

type Module struct {
	Fields []ModuleField
}

type ModuleLookup struct {
	ModVar Var
	SymVar Var
}

func (Number) atomNode()         {}
func (PlainSymbol) atomNode()    {}
func (CompoundSymbol) atomNode() {}
func (String) atomNode()         {}
func (PrimOp) atomNode()         {}
func (VarRef) atomNode()         {}
func (Lambda) atomNode()         {}
func (MatchBranch) atomNode()    {}
func (FunAp) atomNode()          {}
func (PartAp) atomNode()         {}
func (Match) atomNode()          {}
func (Module) atomNode()         {}
func (ModuleLookup) atomNode()   {}
