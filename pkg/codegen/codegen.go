// Package codegen implements spec §4.3: lowering NST into three-address
// code over a virtual register file, materializing closures, set-argument
// sequences, tail calls, and match dispatch tables. Grounded on a
// compiler's single Compile entry point, a set of emit* helpers per node
// kind, and a dedicated register allocator — adapted here for a flat,
// untyped register machine rather than a typed value model.
package codegen

import (
	"fmt"

	"lamvm/pkg/consttab"
	coreerr "lamvm/pkg/errors"
	"lamvm/pkg/nst"
	"lamvm/pkg/symtab"
	"lamvm/pkg/tac"
	"lamvm/pkg/trace"
)

// Generator lowers one normalized program into a tac.Program. It also
// owns continued writes to the const-table for atoms whose shape isn't
// known until codegen time (Module cells — spec §4.2.2 defers nothing
// else to this stage).
type Generator struct {
	funcs   []*tac.Function
	table   *consttab.Table
	symbols *symtab.SymbolTable

	moduleSymbolID uint32
	moduleSymSet   bool
}

// Generate is the package's single entry point (spec §4.3's contract).
func Generate(expr nst.Expr, table *consttab.Table, symbols *symtab.SymbolTable) (*tac.Program, error) {
	g := &Generator{table: table, symbols: symbols}
	entry := g.newFunc("<entry>")
	g.funcs[0] = entry.fn // entry point is function index 0

	if err := entry.compileFunctionBody(expr); err != nil {
		return nil, err
	}
	entry.fn.NumRegs = entry.ra.MaxRegs()

	return &tac.Program{Functions: g.funcs}, nil
}

func internalErr(msg string) error {
	return &coreerr.InternalCompilerError{Msg: msg}
}

func fmtErr(format string, args ...interface{}) error {
	return internalErr(fmt.Sprintf(format, args...))
}

// varMap tracks which register each NstVar currently lives in. An
// NstVar's Kind (LocalVar/FunParam/DynamicFreeVar) already tells us which
// of spec §4.3's three named maps (functionParams/freeVariables/
// localVariables) it belongs to, so one map suffices here; Module/Match
// codegen never need to distinguish the namespaces beyond that.
type varMap struct {
	regs map[string]Register
}

func newVarMap() *varMap { return &varMap{regs: make(map[string]Register)} }

func (m *varMap) set(name string, r Register)     { m.regs[name] = r }
func (m *varMap) get(name string) (Register, bool) { r, ok := m.regs[name]; return r, ok }

// fnCtx is the per-function compilation state: the register allocator,
// the function being assembled, variable bindings, and the set of
// registers known at compile time to hold a bare function address rather
// than a heap closure (spec §4.3's "directCallRegs").
type fnCtx struct {
	gen            *Generator
	ra             *RegisterAllocator
	fn             *tac.Function
	vars           *varMap
	directCallRegs map[Register]bool
}

func (g *Generator) newFunc(name string) *fnCtx {
	fn := &tac.Function{Name: name}
	f := &fnCtx{
		gen:            g,
		ra:             NewRegisterAllocator(),
		fn:             fn,
		vars:           newVarMap(),
		directCallRegs: make(map[Register]bool),
	}
	g.funcs = append(g.funcs, fn)
	return f
}

func (f *fnCtx) emit(ins tac.Instruction) {
	trace.Printf("codegen", "fn=%s emit %s", f.fn.Name, ins.String())
	f.fn.Code = append(f.fn.Code, ins)
}

// wordLen reports how many machine words an assembled instruction of this
// op occupies: RI-form ops carry a full 32-bit immediate in a trailing
// word (a signed 28-bit number literal does not fit in
// the leftover bits spec §6 describes for a single packed word), every
// other form packs into one word.
func wordLen(ins tac.Instruction) int {
	if ins.Op.Form() == tac.FormRI {
		return 2
	}
	return 1
}

// wordLenOf sums wordLen across a whole instruction slice — used by match
// lowering (spec §4.3.2) to compute jump-table offsets in the same units
// the assembler and VM advance ip by.
func wordLenOf(code []tac.Instruction) int {
	n := 0
	for _, ins := range code {
		n += wordLen(ins)
	}
	return n
}

// reg8 converts a codegen Register to the tac package's raw register
// field type (tac.Reg is an alias for uint8; Register is a distinct named
// type so the conversion must be explicit at every emit site).
func reg8(r Register) uint8 { return uint8(r) }

func regOf(f *fnCtx, v nst.Var) (Register, error) {
	r, ok := f.vars.get(v.Name)
	if !ok {
		return 0, fmtErr("codegen: unbound variable %q (kind %s)", v.Name, v.Kind)
	}
	return r, nil
}
