package codegen

import (
	"lamvm/pkg/nst"
	"lamvm/pkg/tac"
	"lamvm/pkg/values"
)

// moduleTagSymbol interns (once per program) the reserved symbol every
// module cell is header-tagged with, so the VM's heap walker can tell a
// module record apart from an ordinary compound symbol sharing the same
// arity (spec §9's open question on the module name-lookup primitive).
func (g *Generator) moduleTagSymbol() uint32 {
	if !g.moduleSymSet {
		g.moduleSymbolID = g.symbols.Intern("#module")
		g.moduleSymSet = true
	}
	return g.moduleSymbolID
}

// compileModule lowers a Module atom: its field names and symbol ids are
// compile-time constants, so it gets a const-table compound-symbol template
// with alternating (symbol, placeholder) slots — copied onto the heap with
// copy_sym, then the dynamic field values patched in with set_sym_field,
// exactly like CompoundSymbol's dynamic-slot case (spec §4.3.1, §4.2.2).
func (f *fnCtx) compileModule(m nst.Module, dest Register) error {
	args := make([]values.Value, 0, len(m.Fields)*2)
	for _, field := range m.Fields {
		args = append(args, values.PlainSymbol(field.SymbolID), values.Number(0))
	}
	addr := f.gen.table.AddCompoundSymbol(f.gen.moduleTagSymbol(), args)

	f.emit(tac.Instruction{Op: tac.OpCopySym, R0: reg8(dest), Imm: int32(addr)})
	for i, field := range m.Fields {
		valReg, err := regOf(f, field.Value)
		if err != nil {
			return err
		}
		f.emit(tac.Instruction{Op: tac.OpSetSymField, R0: reg8(dest), R1: reg8(valReg), R2: uint8(2*i + 1)})
	}
	return nil
}

// compileModuleLookup lowers ModuleLookup: unlike a field access with a
// compile-time-known slot, the looked-up symbol is itself a runtime value
// (spec's "name-lookup primitive"), so it needs a dedicated dynamic opcode
// (mod_get) rather than a static set_sym_field-style index.
func (f *fnCtx) compileModuleLookup(ml nst.ModuleLookup, dest Register) error {
	modReg, err := regOf(f, ml.ModVar)
	if err != nil {
		return err
	}
	symReg, err := regOf(f, ml.SymVar)
	if err != nil {
		return err
	}
	f.emit(tac.Instruction{Op: tac.OpModGet, R0: reg8(dest), R1: reg8(modReg), R2: reg8(symReg)})
	return nil
}
