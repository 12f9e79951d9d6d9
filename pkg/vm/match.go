package vm

import (
	"lamvm/pkg/consttab"
	"lamvm/pkg/values"
)

// compoundFields returns v's symbol id, arity, and a field accessor,
// whichever of the two compound-symbol representations v actually is
// (spec §3: a static one living in the const-table, or a heap copy made by
// copy_sym). ok is false if v isn't a compound symbol at all.
func (vm *VM) compoundFields(v values.Value) (symID uint32, arity int, field func(int) values.Value, ok bool) {
	switch v.Tag() {
	case values.TagCompoundSymbol:
		addr := v.Addr()
		symID, arity = vm.table.DecodeCompoundSymbolHeader(addr)
		return symID, arity, func(i int) values.Value { return vm.table.Field(addr, i) }, true
	case values.TagHeapCompoundSymbol:
		addr := v.Addr()
		symID, arity = consttab.DecodeSymbolHeaderWord(vm.heap.CompoundHeader(addr))
		return symID, arity, func(i int) values.Value { return vm.heap.CompoundField(addr, i) }, true
	default:
		return 0, 0, nil, false
	}
}

// matchPattern walks one pattern-tree node against subject (spec §4.4.3),
// writing captures into captures[slot] as match-vars are visited. Literal
// nodes (numbers and plain symbols) are just tagged words the const-table
// encoder stored verbatim, so bitwise equality is the literal-pattern test.
func (vm *VM) matchPattern(pat, subject values.Value, captures []values.Value) bool {
	if slot, ok := consttab.IsMatchVar(pat); ok {
		captures[slot] = subject
		return true
	}
	if consttab.IsCompoundRef(pat) {
		patAddr := pat.Addr()
		patSym, patArity := vm.table.DecodeCompoundSymbolHeader(patAddr)
		subSym, subArity, subField, ok := vm.compoundFields(subject)
		if !ok || subSym != patSym || subArity != patArity {
			return false
		}
		for i := 0; i < patArity; i++ {
			if !vm.matchPattern(vm.table.Field(patAddr, i), subField(i), captures) {
				return false
			}
		}
		return true
	}
	return pat == subject
}

// execMatch tries patAddr's branches against subject in order and returns
// the index of the first one that matches, writing its captures into
// captureDest as it goes (spec §4.4.3: "first matching branch wins").
func (vm *VM) execMatch(subject values.Value, patAddr uint32, captureDest []values.Value) (int, bool) {
	n := vm.table.DecodeMatchHeader(patAddr)
	for k := 0; k < n; k++ {
		root := vm.table.BranchRoot(patAddr, k)
		if vm.matchPattern(root, subject, captureDest) {
			return k, true
		}
	}
	return 0, false
}
