// Package symtab implements the two monotonic maps the normalizer and
// code generator share (spec §4.1): a dense symbol-name table and an
// arity table for names known to refer to lambdas.
package symtab

// SymbolTable assigns a dense integer id to each distinct source symbol
// name, in first-seen order. Ids 0 and 1 are reserved for false/true so
// the const-table encoder and the VM can special-case booleans cheaply.
type SymbolTable struct {
	ids   map[string]uint32
	names []string
}

// New creates a table with "false" and "true" pre-seeded at ids 0 and 1.
func New() *SymbolTable {
	st := &SymbolTable{ids: make(map[string]uint32)}
	st.Intern("false")
	st.Intern("true")
	return st
}

// Intern returns name's id, assigning a fresh one on first use.
func (st *SymbolTable) Intern(name string) uint32 {
	if id, ok := st.ids[name]; ok {
		return id
	}
	id := uint32(len(st.names))
	st.ids[name] = id
	st.names = append(st.names, name)
	return id
}

// Lookup returns name's id without interning, for callers that must not
// grow the table (e.g. the VM inspecting a name it expects to already
// exist).
func (st *SymbolTable) Lookup(name string) (uint32, bool) {
	id, ok := st.ids[name]
	return id, ok
}

// Name returns the source name for an id, as assembled at compile time and
// carried into the VM for diagnostics.
func (st *SymbolTable) Name(id uint32) string {
	if int(id) >= len(st.names) {
		return "<bad symbol id>"
	}
	return st.names[id]
}

// Names returns the full id -> name list, in id order, for embedding into
// the assembled program.
func (st *SymbolTable) Names() []string {
	out := make([]string, len(st.names))
	copy(out, st.names)
	return out
}

// Arity is the (numFreeVars, formalArity) pair recorded for a name known
// to refer to a lambda (spec §4.1, §4.2.2).
type Arity struct {
	NumFreeVars int
	NumParams   int
}

// ArityTable maps a name to its arity for saturation decisions during
// normalization of function applications.
type ArityTable struct {
	m map[string]Arity
}

func NewArityTable() *ArityTable {
	return &ArityTable{m: make(map[string]Arity)}
}

func (at *ArityTable) Set(name string, a Arity) { at.m[name] = a }

func (at *ArityTable) Get(name string) (Arity, bool) {
	a, ok := at.m[name]
	return a, ok
}
