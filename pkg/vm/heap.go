package vm

import "lamvm/pkg/values"

// heapClosureHeader is the fixed prefix every heap closure record carries
// ahead of its payload: the target function's address, and the number of
// payload words actually stored. Spec §3 only specifies "word 0: function
// code address, words 1..n: captured values" for a make_cl closure; the
// explicit length word is a deliberate extension that lets
// one record shape serve both a lexical closure's fixed capture list and a
// part_ap/gen_ap partial-application accumulator's growing argument list,
// without the VM needing a second heap record kind.
const heapClosureHeader = 2

// Heap is the VM's flat, append-only object space: closure records and
// heap-allocated compound symbols (copy_sym's output) both live here.
type Heap struct {
	words []values.Value
}

func newHeap() *Heap { return &Heap{} }

func (h *Heap) alloc(n int) uint32 {
	addr := uint32(len(h.words))
	for i := 0; i < n; i++ {
		h.words = append(h.words, values.Value(0))
	}
	return addr
}

func (h *Heap) Get(addr uint32) values.Value      { return h.words[addr] }
func (h *Heap) Set(addr uint32, v values.Value)   { h.words[addr] = v }
func (h *Heap) Words() []values.Value             { return h.words }

// AllocClosure writes [func addr, len(payload), payload...] and returns the
// record's address — spec §4.4.2's make_cl, and the part_ap / gen_ap
// under-saturation paths that build the same shape for a partial
// application in progress.
func (h *Heap) AllocClosure(funcAddr uint32, payload []values.Value) uint32 {
	addr := h.alloc(heapClosureHeader + len(payload))
	h.words[addr] = values.Function(funcAddr)
	h.words[addr+1] = values.Number(int32(len(payload)))
	copy(h.words[addr+heapClosureHeader:], payload)
	return addr
}

// ClosureFunc and ClosurePayload read back a closure record built by
// AllocClosure.
func (h *Heap) ClosureFunc(addr uint32) uint32 { return h.words[addr].Addr() }
func (h *Heap) ClosurePayload(addr uint32) []values.Value {
	n := uint32(h.words[addr+1].AsNumber())
	return h.words[addr+heapClosureHeader : addr+heapClosureHeader+n]
}

// SetClosureSlot patches payload slot idx — set_cl_val's self-reference
// write, issued once immediately after a recursive lambda's closure record
// is allocated (spec §4.2.4, §4.3.1).
func (h *Heap) SetClosureSlot(addr uint32, idx int, v values.Value) {
	h.words[addr+heapClosureHeader+uint32(idx)] = v
}

// AllocCompoundSymbol copies a const-table compound-symbol template (header
// word plus its field words) onto the heap verbatim — copy_sym (spec
// §4.4.2), the dynamic-slot half of CompoundSymbol and Module lowering.
func (h *Heap) AllocCompoundSymbol(header values.Value, fields []values.Value) uint32 {
	addr := h.alloc(1 + len(fields))
	h.words[addr] = header
	copy(h.words[addr+1:], fields)
	return addr
}

func (h *Heap) SetCompoundField(addr uint32, idx int, v values.Value) {
	h.words[addr+1+uint32(idx)] = v
}

func (h *Heap) CompoundField(addr uint32, idx int) values.Value {
	return h.words[addr+1+uint32(idx)]
}

func (h *Heap) CompoundHeader(addr uint32) values.Value { return h.words[addr] }
