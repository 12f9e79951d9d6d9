package codegen

import "fmt"

// debugRegAlloc traces allocation decisions; flip on by hand while
// diagnosing a codegen bug.
const debugRegAlloc = false

// Register is a virtual register index within one function's frame.
type Register uint8

// MaxRegisters is the hard per-frame limit derived from the instruction
// word's 5-bit register fields (spec §6, §9 "Register file").
const MaxRegisters = 32

// BadRegister is a sentinel for "no register" in error paths.
const BadRegister Register = 255

// RegisterAllocator hands out registers within one function's 32-register
// frame. Allocation is monotonic with free-list reuse: indices freed by an
// expired local are handed out again before the frame is made to grow
// further (spec §4.3's "each newReg hands out the next free index").
type RegisterAllocator struct {
	nextReg    Register
	maxReg     Register
	hasAlloc   bool
	freeRegs   []Register
	pinnedRegs map[Register]bool

	// ceiling caps how high Alloc/Reserve may grow once a match expression
	// has reserved the top end of the frame for capture slots (spec
	// §4.3.2); zero means "uncapped" (the full MaxRegisters).
	ceiling Register
}

// NewRegisterAllocator creates an allocator for one function's frame.
func NewRegisterAllocator() *RegisterAllocator {
	return &RegisterAllocator{
		freeRegs:   make([]Register, 0, 8),
		pinnedRegs: make(map[Register]bool),
	}
}

// Reserve claims the next n registers unconditionally — used once per
// frame for the fixed captures+params prefix (spec §4.3: "register
// indices start after |freeVars| + |params|"), before any Alloc call.
func (ra *RegisterAllocator) Reserve(n int) (Register, error) {
	first := ra.nextReg
	limit := ra.limit()
	if int(first)+n > limit {
		return 0, fmt.Errorf("codegen: function needs %d registers, limit is %d", int(first)+n, limit)
	}
	if n == 0 {
		return first, nil
	}
	ra.nextReg += Register(n)
	ra.hasAlloc = true
	if last := ra.nextReg - 1; last > ra.maxReg {
		ra.maxReg = last
	}
	return first, nil
}

// Alloc hands out the next available register, reusing the free list
// before growing the frame; it fails once the 32-register cap is hit.
func (ra *RegisterAllocator) Alloc() (Register, error) {
	if n := len(ra.freeRegs); n > 0 {
		reg := ra.freeRegs[n-1]
		ra.freeRegs = ra.freeRegs[:n-1]
		if debugRegAlloc {
			fmt.Printf("[regalloc] reuse r%d (%d free)\n", reg, len(ra.freeRegs))
		}
		return reg, nil
	}
	if int(ra.nextReg) >= ra.limit() {
		return 0, fmt.Errorf("codegen: exceeded %d-register frame limit", ra.limit())
	}
	reg := ra.nextReg
	ra.nextReg++
	ra.hasAlloc = true
	if reg > ra.maxReg {
		ra.maxReg = reg
	}
	if debugRegAlloc {
		fmt.Printf("[regalloc] new r%d (next %d)\n", reg, ra.nextReg)
	}
	return reg, nil
}

// Free returns reg to the pool, unless it has been pinned. Captured-value
// and parameter registers are pinned for the life of the function so a
// later temporary never aliases one a nested lambda might still capture.
func (ra *RegisterAllocator) Free(reg Register) {
	if ra.pinnedRegs[reg] {
		if debugRegAlloc {
			fmt.Printf("[regalloc] skip free r%d (pinned)\n", reg)
		}
		return
	}
	ra.freeRegs = append(ra.freeRegs, reg)
}

// Pin marks reg as never reusable for the remainder of the function.
func (ra *RegisterAllocator) Pin(reg Register) { ra.pinnedRegs[reg] = true }

// limit is the current top of the usable range: MaxRegisters, or lower
// once a match expression has carved off a capture block via ReserveHigh.
func (ra *RegisterAllocator) limit() int {
	if ra.ceiling == 0 {
		return MaxRegisters
	}
	return int(ra.ceiling)
}

// ReserveHigh carves the top n registers off this frame for a match
// expression's capture slots (spec §4.3.2: "rCaptureStart..rCaptureStart+
// MaxCaptures-1"), pins them so Alloc/Reserve never hand them out, and
// returns rCaptureStart. Passing n=0 (a match with no capturing patterns)
// reserves nothing and returns MaxRegisters as a harmless placeholder —
// callers only use the returned register when n > 0.
func (ra *RegisterAllocator) ReserveHigh(n int) (Register, error) {
	if n == 0 {
		return MaxRegisters, nil
	}
	start := MaxRegisters - n
	if start < int(ra.nextReg) {
		return 0, fmt.Errorf("codegen: match needs %d capture registers but frame already uses %d", n, ra.nextReg)
	}
	if ra.ceiling == 0 || Register(start) < ra.ceiling {
		ra.ceiling = Register(start)
	}
	for i := start; i < MaxRegisters; i++ {
		ra.pinnedRegs[Register(i)] = true
	}
	ra.hasAlloc = true
	if top := Register(MaxRegisters - 1); top > ra.maxReg {
		ra.maxReg = top
	}
	return Register(start), nil
}

// IsPinned reports whether reg has been pinned.
func (ra *RegisterAllocator) IsPinned(reg Register) bool { return ra.pinnedRegs[reg] }

// MaxRegs returns the number of register slots this function's frame
// needs (the highest index ever handed out, plus one).
func (ra *RegisterAllocator) MaxRegs() int {
	if !ra.hasAlloc {
		return 0
	}
	return int(ra.maxReg) + 1
}

func (r Register) String() string { return fmt.Sprintf("r%d", r) }
