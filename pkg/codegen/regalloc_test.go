package codegen

import "testing"

func TestNewRegisterAllocator(t *testing.T) {
	ra := NewRegisterAllocator()
	if ra.MaxRegs() != 0 {
		t.Errorf("expected MaxRegs 0 on a fresh allocator, got %d", ra.MaxRegs())
	}
}

func TestBasicAllocation(t *testing.T) {
	ra := NewRegisterAllocator()
	for i := Register(0); i < 3; i++ {
		reg, err := ra.Alloc()
		if err != nil {
			t.Fatalf("Alloc: %v", err)
		}
		if reg != i {
			t.Errorf("expected register %d, got %d", i, reg)
		}
	}
}

func TestReserveClaimsPrefix(t *testing.T) {
	ra := NewRegisterAllocator()
	first, err := ra.Reserve(3)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if first != 0 {
		t.Errorf("expected reserve to start at 0, got %d", first)
	}
	reg, err := ra.Alloc()
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if reg != 3 {
		t.Errorf("expected first Alloc after Reserve(3) to be register 3, got %d", reg)
	}
}

func TestReuseFromFreeList(t *testing.T) {
	ra := NewRegisterAllocator()
	reg1, _ := ra.Alloc() // r0
	reg2, _ := ra.Alloc() // r1
	_, _ = ra.Alloc()     // r2

	ra.Free(reg1)
	ra.Free(reg2)

	reg4, _ := ra.Alloc()
	if reg4 != reg2 {
		t.Errorf("expected LIFO reuse of %d, got %d", reg2, reg4)
	}
	reg5, _ := ra.Alloc()
	if reg5 != reg1 {
		t.Errorf("expected LIFO reuse of %d, got %d", reg1, reg5)
	}
	reg6, _ := ra.Alloc()
	if reg6 != 3 {
		t.Errorf("expected fresh register 3, got %d", reg6)
	}
}

func TestPinningPreventsFree(t *testing.T) {
	ra := NewRegisterAllocator()
	reg1, _ := ra.Alloc()
	reg2, _ := ra.Alloc()

	ra.Pin(reg1)
	if !ra.IsPinned(reg1) {
		t.Errorf("expected %d to be pinned", reg1)
	}

	ra.Free(reg1)
	ra.Free(reg2)

	// reg1 must not have entered the free list; next Alloc should skip it.
	next, _ := ra.Alloc()
	if next != reg2 {
		t.Errorf("expected next alloc to reuse unpinned %d, got %d", reg2, next)
	}
}

func TestMaxRegs(t *testing.T) {
	ra := NewRegisterAllocator()
	if ra.MaxRegs() != 0 {
		t.Errorf("expected 0 initially, got %d", ra.MaxRegs())
	}
	_, _ = ra.Alloc()
	_, _ = ra.Alloc()
	if ra.MaxRegs() != 2 {
		t.Errorf("expected MaxRegs 2, got %d", ra.MaxRegs())
	}
}

func TestAllocFailsPastFrameLimit(t *testing.T) {
	ra := NewRegisterAllocator()
	for i := 0; i < MaxRegisters; i++ {
		if _, err := ra.Alloc(); err != nil {
			t.Fatalf("unexpected error allocating register %d: %v", i, err)
		}
	}
	if _, err := ra.Alloc(); err == nil {
		t.Fatalf("expected an error once the %d-register frame is exhausted", MaxRegisters)
	}
}

func TestReserveFailsPastFrameLimit(t *testing.T) {
	ra := NewRegisterAllocator()
	if _, err := ra.Reserve(MaxRegisters + 1); err == nil {
		t.Fatalf("expected Reserve to reject a prefix larger than the frame limit")
	}
}

func TestRegisterString(t *testing.T) {
	if got := Register(7).String(); got != "r7" {
		t.Errorf("expected r7, got %s", got)
	}
}
