package heap

import (
	"testing"
	"unsafe"

	"nanokernel/kernel/mem"
)

// testHeap carves out a real, page-sized Go buffer to stand in for the
// heap window: touching it never faults, since it is ordinary
// process-owned memory, unlike the real freestanding virtual window.
func testHeap(t *testing.T, size uintptr) (start, end uintptr) {
	buf := make([]byte, size)
	start = uintptr(unsafe.Pointer(&buf[0]))
	end = start + size

	origInInterrupt := inInterruptFn
	inInterruptFn = func() bool { return false }
	t.Cleanup(func() {
		inInterruptFn = origInInterrupt
		head = nil
	})

	Init(start, end)
	return start, end
}

func TestAllocReturnsWordAlignedDistinctBlocks(t *testing.T) {
	testHeap(t, 4*uintptr(mem.PageSize))

	a := Alloc(10)
	b := Alloc(10)
	if a == nil || b == nil {
		t.Fatal("expected both allocations to succeed")
	}
	if a == b {
		t.Fatal("expected distinct blocks")
	}
	if uintptr(a)%alignment != 0 || uintptr(b)%alignment != 0 {
		t.Fatal("expected allocations to be word-aligned")
	}
	if Size(a) < 10 || Size(b) < 10 {
		t.Fatalf("expected the header to report at least the requested size; got %d and %d", Size(a), Size(b))
	}
}

func TestAllocReturnsNilWhenExhausted(t *testing.T) {
	testHeap(t, uintptr(headerSize)+32)

	first := Alloc(mem.Size(32))
	if first == nil {
		t.Fatal("expected the first allocation, sized to exactly fill the heap, to succeed")
	}

	second := Alloc(8)
	if second != nil {
		t.Fatal("expected allocation to fail once the heap is exhausted")
	}
}

func TestZallocZeroesMemory(t *testing.T) {
	testHeap(t, 4*uintptr(mem.PageSize))

	ptr := Alloc(64)
	mem.Memset(uintptr(ptr), 0xAB, 64)
	Free(ptr)

	z := Zalloc(64)
	buf := (*[64]byte)(z)
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("expected zeroed byte at offset %d; got 0x%x", i, b)
		}
	}
}

func TestFreeCoalescesWithBothNeighbors(t *testing.T) {
	testHeap(t, 4*uintptr(mem.PageSize))

	a := Alloc(64)
	b := Alloc(64)
	c := Alloc(64)

	Free(a)
	Free(c)
	Free(b)

	merged := headerOf(a)
	if merged.next != nil {
		t.Fatal("expected freeing the middle block to merge all three into one")
	}
	if merged.allocated {
		t.Fatal("expected the merged block to be free")
	}

	big := Alloc(mem.Size(merged.size))
	if big == nil {
		t.Fatal("expected an allocation of the full merged size to succeed")
	}
}

func TestReallocGrowsAndPreservesPrefix(t *testing.T) {
	testHeap(t, 4*uintptr(mem.PageSize))

	ptr := Alloc(8)
	buf := (*[8]byte)(ptr)
	for i := range buf {
		buf[i] = byte(i + 1)
	}

	grown := Realloc(ptr, 256)
	if grown == nil {
		t.Fatal("expected Realloc to succeed")
	}

	grownBuf := (*[8]byte)(grown)
	for i, want := range buf {
		if grownBuf[i] != want {
			t.Fatalf("expected prefix byte %d preserved as %d; got %d", i, want, grownBuf[i])
		}
	}
	if Size(grown) < 256 {
		t.Fatalf("expected the grown block to report at least 256 bytes; got %d", Size(grown))
	}
}

func TestReallocShrinkReturnsSamePointer(t *testing.T) {
	testHeap(t, 4*uintptr(mem.PageSize))

	ptr := Alloc(256)
	shrunk := Realloc(ptr, 8)

	if shrunk != ptr {
		t.Fatal("expected shrinking in place to return the same pointer, per spec's realloc contract")
	}
}

func TestAllocPanicsFromInterruptContext(t *testing.T) {
	testHeap(t, 4*uintptr(mem.PageSize))

	inInterruptFn = func() bool { return true }

	var captured interface{}
	origPanic := panicFn
	panicFn = func(e interface{}) { captured = e }
	defer func() { panicFn = origPanic }()

	Alloc(8)

	if captured != errInterruptContext {
		t.Fatal("expected Alloc from interrupt context to trip the debug assertion")
	}
}
