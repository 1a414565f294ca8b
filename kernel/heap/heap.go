// Package heap implements the kernel's byte allocator: a doubly-linked,
// address-ordered list of blocks spanning a virtual address window
// reserved by the caller, with boundary coalescing on free.
//
// The window itself is ordinary unmapped virtual memory; touching it
// (including this package's own header writes) faults and is backed by a
// fresh physical frame through vmm's page-fault handler, the way the
// paging layer's heap-growth branch already works. This package never
// calls into vmm directly; it only ever reads and writes memory inside
// [start, end) and lets the fault handler do the rest, the same "demand
// paging" relationship the teacher's own pmm/vmm split establishes
// between physical allocation and virtual mapping.
package heap

import (
	"unsafe"

	"nanokernel/kernel"
	"nanokernel/kernel/irq"
	"nanokernel/kernel/mem"
)

// alignment is the minimum size and address granularity of every
// allocation: a native machine word, per spec's "allocations are
// word-aligned".
const alignment = unsafe.Sizeof(uintptr(0))

// blockHeader precedes every block (free or allocated) in the heap.
// size is deliberately the last field, so the word immediately preceding
// a returned pointer is exactly the allocation's size, per spec's "each
// returned pointer is preceded by a one-word header storing the
// allocation size".
type blockHeader struct {
	next, prev *blockHeader
	allocated  bool
	size       uintptr
}

const headerSize = unsafe.Sizeof(blockHeader{})

// minSplitPayload is the smallest payload worth carving a new free block
// out of a larger one for; splitting into anything smaller would spend
// more on the new header than the split saves.
const minSplitPayload = 2 * alignment

var (
	head *blockHeader

	// panicFn and inInterruptFn are overridden by tests.
	panicFn       = kernel.Panic
	inInterruptFn = irq.InInterrupt

	errInterruptContext = &kernel.Error{Module: "heap", Message: "heap accessed from interrupt context"}
)

// Init installs a single free block spanning the entire [start, end)
// window. Must be called once, from task context, after vmm.SetHeapWindow
// has registered the same range as the page-fault handler's growth
// window.
func Init(start, end uintptr) {
	assertTaskContext()

	head = (*blockHeader)(unsafe.Pointer(start))
	*head = blockHeader{size: uintptr(end-start) - headerSize}
}

// Alloc returns a word-aligned block of at least size bytes, or nil if no
// free block is large enough (spec's "allocate-when-full returns null
// from the heap" — a reported condition, not a panic).
func Alloc(size mem.Size) unsafe.Pointer {
	assertTaskContext()

	want := align(uintptr(size))

	for b := head; b != nil; b = b.next {
		if b.allocated || b.size < want {
			continue
		}

		if b.size-want >= headerSize+minSplitPayload {
			split(b, want)
		}
		b.allocated = true
		return payloadOf(b)
	}

	return nil
}

// Zalloc behaves like Alloc but zero-initializes the returned block.
func Zalloc(size mem.Size) unsafe.Pointer {
	ptr := Alloc(size)
	if ptr == nil {
		return nil
	}
	mem.Memset(uintptr(ptr), 0, size)
	return ptr
}

// Realloc grows or shrinks the allocation at ptr to newSize. If newSize
// fits within the block's current size the same pointer is returned
// unchanged; otherwise a new block is allocated, the old contents are
// copied up to min(old, new) bytes, the old block is freed, and the new
// pointer is returned. Returns nil (leaving the original allocation
// intact) if growth is requested and no free block is large enough.
func Realloc(ptr unsafe.Pointer, newSize mem.Size) unsafe.Pointer {
	assertTaskContext()

	if ptr == nil {
		return Alloc(newSize)
	}

	b := headerOf(ptr)
	if align(uintptr(newSize)) <= b.size {
		return ptr
	}

	newPtr := Alloc(newSize)
	if newPtr == nil {
		return nil
	}

	copySize := b.size
	if uintptr(newSize) < copySize {
		copySize = uintptr(newSize)
	}
	mem.Memcopy(uintptr(ptr), uintptr(newPtr), mem.Size(copySize))

	Free(ptr)
	return newPtr
}

// Free releases the block at ptr and coalesces it with an immediately
// adjacent free neighbor on either side.
func Free(ptr unsafe.Pointer) {
	assertTaskContext()

	if ptr == nil {
		return
	}

	b := headerOf(ptr)
	b.allocated = false

	if n := b.next; n != nil && !n.allocated {
		b.size += headerSize + n.size
		b.next = n.next
		if n.next != nil {
			n.next.prev = b
		}
	}

	if p := b.prev; p != nil && !p.allocated {
		p.size += headerSize + b.size
		p.next = b.next
		if b.next != nil {
			b.next.prev = p
		}
	}
}

// Size returns the usable payload size of a live allocation, read back
// from the one-word header spec guarantees precedes ptr.
func Size(ptr unsafe.Pointer) mem.Size {
	return mem.Size(headerOf(ptr).size)
}

func align(n uintptr) uintptr {
	return (n + alignment - 1) &^ (alignment - 1)
}

func payloadOf(b *blockHeader) unsafe.Pointer {
	return unsafe.Pointer(uintptr(unsafe.Pointer(b)) + headerSize)
}

func headerOf(ptr unsafe.Pointer) *blockHeader {
	return (*blockHeader)(unsafe.Pointer(uintptr(ptr) - headerSize))
}

// split carves a new free block out of the tail of b once want bytes have
// been reserved for b's own payload, threading it into the address-order
// list immediately after b.
func split(b *blockHeader, want uintptr) {
	newAddr := uintptr(unsafe.Pointer(b)) + headerSize + want
	newBlock := (*blockHeader)(unsafe.Pointer(newAddr))
	*newBlock = blockHeader{
		next: b.next,
		prev: b,
		size: b.size - want - headerSize,
	}
	if newBlock.next != nil {
		newBlock.next.prev = newBlock
	}
	b.next = newBlock
	b.size = want
}

// assertTaskContext panics if called from interrupt context, per spec's
// "the kernel heap is assumed single-writer (task context only);
// interrupt handlers must not allocate" rule.
func assertTaskContext() {
	if inInterruptFn() {
		panicFn(errInterruptContext)
	}
}
