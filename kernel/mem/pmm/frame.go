// Package pmm implements the physical memory manager: the frame allocator
// that sits at the bottom of the memory stack and is consumed by the
// paging layer to back page tables and mapped pages.
package pmm

import "nanokernel/kernel/mem"

// Frame identifies a physical memory frame by its index (address / 4096).
// The 32-bit physical address space has at most 2^20 frames, so a uint32
// index is always sufficient.
type Frame uint32

// InvalidFrame is returned by allocation routines that fail to reserve a
// frame.
const InvalidFrame = Frame(1<<32 - 1)

// Valid returns true if this is not the InvalidFrame sentinel.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical address of the frame.
func (f Frame) Address() uintptr {
	return uintptr(f) << mem.PageShift
}

// FrameFromAddress returns the frame containing the given physical address.
func FrameFromAddress(addr uintptr) Frame {
	return Frame(addr >> mem.PageShift)
}
