package pmm

import (
	"nanokernel/kernel"
	"nanokernel/kernel/bootinfo"
	"nanokernel/kernel/kfmt"
	"nanokernel/kernel/mem"
	"nanokernel/kernel/mem/bitmap"
)

// totalFrames is the number of 4 KiB frames in the full 32-bit physical
// address space (2^32 / 4096 = 2^20).
const totalFrames = 1 << 20

// identityBufferSize is reserved immediately above the kernel image for
// early identity-mapped structures (page tables, GDT/IDT, boot stacks).
const identityBufferSize = 1 * mem.Mb

var (
	errOutOfMemory  = &kernel.Error{Module: "pmm", Message: "no accessible and unallocated frame available"}
	errDoubleAlloc  = &kernel.Error{Module: "pmm", Message: "frame is already allocated"}
	errDoubleFree   = &kernel.Error{Module: "pmm", Message: "frame is not currently allocated"}
	errNotInit      = &kernel.Error{Module: "pmm", Message: "physical memory manager used before Init"}
	panicFn         = kernel.Panic
	instance        *Manager
)

// Manager holds the process-wide physical memory manager state: the pair
// of bitmaps tracking which frames physically exist and are usable
// (accessible) and which of those are currently handed out (allocated).
// Alloc only ever sets an allocated bit whose accessible bit is set, so
// frames it hands out keep allocated ⊆ accessible; AllocAt sets an
// allocated bit without consulting accessible. accessible is only written
// during Init.
type Manager struct {
	accessible *bitmap.Bitmap
	allocated  *bitmap.Bitmap
}

// Init constructs the singleton PMM from the supplied boot-info record and
// returns it. It must be called exactly once, before any other subsystem
// calls Get.
func Init(info *bootinfo.Info) *Manager {
	m := &Manager{
		accessible: bitmap.New(totalFrames),
		allocated:  bitmap.New(totalFrames),
	}

	info.VisitMemRegions(func(r *bootinfo.MemRegion) bool {
		if r.Type != bootinfo.MemAvailable {
			return true
		}

		start := (mem.Size(r.PhysAddress) + mem.PageSize - 1) &^ (mem.PageSize - 1)
		end := mem.Size(r.PhysAddress+r.Length) &^ (mem.PageSize - 1)
		if end <= start {
			return true
		}

		m.accessible.SetRange(uint32(start>>mem.PageShift), uint32(end>>mem.PageShift))
		return true
	})

	kernelStart := uint32(info.KernelImageStart >> mem.PageShift)
	identityEnd := uint32((info.KernelImageEnd() + uintptr(identityBufferSize)) >> mem.PageShift)

	m.accessible.ClearRange(0, kernelStart)
	m.accessible.ClearRange(kernelStart, identityEnd)

	if info.Framebuffer.Address != 0 {
		fbStart := uint32(info.Framebuffer.Address >> mem.PageShift)
		fbEnd := uint32((info.FramebufferEnd() + uintptr(mem.PageSize) - 1) >> mem.PageShift)
		m.accessible.ClearRange(fbStart, fbEnd)
	}

	instance = m
	m.printStats()
	return m
}

// Get returns the process-wide PMM instance. It panics if called before
// Init, since every caller of Get is implicitly relying on a fully
// populated frame map.
func Get() *Manager {
	if instance == nil {
		panicFn(errNotInit)
		return nil
	}
	return instance
}

// Alloc locates the lowest-indexed frame that is accessible and not yet
// allocated, marks it allocated and returns its physical address. It
// panics if no such frame exists (spec: alloc is a Fatal-severity
// operation, per the "no free frames" boundary condition).
func (m *Manager) Alloc() uintptr {
	index, ok := m.accessible.ScanFirstSet(m.allocated, 0)
	if !ok {
		panicFn(errOutOfMemory)
		return 0
	}
	m.allocated.Set(index)
	return Frame(index).Address()
}

// AllocAt marks the frame containing addr as allocated without consulting
// the accessible bitmap, for callers that already know the frame is
// usable. It panics if the frame is already allocated.
func (m *Manager) AllocAt(addr uintptr) {
	index := uint32(FrameFromAddress(addr))
	if m.allocated.Test(index) {
		panicFn(errDoubleAlloc)
		return
	}
	m.allocated.Set(index)
}

// Free clears the allocated bit for the frame containing addr. It panics
// if the frame was not allocated.
func (m *Manager) Free(addr uintptr) {
	index := uint32(FrameFromAddress(addr))
	if !m.allocated.Test(index) {
		panicFn(errDoubleFree)
		return
	}
	m.allocated.Clear(index)
}

// Dump emits a human-readable, run-length compressed listing of the
// accessible and allocated bitmaps to the kernel's diagnostic sink.
func (m *Manager) Dump() {
	kfmt.Printf("[pmm] accessible ranges:\n")
	m.accessible.VisitRuns(func(from, to uint32) {
		kfmt.Printf("  [0x%x - 0x%x)\n", Frame(from).Address(), Frame(to).Address())
	})
	kfmt.Printf("[pmm] allocated ranges:\n")
	m.allocated.VisitRuns(func(from, to uint32) {
		kfmt.Printf("  [0x%x - 0x%x)\n", Frame(from).Address(), Frame(to).Address())
	})
}

func (m *Manager) printStats() {
	var accessibleFrames, allocatedFrames uint32
	m.accessible.VisitRuns(func(from, to uint32) { accessibleFrames += to - from })
	m.allocated.VisitRuns(func(from, to uint32) { allocatedFrames += to - from })
	kfmt.Printf("[pmm] frames: %d accessible, %d allocated\n", accessibleFrames, allocatedFrames)
}
