package vmm

import (
	"nanokernel/kernel"
	"nanokernel/kernel/cpu"
	"nanokernel/kernel/mem"
	"nanokernel/kernel/mem/pmm"
)

// tempMappingAddr is a fixed virtual address reserved for short-lived
// mappings (e.g. to zero a freshly allocated page table before it is
// linked into a directory, or to access a frame belonging to an inactive
// directory during cloning).
const tempMappingAddr = uintptr(0xFFBFF000)

var (
	// flushTLBEntryFn is used by tests to override calls to the hardware
	// TLB invalidation instruction.
	flushTLBEntryFn = cpu.FlushTLBEntry

	// ErrInvalidMapping is returned when a caller attempts to translate a
	// virtual address that has no active mapping.
	ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "address is not mapped"}

	// mapTemporaryFn and unmapFn are used by tests so that code needing a
	// scratch mapping (zeroing a freshly allocated directory, copying a
	// page for fork) can be redirected at a real Go-owned buffer instead
	// of the fixed tempMappingAddr, which only resolves through the real
	// MMU.
	mapTemporaryFn = MapTemporary
	unmapFn        = Unmap
)

// FrameAllocatorFn is a function that can allocate physical frames. It is
// injected rather than imported directly so that this package does not
// depend on a specific pmm.Manager instance during early bring-up or tests.
type FrameAllocatorFn func() (pmm.Frame, *kernel.Error)

// Map establishes a mapping between a virtual page and a physical memory
// frame using the currently active directory. If the page table covering
// page does not yet exist, allocFn is used to obtain a frame for it.
//
// Mapping an already-mapped page with the same (frame, flags) is a no-op;
// mapping it with different values silently overwrites the existing entry.
func Map(page Page, frame pmm.Frame, flags PageTableEntryFlag, allocFn FrameAllocatorFn) *kernel.Error {
	var err *kernel.Error

	walk(page, func(level uint8, pte *pageTableEntry) bool {
		if level == 0 {
			if pte.HasFlags(FlagPresent) {
				return true
			}

			newTable, allocErr := allocFn()
			if allocErr != nil {
				err = allocErr
				return false
			}

			*pte = 0
			pte.SetFrame(newTable)
			pte.SetFlags(FlagPresent | FlagRW | FlagUser)
			for i := uint32(0); i < 1024; i++ {
				*entryAtFn(pteAddr(page.dirIndex(), i)) = 0
			}
			return true
		}

		if pte.HasFlags(FlagPresent) && pte.Frame() == frame &&
			PageTableEntryFlag(*pte)&0xFFF&^(FlagAccessed|FlagDirty) == FlagPresent|flags {
			return true
		}

		*pte = 0
		pte.SetFrame(frame)
		pte.SetFlags(FlagPresent | flags)
		flushTLBEntryFn(page.Address())
		return true
	})

	return err
}

// MapTemporary establishes a mapping of frame at the fixed temporary
// mapping address, overwriting any previous temporary mapping, and returns
// the page it was mapped at.
func MapTemporary(frame pmm.Frame, allocFn FrameAllocatorFn) (Page, *kernel.Error) {
	if err := Map(PageFromAddress(tempMappingAddr), frame, FlagRW, allocFn); err != nil {
		return 0, err
	}
	return PageFromAddress(tempMappingAddr), nil
}

// Unmap clears the mapping for page in the currently active directory.
// Unmapping an already-unmapped page is a no-op.
func Unmap(page Page) {
	walk(page, func(level uint8, pte *pageTableEntry) bool {
		if level == 0 {
			return pte.HasFlags(FlagPresent)
		}

		if !pte.HasFlags(FlagPresent) {
			return true
		}

		pte.ClearFlags(FlagPresent)
		flushTLBEntryFn(page.Address())
		return true
	})
}

// Translate returns the physical address the currently active directory
// maps virtAddr to, or ErrInvalidMapping if it is not mapped.
func Translate(virtAddr uintptr) (uintptr, *kernel.Error) {
	page := PageFromAddress(virtAddr)
	var (
		resolved uintptr
		mapped   bool
	)

	walk(page, func(level uint8, pte *pageTableEntry) bool {
		if !pte.HasFlags(FlagPresent) {
			return false
		}
		if level == 1 {
			resolved = pte.Frame().Address() + (virtAddr & uintptr(mem.PageSize-1))
			mapped = true
		}
		return true
	})

	if !mapped {
		return 0, ErrInvalidMapping
	}
	return resolved, nil
}
