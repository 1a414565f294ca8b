package vmm

import (
	"nanokernel/kernel"
	"nanokernel/kernel/cpu"
	"nanokernel/kernel/mem"
	"nanokernel/kernel/mem/pmm"
)

var (
	// activePDTFn and switchPDTFn are used by tests to avoid touching the
	// real CR3 register.
	activePDTFn = cpu.ActivePDT
	switchPDTFn = cpu.SwitchPDT
)

// Directory is a page directory: the top-level table of a two-level i386
// address space. The zero value is not usable; construct one with
// NewDirectory.
type Directory struct {
	frame pmm.Frame
}

// NewDirectory allocates a frame for a new page directory, installs its
// recursive self-map entry and returns it. The directory is not activated.
func NewDirectory(allocFn FrameAllocatorFn) (*Directory, *kernel.Error) {
	frame, err := allocFn()
	if err != nil {
		return nil, err
	}

	d := &Directory{frame: frame}

	page, err := mapTemporaryFn(frame, allocFn)
	if err != nil {
		return nil, err
	}
	mem.Memset(page.Address(), 0, mem.PageSize)

	selfEntry := entryAtFn(page.Address() + uintptr(recursiveDirIndex)*4)
	*selfEntry = 0
	selfEntry.SetFrame(frame)
	selfEntry.SetFlags(FlagPresent | FlagRW)
	unmapFn(page)

	return d, nil
}

// withActive splices target into the currently active directory's
// recursive slot for the duration of fn, so that the package-level
// Map/Unmap/walk helpers (which always resolve through the active
// directory's self-map) observe target's own entries instead. This lets
// Directory.Map/Unmap operate on directories that are not currently
// loaded into CR3, mirroring how a fresh child directory is populated
// during fork before it is ever activated.
func withActive(target *Directory, fn func()) {
	activeFrame := pmm.FrameFromAddress(activePDTFn())
	if activeFrame == target.frame {
		fn()
		return
	}

	selfEntryAddr := pdeAddr(recursiveDirIndex)
	selfEntry := entryAtFn(selfEntryAddr)
	savedFrame := selfEntry.Frame()

	selfEntry.SetFrame(target.frame)
	flushTLBEntryFn(pdSelfAddr)

	fn()

	selfEntry.SetFrame(savedFrame)
	flushTLBEntryFn(pdSelfAddr)
}

// Map establishes a mapping in this directory, whether or not it is
// currently active.
func (d *Directory) Map(page Page, frame pmm.Frame, flags PageTableEntryFlag, allocFn FrameAllocatorFn) *kernel.Error {
	var err *kernel.Error
	withActive(d, func() {
		err = Map(page, frame, flags, allocFn)
	})
	return err
}

// Unmap clears a mapping in this directory, whether or not it is currently
// active.
func (d *Directory) Unmap(page Page) {
	withActive(d, func() {
		unmapFn(page)
	})
}

// Activate loads this directory into CR3, making it the active address
// space.
func (d *Directory) Activate() {
	switchPDTFn(d.frame.Address())
}

// Frame returns the physical frame backing this directory's top-level
// table, the opaque handle stored in a TCB's "owning page directory"
// field.
func (d *Directory) Frame() pmm.Frame {
	return d.frame
}

// CloneDirectory clones src for fork. Entries belonging to the kernel half
// of the address space (dirIndex >= kernelSpaceDirIndex) are link-cloned
// verbatim, since that region is shared identically by every address
// space. Every present user-half entry is instead shared by reference: the
// clone maps the same frame the source page already uses, and both the
// source and the clone's copy of that entry are marked FlagCopyOnWrite and
// stripped of FlagRW. Neither side privately owns the frame until one of
// them writes to it; vmm's page-fault handler materializes a private copy
// on that first write. A page that was already copy-on-write before the
// clone (already shared with some other ancestor) stays copy-on-write
// without forcing a fresh round of protection changes on src.
func CloneDirectory(src *Directory, allocFn FrameAllocatorFn) (*Directory, *kernel.Error) {
	dst, err := NewDirectory(allocFn)
	if err != nil {
		return nil, err
	}

	for dirIndex := uint32(0); dirIndex < recursiveDirIndex; dirIndex++ {
		if dirIndex >= kernelSpaceDirIndex {
			var srcPDE pageTableEntry
			withActive(src, func() { srcPDE = *entryAtFn(pdeAddr(dirIndex)) })
			if !srcPDE.HasFlags(FlagPresent) {
				continue
			}
			withActive(dst, func() {
				pde := entryAtFn(pdeAddr(dirIndex))
				*pde = srcPDE
			})
			continue
		}

		for tableIndex := uint32(0); tableIndex < 1024; tableIndex++ {
			page := Page(uintptr(dirIndex)<<10 | uintptr(tableIndex))

			var srcPTE pageTableEntry
			withActive(src, func() { srcPTE = *entryAtFn(pteAddr(dirIndex, tableIndex)) })
			if !srcPTE.HasFlags(FlagPresent) {
				continue
			}

			makeCOW := srcPTE.HasFlags(FlagRW)
			flags := PageTableEntryFlag(srcPTE) & FlagUser & ^FlagRW | FlagPresent
			if makeCOW || srcPTE.HasFlags(FlagCopyOnWrite) {
				flags |= FlagCopyOnWrite
			}

			if err = dst.Map(page, srcPTE.Frame(), flags, allocFn); err != nil {
				return nil, err
			}

			if makeCOW {
				withActive(src, func() {
					spte := entryAtFn(pteAddr(dirIndex, tableIndex))
					spte.ClearFlags(FlagRW)
					spte.SetFlags(FlagCopyOnWrite)
				})
				flushTLBEntryFn(page.Address())
			}
		}
	}

	return dst, nil
}
