package vmm

import (
	"unsafe"

	"nanokernel/kernel/mem"
)

// The i386 MMU walks a virtual address through exactly two levels: a page
// directory (1024 entries, each pointing at a page table) and a page table
// (1024 entries, each pointing at a 4 KiB frame). This package accesses the
// currently active directory's own entries through the classic recursive
// mapping trick: the directory's own last entry (recursiveDirIndex) points
// back at the directory's own frame, so the MMU can be asked to walk
// addresses that decode as "page table index == recursiveDirIndex" and, in
// doing so, hands back the directory's own content interpreted as a page
// table of page tables.
const (
	recursiveDirIndex = 1023

	// pdSelfAddr is the virtual address at which the active directory's
	// own entries are visible (as if it were a page table).
	pdSelfAddr = uintptr(recursiveDirIndex)<<22 | uintptr(recursiveDirIndex)<<12

	// ptBase is the virtual address at which the active directory's
	// referenced page tables are visible, indexed by directory index.
	ptBase = uintptr(recursiveDirIndex) << 22
)

// entryAtFn dereferences a virtual address as a *pageTableEntry. It is
// overridden in tests, which stand in ordinary Go memory for the
// recursively-mapped directory/table entries the real MMU would expose.
var entryAtFn = func(addr uintptr) *pageTableEntry {
	return (*pageTableEntry)(unsafe.Pointer(addr))
}

// pdeAddr returns the address at which the active directory's entry for
// dirIndex is visible.
func pdeAddr(dirIndex uint32) uintptr {
	return pdSelfAddr + uintptr(dirIndex)*4
}

// pteAddr returns the address at which the active directory's page-table
// entry (dirIndex, tableIndex) is visible.
func pteAddr(dirIndex, tableIndex uint32) uintptr {
	return ptBase + uintptr(dirIndex)*uintptr(mem.PageSize) + uintptr(tableIndex)*4
}

// walkFn is invoked once per paging level while resolving a virtual
// address. level 0 is the directory entry, level 1 is the table entry.
// Returning false aborts the walk.
type walkFn func(level uint8, pte *pageTableEntry) bool

// walk resolves page for the currently active directory, invoking fn once
// for the directory entry and, if fn returns true, once for the table
// entry.
func walk(page Page, fn walkFn) {
	pde := entryAtFn(pdeAddr(page.dirIndex()))
	if !fn(0, pde) {
		return
	}
	fn(1, entryAtFn(pteAddr(page.dirIndex(), page.tableIndex())))
}
