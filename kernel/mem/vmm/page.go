package vmm

import "nanokernel/kernel/mem"

// Page describes a virtual memory page index.
type Page uintptr

// Address returns a pointer to the virtual memory address pointed to by this Page.
func (f Page) Address() uintptr {
	return uintptr(f << mem.PageShift)
}

// PageFromAddress returns a Page that corresponds to the given virtual
// address. This function can handle both page-aligned and not aligned virtual
// addresses. in the latter case, the input address will be rounded down to the
// page that contains it.
func PageFromAddress(virtAddr uintptr) Page {
	return Page((virtAddr & ^(uintptr(mem.PageSize - 1))) >> mem.PageShift)
}

// dirIndex returns the page directory index (bits 22-31) for this page.
func (f Page) dirIndex() uint32 {
	return uint32(f.Address()>>22) & 0x3FF
}

// tableIndex returns the page table index (bits 12-21) for this page.
func (f Page) tableIndex() uint32 {
	return uint32(f.Address()>>12) & 0x3FF
}
