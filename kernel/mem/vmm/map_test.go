package vmm

import (
	"testing"

	"nanokernel/kernel"
	"nanokernel/kernel/mem"
	"nanokernel/kernel/mem/pmm"
)

// fakeTables stands in for the recursively-mapped directory/table entries
// the real MMU would expose: dir holds the directory entries and
// tables[dirIndex] holds the page table for that directory index.
type fakeTables struct {
	dir    [1024]pageTableEntry
	tables [1024][1024]pageTableEntry
}

func withFakeTables(t *testing.T) *fakeTables {
	ft := &fakeTables{}

	origEntryAt, origFlush := entryAtFn, flushTLBEntryFn
	entryAtFn = func(addr uintptr) *pageTableEntry {
		// pdeAddr/pteAddr always resolve through pdSelfAddr/ptBase; decode
		// which logical table/index the walker is asking for.
		switch {
		case addr >= ptBase && addr < pdSelfAddr:
			offset := addr - ptBase
			dirIndex := offset / uintptr(mem.PageSize)
			tableIndex := (offset % uintptr(mem.PageSize)) / 4
			return &ft.tables[dirIndex][tableIndex]
		default:
			dirIndex := (addr - pdSelfAddr) / 4
			return &ft.dir[dirIndex]
		}
	}
	flushTLBEntryFn = func(uintptr) {}

	t.Cleanup(func() { entryAtFn, flushTLBEntryFn = origEntryAt, origFlush })
	return ft
}

func TestMapAllocatesMissingPageTable(t *testing.T) {
	ft := withFakeTables(t)

	var allocated []pmm.Frame
	allocFn := func() (pmm.Frame, *kernel.Error) {
		f := pmm.Frame(len(allocated) + 1)
		allocated = append(allocated, f)
		return f, nil
	}

	page := PageFromAddress(0x00401000)
	targetFrame := pmm.Frame(99)

	if err := Map(page, targetFrame, FlagRW, allocFn); err != nil {
		t.Fatal(err)
	}

	if !ft.dir[1].HasFlags(FlagPresent) {
		t.Fatal("expected directory entry for dirIndex 1 to be present")
	}
	if ft.dir[1].Frame() != allocated[0] {
		t.Fatalf("expected directory entry to point at the allocated table frame %v; got %v", allocated[0], ft.dir[1].Frame())
	}

	pte := ft.tables[1][1]
	if !pte.HasFlags(FlagPresent | FlagRW) {
		t.Fatal("expected page table entry to be present and writable")
	}
	if pte.Frame() != targetFrame {
		t.Fatalf("expected page table entry to reference frame %v; got %v", targetFrame, pte.Frame())
	}
}

func TestMapReusesExistingPageTable(t *testing.T) {
	ft := withFakeTables(t)
	ft.dir[0].SetFlags(FlagPresent)

	allocCalls := 0
	allocFn := func() (pmm.Frame, *kernel.Error) {
		allocCalls++
		return pmm.Frame(allocCalls), nil
	}

	if err := Map(PageFromAddress(0x3000), pmm.Frame(7), FlagRW, allocFn); err != nil {
		t.Fatal(err)
	}

	if allocCalls != 0 {
		t.Fatalf("expected no frame allocations when the page table already exists; got %d", allocCalls)
	}
}

func TestUnmapClearsPresentBit(t *testing.T) {
	ft := withFakeTables(t)
	ft.dir[0].SetFlags(FlagPresent)
	ft.tables[0][5].SetFlags(FlagPresent | FlagRW)
	ft.tables[0][5].SetFrame(pmm.Frame(3))

	Unmap(PageFromAddress(5 * uintptr(mem.PageSize)))

	if ft.tables[0][5].HasFlags(FlagPresent) {
		t.Fatal("expected Unmap to clear the present bit")
	}
}

func TestUnmapOfUnmappedPageIsNoop(t *testing.T) {
	withFakeTables(t)

	Unmap(PageFromAddress(0x9000))
}

func TestTranslateReturnsPhysicalAddress(t *testing.T) {
	ft := withFakeTables(t)
	ft.dir[2].SetFlags(FlagPresent)
	ft.tables[2][9].SetFlags(FlagPresent | FlagRW)
	ft.tables[2][9].SetFrame(pmm.Frame(0x55))

	virt := uintptr(2)<<22 | uintptr(9)<<12 | 0x123
	got, err := Translate(virt)
	if err != nil {
		t.Fatal(err)
	}

	want := pmm.Frame(0x55).Address() + 0x123
	if got != want {
		t.Fatalf("expected translated address 0x%x; got 0x%x", want, got)
	}
}

func TestTranslateUnmappedReturnsError(t *testing.T) {
	withFakeTables(t)

	if _, err := Translate(0x10000); err != ErrInvalidMapping {
		t.Fatalf("expected ErrInvalidMapping; got %v", err)
	}
}

func TestMapTemporaryUsesFixedAddress(t *testing.T) {
	withFakeTables(t)

	allocFn := func() (pmm.Frame, *kernel.Error) { return pmm.Frame(1), nil }

	page, err := MapTemporary(pmm.Frame(42), allocFn)
	if err != nil {
		t.Fatal(err)
	}
	if page.Address() != tempMappingAddr {
		t.Fatalf("expected temporary mapping at 0x%x; got 0x%x", tempMappingAddr, page.Address())
	}
}
