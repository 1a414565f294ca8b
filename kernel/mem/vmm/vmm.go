package vmm

import (
	"nanokernel/kernel"
	"nanokernel/kernel/cpu"
	"nanokernel/kernel/irq"
	"nanokernel/kernel/kfmt"
	"nanokernel/kernel/mem"
	"nanokernel/kernel/mem/pmm"
)

// kernelSpaceDirIndex is the first page directory index that belongs to
// the kernel half of every address space (virtual addresses >=
// 0xC0000000, the traditional 3GiB/1GiB split for a 32-bit kernel).
// CloneDirectory link-clones whole page-table entries at or past this
// index instead of deep-copying page contents, since the kernel image,
// heap and identity-map buffer are shared identically by every task.
const kernelSpaceDirIndex = 768

var (
	// frameAllocator points to a frame allocator function registered
	// using SetFrameAllocator. Must be set before Init runs.
	frameAllocator FrameAllocatorFn

	// the following functions are mocked by tests.
	panicFn             = kernel.Panic
	registerExceptionFn = irq.RegisterExceptionWithCode
	readCR2Fn           = cpu.ReadCR2
	enablePagingFn      = cpu.EnablePaging

	kernelDir *Directory

	heapWindowStart, heapWindowEnd uintptr

	// currentTaskIDFn lets the fatal-fault reporter print the identity
	// of the task that was running when the fault occurred. The task
	// manager overrides this during its own Init to avoid an import
	// cycle between vmm and task.
	currentTaskIDFn = func() (uint32, string) { return 0, "kernel" }
)

// SetFrameAllocator registers a frame allocator function that will be used
// by the vmm code when new physical frames need to be allocated.
func SetFrameAllocator(allocFn FrameAllocatorFn) {
	frameAllocator = allocFn
}

// SetHeapWindow records the virtual address range the kernel heap is
// allowed to grow into. A not-present write fault inside this window is
// treated as a request to grow the heap rather than a fatal error.
func SetHeapWindow(start, end uintptr) {
	heapWindowStart, heapWindowEnd = start, end
}

// SetCurrentTaskIDFunc registers the function used to identify the
// running task in a fatal fault report.
func SetCurrentTaskIDFunc(fn func() (uint32, string)) {
	currentTaskIDFn = fn
}

// KernelDirectory returns the directory created by Init that backs the
// kernel's own address space.
func KernelDirectory() *Directory {
	return kernelDir
}

// Init allocates the kernel's page directory, identity-maps
// [0, kernelImageEnd+identityBufferSize), installs the page-fault and
// general-protection-fault handlers and enables paging. SetFrameAllocator
// must have been called first.
func Init(kernelImageEnd uintptr, identityBufferSize mem.Size) *kernel.Error {
	dir, err := NewDirectory(frameAllocator)
	if err != nil {
		return err
	}
	kernelDir = dir

	end := kernelImageEnd + uintptr(identityBufferSize)
	for addr := uintptr(0); addr < end; addr += uintptr(mem.PageSize) {
		if err = dir.Map(PageFromAddress(addr), pmm.FrameFromAddress(addr), FlagRW, frameAllocator); err != nil {
			return err
		}
	}

	registerExceptionFn(irq.PageFaultException, pageFaultHandler)
	registerExceptionFn(irq.GPFException, generalProtectionFaultHandler)

	dir.Activate()
	enablePagingFn()

	return nil
}

// pageFaultHandler backs a not-present write fault inside the registered
// heap window by growing the heap, materializes a private copy of a
// copy-on-write page on a protection write fault, and escalates anything
// else to a fatal error.
func pageFaultHandler(errorCode uint64, frame *irq.Frame, regs *irq.Regs) {
	var (
		faultAddress = readCR2Fn()
		faultPage    = PageFromAddress(faultAddress)
		notPresent   = errorCode&0x1 == 0
		isWrite      = errorCode&0x2 != 0
	)

	if notPresent && isWrite && faultAddress >= heapWindowStart && faultAddress < heapWindowEnd {
		newFrame, allocErr := frameAllocator()
		if allocErr != nil {
			fatalPageFault(faultAddress, errorCode, frame, regs)
			return
		}
		if mapErr := Map(faultPage, newFrame, FlagRW, frameAllocator); mapErr != nil {
			fatalPageFault(faultAddress, errorCode, frame, regs)
		}
		return
	}

	if !notPresent && isWrite {
		var pte *pageTableEntry
		walk(faultPage, func(level uint8, p *pageTableEntry) bool {
			if level == 1 {
				pte = p
			}
			return p.HasFlags(FlagPresent)
		})

		if pte != nil && pte.HasFlags(FlagCopyOnWrite) {
			newFrame, allocErr := frameAllocator()
			if allocErr != nil {
				fatalPageFault(faultAddress, errorCode, frame, regs)
				return
			}
			tmpPage, mapErr := mapTemporaryFn(newFrame, frameAllocator)
			if mapErr != nil {
				fatalPageFault(faultAddress, errorCode, frame, regs)
				return
			}
			mem.Memcopy(faultPage.Address(), tmpPage.Address(), mem.PageSize)
			unmapFn(tmpPage)

			pte.ClearFlags(FlagCopyOnWrite)
			pte.SetFrame(newFrame)
			pte.SetFlags(FlagPresent | FlagRW)
			flushTLBEntryFn(faultPage.Address())
			return
		}
	}

	fatalPageFault(faultAddress, errorCode, frame, regs)
}

func fatalPageFault(faultAddress uintptr, errorCode uint64, frame *irq.Frame, regs *irq.Regs) {
	pid, name := currentTaskIDFn()
	kfmt.Printf("\npage fault at 0x%x (error code 0x%x) in task %d (%s)\n", faultAddress, errorCode, pid, name)
	switch {
	case errorCode&0x1 == 0:
		kfmt.Printf("reason: access to a non-present page\n")
	case errorCode&0x2 != 0:
		kfmt.Printf("reason: write protection violation\n")
	default:
		kfmt.Printf("reason: read protection violation\n")
	}
	regs.Print()
	frame.Print()
	panicFn(&kernel.Error{Module: "vmm", Message: "unrecoverable page fault"})
}

func generalProtectionFaultHandler(_ uint64, frame *irq.Frame, regs *irq.Regs) {
	pid, name := currentTaskIDFn()
	kfmt.Printf("\ngeneral protection fault in task %d (%s)\n", pid, name)
	regs.Print()
	frame.Print()
	panicFn(&kernel.Error{Module: "vmm", Message: "general protection fault"})
}
