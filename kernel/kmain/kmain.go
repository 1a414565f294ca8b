// Package kmain wires the kernel's subsystems together in dependency
// order: physical memory, the descriptor tables, paging, the task
// manager, the kernel heap and finally the timer.
package kmain

import (
	"nanokernel/kernel"
	"nanokernel/kernel/bootinfo"
	"nanokernel/kernel/cpu"
	"nanokernel/kernel/gdt"
	"nanokernel/kernel/hal"
	"nanokernel/kernel/heap"
	"nanokernel/kernel/irq"
	"nanokernel/kernel/kfmt"
	"nanokernel/kernel/mem"
	"nanokernel/kernel/mem/pmm"
	"nanokernel/kernel/mem/vmm"
	"nanokernel/kernel/multiboot"
	"nanokernel/kernel/pic"
	"nanokernel/kernel/pit"
	"nanokernel/kernel/task"
)

// identityBufferSize mirrors pmm's own reservation above the kernel image
// for early identity-mapped structures; vmm.Init must identity-map at
// least this much for the page tables and boot stacks it builds before
// the heap exists.
const identityBufferSize = 1 * mem.Mb

// heapSize is the size of the virtual window handed to the kernel heap,
// carved out of kernel-space immediately past the identity-mapped region.
const heapSize = 16 * mem.Mb

// Kmain is the only Go symbol visible to the rt0 assembly trampoline. It
// is invoked once, on the boot stack the trampoline set up, and is not
// expected to return.
//
//go:noinline
func Kmain(multibootInfoPtr, kernelStart, kernelEnd uintptr) {
	multiboot.SetInfoPtr(multibootInfoPtr)
	if hal.InitTerminal() {
		hal.ActiveTerminal.Clear()
		kfmt.SetOutputSink(hal.ActiveTerminal)
	}

	info := buildBootInfo(kernelStart, kernelEnd)

	mgr := pmm.Init(info)
	vmm.SetFrameAllocator(allocFrame(mgr))

	gdt.Init()
	irq.Init()
	pic.Remap()

	identityEnd := info.KernelImageEnd() + uintptr(identityBufferSize)
	if err := vmm.Init(identityEnd, identityBufferSize); err != nil {
		kernel.Panic(err)
	}

	heapStart := identityEnd
	heapEnd := heapStart + uintptr(heapSize)
	vmm.SetHeapWindow(heapStart, heapEnd)

	task.SetFrameAllocator(allocFrame(mgr))
	if err := task.Init(task.ParseConfig(info.CommandLine)); err != nil {
		kernel.Panic(err)
	}

	heap.Init(heapStart, heapEnd)

	pit.Init(pit.DefaultHz)

	// Everything the boot-time subsystems need is wired; the calling
	// context is itself the kernel-root task (PID 0) from here on.
	// Interrupts drive the scheduler from this point forward.
	cpu.EnableInterrupts()
	for {
		cpu.Halt()
	}
}

// buildBootInfo translates the bootloader's multiboot tag list into the
// boot-info record the rest of the kernel consumes, keeping the wire
// format confined to this one call site.
func buildBootInfo(kernelStart, kernelEnd uintptr) *bootinfo.Info {
	info := &bootinfo.Info{
		KernelImageStart: kernelStart,
		KernelImageSize:  kernelEnd - kernelStart,
		CommandLine:      multiboot.GetBootCmdLine(),
	}

	multiboot.VisitMemRegions(func(r *multiboot.MemoryMapEntry) {
		regionType := bootinfo.MemReserved
		if r.Type == multiboot.MemAvailable {
			regionType = bootinfo.MemAvailable
		}
		info.Regions = append(info.Regions, bootinfo.MemRegion{
			PhysAddress: r.PhysAddress,
			Length:      r.Length,
			Type:        regionType,
		})
	})

	if fb := multiboot.GetFramebufferInfo(); fb != nil {
		info.Framebuffer = bootinfo.Framebuffer{
			Address: uintptr(fb.PhysAddr),
			Size:    uint64(fb.Pitch) * uint64(fb.Height),
			Width:   fb.Width,
			Height:  fb.Height,
			Bpp:     fb.Bpp,
		}
	}

	return info
}

// allocFrame adapts the PMM's panic-on-exhaustion Alloc into the
// error-returning FrameAllocatorFn shape vmm and task expect.
func allocFrame(mgr *pmm.Manager) vmm.FrameAllocatorFn {
	return func() (pmm.Frame, *kernel.Error) {
		return pmm.FrameFromAddress(mgr.Alloc()), nil
	}
}
