// Package cpu exposes the i386-specific primitives (port I/O, control
// register access, interrupt masking, TLB/CR3 management) that the rest of
// the kernel builds on. The functions declared without a body are
// implemented in cpu_386.s.
package cpu

var (
	cpuidFn = ID
)

// EnableInterrupts sets the CPU interrupt flag (STI), allowing maskable
// hardware interrupts to be delivered.
func EnableInterrupts()

// DisableInterrupts clears the CPU interrupt flag (CLI).
func DisableInterrupts()

// Halt stops instruction execution until the next interrupt (HLT).
func Halt()

// In8 reads a byte from the given I/O port.
func In8(port uint16) uint8

// Out8 writes a byte to the given I/O port.
func Out8(port uint16, value uint8)

// FlushTLBEntry flushes the TLB entry for a particular virtual address
// (INVLPG).
func FlushTLBEntry(virtAddr uintptr)

// SwitchPDT loads the given physical address into CR3, activating the page
// directory it points to and flushing the entire TLB.
func SwitchPDT(pdtPhysAddr uintptr)

// ActivePDT returns the physical address of the currently active page
// directory (the current value of CR3).
func ActivePDT() uintptr

// ReadCR2 returns the value of CR2, the register the CPU populates with the
// faulting address on a page fault.
func ReadCR2() uintptr

// EnablePaging sets the paging bit (bit 31) of CR0, turning on the MMU. The
// page directory to use must already have been loaded into CR3 via
// SwitchPDT.
func EnablePaging()

// LoadIDT loads the interrupt descriptor table pointed to by idtPtrAddr
// (the address of a 6-byte IDT descriptor) via LIDT.
func LoadIDT(idtPtrAddr uintptr)

// LoadGDT loads the global descriptor table pointed to by gdtPtrAddr (the
// address of a 6-byte GDT descriptor) via LGDT, and reloads the segment
// registers to the supplied code/data selectors.
func LoadGDT(gdtPtrAddr uintptr, codeSelector, dataSelector uint16)

// LoadTSS loads the task register (LTR) with the given TSS selector.
func LoadTSS(selector uint16)

// ID returns the CPUID output for the given leaf.
func ID(leaf uint32) (uint32, uint32, uint32, uint32)

// IsIntel returns true if the code is running on an Intel processor.
func IsIntel() bool {
	_, ebx, ecx, edx := cpuidFn(0)
	return ebx == 0x756e6547 && // "Genu"
		edx == 0x49656e69 && // "ineI"
		ecx == 0x6c65746e // "ntel"
}
