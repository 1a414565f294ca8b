package irq

import "nanokernel/kernel/kfmt"

// Regs is a snapshot of the general-purpose registers at the moment an
// interrupt or exception was taken, in the order the common trampoline in
// stubs_386.s pushes them (mirroring a PUSHAL).
type Regs struct {
	EDI, ESI, EBP, ESPDummy, EBX, EDX, ECX, EAX uint32
}

// Print writes a register dump to the kernel's diagnostic sink.
func (r *Regs) Print() {
	kfmt.Printf("eax: 0x%x ebx: 0x%x ecx: 0x%x edx: 0x%x\n", r.EAX, r.EBX, r.ECX, r.EDX)
	kfmt.Printf("esi: 0x%x edi: 0x%x ebp: 0x%x\n", r.ESI, r.EDI, r.EBP)
}

// Frame is the portion of the interrupt stack frame the CPU itself pushes:
// the faulting instruction pointer, code segment, flags register and,
// when the interrupt crossed a privilege level, the user-mode stack
// pointer and segment.
type Frame struct {
	EIP, CS, EFLAGS uint32
	UserESP, UserSS uint32
}

// Print writes the hardware-pushed frame to the kernel's diagnostic sink.
func (f *Frame) Print() {
	kfmt.Printf("eip: 0x%x cs: 0x%x eflags: 0x%x\n", f.EIP, f.CS, f.EFLAGS)
}
