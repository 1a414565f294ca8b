package main

import "nanokernel/kernel/kmain"

// multibootInfoPtr, kernelStart and kernelEnd are populated by the rt0
// assembly trampoline before it calls main: the multiboot info pointer
// handed off in a register at boot, and the kernel image's own physical
// extent as recorded by the linker script.
var (
	multibootInfoPtr uintptr
	kernelStart      uintptr
	kernelEnd        uintptr
)

// main is a thin trampoline to the real kernel entrypoint. It is defined
// (rather than calling kmain.Kmain directly from assembly) so the Go
// compiler cannot conclude Kmain is unreachable and discard it.
func main() {
	kmain.Kmain(multibootInfoPtr, kernelStart, kernelEnd)
}
