package irq

// Each of these is a tiny entry trampoline implemented in stubs_386.s: it
// pushes the vector number (and, for vectors with no hardware error code,
// a dummy zero in its place) and falls through to the shared trampoline,
// which saves registers and calls dispatch.
func isr0()
func isr1()
func isr2()
func isr3()
func isr4()
func isr5()
func isr6()
func isr7()
func isr8()
func isr10()
func isr11()
func isr12()
func isr13()
func isr14()
func isr16()
func isr17()
func isr18()
func isr19()
func isr32()
func isr33()
func isr44()
func isr128()

// stubTable maps each vector this kernel handles to its entry trampoline.
// Vectors not present here keep a not-present IDT gate. Vectors 9 and 15
// are reserved by the architecture and never fire, so they have no stub.
var stubTable = [256]func(){
	DivideByZero:               isr0,
	Debug:                      isr1,
	NMI:                        isr2,
	Breakpoint:                 isr3,
	Overflow:                   isr4,
	BoundRangeExceeded:         isr5,
	InvalidOpcode:              isr6,
	DeviceNotAvailable:         isr7,
	DoubleFault:                isr8,
	InvalidTSS:                 isr10,
	SegmentNotPresent:          isr11,
	StackSegmentFault:          isr12,
	GPFException:               isr13,
	PageFaultException:         isr14,
	FloatingPointException:     isr16,
	AlignmentCheck:             isr17,
	MachineCheck:               isr18,
	SIMDFloatingPointException: isr19,
	TimerVector:                isr32,
	KeyboardVector:             isr33,
	MouseVector:                isr44,
	SyscallVector:              isr128,
}
