package irq

import (
	"reflect"
	"unsafe"

	"nanokernel/kernel/cpu"
	"nanokernel/kernel/gdt"
)

const interruptGate32 = 0x8E

// idtEntry is the i386 in-memory layout of an interrupt gate descriptor:
// 64 bits holding a 32-bit handler address split into two halves, plus
// segment selector and type/flags byte.
type idtEntry struct {
	offsetLow  uint16
	selector   uint16
	zero       uint8
	typeAttr   uint8
	offsetHigh uint16
}

var idt [256]idtEntry

// idtDescriptor is the operand LIDT expects: a 16-bit limit followed by a
// 32-bit linear base address.
type idtDescriptor struct {
	limit uint16
	base  uint32
}

var idtr idtDescriptor

func setGate(v Vector, handler func()) {
	addr := uint32(reflect.ValueOf(handler).Pointer())
	idt[v] = idtEntry{
		offsetLow:  uint16(addr),
		selector:   gdt.CodeSelector,
		zero:       0,
		typeAttr:   interruptGate32,
		offsetHigh: uint16(addr >> 16),
	}
}

// Init builds the interrupt descriptor table, installing gates for every
// vector this package has an entry trampoline for (see stubTable in
// stubs_386.go), and loads it via LIDT. Vectors with no entry trampoline
// keep a not-present gate: an unexpected interrupt on one of them raises
// a segment-not-present fault (#NP) rather than silently falling through
// to a handler.
func Init() {
	for v, fn := range stubTable {
		if fn == nil {
			continue
		}
		setGate(Vector(v), fn)
	}

	idtr.limit = uint16(unsafe.Sizeof(idt) - 1)
	idtr.base = uint32(uintptr(unsafe.Pointer(&idt[0])))
	cpu.LoadIDT(uintptr(unsafe.Pointer(&idtr)))
}
