// Package gdt installs the flat global descriptor table this kernel runs
// with: a null descriptor, ring-0 and ring-3 code and data segments
// spanning the full 4 GiB address space, and a TSS descriptor used only to hold the
// ring-0 stack pointer loaded on a privilege-level change.
package gdt

import (
	"unsafe"

	"nanokernel/kernel/cpu"
)

// Selectors for the segments Init installs. Every other part of the
// kernel that needs to refer to a segment (interrupt gates, task
// switching) uses these constants rather than a raw index.
const (
	NullSelector  = 0x00
	CodeSelector  = 0x08
	DataSelector  = 0x10
	UserCodeSel   = 0x18 | 3 // ring 3, requested privilege level 3
	UserDataSel   = 0x20 | 3
	TSSSelector   = 0x28
)

const (
	accessPresent   = 1 << 7
	accessRing3     = 3 << 5
	accessCodeData  = 1 << 4
	accessExec      = 1 << 3
	accessDirConf   = 1 << 2
	accessRW        = 1 << 1

	// flagGranularity4K and flagSize32 are bits of the 4-bit flags field
	// that newEntry places in the high nibble of the granularity byte.
	flagGranularity4K = 1 << 3
	flagSize32        = 1 << 2

	accessTSS = accessPresent | 0x9 // present, 32-bit TSS (available)
)

type entry struct {
	limitLow   uint16
	baseLow    uint16
	baseMiddle uint8
	access     uint8
	granLimit  uint8
	baseHigh   uint8
}

func newEntry(base uint32, limit uint32, access, flags uint8) entry {
	return entry{
		limitLow:   uint16(limit),
		baseLow:    uint16(base),
		baseMiddle: uint8(base >> 16),
		access:     access,
		granLimit:  uint8(limit>>16) | (flags << 4),
		baseHigh:   uint8(base >> 24),
	}
}

// tss is the minimal 32-bit task state segment this kernel needs: only
// ESP0/SS0, the ring-0 stack loaded automatically on an interrupt that
// crosses from ring 3 to ring 0. Every other field is unused since this
// kernel never performs a hardware task switch.
type tss struct {
	prevTask uint16
	_        uint16
	esp0     uint32
	ss0      uint16
	_        uint16
	_        [23]uint32
	_        uint16
	ioMapBase uint16
}

const numEntries = 6

var (
	table      [numEntries]entry
	taskState  tss
	descriptor struct {
		limit uint16
		base  uint32
	}
)

// Init builds the flat GDT plus a minimal TSS, loads it via LGDT and
// reloads the segment registers to the new kernel code/data selectors.
func Init() {
	table[0] = entry{}
	table[1] = newEntry(0, 0xFFFFF, accessPresent|accessCodeData|accessExec|accessRW, flagGranularity4K|flagSize32)
	table[2] = newEntry(0, 0xFFFFF, accessPresent|accessCodeData|accessRW, flagGranularity4K|flagSize32)
	table[3] = newEntry(0, 0xFFFFF, accessPresent|accessRing3|accessCodeData|accessExec|accessRW, flagGranularity4K|flagSize32)
	table[4] = newEntry(0, 0xFFFFF, accessPresent|accessRing3|accessCodeData|accessRW, flagGranularity4K|flagSize32)

	taskState = tss{ioMapBase: uint16(unsafe.Sizeof(tss{}))}
	tssBase := uint32(uintptr(unsafe.Pointer(&taskState)))
	table[5] = newEntry(tssBase, uint32(unsafe.Sizeof(tss{})-1), accessTSS, 0)

	descriptor.limit = uint16(unsafe.Sizeof(table) - 1)
	descriptor.base = uint32(uintptr(unsafe.Pointer(&table[0])))

	cpu.LoadGDT(uintptr(unsafe.Pointer(&descriptor)), CodeSelector, DataSelector)
	cpu.LoadTSS(TSSSelector)
}

// SetKernelStack updates the TSS's ring-0 stack pointer, called by the
// task manager every time it switches to a different task so that a
// future ring3->ring0 interrupt lands on that task's kernel stack.
func SetKernelStack(esp0 uintptr) {
	taskState.esp0 = uint32(esp0)
}
